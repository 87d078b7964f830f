package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shehryarbajwa/casefiler/pkg/models"
)

var (
	ErrSessionCreation = errors.New("session creation failed")
	ErrNavigation      = errors.New("navigation failed")
	ErrEvaluate        = errors.New("evaluate failed")
	ErrStatus          = errors.New("session status lookup failed")
)

// maxErrorBody bounds how much of a provider error body ends up in errors
const maxErrorBody = 512

// Client talks to a remote browser provider over its /v1/sessions API
type Client struct {
	baseURL    string
	token      string
	projectID  string
	httpClient *http.Client
}

// NewClient creates a provider client. timeout applies to every request.
func NewClient(baseURL, token, projectID string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		projectID: projectID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type createSessionRequest struct {
	ProjectID       string          `json:"projectId,omitempty"`
	ContextID       string          `json:"contextId,omitempty"`
	KeepAlive       bool            `json:"keepAlive"`
	Timeout         int             `json:"timeout,omitempty"`
	BrowserSettings browserSettings `json:"browserSettings"`
}

type browserSettings struct {
	Viewport    models.Viewport `json:"viewport"`
	Fingerprint fingerprint     `json:"fingerprint"`
}

type fingerprint struct {
	Locales []string        `json:"locales,omitempty"`
	Screen  models.Viewport `json:"screen"`
}

type sessionResponse struct {
	ID         string    `json:"id"`
	ConnectURL string    `json:"connectUrl"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"startedAt"`
}

// CreateSession starts a remote browser. There is no retry: without a
// session nothing else can run.
func (c *Client) CreateSession(ctx context.Context, cfg models.SessionConfig) (models.SessionHandle, error) {
	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = c.projectID
	}

	body := createSessionRequest{
		ProjectID: projectID,
		ContextID: cfg.ContextID,
		KeepAlive: cfg.KeepAlive,
		Timeout:   cfg.TimeoutSeconds,
		BrowserSettings: browserSettings{
			Viewport: cfg.Viewport,
			Fingerprint: fingerprint{
				Locales: cfg.Locales,
				Screen:  cfg.Viewport,
			},
		},
	}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", body, &resp); err != nil {
		return models.SessionHandle{}, fmt.Errorf("%w: %w", ErrSessionCreation, err)
	}
	if resp.ID == "" {
		return models.SessionHandle{}, fmt.Errorf("%w: provider response has no session id", ErrSessionCreation)
	}

	createdAt := resp.StartedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	log.Printf("✓ Remote session %s created", models.ShortID(resp.ID))
	return models.SessionHandle{
		ID:         resp.ID,
		ConnectURL: resp.ConnectURL,
		CreatedAt:  createdAt,
		Status:     models.SessionActive,
	}, nil
}

// Navigate loads url in the session's page
func (c *Client) Navigate(ctx context.Context, session models.SessionHandle, target string) error {
	body := map[string]string{"url": target}
	if err := c.do(ctx, http.MethodPost, sessionPath(session.ID, "navigate"), body, nil); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNavigation, target, err)
	}
	return nil
}

// Evaluate runs code in the session's page and returns its JSON result.
// A script that returns nothing yields "null".
func (c *Client) Evaluate(ctx context.Context, session models.SessionHandle, code string) (json.RawMessage, error) {
	var resp struct {
		Result json.RawMessage `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, sessionPath(session.ID, "evaluate"), map[string]string{"code": code}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEvaluate, err)
	}
	if len(resp.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return resp.Result, nil
}

// CloseSession releases the session. Failures are logged and swallowed so
// cleanup never changes an outcome that was already decided.
func (c *Client) CloseSession(ctx context.Context, session models.SessionHandle) {
	if err := c.do(ctx, http.MethodDelete, sessionPath(session.ID, ""), nil, nil); err != nil {
		log.Printf("⚠️ Failed to close session %s: %v", session.ShortID(), err)
		return
	}
	log.Printf("🔌 Closed session %s", session.ShortID())
}

// SessionStatus asks the provider for a session's current status, as the
// provider spells it
func (c *Client) SessionStatus(ctx context.Context, sessionID string) (string, error) {
	var resp sessionResponse
	if err := c.do(ctx, http.MethodGet, sessionPath(sessionID, ""), nil, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStatus, err)
	}
	if resp.Status == "" {
		return "", fmt.Errorf("%w: provider response has no status", ErrStatus)
	}
	return resp.Status, nil
}

func sessionPath(id, action string) string {
	p := "/v1/sessions/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Request-ID", uuid.New().String())
	if c.projectID != "" {
		req.Header.Set("X-Project-ID", c.projectID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("malformed provider response: %w", err)
	}
	return nil
}

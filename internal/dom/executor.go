package dom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shehryarbajwa/casefiler/pkg/models"
)

var (
	// ErrScriptExecution wraps every failure to run a command in the page
	ErrScriptExecution = errors.New("script execution failed")
	// ErrElementNotFound means the command ran but its target was missing
	ErrElementNotFound = errors.New("element not found")
	// ErrUploadTooLarge is returned before any network call for oversize files
	ErrUploadTooLarge = errors.New("upload exceeds size limit")
)

// DefaultMaxUploadBytes caps one upload's raw size
const DefaultMaxUploadBytes int64 = 10 << 20

// Evaluator runs script source inside a session's page and returns the
// JSON-encoded result
type Evaluator interface {
	Evaluate(ctx context.Context, session models.SessionHandle, code string) (json.RawMessage, error)
}

// Element is a snapshot of a located node
type Element struct {
	Tag     string `json:"tag"`
	Text    string `json:"text"`
	Value   string `json:"value"`
	Visible bool   `json:"visible"`
}

type reply struct {
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	Found    bool      `json:"found"`
	Element  *Element  `json:"element,omitempty"`
	Elements []Element `json:"elements,omitempty"`
}

// Executor issues commands against one session
type Executor struct {
	eval           Evaluator
	session        models.SessionHandle
	maxUploadBytes int64
}

// NewExecutor binds an evaluator to a session. maxUploadBytes <= 0 uses
// DefaultMaxUploadBytes.
func NewExecutor(eval Evaluator, session models.SessionHandle, maxUploadBytes int64) *Executor {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Executor{
		eval:           eval,
		session:        session,
		maxUploadBytes: maxUploadBytes,
	}
}

// Click clicks the located element
func (e *Executor) Click(ctx context.Context, target Locator) error {
	_, err := e.run(ctx, Click(target))
	return err
}

// FillInput sets an input's value
func (e *Executor) FillInput(ctx context.Context, target Locator, value string) error {
	_, err := e.run(ctx, SetValue(target, KindInput, value))
	return err
}

// FillTextarea sets a textarea's value. Non-textarea matches count as misses.
func (e *Executor) FillTextarea(ctx context.Context, target Locator, value string) error {
	_, err := e.run(ctx, SetValue(target, KindTextarea, value))
	return err
}

// QuerySelector returns the first match, or nil when nothing matches
func (e *Executor) QuerySelector(ctx context.Context, target Locator) (*Element, error) {
	r, err := e.run(ctx, Query(target))
	if err != nil {
		return nil, err
	}
	if !r.Found {
		return nil, nil
	}
	return r.Element, nil
}

// QuerySelectorAll returns up to limit matches (0 means all)
func (e *Executor) QuerySelectorAll(ctx context.Context, target Locator, limit int) ([]Element, error) {
	r, err := e.run(ctx, QueryAll(target, limit))
	if err != nil {
		return nil, err
	}
	return r.Elements, nil
}

// UploadFile attaches data as a file to the located file input
func (e *Executor) UploadFile(ctx context.Context, target Locator, data []byte, filename, mimeType string) error {
	if int64(len(data)) > e.maxUploadBytes {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrUploadTooLarge, filename, len(data), e.maxUploadBytes)
	}
	_, err := e.run(ctx, Upload(target, File{Name: filename, MimeType: mimeType, Data: data}))
	return err
}

// Detect reports whether the page URL contains any fragment or any marker
// element is present
func (e *Executor) Detect(ctx context.Context, urlContains []string, markers []Locator) (bool, error) {
	r, err := e.run(ctx, Detect(urlContains, markers))
	if err != nil {
		return false, err
	}
	return r.Found, nil
}

func (e *Executor) run(ctx context.Context, cmd Command) (*reply, error) {
	code, err := Render(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScriptExecution, err)
	}

	raw, err := e.eval.Evaluate(ctx, e.session, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrScriptExecution, cmd.Op, err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: %s returned no result", ErrScriptExecution, cmd.Op)
	}

	var r reply
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: %s returned malformed result: %w", ErrScriptExecution, cmd.Op, err)
	}

	if !r.OK {
		if r.Error == "not_found" {
			return nil, fmt.Errorf("%w: %w: %s", ErrScriptExecution, ErrElementNotFound, cmd.Target)
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrScriptExecution, cmd.Op, r.Error)
	}

	return &r, nil
}

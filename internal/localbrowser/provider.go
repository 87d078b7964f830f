package localbrowser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/shehryarbajwa/casefiler/internal/remote"
	"github.com/shehryarbajwa/casefiler/pkg/models"
)

// ErrUnknownSession is returned for a handle this provider did not create
var ErrUnknownSession = errors.New("unknown local session")

// Options configures the local browser
type Options struct {
	Headless       bool
	NavTimeout     time.Duration
	InstallDrivers bool
}

// page is the part of playwright.Page the provider drives
type page interface {
	Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error)
	Evaluate(expression string, arg ...interface{}) (interface{}, error)
}

type localSession struct {
	page  page
	close func() error
}

// Provider runs sessions in a Chromium launched on this host. It offers
// the same operations as the remote client, so the workflow can run
// against a visible local browser during development.
type Provider struct {
	pw         *playwright.Playwright
	browser    playwright.Browser
	sessions   sync.Map // map[sessionID]*localSession
	navTimeout time.Duration
}

// Start launches Playwright and Chromium
func Start(opts Options) (*Provider, error) {
	if opts.InstallDrivers {
		log.Println("🔧 Installing Playwright Chromium (one-time setup)...")
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	navTimeout := opts.NavTimeout
	if navTimeout <= 0 {
		navTimeout = 60 * time.Second
	}

	log.Printf("✓ Local Chromium launched (headless: %v)", opts.Headless)
	return &Provider{pw: pw, browser: browser, navTimeout: navTimeout}, nil
}

// CreateSession opens an isolated browser context with the requested
// viewport and locale
func (p *Provider) CreateSession(ctx context.Context, cfg models.SessionConfig) (models.SessionHandle, error) {
	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  cfg.Viewport.Width,
			Height: cfg.Viewport.Height,
		},
	}
	if len(cfg.Locales) > 0 {
		contextOpts.Locale = playwright.String(cfg.Locales[0])
	}

	bctx, err := p.browser.NewContext(contextOpts)
	if err != nil {
		return models.SessionHandle{}, fmt.Errorf("%w: %w", remote.ErrSessionCreation, err)
	}
	pg, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return models.SessionHandle{}, fmt.Errorf("%w: %w", remote.ErrSessionCreation, err)
	}

	id := uuid.New().String()
	p.sessions.Store(id, &localSession{
		page:  pg,
		close: func() error { return bctx.Close() },
	})

	log.Printf("✓ Local session %s created", models.ShortID(id))
	return models.SessionHandle{
		ID:        id,
		CreatedAt: time.Now(),
		Status:    models.SessionActive,
	}, nil
}

// Navigate loads url and waits for the DOM to be ready
func (p *Provider) Navigate(ctx context.Context, session models.SessionHandle, target string) error {
	s, err := p.lookup(session)
	if err != nil {
		return fmt.Errorf("%w: %w", remote.ErrNavigation, err)
	}

	if _, err := s.page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(p.navTimeout.Milliseconds())),
	}); err != nil {
		return fmt.Errorf("%w: %s: %w", remote.ErrNavigation, target, err)
	}
	return nil
}

// Evaluate runs code in the page and returns its result as JSON
func (p *Provider) Evaluate(ctx context.Context, session models.SessionHandle, code string) (json.RawMessage, error) {
	s, err := p.lookup(session)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", remote.ErrEvaluate, err)
	}

	result, err := s.page.Evaluate(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", remote.ErrEvaluate, err)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("%w: result not serializable: %w", remote.ErrEvaluate, err)
	}
	return raw, nil
}

// CloseSession closes the session's browser context. Failures are logged.
func (p *Provider) CloseSession(ctx context.Context, session models.SessionHandle) {
	value, ok := p.sessions.LoadAndDelete(session.ID)
	if !ok {
		log.Printf("⚠️ Close requested for unknown local session %s", session.ShortID())
		return
	}

	if err := value.(*localSession).close(); err != nil {
		log.Printf("⚠️ Failed to close local session %s: %v", session.ShortID(), err)
		return
	}
	log.Printf("🔌 Closed local session %s", session.ShortID())
}

// SessionStatus reports whether the session's browser context is still open
func (p *Provider) SessionStatus(ctx context.Context, sessionID string) (string, error) {
	if _, ok := p.sessions.Load(sessionID); ok {
		return string(models.SessionActive), nil
	}
	return string(models.SessionClosed), nil
}

// Stop closes every session and shuts the browser down
func (p *Provider) Stop() error {
	p.sessions.Range(func(key, value interface{}) bool {
		p.CloseSession(context.Background(), models.SessionHandle{ID: key.(string)})
		return true
	})

	if err := p.browser.Close(); err != nil {
		log.Printf("⚠️ Failed to close browser: %v", err)
	}
	return p.pw.Stop()
}

func (p *Provider) lookup(session models.SessionHandle) (*localSession, error) {
	value, ok := p.sessions.Load(session.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, session.ShortID())
	}
	return value.(*localSession), nil
}

package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shehryarbajwa/casefiler/internal/documents"
	"github.com/shehryarbajwa/casefiler/internal/dom"
	"github.com/shehryarbajwa/casefiler/internal/fields"
	"github.com/shehryarbajwa/casefiler/internal/wait"
	"github.com/shehryarbajwa/casefiler/pkg/models"
)

// SessionClient is the remote browser provider
type SessionClient interface {
	CreateSession(ctx context.Context, cfg models.SessionConfig) (models.SessionHandle, error)
	Navigate(ctx context.Context, session models.SessionHandle, url string) error
	Evaluate(ctx context.Context, session models.SessionHandle, code string) (json.RawMessage, error)
	CloseSession(ctx context.Context, session models.SessionHandle)
}

// DocumentSource downloads attachments
type DocumentSource interface {
	Fetch(ctx context.Context, url string) (*documents.Document, error)
}

// SessionLedger records which submission owns a session. Claim fails when
// the session is already owned, which aborts the run.
type SessionLedger interface {
	Claim(session models.SessionHandle) error
	Abandon(session models.SessionHandle)
}

// Config tunes a Controller
type Config struct {
	Session            models.SessionConfig
	AuthPollInterval   time.Duration
	AuthMaxAttempts    int
	AbortOnAuthTimeout bool
	StepDelay          time.Duration
	MaxUploadBytes     int64
	CleanupTimeout     time.Duration
	Clock              wait.Clock
}

// DefaultConfig polls for login every 2s for a minute and pauses 2s after
// each page-changing action
func DefaultConfig() Config {
	return Config{
		Session:          models.DefaultSessionConfig(),
		AuthPollInterval: 2 * time.Second,
		AuthMaxAttempts:  30,
		StepDelay:        2 * time.Second,
		MaxUploadBytes:   dom.DefaultMaxUploadBytes,
		CleanupTimeout:   15 * time.Second,
	}
}

// ReviewMessage is returned to the caller on success
const ReviewMessage = "Form filled successfully. Please review and submit."

// Controller drives one submission at a time per Run call. It holds no
// per-submission state, so concurrent Runs are independent.
type Controller struct {
	client SessionClient
	docs   DocumentSource
	table  *fields.Table
	cfg    Config
}

// NewController creates a workflow controller
func NewController(client SessionClient, docs DocumentSource, table *fields.Table, cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = wait.RealClock()
	}
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = 15 * time.Second
	}
	if cfg.AuthMaxAttempts <= 0 {
		cfg.AuthMaxAttempts = 1
	}
	return &Controller{
		client: client,
		docs:   docs,
		table:  table,
		cfg:    cfg,
	}
}

// run is the state of one submission
type run struct {
	c        *Controller
	req      models.SubmissionRequest
	ledger   SessionLedger
	session  *models.SessionHandle
	claimed  bool
	foreign  bool // session belongs to another submission; never close it
	exec     *dom.Executor
	state    State
	steps    []models.StepResult
	warnings []string
}

// Run executes the submission up to human review. On success the session
// is left open and its ID returned. On failure the session, if one was
// created, is closed before the *AbortError is returned. ledger may be nil.
func (c *Controller) Run(ctx context.Context, req models.SubmissionRequest, ledger SessionLedger) (*models.SubmissionResult, error) {
	r := &run{c: c, req: req, ledger: ledger, state: Idle}

	if err := r.createSession(ctx); err != nil {
		return nil, err
	}

	phases := []struct {
		step string
		fn   func(ctx context.Context) error
	}{
		{StepOpenSite, r.openSite},
		{StepAwaitAuth, r.awaitAuth},
		{StepStartRecord, r.startRecord},
		{StepCategory, r.selectCategory},
		{StepFillFields, r.fillFields},
		{StepUploadDocs, r.uploadDocuments},
	}

	for _, p := range phases {
		if err := ctx.Err(); err != nil {
			return nil, r.abort(p.step, err)
		}
		if err := p.fn(ctx); err != nil {
			return nil, r.abort(p.step, err)
		}
	}

	r.transition(AwaitingHumanReview)
	log.Printf("✅ Session %s ready for human review (%d warnings)", r.session.ShortID(), len(r.warnings))

	return &models.SubmissionResult{
		Success:   true,
		SessionID: r.session.ID,
		Message:   ReviewMessage,
		Warnings:  r.warnings,
		Steps:     r.steps,
	}, nil
}

func (r *run) createSession(ctx context.Context) error {
	session, err := r.c.client.CreateSession(ctx, r.c.cfg.Session)
	if err != nil {
		r.record(StepCreateSession, models.OutcomeFailed, err.Error())
		return r.abort(StepCreateSession, err)
	}

	r.session = &session
	r.exec = dom.NewExecutor(r.c.client, session, r.c.cfg.MaxUploadBytes)
	r.record(StepCreateSession, models.OutcomeSuccess, session.ID)
	r.transition(SessionCreated)

	if r.ledger != nil {
		if err := r.ledger.Claim(session); err != nil {
			r.record(StepClaimSession, models.OutcomeFailed, err.Error())
			r.foreign = true
			return r.abort(StepClaimSession, err)
		}
		r.claimed = true
	}
	return nil
}

func (r *run) openSite(ctx context.Context) error {
	if err := r.c.client.Navigate(ctx, *r.session, r.c.table.TargetURL); err != nil {
		r.record(StepOpenSite, models.OutcomeFailed, err.Error())
		return err
	}
	r.record(StepOpenSite, models.OutcomeSuccess, r.c.table.TargetURL)
	r.transition(SiteOpened)
	return r.settle(ctx)
}

// awaitAuth waits for the operator to log in through the visible session.
// Running out of attempts is not fatal by default: the operator may still
// be mid-login and can finish the form by hand.
func (r *run) awaitAuth(ctx context.Context) error {
	poller := &wait.Poller{
		Interval:    r.c.cfg.AuthPollInterval,
		MaxAttempts: r.c.cfg.AuthMaxAttempts,
		Clock:       r.c.cfg.Clock,
	}
	auth := r.c.table.Auth

	ok := poller.Until(ctx, func(ctx context.Context) (bool, error) {
		return r.exec.Detect(ctx, auth.URLContains, auth.Markers)
	})
	if ok {
		r.record(StepAwaitAuth, models.OutcomeSuccess, "")
		r.transition(AuthConfirmed)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := fmt.Errorf("%w after %d attempts", ErrAuthWaitExhausted, poller.MaxAttempts)
	if r.c.cfg.AbortOnAuthTimeout {
		r.record(StepAwaitAuth, models.OutcomeFailed, err.Error())
		return err
	}

	log.Printf("⚠️ Session %s: %v, continuing", r.session.ShortID(), err)
	r.warn(err.Error())
	r.record(StepAwaitAuth, models.OutcomeSkipped, err.Error())
	r.transition(AuthTimedOut)
	return nil
}

func (r *run) startRecord(ctx context.Context) error {
	r.clickBestEffort(ctx, StepStartRecord, r.c.table.StartRecord)
	r.transition(RecordStarted)
	return r.settle(ctx)
}

func (r *run) selectCategory(ctx context.Context) error {
	r.clickBestEffort(ctx, StepCategory, r.c.table.Category)
	if err := r.settle(ctx); err != nil {
		return err
	}
	r.clickBestEffort(ctx, StepSubCategory, r.c.table.SubCategory)
	if len(r.c.table.Next) > 0 {
		r.clickBestEffort(ctx, StepNext, r.c.table.Next)
	}
	r.transition(CategorySelected)
	return r.settle(ctx)
}

func (r *run) fillFields(ctx context.Context) error {
	for _, a := range r.c.table.Resolve(r.req) {
		if err := ctx.Err(); err != nil {
			return err
		}

		step := StepFillPrefix + a.Field.Name
		var action func(context.Context, dom.Locator) error

		switch a.Field.Kind {
		case fields.KindTextarea:
			action = func(ctx context.Context, loc dom.Locator) error {
				return r.exec.FillTextarea(ctx, loc, a.Value)
			}
		case fields.KindFile:
			doc, err := r.c.docs.Fetch(ctx, a.Value)
			if err != nil {
				r.missed(step, err)
				continue
			}
			name := a.Field.UploadName(a.Value)
			action = func(ctx context.Context, loc dom.Locator) error {
				return r.exec.UploadFile(ctx, loc, doc.Data, name, doc.MimeType)
			}
		default:
			action = func(ctx context.Context, loc dom.Locator) error {
				return r.exec.FillInput(ctx, loc, a.Value)
			}
		}

		if _, err := tryCandidates(ctx, a.Field.Candidates, action); err != nil {
			r.missed(step, err)
			continue
		}
		r.record(step, models.OutcomeSuccess, "")
	}

	r.transition(FieldsFilled)
	return nil
}

// uploadDocuments attaches each known document present in the request, in
// table order. A failing document is reported and the rest still run.
func (r *run) uploadDocuments(ctx context.Context) error {
	known := make(map[string]bool, len(r.c.table.Documents))

	for _, spec := range r.c.table.Documents {
		known[spec.Key] = true
		src := strings.TrimSpace(r.req.Documents[spec.Key])
		if src == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		step := StepUploadPrefix + spec.Key
		doc, err := r.c.docs.Fetch(ctx, src)
		if err != nil {
			log.Printf("❌ Session %s: fetching %s failed: %v", r.session.ShortID(), spec.Key, err)
			r.missed(step, err)
			continue
		}

		if len(spec.Trigger) > 0 {
			r.clickBestEffort(ctx, StepTriggerPrefix+spec.Key, spec.Trigger)
		}

		_, err = tryCandidates(ctx, spec.Candidates, func(ctx context.Context, loc dom.Locator) error {
			return r.exec.UploadFile(ctx, loc, doc.Data, spec.Filename, doc.MimeType)
		})
		if err != nil {
			log.Printf("❌ Session %s: uploading %s failed: %v", r.session.ShortID(), spec.Key, err)
			r.missed(step, fmt.Errorf("%w: %w", ErrDocumentUpload, err))
			continue
		}
		r.record(step, models.OutcomeSuccess, spec.Filename)
	}

	for key := range r.req.Documents {
		if !known[key] {
			log.Printf("Session %s: ignoring unknown document key %q", r.session.ShortID(), key)
		}
	}

	r.transition(DocumentsUploaded)
	return nil
}

// tryCandidates runs action against each locator in order and stops at the
// first success. Only script failures move on to the next candidate; any
// other error (oversize upload, cancellation) ends the attempt.
func tryCandidates(ctx context.Context, candidates fields.Candidates, action func(context.Context, dom.Locator) error) (dom.Locator, error) {
	if len(candidates) == 0 {
		return dom.Locator{}, fmt.Errorf("%w: no candidates", dom.ErrElementNotFound)
	}

	var lastErr error
	for _, loc := range candidates {
		if err := ctx.Err(); err != nil {
			return dom.Locator{}, err
		}
		err := action(ctx, loc)
		if err == nil {
			return loc, nil
		}
		lastErr = err
		if !errors.Is(err, dom.ErrScriptExecution) {
			break
		}
	}
	return dom.Locator{}, lastErr
}

func (r *run) clickBestEffort(ctx context.Context, step string, candidates fields.Candidates) {
	loc, err := tryCandidates(ctx, candidates, r.exec.Click)
	if err != nil {
		r.missed(step, err)
		return
	}
	r.record(step, models.OutcomeSuccess, loc.String())
}

func (r *run) settle(ctx context.Context) error {
	if r.c.cfg.StepDelay <= 0 {
		return ctx.Err()
	}
	return r.c.cfg.Clock.Sleep(ctx, r.c.cfg.StepDelay)
}

// missed records a best-effort step that did not happen
func (r *run) missed(step string, err error) {
	log.Printf("⚠️ Session %s: %s skipped: %v", r.session.ShortID(), step, err)
	r.warn(fmt.Sprintf("%s: %v", step, err))
	r.record(step, models.OutcomeFailed, err.Error())
}

func (r *run) warn(msg string) {
	r.warnings = append(r.warnings, msg)
}

func (r *run) record(step string, outcome models.StepOutcome, detail string) {
	r.steps = append(r.steps, models.StepResult{Step: step, Outcome: outcome, Detail: detail})
}

func (r *run) transition(next State) {
	id := "-"
	if r.session != nil {
		id = r.session.ShortID()
	}
	log.Printf("Session %s: %s → %s", id, r.state, next)
	r.state = next
}

// abort closes the session, if this run owns one, and wraps err. Cleanup
// runs on a context detached from ctx so a cancelled request still
// releases the remote browser.
func (r *run) abort(step string, err error) error {
	abortErr := &AbortError{Step: step, State: r.state, Err: err}

	if r.session != nil {
		abortErr.SessionID = r.session.ID
	}
	if r.session != nil && !r.foreign {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), r.c.cfg.CleanupTimeout)
		r.c.client.CloseSession(cleanupCtx, *r.session)
		cancel()
		r.session.Status = models.SessionClosed
		if r.claimed {
			r.ledger.Abandon(*r.session)
		}
	}

	log.Printf("❌ %v", abortErr)
	r.transition(Aborted)
	return abortErr
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/casefiler/internal/session"
	"github.com/shehryarbajwa/casefiler/internal/workflow"
	"github.com/shehryarbajwa/casefiler/pkg/models"
)

// maxBodyBytes bounds a submission body. Documents are passed by URL.
const maxBodyBytes = 1 << 20

// Runner drives one submission to human review
type Runner interface {
	Run(ctx context.Context, req models.SubmissionRequest, ledger workflow.SessionLedger) (*models.SubmissionResult, error)
}

// StatusSource reports a session's status as the provider sees it
type StatusSource interface {
	SessionStatus(ctx context.Context, sessionID string) (string, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	runner    Runner
	sessions  *session.Manager
	validator *Validator
	status    StatusSource
}

// NewHandler creates a new HTTP handler
func NewHandler(runner Runner, sessions *session.Manager, validator *Validator) *Handler {
	return &Handler{
		runner:    runner,
		sessions:  sessions,
		validator: validator,
	}
}

// SetStatusSource lets GetSubmission ask the provider about the session
func (h *Handler) SetStatusSource(src StatusSource) {
	h.status = src
}

// CreateSubmission handles POST /v1/submissions. The request stays open
// while the form is filled; a client that disconnects aborts the run.
func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) > maxBodyBytes {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	req, err := h.validator.Validate(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	tenant := tenantID(r)
	lease, err := h.sessions.Begin(tenant)
	if err != nil {
		if errors.Is(err, session.ErrConcurrencyLimit) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	log.Printf("🚀 Submission %s started for tenant %s", models.ShortID(lease.SubmissionID()), tenant)

	result, err := h.runner.Run(r.Context(), req, lease)
	if err != nil {
		lease.Fail()
		log.Printf("❌ Submission %s failed: %v", models.ShortID(lease.SubmissionID()), err)
		writeJSON(w, http.StatusBadGateway, models.SubmissionResult{
			Success:      false,
			SubmissionID: lease.SubmissionID(),
			Message:      err.Error(),
		})
		return
	}

	lease.AwaitReview()
	result.SubmissionID = lease.SubmissionID()
	result.LiveURL = liveURL(r, tenant, lease.SubmissionID())

	writeJSON(w, http.StatusOK, result)
}

// ListSubmissions handles GET /v1/submissions
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	status := models.SubmissionStatus(r.URL.Query().Get("status"))

	writeJSON(w, http.StatusOK, h.sessions.List(tenantID(r), status))
}

// GetSubmission handles GET /v1/submissions/{id}
func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	record, err := h.sessions.Get(tenantID(r), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	detail := models.SubmissionDetail{SubmissionRecord: record}
	if h.status != nil && record.SessionID != "" {
		// the registry record stands on its own if the provider is unreachable
		status, err := h.status.SessionStatus(r.Context(), record.SessionID)
		if err != nil {
			log.Printf("⚠️ Provider status for submission %s unavailable: %v", models.ShortID(id), err)
		} else {
			detail.ProviderStatus = status
		}
	}

	writeJSON(w, http.StatusOK, detail)
}

// CloseSubmission handles DELETE /v1/submissions/{id}: the operator is
// done with the review session
func (h *Handler) CloseSubmission(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := h.sessions.Close(r.Context(), tenantID(r), id)
	switch {
	case errors.Is(err, session.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, session.ErrNotOpen):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// liveURL carries the tenant in the query since browsers cannot set
// headers on websocket requests
func liveURL(r *http.Request, tenant, submissionID string) string {
	scheme := "ws"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "wss"
	}
	u := fmt.Sprintf("%s://%s/v1/submissions/%s/live", scheme, r.Host, submissionID)
	if tenant != DefaultTenant {
		u += "?tenantId=" + url.QueryEscape(tenant)
	}
	return u
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ Failed to write response: %v", err)
	}
}

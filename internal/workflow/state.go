package workflow

import (
	"errors"
	"fmt"
)

// State is a point in the submission's linear progression
type State int

const (
	Idle State = iota
	SessionCreated
	SiteOpened
	AuthConfirmed
	AuthTimedOut
	RecordStarted
	CategorySelected
	FieldsFilled
	DocumentsUploaded
	AwaitingHumanReview
	Aborted
)

var stateNames = map[State]string{
	Idle:                "idle",
	SessionCreated:      "session_created",
	SiteOpened:          "site_opened",
	AuthConfirmed:       "auth_confirmed",
	AuthTimedOut:        "auth_timed_out",
	RecordStarted:       "record_started",
	CategorySelected:    "category_selected",
	FieldsFilled:        "fields_filled",
	DocumentsUploaded:   "documents_uploaded",
	AwaitingHumanReview: "awaiting_human_review",
	Aborted:             "aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Step names used in StepResult and AbortError
const (
	StepCreateSession = "create_session"
	StepClaimSession  = "claim_session"
	StepOpenSite      = "open_site"
	StepAwaitAuth     = "await_auth"
	StepStartRecord   = "start_record"
	StepCategory      = "select_category"
	StepSubCategory   = "select_sub_category"
	StepNext          = "next_page"
	StepFillFields    = "fill_fields"
	StepUploadDocs    = "upload_documents"
	StepFillPrefix    = "fill:"
	StepUploadPrefix  = "upload:"
	StepTriggerPrefix = "open_upload:"
)

var (
	// ErrAuthWaitExhausted is fatal only when AbortOnAuthTimeout is set
	ErrAuthWaitExhausted = errors.New("login was not detected in time")
	// ErrDocumentUpload marks a document that could not be attached
	ErrDocumentUpload = errors.New("document upload failed")
)

// AbortError is returned when the workflow stops before human review.
// State is the last state reached; Step is the step that failed.
type AbortError struct {
	Step      string
	State     State
	SessionID string
	Err       error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("submission aborted during %s (last state %s): %v", e.Step, e.State, e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

package models

import "time"

// Texts holds the free-form case texts
type Texts struct {
	Title         string `json:"title,omitempty"`
	Facts         string `json:"facts,omitempty"`
	Claims        string `json:"claims,omitempty"`
	Amount        string `json:"amount,omitempty"`
	AmountInWords string `json:"amountInWords,omitempty"`
}

// Amounts is the numeric breakdown of the claim. Total is authoritative
// when Texts.Amount is absent.
type Amounts struct {
	OverdueRent  float64 `json:"overdueRent,omitempty" jsonschema:"minimum=0"`
	LateFees     float64 `json:"lateFees,omitempty" jsonschema:"minimum=0"`
	Violations   float64 `json:"violations,omitempty" jsonschema:"minimum=0"`
	OtherFees    float64 `json:"otherFees,omitempty" jsonschema:"minimum=0"`
	Total        float64 `json:"total,omitempty" jsonschema:"minimum=0"`
	TotalInWords string  `json:"totalInWords,omitempty"`
}

// CounterParty is the defendant
type CounterParty struct {
	Name       string `json:"name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	NationalID string `json:"nationalId,omitempty"`
}

// SubmissionRequest is the structured case data supplied by the caller.
// The workflow only reads it.
type SubmissionRequest struct {
	Texts        Texts             `json:"texts,omitempty"`
	Amounts      Amounts           `json:"amounts,omitempty"`
	CounterParty CounterParty      `json:"counterParty,omitempty"`
	Documents    map[string]string `json:"documents,omitempty"`
}

// StepOutcome is the result of one workflow step
type StepOutcome string

const (
	OutcomeSuccess StepOutcome = "success"
	OutcomeSkipped StepOutcome = "skipped"
	OutcomeFailed  StepOutcome = "failed"
)

// StepResult records what happened in one step, for diagnostics only
type StepResult struct {
	Step    string      `json:"step"`
	Outcome StepOutcome `json:"outcome"`
	Detail  string      `json:"detail,omitempty"`
}

// SubmissionResult is returned when the workflow reaches human review
type SubmissionResult struct {
	Success      bool         `json:"success"`
	SubmissionID string       `json:"submissionId,omitempty"`
	SessionID    string       `json:"sessionId,omitempty"`
	LiveURL      string       `json:"liveUrl,omitempty"`
	Message      string       `json:"message"`
	Warnings     []string     `json:"warnings,omitempty"`
	Steps        []StepResult `json:"steps,omitempty"`
}

// SubmissionStatus tracks a submission's session in the registry
type SubmissionStatus string

const (
	SubmissionRunning        SubmissionStatus = "running"
	SubmissionAwaitingReview SubmissionStatus = "awaiting_review"
	SubmissionClosed         SubmissionStatus = "closed"
	SubmissionExpired        SubmissionStatus = "expired"
	SubmissionAborted        SubmissionStatus = "aborted"
)

// SubmissionRecord is the registry's view of one submission and the
// session it owns
type SubmissionRecord struct {
	SubmissionID    string           `json:"submissionId"`
	TenantID        string           `json:"tenantId"`
	SessionID       string           `json:"sessionId,omitempty"`
	ConnectURL      string           `json:"-"`
	Status          SubmissionStatus `json:"status"`
	StartedAt       time.Time        `json:"startedAt"`
	ReviewExpiresAt *time.Time       `json:"reviewExpiresAt,omitempty"`
}

// SubmissionDetail is a registry record plus the provider's own view of
// the session, when the provider could be asked
type SubmissionDetail struct {
	SubmissionRecord
	ProviderStatus string `json:"providerStatus,omitempty"`
}

package session

import (
	"fmt"
	"log"
	"time"

	"github.com/shehryarbajwa/casefiler/pkg/models"
)

// Lease is one running submission's hold on a tenant slot. It doubles as
// the workflow's session ledger.
type Lease struct {
	m      *Manager
	record *models.SubmissionRecord
}

// SubmissionID returns the registry ID of the submission
func (l *Lease) SubmissionID() string {
	return l.record.SubmissionID
}

// Claim binds session to this submission. A session already bound to a
// different submission is refused.
func (l *Lease) Claim(session models.SessionHandle) error {
	owner, loaded := l.m.owners.LoadOrStore(session.ID, l.record.SubmissionID)
	if loaded && owner.(string) != l.record.SubmissionID {
		return fmt.Errorf("%w: session %s", ErrAlreadyOwned, session.ShortID())
	}

	l.m.mu.Lock()
	l.record.SessionID = session.ID
	l.record.ConnectURL = session.ConnectURL
	l.m.mu.Unlock()
	return nil
}

// Abandon drops this submission's claim on session
func (l *Lease) Abandon(session models.SessionHandle) {
	l.m.owners.CompareAndDelete(session.ID, l.record.SubmissionID)
}

// Fail marks the submission aborted and frees its slot. The workflow has
// already closed the session by then.
func (l *Lease) Fail() {
	if _, ok := l.m.finish(l.record, models.SubmissionRunning, models.SubmissionAborted); ok {
		log.Printf("❌ Submission %s aborted", models.ShortID(l.record.SubmissionID))
	}
}

// AwaitReview marks the submission as waiting for the operator and starts
// the review timer. The slot stays taken until Close or expiry.
func (l *Lease) AwaitReview() models.SubmissionRecord {
	l.m.mu.Lock()
	if l.record.Status != models.SubmissionRunning {
		snapshot := *l.record
		l.m.mu.Unlock()
		return snapshot
	}
	l.record.Status = models.SubmissionAwaitingReview
	if l.m.reviewTTL > 0 {
		expires := time.Now().Add(l.m.reviewTTL)
		l.record.ReviewExpiresAt = &expires
	}
	snapshot := *l.record
	l.m.mu.Unlock()

	if l.m.reviewTTL > 0 {
		go l.m.handleTimeout(l.record.SubmissionID, l.m.reviewTTL)
	}
	log.Printf("✓ Submission %s awaiting review on session %s", models.ShortID(snapshot.SubmissionID), models.ShortID(snapshot.SessionID))
	return snapshot
}

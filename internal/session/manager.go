package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/shehryarbajwa/casefiler/pkg/models"
)

var (
	ErrNotFound         = errors.New("submission not found")
	ErrAlreadyOwned     = errors.New("session already owned by another submission")
	ErrConcurrencyLimit = errors.New("concurrency limit reached")
	ErrNotOpen          = errors.New("submission has no open session")
)

// Closer releases a provider session
type Closer interface {
	CloseSession(ctx context.Context, session models.SessionHandle)
}

// Manager tracks submissions and the provider sessions they hold open.
// Each tenant may hold a bounded number of sessions at once; a session
// left open for review is closed automatically after the review TTL.
// Finished records are forgotten once the retention period has passed.
type Manager struct {
	records        sync.Map // map[submissionID]*models.SubmissionRecord
	owners         sync.Map // map[sessionID]submissionID
	concurrency    map[string]*semaphore.Weighted
	mu             sync.RWMutex
	closer         Closer
	maxPerTenant   int64
	reviewTTL      time.Duration
	retention      time.Duration
	cleanupTimeout time.Duration
}

// DefaultRetention is how long a finished submission stays queryable
const DefaultRetention = time.Hour

// NewManager creates a submission registry
func NewManager(closer Closer, maxPerTenant int, reviewTTL time.Duration) *Manager {
	if maxPerTenant <= 0 {
		maxPerTenant = 1
	}
	return &Manager{
		concurrency:    make(map[string]*semaphore.Weighted),
		closer:         closer,
		maxPerTenant:   int64(maxPerTenant),
		reviewTTL:      reviewTTL,
		retention:      DefaultRetention,
		cleanupTimeout: 15 * time.Second,
	}
}

// SetRetention changes how long finished records are kept. Zero keeps
// them for the life of the process. Call it before serving requests.
func (m *Manager) SetRetention(d time.Duration) {
	m.retention = d
}

// Begin reserves a slot for tenantID and registers a running submission
func (m *Manager) Begin(tenantID string) (*Lease, error) {
	if err := m.acquireSlot(tenantID); err != nil {
		return nil, err
	}

	record := &models.SubmissionRecord{
		SubmissionID: uuid.New().String(),
		TenantID:     tenantID,
		Status:       models.SubmissionRunning,
		StartedAt:    time.Now(),
	}
	m.records.Store(record.SubmissionID, record)

	return &Lease{m: m, record: record}, nil
}

// Get returns a copy of the submission owned by tenantID
func (m *Manager) Get(tenantID, submissionID string) (models.SubmissionRecord, error) {
	record, err := m.load(tenantID, submissionID)
	if err != nil {
		return models.SubmissionRecord{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return *record, nil
}

// List returns the tenant's submissions, optionally filtered by status
func (m *Manager) List(tenantID string, status models.SubmissionStatus) []models.SubmissionRecord {
	records := []models.SubmissionRecord{}

	m.mu.RLock()
	defer m.mu.RUnlock()

	m.records.Range(func(key, value interface{}) bool {
		record := value.(*models.SubmissionRecord)

		if record.TenantID != tenantID {
			return true
		}
		if status != "" && record.Status != status {
			return true
		}

		records = append(records, *record)
		return true
	})

	return records
}

// LiveTarget returns the provider connect URL of a submission whose session
// is still open
func (m *Manager) LiveTarget(tenantID, submissionID string) (string, error) {
	record, err := m.load(tenantID, submissionID)
	if err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if !isOpen(record.Status) || record.ConnectURL == "" {
		return "", ErrNotOpen
	}
	return record.ConnectURL, nil
}

// Close ends the operator's review: the provider session is closed and the
// tenant's slot released
func (m *Manager) Close(ctx context.Context, tenantID, submissionID string) error {
	record, err := m.load(tenantID, submissionID)
	if err != nil {
		return err
	}

	handle, ok := m.finish(record, models.SubmissionAwaitingReview, models.SubmissionClosed)
	if !ok {
		return ErrNotOpen
	}

	m.closer.CloseSession(ctx, handle)
	log.Printf("✓ Submission %s closed by operator", models.ShortID(submissionID))
	return nil
}

func (m *Manager) load(tenantID, submissionID string) (*models.SubmissionRecord, error) {
	value, ok := m.records.Load(submissionID)
	if !ok {
		return nil, ErrNotFound
	}

	record := value.(*models.SubmissionRecord)
	if record.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return record, nil
}

// finish moves a record from status from to status to, drops session
// ownership and releases the slot. It reports false when the record was
// not in state from, so each terminal transition happens once.
func (m *Manager) finish(record *models.SubmissionRecord, from, to models.SubmissionStatus) (models.SessionHandle, bool) {
	m.mu.Lock()
	if record.Status != from {
		m.mu.Unlock()
		return models.SessionHandle{}, false
	}
	record.Status = to
	record.ReviewExpiresAt = nil
	handle := models.SessionHandle{ID: record.SessionID, ConnectURL: record.ConnectURL}
	m.mu.Unlock()

	if handle.ID != "" {
		m.owners.Delete(handle.ID)
	}
	m.releaseSlot(record.TenantID)
	m.scheduleEviction(record)
	return handle, true
}

// scheduleEviction drops a finished record after the retention period
func (m *Manager) scheduleEviction(record *models.SubmissionRecord) {
	if m.retention <= 0 {
		return
	}
	time.AfterFunc(m.retention, func() {
		if m.records.CompareAndDelete(record.SubmissionID, record) {
			log.Printf("🧹 Forgot submission %s", models.ShortID(record.SubmissionID))
		}
	})
}

// handleTimeout closes a review session nobody closed in time
func (m *Manager) handleTimeout(submissionID string, ttl time.Duration) {
	timer := time.NewTimer(ttl)
	defer timer.Stop()

	<-timer.C

	value, ok := m.records.Load(submissionID)
	if !ok {
		return
	}
	record := value.(*models.SubmissionRecord)

	handle, ok := m.finish(record, models.SubmissionAwaitingReview, models.SubmissionExpired)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cleanupTimeout)
	defer cancel()

	log.Printf("⏱️ Review window expired for submission %s", models.ShortID(submissionID))
	m.closer.CloseSession(ctx, handle)
}

// acquireSlot tries to acquire a concurrency slot for the tenant
func (m *Manager) acquireSlot(tenantID string) error {
	m.mu.Lock()
	sem, exists := m.concurrency[tenantID]
	if !exists {
		sem = semaphore.NewWeighted(m.maxPerTenant)
		m.concurrency[tenantID] = sem
	}
	m.mu.Unlock()

	if !sem.TryAcquire(1) {
		return fmt.Errorf("%w for tenant %s", ErrConcurrencyLimit, tenantID)
	}

	return nil
}

// releaseSlot releases a concurrency slot for the tenant
func (m *Manager) releaseSlot(tenantID string) {
	m.mu.RLock()
	sem := m.concurrency[tenantID]
	m.mu.RUnlock()

	if sem != nil {
		sem.Release(1)
	}
}

func isOpen(status models.SubmissionStatus) bool {
	return status == models.SubmissionRunning || status == models.SubmissionAwaitingReview
}

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/casefiler/pkg/models"
)

type recordingCloser struct {
	mu     sync.Mutex
	closed []string
}

func (c *recordingCloser) CloseSession(ctx context.Context, session models.SessionHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = append(c.closed, session.ID)
}

func (c *recordingCloser) ids() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.closed...)
}

func handle(id string) models.SessionHandle {
	return models.SessionHandle{ID: id, ConnectURL: "wss://provider/" + id, Status: models.SessionActive}
}

func TestBegin_ConcurrencyLimitPerTenant(t *testing.T) {
	m := NewManager(&recordingCloser{}, 2, 0)

	_, err := m.Begin("acme")
	require.NoError(t, err)
	second, err := m.Begin("acme")
	require.NoError(t, err)

	_, err = m.Begin("acme")
	assert.ErrorIs(t, err, ErrConcurrencyLimit)

	_, err = m.Begin("globex")
	assert.NoError(t, err, "limits are per tenant")

	second.Fail()
	_, err = m.Begin("acme")
	assert.NoError(t, err)
}

func TestClaim_RejectsSessionOwnedElsewhere(t *testing.T) {
	m := NewManager(&recordingCloser{}, 3, 0)
	a, _ := m.Begin("acme")
	b, _ := m.Begin("acme")

	require.NoError(t, a.Claim(handle("sess-aaaaaaaa")))
	require.NoError(t, a.Claim(handle("sess-aaaaaaaa")), "re-claiming your own session is fine")

	err := b.Claim(handle("sess-aaaaaaaa"))
	assert.ErrorIs(t, err, ErrAlreadyOwned)

	a.Abandon(handle("sess-aaaaaaaa"))
	assert.NoError(t, b.Claim(handle("sess-aaaaaaaa")))
}

func TestAbandon_OnlyDropsOwnClaim(t *testing.T) {
	m := NewManager(&recordingCloser{}, 3, 0)
	a, _ := m.Begin("acme")
	b, _ := m.Begin("acme")

	require.NoError(t, a.Claim(handle("sess-1")))
	b.Abandon(handle("sess-1"))

	assert.ErrorIs(t, b.Claim(handle("sess-1")), ErrAlreadyOwned)
}

func TestAwaitReviewAndClose(t *testing.T) {
	closer := &recordingCloser{}
	m := NewManager(closer, 1, time.Hour)

	lease, err := m.Begin("acme")
	require.NoError(t, err)
	require.NoError(t, lease.Claim(handle("sess-review")))

	rec := lease.AwaitReview()
	assert.Equal(t, models.SubmissionAwaitingReview, rec.Status)
	require.NotNil(t, rec.ReviewExpiresAt)

	target, err := m.LiveTarget("acme", lease.SubmissionID())
	require.NoError(t, err)
	assert.Equal(t, "wss://provider/sess-review", target)

	_, err = m.Begin("acme")
	assert.ErrorIs(t, err, ErrConcurrencyLimit, "a session under review keeps its slot")

	require.NoError(t, m.Close(context.Background(), "acme", lease.SubmissionID()))
	assert.Equal(t, []string{"sess-review"}, closer.ids())

	got, err := m.Get("acme", lease.SubmissionID())
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionClosed, got.Status)
	assert.Nil(t, got.ReviewExpiresAt)

	assert.ErrorIs(t, m.Close(context.Background(), "acme", lease.SubmissionID()), ErrNotOpen)
	_, err = m.LiveTarget("acme", lease.SubmissionID())
	assert.ErrorIs(t, err, ErrNotOpen)

	_, err = m.Begin("acme")
	assert.NoError(t, err)
}

func TestReviewExpiry(t *testing.T) {
	closer := &recordingCloser{}
	m := NewManager(closer, 1, 20*time.Millisecond)

	lease, _ := m.Begin("acme")
	require.NoError(t, lease.Claim(handle("sess-expire")))
	lease.AwaitReview()

	assert.Eventually(t, func() bool {
		rec, err := m.Get("acme", lease.SubmissionID())
		return err == nil && rec.Status == models.SubmissionExpired
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return len(closer.ids()) == 1
	}, time.Second, 5*time.Millisecond)

	_, err := m.Begin("acme")
	assert.NoError(t, err)
}

func TestFail_DoesNotCloseSession(t *testing.T) {
	closer := &recordingCloser{}
	m := NewManager(closer, 1, 0)

	lease, _ := m.Begin("acme")
	require.NoError(t, lease.Claim(handle("sess-fail")))
	lease.Fail()
	lease.Fail()

	rec, err := m.Get("acme", lease.SubmissionID())
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionAborted, rec.Status)
	assert.Empty(t, closer.ids())

	// Fail ran twice but only one slot was released
	_, err = m.Begin("acme")
	require.NoError(t, err)
	_, err = m.Begin("acme")
	assert.ErrorIs(t, err, ErrConcurrencyLimit)
}

func TestGetAndList_ScopedToTenant(t *testing.T) {
	m := NewManager(&recordingCloser{}, 3, 0)
	a, _ := m.Begin("acme")
	b, _ := m.Begin("acme")
	_, _ = m.Begin("globex")
	b.Fail()

	_, err := m.Get("globex", a.SubmissionID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get("acme", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Len(t, m.List("acme", ""), 2)
	running := m.List("acme", models.SubmissionRunning)
	require.Len(t, running, 1)
	assert.Equal(t, a.SubmissionID(), running[0].SubmissionID)
	assert.Empty(t, m.List("initech", ""))
}

func TestRetention_ForgetsFinishedRecords(t *testing.T) {
	m := NewManager(&recordingCloser{}, 2, 0)
	m.SetRetention(20 * time.Millisecond)

	aborted, err := m.Begin("acme")
	require.NoError(t, err)
	aborted.Fail()

	review, err := m.Begin("acme")
	require.NoError(t, err)
	require.NoError(t, review.Claim(handle("sess-bbbbbbbb")))
	review.AwaitReview()

	assert.Eventually(t, func() bool {
		_, err := m.Get("acme", aborted.SubmissionID())
		return errors.Is(err, ErrNotFound)
	}, time.Second, 5*time.Millisecond)

	// still under review, so still listed
	time.Sleep(40 * time.Millisecond)
	rec, err := m.Get("acme", review.SubmissionID())
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionAwaitingReview, rec.Status)

	require.NoError(t, m.Close(context.Background(), "acme", review.SubmissionID()))
	assert.Eventually(t, func() bool {
		return len(m.List("acme", "")) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRetention_ZeroKeepsRecords(t *testing.T) {
	m := NewManager(&recordingCloser{}, 1, 0)
	m.SetRetention(0)

	lease, err := m.Begin("acme")
	require.NoError(t, err)
	lease.Fail()

	time.Sleep(20 * time.Millisecond)
	rec, err := m.Get("acme", lease.SubmissionID())
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionAborted, rec.Status)
}

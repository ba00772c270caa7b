package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/segyhp/lead-intake/internal/domain"
	"github.com/segyhp/lead-intake/internal/repository"
)

// flakyLogs fails the first failures appends.
type flakyLogs struct {
	repository.EmailLogRepository
	failures int
}

func (f *flakyLogs) Append(ctx context.Context, entry *domain.EmailLog) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("log table locked")
	}
	return f.EmailLogRepository.Append(ctx, entry)
}

// flakyOutbox fails the first markSentFailures MarkSent calls.
type flakyOutbox struct {
	repository.OutboxRepository
	markSentFailures int
	markSentCalls    int
}

func (f *flakyOutbox) MarkSent(ctx context.Context, id string, at time.Time) error {
	f.markSentCalls++
	if f.markSentFailures > 0 {
		f.markSentFailures--
		return errors.New("connection reset")
	}
	return f.OutboxRepository.MarkSent(ctx, id, at)
}

type dispatcherFixture struct {
	store  *repository.MemoryStore
	mailer *recordingMailer
	now    time.Time
	d      *Dispatcher
}

func newDispatcherFixture(t *testing.T, logs repository.EmailLogRepository, maxAttempts int) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{
		mailer: &recordingMailer{},
		now:    time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.store = repository.NewMemoryStore().WithClock(clock)
	if logs == nil {
		logs = f.store.EmailLogs()
	}

	n := New(f.mailer, logs, zap.NewNop(), nil)
	f.d = NewDispatcher(f.store.Outbox(), n, DispatcherConfig{
		BatchSize:   10,
		MaxAttempts: maxAttempts,
		Backoff:     time.Minute,
		Timeout:     5 * time.Second,
	}, zap.NewNop(), nil).WithClock(clock)

	require.NoError(t, f.store.Applications().Create(context.Background(), &domain.Application{
		ID:        "app-1",
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@example.com",
		Status:    domain.StatusPending,
		CreatedAt: f.now,
	}))
	return f
}

func (f *dispatcherFixture) transition(t *testing.T, to domain.Status) {
	t.Helper()
	_, err := f.store.Applications().UpdateStatus(context.Background(), "app-1", to)
	require.NoError(t, err)
}

func TestDispatcher_DeliversOnce(t *testing.T) {
	f := newDispatcherFixture(t, nil, 5)
	ctx := context.Background()
	f.transition(t, domain.StatusApproved)

	result, err := f.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunResult{Claimed: 1, Delivered: 1}, result)
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "Your Application Status: Approved", f.mailer.sent[0].Subject)

	// nothing left to do
	result, err = f.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Claimed)
	assert.Len(t, f.mailer.sent, 1)

	logs, err := f.store.EmailLogs().ListByApplication(ctx, "app-1")
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestDispatcher_RetriesWithBackoff(t *testing.T) {
	f := newDispatcherFixture(t, nil, 5)
	ctx := context.Background()
	f.transition(t, domain.StatusRejected)
	f.mailer.err = errors.New("smtp down")

	result, err := f.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	// backoff of one minute has not elapsed yet
	f.mailer.err = nil
	f.now = f.now.Add(30 * time.Second)
	result, err = f.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Claimed)

	f.now = f.now.Add(time.Minute)
	result, err = f.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Delivered)
	assert.Len(t, f.mailer.sent, 1)
}

func TestDispatcher_LogFailureDoesNotResend(t *testing.T) {
	flaky := &flakyLogs{failures: 1}
	f := newDispatcherFixture(t, flaky, 5)
	flaky.EmailLogRepository = f.store.EmailLogs()
	ctx := context.Background()
	f.transition(t, domain.StatusApproved)

	result, err := f.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, f.mailer.sent, 1)

	f.now = f.now.Add(2 * time.Minute)
	result, err = f.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Delivered)
	assert.Len(t, f.mailer.sent, 1, "email must not be sent twice")

	logs, err := f.store.EmailLogs().ListByApplication(ctx, "app-1")
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestDispatcher_MarkSentRetriedBeforeLogWrite(t *testing.T) {
	flaky := &flakyLogs{failures: 1}
	f := newDispatcherFixture(t, flaky, 5)
	flaky.EmailLogRepository = f.store.EmailLogs()
	outbox := &flakyOutbox{OutboxRepository: f.store.Outbox(), markSentFailures: 1}
	clock := func() time.Time { return f.now }
	n := New(f.mailer, flaky, zap.NewNop(), nil)
	f.d = NewDispatcher(outbox, n, DispatcherConfig{
		BatchSize:   10,
		MaxAttempts: 5,
		Backoff:     time.Minute,
		Timeout:     5 * time.Second,
	}, zap.NewNop(), nil).WithClock(clock)
	ctx := context.Background()
	f.transition(t, domain.StatusApproved)

	result, err := f.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, outbox.markSentCalls)
	require.Len(t, f.mailer.sent, 1)

	f.now = f.now.Add(2 * time.Minute)
	result, err = f.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Delivered)
	assert.Len(t, f.mailer.sent, 1, "email must not be sent twice")
}

func TestDispatcher_ExhaustsAttempts(t *testing.T) {
	f := newDispatcherFixture(t, nil, 2)
	ctx := context.Background()
	f.transition(t, domain.StatusApproved)
	f.mailer.err = errors.New("smtp down")

	result, err := f.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Exhausted)

	f.now = f.now.Add(time.Hour)
	result, err = f.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Exhausted)

	f.now = f.now.Add(24 * time.Hour)
	result, err = f.d.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Claimed)

	pending, err := f.store.Outbox().CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending, "exhausted tasks stay for follow-up")
}

func TestDispatcher_Backoff(t *testing.T) {
	d := NewDispatcher(nil, nil, DispatcherConfig{Backoff: time.Minute}, zap.NewNop(), nil)
	assert.Equal(t, time.Minute, d.backoff(1))
	assert.Equal(t, 2*time.Minute, d.backoff(2))
	assert.Equal(t, 4*time.Minute, d.backoff(3))
	assert.Equal(t, maxBackoff, d.backoff(20))
}

func TestDispatcher_KickRunsPass(t *testing.T) {
	f := newDispatcherFixture(t, nil, 5)
	f.transition(t, domain.StatusApproved)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.d.Run(ctx)

	f.d.Kick()
	f.d.Kick()

	assert.Eventually(t, func() bool {
		pending, err := f.store.Outbox().CountPending(context.Background())
		return err == nil && pending == 0
	}, 2*time.Second, 10*time.Millisecond)
}

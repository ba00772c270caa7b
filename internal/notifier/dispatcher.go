package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/segyhp/lead-intake/internal/config"
	"github.com/segyhp/lead-intake/internal/domain"
	"github.com/segyhp/lead-intake/internal/metrics"
	"github.com/segyhp/lead-intake/internal/repository"
)

const (
	maxBackoff = time.Hour

	markSentAttempts   = 3
	markSentRetryDelay = 50 * time.Millisecond
)

// DispatcherConfig tunes outbox draining.
type DispatcherConfig struct {
	BatchSize   int
	MaxAttempts int
	Backoff     time.Duration
	// Timeout bounds one task; it is also the lease on a claimed task.
	Timeout time.Duration
}

// DispatcherConfigFrom maps NOTIFY_* settings.
func DispatcherConfigFrom(cfg config.NotifyConfig) DispatcherConfig {
	return DispatcherConfig{
		BatchSize:   cfg.BatchSize,
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     cfg.Backoff,
		Timeout:     cfg.Timeout,
	}
}

// RunResult summarizes one outbox pass.
type RunResult struct {
	Claimed   int
	Delivered int
	Failed    int
	Exhausted int
}

// Dispatcher drains the notification outbox.
type Dispatcher struct {
	outbox   repository.OutboxRepository
	notifier *Notifier
	cfg      DispatcherConfig
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	running sync.Mutex
	kick    chan struct{}
}

func NewDispatcher(outbox repository.OutboxRepository, n *Notifier, cfg DispatcherConfig, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Dispatcher{
		outbox:   outbox,
		notifier: n,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		kick:     make(chan struct{}, 1),
	}
}

// WithClock replaces the time source, for tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Kick asks Run for an immediate pass. It never blocks.
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Run serves kicks until ctx ends.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.kick:
			if _, err := d.RunOnce(ctx); err != nil {
				d.logger.Error("outbox pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce claims and processes one batch of due tasks. A pass already in
// progress in this process makes it return immediately.
func (d *Dispatcher) RunOnce(ctx context.Context) (RunResult, error) {
	var result RunResult

	if !d.running.TryLock() {
		return result, nil
	}
	defer d.running.Unlock()

	tasks, err := d.outbox.ClaimDue(ctx, d.now(), d.cfg.BatchSize, d.cfg.MaxAttempts, d.cfg.Timeout)
	if err != nil {
		return result, err
	}
	result.Claimed = len(tasks)

	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		switch d.process(ctx, task) {
		case outcomeDelivered:
			result.Delivered++
		case outcomeRetry:
			result.Failed++
		case outcomeExhausted:
			result.Failed++
			result.Exhausted++
		}
	}

	if pending, err := d.outbox.CountPending(ctx); err == nil {
		d.metrics.OutboxPending(pending)
	}

	if result.Claimed > 0 {
		d.logger.Info("outbox pass complete",
			zap.Int("claimed", result.Claimed),
			zap.Int("delivered", result.Delivered),
			zap.Int("failed", result.Failed),
			zap.Int("exhausted", result.Exhausted),
		)
	}
	return result, nil
}

type outcome int

const (
	outcomeDelivered outcome = iota
	outcomeRetry
	outcomeExhausted
)

// process sends then records. A task already marked sent only redoes the
// email log write. The sent marker is retried before moving on; a task
// whose marker could not be stored and whose log write then fails is sent
// again on its next attempt.
func (d *Dispatcher) process(ctx context.Context, task *domain.NotificationTask) outcome {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	change := task.Change()

	if task.SentAt == nil {
		sent, err := d.notifier.Send(ctx, change)
		if err != nil {
			return d.fail(ctx, task, err)
		}
		if !sent {
			return d.deliver(ctx, task)
		}
		if err := d.markSent(ctx, task); err != nil {
			d.logger.Warn("failed to mark notification sent", zap.String("task_id", task.ID), zap.Error(err))
		}
	}

	if err := d.notifier.Record(ctx, change); err != nil {
		return d.fail(ctx, task, err)
	}

	return d.deliver(ctx, task)
}

func (d *Dispatcher) markSent(ctx context.Context, task *domain.NotificationTask) error {
	var err error
	for i := 0; i < markSentAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			case <-time.After(markSentRetryDelay):
			}
		}
		if err = d.outbox.MarkSent(ctx, task.ID, d.now()); err == nil {
			return nil
		}
	}
	return err
}

func (d *Dispatcher) deliver(ctx context.Context, task *domain.NotificationTask) outcome {
	if err := d.outbox.MarkDelivered(ctx, task.ID, d.now()); err != nil {
		d.logger.Error("failed to mark notification delivered", zap.String("task_id", task.ID), zap.Error(err))
		return outcomeRetry
	}
	return outcomeDelivered
}

func (d *Dispatcher) fail(ctx context.Context, task *domain.NotificationTask, cause error) outcome {
	now := d.now()
	exhausted := task.Attempts >= d.cfg.MaxAttempts
	next := now.Add(d.backoff(task.Attempts))
	if exhausted {
		next = now
	}

	if err := d.outbox.MarkFailed(ctx, task.ID, cause.Error(), next); err != nil {
		d.logger.Error("failed to record notification failure", zap.String("task_id", task.ID), zap.Error(err))
	}

	if exhausted {
		d.logger.Error("notification attempts exhausted",
			zap.String("task_id", task.ID),
			zap.String("application_id", task.ApplicationID),
			zap.Int("attempts", task.Attempts),
			zap.Error(cause),
		)
		return outcomeExhausted
	}

	d.logger.Warn("notification will be retried",
		zap.String("task_id", task.ID),
		zap.String("application_id", task.ApplicationID),
		zap.Int("attempts", task.Attempts),
		zap.Time("next_attempt_at", next),
		zap.Error(cause),
	)
	return outcomeRetry
}

// backoff doubles per attempt starting at cfg.Backoff, capped at maxBackoff.
func (d *Dispatcher) backoff(attempts int) time.Duration {
	delay := d.cfg.Backoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

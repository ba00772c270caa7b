package repository

import (
	"context"
	"errors"
	"time"

	"github.com/segyhp/lead-intake/internal/domain"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// ApplicationRepository defines the interface for application data operations
type ApplicationRepository interface {
	// Create persists a new application
	Create(ctx context.Context, app *domain.Application) error

	// GetByID retrieves an application by its ID
	GetByID(ctx context.Context, id string) (*domain.Application, error)

	// List returns every application, newest first
	List(ctx context.Context) ([]*domain.Application, error)

	// UpdateStatus writes status, refreshes updated_at and, when the status
	// actually changed, enqueues a notification task in the same transaction.
	// Transition legality is not checked here.
	UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.StatusChange, error)
}

// EmailLogRepository is the append-only audit trail of sent status emails
type EmailLogRepository interface {
	// Append records a sent email; SentAt is assigned by the store
	Append(ctx context.Context, entry *domain.EmailLog) error

	// ListByApplication returns the log entries of one application, oldest first
	ListByApplication(ctx context.Context, applicationID string) ([]*domain.EmailLog, error)
}

// OutboxRepository hands out pending notification tasks
type OutboxRepository interface {
	// ClaimDue leases up to limit undelivered tasks whose next attempt is due
	// and which have fewer than maxAttempts attempts, incrementing their attempt count
	ClaimDue(ctx context.Context, now time.Time, limit, maxAttempts int, lease time.Duration) ([]*domain.NotificationTask, error)

	// MarkSent records that the email went out, so a retry only redoes the audit write
	MarkSent(ctx context.Context, id string, at time.Time) error

	// MarkDelivered completes a task
	MarkDelivered(ctx context.Context, id string, at time.Time) error

	// MarkFailed stores the error and schedules the next attempt
	MarkFailed(ctx context.Context, id string, reason string, nextAttemptAt time.Time) error

	// CountPending counts undelivered tasks
	CountPending(ctx context.Context) (int, error)
}

// AdminRepository stores admin credentials
type AdminRepository interface {
	// FindByEmail returns ErrNotFound when no admin uses email
	FindByEmail(ctx context.Context, email string) (*domain.AdminCredential, error)

	// Create inserts a new admin credential
	Create(ctx context.Context, admin *domain.AdminCredential) error
}

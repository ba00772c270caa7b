package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/lead-intake/internal/domain"
)

type outboxRepository struct {
	db *sqlx.DB
}

func NewOutboxRepository(db *sqlx.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

const outboxColumns = `id, application_id, email, recipient_name, status, attempts, last_error, created_at, next_attempt_at, sent_at, delivered_at`

func (r *outboxRepository) ClaimDue(ctx context.Context, now time.Time, limit, maxAttempts int, lease time.Duration) ([]*domain.NotificationTask, error) {
	// SKIP LOCKED lets the server and a standalone scheduler drain the same table.
	query := `
		UPDATE notification_outbox
		SET attempts = attempts + 1, next_attempt_at = $2
		WHERE id IN (
			SELECT id FROM notification_outbox
			WHERE delivered_at IS NULL AND attempts < $3 AND next_attempt_at <= $1
			ORDER BY created_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns

	tasks := []*domain.NotificationTask{}
	if err := r.db.SelectContext(ctx, &tasks, query, now, now.Add(lease), maxAttempts, limit); err != nil {
		return nil, err
	}

	return tasks, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE notification_outbox SET sent_at = $2 WHERE id = $1`, id, at)
}

func (r *outboxRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE notification_outbox SET delivered_at = $2, last_error = NULL WHERE id = $1`, id, at)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, reason string, nextAttemptAt time.Time) error {
	return r.exec(ctx, `UPDATE notification_outbox SET last_error = $2, next_attempt_at = $3 WHERE id = $1`, id, reason, nextAttemptAt)
}

func (r *outboxRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notification_outbox WHERE delivered_at IS NULL`)
	return count, err
}

func (r *outboxRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

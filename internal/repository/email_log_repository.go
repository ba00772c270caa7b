package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/lead-intake/internal/domain"
)

type emailLogRepository struct {
	db *sqlx.DB
}

func NewEmailLogRepository(db *sqlx.DB) EmailLogRepository {
	return &emailLogRepository{db: db}
}

func (r *emailLogRepository) Append(ctx context.Context, entry *domain.EmailLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	query := `
		INSERT INTO email_logs (id, application_id, email, status, sent_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING sent_at
	`

	return r.db.QueryRowxContext(ctx, query, entry.ID, entry.ApplicationID, entry.Email, entry.Status).Scan(&entry.SentAt)
}

func (r *emailLogRepository) ListByApplication(ctx context.Context, applicationID string) ([]*domain.EmailLog, error) {
	query := `
		SELECT id, application_id, email, status, sent_at
		FROM email_logs
		WHERE application_id = $1
		ORDER BY sent_at
	`

	entries := []*domain.EmailLog{}
	if err := r.db.SelectContext(ctx, &entries, query, applicationID); err != nil {
		return nil, err
	}

	return entries, nil
}

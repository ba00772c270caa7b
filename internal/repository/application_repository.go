package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/lead-intake/internal/domain"
)

type applicationRepository struct {
	db *sqlx.DB
}

func NewApplicationRepository(db *sqlx.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

const applicationColumns = `id, first_name, last_name, email, phone, location, loan_amount, loan_duration, status, created_at, updated_at`

func (r *applicationRepository) Create(ctx context.Context, app *domain.Application) error {
	query := `
		INSERT INTO applications (id, first_name, last_name, email, phone, location, loan_amount, loan_duration, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		app.ID,
		app.FirstName,
		app.LastName,
		app.Email,
		app.Phone,
		app.Location,
		app.LoanAmount,
		app.LoanDuration,
		app.Status,
		app.CreatedAt,
	)

	return err
}

func (r *applicationRepository) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`

	var app domain.Application
	err := r.db.GetContext(ctx, &app, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &app, nil
}

func (r *applicationRepository) List(ctx context.Context) ([]*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications ORDER BY created_at DESC, id DESC`

	apps := []*domain.Application{}
	if err := r.db.SelectContext(ctx, &apps, query); err != nil {
		return nil, err
	}

	return apps, nil
}

func (r *applicationRepository) UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.StatusChange, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var current domain.Application
	err = tx.GetContext(ctx, &current, `SELECT `+applicationColumns+` FROM applications WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var updatedAt time.Time
	err = tx.QueryRowxContext(ctx,
		`UPDATE applications SET status = $2, updated_at = now() WHERE id = $1 RETURNING updated_at`,
		id, status,
	).Scan(&updatedAt)
	if err != nil {
		return nil, err
	}

	change := &domain.StatusChange{
		ApplicationID: id,
		Email:         current.Email,
		RecipientName: current.FullName(),
		OldStatus:     current.Status,
		NewStatus:     status,
		ChangedAt:     updatedAt,
	}

	if change.Changed() {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO notification_outbox (id, application_id, email, recipient_name, status, attempts, created_at, next_attempt_at)
			VALUES ($1, $2, $3, $4, $5, 0, $6, $6)
		`, uuid.NewString(), id, change.Email, change.RecipientName, status, updatedAt)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return change, nil
}

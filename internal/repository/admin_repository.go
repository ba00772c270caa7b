package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/lead-intake/internal/domain"
)

type adminRepository struct {
	db *sqlx.DB
}

func NewAdminRepository(db *sqlx.DB) AdminRepository {
	return &adminRepository{db: db}
}

func (r *adminRepository) FindByEmail(ctx context.Context, email string) (*domain.AdminCredential, error) {
	query := `
		SELECT id, email, password_hash, name, created_at
		FROM admins
		WHERE email = $1
	`

	var admin domain.AdminCredential
	err := r.db.GetContext(ctx, &admin, query, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &admin, nil
}

func (r *adminRepository) Create(ctx context.Context, admin *domain.AdminCredential) error {
	if admin.ID == "" {
		admin.ID = uuid.NewString()
	}
	admin.Email = strings.ToLower(strings.TrimSpace(admin.Email))

	query := `
		INSERT INTO admins (id, email, password_hash, name, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING created_at
	`

	return r.db.QueryRowxContext(ctx, query, admin.ID, admin.Email, admin.PasswordHash, admin.Name).Scan(&admin.CreatedAt)
}

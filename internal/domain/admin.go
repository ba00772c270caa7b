package domain

import "time"

const RoleAdmin = "admin"

// AdminCredential is a stored admin login.
type AdminCredential struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Name         string    `db:"name"`
	CreatedAt    time.Time `db:"created_at"`
}

// Identity is the set of claims carried by a verified admin session.
type Identity struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyResponse struct {
	Valid bool      `json:"valid"`
	User  *Identity `json:"user"`
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/segyhp/lead-intake/internal/domain"
	"github.com/segyhp/lead-intake/internal/repository"
)

// HashCost matches the cost used when seeding admin accounts.
const HashCost = 12

var ErrInvalidCredentials = errors.New("invalid credentials")

// dummyHash is compared against when the email is unknown. It uses HashCost
// so both failure paths cost one full bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("lead-intake-dummy"), HashCost)

// CredentialStore looks up admin credentials by email.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.AdminCredential, error)
}

// StaticCredentialStore serves a single configured admin.
type StaticCredentialStore struct {
	credential domain.AdminCredential
}

// NewStaticCredentialStore hashes password unless passwordHash is already provided.
func NewStaticCredentialStore(email, password, passwordHash string) (*StaticCredentialStore, error) {
	if passwordHash == "" {
		hashed, err := HashPassword(password)
		if err != nil {
			return nil, err
		}
		passwordHash = hashed
	}
	return &StaticCredentialStore{
		credential: domain.AdminCredential{
			ID:           "static-admin",
			Email:        normalizeEmail(email),
			PasswordHash: passwordHash,
			Name:         "Admin User",
		},
	}, nil
}

func (s *StaticCredentialStore) FindByEmail(_ context.Context, email string) (*domain.AdminCredential, error) {
	if normalizeEmail(email) != s.credential.Email {
		return nil, repository.ErrNotFound
	}
	c := s.credential
	return &c, nil
}

// HashPassword returns the bcrypt hash stored for admin accounts.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), HashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Authenticator is the credential check behind the admin login.
type Authenticator struct {
	store  CredentialStore
	tokens *TokenManager
}

func NewAuthenticator(store CredentialStore, tokens *TokenManager) *Authenticator {
	return &Authenticator{store: store, tokens: tokens}
}

// Authenticate returns a signed admin session token. Every credential
// mismatch yields ErrInvalidCredentials; only store failures differ.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (string, time.Time, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", time.Time{}, ErrInvalidCredentials
	}

	credential, err := a.store.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return "", time.Time{}, fmt.Errorf("look up admin credential: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", time.Time{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(credential.PasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	return a.tokens.Issue(domain.Identity{Email: credential.Email, Role: domain.RoleAdmin})
}

// Verify is the session check run before any admin data is served.
func (a *Authenticator) Verify(token string) (*domain.Identity, error) {
	identity, err := a.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	if identity.Role != domain.RoleAdmin {
		return nil, ErrInvalidToken
	}
	return identity, nil
}

func (a *Authenticator) SessionTTL() time.Duration {
	return a.tokens.TTL()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

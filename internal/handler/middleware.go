package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/segyhp/lead-intake/internal/domain"
	"github.com/segyhp/lead-intake/pkg/response"
)

// SessionCookie carries the admin session token.
const SessionCookie = "adminToken"

type contextKey string

const identityKey contextKey = "identity"

// SessionVerifier checks a presented session token.
type SessionVerifier interface {
	Verify(token string) (*domain.Identity, error)
}

// SessionMiddleware rejects requests without a valid admin session and puts
// the verified identity into the request context.
func SessionMiddleware(verifier SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := verifier.Verify(sessionToken(r))
			if err != nil {
				response.Unauthorized(w, notAuthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the identity stored by SessionMiddleware.
func IdentityFromContext(ctx context.Context) (*domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*domain.Identity)
	return identity, ok && identity != nil
}

// sessionToken prefers the cookie and falls back to a bearer header.
func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

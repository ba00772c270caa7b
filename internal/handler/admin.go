package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/segyhp/lead-intake/internal/auth"
	"github.com/segyhp/lead-intake/internal/domain"
	"github.com/segyhp/lead-intake/internal/lifecycle"
	"github.com/segyhp/lead-intake/internal/metrics"
	"github.com/segyhp/lead-intake/internal/review"
	customError "github.com/segyhp/lead-intake/pkg/errors"
	"github.com/segyhp/lead-intake/pkg/response"
)

const streamWriteTimeout = 10 * time.Second

// Authenticator checks admin credentials and session tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (string, time.Time, error)
	Verify(token string) (*domain.Identity, error)
	SessionTTL() time.Duration
}

type AdminHandler struct {
	auth         Authenticator
	surface      *review.Surface
	logger       *zap.Logger
	metrics      *metrics.Metrics
	secureCookie bool
	upgrader     websocket.Upgrader
}

// AdminOptions carries the HTTP-level settings of the admin surface.
type AdminOptions struct {
	// SecureCookie marks the session cookie Secure (production).
	SecureCookie bool
	// AllowedOrigin is checked on websocket upgrades; "*" accepts any.
	AllowedOrigin string
}

func NewAdminHandler(authenticator Authenticator, surface *review.Surface, logger *zap.Logger, m *metrics.Metrics, opts AdminOptions) *AdminHandler {
	return &AdminHandler{
		auth:         authenticator,
		surface:      surface,
		logger:       logger,
		metrics:      m,
		secureCookie: opts.SecureCookie,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigin),
		},
	}
}

func originChecker(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed == "" || allowed == "*" || origin == allowed
	}
}

// Login exchanges admin credentials for a session cookie
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	token, expiresAt, err := h.auth.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.logger.Info("admin login rejected")
		response.Unauthorized(w, "Invalid credentials")
		return
	}
	if err != nil {
		h.logger.Error("admin login failed", zap.Error(err))
		response.InternalServerError(w, "Internal server error", nil)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(h.auth.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	response.Success(w, map[string]interface{}{"expiresAt": expiresAt})
}

// Verify reports the identity behind the current session
func (h *AdminHandler) Verify(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, notAuthorized)
		return
	}
	response.Success(w, domain.VerifyResponse{Valid: true, User: identity})
}

// Logout clears the session cookie. Tokens are not revoked server-side.
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	response.Success(w, map[string]bool{"loggedOut": true})
}

// List returns the filtered application list
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	snap, err := h.surface.List(r.Context(), identity, review.ParseFilter(r.URL.Query()))
	if err != nil {
		writeError(w, h.logger, err, "Failed to load applications")
		return
	}
	response.Success(w, snap)
}

// Detail returns one application and the statuses it may move to
func (h *AdminHandler) Detail(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	id := mux.Vars(r)["id"]

	app, err := h.surface.Get(r.Context(), identity, id)
	if err != nil {
		writeError(w, h.logger, err, "Failed to load application")
		return
	}

	transitions := lifecycle.Allowed(app.Status)
	if transitions == nil {
		transitions = []domain.Status{}
	}
	response.Success(w, domain.ApplicationDetailResponse{Application: app, Transitions: transitions})
}

// UpdateStatus applies an admin transition
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	id := mux.Vars(r)["id"]

	var req domain.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	status, ok := domain.ParseStatus(req.Status)
	if !ok {
		writeError(w, h.logger, &customError.ValidationError{InvalidFields: []string{"status"}}, "")
		return
	}

	change, err := h.surface.Transition(r.Context(), identity, id, status, req.Confirm)
	if err != nil {
		writeError(w, h.logger, err, "Failed to update application status")
		return
	}

	app, err := h.surface.Get(r.Context(), identity, id)
	if err != nil {
		writeError(w, h.logger, err, "Failed to load application")
		return
	}

	response.Success(w, domain.UpdateStatusResponse{Application: app, Changed: change.Changed()})
}

// Stream upgrades to a websocket and pushes filtered snapshots. Clients may
// send a filter object at any time to change what they see.
func (h *AdminHandler) Stream(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.metrics.StreamOpened()
	defer h.metrics.StreamClosed()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// the server's ReadTimeout deadline survives the hijack
	_ = conn.SetReadDeadline(time.Time{})

	filters := make(chan review.Filter, 1)
	go func() {
		defer cancel()
		for {
			f := review.DefaultFilter()
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			select {
			case filters <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	snapshots, err := h.surface.Stream(ctx, identity, review.ParseFilter(r.URL.Query()), filters)
	if err != nil {
		h.closeStream(conn, websocket.CloseInternalServerErr, "subscription failed")
		h.logger.Error("live list subscription failed", zap.Error(err))
		return
	}

	for snap := range snapshots {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(snap); err != nil {
			return
		}
	}

	if ctx.Err() == nil {
		// the source ended on its own; the client should resubscribe
		h.closeStream(conn, websocket.CloseTryAgainLater, "live list unavailable, reconnect to retry")
	}
}

func (h *AdminHandler) closeStream(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

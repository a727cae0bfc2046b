package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/HaruCodeTI/manifeste/api/internal/auth"
	"github.com/HaruCodeTI/manifeste/api/internal/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionManager opens and closes admin sessions. Satisfied by *auth.Sessions.
type SessionManager interface {
	Login(ctx context.Context, email, password string) (string, *auth.Session, error)
	Logout(ctx context.Context, sessionID uuid.UUID) error
}

// AuthHandler handles admin authentication endpoints. Login is public;
// Logout must be mounted behind middleware.Authenticate.
type AuthHandler struct {
	sessions SessionManager
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(sessions SessionManager, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{sessions: sessions, logger: logger}
}

// --- Request / Response types ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Admin     adminResponse `json:"admin"`
}

type adminResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// --- Handlers ---

// Login handles POST /admin/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email e senha são obrigatórios")
		return
	}

	token, session, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.logger.Warn("admin login failed", zap.String("email", req.Email))
			writeError(w, http.StatusUnauthorized, "email ou senha inválidos")
			return
		}
		writeInternal(w, h.logger, "admin login", err)
		return
	}

	h.logger.Info("admin logged in",
		zap.String("admin_id", session.AdminID.String()),
		zap.String("session_id", session.ID.String()),
	)
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		Admin:     adminResponse{ID: session.AdminID, Email: session.Email},
	})
}

// Logout handles POST /admin/auth/logout by revoking the caller's session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	if session == nil {
		writeError(w, http.StatusUnauthorized, "sessão ausente")
		return
	}

	if err := h.sessions.Logout(r.Context(), session.ID); err != nil {
		writeInternal(w, h.logger, "admin logout", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

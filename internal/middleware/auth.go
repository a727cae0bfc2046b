package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/HaruCodeTI/manifeste/api/internal/auth"
	"go.uber.org/zap"
)

type contextKey string

const sessionKey contextKey = "admin_session"

// SessionVerifier resolves a bearer token to a live admin session.
// Satisfied by *auth.Sessions.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Session, error)
}

// Authenticate admits requests carrying a token whose admin session is
// still active and stores the session in the request context.
func Authenticate(verifier SessionVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "sessão ausente"})
				return
			}

			session, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if !errors.Is(err, auth.ErrSessionInvalid) {
					logger.Error("verify admin session", zap.Error(err))
				}
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "sessão inválida ou expirada"})
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// SessionFromContext returns the admin session set by Authenticate, or nil.
func SessionFromContext(ctx context.Context) *auth.Session {
	session, _ := ctx.Value(sessionKey).(*auth.Session)
	return session
}

// WithSession returns ctx carrying session. Used by tests and the websocket
// endpoint, which authenticates outside the middleware chain.
func WithSession(ctx context.Context, session *auth.Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HaruCodeTI/manifeste/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionInvalid     = errors.New("session invalid or expired")
)

// Session is the server-side admin capability attached to a request.
type Session struct {
	ID        uuid.UUID
	AdminID   uuid.UUID
	Email     string
	ExpiresAt time.Time
}

// SessionStore defines the DB methods needed for admin sessions.
// Satisfied by *database.Queries.
type SessionStore interface {
	GetAdminUserByEmail(ctx context.Context, email string) (database.AdminUser, error)
	CreateAdminSession(ctx context.Context, arg database.CreateAdminSessionParams) (database.AdminSession, error)
	GetActiveAdminSession(ctx context.Context, id uuid.UUID) (database.GetActiveAdminSessionRow, error)
	RevokeAdminSession(ctx context.Context, id uuid.UUID) error
}

// Sessions issues and checks admin session tokens. A token is only honoured
// while its admin_sessions row is unexpired and not revoked.
type Sessions struct {
	store  SessionStore
	secret string
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(store SessionStore, secret string, ttl time.Duration) *Sessions {
	return &Sessions{store: store, secret: secret, ttl: ttl, now: time.Now}
}

// Login checks the password and opens a new session.
func (s *Sessions) Login(ctx context.Context, email, password string) (string, *Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.store.GetAdminUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("get admin user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	row, err := s.store.CreateAdminSession(ctx, database.CreateAdminSessionParams{
		AdminID:   user.ID,
		ExpiresAt: s.now().Add(s.ttl),
	})
	if err != nil {
		return "", nil, fmt.Errorf("create admin session: %w", err)
	}

	token, err := GenerateToken(s.secret, row.ID, user.ID, user.Email, row.ExpiresAt)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, &Session{ID: row.ID, AdminID: user.ID, Email: user.Email, ExpiresAt: row.ExpiresAt}, nil
}

// Verify validates the token signature and the session row behind it.
func (s *Sessions) Verify(ctx context.Context, token string) (*Session, error) {
	claims, err := ValidateToken(s.secret, token)
	if err != nil {
		return nil, ErrSessionInvalid
	}
	id, err := claims.SessionID()
	if err != nil {
		return nil, ErrSessionInvalid
	}

	row, err := s.store.GetActiveAdminSession(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionInvalid
		}
		return nil, fmt.Errorf("get admin session: %w", err)
	}
	return &Session{ID: row.ID, AdminID: row.AdminID, Email: row.Email, ExpiresAt: row.ExpiresAt}, nil
}

// Logout revokes the session. Revoking twice is not an error.
func (s *Sessions) Logout(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.store.RevokeAdminSession(ctx, sessionID); err != nil {
		return fmt.Errorf("revoke admin session: %w", err)
	}
	return nil
}

// HashPassword returns the bcrypt hash stored in admin_users.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

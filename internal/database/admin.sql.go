package database

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const createAdminUser = `-- name: CreateAdminUser :one
INSERT INTO admin_users (email, hashed_password)
VALUES ($1, $2)
ON CONFLICT (email) DO UPDATE SET hashed_password = EXCLUDED.hashed_password
RETURNING id, email, hashed_password, created_at
`

type CreateAdminUserParams struct {
	Email          string `json:"email"`
	HashedPassword string `json:"hashed_password"`
}

func (q *Queries) CreateAdminUser(ctx context.Context, arg CreateAdminUserParams) (AdminUser, error) {
	row := q.db.QueryRow(ctx, createAdminUser, arg.Email, arg.HashedPassword)
	var i AdminUser
	err := row.Scan(&i.ID, &i.Email, &i.HashedPassword, &i.CreatedAt)
	return i, err
}

const getAdminUserByEmail = `-- name: GetAdminUserByEmail :one
SELECT id, email, hashed_password, created_at FROM admin_users WHERE lower(email) = lower($1)
`

func (q *Queries) GetAdminUserByEmail(ctx context.Context, email string) (AdminUser, error) {
	row := q.db.QueryRow(ctx, getAdminUserByEmail, email)
	var i AdminUser
	err := row.Scan(&i.ID, &i.Email, &i.HashedPassword, &i.CreatedAt)
	return i, err
}

const createAdminSession = `-- name: CreateAdminSession :one
INSERT INTO admin_sessions (admin_id, expires_at)
VALUES ($1, $2)
RETURNING id, admin_id, expires_at, revoked_at, created_at
`

type CreateAdminSessionParams struct {
	AdminID   uuid.UUID `json:"admin_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (q *Queries) CreateAdminSession(ctx context.Context, arg CreateAdminSessionParams) (AdminSession, error) {
	row := q.db.QueryRow(ctx, createAdminSession, arg.AdminID, arg.ExpiresAt)
	var i AdminSession
	err := row.Scan(
		&i.ID,
		&i.AdminID,
		&i.ExpiresAt,
		&i.RevokedAt,
		&i.CreatedAt,
	)
	return i, err
}

const getActiveAdminSession = `-- name: GetActiveAdminSession :one
SELECT s.id, s.admin_id, s.expires_at, s.revoked_at, s.created_at, u.email
FROM admin_sessions s
JOIN admin_users u ON u.id = s.admin_id
WHERE s.id = $1 AND s.revoked_at IS NULL AND s.expires_at > now()
`

type GetActiveAdminSessionRow struct {
	AdminSession
	Email string `json:"email"`
}

// GetActiveAdminSession returns pgx.ErrNoRows for unknown, expired or revoked sessions.
func (q *Queries) GetActiveAdminSession(ctx context.Context, id uuid.UUID) (GetActiveAdminSessionRow, error) {
	row := q.db.QueryRow(ctx, getActiveAdminSession, id)
	var i GetActiveAdminSessionRow
	err := row.Scan(
		&i.ID,
		&i.AdminID,
		&i.ExpiresAt,
		&i.RevokedAt,
		&i.CreatedAt,
		&i.Email,
	)
	return i, err
}

const revokeAdminSession = `-- name: RevokeAdminSession :exec
UPDATE admin_sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL
`

func (q *Queries) RevokeAdminSession(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, revokeAdminSession, id)
	return err
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rhvlabs/identity/internal/domain"
	apperrors "github.com/rhvlabs/identity/pkg/errors"
)

// SessionTokenRepository implements repository.SessionTokenRepository using PostgreSQL.
type SessionTokenRepository struct {
	db DB
}

// NewSessionTokenRepository creates a new PostgreSQL-backed session repository.
func NewSessionTokenRepository(db DB) *SessionTokenRepository {
	return &SessionTokenRepository{db: db}
}

// Create stores a new session row.
func (r *SessionTokenRepository) Create(ctx context.Context, t *domain.SessionToken) error {
	query := `
		INSERT INTO user_tokens (id, user_id, enabled, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query, t.ID, t.UserID, t.Enabled, t.CreatedAt, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by its identifier.
func (r *SessionTokenRepository) GetByID(ctx context.Context, id string) (*domain.SessionToken, error) {
	query := `
		SELECT id, user_id, enabled, created_at, expires_at, revoked_at
		FROM user_tokens
		WHERE id = $1`

	var t domain.SessionToken
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.UserID, &t.Enabled, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return &t, nil
}

// ListActiveByUserID returns the enabled, unexpired sessions for a user.
func (r *SessionTokenRepository) ListActiveByUserID(ctx context.Context, userID string) ([]domain.SessionToken, error) {
	query := `
		SELECT id, user_id, enabled, created_at, expires_at, revoked_at
		FROM user_tokens
		WHERE user_id = $1 AND enabled = TRUE AND expires_at > NOW()
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var tokens []domain.SessionToken
	for rows.Next() {
		var t domain.SessionToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Enabled, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return tokens, nil
}

// Revoke disables a single session.
func (r *SessionTokenRepository) Revoke(ctx context.Context, id string) error {
	query := `
		UPDATE user_tokens
		SET enabled = FALSE, revoked_at = $1
		WHERE id = $2 AND enabled = TRUE`

	ct, err := r.db.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("session", id)
	}

	return nil
}

// RevokeAllByUserID disables every enabled session for a user.
func (r *SessionTokenRepository) RevokeAllByUserID(ctx context.Context, userID string) (int64, error) {
	query := `
		UPDATE user_tokens
		SET enabled = FALSE, revoked_at = $1
		WHERE user_id = $2 AND enabled = TRUE`

	ct, err := r.db.Exec(ctx, query, time.Now().UTC(), userID)
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions: %w", err)
	}

	return ct.RowsAffected(), nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rhvlabs/identity/internal/domain"
	apperrors "github.com/rhvlabs/identity/pkg/errors"
)

// OneTimeCodeRepository implements repository.OneTimeCodeRepository using PostgreSQL.
type OneTimeCodeRepository struct {
	db DB
}

// NewOneTimeCodeRepository creates a new PostgreSQL-backed code repository.
func NewOneTimeCodeRepository(db DB) *OneTimeCodeRepository {
	return &OneTimeCodeRepository{db: db}
}

// Create stores a new code row.
func (r *OneTimeCodeRepository) Create(ctx context.Context, c *domain.OneTimeCode) error {
	query := `
		INSERT INTO user_codes (id, user_id, purpose, code_hash, enabled, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		c.ID, c.UserID, c.Purpose, c.CodeHash, c.Enabled, c.CreatedAt, c.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert code: %w", err)
	}

	return nil
}

// GetByID retrieves a code by its identifier.
func (r *OneTimeCodeRepository) GetByID(ctx context.Context, id string) (*domain.OneTimeCode, error) {
	query := `
		SELECT id, user_id, purpose, code_hash, enabled, created_at, expires_at
		FROM user_codes
		WHERE id = $1`

	return r.scanCode(ctx, query, id)
}

// GetActive retrieves the most recent enabled, unexpired code for a user
// and purpose.
func (r *OneTimeCodeRepository) GetActive(ctx context.Context, userID, purpose string) (*domain.OneTimeCode, error) {
	query := `
		SELECT id, user_id, purpose, code_hash, enabled, created_at, expires_at
		FROM user_codes
		WHERE user_id = $1 AND purpose = $2 AND enabled = TRUE AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1`

	return r.scanCode(ctx, query, userID, purpose)
}

// DisableAllByUser disables every enabled code for a user and purpose.
func (r *OneTimeCodeRepository) DisableAllByUser(ctx context.Context, userID, purpose string) error {
	query := `
		UPDATE user_codes
		SET enabled = FALSE
		WHERE user_id = $1 AND purpose = $2 AND enabled = TRUE`

	if _, err := r.db.Exec(ctx, query, userID, purpose); err != nil {
		return fmt.Errorf("disable codes: %w", err)
	}

	return nil
}

func (r *OneTimeCodeRepository) scanCode(ctx context.Context, query string, args ...any) (*domain.OneTimeCode, error) {
	var c domain.OneTimeCode

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&c.ID, &c.UserID, &c.Purpose, &c.CodeHash, &c.Enabled, &c.CreatedAt, &c.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan code: %w", err)
	}

	return &c, nil
}

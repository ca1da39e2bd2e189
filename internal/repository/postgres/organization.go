package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rhvlabs/identity/internal/domain"
	apperrors "github.com/rhvlabs/identity/pkg/errors"
)

// OrganizationRepository implements repository.OrganizationRepository using PostgreSQL.
type OrganizationRepository struct {
	db DB
}

// NewOrganizationRepository creates a new PostgreSQL-backed organization repository.
func NewOrganizationRepository(db DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// GetByID retrieves an organization by its identifier.
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	query := `
		SELECT id, name, status, created_at, updated_at
		FROM organizations
		WHERE id = $1`

	var o domain.Organization
	err := r.db.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.Name, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan organization: %w", err)
	}

	return &o, nil
}

// GetMember retrieves a user's membership in an organization.
func (r *OrganizationRepository) GetMember(ctx context.Context, orgID, userID string) (*domain.OrganizationMember, error) {
	query := `
		SELECT id, organization_id, user_id, role, created_at
		FROM organization_members
		WHERE organization_id = $1 AND user_id = $2`

	return r.scanMember(ctx, query, orgID, userID)
}

// GetMemberByID retrieves a membership row by its own identifier.
func (r *OrganizationRepository) GetMemberByID(ctx context.Context, memberID string) (*domain.OrganizationMember, error) {
	query := `
		SELECT id, organization_id, user_id, role, created_at
		FROM organization_members
		WHERE id = $1`

	return r.scanMember(ctx, query, memberID)
}

func (r *OrganizationRepository) scanMember(ctx context.Context, query string, args ...any) (*domain.OrganizationMember, error) {
	var m domain.OrganizationMember

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan organization member: %w", err)
	}

	return &m, nil
}

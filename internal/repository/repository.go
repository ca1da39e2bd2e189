package repository

import (
	"context"

	"github.com/rhvlabs/identity/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user into the store.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// List returns users ordered by creation time, newest first.
	List(ctx context.Context, limit, offset int) ([]domain.User, error)

	// Update modifies an existing user in the store.
	Update(ctx context.Context, user *domain.User) error

	// Delete removes a user from the store by their identifier.
	Delete(ctx context.Context, id string) error
}

// SessionTokenRepository defines the interface for session persistence.
type SessionTokenRepository interface {
	// Create stores a new session row.
	Create(ctx context.Context, token *domain.SessionToken) error

	// GetByID retrieves a session by its identifier.
	GetByID(ctx context.Context, id string) (*domain.SessionToken, error)

	// ListActiveByUserID returns the enabled, unexpired sessions for a user.
	ListActiveByUserID(ctx context.Context, userID string) ([]domain.SessionToken, error)

	// Revoke disables a single session.
	Revoke(ctx context.Context, id string) error

	// RevokeAllByUserID disables every enabled session for a user and
	// returns the number of sessions revoked.
	RevokeAllByUserID(ctx context.Context, userID string) (int64, error)
}

// OneTimeCodeRepository defines the interface for one-time code persistence.
type OneTimeCodeRepository interface {
	// Create stores a new code row.
	Create(ctx context.Context, code *domain.OneTimeCode) error

	// GetByID retrieves a code by its identifier.
	GetByID(ctx context.Context, id string) (*domain.OneTimeCode, error)

	// GetActive retrieves the enabled, unexpired code for a user and purpose.
	GetActive(ctx context.Context, userID, purpose string) (*domain.OneTimeCode, error)

	// DisableAllByUser disables every enabled code for a user and purpose.
	DisableAllByUser(ctx context.Context, userID, purpose string) error
}

// OrganizationRepository defines the interface for organization persistence.
type OrganizationRepository interface {
	// GetByID retrieves an organization by its identifier.
	GetByID(ctx context.Context, id string) (*domain.Organization, error)

	// GetMember retrieves a user's membership in an organization.
	GetMember(ctx context.Context, orgID, userID string) (*domain.OrganizationMember, error)

	// GetMemberByID retrieves a membership row by its own identifier.
	GetMemberByID(ctx context.Context, memberID string) (*domain.OrganizationMember, error)
}

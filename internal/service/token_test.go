package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rhvlabs/identity/internal/domain"
	apperrors "github.com/rhvlabs/identity/pkg/errors"
)

func newTokenTestService(sessionRepo *mockSessionRepository, userRepo *mockUserRepository) *TokenService {
	return NewTokenService(sessionRepo, userRepo, newTestTokenManager(), newTestLogger())
}

func activeUser() *domain.User {
	return &domain.User{
		ID:      "u-1",
		Name:    "Alice",
		Email:   "alice@example.com",
		Role:    domain.RoleUser,
		Enabled: true,
	}
}

func TestTokenService_IssueAndResolve(t *testing.T) {
	sessionRepo := new(mockSessionRepository)
	userRepo := new(mockUserRepository)
	svc := newTokenTestService(sessionRepo, userRepo)
	user := activeUser()

	var createdID string
	sessionRepo.On("Create", mock.Anything, mock.MatchedBy(func(s *domain.SessionToken) bool {
		createdID = s.ID
		return s.UserID == user.ID && s.Enabled
	})).Return(nil)

	token, session, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, createdID, session.ID)

	sessionRepo.On("GetByID", mock.Anything, session.ID).Return(session, nil)
	userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	gotUser, gotSession, err := svc.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, gotUser.ID)
	assert.Equal(t, session.ID, gotSession.ID)
}

func TestTokenService_Resolve_BadSignature(t *testing.T) {
	svc := newTokenTestService(new(mockSessionRepository), new(mockUserRepository))

	_, _, err := svc.Resolve(context.Background(), "garbage.token.value")

	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestTokenService_Resolve_RevokedSession(t *testing.T) {
	sessionRepo := new(mockSessionRepository)
	userRepo := new(mockUserRepository)
	svc := newTokenTestService(sessionRepo, userRepo)
	user := activeUser()

	sessionRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	token, session, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	session.Enabled = false
	sessionRepo.On("GetByID", mock.Anything, session.ID).Return(session, nil)

	_, _, err = svc.Resolve(context.Background(), token)

	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized),
		"revoked session maps to 401, not 403")
}

func TestTokenService_Resolve_DisabledUser(t *testing.T) {
	sessionRepo := new(mockSessionRepository)
	userRepo := new(mockUserRepository)
	svc := newTokenTestService(sessionRepo, userRepo)
	user := activeUser()

	sessionRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	token, session, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	user.Enabled = false
	sessionRepo.On("GetByID", mock.Anything, session.ID).Return(session, nil)
	userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	_, _, err = svc.Resolve(context.Background(), token)

	assert.True(t, errors.Is(err, apperrors.ErrForbidden),
		"disabled account maps to 403")
}

func TestTokenService_Resolve_ExpiredSession(t *testing.T) {
	sessionRepo := new(mockSessionRepository)
	userRepo := new(mockUserRepository)
	svc := newTokenTestService(sessionRepo, userRepo)
	user := activeUser()

	sessionRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	token, session, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	session.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	sessionRepo.On("GetByID", mock.Anything, session.ID).Return(session, nil)

	_, _, err = svc.Resolve(context.Background(), token)

	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestTokenService_Revoke_Owner(t *testing.T) {
	sessionRepo := new(mockSessionRepository)
	svc := newTokenTestService(sessionRepo, new(mockUserRepository))
	user := activeUser()

	session := &domain.SessionToken{ID: "s-1", UserID: user.ID, Enabled: true}
	sessionRepo.On("GetByID", mock.Anything, "s-1").Return(session, nil)
	sessionRepo.On("Revoke", mock.Anything, "s-1").Return(nil)

	err := svc.Revoke(context.Background(), "s-1", user)

	require.NoError(t, err)
	sessionRepo.AssertCalled(t, "Revoke", mock.Anything, "s-1")
}

func TestTokenService_Revoke_AlreadyDisabledIsNoOp(t *testing.T) {
	sessionRepo := new(mockSessionRepository)
	svc := newTokenTestService(sessionRepo, new(mockUserRepository))
	user := activeUser()

	session := &domain.SessionToken{ID: "s-1", UserID: user.ID, Enabled: false}
	sessionRepo.On("GetByID", mock.Anything, "s-1").Return(session, nil)

	err := svc.Revoke(context.Background(), "s-1", user)

	require.NoError(t, err, "repeating a logout must succeed")
	sessionRepo.AssertNotCalled(t, "Revoke", mock.Anything, "s-1")
}

func TestTokenService_Revoke_RacingRevocationIsNoOp(t *testing.T) {
	sessionRepo := new(mockSessionRepository)
	svc := newTokenTestService(sessionRepo, new(mockUserRepository))
	user := activeUser()

	session := &domain.SessionToken{ID: "s-1", UserID: user.ID, Enabled: true}
	sessionRepo.On("GetByID", mock.Anything, "s-1").Return(session, nil)
	sessionRepo.On("Revoke", mock.Anything, "s-1").Return(apperrors.NotFound("session", "s-1"))

	err := svc.Revoke(context.Background(), "s-1", user)

	require.NoError(t, err)
}

func TestTokenService_Revoke_NonOwnerForbidden(t *testing.T) {
	sessionRepo := new(mockSessionRepository)
	svc := newTokenTestService(sessionRepo, new(mockUserRepository))

	session := &domain.SessionToken{ID: "s-1", UserID: "someone-else", Enabled: true}
	sessionRepo.On("GetByID", mock.Anything, "s-1").Return(session, nil)

	err := svc.Revoke(context.Background(), "s-1", activeUser())

	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	sessionRepo.AssertNotCalled(t, "Revoke", mock.Anything, "s-1")
}

func TestTokenService_Revoke_AdminMayRevokeAny(t *testing.T) {
	sessionRepo := new(mockSessionRepository)
	svc := newTokenTestService(sessionRepo, new(mockUserRepository))

	admin := activeUser()
	admin.ID = "admin-1"
	admin.Role = domain.RoleAdmin

	session := &domain.SessionToken{ID: "s-1", UserID: "someone-else", Enabled: true}
	sessionRepo.On("GetByID", mock.Anything, "s-1").Return(session, nil)
	sessionRepo.On("Revoke", mock.Anything, "s-1").Return(nil)

	err := svc.Revoke(context.Background(), "s-1", admin)

	require.NoError(t, err)
}

func TestTokenService_RevokeAll(t *testing.T) {
	sessionRepo := new(mockSessionRepository)
	svc := newTokenTestService(sessionRepo, new(mockUserRepository))

	sessionRepo.On("RevokeAllByUserID", mock.Anything, "u-1").Return(int64(3), nil)

	n, err := svc.RevokeAll(context.Background(), "u-1")

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

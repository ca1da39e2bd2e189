package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/rhvlabs/identity/internal/auth"
	"github.com/rhvlabs/identity/internal/domain"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Session Token Repository ---

type mockSessionRepository struct {
	mock.Mock
}

func (m *mockSessionRepository) Create(ctx context.Context, token *domain.SessionToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockSessionRepository) GetByID(ctx context.Context, id string) (*domain.SessionToken, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SessionToken), args.Error(1)
}

func (m *mockSessionRepository) ListActiveByUserID(ctx context.Context, userID string) ([]domain.SessionToken, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SessionToken), args.Error(1)
}

func (m *mockSessionRepository) Revoke(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockSessionRepository) RevokeAllByUserID(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// --- Mock One-Time Code Repository ---

type mockCodeRepository struct {
	mock.Mock
}

func (m *mockCodeRepository) Create(ctx context.Context, code *domain.OneTimeCode) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *mockCodeRepository) GetByID(ctx context.Context, id string) (*domain.OneTimeCode, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OneTimeCode), args.Error(1)
}

func (m *mockCodeRepository) GetActive(ctx context.Context, userID, purpose string) (*domain.OneTimeCode, error) {
	args := m.Called(ctx, userID, purpose)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OneTimeCode), args.Error(1)
}

func (m *mockCodeRepository) DisableAllByUser(ctx context.Context, userID, purpose string) error {
	args := m.Called(ctx, userID, purpose)
	return args.Error(0)
}

// --- Recording Publisher ---

// recordPublisher records published topics instead of talking to Kafka.
type recordPublisher struct {
	topics []string
}

func (p *recordPublisher) PublishUserRegistered(_ context.Context, _ *domain.User) error {
	p.topics = append(p.topics, "user.registered")
	return nil
}

func (p *recordPublisher) PublishUserVerified(_ context.Context, _ *domain.User) error {
	p.topics = append(p.topics, "user.verified")
	return nil
}

func (p *recordPublisher) PublishUserPasswordReset(_ context.Context, _ *domain.User) error {
	p.topics = append(p.topics, "user.password_reset")
	return nil
}

func (p *recordPublisher) PublishUserLockedOut(_ context.Context, _ *domain.User, _ string, _ int64) error {
	p.topics = append(p.topics, "user.locked_out")
	return nil
}

// --- Fixture helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestTokenManager() *auth.TokenManager {
	return auth.NewTokenManager("test-secret-key-for-unit-tests-only", 24*time.Hour)
}

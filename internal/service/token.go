package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rhvlabs/identity/internal/auth"
	"github.com/rhvlabs/identity/internal/domain"
	"github.com/rhvlabs/identity/internal/repository"
	apperrors "github.com/rhvlabs/identity/pkg/errors"
)

// TokenService manages session tokens. A session is a server-side row; the
// JWT handed to clients only references it. Revocation disables the row, so
// stolen or stale JWTs stop working immediately.
type TokenService struct {
	sessionRepo  repository.SessionTokenRepository
	userRepo     repository.UserRepository
	tokenManager *auth.TokenManager
	logger       *slog.Logger
}

// NewTokenService creates a new token service.
func NewTokenService(
	sessionRepo repository.SessionTokenRepository,
	userRepo repository.UserRepository,
	tokenManager *auth.TokenManager,
	logger *slog.Logger,
) *TokenService {
	return &TokenService{
		sessionRepo:  sessionRepo,
		userRepo:     userRepo,
		tokenManager: tokenManager,
		logger:       logger,
	}
}

// Issue creates a session row for the user and returns the signed transport
// token referencing it.
func (s *TokenService) Issue(ctx context.Context, user *domain.User) (string, *domain.SessionToken, error) {
	now := time.Now().UTC()
	session := &domain.SessionToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Enabled:   true,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokenManager.TTL()),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}

	signed, err := s.tokenManager.Generate(session.ID, user.Name, user.Email)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}

	s.logger.InfoContext(ctx, "session issued",
		slog.String("user_id", user.ID),
		slog.String("session_id", session.ID),
	)

	return signed, session, nil
}

// Resolve validates a transport token end to end: signature and expiry
// first, then the session row, then the account. A revoked session maps to
// 401 so clients re-authenticate; a disabled account maps to 403.
func (s *TokenService) Resolve(ctx context.Context, tokenString string) (*domain.User, *domain.SessionToken, error) {
	claims, err := s.tokenManager.Validate(tokenString)
	if err != nil {
		return nil, nil, apperrors.Unauthorized("invalid or expired token")
	}

	session, err := s.sessionRepo.GetByID(ctx, claims.SessionID)
	if err != nil {
		return nil, nil, apperrors.Unauthorized("session not found")
	}
	if !session.Enabled || session.Expired(time.Now().UTC()) {
		return nil, nil, apperrors.Unauthorized("session has been revoked")
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, apperrors.Unauthorized("account not found")
	}
	if !user.Enabled {
		return nil, nil, apperrors.Forbidden("account is disabled")
	}

	return user, session, nil
}

// Revoke disables a single session. The requester must own the session or
// hold the Admin role. Revoking an already-disabled session is a no-op, so
// logout retries succeed.
func (s *TokenService) Revoke(ctx context.Context, sessionID string, requester *domain.User) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return apperrors.NotFound("session", sessionID)
	}

	if session.UserID != requester.ID && requester.Role != domain.RoleAdmin {
		return apperrors.Forbidden("cannot revoke another user's session")
	}

	if !session.Enabled {
		return nil
	}

	if err := s.sessionRepo.Revoke(ctx, sessionID); err != nil {
		// Lost a race with another revocation; the session is gone either way.
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}

	s.logger.InfoContext(ctx, "session revoked",
		slog.String("session_id", sessionID),
		slog.String("revoked_by", requester.ID),
	)

	return nil
}

// RevokeAll disables every enabled session for a user, logging out all
// devices at once.
func (s *TokenService) RevokeAll(ctx context.Context, userID string) (int64, error) {
	n, err := s.sessionRepo.RevokeAllByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions: %w", err)
	}

	s.logger.InfoContext(ctx, "all sessions revoked",
		slog.String("user_id", userID),
		slog.Int64("count", n),
	)

	return n, nil
}

// ActiveSessions returns the user's enabled, unexpired sessions.
func (s *TokenService) ActiveSessions(ctx context.Context, userID string) ([]domain.SessionToken, error) {
	return s.sessionRepo.ListActiveByUserID(ctx, userID)
}

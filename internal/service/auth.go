package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rhvlabs/identity/internal/auth"
	"github.com/rhvlabs/identity/internal/cache"
	"github.com/rhvlabs/identity/internal/domain"
	"github.com/rhvlabs/identity/internal/event"
	"github.com/rhvlabs/identity/internal/repository"
	apperrors "github.com/rhvlabs/identity/pkg/errors"
)

// codeLength is the number of characters in a one-time code.
const codeLength = 16

// lockoutScope namespaces failed-login counters in the cache.
const lockoutScope = "login"

// resetCodeThrottle is the minimum interval between issued reset codes for
// one account. Repeated forgot-password requests inside the window reuse
// the outstanding code instead of flooding the mailbox.
const resetCodeThrottle = time.Minute

// normalizeEmail canonicalizes an address for storage, lookup, and counter
// keys. Emails are stored lowercased, so case variants resolve to the same
// account and the same lockout counter.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AuthConfig tunes lockout and code lifetimes.
type AuthConfig struct {
	LoginThreshold int
	LoginWindow    time.Duration
	VerifyCodeTTL  time.Duration
	ResetCodeTTL   time.Duration
}

// AuthService implements registration, login, verification, and password
// reset flows.
type AuthService struct {
	userRepo  repository.UserRepository
	codeRepo  repository.OneTimeCodeRepository
	tokens    *TokenService
	counters  cache.Store
	publisher event.Publisher
	cfg       AuthConfig
	logger    *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	userRepo repository.UserRepository,
	codeRepo repository.OneTimeCodeRepository,
	tokens *TokenService,
	counters cache.Store,
	publisher event.Publisher,
	cfg AuthConfig,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		codeRepo:  codeRepo,
		tokens:    tokens,
		counters:  counters,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput holds the parameters for user login.
type LoginInput struct {
	Email    string
	Password string
	ClientIP string
}

// LoginOutput is the result of a successful login.
type LoginOutput struct {
	User    *domain.User
	Token   string
	Session *domain.SessionToken
}

// Register creates a new account and issues an email verification code.
// The plaintext code is returned to the caller for delivery; only its hash
// is stored.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, *domain.OneTimeCode, string, error) {
	hashedPassword, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, nil, "", fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         input.Name,
		Email:        normalizeEmail(input.Email),
		PasswordHash: hashedPassword,
		Role:         domain.RoleUser,
		Enabled:      true,
		Verified:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, nil, "", err
	}

	code, plain, err := s.issueCode(ctx, user.ID, domain.CodePurposeVerify, s.cfg.VerifyCodeTTL)
	if err != nil {
		return nil, nil, "", err
	}

	if err := s.publisher.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, code, plain, nil
}

// Login authenticates a user by email and password. Failed attempts are
// counted per (client IP, email) pair; once the threshold is crossed the
// account is disabled, its password replaced with one nobody knows, and the
// caller gets 429 instead of another guess.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginOutput, error) {
	email := normalizeEmail(input.Email)
	counterKey := cache.CounterKey(lockoutScope, input.ClientIP, email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, s.failLogin(ctx, counterKey, nil, input)
	}

	if !user.Enabled {
		return nil, apperrors.InvalidInput("account is disabled, reset your password to regain access")
	}

	if !auth.ComparePassword(user.PasswordHash, input.Password) {
		return nil, s.failLogin(ctx, counterKey, user, input)
	}

	// Successful login clears the failed-attempt counter for this pair.
	if err := s.counters.Delete(ctx, counterKey); err != nil {
		s.logger.WarnContext(ctx, "failed to reset login counter",
			slog.String("error", err.Error()),
		)
	}

	token, session, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return nil, err
	}

	return &LoginOutput{User: user, Token: token, Session: session}, nil
}

// failLogin records a failed attempt and decides between 401 and 429. A
// counter backend failure fails open: the attempt is still rejected, but
// with 401 rather than a lockout.
func (s *AuthService) failLogin(ctx context.Context, counterKey string, user *domain.User, input LoginInput) error {
	attempts, err := s.counters.Increment(ctx, counterKey, s.cfg.LoginWindow)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to count login attempt, continuing without lockout",
			slog.String("error", err.Error()),
		)
		return apperrors.Unauthorized("invalid email or password")
	}

	if attempts <= int64(s.cfg.LoginThreshold) {
		return apperrors.Unauthorized("invalid email or password")
	}

	if user != nil && user.Enabled {
		s.lockOut(ctx, user, input.ClientIP, attempts)
	}

	return apperrors.RateLimited("too many failed login attempts")
}

// lockOut disables the account and scrambles its password so the current
// credentials are dead even if the lockout is later lifted by hand.
func (s *AuthService) lockOut(ctx context.Context, user *domain.User, clientIP string, attempts int64) {
	scrambled, err := auth.ScrambledPasswordHash()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to scramble password for lockout",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	user.Enabled = false
	user.PasswordHash = scrambled
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to disable locked out account",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if _, err := s.tokens.RevokeAll(ctx, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions on lockout",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.publisher.PublishUserLockedOut(ctx, user, clientIP, attempts); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.locked_out event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.WarnContext(ctx, "account locked out after repeated failed logins",
		slog.String("user_id", user.ID),
		slog.String("client_ip", clientIP),
		slog.Int64("attempts", attempts),
	)
}

// Verify redeems an email verification code. The code is single use; every
// verification code for the user is disabled once one is redeemed.
func (s *AuthService) Verify(ctx context.Context, codeID, code string) (*domain.User, error) {
	row, err := s.codeRepo.GetByID(ctx, codeID)
	if err != nil {
		return nil, apperrors.NotFound("verification code", codeID)
	}
	if err := s.checkCode(row, domain.CodePurposeVerify, code); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, row.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.codeRepo.DisableAllByUser(ctx, user.ID, domain.CodePurposeVerify); err != nil {
		return nil, fmt.Errorf("disable verification codes: %w", err)
	}

	if !user.Verified {
		user.Verified = true
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, err
		}

		if err := s.publisher.PublishUserVerified(ctx, user); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish user.verified event",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "email verified",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

// RegenerateVerification disables any outstanding verification codes for
// the account and issues a fresh one.
func (s *AuthService) RegenerateVerification(ctx context.Context, userID string) (*domain.OneTimeCode, string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if user.Verified {
		return nil, "", apperrors.InvalidInput("account is already verified")
	}

	if err := s.codeRepo.DisableAllByUser(ctx, user.ID, domain.CodePurposeVerify); err != nil {
		return nil, "", fmt.Errorf("disable verification codes: %w", err)
	}

	code, plain, err := s.issueCode(ctx, user.ID, domain.CodePurposeVerify, s.cfg.VerifyCodeTTL)
	if err != nil {
		return nil, "", err
	}

	return code, plain, nil
}

// ForgotPassword starts a password reset. To avoid account enumeration the
// caller gets the same answer whether or not the email exists; the reset
// code only goes out through the event bus.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.InfoContext(ctx, "password reset requested for unknown email",
			slog.String("email", email),
		)
		return nil
	}

	// A freshly issued code is still in flight; keep it instead of minting
	// another.
	if existing, err := s.codeRepo.GetActive(ctx, user.ID, domain.CodePurposeReset); err == nil {
		if time.Since(existing.CreatedAt) < resetCodeThrottle {
			s.logger.InfoContext(ctx, "reset code already outstanding, not reissuing",
				slog.String("user_id", user.ID),
			)
			return nil
		}
	}

	if err := s.codeRepo.DisableAllByUser(ctx, user.ID, domain.CodePurposeReset); err != nil {
		return fmt.Errorf("disable reset codes: %w", err)
	}

	if _, _, err := s.issueCode(ctx, user.ID, domain.CodePurposeReset, s.cfg.ResetCodeTTL); err != nil {
		return err
	}

	if err := s.publisher.PublishUserPasswordReset(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password_reset event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// ValidateResetCode checks a reset code without consuming it, so the UI can
// show the password form only when the link is still good.
func (s *AuthService) ValidateResetCode(ctx context.Context, codeID, code string) error {
	row, err := s.codeRepo.GetByID(ctx, codeID)
	if err != nil {
		return apperrors.NotFound("reset code", codeID)
	}
	return s.checkCode(row, domain.CodePurposeReset, code)
}

// ResetPassword redeems a reset code and replaces the account password.
// The account is re-enabled, since completing a reset is how a locked out
// user recovers, and every session is revoked.
func (s *AuthService) ResetPassword(ctx context.Context, codeID, code, newPassword string) error {
	row, err := s.codeRepo.GetByID(ctx, codeID)
	if err != nil {
		return apperrors.NotFound("reset code", codeID)
	}
	if err := s.checkCode(row, domain.CodePurposeReset, code); err != nil {
		return err
	}

	user, err := s.userRepo.GetByID(ctx, row.UserID)
	if err != nil {
		return err
	}

	hashedPassword, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user.PasswordHash = hashedPassword
	user.Enabled = true
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	if err := s.codeRepo.DisableAllByUser(ctx, user.ID, domain.CodePurposeReset); err != nil {
		return fmt.Errorf("disable reset codes: %w", err)
	}

	if _, err := s.tokens.RevokeAll(ctx, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions after password reset",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("user_id", user.ID),
	)

	return nil
}

// checkCode validates a stored code row against user input. Every failure
// maps to 404 so callers cannot distinguish a wrong code from a dead one.
func (s *AuthService) checkCode(row *domain.OneTimeCode, purpose, code string) error {
	if row.Purpose != purpose || !row.Enabled {
		return apperrors.NotFound("code", row.ID)
	}
	if row.Expired(time.Now().UTC()) {
		return apperrors.NotFound("code", row.ID)
	}
	if !auth.CompareCode(row.CodeHash, code) {
		return apperrors.NotFound("code", row.ID)
	}
	return nil
}

// issueCode generates, hashes, and stores a one-time code.
func (s *AuthService) issueCode(ctx context.Context, userID, purpose string, ttl time.Duration) (*domain.OneTimeCode, string, error) {
	plain, err := auth.GenerateCode(codeLength)
	if err != nil {
		return nil, "", fmt.Errorf("generate code: %w", err)
	}

	hash, err := auth.HashCode(plain)
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	row := &domain.OneTimeCode{
		ID:        uuid.New().String(),
		UserID:    userID,
		Purpose:   purpose,
		CodeHash:  hash,
		Enabled:   true,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if err := s.codeRepo.Create(ctx, row); err != nil {
		return nil, "", fmt.Errorf("store code: %w", err)
	}

	return row, plain, nil
}

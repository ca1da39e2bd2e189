package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rhvlabs/identity/internal/domain"
	"github.com/rhvlabs/identity/internal/service"
	apperrors "github.com/rhvlabs/identity/pkg/errors"
	"github.com/rhvlabs/identity/pkg/httputil"
	pkgmiddleware "github.com/rhvlabs/identity/pkg/middleware"
	"github.com/rhvlabs/identity/pkg/validator"
)

// AuthHandler handles HTTP requests for the auth surface.
type AuthHandler struct {
	authService  *service.AuthService
	tokenService *service.TokenService
	cookies      *CookieManager
	logger       *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(
	authService *service.AuthService,
	tokenService *service.TokenService,
	cookies *CookieManager,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		tokenService: tokenService,
		cookies:      cookies,
		logger:       logger,
	}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for registration.
type RegisterRequest struct {
	Name            string `json:"name" validate:"required,min=1,max=100"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// VerifyRequest is the JSON request body for code verification.
type VerifyRequest struct {
	Code string `json:"code" validate:"required,min=4,max=64"`
}

// ForgotPasswordRequest is the JSON request body for starting a reset.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the JSON request body for completing a reset.
type ResetPasswordRequest struct {
	Code            string `json:"code" validate:"required,min=4,max=64"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// decode reads and validates a JSON body into dst, writing the error
// response itself on failure.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body"), h.logger)
		return false
	}
	if err := validator.Validate(dst); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return false
	}
	return true
}

// Register handles POST /api/v1/auth/register. The new account is logged
// in immediately; verification gates nothing but the verified badge.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, code, _, err := h.authService.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	token, _, err := h.tokenService.Issue(r.Context(), user)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.SetAccessToken(w, token)
	httputil.WriteJSON(w, http.StatusCreated, httputil.OK("registered", map[string]any{
		"user":               user,
		"token":              token,
		"verificationCodeId": code.ID,
	}))
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, err := h.authService.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		ClientIP: pkgmiddleware.ClientIP(r),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.SetAccessToken(w, out.Token)
	httputil.WriteJSON(w, http.StatusOK, httputil.OK("logged in", map[string]any{
		"user":  out.User,
		"token": out.Token,
	}))
}

// Verify handles POST /api/v1/auth/verify/{tokenId}.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.authService.Verify(r.Context(), chi.URLParam(r, "tokenId"), req.Code)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.OK("email verified", map[string]any{
		"user": user,
	}))
}

// RegenerateVerification handles PUT /api/v1/auth/verify/regenerate.
func (h *AuthHandler) RegenerateVerification(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())

	code, _, err := h.authService.RegenerateVerification(r.Context(), identity.User.ID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.OK("verification code regenerated", map[string]any{
		"verificationCodeId": code.ID,
	}))
}

// ForgotPassword handles POST /api/v1/auth/forgot-password. The answer is
// the same whether or not the account exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.authService.ForgotPassword(r.Context(), req.Email); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.OK("if the account exists, a reset code has been sent", nil))
}

// ValidateResetCode handles GET /api/v1/auth/forgot-password/{id}.
func (h *AuthHandler) ValidateResetCode(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if err := h.authService.ValidateResetCode(r.Context(), chi.URLParam(r, "id"), code); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.OK("reset code is valid", nil))
}

// ResetPassword handles POST /api/v1/auth/forgot-password/{id}.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.authService.ResetPassword(r.Context(), chi.URLParam(r, "id"), req.Code, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	// Sessions were revoked server side; drop the cookie too.
	h.cookies.ClearAccessToken(w)
	httputil.WriteJSON(w, http.StatusOK, httputil.OK("password reset", nil))
}

// Logout handles POST /api/v1/auth/logout, revoking the current session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())

	if err := h.tokenService.Revoke(r.Context(), identity.SessionID, identity.User); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.ClearAccessToken(w)
	httputil.WriteJSON(w, http.StatusOK, httputil.OK("logged out", nil))
}

// LogoutSession handles POST /api/v1/auth/logout/{id}, revoking a specific
// session of the requesting user.
func (h *AuthHandler) LogoutSession(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	sessionID := chi.URLParam(r, "id")

	if err := h.tokenService.Revoke(r.Context(), sessionID, identity.User); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if sessionID == identity.SessionID {
		h.cookies.ClearAccessToken(w)
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.OK("session revoked", nil))
}

// LogoutAll handles POST /api/v1/auth/logout/all, revoking every session of
// the requesting user.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())

	n, err := h.tokenService.RevokeAll(r.Context(), identity.User.ID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.ClearAccessToken(w)
	httputil.WriteJSON(w, http.StatusOK, httputil.OK("all sessions revoked", map[string]any{
		"revoked": n,
	}))
}

// Sessions handles GET /api/v1/auth/sessions.
func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())

	sessions, err := h.tokenService.ActiveSessions(r.Context(), identity.User.ID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if sessions == nil {
		sessions = []domain.SessionToken{}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.OK("", map[string]any{
		"sessions": sessions,
		"current":  identity.SessionID,
	}))
}

// CSRF handles GET /api/v1/auth/csrf, minting the double-submit token.
func (h *AuthHandler) CSRF(w http.ResponseWriter, r *http.Request) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		httputil.WriteError(w, r, apperrors.Internal(err), h.logger)
		return
	}
	token := hex.EncodeToString(buf)

	h.cookies.SetCSRF(w, token)
	httputil.WriteJSON(w, http.StatusOK, httputil.OK("", map[string]any{
		"csrfToken": token,
	}))
}

package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rhvlabs/identity/internal/domain"
	"github.com/rhvlabs/identity/internal/repository"
	"github.com/rhvlabs/identity/internal/service"
	apperrors "github.com/rhvlabs/identity/pkg/errors"
	"github.com/rhvlabs/identity/pkg/httputil"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated principal attached to the request context.
type Identity struct {
	User      *domain.User
	SessionID string
	ViaCookie bool
}

// IdentityFromContext returns the authenticated identity, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// Middleware bundles the auth middleware chain and its dependencies.
type Middleware struct {
	tokens  *service.TokenService
	orgRepo repository.OrganizationRepository
	cookies *CookieManager
	logger  *slog.Logger
}

// NewMiddleware creates the auth middleware set.
func NewMiddleware(
	tokens *service.TokenService,
	orgRepo repository.OrganizationRepository,
	cookies *CookieManager,
	logger *slog.Logger,
) *Middleware {
	return &Middleware{
		tokens:  tokens,
		orgRepo: orgRepo,
		cookies: cookies,
		logger:  logger,
	}
}

// extractToken returns the transport token and whether it came from the
// session cookie. The cookie wins over the Authorization header.
func extractToken(r *http.Request) (string, bool) {
	if c, err := r.Cookie(accessTokenCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer "), false
	}
	return "", false
}

// Authenticate resolves the transport token into an identity. A missing,
// invalid, or revoked token yields 401; a disabled account yields 403. In
// both cases a stale session cookie is cleared so the browser stops
// resending it.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, viaCookie := extractToken(r)
		if token == "" {
			httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), m.logger)
			return
		}

		user, session, err := m.tokens.Resolve(r.Context(), token)
		if err != nil {
			if viaCookie {
				m.cookies.ClearAccessToken(w)
			}
			httputil.WriteError(w, r, err, m.logger)
			return
		}

		identity := &Identity{User: user, SessionID: session.ID, ViaCookie: viaCookie}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	})
}

// RequireRole allows only the named roles through. The check is
// case-insensitive and fails closed: no identity is 401, a role outside the
// list is 403.
func (m *Middleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[strings.ToLower(role)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			if identity == nil {
				httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), m.logger)
				return
			}
			if _, ok := allowed[strings.ToLower(identity.User.Role)]; !ok {
				httputil.WriteError(w, r, apperrors.Forbidden("insufficient role"), m.logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Ownership entities understood by RequireOwnership.
const (
	OwnEntityUser               = "user"
	OwnEntityOrganization       = "organization"
	OwnEntityOrganizationMember = "organizationMember"
)

// RequireOwnership gates a route on the requester's relationship to the
// entity named by a URL parameter. An empty or unresolvable parameter name
// is a route misconfiguration and maps to 500, never a silent pass.
func (m *Middleware) RequireOwnership(entity, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			if identity == nil {
				httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), m.logger)
				return
			}

			if param == "" {
				httputil.WriteError(w, r, apperrors.Internal(errors.New("ownership middleware: missing param name")), m.logger)
				return
			}
			id := chi.URLParam(r, param)
			if id == "" {
				httputil.WriteError(w, r, apperrors.Internal(errors.New("ownership middleware: param not present in route: "+param)), m.logger)
				return
			}

			if err := m.checkOwnership(r.Context(), identity.User, entity, id); err != nil {
				httputil.WriteError(w, r, err, m.logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) checkOwnership(ctx context.Context, user *domain.User, entity, id string) error {
	// Admins pass every ownership gate.
	if user.Role == domain.RoleAdmin {
		return nil
	}

	switch entity {
	case OwnEntityUser:
		if user.ID != id {
			return apperrors.Forbidden("cannot access another user's resource")
		}
		return nil

	case OwnEntityOrganization:
		org, err := m.orgRepo.GetByID(ctx, id)
		if err != nil {
			return apperrors.Forbidden("organization access denied")
		}
		if !org.IsVerified() {
			return apperrors.Forbidden("organization is not verified")
		}
		if _, err := m.orgRepo.GetMember(ctx, org.ID, user.ID); err != nil {
			return apperrors.Forbidden("organization access denied")
		}
		return nil

	case OwnEntityOrganizationMember:
		member, err := m.orgRepo.GetMemberByID(ctx, id)
		if err != nil {
			return apperrors.Forbidden("membership access denied")
		}
		org, err := m.orgRepo.GetByID(ctx, member.OrganizationID)
		if err != nil || !org.IsVerified() {
			return apperrors.Forbidden("membership access denied")
		}
		requester, err := m.orgRepo.GetMember(ctx, org.ID, user.ID)
		if err != nil || !requester.CanManage() {
			return apperrors.Forbidden("membership access denied")
		}
		return nil

	default:
		return apperrors.Internal(errors.New("ownership middleware: unknown entity: " + entity))
	}
}

// CSRF enforces the double-submit check on state-changing requests that
// authenticated via the session cookie. Header and Bearer clients are
// exempt; the browser cookie is the attack vector being defended.
func (m *Middleware) CSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		identity := IdentityFromContext(r.Context())
		if identity == nil || !identity.ViaCookie {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(csrfCookie)
		if err != nil || cookie.Value == "" {
			httputil.WriteError(w, r, apperrors.Forbidden("missing CSRF token"), m.logger)
			return
		}
		header := r.Header.Get("X-XSRF-TOKEN")
		if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
			httputil.WriteError(w, r, apperrors.Forbidden("CSRF token mismatch"), m.logger)
			return
		}

		next.ServeHTTP(w, r)
	})
}

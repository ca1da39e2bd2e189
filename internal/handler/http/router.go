package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhvlabs/identity/internal/domain"
	"github.com/rhvlabs/identity/internal/repository"
	"github.com/rhvlabs/identity/internal/service"
	"github.com/rhvlabs/identity/pkg/health"
	pkgmiddleware "github.com/rhvlabs/identity/pkg/middleware"
)

// RouterConfig carries the router's non-service dependencies.
type RouterConfig struct {
	CORS              pkgmiddleware.CORSConfig
	RateRPS           int
	RateBurst         int
	PprofAllowedCIDRs []string
}

// ContentTypeJSON enforces that requests with a body carry Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"success":false,"message":"Content-Type must be application/json"}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// NewRouter creates a chi router with all identity routes registered.
func NewRouter(
	authService *service.AuthService,
	tokenService *service.TokenService,
	userRepo repository.UserRepository,
	orgRepo repository.OrganizationRepository,
	cookies *CookieManager,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(pkgmiddleware.CORS(cfg.CORS))
	r.Use(pkgmiddleware.Recovery(logger))
	r.Use(pkgmiddleware.RequestLogging(logger))
	r.Use(pkgmiddleware.RequestLogger(logger))
	r.Use(pkgmiddleware.PrometheusMetrics("identity"))
	if cfg.RateRPS > 0 {
		r.Use(pkgmiddleware.RateLimit(cfg.RateRPS, cfg.RateBurst, logger))
	}

	// Health, metrics, and debug endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	pkgmiddleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	mw := NewMiddleware(tokenService, orgRepo, cookies, logger)
	authHandler := NewAuthHandler(authService, tokenService, cookies, logger)
	userHandler := NewUserHandler(userRepo, logger)

	// Auth endpoints
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Public
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/verify/{tokenId}", authHandler.Verify)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Get("/forgot-password/{id}", authHandler.ValidateResetCode)
		r.Post("/forgot-password/{id}", authHandler.ResetPassword)
		r.Get("/csrf", authHandler.CSRF)

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate)
			r.Use(mw.CSRF)

			r.Put("/verify/regenerate", authHandler.RegenerateVerification)
			r.Post("/logout", authHandler.Logout)
			r.Post("/logout/all", authHandler.LogoutAll)
			r.Post("/logout/{id}", authHandler.LogoutSession)
			r.Get("/sessions", authHandler.Sessions)
		})
	})

	// User endpoints
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(mw.Authenticate)
		r.Use(mw.CSRF)

		r.With(mw.RequireOwnership(OwnEntityUser, "id")).Get("/{id}", userHandler.Get)
		r.With(mw.RequireRole(domain.RoleAdmin, domain.RoleModerator)).Get("/", userHandler.List)
	})

	return r
}

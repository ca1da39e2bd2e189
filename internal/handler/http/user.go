package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rhvlabs/identity/internal/domain"
	"github.com/rhvlabs/identity/internal/repository"
	"github.com/rhvlabs/identity/pkg/httputil"
)

// UserHandler handles HTTP requests for user profiles.
type UserHandler struct {
	userRepo repository.UserRepository
	logger   *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(userRepo repository.UserRepository, logger *slog.Logger) *UserHandler {
	return &UserHandler{userRepo: userRepo, logger: logger}
}

// Get handles GET /api/v1/users/{id}. Ownership is enforced by middleware;
// the read goes through the cached repository.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.userRepo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.OK("", map[string]any{
		"user": user,
	}))
}

// List handles GET /api/v1/users. Role-gated; serves the cached list path.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20, 100)
	offset := queryInt(r, "offset", 0, 1<<30)

	users, err := h.userRepo.List(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if users == nil {
		users = []domain.User{}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.OK("", map[string]any{
		"users":  users,
		"limit":  limit,
		"offset": offset,
	}))
}

func queryInt(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

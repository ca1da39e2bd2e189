package cached

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rhvlabs/identity/internal/cache"
	"github.com/rhvlabs/identity/internal/domain"
	"github.com/rhvlabs/identity/internal/repository"
)

const userModel = "user"

var (
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_cache_hits_total",
			Help: "Number of cache hits by model.",
		},
		[]string{"model"},
	)
	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_cache_misses_total",
			Help: "Number of cache misses by model.",
		},
		[]string{"model"},
	)
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_cache_errors_total",
			Help: "Number of cache backend errors by model.",
		},
		[]string{"model"},
	)
)

// UserRepository wraps a UserRepository with read-through caching. Reads
// consult the cache first and populate it on miss; writes go to the inner
// repository and then invalidate the affected entries. Any cache backend
// failure is logged and the call proceeds against the database.
type UserRepository struct {
	inner  repository.UserRepository
	store  cache.Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewUserRepository decorates the inner repository with cache-aside reads.
func NewUserRepository(inner repository.UserRepository, store cache.Store, ttl time.Duration, logger *slog.Logger) *UserRepository {
	return &UserRepository{
		inner:  inner,
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// GetByID retrieves a user by ID through the cache.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	key := cache.Key(userModel, cache.KindOne, "GetByID", map[string]any{"id": id})

	var u domain.User
	if r.lookup(ctx, key, &u) {
		return &u, nil
	}

	got, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.fill(ctx, key, got)
	return got, nil
}

// GetByEmail retrieves a user by email through the cache.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	key := cache.Key(userModel, cache.KindOne, "GetByEmail", map[string]any{"email": email})

	var u domain.User
	if r.lookup(ctx, key, &u) {
		return &u, nil
	}

	got, err := r.inner.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	r.fill(ctx, key, got)
	return got, nil
}

// List returns users through the cache.
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	key := cache.Key(userModel, cache.KindList, "List", map[string]any{"limit": limit, "offset": offset})

	var users []domain.User
	if r.lookup(ctx, key, &users) {
		return users, nil
	}

	got, err := r.inner.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	r.fill(ctx, key, got)
	return got, nil
}

// Create inserts a user and invalidates list entries.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	if err := r.inner.Create(ctx, u); err != nil {
		return err
	}
	r.invalidate(ctx, u)
	return nil
}

// Update modifies a user and invalidates its point and list entries. The
// previous row is read back first: when the write changes the email, the
// entry cached under the old address must go too, or readers could keep
// resolving an address that no longer exists in the store.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	prev, prevErr := r.inner.GetByID(ctx, u.ID)

	if err := r.inner.Update(ctx, u); err != nil {
		return err
	}

	r.invalidate(ctx, u)
	switch {
	case prevErr != nil:
		// Previous state unknown; sweep every point entry for the model.
		if err := r.store.DeletePrefix(ctx, cache.Prefix(userModel, cache.KindOne)); err != nil {
			r.cacheError(ctx, "delete prefix", err)
		}
	case prev.Email != u.Email:
		key := cache.Key(userModel, cache.KindOne, "GetByEmail", map[string]any{"email": prev.Email})
		if err := r.store.Delete(ctx, key); err != nil {
			r.cacheError(ctx, "delete", err)
		}
	}
	return nil
}

// Delete removes a user. Only the ID is known here, so every entry for the
// model is swept rather than just the row's point keys.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}
	if err := r.store.DeletePrefix(ctx, cache.Prefix(userModel, "")); err != nil {
		r.cacheError(ctx, "delete prefix", err)
	}
	return nil
}

// lookup reads and decodes a cached entry. It returns false on miss, decode
// failure, or backend error.
func (r *UserRepository) lookup(ctx context.Context, key string, dst any) bool {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			r.cacheError(ctx, "get", err)
		}
		cacheMisses.WithLabelValues(userModel).Inc()
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		r.cacheError(ctx, "decode", err)
		cacheMisses.WithLabelValues(userModel).Inc()
		return false
	}
	cacheHits.WithLabelValues(userModel).Inc()
	return true
}

// fill stores a query result, best effort.
func (r *UserRepository) fill(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		r.cacheError(ctx, "encode", err)
		return
	}
	if err := r.store.Set(ctx, key, data, r.ttl); err != nil {
		r.cacheError(ctx, "set", err)
	}
}

// invalidate drops the row's point entries and sweeps list entries.
func (r *UserRepository) invalidate(ctx context.Context, u *domain.User) {
	keys := []string{
		cache.Key(userModel, cache.KindOne, "GetByID", map[string]any{"id": u.ID}),
		cache.Key(userModel, cache.KindOne, "GetByEmail", map[string]any{"email": u.Email}),
	}
	if err := r.store.Delete(ctx, keys...); err != nil {
		r.cacheError(ctx, "delete", err)
	}
	if err := r.store.DeletePrefix(ctx, cache.Prefix(userModel, cache.KindList)); err != nil {
		r.cacheError(ctx, "delete prefix", err)
	}
}

func (r *UserRepository) cacheError(ctx context.Context, op string, err error) {
	cacheErrors.WithLabelValues(userModel).Inc()
	r.logger.WarnContext(ctx, "cache operation failed, continuing without cache",
		slog.String("model", userModel),
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}

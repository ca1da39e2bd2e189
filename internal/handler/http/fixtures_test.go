package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rhvlabs/identity/internal/auth"
	"github.com/rhvlabs/identity/internal/cache"
	"github.com/rhvlabs/identity/internal/domain"
	"github.com/rhvlabs/identity/internal/service"
	apperrors "github.com/rhvlabs/identity/pkg/errors"
	"github.com/rhvlabs/identity/pkg/health"
	pkgmiddleware "github.com/rhvlabs/identity/pkg/middleware"
)

// ============================================================================
// In-memory repositories
// ============================================================================

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (m *memUserRepo) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memUserRepo) List(_ context.Context, limit, _ int) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, u := range m.users {
		if len(out) >= limit {
			break
		}
		out = append(out, *u)
	}
	return out, nil
}

func (m *memUserRepo) Update(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return apperrors.NotFound("user", u.ID)
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUserRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return apperrors.NotFound("user", id)
	}
	delete(m.users, id)
	return nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.SessionToken
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*domain.SessionToken)}
}

func (m *memSessionRepo) Create(_ context.Context, t *domain.SessionToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.sessions[t.ID] = &cp
	return nil
}

func (m *memSessionRepo) GetByID(_ context.Context, id string) (*domain.SessionToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionRepo) ListActiveByUserID(_ context.Context, userID string) ([]domain.SessionToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var out []domain.SessionToken
	for _, s := range m.sessions {
		if s.UserID == userID && s.Enabled && !s.Expired(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSessionRepo) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !s.Enabled {
		return apperrors.NotFound("session", id)
	}
	now := time.Now().UTC()
	s.Enabled = false
	s.RevokedAt = &now
	return nil
}

func (m *memSessionRepo) RevokeAllByUserID(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for _, s := range m.sessions {
		if s.UserID == userID && s.Enabled {
			s.Enabled = false
			s.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

type memCodeRepo struct {
	mu    sync.Mutex
	codes map[string]*domain.OneTimeCode
}

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{codes: make(map[string]*domain.OneTimeCode)}
}

func (m *memCodeRepo) Create(_ context.Context, c *domain.OneTimeCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.codes[c.ID] = &cp
	return nil
}

func (m *memCodeRepo) GetByID(_ context.Context, id string) (*domain.OneTimeCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCodeRepo) GetActive(_ context.Context, userID, purpose string) (*domain.OneTimeCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, c := range m.codes {
		if c.UserID == userID && c.Purpose == purpose && c.Enabled && !c.Expired(now) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memCodeRepo) DisableAllByUser(_ context.Context, userID, purpose string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c.UserID == userID && c.Purpose == purpose {
			c.Enabled = false
		}
	}
	return nil
}

type memOrgRepo struct {
	orgs    map[string]*domain.Organization
	members map[string]*domain.OrganizationMember
}

func newMemOrgRepo() *memOrgRepo {
	return &memOrgRepo{
		orgs:    make(map[string]*domain.Organization),
		members: make(map[string]*domain.OrganizationMember),
	}
}

func (m *memOrgRepo) GetByID(_ context.Context, id string) (*domain.Organization, error) {
	o, ok := m.orgs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return o, nil
}

func (m *memOrgRepo) GetMember(_ context.Context, orgID, userID string) (*domain.OrganizationMember, error) {
	for _, mem := range m.members {
		if mem.OrganizationID == orgID && mem.UserID == userID {
			return mem, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memOrgRepo) GetMemberByID(_ context.Context, memberID string) (*domain.OrganizationMember, error) {
	mem, ok := m.members[memberID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return mem, nil
}

type silentPublisher struct{}

func (silentPublisher) PublishUserRegistered(context.Context, *domain.User) error { return nil }
func (silentPublisher) PublishUserVerified(context.Context, *domain.User) error   { return nil }
func (silentPublisher) PublishUserPasswordReset(context.Context, *domain.User) error {
	return nil
}
func (silentPublisher) PublishUserLockedOut(context.Context, *domain.User, string, int64) error {
	return nil
}

// ============================================================================
// Test server
// ============================================================================

type testServer struct {
	router      http.Handler
	userRepo    *memUserRepo
	sessionRepo *memSessionRepo
	codeRepo    *memCodeRepo
	orgRepo     *memOrgRepo
	tokens      *service.TokenService
	authSvc     *service.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	store := cache.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	ts := &testServer{
		userRepo:    newMemUserRepo(),
		sessionRepo: newMemSessionRepo(),
		codeRepo:    newMemCodeRepo(),
		orgRepo:     newMemOrgRepo(),
	}

	tokenManager := auth.NewTokenManager("test-secret-key-for-unit-tests-only", 24*time.Hour)
	ts.tokens = service.NewTokenService(ts.sessionRepo, ts.userRepo, tokenManager, logger)
	ts.authSvc = service.NewAuthService(ts.userRepo, ts.codeRepo, ts.tokens, store, silentPublisher{}, service.AuthConfig{
		LoginThreshold: 3,
		LoginWindow:    24 * time.Hour,
		VerifyCodeTTL:  24 * time.Hour,
		ResetCodeTTL:   time.Hour,
	}, logger)

	cookies := NewCookieManager(CookieConfig{SameSite: "lax", TTL: 24 * time.Hour})

	ts.router = NewRouter(
		ts.authSvc,
		ts.tokens,
		ts.userRepo,
		ts.orgRepo,
		cookies,
		health.NewHandler(),
		logger,
		RouterConfig{
			CORS: pkgmiddleware.CORSConfig{AllowedOrigins: []string{"*"}, Environment: "development"},
		},
	)

	return ts
}

// do sends a JSON request through the router.
func (ts *testServer) do(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, fn := range mutate {
		fn(req)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func withCookie(name, value string) func(*http.Request) {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}

// register creates a user through the API and returns the parsed data map.
func (ts *testServer) register(t *testing.T, name, email, password string) map[string]any {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"name":            name,
		"email":           email,
		"password":        password,
		"confirmPassword": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	return parseData(t, rec)
}

// login authenticates through the API and returns the bearer token.
func (ts *testServer) login(t *testing.T, email, password string) string {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := parseData(t, rec)
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func parseData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var envelope struct {
		Success bool           `json:"success"`
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

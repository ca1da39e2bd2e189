package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhvlabs/identity/internal/domain"
	apperrors "github.com/rhvlabs/identity/pkg/errors"
)

func newUserTestFixture(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewUserRepository(mock), mock
}

func sampleUser() *domain.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.User{
		ID:           "u-1234",
		Name:         "Alice Smith",
		Email:        "alice@example.com",
		PasswordHash: "hash-abc",
		Role:         domain.RoleUser,
		Enabled:      true,
		Verified:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func userColumns() []string {
	return []string{
		"id", "name", "email", "password_hash", "role",
		"enabled", "verified", "created_at", "updated_at",
	}
}

func userRow(u *domain.User) *pgxmock.Rows {
	return pgxmock.NewRows(userColumns()).AddRow(
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role,
		u.Enabled, u.Verified, u.CreatedAt, u.UpdatedAt,
	)
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestUserRepository_Create_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	u := sampleUser()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(
			u.ID, u.Name, u.Email, u.PasswordHash, u.Role,
			u.Enabled, u.Verified, u.CreatedAt, u.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), u)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	u := sampleUser()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(
			u.ID, u.Name, u.Email, u.PasswordHash, u.Role,
			u.Enabled, u.Verified, u.CreatedAt, u.UpdatedAt,
		).
		WillReturnError(fmt.Errorf("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"))

	err := repo.Create(context.Background(), u)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))
}

// ---------------------------------------------------------------------------
// GetByID / GetByEmail
// ---------------------------------------------------------------------------

func TestUserRepository_GetByID_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	u := sampleUser()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(u.ID).
		WillReturnRows(userRow(u))

	got, err := repo.GetByID(context.Background(), u.ID)

	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, u.Role, got.Role)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(userColumns()))

	got, err := repo.GetByID(context.Background(), "missing")

	assert.Nil(t, got)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestUserRepository_GetByEmail_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	u := sampleUser()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(u.Email).
		WillReturnRows(userRow(u))

	got, err := repo.GetByEmail(context.Background(), u.Email)

	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestUserRepository_List_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	u1 := sampleUser()
	u2 := sampleUser()
	u2.ID = "u-5678"
	u2.Email = "bob@example.com"

	rows := pgxmock.NewRows(userColumns()).
		AddRow(u1.ID, u1.Name, u1.Email, u1.PasswordHash, u1.Role, u1.Enabled, u1.Verified, u1.CreatedAt, u1.UpdatedAt).
		AddRow(u2.ID, u2.Name, u2.Email, u2.PasswordHash, u2.Role, u2.Enabled, u2.Verified, u2.CreatedAt, u2.UpdatedAt)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(20, 0).
		WillReturnRows(rows)

	users, err := repo.List(context.Background(), 20, 0)

	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u-1234", users[0].ID)
	assert.Equal(t, "u-5678", users[1].ID)
}

// ---------------------------------------------------------------------------
// Update / Delete
// ---------------------------------------------------------------------------

func TestUserRepository_Update_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	u := sampleUser()
	u.Verified = true

	mock.ExpectExec("UPDATE users").
		WithArgs(
			u.Name, u.Email, u.PasswordHash, u.Role,
			u.Enabled, u.Verified, pgxmock.AnyArg(), u.ID,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Update(context.Background(), u)

	require.NoError(t, err)
}

func TestUserRepository_Update_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	u := sampleUser()

	mock.ExpectExec("UPDATE users").
		WithArgs(
			u.Name, u.Email, u.PasswordHash, u.Role,
			u.Enabled, u.Verified, pgxmock.AnyArg(), u.ID,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), u)

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestUserRepository_Delete_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	mock.ExpectExec("DELETE FROM users").
		WithArgs("u-1234").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := repo.Delete(context.Background(), "u-1234")

	require.NoError(t, err)
}

func TestUserRepository_Delete_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	mock.ExpectExec("DELETE FROM users").
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), "missing")

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

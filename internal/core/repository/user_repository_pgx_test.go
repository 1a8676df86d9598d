package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/duynhne/chat-service/internal/core/domain"
)

func newPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestPgxUserRepository_FindByID(t *testing.T) {
	t.Run("should return the user when found", func(t *testing.T) {
		req := require.New(t)
		mock := newPool(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, email FROM users WHERE id = $1`)).
			WithArgs(int64(7)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email"}).AddRow(int64(7), "alice", "alice@example.com"))

		u, err := NewUserRepository(mock).FindByID(context.Background(), 7)

		req.NoError(err)
		req.Equal(&domain.User{ID: 7, Name: "alice", Email: "alice@example.com"}, u)
	})

	t.Run("should return nil nil when no row matches", func(t *testing.T) {
		req := require.New(t)
		mock := newPool(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1`)).
			WithArgs(int64(404)).
			WillReturnError(pgx.ErrNoRows)

		u, err := NewUserRepository(mock).FindByID(context.Background(), 404)

		req.NoError(err)
		req.Nil(u)
	})

	t.Run("should propagate store failures", func(t *testing.T) {
		mock := newPool(t)
		boom := errors.New("connection refused")
		mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1`)).
			WithArgs(int64(1)).
			WillReturnError(boom)

		_, err := NewUserRepository(mock).FindByID(context.Background(), 1)

		require.ErrorIs(t, err, boom)
	})
}

func TestPgxUserRepository_FindAllByID(t *testing.T) {
	t.Run("should query by id array ordered by id", func(t *testing.T) {
		req := require.New(t)
		mock := newPool(t)
		ids := []int64{3, 1}
		mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = ANY($1) ORDER BY id`)).
			WithArgs(ids).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email"}).
				AddRow(int64(1), "alice", "alice@example.com").
				AddRow(int64(3), "carol", "carol@example.com"))

		users, err := NewUserRepository(mock).FindAllByID(context.Background(), ids)

		req.NoError(err)
		req.Len(users, 2)
		req.Equal(int64(1), users[0].ID)
		req.Equal(int64(3), users[1].ID)
	})

	t.Run("should not query when ids are empty", func(t *testing.T) {
		req := require.New(t)
		mock := newPool(t)

		users, err := NewUserRepository(mock).FindAllByID(context.Background(), nil)

		req.NoError(err)
		req.Empty(users)
		req.NotNil(users)
	})
}

func TestPgxUserRepository_FindByEmail(t *testing.T) {
	t.Run("should return the user registered with the email", func(t *testing.T) {
		req := require.New(t)
		mock := newPool(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, email FROM users WHERE email = $1`)).
			WithArgs("alice@example.com").
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email"}).AddRow(int64(7), "alice", "alice@example.com"))

		u, err := NewUserRepository(mock).FindByEmail(context.Background(), "alice@example.com")

		req.NoError(err)
		req.Equal(&domain.User{ID: 7, Name: "alice", Email: "alice@example.com"}, u)
	})

	t.Run("should return nil nil for an unknown email", func(t *testing.T) {
		req := require.New(t)
		mock := newPool(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = $1`)).
			WithArgs("nobody@example.com").
			WillReturnError(pgx.ErrNoRows)

		u, err := NewUserRepository(mock).FindByEmail(context.Background(), "nobody@example.com")

		req.NoError(err)
		req.Nil(u)
	})
}

func TestPgxUserRepository_Create(t *testing.T) {
	req := require.New(t)
	mock := newPool(t)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users (name, email) VALUES ($1, $2) RETURNING id`)).
		WithArgs("bob", "bob@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(12)))

	u, err := NewUserRepository(mock).Create(context.Background(), "bob", "bob@example.com")

	req.NoError(err)
	req.Equal(&domain.User{ID: 12, Name: "bob", Email: "bob@example.com"}, u)
}

func TestPgxUserRepository_EnsureDefaults(t *testing.T) {
	req := require.New(t)
	mock := newPool(t)
	insert := regexp.QuoteMeta(`ON CONFLICT (email) DO NOTHING`)
	mock.ExpectExec(insert).WithArgs("alice", "alice@example.com").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(insert).WithArgs("bob", "bob@example.com").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, email FROM users ORDER BY id`)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email"}).
			AddRow(int64(1), "alice", "alice@example.com").
			AddRow(int64(2), "bob", "bob@example.com"))

	users, err := NewUserRepository(mock).EnsureDefaults(context.Background(), []domain.User{
		{Name: "alice", Email: "alice@example.com"},
		{Name: "bob", Email: "bob@example.com"},
	})

	req.NoError(err)
	req.Len(users, 2)
}

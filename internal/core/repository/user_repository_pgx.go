package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/duynhne/chat-service/internal/core/domain"
)

// PgxUserRepository implements domain.UserRepository using pgxpool.
type PgxUserRepository struct {
	db DBTX
}

// NewUserRepository creates a new PgxUserRepository.
func NewUserRepository(db DBTX) *PgxUserRepository {
	return &PgxUserRepository{db: db}
}

// FindByID returns the user with the given id.
// Returns (nil, nil) when no user is found.
func (r *PgxUserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT id, name, email FROM users WHERE id = $1`

	var u domain.User
	err := r.db.QueryRow(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &u, nil
}

// FindAllByID returns the users matching ids, ordered by id.
func (r *PgxUserRepository) FindAllByID(ctx context.Context, ids []int64) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	query := `SELECT id, name, email FROM users WHERE id = ANY($1) ORDER BY id`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	return scanUsers(rows)
}

// FindAll returns every user ordered by id.
func (r *PgxUserRepository) FindAll(ctx context.Context) ([]domain.User, error) {
	query := `SELECT id, name, email FROM users ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanUsers(rows)
}

// FindByEmail returns the user registered with email.
// Returns (nil, nil) when no user is found.
func (r *PgxUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT id, name, email FROM users WHERE email = $1`

	var u domain.User
	err := r.db.QueryRow(ctx, query, email).Scan(&u.ID, &u.Name, &u.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &u, nil
}

// Create inserts a new user and returns it with the generated id.
func (r *PgxUserRepository) Create(ctx context.Context, name, email string) (*domain.User, error) {
	query := `INSERT INTO users (name, email) VALUES ($1, $2) RETURNING id`

	u := domain.User{Name: name, Email: email}
	if err := r.db.QueryRow(ctx, query, name, email).Scan(&u.ID); err != nil {
		return nil, err
	}

	return &u, nil
}

// EnsureDefaults inserts each default user whose email is not taken yet,
// then returns all users.
func (r *PgxUserRepository) EnsureDefaults(ctx context.Context, defaults []domain.User) ([]domain.User, error) {
	query := `INSERT INTO users (name, email) VALUES ($1, $2) ON CONFLICT (email) DO NOTHING`

	for _, u := range defaults {
		if _, err := r.db.Exec(ctx, query, u.Name, u.Email); err != nil {
			return nil, err
		}
	}

	return r.FindAll(ctx)
}

func scanUsers(rows pgx.Rows) ([]domain.User, error) {
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

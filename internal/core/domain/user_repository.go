//go:generate go run go.uber.org/mock/mockgen -source=user_repository.go -destination=../../../mocks/mock_user_repository.go -package=mocks
package domain

import "context"

// User is a chat participant. Users are immutable once created.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserRepository defines the data-access contract for user operations.
// Implementations live in internal/core/repository (Core layer).
// The Logic and Presence layers depend on this interface only, never on SQL or pgx directly.
type UserRepository interface {
	// FindByID returns the user with the given id.
	// Returns (nil, nil) when no user is found.
	FindByID(ctx context.Context, id int64) (*User, error)

	// FindAllByID returns the users matching ids, ordered by id.
	// Unknown ids are skipped.
	FindAllByID(ctx context.Context, ids []int64) ([]User, error)

	// FindAll returns every user ordered by id.
	FindAll(ctx context.Context) ([]User, error)

	// FindByEmail returns the user registered with email.
	// Returns (nil, nil) when no user is found.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// Create inserts a new user and returns it with its assigned id.
	Create(ctx context.Context, name, email string) (*User, error)

	// EnsureDefaults inserts the given users unless a user with the same email
	// already exists, then returns all users.
	EnsureDefaults(ctx context.Context, defaults []User) ([]User, error)
}

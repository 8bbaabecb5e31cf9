package user

import (
	"context"
	"time"
)

// User is an authenticated principal. Credentials and token lifecycle
// live with the identity collaborator; this registry only records who a
// principal id refers to.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the contract for principal persistence.
type Store interface {
	// Create registers a new user. Returns apperr.AlreadyExists when the
	// username or email is taken.
	Create(ctx context.Context, username, email string) (*User, error)

	// Get returns a user by id, or apperr.NotFound.
	Get(ctx context.Context, id int64) (*User, error)

	// ByUsername returns a user by username, or apperr.NotFound.
	ByUsername(ctx context.Context, username string) (*User, error)

	// List returns all users in registration order.
	List(ctx context.Context) ([]User, error)

	// Count returns the total number of users.
	Count(ctx context.Context) (int, error)

	// EnsureTable creates the users table if it doesn't exist.
	EnsureTable(ctx context.Context) error
}

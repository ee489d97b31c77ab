package driven

import (
	"context"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
)

// UserStore handles account persistence (PostgreSQL)
type UserStore interface {
	// Save creates or updates a user
	Save(ctx context.Context, user *domain.User) error

	// Get retrieves a user by ID
	Get(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByAddress retrieves a user by ledger address
	GetByAddress(ctx context.Context, address string) (*domain.User, error)

	// UpdateLastLogin records a successful login
	UpdateLastLogin(ctx context.Context, id string) error
}

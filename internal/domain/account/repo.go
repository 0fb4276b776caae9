package account

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository stores accounts. Create reports apperr.ErrDuplicateIdentity
// for a taken email; lookups report apperr.ErrNotFound.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// List returns every account, newest first.
	List(ctx context.Context) ([]*User, error)
}

package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
	"github.com/itsaddyon/MediBridge/internal/platform/localstore"
)

// storedUser keeps the password hash, which User hides from JSON.
type storedUser struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	DisplayName  string    `json:"name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (s storedUser) user() *User {
	return &User{
		ID:           s.ID,
		Email:        s.Email,
		PasswordHash: s.PasswordHash,
		DisplayName:  s.DisplayName,
		Role:         s.Role,
		CreatedAt:    s.CreatedAt,
	}
}

type userRepoLocal struct {
	users *localstore.Collection[storedUser]
}

// NewLocalUserRepo keeps accounts in the local store.
func NewLocalUserRepo(store localstore.Store) UserRepository {
	return &userRepoLocal{
		users: localstore.NewCollection(store, localstore.KeyUsers, func(u storedUser) string { return u.ID.String() }),
	}
}

func (r *userRepoLocal) Create(ctx context.Context, u *User) error {
	u.CreatedAt = time.Now().UTC()
	err := r.users.InsertUnique(ctx, storedUser{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		DisplayName:  u.DisplayName,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
	}, func(s storedUser) bool { return strings.EqualFold(s.Email, u.Email) })
	if errors.Is(err, localstore.ErrExists) {
		return apperr.ErrDuplicateIdentity
	}
	return err
}

func (r *userRepoLocal) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	s, err := r.users.Get(ctx, id.String())
	if errors.Is(err, localstore.ErrNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.user(), nil
}

func (r *userRepoLocal) GetByEmail(ctx context.Context, email string) (*User, error) {
	all, err := r.users.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range all {
		if strings.EqualFold(s.Email, email) {
			return s.user(), nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (r *userRepoLocal) List(ctx context.Context) ([]*User, error) {
	all, err := r.users.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*User, len(all))
	for i := range all {
		out[i] = all[i].user()
	}
	return out, nil
}

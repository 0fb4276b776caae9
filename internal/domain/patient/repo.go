package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores patients. Every read and write other than Create is
// scoped to an owner; a patient owned by someone else is reported as
// apperr.ErrNotFound, the same as an absent one.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]*Patient, error)
	GetOwned(ctx context.Context, owner, id uuid.UUID) (*Patient, error)
	UpdateOwned(ctx context.Context, owner, id uuid.UUID, patch Patch) (*Patient, error)
	DeleteOwned(ctx context.Context, owner, id uuid.UUID) error
}

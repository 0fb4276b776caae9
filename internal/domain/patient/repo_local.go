package patient

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
	"github.com/itsaddyon/MediBridge/internal/platform/localstore"
)

type repoLocal struct {
	patients *localstore.Collection[Patient]
	now      func() time.Time
}

// NewLocalRepo keeps patients in the local store under the patients key.
func NewLocalRepo(store localstore.Store) Repository {
	return &repoLocal{
		patients: localstore.NewCollection(store, localstore.KeyPatients, func(p Patient) string { return p.ID.String() }),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *repoLocal) Create(ctx context.Context, p *Patient) error {
	now := r.now()
	p.CreatedAt, p.UpdatedAt = now, now
	return r.patients.Insert(ctx, *p)
}

func (r *repoLocal) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*Patient, error) {
	all, err := r.patients.All(ctx)
	if err != nil {
		return nil, err
	}
	out := []*Patient{}
	for i := range all {
		if all[i].OwnerUserID == owner {
			out = append(out, &all[i])
		}
	}
	return out, nil
}

func (r *repoLocal) GetOwned(ctx context.Context, owner, id uuid.UUID) (*Patient, error) {
	p, err := r.patients.Get(ctx, id.String())
	if errors.Is(err, localstore.ErrNotFound) || (err == nil && p.OwnerUserID != owner) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoLocal) UpdateOwned(ctx context.Context, owner, id uuid.UUID, patch Patch) (*Patient, error) {
	p, err := r.patients.Update(ctx, id.String(), func(p *Patient) error {
		if p.OwnerUserID != owner {
			return apperr.ErrNotFound
		}
		patch.Apply(p)
		p.UpdatedAt = r.now()
		return nil
	})
	if errors.Is(err, localstore.ErrNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoLocal) DeleteOwned(ctx context.Context, owner, id uuid.UUID) error {
	err := r.patients.DeleteIf(ctx, id.String(), func(p Patient) error {
		if p.OwnerUserID != owner {
			return apperr.ErrNotFound
		}
		return nil
	})
	if errors.Is(err, localstore.ErrNotFound) {
		return apperr.ErrNotFound
	}
	return err
}

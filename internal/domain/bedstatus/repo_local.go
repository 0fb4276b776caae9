package bedstatus

import (
	"context"
	"errors"
	"time"

	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
	"github.com/itsaddyon/MediBridge/internal/platform/localstore"
)

type repoLocal struct {
	hospitals *localstore.Collection[Hospital]
	now       func() time.Time
}

// NewLocalRepo keeps bed status in the local store, seeding Defaults on the
// first read.
func NewLocalRepo(store localstore.Store) Repository {
	r := &repoLocal{now: func() time.Time { return time.Now().UTC() }}
	r.hospitals = localstore.NewCollection(store, localstore.KeyHospitals, func(h Hospital) string { return h.ID }).
		WithSeed(func() []Hospital { return Defaults(r.now()) })
	return r
}

func (r *repoLocal) List(ctx context.Context) ([]*Hospital, error) {
	all, err := r.hospitals.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Hospital, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, nil
}

func (r *repoLocal) Create(ctx context.Context, h *Hospital) error {
	h.LastUpdated = r.now()
	return r.hospitals.Insert(ctx, *h)
}

func (r *repoLocal) Update(ctx context.Context, id string, fn func(*Hospital) error) (*Hospital, error) {
	h, err := r.hospitals.Update(ctx, id, func(h *Hospital) error {
		if err := fn(h); err != nil {
			return err
		}
		h.LastUpdated = r.now()
		return nil
	})
	if errors.Is(err, localstore.ErrNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

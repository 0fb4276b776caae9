package referral

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
	"github.com/itsaddyon/MediBridge/internal/platform/localstore"
	"github.com/itsaddyon/MediBridge/pkg/pagination"
)

type repoLocal struct {
	referrals *localstore.Collection[Referral]
	now       func() time.Time
}

// NewLocalRepo keeps referrals in the local store under the referrals key.
func NewLocalRepo(store localstore.Store) Repository {
	return &repoLocal{
		referrals: localstore.NewCollection(store, localstore.KeyReferrals, func(r Referral) string { return r.ID.String() }),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *repoLocal) Create(ctx context.Context, ref *Referral) error {
	now := r.now()
	ref.CreatedAt, ref.UpdatedAt = now, now
	return r.referrals.Insert(ctx, *ref)
}

func (r *repoLocal) Get(ctx context.Context, id uuid.UUID) (*Referral, error) {
	ref, err := r.referrals.Get(ctx, id.String())
	if errors.Is(err, localstore.ErrNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *repoLocal) List(ctx context.Context, f Filter, page pagination.Params) ([]*Referral, int, error) {
	all, err := r.referrals.All(ctx)
	if err != nil {
		return nil, 0, err
	}
	matched := []*Referral{}
	for i := range all {
		if f.Status == nil || all[i].Status == *f.Status {
			matched = append(matched, &all[i])
		}
	}
	return pagination.Slice(matched, page), len(matched), nil
}

// SetStatus checks the expected status within the locked read-apply-write of
// one collection update.
func (r *repoLocal) SetStatus(ctx context.Context, id uuid.UUID, from, to Status, d Details) (*Referral, error) {
	ref, err := r.referrals.Update(ctx, id.String(), func(ref *Referral) error {
		if ref.Status != from {
			return errStaleStatus
		}
		ref.Status = to
		d.apply(ref)
		ref.UpdatedAt = r.now()
		return nil
	})
	if errors.Is(err, localstore.ErrNotFound) {
		return nil, errStaleStatus
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *repoLocal) HasOpenReferrals(ctx context.Context, patientID uuid.UUID) (bool, error) {
	all, err := r.referrals.All(ctx)
	if err != nil {
		return false, err
	}
	for _, ref := range all {
		if ref.PatientID == patientID && ref.Status != StatusClosed {
			return true, nil
		}
	}
	return false, nil
}

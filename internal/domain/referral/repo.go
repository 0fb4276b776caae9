package referral

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/itsaddyon/MediBridge/pkg/pagination"
)

// errStaleStatus reports that a compare-and-set found the referral missing
// or no longer in the expected status.
var errStaleStatus = errors.New("referral status changed")

type Repository interface {
	Create(ctx context.Context, r *Referral) error
	Get(ctx context.Context, id uuid.UUID) (*Referral, error)
	List(ctx context.Context, f Filter, page pagination.Params) ([]*Referral, int, error)
	// SetStatus moves the referral from one status to another only if it is
	// still in from, recording details. It returns errStaleStatus otherwise.
	SetStatus(ctx context.Context, id uuid.UUID, from, to Status, d Details) (*Referral, error)
	HasOpenReferrals(ctx context.Context, patientID uuid.UUID) (bool, error)
}

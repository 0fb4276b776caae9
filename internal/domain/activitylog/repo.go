package activitylog

import (
	"context"

	"github.com/itsaddyon/MediBridge/pkg/pagination"
)

// Repository stores activity entries. List returns newest first along with
// the number of entries matching f.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, f Filter, page pagination.Params) ([]*Entry, int, error)
}

package activitylog

import (
	"context"

	"github.com/itsaddyon/MediBridge/internal/platform/localstore"
	"github.com/itsaddyon/MediBridge/pkg/pagination"
)

// localLimit caps the entries kept in the local store.
const localLimit = 1000

type repoLocal struct {
	entries *localstore.Collection[Entry]
}

// NewLocalRepo keeps the newest activity entries in the local store.
func NewLocalRepo(store localstore.Store) Repository {
	return &repoLocal{
		entries: localstore.NewCollection(store, localstore.KeyActivity, func(e Entry) string { return e.ID.String() }).
			WithLimit(localLimit),
	}
}

func (r *repoLocal) Create(ctx context.Context, e *Entry) error {
	return r.entries.Insert(ctx, *e)
}

func (r *repoLocal) List(ctx context.Context, f Filter, page pagination.Params) ([]*Entry, int, error) {
	all, err := r.entries.All(ctx)
	if err != nil {
		return nil, 0, err
	}
	matched := []*Entry{}
	for i := range all {
		if f.Match(&all[i]) {
			matched = append(matched, &all[i])
		}
	}
	return pagination.Slice(matched, page), len(matched), nil
}

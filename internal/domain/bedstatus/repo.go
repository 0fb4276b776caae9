package bedstatus

import "context"

// Repository stores bed status. List seeds Defaults when nothing is stored.
// Update runs fn on the current record and stores the result unless fn
// fails; unknown ids are apperr.ErrNotFound.
type Repository interface {
	List(ctx context.Context) ([]*Hospital, error)
	Create(ctx context.Context, h *Hospital) error
	Update(ctx context.Context, id string, fn func(*Hospital) error) (*Hospital, error)
}

package bedstatus

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "bedstatus").Logger()}
}

func (s *Service) List(ctx context.Context) ([]*Hospital, error) {
	return s.repo.List(ctx)
}

// Add registers a hospital. The new entry is listed first.
func (s *Service) Add(ctx context.Context, h *Hospital) error {
	if err := h.validate(); err != nil {
		return err
	}
	h.ID = "h_" + uuid.NewString()
	if err := s.repo.Create(ctx, h); err != nil {
		return err
	}
	s.logger.Info().Str("hospital_id", h.ID).Int("available", h.AvailableBeds).Msg("hospital added")
	return nil
}

func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Hospital, error) {
	h, err := s.repo.Update(ctx, id, func(h *Hospital) error {
		patch.apply(h)
		return h.validate()
	})
	if err != nil {
		return nil, fmt.Errorf("hospital %s: %w", id, err)
	}
	s.logger.Info().
		Str("hospital_id", id).
		Int("available", h.AvailableBeds).
		Int("total", h.TotalBeds).
		Msg("bed status updated")
	return h, nil
}

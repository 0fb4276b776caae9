package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/itsaddyon/MediBridge/internal/platform/activity"
	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
	"github.com/itsaddyon/MediBridge/internal/platform/metrics"
)

// OpenReferralChecker reports whether a patient still has referrals that
// are not closed.
type OpenReferralChecker interface {
	HasOpenReferrals(ctx context.Context, patientID uuid.UUID) (bool, error)
}

type Service struct {
	repo      Repository
	referrals OpenReferralChecker
	logger    zerolog.Logger
	metrics   *metrics.Collector
}

func NewService(repo Repository, referrals OpenReferralChecker, logger zerolog.Logger, collector *metrics.Collector) *Service {
	return &Service{
		repo:      repo,
		referrals: referrals,
		logger:    logger.With().Str("component", "patient").Logger(),
		metrics:   collector,
	}
}

func (s *Service) Create(ctx context.Context, owner uuid.UUID, p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	var missing []string
	if p.FirstName == "" {
		missing = append(missing, "firstName")
	}
	if p.LastName == "" {
		missing = append(missing, "lastName")
	}
	if len(missing) > 0 {
		return apperr.Invalid(missing...)
	}
	if p.DateOfBirth != nil {
		if err := validateDate(*p.DateOfBirth); err != nil {
			return err
		}
	}

	p.ID = uuid.New()
	p.OwnerUserID = owner
	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}
	s.metrics.PatientCreated()
	activity.Record(ctx, activity.Note{
		Kind:     activity.KindPatient,
		Action:   "Patient Registered",
		Details:  fmt.Sprintf("New patient %s registered", p.FullName()),
		Severity: activity.SeveritySuccess,
	})
	return nil
}

func (s *Service) List(ctx context.Context, owner uuid.UUID) ([]*Patient, error) {
	return s.repo.ListByOwner(ctx, owner)
}

func (s *Service) Get(ctx context.Context, owner, id uuid.UUID) (*Patient, error) {
	return s.repo.GetOwned(ctx, owner, id)
}

func (s *Service) Update(ctx context.Context, owner, id uuid.UUID, patch Patch) (*Patient, error) {
	if patch.FirstName != nil {
		trimmed := strings.TrimSpace(*patch.FirstName)
		if trimmed == "" {
			return nil, apperr.Invalid("firstName")
		}
		patch.FirstName = &trimmed
	}
	if patch.LastName != nil {
		trimmed := strings.TrimSpace(*patch.LastName)
		if trimmed == "" {
			return nil, apperr.Invalid("lastName")
		}
		patch.LastName = &trimmed
	}
	if patch.DateOfBirth != nil && *patch.DateOfBirth != "" {
		if err := validateDate(*patch.DateOfBirth); err != nil {
			return nil, err
		}
	}
	return s.repo.UpdateOwned(ctx, owner, id, patch)
}

// Delete removes a patient. A patient with open referrals is kept and
// apperr.ErrConflict is returned.
func (s *Service) Delete(ctx context.Context, owner, id uuid.UUID) error {
	p, err := s.repo.GetOwned(ctx, owner, id)
	if err != nil {
		return err
	}
	if s.referrals != nil {
		open, err := s.referrals.HasOpenReferrals(ctx, id)
		if err != nil {
			return fmt.Errorf("check open referrals: %w", err)
		}
		if open {
			return fmt.Errorf("patient has open referrals: %w", apperr.ErrConflict)
		}
	}
	if err := s.repo.DeleteOwned(ctx, owner, id); err != nil {
		return err
	}
	s.logger.Info().Str("patient_id", id.String()).Msg("patient deleted")
	activity.Record(ctx, activity.Note{
		Kind:    activity.KindPatient,
		Action:  "Patient Removed",
		Details: fmt.Sprintf("Removed patient %s", p.FullName()),
	})
	return nil
}

func validateDate(v string) error {
	if _, err := time.Parse(DateLayout, v); err != nil {
		return apperr.Invalidf("dob must be formatted as YYYY-MM-DD")
	}
	return nil
}

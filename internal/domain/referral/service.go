package referral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/itsaddyon/MediBridge/internal/domain/patient"
	"github.com/itsaddyon/MediBridge/internal/platform/activity"
	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
	"github.com/itsaddyon/MediBridge/internal/platform/events"
	"github.com/itsaddyon/MediBridge/internal/platform/metrics"
	"github.com/itsaddyon/MediBridge/pkg/pagination"
)

const (
	EventCreated       = "referral.created"
	EventStatusChanged = "referral.status_changed"
)

// PatientLookup resolves a patient under its owner.
type PatientLookup interface {
	Get(ctx context.Context, owner, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	repo      Repository
	patients  PatientLookup
	publisher events.Publisher
	logger    zerolog.Logger
	metrics   *metrics.Collector
}

func NewService(repo Repository, patients PatientLookup, publisher events.Publisher, logger zerolog.Logger, collector *metrics.Collector) *Service {
	return &Service{
		repo:      repo,
		patients:  patients,
		publisher: publisher,
		logger:    logger.With().Str("component", "referral").Logger(),
		metrics:   collector,
	}
}

// Create opens a pending referral for a patient the creator owns.
func (s *Service) Create(ctx context.Context, creator uuid.UUID, in CreateInput) (*Referral, error) {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"patientId", in.PatientID},
		{"destinationFacility", in.DestinationFacility},
		{"department", in.Department},
		{"urgency", in.Urgency},
		{"symptoms", in.Symptoms},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.Invalid(missing...)
	}
	urgency, err := ParseUrgency(in.Urgency)
	if err != nil {
		return nil, err
	}

	patientID, err := uuid.Parse(in.PatientID)
	if err != nil {
		return nil, fmt.Errorf("patient %s: %w", in.PatientID, apperr.ErrNotFound)
	}
	p, err := s.patients.Get(ctx, creator, patientID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("patient %s: %w", in.PatientID, apperr.ErrNotFound)
		}
		return nil, err
	}

	ref := &Referral{
		ID:                  uuid.New(),
		PatientID:           p.ID,
		PatientName:         p.FullName(),
		OriginClinic:        strings.TrimSpace(in.OriginClinic),
		DestinationFacility: strings.TrimSpace(in.DestinationFacility),
		Department:          strings.TrimSpace(in.Department),
		Urgency:             urgency,
		Symptoms:            strings.TrimSpace(in.Symptoms),
		Diagnosis:           in.Diagnosis,
		TestsPerformed:      in.TestsPerformed,
		Medications:         in.Medications,
		Status:              StatusPending,
		CreatedBy:           creator,
	}
	if err := s.repo.Create(ctx, ref); err != nil {
		return nil, err
	}

	s.metrics.ReferralCreated(string(urgency))
	s.logger.Info().
		Str("referral_id", ref.ID.String()).
		Str("urgency", string(urgency)).
		Str("destination", ref.DestinationFacility).
		Msg("referral created")
	activity.Record(ctx, activity.Note{
		Kind:    activity.KindReferral,
		Action:  "Referral Created",
		Details: fmt.Sprintf("Created referral for patient %s to %s", ref.PatientName, ref.DestinationFacility),
	})
	s.publish(ctx, EventCreated, ref)
	return ref, nil
}

// Transition advances a referral by one status. Details are recorded only
// when the referral becomes diagnosed.
func (s *Service) Transition(ctx context.Context, id, actor uuid.UUID, to Status, d Details) (*Referral, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(current.Status, to); err != nil {
		return nil, err
	}
	if to != StatusDiagnosed {
		d = Details{}
	}

	ref, err := s.repo.SetStatus(ctx, id, current.Status, to, d)
	if errors.Is(err, errStaleStatus) {
		// Another transition won the race, or the referral vanished.
		if _, getErr := s.repo.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("referral %s moved concurrently: %w", id, apperr.ErrInvalidTransition)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.ReferralTransitioned(string(to))
	s.logger.Info().
		Str("referral_id", id.String()).
		Str("actor", actor.String()).
		Str("from", string(current.Status)).
		Str("to", string(to)).
		Msg("referral transitioned")
	activity.Record(ctx, transitionNote(ref))
	s.publish(ctx, EventStatusChanged, ref)
	return ref, nil
}

func transitionNote(ref *Referral) activity.Note {
	switch ref.Status {
	case StatusDiagnosed:
		return activity.Note{
			Kind:    activity.KindDiagnosis,
			Action:  "Diagnosis Updated",
			Details: fmt.Sprintf("Updated diagnosis for patient %s", ref.PatientName),
		}
	case StatusClosed:
		return activity.Note{
			Kind:     activity.KindReferral,
			Action:   "Referral Closed",
			Details:  fmt.Sprintf("Closed referral for patient %s", ref.PatientName),
			Severity: activity.SeveritySuccess,
		}
	default:
		return activity.Note{
			Kind:    activity.KindReferral,
			Action:  "Referral Accepted",
			Details: fmt.Sprintf("%s accepted the referral for patient %s", ref.DestinationFacility, ref.PatientName),
		}
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return s.repo.Get(ctx, id)
}

// List returns one page of referrals, newest first, optionally restricted to
// a status.
func (s *Service) List(ctx context.Context, f Filter, page pagination.Params) ([]*Referral, int, error) {
	return s.repo.List(ctx, f, page)
}

// HasOpenReferrals lets the patient service refuse deleting a patient that
// is still being referred.
func (s *Service) HasOpenReferrals(ctx context.Context, patientID uuid.UUID) (bool, error) {
	return s.repo.HasOpenReferrals(ctx, patientID)
}

// publish is best effort: the referral is already stored, so a cancelled
// request must not stop the event.
func (s *Service) publish(ctx context.Context, eventType string, ref *Referral) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(ref)
	if err != nil {
		s.logger.Error().Err(err).Str("referral_id", ref.ID.String()).Msg("encode referral event")
		return
	}
	err = s.publisher.Publish(context.WithoutCancel(ctx), events.Event{
		Type:    eventType,
		Key:     ref.ID.String(),
		Payload: payload,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("referral_id", ref.ID.String()).Str("event", eventType).Msg("referral event not delivered")
	}
}

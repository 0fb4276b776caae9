package activitylog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/itsaddyon/MediBridge/internal/domain/account"
	"github.com/itsaddyon/MediBridge/internal/platform/activity"
	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
	"github.com/itsaddyon/MediBridge/internal/platform/middleware"
	"github.com/itsaddyon/MediBridge/pkg/pagination"
)

// UserLookup resolves the display name of an actor.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*account.User, error)
}

type Service struct {
	repo   Repository
	users  UserLookup
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, users UserLookup, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		users:  users,
		logger: logger.With().Str("component", "activitylog").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

var _ middleware.ActivityRecorder = (*Service)(nil)

// RecordActivity stores one entry, naming the actor from the account store.
// Entries whose actor cannot be resolved are kept under UnknownUser.
func (s *Service) RecordActivity(ctx context.Context, in middleware.ActivityEntry) error {
	if !activity.ValidKind(string(in.Note.Kind)) {
		return apperr.Invalidf("unknown activity kind %q", in.Note.Kind)
	}
	e := &Entry{
		ID:         uuid.New(),
		Kind:       in.Note.Kind,
		Action:     in.Note.Action,
		User:       UnknownUser,
		Details:    in.Note.Details,
		Severity:   in.Note.Severity,
		IPAddress:  in.IPAddress,
		RequestID:  in.RequestID,
		OccurredAt: in.Timestamp,
	}
	if e.Severity == "" {
		e.Severity = activity.SeverityInfo
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now()
	}
	if in.UserID != uuid.Nil {
		id := in.UserID
		e.UserID = &id
		u, err := s.users.GetByID(ctx, id)
		switch {
		case err == nil:
			e.User = u.DisplayName
		case !errors.Is(err, apperr.ErrNotFound):
			s.logger.Warn().Err(err).Str("user_id", id.String()).Msg("resolve activity actor")
		}
	}
	return s.repo.Create(ctx, e)
}

// List returns one page of entries, newest first.
func (s *Service) List(ctx context.Context, f Filter, page pagination.Params) ([]*Entry, int, error) {
	return s.repo.List(ctx, f, page)
}

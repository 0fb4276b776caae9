package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/itsaddyon/MediBridge/internal/platform/activity"
	"github.com/itsaddyon/MediBridge/internal/platform/auth"
)

// ActivityEntry is one activity note together with the request it came from.
type ActivityEntry struct {
	Note       activity.Note
	UserID     uuid.UUID
	UserRoles  []string
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// ActivityRecorder persists activity entries.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, entry ActivityEntry) error
}

// ActivityRecorderFunc is a function adapter for ActivityRecorder.
type ActivityRecorderFunc func(ctx context.Context, entry ActivityEntry) error

func (f ActivityRecorderFunc) RecordActivity(ctx context.Context, entry ActivityEntry) error {
	return f(ctx, entry)
}

const activityRecordTimeout = 5 * time.Second

// Activity opens an activity trail for each request and, once the handler
// returns, hands every note recorded on it to recorder. The note's ActorID
// wins over the authenticated caller. Recording failures are logged and
// never change the response.
func Activity(logger zerolog.Logger, recorder ActivityRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if recorder == nil {
				return next(c)
			}

			ctx, drain := activity.WithTrail(c.Request().Context())
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			notes := drain()
			if len(notes) == 0 {
				return err
			}

			req := c.Request()
			base := ActivityEntry{
				UserRoles:  auth.RolesFromContext(req.Context()),
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				Path:       c.Path(),
				Method:     req.Method,
				RequestID:  requestID(c),
				StatusCode: responseStatus(c, err),
				Timestamp:  time.Now().UTC(),
			}
			caller, _ := auth.UserUUIDFromContext(req.Context())

			recCtx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), activityRecordTimeout)
			defer cancel()
			for _, n := range notes {
				entry := base
				entry.Note = n
				entry.UserID = caller
				if n.ActorID != uuid.Nil {
					entry.UserID = n.ActorID
				}
				if recErr := recorder.RecordActivity(recCtx, entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Str("action", n.Action).
						Msg("failed to record activity")
				}
			}
			return err
		}
	}
}

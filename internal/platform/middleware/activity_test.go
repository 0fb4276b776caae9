package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/itsaddyon/MediBridge/internal/platform/activity"
	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
	"github.com/itsaddyon/MediBridge/internal/platform/auth"
)

type activitySink struct {
	entries []ActivityEntry
	err     error
}

func (s *activitySink) RecordActivity(_ context.Context, e ActivityEntry) error {
	s.entries = append(s.entries, e)
	return s.err
}

func TestActivity_RecordsNotesWithCaller(t *testing.T) {
	sink := &activitySink{}
	caller := uuid.New()

	e := echo.New()
	e.Use(RequestID(), Activity(zerolog.Nop(), sink))
	e.POST("/api/patients", func(c echo.Context) error {
		ctx := auth.WithUser(c.Request().Context(), caller.String(), []string{auth.RoleClinic})
		c.SetRequest(c.Request().WithContext(ctx))
		activity.Record(ctx, activity.Note{Kind: activity.KindPatient, Action: "Patient Registered", Severity: activity.SeveritySuccess})
		return c.NoContent(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/patients", nil)
	req.Header.Set("X-Real-IP", "10.0.0.7")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if len(sink.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(sink.entries))
	}
	got := sink.entries[0]
	if got.UserID != caller || got.Note.Action != "Patient Registered" {
		t.Errorf("unexpected entry %+v", got)
	}
	if got.Path != "/api/patients" || got.StatusCode != http.StatusCreated || got.IPAddress != "10.0.0.7" {
		t.Errorf("request details not captured: %+v", got)
	}
	if got.RequestID == "" {
		t.Error("expected request id")
	}
}

func TestActivity_NoteActorOverridesAndErrorStatus(t *testing.T) {
	sink := &activitySink{err: errors.New("disk full")}
	actor := uuid.New()

	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	e.Use(Activity(zerolog.Nop(), sink))
	e.POST("/api/auth/login", func(c echo.Context) error {
		activity.Record(c.Request().Context(), activity.Note{Kind: activity.KindError, Action: "Failed Login Attempt", ActorID: actor})
		return apperr.ErrInvalidCredentials
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("recorder failure must not change the response, got %d", rec.Code)
	}
	if len(sink.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(sink.entries))
	}
	if sink.entries[0].UserID != actor || sink.entries[0].StatusCode != http.StatusUnauthorized {
		t.Errorf("unexpected entry %+v", sink.entries[0])
	}
}

func TestActivity_QuietRequestsRecordNothing(t *testing.T) {
	sink := &activitySink{}
	e := echo.New()
	e.Use(Activity(zerolog.Nop(), sink))
	e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if len(sink.entries) != 0 {
		t.Errorf("expected no entries, got %d", len(sink.entries))
	}
}

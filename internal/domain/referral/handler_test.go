package referral

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
	"github.com/itsaddyon/MediBridge/internal/platform/auth"
	"github.com/itsaddyon/MediBridge/pkg/pagination"
)

func authed(method, target, body string, user uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req.WithContext(auth.WithUser(req.Context(), user.String(), []string{auth.RoleDoctor}))
}

func TestHandler_CreateAndTransition(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, zerolog.Nop(), false)
	e := echo.New()

	body := `{"patientId":"` + f.patient.ID.String() + `","destinationFacility":"District Hospital","department":"ENT","urgency":"routine","symptoms":"ear ache"}`
	rec := httptest.NewRecorder()
	if err := h.Create(e.NewContext(authed(http.MethodPost, "/", body, f.owner), rec)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var ref Referral
	if err := json.Unmarshal(rec.Body.Bytes(), &ref); err != nil {
		t.Fatalf("decode: %v", err)
	}

	c := e.NewContext(authed(http.MethodPost, "/", `{"status":"diagnosed"}`, uuid.New()), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(ref.ID.String())
	err := h.Transition(c)
	if apperr.Status(err) != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 mapping for skipped step, got %v", err)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(authed(http.MethodPost, "/", `{"status":"accepted"}`, uuid.New()), rec)
	c.SetParamNames("id")
	c.SetParamValues(ref.ID.String())
	if err := h.Transition(c); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ref); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ref.Status != StatusAccepted {
		t.Errorf("expected accepted, got %s", ref.Status)
	}
}

func TestHandler_ListFiltersAndPaginates(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, zerolog.Nop(), false)
	e := echo.New()
	f.create(t)
	f.create(t)

	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(authed(http.MethodGet, "/?status=pending&limit=1", "", f.owner), rec)); err != nil {
		t.Fatalf("list: %v", err)
	}
	var page pagination.Page[Referral]
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 2 || len(page.Data) != 1 || !page.HasMore {
		t.Errorf("unexpected page %+v", page)
	}

	err := h.List(e.NewContext(authed(http.MethodGet, "/?status=lost", "", f.owner), httptest.NewRecorder()))
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for unknown status, got %v", err)
	}
}

func TestHandler_GetMalformedID(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, zerolog.Nop(), false)
	c := echo.New().NewContext(authed(http.MethodGet, "/", "", f.owner), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("r_1699999")
	if err := h.Get(c); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestHandler_Acknowledge(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, zerolog.Nop(), true)
	e := echo.New()
	h.RegisterRoutes(e.Group("/api"), e.Group("/api"))

	req := httptest.NewRequest(http.MethodPost, "/api/refer", strings.NewReader(`{"patient":"x","hospital":"y"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp ackResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.Message != "Referral received" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandler_AcknowledgeMalformedBody(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, zerolog.Nop(), true)
	e := echo.New()
	h.RegisterRoutes(e.Group("/api"), e.Group("/api"))

	for body, want := range map[string]int{
		`{"patient":`: http.StatusBadRequest,
		``:            http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/refer", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != want {
			t.Errorf("body %q: expected %d, got %d", body, want, rec.Code)
		}
	}
}

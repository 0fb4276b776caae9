package referral

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
	"github.com/itsaddyon/MediBridge/internal/platform/auth"
	"github.com/itsaddyon/MediBridge/pkg/pagination"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
	demo   bool
}

// NewHandler builds the referral endpoints. With demo enabled the
// unauthenticated acknowledgement endpoint POST /refer is mounted too.
func NewHandler(svc *Service, logger zerolog.Logger, demo bool) *Handler {
	return &Handler{svc: svc, logger: logger, demo: demo}
}

func (h *Handler) RegisterRoutes(public, protected *echo.Group) {
	protected.POST("/referrals", h.Create)
	protected.GET("/referrals", h.List)
	protected.GET("/referrals/:id", h.Get)
	protected.POST("/referrals/:id/transition", h.Transition)
	if h.demo {
		public.POST("/refer", h.Acknowledge)
	}
}

func (h *Handler) Create(c echo.Context) error {
	creator, err := auth.UserUUIDFromContext(c.Request().Context())
	if err != nil {
		return apperr.ErrInvalidToken
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ref, err := h.svc.Create(c.Request().Context(), creator, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ref)
}

func (h *Handler) List(c echo.Context) error {
	var f Filter
	if raw := c.QueryParam("status"); raw != "" {
		st, err := ParseStatus(raw)
		if err != nil {
			return err
		}
		f.Status = &st
	}
	pg := pagination.FromContext(c)
	refs, total, err := h.svc.List(c.Request().Context(), f, pg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewPage(refs, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.ErrNotFound
	}
	ref, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ref)
}

type transitionRequest struct {
	Status string `json:"status"`
	Details
}

func (h *Handler) Transition(c echo.Context) error {
	actor, err := auth.UserUUIDFromContext(c.Request().Context())
	if err != nil {
		return apperr.ErrInvalidToken
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.ErrNotFound
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	to, err := ParseStatus(req.Status)
	if err != nil {
		return err
	}
	ref, err := h.svc.Transition(c.Request().Context(), id, actor, to, req.Details)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ref)
}

type ackResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Acknowledge accepts a free-form referral from the landing page without
// storing it. Only the field names are logged since values may hold
// patient details.
func (h *Handler) Acknowledge(c echo.Context) error {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return c.JSON(http.StatusBadRequest, ackResponse{Message: "invalid request body"})
	}

	fields := make([]string, 0, len(body))
	for k := range body {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	h.logger.Info().Strs("fields", fields).Msg("referral received")

	return c.JSON(http.StatusOK, ackResponse{OK: true, Message: "Referral received"})
}

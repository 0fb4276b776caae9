package patient

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
	"github.com/itsaddyon/MediBridge/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the patient endpoints on a token-protected group.
func (h *Handler) RegisterRoutes(protected *echo.Group) {
	protected.GET("/patients", h.List)
	protected.POST("/patients", h.Create)
	protected.GET("/patients/:id", h.Get)
	protected.PUT("/patients/:id", h.Update)
	protected.DELETE("/patients/:id", h.Delete)
}

type createRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DateOfBirth string `json:"dob"`
	Phone       string `json:"phone"`
	Notes       string `json:"notes"`
}

func (h *Handler) Create(c echo.Context) error {
	owner, err := auth.UserUUIDFromContext(c.Request().Context())
	if err != nil {
		return apperr.ErrInvalidToken
	}
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p := &Patient{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: optional(req.DateOfBirth),
		Phone:       optional(req.Phone),
		Notes:       optional(req.Notes),
	}
	if err := h.svc.Create(c.Request().Context(), owner, p); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) List(c echo.Context) error {
	owner, err := auth.UserUUIDFromContext(c.Request().Context())
	if err != nil {
		return apperr.ErrInvalidToken
	}
	patients, err := h.svc.List(c.Request().Context(), owner)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, patients)
}

func (h *Handler) Get(c echo.Context) error {
	owner, id, err := ownerAndID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), owner, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	owner, id, err := ownerAndID(c)
	if err != nil {
		return err
	}
	var patch Patch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.Update(c.Request().Context(), owner, id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	owner, id, err := ownerAndID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), owner, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ownerAndID resolves the caller and the :id path parameter. A malformed id
// cannot name any patient, so it is reported as not found.
func ownerAndID(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	owner, err := auth.UserUUIDFromContext(c.Request().Context())
	if err != nil {
		return uuid.Nil, uuid.Nil, apperr.ErrInvalidToken
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, apperr.ErrNotFound
	}
	return owner, id, nil
}

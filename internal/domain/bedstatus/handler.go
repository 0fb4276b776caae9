package bedstatus

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/itsaddyon/MediBridge/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts bed status on a token-protected group. Reading is
// open to every account; changes need the doctor role.
func (h *Handler) RegisterRoutes(protected *echo.Group) {
	protected.GET("/beds", h.List)

	write := protected.Group("", auth.RequireRole(auth.RoleDoctor))
	write.POST("/beds", h.Add)
	write.PATCH("/beds/:id", h.Update)
}

func (h *Handler) List(c echo.Context) error {
	list, err := h.svc.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

type addRequest struct {
	Name          string `json:"name"`
	TotalBeds     int    `json:"totalBeds"`
	AvailableBeds int    `json:"availableBeds"`
	ExtraNeeds    string `json:"extraNeeds"`
}

func (h *Handler) Add(c echo.Context) error {
	var req addRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	hosp := &Hospital{
		Name:          req.Name,
		TotalBeds:     req.TotalBeds,
		AvailableBeds: req.AvailableBeds,
		ExtraNeeds:    req.ExtraNeeds,
	}
	if err := h.svc.Add(c.Request().Context(), hosp); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, hosp)
}

func (h *Handler) Update(c echo.Context) error {
	var patch Patch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	hosp, err := h.svc.Update(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hosp)
}

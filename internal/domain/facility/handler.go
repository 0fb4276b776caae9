package facility

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
)

type Handler struct {
	dir *Directory
}

func NewHandler(dir *Directory) *Handler {
	return &Handler{dir: dir}
}

func (h *Handler) RegisterRoutes(public *echo.Group) {
	public.GET("/locations", h.Locations)
	public.GET("/facilities/nearest", h.Nearest)
}

type locationsResponse struct {
	OK        bool       `json:"ok"`
	Locations []Facility `json:"locations"`
}

type nearestResponse struct {
	OK      bool     `json:"ok"`
	Results []Ranked `json:"results"`
}

func (h *Handler) Locations(c echo.Context) error {
	return c.JSON(http.StatusOK, locationsResponse{OK: true, Locations: h.dir.All()})
}

func (h *Handler) Nearest(c echo.Context) error {
	lat, latErr := strconv.ParseFloat(c.QueryParam("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.QueryParam("lng"), 64)
	if latErr != nil || lngErr != nil {
		return fmt.Errorf("lat and lng are required: %w", apperr.ErrInvalidCoordinates)
	}

	var filter *Type
	if raw := c.QueryParam("type"); raw != "" {
		t, err := ParseType(raw)
		if err != nil {
			return err
		}
		filter = &t
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return apperr.Invalid("limit")
		}
		limit = n
	}

	results, err := h.dir.Nearest(lat, lng, filter, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nearestResponse{OK: true, Results: results})
}

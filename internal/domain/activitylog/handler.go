package activitylog

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/itsaddyon/MediBridge/internal/platform/activity"
	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
	"github.com/itsaddyon/MediBridge/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the log on admin, which must already require the
// admin role.
func (h *Handler) RegisterRoutes(admin *echo.Group) {
	admin.GET("/activity", h.List)
}

// List serves GET /admin/activity?type=&q=&range=today|week|month|all.
func (h *Handler) List(c echo.Context) error {
	var f Filter
	if kind := c.QueryParam("type"); kind != "" && kind != "all" {
		if !activity.ValidKind(kind) {
			return apperr.Invalidf("unknown activity type %q", kind)
		}
		f.Kind = activity.Kind(kind)
	}
	f.Search = strings.TrimSpace(c.QueryParam("q"))
	since, err := Since(c.QueryParam("range"), h.svc.now())
	if err != nil {
		return err
	}
	f.Since = since

	pg := pagination.FromContext(c)
	entries, total, err := h.svc.List(c.Request().Context(), f, pg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewPage(entries, total, pg))
}

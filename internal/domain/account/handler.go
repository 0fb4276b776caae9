package account

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
	"github.com/itsaddyon/MediBridge/internal/platform/auth"
)

// DemoClinicName is the display name of the account behind clinic-login.
const DemoClinicName = "Demo PHC Clinic"

type Handler struct {
	svc  *Service
	demo bool
}

// NewHandler builds the auth endpoints. With demo enabled the clinic-login
// route is registered as well.
func NewHandler(svc *Service, demo bool) *Handler {
	return &Handler{svc: svc, demo: demo}
}

// RegisterRoutes mounts the public endpoints on public and the
// token-protected ones on protected.
func (h *Handler) RegisterRoutes(public, protected *echo.Group) {
	public.POST("/auth/register", h.Register)
	public.POST("/auth/login", h.Login)
	if h.demo {
		public.POST("/auth/clinic-login", h.ClinicLogin)
	}
	protected.GET("/auth/me", h.Me)
}

// RegisterAdminRoutes mounts account administration on admin, which must
// already require the admin role.
func (h *Handler) RegisterAdminRoutes(admin *echo.Group) {
	admin.GET("/users", h.ListUsers)
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sess, err := h.svc.Register(c.Request().Context(), req.Email, req.Password, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sess, err := h.svc.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

type clinicLoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type clinicInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type clinicLoginResponse struct {
	OK      bool        `json:"ok"`
	Token   string      `json:"token,omitempty"`
	Clinic  *clinicInfo `json:"clinic,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ClinicLogin is the demo sign-in used by the clinic landing page. It keeps
// the {ok, message} body the page expects on failure.
func (h *Handler) ClinicLogin(c echo.Context) error {
	var req clinicLoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, clinicLoginResponse{Message: "invalid request body"})
	}
	if req.Identifier == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, clinicLoginResponse{Message: "Missing credentials"})
	}

	sess, err := h.svc.Authenticate(c.Request().Context(), req.Identifier, req.Password)
	if errors.Is(err, apperr.ErrInvalidCredentials) || errors.Is(err, apperr.ErrValidation) {
		return c.JSON(http.StatusUnauthorized, clinicLoginResponse{Message: "Invalid credentials"})
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, clinicLoginResponse{
		OK:    true,
		Token: sess.Token,
		Clinic: &clinicInfo{
			ID:    sess.User.ID.String(),
			Name:  sess.User.DisplayName,
			Email: sess.User.Email,
		},
	})
}

func (h *Handler) Me(c echo.Context) error {
	id, err := auth.UserUUIDFromContext(c.Request().Context())
	if err != nil {
		return apperr.ErrInvalidToken
	}
	u, err := h.svc.Me(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ListUsers(c echo.Context) error {
	users, err := h.svc.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

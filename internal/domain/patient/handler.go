package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/c2s/ums/internal/domain/user"
	"github.com/c2s/ums/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("admin", "registrar", "support")

	api.GET("/patients/:mrn", h.GetByMRN, role)
	api.GET("/access-decision", h.AccessDecision, role)
	api.GET("/users/auth/:authID/patients", h.ListForUser, role)
}

func (h *Handler) GetByMRN(c echo.Context) error {
	mrn := c.Param("mrn")
	authID := c.QueryParam("user_auth_id")
	p, err := h.svc.GetByMRN(c.Request().Context(), mrn, authID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) AccessDecision(c echo.Context) error {
	authID := c.QueryParam("user_auth_id")
	mrn := c.QueryParam("mrn")
	if authID == "" || mrn == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_auth_id and mrn are required")
	}
	granted, err := h.svc.AccessDecision(c.Request().Context(), authID, mrn)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"access_granted": granted})
}

func (h *Handler) ListForUser(c echo.Context) error {
	patients, err := h.svc.ListForUser(c.Request().Context(), c.Param("authID"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, patients)
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrPatientNotFound), errors.Is(err, user.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

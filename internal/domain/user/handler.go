package user

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/c2s/ums/internal/domain/identifier"
	"github.com/c2s/ums/internal/platform/auth"
	"github.com/c2s/ums/internal/platform/db"
	"github.com/c2s/ums/pkg/pagination"
)

type Handler struct {
	svc             *Service
	defaultPageSize int
	maxPageSize     int
}

func NewHandler(svc *Service, defaultPageSize, maxPageSize int) *Handler {
	return &Handler{svc: svc, defaultPageSize: defaultPageSize, maxPageSize: maxPageSize}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("admin", "registrar")

	api.POST("/users", h.RegisterUser, role)
	api.GET("/users", h.ListUsers, role)
	api.GET("/users/:id", h.GetUser, role)
	api.PUT("/users/:id", h.UpdateUser, role)
	api.PUT("/users/:id/disable", h.DisableUser, role)
	api.PUT("/users/:id/enable", h.EnableUser, role)
}

func (h *Handler) RegisterUser(c echo.Context) error {
	var in UserInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.RegisterUser(c.Request().Context(), &in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in UserInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.UpdateUser(c.Request().Context(), id, &in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContextWithLimits(c, h.defaultPageSize, h.maxPageSize)

	if term := c.QueryParam("name"); term != "" {
		users, total, err := h.svc.SearchUsers(c.Request().Context(), term, pg.Limit, pg.Offset)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(users, total, pg.Limit, pg.Offset))
	}

	users, total, err := h.svc.ListUsers(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, pg.Limit, pg.Offset))
}

func (h *Handler) DisableUser(c echo.Context) error {
	return h.toggle(c, h.svc.DisableUser)
}

func (h *Handler) EnableUser(c echo.Context) error {
	return h.toggle(c, h.svc.EnableUser)
}

func (h *Handler) toggle(c echo.Context, op func(ctx context.Context, id uuid.UUID) error) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := op(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrMissingEmail),
		errors.Is(err, ErrSSNSystemNotFound),
		errors.Is(err, identifier.ErrSystemNotFound):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUserActivationNotFound),
		errors.Is(err, db.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

package calendar

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/calendar", auth.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
	g.GET("/view", h.GetView)
	g.GET("/view.ics", h.ExportICS)
	g.GET("/events", h.ListEvents)
	g.GET("/events/:id", h.GetEvent)
	g.POST("/events", h.CreateEvent)
	g.PUT("/events/:id", h.UpdateEvent)
	g.DELETE("/events/:id", h.DeleteEvent)
}

func (h *Handler) CreateEvent(c echo.Context) error {
	var e Event
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	owner := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.CreateEvent(c.Request().Context(), owner, &e); err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetEvent(c echo.Context) error {
	owner := auth.UserIDFromContext(c.Request().Context())
	e, err := h.svc.GetEvent(c.Request().Context(), owner, c.Param("id"))
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListEvents(c echo.Context) error {
	pg := pagination.FromContext(c)
	owner := auth.UserIDFromContext(c.Request().Context())
	items, total, err := h.svc.ListEvents(c.Request().Context(), owner, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}

func (h *Handler) UpdateEvent(c echo.Context) error {
	var e Event
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e.ID = c.Param("id")
	owner := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.UpdateEvent(c.Request().Context(), owner, &e); err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteEvent(c echo.Context) error {
	owner := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.DeleteEvent(c.Request().Context(), owner, c.Param("id")); err != nil {
		return serviceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Views --

func (h *Handler) GetView(c echo.Context) error {
	q, err := viewQueryFromContext(c)
	if err != nil {
		return err
	}
	owner := auth.UserIDFromContext(c.Request().Context())
	res, err := h.svc.View(c.Request().Context(), owner, q)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ExportICS(c echo.Context) error {
	q, err := viewQueryFromContext(c)
	if err != nil {
		return err
	}
	owner := auth.UserIDFromContext(c.Request().Context())
	res, err := h.svc.View(c.Request().Context(), owner, q)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	var buf bytes.Buffer
	if err := EncodeICS(&buf, res.Events, h.svc.now()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="calendar.ics"`)
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}

func viewQueryFromContext(c echo.Context) (ViewQuery, error) {
	view, err := ParseView(c.QueryParam("view"))
	if err != nil {
		return ViewQuery{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	q := ViewQuery{
		View:     view,
		Category: Category(c.QueryParam("category")),
	}
	if d := c.QueryParam("date"); d != "" {
		t, err := time.Parse(DateLayout, d)
		if err != nil {
			return ViewQuery{}, echo.NewHTTPError(http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		}
		q.Date = t
	}
	q.IncludeAppointments = auth.HasRole(c.Request().Context(), auth.RoleDoctor)
	return q, nil
}

func serviceError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	case errors.Is(err, ErrInvalidEvent):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

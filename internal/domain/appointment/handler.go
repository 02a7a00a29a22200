package appointment

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
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
	// Read endpoints – patients only see their own appointments
	readGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor, auth.RolePatient))
	readGroup.GET("/appointments/:id", h.GetAppointment)
	readGroup.GET("/patients/:id/appointments", h.ListPatientAppointments)

	// Staff endpoints – admin, doctor
	staffGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))
	staffGroup.GET("/appointments", h.ListAppointments)
	staffGroup.GET("/doctors/:id/appointments", h.ListDoctorAppointments)
	staffGroup.PATCH("/appointments/:id/status", h.UpdateStatus)

	// Booking endpoints – admin, patient
	bookGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RolePatient))
	bookGroup.POST("/appointments", h.CreateAppointment)
	bookGroup.PUT("/appointments/:id", h.UpdateAppointment)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.DELETE("/appointments/:id", h.DeleteAppointment)
}

// patientScope returns the caller's id when they may only touch their own
// appointments.
func patientScope(c echo.Context) (string, bool) {
	ctx := c.Request().Context()
	if auth.HasRole(ctx, auth.RoleAdmin) || auth.HasRole(ctx, auth.RoleDoctor) {
		return "", false
	}
	return auth.UserIDFromContext(ctx), true
}

// doctorScope returns the caller's id when they act as a doctor rather
// than an admin.
func doctorScope(c echo.Context) (string, bool) {
	ctx := c.Request().Context()
	if auth.HasRole(ctx, auth.RoleAdmin) {
		return "", false
	}
	return auth.UserIDFromContext(ctx), auth.HasRole(ctx, auth.RoleDoctor)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// owned loads the appointment and hides it from patients it does not
// belong to.
func (h *Handler) owned(c echo.Context, id uuid.UUID) (*Appointment, error) {
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return nil, serviceError(err)
	}
	if self, scoped := patientScope(c); scoped && a.PatientID != self {
		return nil, echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	return a, nil
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if self, scoped := patientScope(c); scoped {
		a.PatientID = self
	}
	if err := h.svc.CreateAppointment(c.Request().Context(), &a); err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.owned(c, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{
		PatientID: c.QueryParam("patient_id"),
		DoctorID:  c.QueryParam("doctor_id"),
		Status:    c.QueryParam("status"),
	}
	items, total, err := h.svc.ListAppointments(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}

func (h *Handler) ListPatientAppointments(c echo.Context) error {
	patientID := c.Param("id")
	if self, scoped := patientScope(c); scoped && patientID != self {
		return echo.NewHTTPError(http.StatusForbidden, "patients may only view their own appointments")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}

func (h *Handler) ListDoctorAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByDoctor(c.Request().Context(), c.Param("id"), pg.Limit, pg.Offset)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var patch Appointment
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if _, err := h.owned(c, id); err != nil {
		return err
	}
	if self, scoped := patientScope(c); scoped {
		patch.PatientID = self
	}
	a, err := h.svc.UpdateAppointment(c.Request().Context(), id, &patch)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus limits doctors to their own appointments.
func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if self, scoped := doctorScope(c); scoped {
		a, err := h.svc.GetAppointment(ctx, id)
		if err != nil {
			return serviceError(err)
		}
		if a.DoctorID != self {
			return echo.NewHTTPError(http.StatusForbidden, "doctors may only update their own appointments")
		}
	}
	a, err := h.svc.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), id); err != nil {
		return serviceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func serviceError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

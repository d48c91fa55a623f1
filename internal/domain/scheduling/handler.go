package scheduling

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ehrbridge/internal/ehr"
	"github.com/ehr/ehrbridge/internal/platform/middleware"
)

type Handler struct {
	svc      *Service
	provider ehr.Provider
}

func NewHandler(svc *Service, provider ehr.Provider) *Handler {
	return &Handler{svc: svc, provider: provider}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/appointments", h.ListAppointments)
	g.POST("/appointments", h.CreateAppointment)
	g.PUT("/appointments/:id", h.UpdateAppointment)
	g.POST("/appointments/:id/cancel", h.CancelAppointment)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) ListAppointments(c echo.Context) error {
	client, err := middleware.VendorClient(c, h.provider)
	if err != nil {
		return err
	}
	q := ehr.AppointmentQuery{
		PatientID:  c.QueryParam("patientId"),
		ProviderID: c.QueryParam("providerId"),
		Date:       c.QueryParam("date"),
		Status:     c.QueryParam("status"),
	}
	appts, err := h.svc.ListAppointments(c.Request().Context(), client, q)
	if err != nil {
		return middleware.VendorError(err, "fetch appointments", "")
	}
	return c.JSON(http.StatusOK, appts)
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a ehr.Appointment
	if err := middleware.BindAndValidate(c, &a); err != nil {
		return err
	}
	client, err := middleware.VendorClient(c, h.provider)
	if err != nil {
		return err
	}
	out, err := h.svc.CreateAppointment(c.Request().Context(), client, &a)
	if err != nil {
		return mapError(err, "create appointment", "")
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	var a ehr.Appointment
	if err := middleware.BindAndValidate(c, &a); err != nil {
		return err
	}
	client, err := middleware.VendorClient(c, h.provider)
	if err != nil {
		return err
	}
	out, err := h.svc.UpdateAppointment(c.Request().Context(), client, c.Param("id"), &a)
	if err != nil {
		return mapError(err, "update appointment", "Appointment")
	}
	return c.JSON(http.StatusOK, out)
}

// CancelAppointment accepts an empty body; the reason is optional.
func (h *Handler) CancelAppointment(c echo.Context) error {
	var req cancelRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
		}
	}
	client, err := middleware.VendorClient(c, h.provider)
	if err != nil {
		return err
	}
	out, err := h.svc.CancelAppointment(c.Request().Context(), client, c.Param("id"), req.Reason)
	if err != nil {
		return middleware.VendorError(err, "cancel appointment", "Appointment")
	}
	return c.JSON(http.StatusOK, out)
}

func mapError(err error, action, subject string) error {
	if errors.Is(err, ErrInvalidDateTime) {
		return echo.NewHTTPError(http.StatusBadRequest, ErrInvalidDateTime.Error())
	}
	return middleware.VendorError(err, action, subject)
}

package clinical

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
	g.GET("/patients/:id/vitals", h.GetVitals)
	g.POST("/patients/:id/vitals", h.RecordVitals)
	g.GET("/patients/:id/conditions", h.GetConditions)
	g.GET("/patients/:id/medications", h.GetMedications)
	g.PUT("/patients/:id/medications/:medicationId", h.UpdateMedication)
}

func (h *Handler) GetVitals(c echo.Context) error {
	client, err := middleware.VendorClient(c, h.provider)
	if err != nil {
		return err
	}
	v, err := h.svc.GetVitals(c.Request().Context(), client, c.Param("id"))
	if err != nil {
		return middleware.VendorError(err, "fetch vitals", "Patient")
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) RecordVitals(c echo.Context) error {
	var v ehr.VitalSigns
	if err := middleware.BindAndValidate(c, &v); err != nil {
		return err
	}
	client, err := middleware.VendorClient(c, h.provider)
	if err != nil {
		return err
	}
	out, err := h.svc.RecordVitals(c.Request().Context(), client, c.Param("id"), &v)
	if errors.Is(err, ErrIncompleteBloodPressure) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return middleware.VendorError(err, "record vitals", "")
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) GetConditions(c echo.Context) error {
	client, err := middleware.VendorClient(c, h.provider)
	if err != nil {
		return err
	}
	conds, err := h.svc.GetConditions(c.Request().Context(), client, c.Param("id"))
	if err != nil {
		return middleware.VendorError(err, "fetch conditions", "Patient")
	}
	return c.JSON(http.StatusOK, conds)
}

func (h *Handler) GetMedications(c echo.Context) error {
	client, err := middleware.VendorClient(c, h.provider)
	if err != nil {
		return err
	}
	meds, err := h.svc.GetMedications(c.Request().Context(), client, c.Param("id"))
	if err != nil {
		return middleware.VendorError(err, "fetch medications", "Patient")
	}
	return c.JSON(http.StatusOK, meds)
}

func (h *Handler) UpdateMedication(c echo.Context) error {
	var m ehr.Medication
	if err := middleware.BindAndValidate(c, &m); err != nil {
		return err
	}
	client, err := middleware.VendorClient(c, h.provider)
	if err != nil {
		return err
	}
	out, err := h.svc.UpdateMedication(c.Request().Context(), client, c.Param("id"), c.Param("medicationId"), &m)
	if err != nil {
		return middleware.VendorError(err, "update medication", "Medication")
	}
	return c.JSON(http.StatusOK, out)
}

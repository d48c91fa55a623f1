package billing

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
	g.GET("/claims", h.ListClaims)
	g.POST("/claims", h.SubmitClaim)
}

func (h *Handler) ListClaims(c echo.Context) error {
	client, err := middleware.VendorClient(c, h.provider)
	if err != nil {
		return err
	}
	q := ehr.ClaimQuery{PatientID: c.QueryParam("patientId"), Status: c.QueryParam("status")}
	claims, err := h.svc.ListClaims(c.Request().Context(), client, q)
	if err != nil {
		return middleware.VendorError(err, "fetch claims", "")
	}
	return c.JSON(http.StatusOK, claims)
}

func (h *Handler) SubmitClaim(c echo.Context) error {
	var claim ehr.BillingClaim
	if err := middleware.BindAndValidate(c, &claim); err != nil {
		return err
	}
	client, err := middleware.VendorClient(c, h.provider)
	if err != nil {
		return err
	}
	out, err := h.svc.SubmitClaim(c.Request().Context(), client, &claim)
	if errors.Is(err, ErrInvalidServiceDate) {
		return echo.NewHTTPError(http.StatusBadRequest, ErrInvalidServiceDate.Error())
	}
	if err != nil {
		return middleware.VendorError(err, "submit claim", "")
	}
	return c.JSON(http.StatusCreated, out)
}

package patient

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/ehrbridge/internal/ehr"
	"github.com/ehr/ehrbridge/internal/platform/middleware"
	"github.com/ehr/ehrbridge/pkg/pagination"
)

// Handler serves one vendor's patient routes.
type Handler struct {
	svc      *Service
	provider ehr.Provider
}

func NewHandler(svc *Service, provider ehr.Provider) *Handler {
	return &Handler{svc: svc, provider: provider}
}

// RegisterRoutes mounts under a vendor group such as /api/v1/modmed.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/patients", h.ListPatients)
	g.POST("/patients", h.CreatePatient)
	g.GET("/patients/:id", h.GetPatient)
	g.PUT("/patients/:id", h.UpdatePatient)
	g.DELETE("/patients/:id", h.DeletePatient)
}

func (h *Handler) client(c echo.Context) (ehr.Client, error) {
	return middleware.VendorClient(c, h.provider)
}

func (h *Handler) ListPatients(c echo.Context) error {
	client, err := h.client(c)
	if err != nil {
		return err
	}
	q := ehr.PatientQuery{Search: c.QueryParam("search")}
	q.Page, _ = strconv.Atoi(c.QueryParam("page"))
	q.Limit, _ = strconv.Atoi(c.QueryParam("limit"))

	page, err := h.svc.ListPatients(c.Request().Context(), client, q)
	if err != nil {
		return middleware.VendorError(err, "fetch patients", "")
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) GetPatient(c echo.Context) error {
	client, err := h.client(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), client, c.Param("id"))
	if err != nil {
		return middleware.VendorError(err, "fetch patient", "Patient")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p ehr.Patient
	if err := middleware.BindAndValidate(c, &p); err != nil {
		return err
	}
	client, err := h.client(c)
	if err != nil {
		return err
	}
	res, err := h.svc.CreatePatient(c.Request().Context(), client, &p)
	if err != nil {
		return middleware.VendorError(err, "create patient", "")
	}
	return h.renderSync(c, http.StatusCreated, client.Vendor(), res)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	var p ehr.Patient
	if err := middleware.BindAndValidate(c, &p); err != nil {
		return err
	}
	client, err := h.client(c)
	if err != nil {
		return err
	}
	res, err := h.svc.UpdatePatient(c.Request().Context(), client, c.Param("id"), &p)
	if err != nil {
		return middleware.VendorError(err, "update patient", "Patient")
	}
	return h.renderSync(c, http.StatusOK, client.Vendor(), res)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	client, err := h.client(c)
	if err != nil {
		return err
	}
	pending, err := h.svc.DeletePatient(c.Request().Context(), client, c.Param("id"))
	if err != nil {
		return middleware.VendorError(err, "delete patient", "Patient")
	}
	body := map[string]interface{}{"message": "Patient deleted successfully"}
	if pending {
		body["pending"] = true
		return c.JSON(http.StatusAccepted, body)
	}
	return c.JSON(http.StatusOK, body)
}

// renderSync writes {<vendor>: remote, local: row}; a deferred mirror write
// answers 202 with local null and pending true.
func (h *Handler) renderSync(c echo.Context, status int, vendor string, res *SyncResult) error {
	body := map[string]interface{}{vendor: res.Remote, "local": res.Local}
	if res.Pending {
		body["pending"] = true
		status = http.StatusAccepted
	}
	return c.JSON(status, body)
}

// MirrorHandler serves read access to the local mirror.
type MirrorHandler struct {
	svc *Service
}

func NewMirrorHandler(svc *Service) *MirrorHandler {
	return &MirrorHandler{svc: svc}
}

func (h *MirrorHandler) RegisterRoutes(api *echo.Group) {
	api.GET("/mirror/patients", h.ListRecords)
	api.GET("/mirror/patients/:id", h.GetRecord)
}

func (h *MirrorHandler) ListRecords(c echo.Context) error {
	vendor := c.QueryParam("vendor")
	switch vendor {
	case "", ehr.VendorModMed, ehr.VendorAthena:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "vendor must be one of: modmed athena")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListRecords(c.Request().Context(), vendor, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch mirrored patients").SetInternal(err)
	}
	if items == nil {
		items = []*Record{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *MirrorHandler) GetRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.GetRecord(c.Request().Context(), id)
	if errors.Is(err, ehr.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch patient").SetInternal(err)
	}
	return c.JSON(http.StatusOK, rec)
}

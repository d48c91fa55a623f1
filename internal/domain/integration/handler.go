package integration

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ehrbridge/internal/ehr"
	"github.com/ehr/ehrbridge/internal/platform/auth"
	"github.com/ehr/ehrbridge/internal/platform/middleware"
)

// ConnectionHandler serves test-connection for one vendor.
type ConnectionHandler struct {
	svc      *Service
	provider ehr.Provider
}

func NewConnectionHandler(svc *Service, provider ehr.Provider) *ConnectionHandler {
	return &ConnectionHandler{svc: svc, provider: provider}
}

func (h *ConnectionHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/test-connection", h.TestConnection)
}

func (h *ConnectionHandler) TestConnection(c echo.Context) error {
	var creds ehr.Credentials
	if err := middleware.BindAndValidate(c, &creds); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.svc.TestConnection(c.Request().Context(), h.provider, creds))
}

// SearchHandler fans a patient search out to every configured vendor.
type SearchHandler struct {
	svc       *Service
	providers []ehr.Provider
}

func NewSearchHandler(svc *Service, providers ...ehr.Provider) *SearchHandler {
	return &SearchHandler{svc: svc, providers: providers}
}

func (h *SearchHandler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/search", h.Search)
}

// Search renders {<vendor>: page | {"error": msg}} for every vendor.
func (h *SearchHandler) Search(c echo.Context) error {
	term := strings.TrimSpace(c.QueryParam("q"))
	if term == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	q := ehr.PatientQuery{Search: term}
	q.Limit, _ = strconv.Atoi(c.QueryParam("limit"))

	results := h.svc.Search(c.Request().Context(), h.providers, auth.UserID(c), q)
	body := make(map[string]interface{}, len(results))
	for vendor, r := range results {
		if r.Page != nil {
			body[vendor] = r.Page
			continue
		}
		body[vendor] = middleware.ErrorBody{Error: r.Error}
	}
	return c.JSON(http.StatusOK, body)
}

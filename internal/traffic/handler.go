package traffic

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/traffic-api/pkg/tracing"
)

// Handler serves the public traffic routes
type Handler struct {
	classifier Classifier
}

// NewHandler creates a new traffic handler
func NewHandler(classifier Classifier) *Handler {
	return &Handler{classifier: classifier}
}

// Info describes the service on the root route.
type Info struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Endpoints   map[string]string `json:"endpoints"`
	ProvidedBy  string            `json:"provided_by"`
	GitHub      string            `json:"github"`
}

// Docs documents the /traffic route.
type Docs struct {
	Description string            `json:"description"`
	Parameters  map[string]string `json:"parameters"`
	Response    DocsResponse      `json:"response"`
}

// DocsResponse documents the /traffic reply body.
type DocsResponse struct {
	Status DocsField `json:"status"`
}

// DocsField documents one reply field and its allowed values.
type DocsField struct {
	Description string            `json:"description"`
	Values      map[string]string `json:"values"`
}

const lookupDescription = "Get traffic status based on the location"

var (
	rootInfo = Info{
		Name:        "Traffic API",
		Version:     "1.0.0",
		Description: lookupDescription,
		Endpoints: map[string]string{
			"/traffic": lookupDescription,
			"/docs":    "Get the documentation of the API",
			"/health":  "Check the health of the API",
		},
		ProvidedBy: "Christian Elías <contacto@christianecg.com>",
		GitHub:     "https://github.com/ChristianECG/traffic_api",
	}

	apiDocs = Docs{
		Description: lookupDescription,
		Parameters: map[string]string{
			"lat": "Latitude of the location",
			"lon": "Longitude of the location",
		},
		Response: DocsResponse{
			Status: DocsField{
				Description: "Traffic status",
				Values: map[string]string{
					string(StatusLow):    "Traffic is low",
					string(StatusMedium): "Traffic is medium",
					string(StatusHigh):   "Traffic is high",
					string(StatusError):  "An error occurred while fetching the data",
				},
			},
		},
	}
)

// Root handles GET /
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, rootInfo)
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Traffic handles GET /traffic. The reply is always 200; failures are reported
// as the error status and attached to the context for the error middleware.
func (h *Handler) Traffic(c *gin.Context) {
	origin := ParseCoordinate(c.Query("lat"), c.Query("lon"))

	status, err := h.classifier.Classify(c.Request.Context(), origin)
	if err != nil {
		status = StatusError
		if !errors.Is(err, ErrLookupCanceled) {
			_ = c.Error(err)
		}
	}

	tracing.AddSpanAttributes(c.Request.Context(), tracing.LookupStatusKey.String(string(status)))
	c.JSON(http.StatusOK, StatusResponse{Status: status})
}

// Docs handles GET /docs
func (h *Handler) Docs(c *gin.Context) {
	c.JSON(http.StatusOK, apiDocs)
}

// NoRoute sends unmatched GET requests back to the root. Other methods get a
// JSON 404 since a redirect would turn them into a GET.
func (h *Handler) NoRoute(c *gin.Context) {
	if c.Request.Method == http.MethodGet {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}

// RegisterRoutes registers the public routes and the catch-all redirect
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/traffic", h.Traffic)
	r.GET("/docs", h.Docs)
	r.NoRoute(h.NoRoute)
}

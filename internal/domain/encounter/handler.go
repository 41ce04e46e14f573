package encounter

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/priorauth/internal/platform/auth"
)

// Handler exposes poller state for operators.
type Handler struct {
	svc *PollingService
}

func NewHandler(svc *PollingService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/encounter-polling", auth.RequireRole("admin"))
	g.GET("", h.Status)
	g.GET("/processed/:encounterId", h.GetProcessed)
	g.POST("/purge", h.Purge)
}

func (h *Handler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Status())
}

func (h *Handler) GetProcessed(c echo.Context) error {
	id := c.Param("encounterId")
	detectedAt, ok := h.svc.cache.DetectedAt(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "encounter not processed")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"encounter_id": id,
		"detected_at":  detectedAt,
	})
}

// Purge drops processed entries older than ?max_age= (a Go duration,
// default 24h).
func (h *Handler) Purge(c echo.Context) error {
	maxAge := RetentionWindow
	if v := c.QueryParam("max_age"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "max_age must be a non-negative duration such as 24h")
		}
		maxAge = d
	}
	removed := h.svc.PurgeProcessed(maxAge)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"removed":         removed,
		"processed_count": h.svc.ProcessedCount(),
	})
}

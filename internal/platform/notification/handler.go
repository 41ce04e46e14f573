package notification

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// StreamHandler serves the hub as Server-Sent Events, one long-lived
// connection per viewer.
type StreamHandler struct {
	hub    *Hub
	logger zerolog.Logger

	// Heartbeat is the interval between keep-alive comments.
	Heartbeat time.Duration
}

func NewStreamHandler(hub *Hub, logger zerolog.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, logger: logger, Heartbeat: 15 * time.Second}
}

func (h *StreamHandler) RegisterRoutes(api *echo.Group) {
	api.GET("/notifications/stream", h.Stream)
}

// Stream writes one frame per notification:
//
//	event: <type>
//	data: <json>
func (h *StreamHandler) Stream(c echo.Context) error {
	ctx := c.Request().Context()
	sub := h.hub.Subscribe(ctx)
	defer sub.Close()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	log := h.logger.With().Str("subscription", sub.ID.String()).Logger()
	log.Info().Msg("notification stream opened")
	defer log.Info().Msg("notification stream closed")

	heartbeat := time.NewTicker(h.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := writeEvent(res, n); err != nil {
				log.Debug().Err(err).Msg("notification stream write failed")
				return nil
			}
			res.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(res, ": keep-alive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Type, data)
	return err
}

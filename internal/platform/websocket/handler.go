// Package websocket streams hub notifications over WebSocket connections for
// viewers that cannot use Server-Sent Events. A client may narrow its stream
// to specific work items or patients by sending subscribe/unsubscribe
// messages; with no topics it receives everything.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/priorauth/internal/platform/notification"
)

// ClientMessage is an inbound control message from a WebSocket client.
// Topics are work item (transaction) ids or patient ids.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

type topicFilter struct {
	mu     sync.RWMutex
	topics map[string]struct{}
}

func newTopicFilter() *topicFilter {
	return &topicFilter{topics: make(map[string]struct{})}
}

func (f *topicFilter) apply(msg ClientMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch msg.Action {
	case "subscribe":
		for _, t := range msg.Topics {
			f.topics[t] = struct{}{}
		}
	case "unsubscribe":
		for _, t := range msg.Topics {
			delete(f.topics, t)
		}
	}
}

func (f *topicFilter) matches(n notification.Notification) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.topics) == 0 {
		return true
	}
	if _, ok := f.topics[n.TransactionID]; ok {
		return true
	}
	_, ok := f.topics[n.PatientID]
	return ok
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced by the echo middleware.
	},
}

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Handler upgrades HTTP connections and bridges them to the notification hub.
type Handler struct {
	hub    *notification.Hub
	logger zerolog.Logger
}

func NewHandler(hub *notification.Hub, logger zerolog.Logger) *Handler {
	return &Handler{hub: hub, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/notifications/ws", h.HandleConnect)
}

// HandleConnect upgrades the connection, subscribes it to the hub and starts
// the read and write pumps.
func (h *Handler) HandleConnect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	// The request context ends when this handler returns, so the connection
	// gets its own lifetime.
	ctx, cancel := context.WithCancel(context.Background())
	sub := h.hub.Subscribe(ctx)
	filter := newTopicFilter()
	log := h.logger.With().Str("subscription", sub.ID.String()).Logger()
	log.Info().Msg("websocket client connected")

	go h.writePump(ws, sub, filter, cancel, log)
	go h.readPump(ws, filter, cancel)
	return nil
}

func (h *Handler) readPump(ws *gorillawebsocket.Conn, filter *topicFilter, cancel context.CancelFunc) {
	defer cancel()
	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		filter.apply(msg)
	}
}

func (h *Handler) writePump(ws *gorillawebsocket.Conn, sub *notification.Subscription, filter *topicFilter, cancel context.CancelFunc, log zerolog.Logger) {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		cancel()
		ws.Close()
		log.Info().Msg("websocket client disconnected")
	}()

	for {
		select {
		case n, ok := <-sub.C():
			if !ok {
				ws.WriteControl(gorillawebsocket.CloseMessage,
					gorillawebsocket.FormatCloseMessage(gorillawebsocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			if !filter.matches(n) {
				continue
			}
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(n); err != nil {
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(gorillawebsocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/goalmap/internal/identity"
	"github.com/coder/websocket"
)

// clientMessage is what subscribers may send; only pings are understood.
type clientMessage struct {
	Type string `json:"type"`
}

type pongMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler upgrades requests to websocket subscriptions on a Hub.
type Handler struct {
	hub            *Hub
	originPatterns []string
}

// NewHandler creates a websocket handler. originPatterns follows
// websocket.AcceptOptions; an empty list only allows same-origin requests.
func NewHandler(hub *Hub, originPatterns []string) *Handler {
	return &Handler{hub: hub, originPatterns: originPatterns}
}

// ServeHTTP implements http.Handler for websocket upgrade. The caller's id
// must already be in the request context.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"maxUserId is required"}` + "\n"))
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "subscription ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.hub.Register(userID, ws)
	defer h.hub.Unregister(userID, ws)
	slog.Info("Live feed subscribed", "user_id", userID, "ip", identity.IPFromRequest(r))

	h.readLoop(r.Context(), ws, userID)
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, userID string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else if ctx.Err() == nil {
				slog.Debug("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Type != "ping" {
			continue
		}
		data, err := json.Marshal(pongMessage{Type: "pong", Timestamp: time.Now().UTC()})
		if err != nil {
			continue
		}
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err = ws.Write(wctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			slog.Debug("WebSocket pong failed", "error", err, "user_id", userID)
			return
		}
	}
}

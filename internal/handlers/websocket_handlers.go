package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/models"
)

type WebSocketHandler struct {
	logger           *slog.Logger
	sessions         ScanSessions
	websocketManager *Manager
}

func NewWebSocketHandler(
	logger *slog.Logger,
	sessions ScanSessions,
	websocketManager *Manager,
) *WebSocketHandler {
	return &WebSocketHandler{
		logger:           logger,
		sessions:         sessions,
		websocketManager: websocketManager,
	}
}

func (h *WebSocketHandler) RegisterRoutes(router *mux.Router) {
	ws := router.PathPrefix("/ws").Subrouter()
	ws.Use(SessionMiddleware)
	ws.HandleFunc("/scan", h.HandleConnection)
}

// HandleConnection pushes the session's scan state on connect and after
// every change until the client goes away.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	sessionID := SessionID(r.Context())

	session, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		status, body := errorResponse(err)
		writeJSON(w, status, body)
		return
	}

	conn, err := h.websocketManager.Upgrade(w, r)
	if err != nil {
		h.logger.Error("Error upgrading connection", "error", err)
		return
	}
	defer h.websocketManager.Release(conn)

	h.logger.Info("New WebSocket connection", "session_id", sessionID)

	updates, unsubscribe := session.Subscribe()
	defer unsubscribe()

	// The read loop only detects disconnects and answers pings.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				if websocket.IsUnexpectedCloseError(readErr, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Warn("WebSocket connection closed", "session_id", sessionID, "error", readErr)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case state, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			event := models.ScanEvent{Type: "scan_state", State: models.NewScanResponse(state)}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Warn("Error writing scan state", "session_id", sessionID, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

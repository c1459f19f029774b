package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/exp/slices"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Manager upgrades connections and tracks the open ones so they can be
// closed on shutdown.
type Manager struct {
	logger         *slog.Logger
	upgrader       websocket.Upgrader
	allowedOrigins []string

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

// NewWebSocketManager creates a manager. An empty origin list or "*"
// accepts any origin.
func NewWebSocketManager(logger *slog.Logger, allowedOrigins []string) *Manager {
	m := &Manager{
		logger:         logger,
		allowedOrigins: allowedOrigins,
		conns:          make(map[*websocket.Conn]bool),
	}
	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     m.checkOrigin,
	}
	return m
}

func (m *Manager) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(m.allowedOrigins) == 0 || slices.Contains(m.allowedOrigins, "*") {
		return true
	}
	return slices.Contains(m.allowedOrigins, origin)
}

// Upgrade switches the request to a websocket and registers the connection.
func (m *Manager) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.conns[conn] = true
	m.mu.Unlock()

	return conn, nil
}

// Release unregisters and closes conn.
func (m *Manager) Release(conn *websocket.Conn) {
	m.mu.Lock()
	delete(m.conns, conn)
	m.mu.Unlock()
	_ = conn.Close()
}

// Count returns the number of open connections.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// CloseAll sends a close frame to every connection and drops them.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for conn := range m.conns {
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = conn.Close()
		delete(m.conns, conn)
	}
	m.logger.Info("WebSocket connections closed")
}

package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/core/ports"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/metrics"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/storage"
)

// SessionManager owns the scan sessions of the gateway, one per browser
// session id. Each session caches its job under its own key.
type SessionManager struct {
	logger   *slog.Logger
	api      ports.DetectionAPI
	store    storage.Store
	cacheKey string
	window   time.Duration
	opts     ScanOptions

	mu       sync.Mutex
	sessions map[string]*ScanSession
}

func NewSessionManager(
	logger *slog.Logger,
	api ports.DetectionAPI,
	store storage.Store,
	cacheKey string,
	window time.Duration,
	opts ScanOptions,
) *SessionManager {
	return &SessionManager{
		logger:   logger,
		api:      api,
		store:    store,
		cacheKey: cacheKey,
		window:   window,
		opts:     opts,
		sessions: make(map[string]*ScanSession),
	}
}

// Get returns the session for id, creating and restoring it from the cache
// on first access.
func (m *SessionManager) Get(ctx context.Context, id string) (*ScanSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[id]; ok {
		return session, nil
	}

	cache := NewJobCache(m.logger, m.store, CacheKeyFor(m.cacheKey, id), m.window)
	session := NewScanSession(m.logger.With("session_id", id), m.api, cache, m.opts)
	if _, err := session.Restore(ctx); err != nil {
		session.Close()
		return nil, err
	}

	m.sessions[id] = session
	metrics.ActiveSessions.Inc()
	return session, nil
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Prune closes sessions that track no job and have no subscribers. Their
// cache entries are gone already, so nothing is lost.
func (m *SessionManager) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pruned int
	for id, session := range m.sessions {
		if !session.idle() {
			continue
		}
		session.Close()
		delete(m.sessions, id)
		metrics.ActiveSessions.Dec()
		pruned++
	}
	return pruned
}

// Close closes every session. Cached jobs survive for the next start.
func (m *SessionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, session := range m.sessions {
		session.Close()
		delete(m.sessions, id)
		metrics.ActiveSessions.Dec()
	}
	m.logger.Info("Scan sessions closed")
}

package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/core/ports"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/metrics"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/storage"
)

// DefaultCacheKey is the key used when a session has no id of its own.
const DefaultCacheKey = "last_scan_result"

// CacheKeyFor returns the cache key of a gateway session.
func CacheKeyFor(base, sessionID string) string {
	if base == "" {
		base = DefaultCacheKey
	}
	if sessionID == "" {
		return base
	}
	return base + ":" + sessionID
}

// cachedScan is the persisted form of a scan. ts is the Unix time in
// milliseconds of the last update.
type cachedScan struct {
	TS               int64              `json:"ts"`
	JobID            entities.JobID     `json:"jobId"`
	Status           entities.JobStatus `json:"status"`
	Result           json.RawMessage    `json:"result,omitempty"`
	Error            string             `json:"error,omitempty"`
	SubmittedAddress string             `json:"submittedAddress"`
	SubmittedChain   entities.Chain     `json:"submittedChain"`
	AIUsed           bool               `json:"aiUsed"`
	AISummary        string             `json:"aiSummary,omitempty"`
	AILang           entities.Language  `json:"aiLang,omitempty"`
}

// JobCache persists the last scan of a session under a single key. Every
// read checks freshness; stale or unreadable entries are deleted.
type JobCache struct {
	logger *slog.Logger
	store  storage.Store
	key    string
	window time.Duration
	now    func() time.Time
}

// NewJobCache creates a cache. A non-positive window uses CacheFreshness.
func NewJobCache(logger *slog.Logger, store storage.Store, key string, window time.Duration) *JobCache {
	if key == "" {
		key = DefaultCacheKey
	}
	if window <= 0 {
		window = ports.CacheFreshness
	}
	return &JobCache{
		logger: logger,
		store:  store,
		key:    key,
		window: window,
		now:    time.Now,
	}
}

// Key returns the storage key of the cache.
func (c *JobCache) Key() string {
	return c.key
}

// Window returns the freshness window.
func (c *JobCache) Window() time.Duration {
	return c.window
}

// Fresh reports whether an entry updated at ts is still within the window
// at now. An entry exactly one window old is expired.
func (c *JobCache) Fresh(ts, now time.Time) bool {
	return now.Sub(ts) < c.window
}

// Save persists state. UpdatedAt is used as the timestamp; a zero value is
// replaced by the current time.
func (c *JobCache) Save(ctx context.Context, state entities.ScanState) error {
	ts := state.UpdatedAt
	if ts.IsZero() {
		ts = c.now()
	}

	entry := cachedScan{
		TS:               ts.UnixMilli(),
		JobID:            state.JobID,
		Status:           state.Status,
		Result:           state.Result,
		Error:            state.Error,
		SubmittedAddress: state.SubmittedAddress,
		SubmittedChain:   state.SubmittedChain,
		AIUsed:           state.AIUsed,
		AISummary:        state.AISummary,
		AILang:           state.AILang,
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode scan cache: %w", err)
	}

	if err := c.store.Set(ctx, c.key, payload, c.window); err != nil {
		return fmt.Errorf("failed to save scan cache: %w", err)
	}
	return nil
}

// Load returns the cached scan if it is fresh. ok is false when nothing
// usable is cached.
func (c *JobCache) Load(ctx context.Context) (state entities.ScanState, ok bool, err error) {
	raw, err := c.store.Get(ctx, c.key)
	if errors.Is(err, storage.ErrNotFound) {
		return entities.ScanState{}, false, nil
	}
	if err != nil {
		return entities.ScanState{}, false, fmt.Errorf("failed to load scan cache: %w", err)
	}

	var entry cachedScan
	if err := json.Unmarshal(raw, &entry); err != nil || entry.JobID == "" || entry.TS == 0 {
		c.logger.WarnContext(ctx, "Discarding unreadable scan cache", "key", c.key, "error", err)
		c.evict(ctx, "corrupt")
		return entities.ScanState{}, false, nil
	}

	ts := time.UnixMilli(entry.TS)
	if !c.Fresh(ts, c.now()) {
		c.logger.InfoContext(ctx, "Discarding expired scan cache", "key", c.key, "job_id", entry.JobID)
		c.evict(ctx, "expired")
		return entities.ScanState{}, false, nil
	}

	state = entities.ScanState{
		JobID:            entry.JobID,
		Status:           entry.Status,
		Result:           entry.Result,
		Error:            entry.Error,
		SubmittedAddress: entry.SubmittedAddress,
		SubmittedChain:   entry.SubmittedChain,
		AIUsed:           entry.AIUsed,
		AISummary:        entry.AISummary,
		AILang:           entry.AILang,
		UpdatedAt:        ts,
		ExpiresAt:        ts.Add(c.window),
		Stages:           entities.Stages(entry.Status),
	}
	return state, true, nil
}

// Clear removes the cached scan.
func (c *JobCache) Clear(ctx context.Context) error {
	if err := c.store.Delete(ctx, c.key); err != nil {
		return fmt.Errorf("failed to clear scan cache: %w", err)
	}
	return nil
}

func (c *JobCache) evict(ctx context.Context, reason string) {
	metrics.CacheEvictions.WithLabelValues(reason).Inc()
	if err := c.Clear(ctx); err != nil {
		c.logger.ErrorContext(ctx, "Failed to evict scan cache", "key", c.key, "error", err)
	}
}

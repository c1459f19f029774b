package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/clients"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/core/ports"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/metrics"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/workers"
)

var (
	ErrNoJob               = errors.New("no scan job")
	ErrJobNotDone          = errors.New("scan job is not done")
	ErrAILocked            = errors.New("ai summary already used for this job")
	ErrAIInProgress        = errors.New("ai summary request in progress")
	ErrUnsupportedLanguage = errors.New("unsupported summary language")
	ErrSessionClosed       = errors.New("scan session closed")
)

// ScanOptions tunes a ScanSession. Zero values use the defaults.
type ScanOptions struct {
	PollInterval    time.Duration
	DefaultLanguage entities.Language
	Now             func() time.Time
}

// ScanSession tracks the detection job of one user: submission, polling,
// the cached copy and its expiry, and the one-shot AI summary.
//
// Every change to the tracked job bumps gen. Pollers and expiry timers
// carry the generation they were started for and become no-ops once it
// is stale.
type ScanSession struct {
	logger      *slog.Logger
	api         ports.DetectionAPI
	cache       *JobCache
	poller      *workers.JobPoller
	defaultLang entities.Language
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	state      entities.ScanState
	gen        uint64
	token      string
	pollCancel context.CancelFunc
	expiry     *time.Timer
	aiPending  bool
	busy       int // calls waiting on the backend
	closed     bool

	subs    map[int]chan entities.ScanState
	nextSub int
}

// NewScanSession creates an idle session. Call Restore to pick up a cached
// job.
func NewScanSession(logger *slog.Logger, api ports.DetectionAPI, cache *JobCache, opts ScanOptions) *ScanSession {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if !opts.DefaultLanguage.IsSupported() {
		opts.DefaultLanguage = entities.LanguageChinese
	}
	cache.now = opts.Now

	ctx, cancel := context.WithCancel(context.Background())

	return &ScanSession{
		logger:      logger,
		api:         api,
		cache:       cache,
		poller:      workers.NewJobPoller(logger, api, opts.PollInterval),
		defaultLang: opts.DefaultLanguage,
		now:         opts.Now,
		ctx:         ctx,
		cancel:      cancel,
		state:       entities.IdleState(),
		subs:        make(map[int]chan entities.ScanState),
	}
}

// State returns a copy of the current state.
func (s *ScanSession) State() entities.ScanState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Restore loads the cached job. A fresh entry is shown as it was saved and
// polling resumes if it is not terminal; an expired entry is discarded.
func (s *ScanSession) Restore(ctx context.Context) (entities.ScanState, error) {
	cached, ok, err := s.cache.Load(ctx)
	if err != nil {
		return entities.ScanState{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return entities.ScanState{}, ErrSessionClosed
	}

	s.resetLocked()
	s.rememberToken(ctx)

	if !ok {
		s.broadcastLocked()
		return s.snapshotLocked(), nil
	}

	s.state = cached
	s.armExpiryLocked()
	if !cached.Status.IsTerminal() {
		s.startPollLocked()
	}

	s.logger.InfoContext(ctx, "Scan restored from cache",
		"job_id", cached.JobID,
		"status", cached.Status,
		"expires_at", cached.ExpiresAt)

	s.broadcastLocked()
	return s.snapshotLocked(), nil
}

// Submit validates the target, creates a detection job and starts polling
// it. The previous job, if any, is dropped once the backend accepts the new
// one.
func (s *ScanSession) Submit(ctx context.Context, chain entities.Chain, address string) (entities.ScanState, error) {
	address = strings.TrimSpace(address)
	if err := entities.ValidateTarget(chain, address); err != nil {
		metrics.SubmitRejected.WithLabelValues(string(clients.KindValidation)).Inc()
		return entities.ScanState{}, err
	}

	if err := s.acquire(); err != nil {
		return entities.ScanState{}, err
	}
	defer s.release()

	ticket, err := s.api.SubmitDetection(ctx, chain, address)
	if err != nil {
		metrics.SubmitRejected.WithLabelValues(string(clients.KindOf(err))).Inc()
		s.logger.WarnContext(ctx, "Detection submit failed", "chain", chain, "address", address, "error", err)
		return entities.ScanState{}, fmt.Errorf("submit detection: %w", err)
	}
	metrics.JobsSubmitted.WithLabelValues(string(chain)).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return entities.ScanState{}, ErrSessionClosed
	}

	s.resetLocked()
	s.rememberToken(ctx)

	s.state = entities.ScanState{
		JobID:            ticket.JobID,
		Status:           ticket.Status,
		SubmittedAddress: address,
		SubmittedChain:   chain,
	}
	s.touchLocked(ctx)

	if !ticket.Status.IsTerminal() {
		s.startPollLocked()
	}

	s.broadcastLocked()
	return s.snapshotLocked(), nil
}

// RequestAISummary asks for the AI explanation of a finished job. Each job
// gets one summary; later calls return ErrAILocked.
func (s *ScanSession) RequestAISummary(ctx context.Context, lang entities.Language) (entities.ScanState, error) {
	if lang == "" {
		lang = s.defaultLang
	}
	if !lang.IsSupported() {
		return entities.ScanState{}, ErrUnsupportedLanguage
	}

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return entities.ScanState{}, ErrSessionClosed
	case !s.state.HasJob():
		s.mu.Unlock()
		return entities.ScanState{}, ErrNoJob
	case s.state.Status != entities.JobStatusDone:
		s.mu.Unlock()
		return entities.ScanState{}, ErrJobNotDone
	case s.state.AIUsed:
		s.mu.Unlock()
		metrics.AISummaries.WithLabelValues("locked").Inc()
		return entities.ScanState{}, ErrAILocked
	case s.aiPending:
		s.mu.Unlock()
		return entities.ScanState{}, ErrAIInProgress
	}
	s.aiPending = true
	s.busy++
	gen := s.gen
	id := s.state.JobID
	s.mu.Unlock()

	summary, err := s.api.RequestAISummary(ctx, id, lang)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.busy--
	if gen == s.gen {
		s.aiPending = false
	}
	if err != nil {
		metrics.AISummaries.WithLabelValues("error").Inc()
		return entities.ScanState{}, fmt.Errorf("request ai summary: %w", err)
	}
	if gen != s.gen {
		// The job was replaced or cleared while the summary was generated.
		return entities.ScanState{}, ErrNoJob
	}

	metrics.AISummaries.WithLabelValues("ok").Inc()
	s.state.AIUsed = true
	s.state.AISummary = summary
	s.state.AILang = lang
	s.touchLocked(ctx)

	s.broadcastLocked()
	return s.snapshotLocked(), nil
}

// Clear forgets the current job and its cached copy.
func (s *ScanSession) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	s.resetLocked()
	s.state = entities.IdleState()
	s.broadcastLocked()

	return s.cache.Clear(ctx)
}

// Subscribe returns a channel that always holds the latest state. Slow
// readers skip intermediate states. The channel is closed by cancel or
// Close.
func (s *ScanSession) Subscribe() (<-chan entities.ScanState, func()) {
	ch := make(chan entities.ScanState, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Close stops polling and timers. The cached copy is kept so a later
// session can restore it.
func (s *ScanSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.resetLocked()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// idle reports whether the session tracks nothing, nobody watches it and
// no call is waiting on the backend.
func (s *ScanSession) idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.state.HasJob() && len(s.subs) == 0 && s.busy == 0
}

// acquire marks a backend call in flight so the session is not pruned
// under it.
func (s *ScanSession) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.busy++
	return nil
}

func (s *ScanSession) release() {
	s.mu.Lock()
	s.busy--
	s.mu.Unlock()
}

// resetLocked stops the poller and expiry timer of the current job and
// invalidates their callbacks.
func (s *ScanSession) resetLocked() {
	s.gen++
	s.aiPending = false
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
}

// clearLocked drops the job after it was lost or expired.
func (s *ScanSession) clearLocked(ctx context.Context, reason string) {
	s.resetLocked()
	s.state = entities.IdleState()
	metrics.CacheEvictions.WithLabelValues(reason).Inc()
	if err := s.cache.Clear(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to clear scan cache", "reason", reason, "error", err)
	}
	s.broadcastLocked()
}

// touchLocked stamps the state, persists it and re-arms the expiry timer.
func (s *ScanSession) touchLocked(ctx context.Context) {
	now := s.now()
	s.state.UpdatedAt = now
	s.state.ExpiresAt = now.Add(s.cache.Window())

	if err := s.cache.Save(ctx, s.state); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist scan", "job_id", s.state.JobID, "error", err)
	}
	s.armExpiryLocked()
}

func (s *ScanSession) armExpiryLocked() {
	if s.expiry != nil {
		s.expiry.Stop()
	}

	remaining := s.state.ExpiresAt.Sub(s.now())
	if remaining < 0 {
		remaining = 0
	}

	gen := s.gen
	s.expiry = time.AfterFunc(remaining, func() {
		s.expire(gen)
	})
}

func (s *ScanSession) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.closed {
		return
	}

	s.logger.Info("Scan expired", "job_id", s.state.JobID)
	s.clearLocked(s.ctx, "expired")
}

func (s *ScanSession) startPollLocked() {
	ctx, cancel := context.WithCancel(clients.WithToken(s.ctx, s.token))
	s.pollCancel = cancel

	id := s.state.JobID
	sink := &pollSink{session: s, gen: s.gen}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.poller.Run(ctx, id, sink)
	}()
}

// rememberToken keeps the caller's token so background polls act on its
// behalf.
func (s *ScanSession) rememberToken(ctx context.Context) {
	if token, ok := clients.TokenFromContext(ctx); ok {
		s.token = token
	}
}

func (s *ScanSession) snapshotLocked() entities.ScanState {
	state := s.state
	state.Stages = entities.Stages(state.Status)
	return state
}

func (s *ScanSession) broadcastLocked() {
	state := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- state
	}
}

type pollSink struct {
	session *ScanSession
	gen     uint64
}

func (p *pollSink) PollUpdated(ctx context.Context, id entities.JobID, status *entities.DetectionStatus) bool {
	s := p.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.gen != s.gen || s.state.JobID != id {
		return false
	}

	s.state.Status = status.Status
	s.state.Result = status.Result
	s.state.Error = status.ErrorMessage()
	s.touchLocked(ctx)

	if status.Status.IsTerminal() {
		s.pollCancel = nil
	}

	s.broadcastLocked()
	return true
}

func (p *pollSink) PollFailed(ctx context.Context, id entities.JobID, err error) {
	s := p.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.gen != s.gen || s.state.JobID != id {
		return
	}
	s.pollCancel = nil

	if clients.IsNotFound(err) {
		s.logger.InfoContext(ctx, "Scan job no longer exists", "job_id", id)
		s.clearLocked(ctx, "not_found")
		return
	}

	s.state.Error = ports.GenericPollError
	s.broadcastLocked()
}

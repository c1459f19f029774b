package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/clients"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/core/ports"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/storage"
)

const testPollInterval = 5 * time.Millisecond

type sessionFixture struct {
	api     *fakeDetectionAPI
	store   *storage.MemoryStore
	cache   *JobCache
	session *ScanSession
}

func newSessionFixture(t *testing.T, api *fakeDetectionAPI, window time.Duration, opts ScanOptions) *sessionFixture {
	t.Helper()

	if opts.PollInterval == 0 {
		opts.PollInterval = testPollInterval
	}
	store := storage.NewMemoryStore()
	cache := NewJobCache(discardLogger(), store, "", window)
	session := NewScanSession(discardLogger(), api, cache, opts)
	t.Cleanup(session.Close)

	return &sessionFixture{api: api, store: store, cache: cache, session: session}
}

func (f *sessionFixture) waitForStatus(t *testing.T, status entities.JobStatus) entities.ScanState {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.session.State().Status == status
	}, 2*time.Second, time.Millisecond)
	return f.session.State()
}

func TestScanLifecycle(t *testing.T) {
	api := &fakeDetectionAPI{
		ticket: entities.DetectionTicket{JobID: "job-1", Status: entities.JobStatusQueued},
		statuses: []*entities.DetectionStatus{
			statusOf(entities.JobStatusRunning, ""),
			statusOf(entities.JobStatusDone, `{"chain":"ethereum","recommendations":{}}`),
		},
		summary: "No obvious risk found.",
	}
	f := newSessionFixture(t, api, 0, ScanOptions{})
	ctx := context.Background()

	state, err := f.session.Submit(ctx, entities.ChainEthereum, "  "+testAddress+" ")
	require.NoError(t, err)
	require.Equal(t, entities.JobID("job-1"), state.JobID)
	require.Equal(t, entities.JobStatusQueued, state.Status)
	require.Equal(t, testAddress, state.SubmittedAddress)
	require.Equal(t, entities.ChainEthereum, state.SubmittedChain)
	require.False(t, state.ExpiresAt.IsZero())

	done := f.waitForStatus(t, entities.JobStatusDone)
	require.JSONEq(t, `{"chain":"ethereum","recommendations":{}}`, string(done.Result))

	// Polling stops at the terminal status.
	time.Sleep(10 * testPollInterval)
	submits, polls, _ := api.counts()
	require.Equal(t, 1, submits)
	require.Equal(t, 2, polls)

	cached, ok, err := f.cache.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entities.JobStatusDone, cached.Status)

	state, err = f.session.RequestAISummary(ctx, entities.LanguageEnglish)
	require.NoError(t, err)
	require.True(t, state.AIUsed)
	require.Equal(t, "No obvious risk found.", state.AISummary)
	require.Equal(t, entities.LanguageEnglish, state.AILang)

	_, err = f.session.RequestAISummary(ctx, entities.LanguageChinese)
	require.ErrorIs(t, err, ErrAILocked)

	_, _, aiCalls := api.counts()
	require.Equal(t, 1, aiCalls)

	cached, ok, err = f.cache.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, cached.AIUsed, "the used summary survives a restore")
}

func TestSubmitRejectsInvalidTargetsWithoutCallingBackend(t *testing.T) {
	api := &fakeDetectionAPI{}
	f := newSessionFixture(t, api, 0, ScanOptions{})

	for _, tc := range []struct {
		chain   entities.Chain
		address string
	}{
		{entities.ChainEthereum, ""},
		{entities.ChainEthereum, "0x123"},
		{entities.ChainBSC, "1111111111111111111111111111111111111111"},
		{"solana", testAddress},
	} {
		_, err := f.session.Submit(context.Background(), tc.chain, tc.address)
		var validationErr *entities.ValidationError
		require.ErrorAs(t, err, &validationErr, "%s %q", tc.chain, tc.address)
	}

	submits, _, _ := api.counts()
	require.Zero(t, submits)
	require.Equal(t, entities.JobStatusIdle, f.session.State().Status)
}

func TestSubmitFailureKeepsPreviousJob(t *testing.T) {
	api := &fakeDetectionAPI{
		ticket: entities.DetectionTicket{JobID: "job-1", Status: entities.JobStatusDone},
	}
	f := newSessionFixture(t, api, 0, ScanOptions{})
	ctx := context.Background()

	_, err := f.session.Submit(ctx, entities.ChainEthereum, testAddress)
	require.NoError(t, err)

	api.set(func(f *fakeDetectionAPI) {
		f.submitErr = &clients.Error{Kind: clients.KindInsufficientCredit, StatusCode: 402, Detail: "Insufficient credits"}
	})

	_, err = f.session.Submit(ctx, entities.ChainBSC, testAddress)
	require.Error(t, err)
	require.True(t, clients.IsInsufficientCredit(err))

	state := f.session.State()
	require.Equal(t, entities.JobID("job-1"), state.JobID)
	require.Equal(t, entities.ChainEthereum, state.SubmittedChain)
}

func TestPollNotFoundClearsJob(t *testing.T) {
	api := &fakeDetectionAPI{
		ticket:  entities.DetectionTicket{JobID: "job-1", Status: entities.JobStatusQueued},
		pollErr: &clients.Error{Kind: clients.KindNotFound, StatusCode: 404, Detail: "Job not found"},
	}
	f := newSessionFixture(t, api, 0, ScanOptions{})
	ctx := context.Background()

	_, err := f.session.Submit(ctx, entities.ChainEthereum, testAddress)
	require.NoError(t, err)

	state := f.waitForStatus(t, entities.JobStatusIdle)
	require.False(t, state.HasJob())

	_, ok, err := f.cache.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPollErrorStopsPollingWithGenericMessage(t *testing.T) {
	api := &fakeDetectionAPI{
		ticket:  entities.DetectionTicket{JobID: "job-1", Status: entities.JobStatusQueued},
		pollErr: &clients.Error{Kind: clients.KindServer, StatusCode: 500, Detail: "boom"},
	}
	f := newSessionFixture(t, api, 0, ScanOptions{})

	_, err := f.session.Submit(context.Background(), entities.ChainEthereum, testAddress)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.session.State().Error == ports.GenericPollError
	}, 2*time.Second, time.Millisecond)

	time.Sleep(10 * testPollInterval)
	_, polls, _ := api.counts()
	require.Equal(t, 1, polls)

	state := f.session.State()
	require.Equal(t, entities.JobID("job-1"), state.JobID)
	require.Equal(t, entities.JobStatusQueued, state.Status)
}

func TestRestoreFreshJobResumesPolling(t *testing.T) {
	saved := time.UnixMilli(1_700_000_000_000)
	api := &fakeDetectionAPI{
		statuses: []*entities.DetectionStatus{statusOf(entities.JobStatusDone, `{}`)},
	}
	f := newSessionFixture(t, api, 0, ScanOptions{
		Now: func() time.Time { return saved.Add(10 * time.Minute) },
	})
	ctx := context.Background()

	writer := newTestCache(f.store, saved)
	require.NoError(t, writer.Save(ctx, entities.ScanState{
		JobID:            "job-7",
		Status:           entities.JobStatusRunning,
		SubmittedAddress: testAddress,
		SubmittedChain:   entities.ChainBase,
	}))

	state, err := f.session.Restore(clients.WithToken(ctx, "user-token"))
	require.NoError(t, err)
	require.Equal(t, entities.JobID("job-7"), state.JobID)
	require.Equal(t, entities.JobStatusRunning, state.Status)
	require.True(t, state.UpdatedAt.Equal(saved))

	f.waitForStatus(t, entities.JobStatusDone)

	submits, _, _ := api.counts()
	require.Zero(t, submits)

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Equal(t, []string{"user-token"}, api.pollTokens)
}

func TestRestoreDiscardsExpiredJob(t *testing.T) {
	saved := time.UnixMilli(1_700_000_000_000)
	api := &fakeDetectionAPI{}
	f := newSessionFixture(t, api, 0, ScanOptions{
		Now: func() time.Time { return saved.Add(ports.CacheFreshness) },
	})
	ctx := context.Background()

	writer := newTestCache(f.store, saved)
	require.NoError(t, writer.Save(ctx, entities.ScanState{JobID: "job-7", Status: entities.JobStatusRunning}))

	state, err := f.session.Restore(ctx)
	require.NoError(t, err)
	require.False(t, state.HasJob())
	require.Equal(t, entities.JobStatusIdle, state.Status)

	_, err = f.store.Get(ctx, DefaultCacheKey)
	require.ErrorIs(t, err, storage.ErrNotFound)

	time.Sleep(5 * testPollInterval)
	_, polls, _ := api.counts()
	require.Zero(t, polls)
}

func TestJobExpiresWhileShown(t *testing.T) {
	api := &fakeDetectionAPI{
		ticket: entities.DetectionTicket{JobID: "job-1", Status: entities.JobStatusDone},
	}
	f := newSessionFixture(t, api, 30*time.Millisecond, ScanOptions{})
	ctx := context.Background()

	_, err := f.session.Submit(ctx, entities.ChainEthereum, testAddress)
	require.NoError(t, err)
	require.True(t, f.session.State().HasJob())

	f.waitForStatus(t, entities.JobStatusIdle)

	_, err = f.store.Get(ctx, DefaultCacheKey)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAISummaryPreconditions(t *testing.T) {
	api := &fakeDetectionAPI{
		ticket: entities.DetectionTicket{JobID: "job-1", Status: entities.JobStatusQueued},
	}
	f := newSessionFixture(t, api, 0, ScanOptions{PollInterval: time.Hour})
	ctx := context.Background()

	_, err := f.session.RequestAISummary(ctx, entities.LanguageEnglish)
	require.ErrorIs(t, err, ErrNoJob)

	_, err = f.session.Submit(ctx, entities.ChainEthereum, testAddress)
	require.NoError(t, err)

	_, err = f.session.RequestAISummary(ctx, entities.LanguageEnglish)
	require.ErrorIs(t, err, ErrJobNotDone)

	_, err = f.session.RequestAISummary(ctx, "fr")
	require.ErrorIs(t, err, ErrUnsupportedLanguage)

	_, _, aiCalls := api.counts()
	require.Zero(t, aiCalls)
}

func TestAISummaryFailureCanBeRetried(t *testing.T) {
	api := &fakeDetectionAPI{
		ticket: entities.DetectionTicket{JobID: "job-1", Status: entities.JobStatusDone},
		aiErr:  &clients.Error{Kind: clients.KindServer, StatusCode: 503},
	}
	f := newSessionFixture(t, api, 0, ScanOptions{})
	ctx := context.Background()

	_, err := f.session.Submit(ctx, entities.ChainEthereum, testAddress)
	require.NoError(t, err)

	_, err = f.session.RequestAISummary(ctx, "")
	require.Error(t, err)
	require.False(t, f.session.State().AIUsed)

	api.set(func(f *fakeDetectionAPI) {
		f.aiErr = nil
		f.summary = "摘要"
	})

	state, err := f.session.RequestAISummary(ctx, "")
	require.NoError(t, err)
	require.Equal(t, entities.LanguageChinese, state.AILang, "empty language falls back to the default")
	require.Equal(t, "摘要", state.AISummary)
}

func TestClearForgetsJob(t *testing.T) {
	api := &fakeDetectionAPI{
		ticket: entities.DetectionTicket{JobID: "job-1", Status: entities.JobStatusQueued},
	}
	f := newSessionFixture(t, api, 0, ScanOptions{PollInterval: time.Hour})
	ctx := context.Background()

	_, err := f.session.Submit(ctx, entities.ChainEthereum, testAddress)
	require.NoError(t, err)
	require.NoError(t, f.session.Clear(ctx))

	require.False(t, f.session.State().HasJob())
	_, ok, err := f.cache.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSubscribeReceivesLatestState(t *testing.T) {
	api := &fakeDetectionAPI{
		ticket:   entities.DetectionTicket{JobID: "job-1", Status: entities.JobStatusQueued},
		statuses: []*entities.DetectionStatus{statusOf(entities.JobStatusDone, `{}`)},
	}
	f := newSessionFixture(t, api, 0, ScanOptions{})

	updates, cancel := f.session.Subscribe()
	defer cancel()

	initial := <-updates
	require.Equal(t, entities.JobStatusIdle, initial.Status)

	_, err := f.session.Submit(context.Background(), entities.ChainEthereum, testAddress)
	require.NoError(t, err)

	timeout := time.After(2 * time.Second)
	for {
		select {
		case state := <-updates:
			if state.Status == entities.JobStatusDone {
				require.Equal(t, entities.JobID("job-1"), state.JobID)
				return
			}
		case <-timeout:
			t.Fatal("no done state received")
		}
	}
}

func TestClosedSessionRejectsWork(t *testing.T) {
	api := &fakeDetectionAPI{
		ticket: entities.DetectionTicket{JobID: "job-1", Status: entities.JobStatusQueued},
	}
	f := newSessionFixture(t, api, 0, ScanOptions{})

	updates, _ := f.session.Subscribe()
	<-updates

	f.session.Close()

	_, open := <-updates
	require.False(t, open)

	_, err := f.session.Submit(context.Background(), entities.ChainEthereum, testAddress)
	require.ErrorIs(t, err, ErrSessionClosed)
	require.ErrorIs(t, f.session.Clear(context.Background()), ErrSessionClosed)
}

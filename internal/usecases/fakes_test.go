package usecases

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/clients"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
)

const testAddress = "0x1111111111111111111111111111111111111111"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func statusOf(status entities.JobStatus, result string) *entities.DetectionStatus {
	out := &entities.DetectionStatus{Status: status}
	if result != "" {
		out.Result = []byte(result)
	}
	return out
}

// fakeDetectionAPI replays queued statuses. The last status repeats once the
// queue is drained.
type fakeDetectionAPI struct {
	mu sync.Mutex

	ticket    entities.DetectionTicket
	submitErr error
	statuses  []*entities.DetectionStatus
	pollErr   error
	summary   string
	aiErr     error

	// submitGate, when set, holds SubmitDetection until it is closed.
	submitGate    chan struct{}
	submitEntered chan struct{}

	submits    int
	polls      int
	aiCalls    int
	pollTokens []string
}

func (f *fakeDetectionAPI) SubmitDetection(_ context.Context, _ entities.Chain, _ string) (*entities.DetectionTicket, error) {
	if f.submitGate != nil {
		f.submitEntered <- struct{}{}
		<-f.submitGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.submits++
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	ticket := f.ticket
	return &ticket, nil
}

func (f *fakeDetectionAPI) GetDetection(ctx context.Context, _ entities.JobID) (*entities.DetectionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.polls++
	token, _ := clients.TokenFromContext(ctx)
	f.pollTokens = append(f.pollTokens, token)

	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if len(f.statuses) == 0 {
		return statusOf(entities.JobStatusRunning, ""), nil
	}
	next := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return next, nil
}

func (f *fakeDetectionAPI) RequestAISummary(_ context.Context, _ entities.JobID, _ entities.Language) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.aiCalls++
	if f.aiErr != nil {
		return "", f.aiErr
	}
	return f.summary, nil
}

func (f *fakeDetectionAPI) counts() (submits, polls, aiCalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits, f.polls, f.aiCalls
}

func (f *fakeDetectionAPI) set(fn func(f *fakeDetectionAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

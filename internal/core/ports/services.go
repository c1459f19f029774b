package ports

import (
	"context"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
)

// StatusFetcher reads the current status of a detection job.
type StatusFetcher interface {
	GetDetection(ctx context.Context, id entities.JobID) (*entities.DetectionStatus, error)
}

// DetectionAPI is the part of the backend that runs detection jobs.
type DetectionAPI interface {
	StatusFetcher
	SubmitDetection(ctx context.Context, chain entities.Chain, address string) (*entities.DetectionTicket, error)
	RequestAISummary(ctx context.Context, id entities.JobID, lang entities.Language) (string, error)
}

// ProfileAPI returns the signed-in user.
type ProfileAPI interface {
	Me(ctx context.Context) (*entities.User, error)
}

// BillingAPI covers credits and deposits of the signed-in user.
type BillingAPI interface {
	Credits(ctx context.Context) (*entities.Credits, error)
	DepositHistory(ctx context.Context) ([]entities.Deposit, error)
	SubmitDeposit(ctx context.Context, req entities.DepositRequest) (*entities.Deposit, error)
}

// TokenSource returns the user token currently in effect.
type TokenSource interface {
	UserToken(ctx context.Context) (string, error)
}

package usecases

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/clients"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/core/ports"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
)

// Stablecoins accepted for deposits.
const (
	TokenUSDT = "USDT"
	TokenUSDC = "USDC"
)

// DepositInput is a deposit as typed by the user.
type DepositInput struct {
	Token     string
	TxHash    string
	AmountUSD float64
	OrderMode entities.OrderMode
}

// BillingService wraps the credit and deposit endpoints.
type BillingService struct {
	logger *slog.Logger
	api    ports.BillingAPI
	users  *UserService
}

func NewBillingService(logger *slog.Logger, api ports.BillingAPI, users *UserService) *BillingService {
	return &BillingService{
		logger: logger,
		api:    api,
		users:  users,
	}
}

// Credits returns the balance. When the billing endpoint fails the balance
// is derived from the profile instead.
func (s *BillingService) Credits(ctx context.Context) (entities.Credits, error) {
	credits, err := s.api.Credits(ctx)
	if err == nil {
		return *credits, nil
	}
	if s.users == nil || clients.KindOf(err) == clients.KindUnauthorized {
		return entities.Credits{}, err
	}

	s.logger.WarnContext(ctx, "Credits endpoint failed, using profile", "error", err)
	user, userErr := s.users.Current(ctx)
	if userErr != nil {
		return entities.Credits{}, err
	}
	return entities.CreditsFromUser(user), nil
}

// History lists the user's deposits with normalized statuses.
func (s *BillingService) History(ctx context.Context) ([]entities.Deposit, error) {
	deposits, err := s.api.DepositHistory(ctx)
	if err != nil {
		return nil, err
	}
	for i := range deposits {
		deposits[i].Status = string(entities.NormalizeDepositStatus(deposits[i].Status))
	}
	return deposits, nil
}

// BuildDepositRequest validates input and converts it to the request body.
func BuildDepositRequest(in DepositInput) (entities.DepositRequest, error) {
	txHash := strings.TrimSpace(in.TxHash)
	if txHash == "" {
		return entities.DepositRequest{}, &entities.ValidationError{Field: "tx_hash", Message: "transaction hash is required"}
	}
	if math.IsNaN(in.AmountUSD) || math.IsInf(in.AmountUSD, 0) || in.AmountUSD < ports.MinDepositUSD {
		return entities.DepositRequest{}, &entities.ValidationError{Field: "amount_usd", Message: "minimum deposit is 10 USD"}
	}

	token := strings.ToUpper(strings.TrimSpace(in.Token))
	if token == "" {
		token = TokenUSDT
	}
	if token != TokenUSDT && token != TokenUSDC {
		return entities.DepositRequest{}, &entities.ValidationError{Field: "token", Message: "token must be USDT or USDC"}
	}

	mode := in.OrderMode
	if mode == "" {
		mode = entities.OrderModePayAsYouGo
	}
	if mode != entities.OrderModePayAsYouGo && mode != entities.OrderModeSubscription {
		return entities.DepositRequest{}, &entities.ValidationError{Field: "order_mode", Message: "order mode must be payg or subscription"}
	}

	return entities.DepositRequest{
		Token:     token,
		TxHash:    txHash,
		AmountUSD: int64(math.Floor(in.AmountUSD)),
		AmountRaw: int64(math.Floor(in.AmountUSD * math.Pow10(ports.USDTDecimals))),
		OrderMode: mode,
	}, nil
}

// SubmitDeposit validates and submits a deposit for review.
func (s *BillingService) SubmitDeposit(ctx context.Context, in DepositInput) (*entities.Deposit, error) {
	req, err := BuildDepositRequest(in)
	if err != nil {
		return nil, err
	}
	if !entities.IsTxHash(req.TxHash) {
		s.logger.WarnContext(ctx, "Deposit hash does not look like an EVM transaction hash", "tx_hash", req.TxHash)
	}

	deposit, err := s.api.SubmitDeposit(ctx, req)
	if err != nil {
		var apiErr *clients.Error
		if errors.As(err, &apiErr) && apiErr.Kind == clients.KindValidation {
			s.logger.WarnContext(ctx, "Deposit rejected by backend", "detail", apiErr.Detail)
		}
		return nil, err
	}
	return deposit, nil
}

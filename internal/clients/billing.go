package clients

import (
	"context"
	"net/http"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
)

// Credits returns the balance of the current user.
func (c *OmniSafeClient) Credits(ctx context.Context) (*entities.Credits, error) {
	var credits entities.Credits
	if err := c.do(ctx, ScopeUser, http.MethodGet, "/billing/credits", "/billing/credits", nil, &credits); err != nil {
		return nil, err
	}
	return &credits, nil
}

// DepositHistory lists the deposits of the current user.
func (c *OmniSafeClient) DepositHistory(ctx context.Context) ([]entities.Deposit, error) {
	var deposits []entities.Deposit
	if err := c.do(ctx, ScopeUser, http.MethodGet, "/billing/deposit/history", "/billing/deposit/history", nil, &deposits); err != nil {
		return nil, err
	}
	return deposits, nil
}

// SubmitDeposit reports an on-chain payment for review.
func (c *OmniSafeClient) SubmitDeposit(ctx context.Context, req entities.DepositRequest) (*entities.Deposit, error) {
	var deposit entities.Deposit
	if err := c.do(ctx, ScopeUser, http.MethodPost, "/billing/deposit/submit", "/billing/deposit/submit", req, &deposit); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "Deposit submitted",
		"tx_hash", req.TxHash,
		"amount_usd", req.AmountUSD,
		"order_mode", req.OrderMode)

	return &deposit, nil
}

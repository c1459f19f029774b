package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
)

// AdminCredentials are the inputs of the admin login form.
type AdminCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
}

// AdminLogin signs in to the internal console and stores the admin token.
func (c *OmniSafeClient) AdminLogin(ctx context.Context, creds AdminCredentials) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, ScopeAdmin, http.MethodPost, "/internal/auth/login", "/internal/auth/login", creds, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", &Error{Kind: KindDecode, Detail: "response has no access_token"}
	}
	if err := c.creds.SetToken(ctx, ScopeAdmin, out.AccessToken); err != nil {
		return "", err
	}

	c.logger.InfoContext(ctx, "Admin signed in", "username", creds.Username)
	return out.AccessToken, nil
}

// Dashboard returns the admin overview.
func (c *OmniSafeClient) Dashboard(ctx context.Context) (*entities.Dashboard, error) {
	var dashboard entities.Dashboard
	if err := c.do(ctx, ScopeAdmin, http.MethodGet, "/internal/dashboard", "/internal/dashboard", nil, &dashboard); err != nil {
		return nil, err
	}
	return &dashboard, nil
}

// Users lists every account.
func (c *OmniSafeClient) Users(ctx context.Context) ([]entities.AdminUser, error) {
	var users []entities.AdminUser
	if err := c.do(ctx, ScopeAdmin, http.MethodGet, "/internal/users", "/internal/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser applies patch to the user with the given id.
func (c *OmniSafeClient) UpdateUser(ctx context.Context, id int64, patch entities.AdminUserPatch) (*entities.AdminUser, error) {
	var user entities.AdminUser
	path := "/internal/users/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, ScopeAdmin, http.MethodPut, path, "/internal/users/{id}", patch, &user); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "User updated", "user_id", id)
	return &user, nil
}

// PendingDeposits lists deposits awaiting review.
func (c *OmniSafeClient) PendingDeposits(ctx context.Context) ([]entities.Deposit, error) {
	var deposits []entities.Deposit
	if err := c.do(ctx, ScopeAdmin, http.MethodGet, "/internal/deposits/pending", "/internal/deposits/pending", nil, &deposits); err != nil {
		return nil, err
	}
	return deposits, nil
}

// ApproveDeposit confirms a deposit. A nil amount keeps the submitted one.
func (c *OmniSafeClient) ApproveDeposit(ctx context.Context, id int64, amountUSD *float64, note string) error {
	body := struct {
		AmountUSD *float64 `json:"amount_usd,omitempty"`
		Note      string   `json:"note"`
	}{AmountUSD: amountUSD, Note: note}

	path := "/internal/deposits/" + strconv.FormatInt(id, 10) + "/approve"
	if err := c.do(ctx, ScopeAdmin, http.MethodPost, path, "/internal/deposits/{id}/approve", body, nil); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "Deposit approved", "deposit_id", id)
	return nil
}

// RejectDeposit declines a deposit.
func (c *OmniSafeClient) RejectDeposit(ctx context.Context, id int64, note string) error {
	body := map[string]string{"note": note}
	path := "/internal/deposits/" + strconv.FormatInt(id, 10) + "/reject"
	if err := c.do(ctx, ScopeAdmin, http.MethodPost, path, "/internal/deposits/{id}/reject", body, nil); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "Deposit rejected", "deposit_id", id)
	return nil
}

// Ledger lists credit changes, optionally for one user.
func (c *OmniSafeClient) Ledger(ctx context.Context, userID *int64) ([]entities.LedgerEntry, error) {
	path := "/internal/ledger"
	if userID != nil {
		q := url.Values{}
		q.Set("user_id", strconv.FormatInt(*userID, 10))
		path += "?" + q.Encode()
	}

	var entries []entities.LedgerEntry
	if err := c.do(ctx, ScopeAdmin, http.MethodGet, path, "/internal/ledger", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

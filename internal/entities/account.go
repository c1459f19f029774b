package entities

import (
	"encoding/json"
	"strings"
)

// User is the profile returned by /auth/me.
type User struct {
	ID                  json.RawMessage `json:"id,omitempty"`
	Email               string          `json:"email,omitempty"`
	Provider            string          `json:"provider,omitempty"`
	DisplayName         string          `json:"display_name,omitempty"`
	Avatar              string          `json:"avatar,omitempty"`
	PlanLabel           *string         `json:"plan_label,omitempty"`
	PrepaidCredits      *float64        `json:"prepaid_credits,omitempty"`
	SubscriptionCredits *float64        `json:"subscription_credits,omitempty"`
	TotalCredits        *float64        `json:"total_credits,omitempty"`
}

// Credits is the balance returned by /billing/credits.
type Credits struct {
	TotalAvailable      *float64 `json:"total_available,omitempty"`
	PrepaidCredits      *float64 `json:"prepaid_credits,omitempty"`
	SubscriptionCredits *float64 `json:"subscription_credits,omitempty"`
}

// Total returns total_available, or the sum of the two pools when the
// backend omits it.
func (c Credits) Total() float64 {
	if c.TotalAvailable != nil {
		return *c.TotalAvailable
	}
	return deref(c.PrepaidCredits) + deref(c.SubscriptionCredits)
}

// CreditsFromUser derives a balance from a profile when /billing/credits
// is unavailable.
func CreditsFromUser(u *User) Credits {
	if u == nil {
		return Credits{}
	}
	return Credits{PrepaidCredits: u.PrepaidCredits, SubscriptionCredits: u.SubscriptionCredits}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// OrderMode is how a deposit is applied.
type OrderMode string

const (
	OrderModePayAsYouGo   OrderMode = "payg"
	OrderModeSubscription OrderMode = "subscription"
)

// DepositState is the normalized review state of a deposit.
type DepositState string

const (
	DepositPending   DepositState = "pending"
	DepositConfirmed DepositState = "confirmed"
	DepositRejected  DepositState = "rejected"
)

// NormalizeDepositStatus folds the backend's status aliases. Unknown values
// are returned unchanged.
func NormalizeDepositStatus(raw string) DepositState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "pending":
		return DepositPending
	case "confirmed", "success":
		return DepositConfirmed
	case "rejected", "failed":
		return DepositRejected
	}
	return DepositState(raw)
}

// Deposit is one credit top-up, as seen by the user or an admin.
type Deposit struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id,omitempty"`
	Email      *string   `json:"email,omitempty"`
	GoogleSub  *string   `json:"google_sub,omitempty"`
	TelegramID *string   `json:"telegram_id,omitempty"`
	TxHash     string    `json:"tx_hash,omitempty"`
	Token      string    `json:"token,omitempty"`
	AmountUSD  *float64  `json:"amount_usd,omitempty"`
	AmountRaw  *float64  `json:"amount_raw,omitempty"`
	OrderMode  OrderMode `json:"order_mode,omitempty"`
	PlanName   string    `json:"plan_name,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  string    `json:"created_at,omitempty"`
	Note       *string   `json:"note,omitempty"`
}

// DepositRequest is the body of /billing/deposit/submit.
type DepositRequest struct {
	Token     string    `json:"token"`
	TxHash    string    `json:"tx_hash"`
	AmountUSD int64     `json:"amount_usd"`
	AmountRaw int64     `json:"amount_raw"`
	OrderMode OrderMode `json:"order_mode"`
}

// TrendPoint is one day of a dashboard series.
type TrendPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// DashboardLog is one recent admin-visible action.
type DashboardLog struct {
	Action string `json:"action"`
	User   string `json:"user"`
	Time   string `json:"time"`
}

// Dashboard is the admin overview.
type Dashboard struct {
	UsersToday       int64          `json:"users_today"`
	ActiveUsersToday int64          `json:"active_users_today"`
	TotalUsers       int64          `json:"total_users"`
	Users7d          []TrendPoint   `json:"users_7d"`
	DepositsTodayUSD float64        `json:"deposits_today_usd"`
	MonthDepositsUSD float64        `json:"month_deposits_usd"`
	Deposits7d       []TrendPoint   `json:"deposits_7d"`
	TotalEngineCalls int64          `json:"total_engine_calls"`
	EngineCallsToday int64          `json:"engine_calls_today"`
	Logs             []DashboardLog `json:"logs,omitempty"`
}

// AdminUser is a row of the admin user table.
type AdminUser struct {
	ID               int64    `json:"id"`
	GoogleSub        string   `json:"google_sub,omitempty"`
	Email            string   `json:"email,omitempty"`
	TelegramID       string   `json:"telegram_id,omitempty"`
	TelegramUsername string   `json:"telegram_username,omitempty"`
	DisplayName      string   `json:"display_name,omitempty"`
	AvatarURL        string   `json:"avatar_url,omitempty"`
	IsActive         bool     `json:"is_active"`
	PlanLabel        string   `json:"plan_label"`
	CreatedAt        string   `json:"created_at,omitempty"`
	LastLoginAt      string   `json:"last_login_at,omitempty"`
	Credits          float64  `json:"credits"`
	PrepaidCredits   *float64 `json:"prepaid_credits,omitempty"`
}

// AdminUserPatch carries the fields an admin may change. Nil fields are
// left untouched by the backend.
type AdminUserPatch struct {
	PrepaidCredits *float64 `json:"prepaid_credits,omitempty"`
	Credits        *float64 `json:"credits,omitempty"`
	IsActive       *bool    `json:"is_active,omitempty"`
	DisplayName    *string  `json:"display_name,omitempty"`
	PlanLabel      *string  `json:"plan_label,omitempty"`
}

// LedgerEntry is one credit balance change.
type LedgerEntry struct {
	ID           int64    `json:"id"`
	UserID       int64    `json:"user_id"`
	Delta        float64  `json:"delta"`
	BalanceAfter *float64 `json:"balance_after,omitempty"`
	SourceType   *string  `json:"source_type,omitempty"`
	SourceID     *int64   `json:"source_id,omitempty"`
	Note         *string  `json:"note,omitempty"`
	CreatedAt    *string  `json:"created_at,omitempty"`
	Email        *string  `json:"email,omitempty"`
	GoogleSub    *string  `json:"google_sub,omitempty"`
	TelegramID   *string  `json:"telegram_id,omitempty"`
}

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/metrics"
)

const (
	defaultBaseURL = "http://localhost:8000"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

// Options configures an OmniSafeClient.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64
	RateBurst  int
	HTTPClient *http.Client
}

// OmniSafeClient talks to the OmniSafe detection backend.
type OmniSafeClient struct {
	logger  *slog.Logger
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	creds   *Credentials
}

// NewOmniSafeClient creates a client. A zero rate limit disables limiting.
func NewOmniSafeClient(logger *slog.Logger, creds *Credentials, opts Options) *OmniSafeClient {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	logger.Info("OmniSafe client initialized", "api_url", baseURL)

	return &OmniSafeClient{
		logger:  logger,
		baseURL: baseURL,
		client:  httpClient,
		limiter: limiter,
		creds:   creds,
	}
}

// Credentials returns the token store used by the client.
func (c *OmniSafeClient) Credentials() *Credentials {
	return c.creds
}

// SubmitDetection creates a detection job.
func (c *OmniSafeClient) SubmitDetection(ctx context.Context, chain entities.Chain, address string) (*entities.DetectionTicket, error) {
	body := map[string]string{
		"chain":         string(chain),
		"token_address": address,
	}

	var ticket entities.DetectionTicket
	if err := c.do(ctx, ScopeUser, http.MethodPost, "/detect", "/detect", body, &ticket); err != nil {
		return nil, err
	}
	if ticket.JobID == "" {
		return nil, &Error{Kind: KindDecode, Detail: "response has no job_id"}
	}
	if ticket.Status == "" {
		ticket.Status = entities.JobStatusQueued
	}

	c.logger.InfoContext(ctx, "Detection job created",
		"job_id", ticket.JobID,
		"chain", chain,
		"address", address,
		"status", ticket.Status)

	return &ticket, nil
}

// GetDetection fetches the current status of a job.
func (c *OmniSafeClient) GetDetection(ctx context.Context, id entities.JobID) (*entities.DetectionStatus, error) {
	var status entities.DetectionStatus
	path := "/detect/" + url.PathEscape(id.String())
	if err := c.do(ctx, ScopeUser, http.MethodGet, path, "/detect/{id}", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// RequestAISummary asks the backend to explain a finished report.
func (c *OmniSafeClient) RequestAISummary(ctx context.Context, id entities.JobID, lang entities.Language) (string, error) {
	var out struct {
		AISummary string `json:"ai_summary"`
	}
	path := "/detect/" + url.PathEscape(id.String()) + "/ai"
	body := map[string]string{"lang": string(lang)}
	if err := c.do(ctx, ScopeUser, http.MethodPost, path, "/detect/{id}/ai", body, &out); err != nil {
		return "", err
	}
	return out.AISummary, nil
}

// LoginWithGoogle exchanges a Google id token for an access token and
// stores it.
func (c *OmniSafeClient) LoginWithGoogle(ctx context.Context, idToken string) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	body := map[string]string{"id_token": idToken}
	if err := c.do(ctx, ScopeUser, http.MethodPost, "/auth/google", "/auth/google", body, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", &Error{Kind: KindDecode, Detail: "response has no access_token"}
	}

	if err := c.creds.SetToken(ctx, ScopeUser, out.AccessToken); err != nil {
		return "", err
	}
	if err := c.creds.Remember(ctx, KeyAuthProvider, "google"); err != nil {
		c.logger.WarnContext(ctx, "Failed to remember auth provider", "error", err)
	}
	return out.AccessToken, nil
}

// Me returns the profile of the current user.
func (c *OmniSafeClient) Me(ctx context.Context) (*entities.User, error) {
	var user entities.User
	if err := c.do(ctx, ScopeUser, http.MethodGet, "/auth/me", "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *OmniSafeClient) token(ctx context.Context, scope Scope) (token string, fromContext bool, err error) {
	if scope == ScopeUser {
		if t, ok := TokenFromContext(ctx); ok {
			return t, true, nil
		}
	}
	token, err = c.creds.Token(ctx, scope)
	return token, false, err
}

// do sends one JSON request. route is the path template used as metrics
// label.
func (c *OmniSafeClient) do(ctx context.Context, scope Scope, method, path, route string, body, out any) (err error) {
	start := time.Now()
	defer func() {
		kind := "ok"
		if err != nil {
			kind = string(KindOf(err))
		}
		metrics.APILatency.WithLabelValues(method, route, kind).Observe(time.Since(start).Seconds())
	}()

	if err = c.limiter.Wait(ctx); err != nil {
		return &Error{Kind: KindNetwork, Err: err}
	}

	token, fromContext, err := c.token(ctx, scope)
	if err != nil {
		return &Error{Kind: KindUnknown, Err: err}
	}

	var reader io.Reader
	if body != nil {
		payload, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return &Error{Kind: KindValidation, Err: fmt.Errorf("failed to encode request: %w", marshalErr)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: KindUnknown, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.DebugContext(ctx, "OmniSafe request", "method", method, "route", route)

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := c.errorFromResponse(resp, scope)
		if apiErr.Kind == KindAccountDisabled && scope == ScopeUser && !fromContext {
			if clearErr := c.creds.ClearToken(ctx, ScopeUser); clearErr != nil {
				c.logger.ErrorContext(ctx, "Failed to clear disabled account token", "error", clearErr)
			}
		}
		c.logger.WarnContext(ctx, "OmniSafe request failed",
			"method", method,
			"route", route,
			"status", resp.StatusCode,
			"kind", apiErr.Kind)
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindDecode, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// errorFromResponse extracts the detail text. User endpoints return
// {"detail": ...}; admin endpoints are reported as raw text.
func (c *OmniSafeClient) errorFromResponse(resp *http.Response, scope Scope) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	text := strings.TrimSpace(string(raw))

	detail := text
	if scope == ScopeUser {
		detail = parseDetail(raw)
	}
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}

	return &Error{
		Kind:       classify(resp.StatusCode, detail),
		StatusCode: resp.StatusCode,
		Detail:     detail,
	}
}

func parseDetail(raw []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return strings.TrimSpace(string(raw))
	}

	detail, ok := payload["detail"]
	if !ok {
		return strings.TrimSpace(string(raw))
	}

	var s string
	if err := json.Unmarshal(detail, &s); err == nil {
		return s
	}
	return string(detail)
}

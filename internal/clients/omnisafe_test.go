package clients

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/storage"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*OmniSafeClient, *Credentials, storage.Store) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := storage.NewMemoryStore()
	creds := NewCredentials(store, "", "")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	client := NewOmniSafeClient(logger, creds, Options{BaseURL: server.URL + "/", Timeout: 5 * time.Second})
	return client, creds, store
}

func TestSubmitAndPollDetection(t *testing.T) {
	var gotAuth string
	client, creds, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/detect":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "ethereum", body["chain"])
			require.Equal(t, "0x1111111111111111111111111111111111111111", body["token_address"])
			_, _ = w.Write([]byte(`{"job_id": 7, "status": "queued"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/detect/7":
			_, _ = w.Write([]byte(`{"status":"done","result":{"chain":"ethereum"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	require.NoError(t, creds.SetToken(ctx, ScopeUser, "stored-token"))

	ticket, err := client.SubmitDetection(ctx, entities.ChainEthereum, "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	require.Equal(t, entities.JobID("7"), ticket.JobID)
	require.Equal(t, entities.JobStatusQueued, ticket.Status)
	require.Equal(t, "Bearer stored-token", gotAuth)

	status, err := client.GetDetection(WithToken(ctx, "caller-token"), ticket.JobID)
	require.NoError(t, err)
	require.Equal(t, entities.JobStatusDone, status.Status)
	require.JSONEq(t, `{"chain":"ethereum"}`, string(status.Result))
	require.Equal(t, "Bearer caller-token", gotAuth, "context token wins over the stored one")
}

func TestErrorsAreTyped(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/detect":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"Insufficient credit balance"}`))
		case "/detect/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Job not found"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`boom`))
		}
	})
	ctx := context.Background()

	_, err := client.SubmitDetection(ctx, entities.ChainBSC, "0x1111111111111111111111111111111111111111")
	require.True(t, IsInsufficientCredit(err))

	_, err = client.GetDetection(ctx, "missing")
	require.True(t, IsNotFound(err))

	_, err = client.RequestAISummary(ctx, "7", entities.LanguageEnglish)
	require.Equal(t, KindServer, KindOf(err))
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	require.Equal(t, "boom", apiErr.Detail)
}

func TestNetworkAndDecodeErrors(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := client.GetDetection(context.Background(), "1")
	require.Equal(t, KindDecode, KindOf(err))

	unreachable := NewOmniSafeClient(slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewCredentials(storage.NewMemoryStore(), "", ""),
		Options{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	_, err = unreachable.GetDetection(context.Background(), "1")
	require.Equal(t, KindNetwork, KindOf(err))
}

func TestAccountDisabledClearsStoredToken(t *testing.T) {
	client, creds, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"Account disabled"}`))
	})
	ctx := context.Background()

	require.NoError(t, creds.SetToken(ctx, ScopeUser, "tok"))
	require.NoError(t, creds.Remember(ctx, KeyUserEmail, "a@b.c"))

	// A caller-supplied token is not ours to clear.
	_, err := client.Me(WithToken(ctx, "someone-else"))
	require.Equal(t, KindAccountDisabled, KindOf(err))
	token, err := creds.Token(ctx, ScopeUser)
	require.NoError(t, err)
	require.Equal(t, "tok", token)

	_, err = client.Me(ctx)
	require.Equal(t, KindAccountDisabled, KindOf(err))

	token, err = creds.Token(ctx, ScopeUser)
	require.NoError(t, err)
	require.Empty(t, token)
	_, err = store.Get(ctx, KeyUserEmail)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLoginStoresTokens(t *testing.T) {
	client, creds, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/google":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "google-id", body["id_token"])
			_, _ = w.Write([]byte(`{"access_token":"user-jwt"}`))
		case "/internal/auth/login":
			require.Empty(t, r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"access_token":"admin-jwt"}`))
		}
	})
	ctx := context.Background()

	_, err := client.LoginWithGoogle(ctx, "google-id")
	require.NoError(t, err)
	_, err = client.AdminLogin(ctx, AdminCredentials{Username: "root", Password: "pw", OTP: "123456"})
	require.NoError(t, err)

	token, err := creds.Token(ctx, ScopeUser)
	require.NoError(t, err)
	require.Equal(t, "user-jwt", token)

	token, err = creds.Token(ctx, ScopeAdmin)
	require.NoError(t, err)
	require.Equal(t, "admin-jwt", token)

	provider, err := store.Get(ctx, KeyAuthProvider)
	require.NoError(t, err)
	require.Equal(t, "google", string(provider))
}

func TestAdminEndpoints(t *testing.T) {
	var approveBody, ledgerQuery atomic.Value
	client, creds, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer admin", r.Header.Get("Authorization"))

		switch {
		case r.URL.Path == "/internal/deposits/5/approve":
			raw, _ := io.ReadAll(r.Body)
			approveBody.Store(string(raw))
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/internal/ledger":
			ledgerQuery.Store(r.URL.RawQuery)
			_, _ = w.Write([]byte(`[{"id":1,"user_id":9,"delta":-1.5}]`))
		case r.URL.Path == "/internal/users/9" && r.Method == http.MethodPut:
			raw, _ := io.ReadAll(r.Body)
			require.JSONEq(t, `{"is_active":false}`, string(raw))
			_, _ = w.Write([]byte(`{"id":9,"is_active":false,"plan_label":"pro","credits":0}`))
		default:
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`Admin only`))
		}
	})
	ctx := context.Background()
	require.NoError(t, creds.SetToken(ctx, ScopeAdmin, "admin"))

	amount := 25.0
	require.NoError(t, client.ApproveDeposit(ctx, 5, &amount, "ok"))
	require.JSONEq(t, `{"amount_usd":25,"note":"ok"}`, approveBody.Load().(string))

	userID := int64(9)
	entries, err := client.Ledger(ctx, &userID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "user_id=9", ledgerQuery.Load().(string))

	inactive := false
	user, err := client.UpdateUser(ctx, 9, entities.AdminUserPatch{IsActive: &inactive})
	require.NoError(t, err)
	require.False(t, user.IsActive)

	_, err = client.Dashboard(ctx)
	require.Equal(t, KindForbidden, KindOf(err))
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Admin only", apiErr.Detail)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/clients"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/models"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/usecases"
)

const (
	SessionCookie = "omnisafe_session"
	SessionHeader = "X-Session-ID"

	sessionCookieMaxAge = 30 * 24 * time.Hour
	maxRequestBody      = 1 << 20
)

// ScanSessions hands out the scan session of a browser session.
type ScanSessions interface {
	Get(ctx context.Context, id string) (*usecases.ScanSession, error)
}

// UserService returns the signed-in user.
type UserService interface {
	Current(ctx context.Context) (*entities.User, error)
}

// CreditsService returns the balance of the signed-in user.
type CreditsService interface {
	Credits(ctx context.Context) (entities.Credits, error)
}

var (
	_ ScanSessions   = (*usecases.SessionManager)(nil)
	_ UserService    = (*usecases.UserService)(nil)
	_ CreditsService = (*usecases.BillingService)(nil)
)

type HTTPHandler struct {
	logger   *slog.Logger
	sessions ScanSessions
	users    UserService
	billing  CreditsService
}

func NewHTTPHandler(logger *slog.Logger, sessions ScanSessions, users UserService, billing CreditsService) *HTTPHandler {
	return &HTTPHandler{
		logger:   logger,
		sessions: sessions,
		users:    users,
		billing:  billing,
	}
}

func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", h.Health).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(SessionMiddleware)

	// Scan
	api.HandleFunc("/scan", h.GetScan).Methods("GET")
	api.HandleFunc("/scan", h.SubmitScan).Methods("POST")
	api.HandleFunc("/scan", h.ClearScan).Methods("DELETE")
	api.HandleFunc("/scan/ai", h.RequestAISummary).Methods("POST")

	// Account
	api.HandleFunc("/me", h.GetMe).Methods("GET")
	api.HandleFunc("/credits", h.GetCredits).Methods("GET")
}

// Health reports that the gateway is serving.
func (h *HTTPHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetScan returns the scan state of the session, restoring a cached job on
// first access.
func (h *HTTPHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, models.NewScanResponse(session.State()))
}

// SubmitScan creates a detection job for the session.
func (h *HTTPHandler) SubmitScan(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, &entities.ValidationError{Field: "body", Message: err.Error()})
		return
	}

	session, ok := h.session(w, r)
	if !ok {
		return
	}

	state, err := session.Submit(r.Context(), req.Chain, req.TokenAddress)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Scan submitted",
		"session_id", SessionID(r.Context()),
		"job_id", state.JobID,
		"chain", req.Chain)

	writeJSON(w, http.StatusAccepted, models.NewScanResponse(state))
}

// ClearScan forgets the session's job.
func (h *HTTPHandler) ClearScan(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := session.Clear(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequestAISummary asks for the one AI summary of the finished job.
func (h *HTTPHandler) RequestAISummary(w http.ResponseWriter, r *http.Request) {
	var req models.AISummaryRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, &entities.ValidationError{Field: "body", Message: err.Error()})
		return
	}

	session, ok := h.session(w, r)
	if !ok {
		return
	}

	state, err := session.RequestAISummary(r.Context(), req.Lang)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewScanResponse(state))
}

// GetMe returns the signed-in user.
func (h *HTTPHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Current(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetCredits returns the credit balance with its total.
func (h *HTTPHandler) GetCredits(w http.ResponseWriter, r *http.Request) {
	credits, err := h.billing.Credits(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_available":      credits.Total(),
		"prepaid_credits":      credits.PrepaidCredits,
		"subscription_credits": credits.SubscriptionCredits,
	})
}

func (h *HTTPHandler) session(w http.ResponseWriter, r *http.Request) (*usecases.ScanSession, bool) {
	session, err := h.sessions.Get(r.Context(), SessionID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return session, true
}

// writeError maps err to a status code and the {"kind","detail"} body.
func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
	} else {
		h.logger.DebugContext(r.Context(), "Request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

func errorResponse(err error) (int, models.ErrorResponse) {
	var validationErr *entities.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, models.ErrorResponse{Kind: string(clients.KindValidation), Detail: validationErr.Error()}
	}

	switch {
	case errors.Is(err, usecases.ErrUnsupportedLanguage):
		return http.StatusBadRequest, models.ErrorResponse{Kind: string(clients.KindValidation), Detail: err.Error()}
	case errors.Is(err, usecases.ErrNoJob):
		return http.StatusConflict, models.ErrorResponse{Kind: "no_job", Detail: err.Error()}
	case errors.Is(err, usecases.ErrJobNotDone):
		return http.StatusConflict, models.ErrorResponse{Kind: "not_done", Detail: err.Error()}
	case errors.Is(err, usecases.ErrAIInProgress):
		return http.StatusConflict, models.ErrorResponse{Kind: "ai_in_progress", Detail: err.Error()}
	case errors.Is(err, usecases.ErrAILocked):
		return http.StatusLocked, models.ErrorResponse{Kind: "ai_locked", Detail: err.Error()}
	case errors.Is(err, usecases.ErrSignedOut):
		return http.StatusUnauthorized, models.ErrorResponse{Kind: string(clients.KindUnauthorized), Detail: err.Error()}
	case errors.Is(err, usecases.ErrSessionClosed):
		return http.StatusServiceUnavailable, models.ErrorResponse{Kind: "unavailable", Detail: err.Error()}
	}

	var apiErr *clients.Error
	if errors.As(err, &apiErr) {
		detail := apiErr.Detail
		if detail == "" {
			detail = apiErr.Error()
		}
		body := models.ErrorResponse{Kind: string(apiErr.Kind), Detail: detail}

		switch apiErr.Kind {
		case clients.KindValidation:
			return http.StatusBadRequest, body
		case clients.KindInsufficientCredit:
			return http.StatusPaymentRequired, body
		case clients.KindUnauthorized:
			return http.StatusUnauthorized, body
		case clients.KindForbidden, clients.KindAccountDisabled:
			return http.StatusForbidden, body
		case clients.KindNotFound:
			return http.StatusNotFound, body
		}
		return http.StatusBadGateway, body
	}

	return http.StatusInternalServerError, models.ErrorResponse{Kind: "internal", Detail: "internal server error"}
}

type sessionKey struct{}

// SessionID returns the session id attached by SessionMiddleware.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// SessionMiddleware attaches the browser session id (header, then cookie,
// else a new one) and the caller's bearer token to the request context.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			if cookie, err := r.Cookie(SessionCookie); err == nil {
				id = cookie.Value
			}
		}

		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(sessionCookieMaxAge.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		w.Header().Set(SessionHeader, id)

		ctx := context.WithValue(r.Context(), sessionKey{}, id)
		ctx = clients.WithToken(ctx, bearerToken(r))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}

func decodeBody(r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

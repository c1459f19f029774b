package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/clients"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/core/ports"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
)

var ErrSignedOut = errors.New("not signed in")

// UserService caches the signed-in user for the token that fetched it.
// A different token, or an explicit Refresh, triggers a refetch. A failed
// fetch leaves no user. A user fetched with a caller's token is left alone
// by Sync, which only follows the stored token.
type UserService struct {
	logger  *slog.Logger
	profile ports.ProfileAPI
	tokens  ports.TokenSource

	mu          sync.Mutex
	token       string
	fromRequest bool
	user        *entities.User
}

func NewUserService(logger *slog.Logger, profile ports.ProfileAPI, tokens ports.TokenSource) *UserService {
	return &UserService{
		logger:  logger,
		profile: profile,
		tokens:  tokens,
	}
}

// Current returns the user for the token in effect: the caller's token
// attached to ctx, else the stored one.
func (s *UserService) Current(ctx context.Context) (*entities.User, error) {
	token, fromRequest, err := s.currentToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		s.forget()
		return nil, ErrSignedOut
	}

	s.mu.Lock()
	if s.user != nil && s.token == token {
		user := *s.user
		s.mu.Unlock()
		return &user, nil
	}
	s.mu.Unlock()

	return s.fetch(clients.WithToken(ctx, token), token, fromRequest)
}

// Refresh refetches the user regardless of the cached copy.
func (s *UserService) Refresh(ctx context.Context) (*entities.User, error) {
	token, fromRequest, err := s.currentToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		s.forget()
		return nil, ErrSignedOut
	}
	return s.fetch(clients.WithToken(ctx, token), token, fromRequest)
}

// Sync refetches when the stored token differs from the one the cached
// user belongs to.
func (s *UserService) Sync(ctx context.Context) (bool, error) {
	token, err := s.tokens.UserToken(ctx)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	skip := token == s.token || s.fromRequest
	s.mu.Unlock()
	if skip {
		return false, nil
	}

	if token == "" {
		s.forget()
		return true, nil
	}

	if _, err := s.fetch(clients.WithToken(ctx, token), token, false); err != nil {
		return true, err
	}
	return true, nil
}

func (s *UserService) fetch(ctx context.Context, token string, fromRequest bool) (*entities.User, error) {
	user, err := s.profile.Me(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.fromRequest = fromRequest
	if err != nil {
		s.user = nil
		s.logger.WarnContext(ctx, "Failed to load current user", "error", err)
		return nil, err
	}

	s.user = user
	out := *user
	return &out, nil
}

func (s *UserService) forget() {
	s.mu.Lock()
	s.token = ""
	s.fromRequest = false
	s.user = nil
	s.mu.Unlock()
}

func (s *UserService) currentToken(ctx context.Context) (string, bool, error) {
	if token, ok := clients.TokenFromContext(ctx); ok {
		return token, true, nil
	}
	token, err := s.tokens.UserToken(ctx)
	return token, false, err
}

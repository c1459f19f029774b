package clients

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/storage"
)

// Scope selects which token authenticates a call.
type Scope int

const (
	ScopeUser Scope = iota
	ScopeAdmin
)

// Storage keys of the persisted tokens.
const (
	KeyAccessToken      = "access_token"
	KeyAdminAccessToken = "admin_access_token"
	KeyAuthProvider     = "auth_provider"
	KeyUserEmail        = "user_email"
)

func (s Scope) key() string {
	if s == ScopeAdmin {
		return KeyAdminAccessToken
	}
	return KeyAccessToken
}

type tokenKey struct{}

// WithToken attaches a caller-supplied user token to ctx. It takes
// precedence over the stored token.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the token attached with WithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}

// Credentials persists access tokens in a Store, with static fallbacks from
// configuration.
type Credentials struct {
	mu            sync.RWMutex
	store         storage.Store
	fallbackUser  string
	fallbackAdmin string
}

// NewCredentials creates a token store. Fallback tokens are used when the
// store holds none.
func NewCredentials(store storage.Store, userToken, adminToken string) *Credentials {
	return &Credentials{store: store, fallbackUser: userToken, fallbackAdmin: adminToken}
}

// Token returns the token for scope, or "" when none is known.
func (c *Credentials) Token(ctx context.Context, scope Scope) (string, error) {
	value, err := c.store.Get(ctx, scope.key())
	if errors.Is(err, storage.ErrNotFound) {
		c.mu.RLock()
		defer c.mu.RUnlock()
		if scope == ScopeAdmin {
			return c.fallbackAdmin, nil
		}
		return c.fallbackUser, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", scope.key(), err)
	}
	return string(value), nil
}

// SetToken stores a token with no expiry.
func (c *Credentials) SetToken(ctx context.Context, scope Scope, token string) error {
	if err := c.store.Set(ctx, scope.key(), []byte(token), 0); err != nil {
		return fmt.Errorf("failed to store %s: %w", scope.key(), err)
	}
	return nil
}

// ClearToken forgets the stored token and the static fallback.
func (c *Credentials) ClearToken(ctx context.Context, scope Scope) error {
	keys := []string{scope.key()}
	c.mu.Lock()
	if scope == ScopeAdmin {
		c.fallbackAdmin = ""
	} else {
		c.fallbackUser = ""
		keys = append(keys, KeyUserEmail, KeyAuthProvider)
	}
	c.mu.Unlock()
	if err := c.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to clear %s: %w", scope.key(), err)
	}
	return nil
}

// Remember stores an auxiliary profile value such as the user email.
func (c *Credentials) Remember(ctx context.Context, key, value string) error {
	if value == "" {
		return nil
	}
	return c.store.Set(ctx, key, []byte(value), 0)
}

// UserToken returns the stored or configured user token.
func (c *Credentials) UserToken(ctx context.Context) (string, error) {
	return c.Token(ctx, ScopeUser)
}

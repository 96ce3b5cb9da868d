// Package auth is the identity surface the chat core consumes: a stable
// user id plus a bearer token source refreshed on demand.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// defaultLeeway is how far ahead of the token's expiry a refresh is
// triggered, so a token never goes stale mid-handshake.
const defaultLeeway = 30 * time.Second

// TokenSource supplies a bearer token for the transport handshake.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Identity binds a user id to its token source.
type Identity struct {
	UserID string
	Source TokenSource
}

// Validate reports whether the identity is usable.
func (id Identity) Validate() error {
	if id.UserID == "" {
		return errors.New("auth: user id is required")
	}
	if id.Source == nil {
		return errors.New("auth: token source is required")
	}
	return nil
}

// Static wraps a fixed token. Useful for tests and long-lived tokens.
type Static string

// Ensure interface compliance at compile time
var _ TokenSource = Static("")

func (s Static) Token(context.Context) (string, error) {
	if s == "" {
		return "", errors.New("auth: empty static token")
	}
	return string(s), nil
}

// RefreshFunc fetches a fresh bearer token from the identity provider.
type RefreshFunc func(ctx context.Context) (string, error)

// Refreshing caches a JWT and re-fetches it once the cached token is
// within the leeway window of its exp claim. Tokens are parsed without
// signature verification: the server is the verifier; the client only
// needs the expiry to schedule refreshes.
type Refreshing struct {
	refresh RefreshFunc
	leeway  time.Duration
	now     func() time.Time

	mu     sync.Mutex
	cached string
	expiry time.Time
}

// Ensure interface compliance at compile time
var _ TokenSource = (*Refreshing)(nil)

// NewRefreshing constructs a refreshing source. A zero leeway falls back
// to the default.
func NewRefreshing(refresh RefreshFunc, leeway time.Duration) (*Refreshing, error) {
	if refresh == nil {
		return nil, errors.New("auth: refresh func is required")
	}
	if leeway <= 0 {
		leeway = defaultLeeway
	}
	return &Refreshing{refresh: refresh, leeway: leeway, now: time.Now}, nil
}

// Token returns the cached token while it remains comfortably unexpired,
// otherwise fetches a new one.
func (r *Refreshing) Token(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != "" && (r.expiry.IsZero() || r.now().Add(r.leeway).Before(r.expiry)) {
		return r.cached, nil
	}

	token, err := r.refresh(ctx)
	if err != nil {
		return "", fmt.Errorf("auth: refresh token: %w", err)
	}
	if token == "" {
		return "", errors.New("auth: provider returned empty token")
	}

	r.cached = token
	r.expiry = tokenExpiry(token)
	return token, nil
}

// tokenExpiry extracts the exp claim. Opaque (non-JWT) tokens or tokens
// without exp report a zero time, meaning the token is reused until a
// caller forces a refresh.
func tokenExpiry(token string) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// Invalidate discards the cached token so the next Token call re-fetches.
// Call it after the server rejects a handshake with an auth error.
func (r *Refreshing) Invalidate() {
	r.mu.Lock()
	r.cached = ""
	r.expiry = time.Time{}
	r.mu.Unlock()
}

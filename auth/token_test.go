package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "me",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestIdentityValidate(t *testing.T) {
	assert.Error(t, Identity{}.Validate())
	assert.Error(t, Identity{UserID: "me"}.Validate())
	assert.Error(t, Identity{Source: Static("tok")}.Validate())
	assert.NoError(t, Identity{UserID: "me", Source: Static("tok")}.Validate())
}

func TestStaticToken(t *testing.T) {
	tok, err := Static("opaque").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "opaque", tok)

	_, err = Static("").Token(context.Background())
	assert.Error(t, err)
}

func TestRefreshingCachesUntilLeewayWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first := signedToken(t, now.Add(time.Hour))
	second := signedToken(t, now.Add(2*time.Hour))

	calls := 0
	r, err := NewRefreshing(func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return first, nil
		}
		return second, nil
	}, time.Minute)
	require.NoError(t, err)
	r.now = func() time.Time { return now }

	tok, err := r.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, tok)

	// Comfortably inside the validity window: cached copy served.
	now = now.Add(30 * time.Minute)
	tok, err = r.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, tok)
	assert.Equal(t, 1, calls)

	// Within a minute of expiry: refreshed.
	now = now.Add(29*time.Minute + 30*time.Second)
	tok, err = r.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second, tok)
	assert.Equal(t, 2, calls)
}

func TestRefreshingReusesOpaqueTokens(t *testing.T) {
	calls := 0
	r, err := NewRefreshing(func(context.Context) (string, error) {
		calls++
		return "not-a-jwt", nil
	}, 0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		tok, err := r.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "not-a-jwt", tok)
	}
	assert.Equal(t, 1, calls, "no exp claim, so cached until invalidated")
}

func TestInvalidateForcesRefetch(t *testing.T) {
	calls := 0
	r, err := NewRefreshing(func(context.Context) (string, error) {
		calls++
		return "tok", nil
	}, 0)
	require.NoError(t, err)

	_, err = r.Token(context.Background())
	require.NoError(t, err)
	r.Invalidate()
	_, err = r.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRefreshingPropagatesProviderErrors(t *testing.T) {
	boom := errors.New("idp unreachable")
	r, err := NewRefreshing(func(context.Context) (string, error) {
		return "", boom
	}, 0)
	require.NoError(t, err)

	_, err = r.Token(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRefreshingRejectsEmptyProviderToken(t *testing.T) {
	r, err := NewRefreshing(func(context.Context) (string, error) {
		return "", nil
	}, 0)
	require.NoError(t, err)

	_, err = r.Token(context.Background())
	assert.Error(t, err)
}

func TestNewRefreshingRequiresFunc(t *testing.T) {
	_, err := NewRefreshing(nil, 0)
	assert.Error(t, err)
}

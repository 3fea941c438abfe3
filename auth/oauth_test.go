package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/singlebase/singlebase-go/dispatch"
	"github.com/singlebase/singlebase-go/internal/common"
	"github.com/singlebase/singlebase-go/storage"
)

func nonceOK(t *testing.T, f *fakeDispatcher, nonce string) {
	t.Helper()
	f.on(dispatch.ActionAuthNonce, func(payload map[string]any) (*dispatch.Response, error) {
		return okResponse(t, map[string]any{
			"nonce":         nonce,
			"oauth_url":     "https://accounts.example.com/authorize?state=" + nonce,
			"id_token":      makeToken(t, "anon_1", time.Now().Add(time.Hour)),
			"refresh_token": "rt-anon",
			"expires_in":    float64(3600),
		}), nil
	})
}

func TestSignInWithOAuth_PersistsNonceAndAdoptsAnonymousSession(t *testing.T) {
	f := newFakeDispatcher()
	nonceOK(t, f, "nonce-123")
	medium := storage.NewMemoryMedium()
	c := newTestClient(t, f, medium)

	res := c.SignInWithOAuth(context.Background(), "google")
	require.True(t, res.OK)
	require.Equal(t, "nonce-123", res.Data["nonce"])

	stored, err := medium.Get("singlebase/auth:oauth_nonce")
	require.NoError(t, err)
	require.Equal(t, "nonce-123", string(stored))

	// The anonymous token pair that came with the nonce is live.
	require.NotEmpty(t, c.IDToken())
	require.Equal(t, "rt-anon", c.currentSession().RefreshToken)
}

func TestSignInWithOAuth_RequiresProvider(t *testing.T) {
	c := newTestClient(t, newFakeDispatcher(), storage.NewMemoryMedium())

	res := c.SignInWithOAuth(context.Background(), "")
	require.False(t, res.OK)
	require.True(t, errors.Is(res.Err, common.ErrorValidation))
}

func TestSignInWithOAuth_NonceFailureClearsState(t *testing.T) {
	f := newFakeDispatcher()
	signInOK(t, f, "user_1")
	f.on(dispatch.ActionAuthNonce, func(payload map[string]any) (*dispatch.Response, error) {
		return rejection("UNAVAILABLE", "nonce service down"), nil
	})
	medium := storage.NewMemoryMedium()
	c := newTestClient(t, f, medium)

	c.SignInWithPassword(context.Background(), "a@b.c", "pw")
	require.True(t, c.IsAuthenticated())

	res := c.SignInWithOAuth(context.Background(), "google")
	require.False(t, res.OK)
	require.False(t, c.IsAuthenticated())
	require.Equal(t, StateAnonymous, c.State())
}

func TestSignInWithOAuthAccessCode_CompletesFlow(t *testing.T) {
	f := newFakeDispatcher()
	nonceOK(t, f, "nonce-123")
	f.on(dispatch.ActionAuthOAuthConnect, func(payload map[string]any) (*dispatch.Response, error) {
		// The exchange must carry the nonce, the code, and the token pair
		// of the session that initiated the flow.
		require.Equal(t, "code-9", payload["access_code"])
		require.Equal(t, "nonce-123", payload["nonce"])
		require.NotEmpty(t, payload["id_token"])
		require.Equal(t, "rt-anon", payload["refresh_token"])
		return okResponse(t, map[string]any{
			"id_token":      makeToken(t, "user_g", time.Now().Add(time.Hour)),
			"refresh_token": "rt-g",
			"expires_in":    float64(3600),
			"user":          map[string]any{"_key": "user_g", "email": "g@example.com"},
		}), nil
	})
	medium := storage.NewMemoryMedium()
	c := newTestClient(t, f, medium)

	require.True(t, c.SignInWithOAuth(context.Background(), "google").OK)

	// Nonce is taken from persisted storage when not passed explicitly.
	res := c.SignInWithOAuthAccessCode(context.Background(), "code-9", "")
	require.True(t, res.OK)
	require.True(t, c.IsAuthenticated())
	require.Equal(t, "user_g", c.UserKey())

	// The one-time nonce is gone after a successful exchange.
	_, err := medium.Get("singlebase/auth:oauth_nonce")
	require.True(t, errors.Is(err, common.ErrorNotFound))
}

func TestSignInWithOAuthAccessCode_MissingNonceIsHardFailure(t *testing.T) {
	f := newFakeDispatcher()
	signInOK(t, f, "user_1")
	medium := storage.NewMemoryMedium()
	c := newTestClient(t, f, medium)

	c.SignInWithPassword(context.Background(), "a@b.c", "pw")
	require.True(t, c.IsAuthenticated())

	res := c.SignInWithOAuthAccessCode(context.Background(), "code-9", "")
	require.False(t, res.OK)
	require.True(t, errors.Is(res.Err, common.ErrNoNonce))
	require.False(t, c.IsAuthenticated())
	require.Equal(t, StateAnonymous, c.State())
	require.Equal(t, 0, f.callCount(dispatch.ActionAuthOAuthConnect))
}

func TestSignInWithOAuthAccessCode_MissingTokenPairIsHardFailure(t *testing.T) {
	medium := storage.NewMemoryMedium()
	require.NoError(t, medium.Set("singlebase/auth:oauth_nonce", []byte("nonce-123")))
	f := newFakeDispatcher()
	c := newTestClient(t, f, medium)

	res := c.SignInWithOAuthAccessCode(context.Background(), "code-9", "")
	require.False(t, res.OK)
	require.True(t, errors.Is(res.Err, common.ErrNoSession))
	require.Equal(t, 0, f.callCount(dispatch.ActionAuthOAuthConnect))
}

func TestSignInWithOAuthAccessCode_ExchangeRejectionClearsState(t *testing.T) {
	f := newFakeDispatcher()
	nonceOK(t, f, "nonce-123")
	f.on(dispatch.ActionAuthOAuthConnect, func(payload map[string]any) (*dispatch.Response, error) {
		return rejection("INVALID_CODE", "access code expired"), nil
	})
	medium := storage.NewMemoryMedium()
	c := newTestClient(t, f, medium)

	require.True(t, c.SignInWithOAuth(context.Background(), "google").OK)

	res := c.SignInWithOAuthAccessCode(context.Background(), "code-9", "")
	require.False(t, res.OK)
	require.False(t, c.IsAuthenticated())
	require.Equal(t, StateAnonymous, c.State())

	// Purge removed both the session and the pending nonce.
	_, err := medium.Get("singlebase/auth:oauth_nonce")
	require.True(t, errors.Is(err, common.ErrorNotFound))
}

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/singlebase/singlebase-go/dispatch"
	"github.com/singlebase/singlebase-go/internal/common"
	"github.com/singlebase/singlebase-go/session"
)

// SignInWithOAuth starts an OAuth flow with the given provider: it obtains a
// short-lived server-issued nonce, persists it locally so the flow survives a
// process restart, and returns the provider redirect data. When the backend
// includes an anonymous session with the nonce, it is adopted — the access
// code exchange later requires that same token pair.
//
// A nonce failure is a hard failure: state is cleared and the cache purged.
func (c *Client) SignInWithOAuth(ctx context.Context, provider string) Result {
	return guard(func() Result {
		if provider == "" {
			return failure(fmt.Errorf("%w: oauth provider is required", common.ErrorValidation))
		}

		data, err := c.dispatchData(ctx, dispatch.ActionAuthNonce, map[string]any{"provider": provider})
		if err != nil {
			c.clearState(true)
			return failure(err)
		}

		nonce, _ := data["nonce"].(string)
		if nonce == "" {
			c.clearState(true)
			return failure(fmt.Errorf("oauth start: %w", common.ErrNoNonce))
		}
		if err := c.medium.Set(c.nonceKey, []byte(nonce)); err != nil {
			c.clearState(true)
			return failure(fmt.Errorf("failed to persist oauth nonce: %w", err))
		}

		if rec, err := session.FromPayload(data, c.now()); err == nil {
			if err := c.adoptSession(ctx, rec, nil); err != nil {
				c.clearState(true)
				return failure(err)
			}
		}
		return success(data)
	})
}

// SignInWithOAuthAccessCode completes an OAuth flow: it exchanges the
// provider's access code, the nonce (explicit argument or the persisted one),
// and the current token pair for a full session. The exchange is not
// independent of the session context that initiated the flow, so a missing
// nonce or missing token pair is a hard failure that clears state.
//
// The scheduler is stopped for the duration of the exchange; it would race a
// flow that is itself about to replace the token.
func (c *Client) SignInWithOAuthAccessCode(ctx context.Context, accessCode, nonce string) Result {
	return guard(func() Result {
		if accessCode == "" {
			return failure(fmt.Errorf("%w: oauth access code is required", common.ErrorValidation))
		}

		c.stopScheduler()

		if nonce == "" {
			stored, err := c.medium.Get(c.nonceKey)
			if err != nil && !errors.Is(err, common.ErrorNotFound) {
				c.clearState(true)
				return failure(fmt.Errorf("failed to load oauth nonce: %w", err))
			}
			nonce = string(stored)
		}
		if nonce == "" {
			c.clearState(true)
			return failure(fmt.Errorf("oauth exchange: %w", common.ErrNoNonce))
		}

		cur := c.currentSession()
		if cur == nil || cur.IDToken == "" || cur.RefreshToken == "" {
			c.clearState(true)
			return failure(fmt.Errorf("oauth exchange: %w", common.ErrNoSession))
		}

		data, err := c.dispatchData(ctx, dispatch.ActionAuthOAuthConnect, map[string]any{
			"access_code":   accessCode,
			"nonce":         nonce,
			"id_token":      cur.IDToken,
			"refresh_token": cur.RefreshToken,
		})
		if err != nil {
			c.clearState(true)
			return failure(err)
		}

		rec, err := session.FromPayload(data, c.now())
		if err != nil {
			c.clearState(true)
			return failure(err)
		}
		if err := c.adoptSession(ctx, rec, dataProfile(data)); err != nil {
			c.clearState(true)
			return failure(err)
		}
		_ = c.medium.Remove(c.nonceKey)

		return success(data)
	})
}

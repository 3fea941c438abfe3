package auth

import (
	"context"
	"fmt"

	"github.com/singlebase/singlebase-go/dispatch"
	"github.com/singlebase/singlebase-go/internal/common"
	"github.com/singlebase/singlebase-go/session"
)

// refresh exchanges the refresh token for a new session record.
//
// At most one refresh runs at a time: a concurrent caller gets
// common.ErrRefreshInFlight immediately and must re-poll, not block. On
// success the record is replaced wholesale and the sticky failure flag is
// reset. On failure the flag is latched (suppressing automatic attempts,
// not manual ones) and the existing session is left untouched — a failed
// refresh must not log the user out.
func (c *Client) refresh(ctx context.Context, refreshToken, idToken string) (*session.Session, error) {
	if refreshToken == "" || idToken == "" {
		return nil, fmt.Errorf("refresh: %w", common.ErrNoRefreshToken)
	}

	if !c.refreshInFlight.CompareAndSwap(false, true) {
		return nil, common.ErrRefreshInFlight
	}
	defer c.refreshInFlight.Store(false)

	c.mu.Lock()
	c.state = StateRefreshing
	c.mu.Unlock()

	data, err := c.dispatchData(ctx, dispatch.ActionAuthRefreshToken, map[string]any{
		"refresh_token": refreshToken,
		"id_token":      idToken,
	})
	if err != nil {
		c.mu.Lock()
		c.refreshFailed = true
		c.state = StateFailedRefresh
		c.mu.Unlock()
		c.log.Warn(ctx, "session refresh failed", "err", err)
		return nil, err
	}

	rec, err := session.FromPayload(data, c.now())
	if err != nil {
		c.mu.Lock()
		c.refreshFailed = true
		c.state = StateFailedRefresh
		c.mu.Unlock()
		return nil, err
	}

	if err := c.adoptSession(ctx, rec, dataProfile(data)); err != nil {
		// The backend rotated the tokens but the cache write failed; latch
		// the failure so the client never lingers in REFRESHING.
		c.mu.Lock()
		c.refreshFailed = true
		c.state = StateFailedRefresh
		c.mu.Unlock()
		c.log.Error(ctx, "failed to persist refreshed session", "err", err)
		return nil, err
	}
	return rec, nil
}

// GetIDToken returns the live token when it is still valid. When it is not
// and allowRefresh is set, exactly one refresh attempt is made; on success
// the check recurses once with refresh disabled. An empty result means no
// path yielded a valid token — "still expired" and "refresh failed" are
// deliberately indistinguishable here; use RefreshSession for the error.
func (c *Client) GetIDToken(ctx context.Context, allowRefresh bool) string {
	cur := c.currentSession()
	if cur.Valid(c.margin, c.now()) {
		return cur.IDToken
	}

	if allowRefresh && cur != nil && cur.RefreshToken != "" {
		if _, err := c.refresh(ctx, cur.RefreshToken, cur.IDToken); err != nil {
			c.log.Debug(ctx, "opportunistic refresh failed", "err", err)
			return ""
		}
		return c.GetIDToken(ctx, false)
	}
	return ""
}

// RefreshSession forces a manual refresh of the current session and returns
// the new id token. Manual refreshes run even while the sticky failure flag
// is set (and reset it on success).
func (c *Client) RefreshSession(ctx context.Context) (string, error) {
	cur := c.currentSession()
	if cur == nil {
		return "", common.ErrNoSession
	}
	rec, err := c.refresh(ctx, cur.RefreshToken, cur.IDToken)
	if err != nil {
		return "", err
	}
	return rec.IDToken, nil
}

// GetUser returns the current profile, refreshing the session if needed.
// It resolves absent whenever no valid token can be produced.
func (c *Client) GetUser(ctx context.Context) map[string]any {
	if c.GetIDToken(ctx, true) == "" {
		return nil
	}
	if p := c.UserProfile(); p != nil {
		return p
	}
	return profileFromClaims(c.currentSession())
}

// stickyFailed reports whether automatic refreshes are currently suppressed.
func (c *Client) stickyFailed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshFailed
}

// dataProfile extracts the profile object a backend auth response may embed.
func dataProfile(data map[string]any) map[string]any {
	for _, key := range []string{"user", "profile", "user_profile"} {
		if p, ok := data[key].(map[string]any); ok {
			return p
		}
	}
	return nil
}

package auth

import (
	"context"
	"fmt"

	"github.com/singlebase/singlebase-go/dispatch"
	"github.com/singlebase/singlebase-go/internal/common"
	"github.com/singlebase/singlebase-go/session"
)

// guard converts a panic escaping an operation into a structured failure, so
// no public operation ever throws.
func guard(op func() Result) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failure(fmt.Errorf("%w: %v", common.ErrorInternal, r))
		}
	}()
	return op()
}

// SignUpWithPassword creates an account. When the backend responds with a
// session, it is adopted; a rejection clears state and purges the cache.
func (c *Client) SignUpWithPassword(ctx context.Context, email, password string, extra map[string]any) Result {
	return guard(func() Result {
		if email == "" || password == "" {
			return failure(fmt.Errorf("%w: email and password are required", common.ErrorValidation))
		}
		payload := map[string]any{"email": email, "password": password}
		for k, v := range extra {
			payload[k] = v
		}
		return c.credentialSignIn(ctx, dispatch.ActionAuthSignUp, payload)
	})
}

// SignInWithPassword authenticates with email and password.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) Result {
	return guard(func() Result {
		if email == "" || password == "" {
			return failure(fmt.Errorf("%w: email and password are required", common.ErrorValidation))
		}
		payload := map[string]any{"email": email, "password": password}
		return c.credentialSignIn(ctx, dispatch.ActionAuthSignIn, payload)
	})
}

// credentialSignIn is the shared tail of sign-in/sign-up: state is cleared
// before the attempt (flow restart), a failure leaves the client anonymous
// with an empty cache, a success adopts the returned session.
func (c *Client) credentialSignIn(ctx context.Context, action string, payload map[string]any) Result {
	c.clearState(true)

	data, err := c.dispatchData(ctx, action, payload)
	if err != nil {
		c.clearState(true)
		return failure(err)
	}

	rec, err := session.FromPayload(data, c.now())
	if err != nil {
		// A signup flow may require verification before a session exists;
		// surface the data without adopting anything.
		if action == dispatch.ActionAuthSignUp {
			return success(data)
		}
		c.clearState(true)
		return failure(err)
	}

	if err := c.adoptSession(ctx, rec, dataProfile(data)); err != nil {
		c.clearState(true)
		return failure(err)
	}
	return success(data)
}

// SignOut revokes the session server-side and always leaves the client
// anonymous with a purged cache, even when the revoke call fails.
func (c *Client) SignOut(ctx context.Context) Result {
	return guard(func() Result {
		c.stopScheduler()

		var payload map[string]any
		if s := c.currentSession(); s != nil {
			payload = map[string]any{"id_token": s.IDToken}
		}

		data, err := c.dispatchData(ctx, dispatch.ActionAuthSignOut, payload)
		c.clearState(true)
		if err != nil {
			return failure(err)
		}
		return success(data)
	})
}

// UpdateAccount mutates account-level attributes (email, password, etc.).
// State is left unchanged apart from a refreshed profile when the backend
// returns one.
func (c *Client) UpdateAccount(ctx context.Context, fields map[string]any) Result {
	return guard(func() Result {
		if len(fields) == 0 {
			return failure(fmt.Errorf("%w: no account fields given", common.ErrorValidation))
		}
		data, err := c.dispatchData(ctx, dispatch.ActionAuthUpdateAccount, fields)
		if err != nil {
			return failure(err)
		}
		if p := dataProfile(data); p != nil {
			c.store.Set(StateKeyProfile, p)
		}
		return success(data)
	})
}

// UpdateProfile mutates display attributes. Only the profile slot changes;
// the token identity is untouched, so auth-state subscribers stay quiet.
func (c *Client) UpdateProfile(ctx context.Context, fields map[string]any) Result {
	return guard(func() Result {
		if len(fields) == 0 {
			return failure(fmt.Errorf("%w: no profile fields given", common.ErrorValidation))
		}
		data, err := c.dispatchData(ctx, dispatch.ActionAuthUpdateProfile, fields)
		if err != nil {
			return failure(err)
		}
		if p := dataProfile(data); p != nil {
			c.store.Set(StateKeyProfile, p)
		} else {
			merged := map[string]any{}
			for k, v := range c.UserProfile() {
				merged[k] = v
			}
			for k, v := range fields {
				merged[k] = v
			}
			c.store.Set(StateKeyProfile, merged)
		}
		return success(data)
	})
}

// SendOTP requests a one-time passcode for the given intent (sign-in,
// verification, password reset).
func (c *Client) SendOTP(ctx context.Context, payload map[string]any) Result {
	return guard(func() Result {
		if len(payload) == 0 {
			return failure(fmt.Errorf("%w: otp payload is required", common.ErrorValidation))
		}
		data, err := c.dispatchData(ctx, dispatch.ActionAuthSendOTP, payload)
		if err != nil {
			return failure(err)
		}
		return success(data)
	})
}

// LoadSettings fetches the project's auth settings (enabled providers,
// password policy, and the like).
func (c *Client) LoadSettings(ctx context.Context) Result {
	return guard(func() Result {
		data, err := c.dispatchData(ctx, dispatch.ActionAuthSettings, nil)
		if err != nil {
			return failure(err)
		}
		return success(data)
	})
}

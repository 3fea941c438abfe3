// Package auth implements the session facade of the SDK: the single source
// of truth for "is the user signed in". It owns the observable state pair
// (token + user profile), keeps the id token fresh through a guarded refresh
// policy and a background scheduler, persists the session across restarts,
// and reconciles state with sibling processes through the storage medium's
// change notification.
//
// Known exposure: the refresh in-flight guard carries no timeout. A dispatch
// call that never resolves holds the slot and blocks every further refresh
// until it returns.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/singlebase/singlebase-go/dispatch"
	"github.com/singlebase/singlebase-go/internal/common"
	"github.com/singlebase/singlebase-go/internal/logging"
	"github.com/singlebase/singlebase-go/session"
	"github.com/singlebase/singlebase-go/statex"
	"github.com/singlebase/singlebase-go/storage"
	"github.com/singlebase/singlebase-go/tokencache"
)

// Observable state slots. The pair is only ever mutated through atomic
// patches, so subscribers never see a token without its matching profile
// state. Token absent implies profile absent.
const (
	StateKeyToken   = "token"
	StateKeyProfile = "user_profile"
)

const (
	// DefaultRefreshInterval is the auto-refresh scheduler period.
	DefaultRefreshInterval = 60 * time.Second

	sessionKeySuffix = "/auth:session"
	nonceKeySuffix   = "/auth:oauth_nonce"
	defaultNamespace = "singlebase"
)

// State is the facade's lifecycle state.
type State int

const (
	// StateAnonymous: no token.
	StateAnonymous State = iota
	// StateAuthenticated: a valid token is present.
	StateAuthenticated
	// StateRefreshing: the token is invalid or about to expire and the
	// refresh policy is engaged.
	StateRefreshing
	// StateFailedRefresh: a refresh attempt failed; the stale token is
	// retained but automatic retries are suppressed.
	StateFailedRefresh
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateFailedRefresh:
		return "failed_refresh"
	default:
		return "unknown"
	}
}

// Options configures a Client. Dispatcher and Medium are required.
type Options struct {
	Dispatcher dispatch.Dispatcher
	Medium     storage.Medium

	// Namespace scopes the persisted keys of this SDK instance.
	// Defaults to "singlebase".
	Namespace string

	// ValidityMargin is subtracted from the token expiry when deciding
	// usability. Defaults to session.DefaultValidityMargin.
	ValidityMargin time.Duration

	// RefreshInterval is the auto-refresh scheduler period.
	// Defaults to DefaultRefreshInterval.
	RefreshInterval time.Duration

	Logger logging.Logger
}

// Client is the session facade.
type Client struct {
	dispatcher dispatch.Dispatcher
	medium     storage.Medium
	store      *statex.Store
	cache      *tokencache.Cache
	log        logging.Logger

	margin          time.Duration
	refreshInterval time.Duration
	nonceKey        string

	// now is a test seam; defaults to time.Now.
	now func() time.Time

	// mu serializes state-machine transitions and the bookkeeping fields
	// below. It is never held across a dispatch call or a store write.
	mu            sync.Mutex
	state         State
	refreshFailed bool
	lastRevision  int64

	// refreshInFlight is the single-slot refresh lock: a second caller
	// arriving while a refresh runs fails immediately, it does not queue.
	refreshInFlight atomic.Bool

	schedMu   sync.Mutex
	schedStop chan struct{}

	stopWatch func()
}

// NewClient builds the facade and synchronously hydrates it from the
// persistent cache: a persisted session immediately determines the initial
// state, with no network round trip.
func NewClient(opts Options) (*Client, error) {
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("auth: dispatcher is required")
	}
	if opts.Medium == nil {
		return nil, fmt.Errorf("auth: storage medium is required")
	}
	ns := opts.Namespace
	if ns == "" {
		ns = defaultNamespace
	}
	margin := opts.ValidityMargin
	if margin == 0 {
		margin = session.DefaultValidityMargin
	}
	interval := opts.RefreshInterval
	if interval == 0 {
		interval = DefaultRefreshInterval
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}

	c := &Client{
		dispatcher:      opts.Dispatcher,
		medium:          opts.Medium,
		store:           statex.New(),
		cache:           tokencache.New(opts.Medium, ns+sessionKeySuffix),
		log:             log.With("component", "auth"),
		margin:          margin,
		refreshInterval: interval,
		nonceKey:        ns + nonceKeySuffix,
		now:             time.Now,
		state:           StateAnonymous,
	}

	c.hydrate()

	cancel, err := c.medium.Watch(c.onStorageEvent)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to watch storage: %w", err)
	}
	c.stopWatch = cancel

	return c, nil
}

// hydrate loads a persisted session, if any, into observable state.
func (c *Client) hydrate() {
	rec, err := c.cache.Get()
	if err != nil {
		c.log.Warn(context.Background(), "failed to load cached session", "err", err)
		return
	}
	if rec == nil {
		return
	}

	c.mu.Lock()
	c.lastRevision = rec.Revision
	if rec.Valid(c.margin, c.now()) {
		c.state = StateAuthenticated
	} else {
		// Token present but stale; the refresh policy takes over.
		c.state = StateRefreshing
	}
	c.mu.Unlock()

	// Same shape a cross-tab adoption publishes: the persisted record has no
	// profile object, so claims stand in until the next auth response.
	c.store.Patch(map[string]any{
		StateKeyToken:   rec,
		StateKeyProfile: profileFromClaims(rec),
	})
	c.startScheduler()
}

// Close stops the scheduler and the storage watcher. The client keeps its
// in-memory state and can still serve synchronous reads.
func (c *Client) Close() {
	c.stopScheduler()
	if c.stopWatch != nil {
		c.stopWatch()
		c.stopWatch = nil
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsAuthenticated reports whether a currently valid token is present.
func (c *Client) IsAuthenticated() bool {
	return c.currentSession().Valid(c.margin, c.now())
}

// IDToken returns the live id token without validity checks or refresh.
func (c *Client) IDToken() string {
	if s := c.currentSession(); s != nil {
		return s.IDToken
	}
	return ""
}

// UserProfile returns the current profile slot, or nil when absent.
func (c *Client) UserProfile() map[string]any {
	v, ok := c.store.Get(StateKeyProfile)
	if !ok {
		return nil
	}
	profile, _ := v.(map[string]any)
	return profile
}

// UserKey returns the user's key from the profile, falling back to the
// token's subject claim.
func (c *Client) UserKey() string {
	if p := c.UserProfile(); p != nil {
		if key, ok := p["_key"].(string); ok && key != "" {
			return key
		}
	}
	if s := c.currentSession(); s != nil && s.TokenInfo != nil {
		return s.TokenInfo.Sub
	}
	return ""
}

// Email returns the user's email from the profile, falling back to the
// token's email claim.
func (c *Client) Email() string {
	if p := c.UserProfile(); p != nil {
		if email, ok := p["email"].(string); ok && email != "" {
			return email
		}
	}
	if s := c.currentSession(); s != nil && s.TokenInfo != nil {
		return s.TokenInfo.Email
	}
	return ""
}

// OnStateChanged subscribes to every committed observable-state change and
// returns an unsubscribe handle.
func (c *Client) OnStateChanged(fn statex.ChangeFunc) (unsubscribe func()) {
	return c.store.Subscribe(fn)
}

// OnAuthStateChanged fires fn once with the current profile, then again only
// when the token identity changes. Unrelated profile edits do not fire it.
//
// The snapshot and the registration happen under one store lock, so a
// sign-in racing the call is delivered as a change, never lost. When a
// change lands before the initial fire, that delivery becomes the initial
// fire and the stale snapshot is dropped.
func (c *Client) OnAuthStateChanged(fn func(profile map[string]any)) (unsubscribe func()) {
	var mu sync.Mutex
	seeded := false
	last := ""

	deliver := func(initial bool, identity string, profile map[string]any) {
		mu.Lock()
		defer mu.Unlock()
		if seeded && (initial || identity == last) {
			return
		}
		seeded = true
		last = identity
		fn(profile)
	}

	state, unsub := c.store.SubscribeWithState(func(changed any, prev, cur map[string]any) {
		profile, _ := cur[StateKeyProfile].(map[string]any)
		deliver(false, tokenIdentity(cur), profile)
	})

	profile, _ := state[StateKeyProfile].(map[string]any)
	deliver(true, tokenIdentity(state), profile)
	return unsub
}

func tokenIdentity(state map[string]any) string {
	s, _ := state[StateKeyToken].(*session.Session)
	if s == nil {
		return ""
	}
	return s.IDToken
}

// CurrentSession returns a copy of the live token record, or nil when
// anonymous. Mutating the copy does not affect client state.
func (c *Client) CurrentSession() *session.Session {
	s := c.currentSession()
	if s == nil {
		return nil
	}
	cp := *s
	if s.TokenInfo != nil {
		info := *s.TokenInfo
		cp.TokenInfo = &info
	}
	return &cp
}

// currentSession returns the live token record, or nil when anonymous.
func (c *Client) currentSession() *session.Session {
	v, ok := c.store.Get(StateKeyToken)
	if !ok {
		return nil
	}
	s, _ := v.(*session.Session)
	return s
}

// adoptSession installs a freshly minted session record: persists it (which
// stamps the revision), publishes token and profile in one atomic patch,
// resets the sticky failure flag, and rearms the scheduler.
func (c *Client) adoptSession(ctx context.Context, rec *session.Session, profile map[string]any) error {
	if err := c.cache.Set(rec); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = StateAuthenticated
	c.refreshFailed = false
	c.lastRevision = rec.Revision
	c.mu.Unlock()

	if profile == nil {
		profile = profileFromClaims(rec)
	}
	c.store.Patch(map[string]any{
		StateKeyToken:   rec,
		StateKeyProfile: profile,
	})

	c.startScheduler()
	c.log.Debug(ctx, "session adopted", "revision", rec.Revision)
	return nil
}

// clearState drops the observable pair and moves to ANONYMOUS. When purge is
// set, the persistent cache and any pending OAuth nonce are removed as well.
func (c *Client) clearState(purge bool) {
	c.stopScheduler()

	c.mu.Lock()
	c.state = StateAnonymous
	c.refreshFailed = false
	c.lastRevision = 0
	c.mu.Unlock()

	c.store.Patch(map[string]any{
		StateKeyToken:   nil,
		StateKeyProfile: nil,
	})

	if purge {
		if err := c.cache.Remove(); err != nil {
			c.log.Warn(context.Background(), "failed to purge session cache", "err", err)
		}
		_ = c.medium.Remove(c.nonceKey)
	}
}

// profileFromClaims derives a minimal profile from token claims when the
// backend response carried none.
func profileFromClaims(rec *session.Session) map[string]any {
	if rec == nil || rec.TokenInfo == nil {
		return nil
	}
	info := rec.TokenInfo
	if info.Sub == "" && info.Email == "" && info.Name == "" {
		return nil
	}
	p := map[string]any{}
	if info.Sub != "" {
		p["_key"] = info.Sub
	}
	if info.Email != "" {
		p["email"] = info.Email
	}
	if info.Name != "" {
		p["display_name"] = info.Name
	}
	return p
}

// dispatchData runs one dispatch call and normalizes the three failure modes
// (transport error, rejection envelope, undecodable data) into one error.
func (c *Client) dispatchData(ctx context.Context, action string, payload map[string]any) (map[string]any, error) {
	resp, err := c.dispatcher.Dispatch(ctx, action, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	if !resp.OK {
		if resp.Error != nil {
			return nil, classifyRejection(resp.Error)
		}
		return nil, fmt.Errorf("%s: %w", action, common.ErrorInternal)
	}
	return resp.DataMap()
}

// classifyRejection tags well-known rejection shapes with a matchable
// sentinel while keeping the APIError in the chain for errors.As.
func classifyRejection(apiErr *dispatch.APIError) error {
	switch {
	case apiErr.Status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", common.ErrorUnauthorized, apiErr)
	case apiErr.Code == "TOKEN_EXPIRED" || apiErr.Code == "REFRESH_TOKEN_EXPIRED":
		return fmt.Errorf("%w: %w", common.ErrTokenExpired, apiErr)
	}
	return apiErr
}

package auth

import (
	"context"

	"github.com/singlebase/singlebase-go/session"
	"github.com/singlebase/singlebase-go/storage"
)

// onStorageEvent reconciles this process with writes made by sibling
// processes sharing the storage medium. Any payload whose revision differs
// from the one this client already holds is adopted by re-reading the cache;
// there is no timestamp ordering, a different revision is simply newer truth.
func (c *Client) onStorageEvent(ev storage.Event) {
	if ev.Key != c.cache.Key() {
		return
	}

	incoming, err := session.Decode(ev.New)
	if err != nil {
		c.log.Warn(context.Background(), "ignoring undecodable storage event", "err", err)
		return
	}
	var incomingRev int64
	if incoming != nil {
		incomingRev = incoming.Revision
	}

	c.mu.Lock()
	known := c.lastRevision
	c.mu.Unlock()
	if incomingRev == known {
		return
	}

	ctx := context.Background()
	rec, err := c.cache.Get()
	if err != nil {
		c.log.Warn(ctx, "failed to re-read session after storage event", "err", err)
		return
	}

	if rec == nil {
		// A sibling signed out; the cache is already gone, only local
		// state needs clearing.
		c.log.Debug(ctx, "sibling cleared the session")
		c.clearState(false)
		return
	}

	c.mu.Lock()
	c.lastRevision = rec.Revision
	if rec.Valid(c.margin, c.now()) {
		c.state = StateAuthenticated
	} else {
		c.state = StateRefreshing
	}
	c.refreshFailed = false
	c.mu.Unlock()

	c.store.Patch(map[string]any{
		StateKeyToken:   rec,
		StateKeyProfile: profileFromClaims(rec),
	})
	c.startScheduler()
	c.log.Debug(ctx, "adopted sibling session", "revision", rec.Revision)
}

package auth

import (
	"context"
	"time"
)

// startScheduler (re)arms the auto-refresh timer. Any running timer is
// stopped first, so starting is idempotent and never stacks tickers.
func (c *Client) startScheduler() {
	c.schedMu.Lock()
	defer c.schedMu.Unlock()

	if c.schedStop != nil {
		close(c.schedStop)
	}
	stop := make(chan struct{})
	c.schedStop = stop

	go c.runScheduler(stop, c.refreshInterval)
}

// stopScheduler cancels the timer if one is armed.
func (c *Client) stopScheduler() {
	c.schedMu.Lock()
	defer c.schedMu.Unlock()
	if c.schedStop != nil {
		close(c.schedStop)
		c.schedStop = nil
	}
}

func (c *Client) runScheduler(stop chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.schedulerTick()
		}
	}
}

// schedulerTick proactively keeps the token fresh. While the sticky failure
// flag is latched, automatic attempts stay suppressed until a manual refresh
// or a new sign-in succeeds.
func (c *Client) schedulerTick() {
	if c.stickyFailed() {
		return
	}
	ctx := context.Background()
	if token := c.GetIDToken(ctx, true); token == "" {
		c.log.Debug(ctx, "scheduler tick produced no valid token")
	}
}

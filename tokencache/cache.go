// Package tokencache persists the current session record under one
// namespaced key in a storage medium. The cache owns (de)serialization and
// the revision stamp; durability and change notification belong to the
// medium. Expiry is embedded in the record itself and never enforced here.
package tokencache

import (
	"errors"
	"fmt"
	"time"

	"github.com/singlebase/singlebase-go/internal/common"
	"github.com/singlebase/singlebase-go/session"
	"github.com/singlebase/singlebase-go/storage"
)

// Cache stores one session record in a Medium.
type Cache struct {
	medium storage.Medium
	key    string

	// now is a test seam; defaults to time.Now.
	now func() time.Time
}

// New creates a cache over medium. The key is the fixed namespace string
// scoping this SDK instance's session, e.g. "singlebase/auth:session".
func New(medium storage.Medium, key string) *Cache {
	return &Cache{medium: medium, key: key, now: time.Now}
}

// SetNowFunc overrides the clock used for revision stamps (tests).
func (c *Cache) SetNowFunc(now func() time.Time) { c.now = now }

// Key returns the namespace key the cache writes under.
func (c *Cache) Key() string { return c.key }

// Set stamps the record with a fresh wall-clock revision and persists it.
// The record is mutated in place so the caller observes the stamp it was
// written with.
func (c *Cache) Set(s *session.Session) error {
	if s == nil {
		return fmt.Errorf("cannot cache a nil session")
	}
	s.Revision = c.now().UnixMilli()
	b, err := s.Encode()
	if err != nil {
		return err
	}
	if err := c.medium.Set(c.key, b); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// Get returns the cached record, or nil when none is persisted.
func (c *Cache) Get() (*session.Session, error) {
	b, err := c.medium.Get(c.key)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session.Decode(b)
}

// Remove deletes the cached record.
func (c *Cache) Remove() error {
	if err := c.medium.Remove(c.key); err != nil {
		return fmt.Errorf("failed to purge session: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/singlebase/singlebase-go/internal/common"
)

const defaultPollInterval = 500 * time.Millisecond

// SQLiteMedium stores keys in a sqlite table. Sqlite has no change
// notification, so Watch polls the table and diffs it against the last
// observed snapshot; writes made through this medium update the snapshot
// first and therefore do not echo back as events.
type SQLiteMedium struct {
	db           *sql.DB
	pollInterval time.Duration

	mu        sync.Mutex
	lastKnown map[string][]byte
	watchers  map[int]func(Event)
	nextID    int
	done      chan struct{}
}

// NewSQLiteMedium creates the backing table if needed. The caller owns the
// *sql.DB (and the driver registration, e.g. modernc.org/sqlite).
func NewSQLiteMedium(db *sql.DB) (*SQLiteMedium, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sdk_storage (
		  key   TEXT PRIMARY KEY,
		  value BLOB NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage table: %w", err)
	}
	return &SQLiteMedium{
		db:           db,
		pollInterval: defaultPollInterval,
		lastKnown:    make(map[string][]byte),
		watchers:     make(map[int]func(Event)),
	}, nil
}

// SetPollInterval overrides how often Watch scans for sibling writes.
// It must be called before the first Watch.
func (m *SQLiteMedium) SetPollInterval(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollInterval = d
}

func (m *SQLiteMedium) Get(key string) ([]byte, error) {
	var value []byte
	err := m.db.QueryRow(`SELECT value FROM sdk_storage WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get storage[%s]: %w", key, err)
	}

	m.mu.Lock()
	m.lastKnown[key] = value
	m.mu.Unlock()
	return value, nil
}

func (m *SQLiteMedium) Set(key string, value []byte) error {
	m.mu.Lock()
	m.lastKnown[key] = append([]byte(nil), value...)
	m.mu.Unlock()

	_, err := m.db.Exec(`
		INSERT INTO sdk_storage (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set storage[%s]: %w", key, err)
	}
	return nil
}

func (m *SQLiteMedium) Remove(key string) error {
	m.mu.Lock()
	delete(m.lastKnown, key)
	m.mu.Unlock()

	_, err := m.db.Exec(`DELETE FROM sdk_storage WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to remove storage[%s]: %w", key, err)
	}
	return nil
}

func (m *SQLiteMedium) Watch(fn func(Event)) (cancel func(), err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done == nil {
		m.done = make(chan struct{})
		go m.poll(m.done, m.pollInterval)
	}

	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watchers, id)
	}, nil
}

// Close stops the polling watcher; Get/Set/Remove keep working.
func (m *SQLiteMedium) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	return nil
}

func (m *SQLiteMedium) poll(done chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.scan()
		}
	}
}

func (m *SQLiteMedium) scan() {
	current, err := m.snapshot()
	if err != nil {
		return
	}

	m.mu.Lock()
	var events []Event
	for key, newVal := range current {
		old, ok := m.lastKnown[key]
		if !ok || string(old) != string(newVal) {
			events = append(events, Event{Key: key, Old: old, New: newVal})
			m.lastKnown[key] = newVal
		}
	}
	for key, old := range m.lastKnown {
		if _, ok := current[key]; !ok {
			events = append(events, Event{Key: key, Old: old, New: nil})
			delete(m.lastKnown, key)
		}
	}
	fns := make([]func(Event), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

func (m *SQLiteMedium) snapshot() (map[string][]byte, error) {
	rows, err := m.db.QueryContext(context.Background(), `SELECT key, value FROM sdk_storage`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, rows.Err()
}

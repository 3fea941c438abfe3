package storage

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/singlebase/singlebase-go/internal/common"
)

const fileExt = ".json"

// FileMedium stores one file per key under a directory and uses fsnotify to
// observe writes made by sibling processes sharing the same directory.
//
// A process cannot fully suppress notifications for its own writes at the OS
// level, so the medium remembers the last value it wrote (or observed) per
// key and drops events that carry no change relative to that.
type FileMedium struct {
	dir string

	mu        sync.Mutex
	lastKnown map[string][]byte
	watchers  map[int]func(Event)
	nextID    int

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileMedium creates the directory if needed and returns a medium over it.
func NewFileMedium(dir string) (*FileMedium, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %s: %w", dir, err)
	}
	return &FileMedium{
		dir:       dir,
		lastKnown: make(map[string][]byte),
		watchers:  make(map[int]func(Event)),
	}, nil
}

func (m *FileMedium) path(key string) string {
	return filepath.Join(m.dir, url.QueryEscape(key)+fileExt)
}

func keyFromFile(name string) (string, bool) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, fileExt) {
		return "", false
	}
	key, err := url.QueryUnescape(strings.TrimSuffix(base, fileExt))
	if err != nil {
		return "", false
	}
	return key, true
}

func (m *FileMedium) Get(key string) ([]byte, error) {
	b, err := os.ReadFile(m.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	m.mu.Lock()
	m.lastKnown[key] = b
	m.mu.Unlock()
	return b, nil
}

func (m *FileMedium) Set(key string, value []byte) error {
	m.mu.Lock()
	m.lastKnown[key] = append([]byte(nil), value...)
	m.mu.Unlock()

	// Write-then-rename keeps sibling readers from seeing a partial file.
	tmp := m.path(key) + ".tmp"
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp, m.path(key)); err != nil {
		return fmt.Errorf("failed to commit %s: %w", key, err)
	}
	return nil
}

func (m *FileMedium) Remove(key string) error {
	m.mu.Lock()
	delete(m.lastKnown, key)
	m.mu.Unlock()

	if err := os.Remove(m.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

func (m *FileMedium) Watch(fn func(Event)) (cancel func(), err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watcher == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("failed to create fs watcher: %w", err)
		}
		if err := w.Add(m.dir); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", m.dir, err)
		}
		m.watcher = w
		m.done = make(chan struct{})
		go m.loop(w, m.done)
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

// Close stops the change watcher. The medium stays usable for Get/Set/Remove.
func (m *FileMedium) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher == nil {
		return nil
	}
	close(m.done)
	err := m.watcher.Close()
	m.watcher = nil
	return err
}

func (m *FileMedium) loop(w *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if strings.HasSuffix(ev.Name, ".tmp") {
				continue
			}
			key, ok := keyFromFile(ev.Name)
			if !ok {
				continue
			}
			m.handleChange(key)
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}

func (m *FileMedium) handleChange(key string) {
	newVal, err := os.ReadFile(m.path(key))
	if err != nil {
		newVal = nil
	}

	m.mu.Lock()
	old, hadOld := m.lastKnown[key]
	if string(newVal) == string(old) && (newVal != nil) == hadOld {
		// Our own write, or no effective change.
		m.mu.Unlock()
		return
	}
	if newVal == nil {
		delete(m.lastKnown, key)
	} else {
		m.lastKnown[key] = newVal
	}
	fns := make([]func(Event), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	ev := Event{Key: key, Old: old, New: newVal}
	for _, fn := range fns {
		fn(ev)
	}
}

package storage

import (
	"sync"

	"github.com/singlebase/singlebase-go/internal/common"
)

// MemoryHub is a shared in-process store. Each Medium attached to the hub
// behaves like one browser tab: it sees the same data, and its watchers fire
// only for writes made through *other* attachments.
type MemoryHub struct {
	mu    sync.Mutex
	data  map[string][]byte
	media []*MemoryMedium
}

// NewMemoryHub creates an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{data: make(map[string][]byte)}
}

// NewMedium attaches a new context to the hub.
func (h *MemoryHub) NewMedium() *MemoryMedium {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := &MemoryMedium{hub: h, watchers: make(map[int]func(Event))}
	h.media = append(h.media, m)
	return m
}

// NewMemoryMedium creates a standalone medium on a private hub. Its watchers
// never fire, since there are no sibling contexts to write.
func NewMemoryMedium() *MemoryMedium {
	return NewMemoryHub().NewMedium()
}

// MemoryMedium is one attachment to a MemoryHub.
type MemoryMedium struct {
	hub      *MemoryHub
	mu       sync.Mutex
	watchers map[int]func(Event)
	nextID   int
}

func (m *MemoryMedium) Get(key string) ([]byte, error) {
	m.hub.mu.Lock()
	defer m.hub.mu.Unlock()
	v, ok := m.hub.data[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryMedium) Set(key string, value []byte) error {
	m.hub.mu.Lock()
	old := m.hub.data[key]
	stored := make([]byte, len(value))
	copy(stored, value)
	m.hub.data[key] = stored
	siblings := m.siblingsLocked()
	m.hub.mu.Unlock()

	ev := Event{Key: key, Old: old, New: stored}
	for _, sib := range siblings {
		sib.deliver(ev)
	}
	return nil
}

func (m *MemoryMedium) Remove(key string) error {
	m.hub.mu.Lock()
	old, ok := m.hub.data[key]
	if !ok {
		m.hub.mu.Unlock()
		return nil
	}
	delete(m.hub.data, key)
	siblings := m.siblingsLocked()
	m.hub.mu.Unlock()

	ev := Event{Key: key, Old: old, New: nil}
	for _, sib := range siblings {
		sib.deliver(ev)
	}
	return nil
}

func (m *MemoryMedium) Watch(fn func(Event)) (cancel func(), err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watchers, id)
	}, nil
}

// siblingsLocked must be called with the hub lock held.
func (m *MemoryMedium) siblingsLocked() []*MemoryMedium {
	out := make([]*MemoryMedium, 0, len(m.hub.media))
	for _, med := range m.hub.media {
		if med != m {
			out = append(out, med)
		}
	}
	return out
}

func (m *MemoryMedium) deliver(ev Event) {
	m.mu.Lock()
	fns := make([]func(Event), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

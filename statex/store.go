// Package statex provides a small observable key/value container. Every
// committed write (single-field set, atomic multi-field patch, or delete)
// notifies all subscribers exactly once, in registration order, with a
// structural snapshot of the state taken before the change.
//
// Values should be value types or treated as immutable by callers; the
// snapshot deep-copies maps and slices but shares anything else.
package statex

import "sync"

// ChangeFunc receives the value that changed (the new field value for Set,
// the applied patch for Patch, the removed value for Delete), the state as it
// was before the write, and the state after it. Both maps are copies; mutating
// them has no effect on the store.
type ChangeFunc func(changed any, previous, current map[string]any)

type subscriber struct {
	id int
	fn ChangeFunc
}

// Store is an observable key/value state container. The zero value is not
// usable; create one with New.
type Store struct {
	mu     sync.Mutex
	state  map[string]any
	subs   []subscriber
	nextID int
}

// New creates an empty store.
func New() *Store {
	return &Store{state: make(map[string]any)}
}

// Get returns the current value for key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.state[key]
	return v, ok
}

// Snapshot returns a structural copy of the current state.
func (s *Store) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyState(s.state)
}

// Set writes a single field and notifies subscribers once.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	prev := copyState(s.state)
	s.state[key] = value
	cur := copyState(s.state)
	subs := s.subscriberList()
	s.mu.Unlock()

	notify(subs, value, prev, cur)
}

// Patch applies all fields atomically and notifies subscribers once,
// regardless of how many fields changed.
func (s *Store) Patch(fields map[string]any) {
	s.mu.Lock()
	prev := copyState(s.state)
	for k, v := range fields {
		s.state[k] = v
	}
	cur := copyState(s.state)
	subs := s.subscriberList()
	s.mu.Unlock()

	notify(subs, fields, prev, cur)
}

// Delete removes a field and notifies subscribers once, passing the removed
// value as the changed value. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	removed, ok := s.state[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	prev := copyState(s.state)
	delete(s.state, key)
	cur := copyState(s.state)
	subs := s.subscriberList()
	s.mu.Unlock()

	notify(subs, removed, prev, cur)
}

// Subscribe registers fn and returns a handle that removes it. Subscribers
// are invoked in registration order, outside the store's lock, so re-entrant
// writes from inside a callback are allowed; each produces its own
// notification round.
func (s *Store) Subscribe(fn ChangeFunc) (unsubscribe func()) {
	_, unsubscribe = s.SubscribeWithState(fn)
	return unsubscribe
}

// SubscribeWithState registers fn and returns a structural copy of the state
// taken under the same lock as the registration. No write can commit between
// the snapshot and the registration, so the snapshot plus the subsequent
// notifications form a gapless view of the state.
func (s *Store) SubscribeWithState(fn ChangeFunc) (state map[string]any, unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return copyState(s.state), func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) subscriberList() []subscriber {
	out := make([]subscriber, len(s.subs))
	copy(out, s.subs)
	return out
}

func notify(subs []subscriber, changed any, prev, cur map[string]any) {
	for _, sub := range subs {
		sub.fn(changed, prev, cur)
	}
}

func copyState(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyState(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

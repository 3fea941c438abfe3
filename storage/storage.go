// Package storage defines the durable key/value medium the SDK persists
// sessions into, together with its cross-context change notification. Three
// implementations are provided: an in-process hub (tests, multi-client
// simulation), a directory of files watched with fsnotify (the usual choice
// for CLIs and desktop apps, where sibling processes see each other's
// writes), and a sqlite table with a polling watcher.
package storage

// Event describes one committed change to a key, as observed by a context
// that did not make the write. Old or New is nil when the key was absent on
// that side of the change.
type Event struct {
	Key string
	Old []byte
	New []byte
}

// Medium is a synchronous, durable, per-install key/value store. Get returns
// common.ErrorNotFound for absent keys. Watch registers fn for changes made
// by other contexts sharing the same underlying store and returns a handle
// that unregisters it.
type Medium interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Remove(key string) error
	Watch(fn func(Event)) (cancel func(), err error)
}

// Package document holds the in-memory rich-text document of the active note
// and translates it to and from its serialized form.
package document

import (
	"io"
	"log/slog"
	"sync"
)

// Store is the in-memory document of the active note.
//
// Every change of the canonical encoding is reported to the registered
// listeners, in order, on the goroutine that made the change. Listeners must
// not modify the store from inside the callback.
type Store struct {
	mu         sync.RWMutex
	root       Node
	serialized string

	notifyMu  sync.Mutex
	listeners map[uint64]func(string)
	nextID    uint64
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report recovered parse failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a Store holding the empty document.
func NewStore(opts ...Option) *Store {
	s := &Store{
		root:       Empty(),
		serialized: emptyEncoding,
		listeners:  make(map[uint64]func(string)),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the document with serialized. Malformed input loads the empty
// document instead; Load never fails.
func (s *Store) Load(serialized string) {
	root, err := Parse(serialized)
	if err != nil {
		s.logger.Debug("malformed document, loading empty document", "error", err)
		root = Empty()
	}
	s.set(root)
}

// LoadAck loads serialized like Load and returns a channel that is closed once
// every change notification caused by the load has been delivered.
func (s *Store) LoadAck(serialized string) <-chan struct{} {
	s.Load(serialized)
	done := make(chan struct{})
	close(done)
	return done
}

// Replace is a user edit that swaps in a whole new document.
// Unlike Load it rejects malformed input and leaves the store unchanged.
func (s *Store) Replace(serialized string) error {
	root, err := Parse(serialized)
	if err != nil {
		return err
	}
	s.set(root)
	return nil
}

// Edit is a user edit applied in place to a copy of the current tree.
func (s *Store) Edit(fn func(root *Node)) {
	s.mu.RLock()
	root := s.root.Clone()
	s.mu.RUnlock()

	fn(&root)
	if root.Type == "" {
		root.Type = DocType
	}
	s.set(root)
}

// Serialize returns the canonical encoding of the current document.
func (s *Store) Serialize() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serialized
}

// Root returns a copy of the current tree.
func (s *Store) Root() Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root.Clone()
}

// Text returns the plain text of the current document.
func (s *Store) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root.PlainText()
}

// OnChange registers fn to receive the serialized document after every change.
func (s *Store) OnChange(fn func(serialized string)) (unsubscribe func()) {
	s.notifyMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.notifyMu.Lock()
			delete(s.listeners, id)
			s.notifyMu.Unlock()
		})
	}
}

func (s *Store) set(root Node) {
	encoded, err := Encode(root)
	if err != nil {
		s.logger.Debug("document encode failed, loading empty document", "error", err)
		root, encoded = Empty(), emptyEncoding
	}

	// notifyMu orders the swap and the notifications of concurrent changes.
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	changed := encoded != s.serialized
	s.root = root
	s.serialized = encoded
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range s.listeners {
		fn(encoded)
	}
}

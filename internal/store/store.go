package store

import (
	"log/slog"
	"sync"

	"github.com/chaostheorist/chaos/internal/infra/metrics"
)

// Listener receives the state produced by each applied transition.
type Listener func(State, Transition)

// Store holds the canonical State. It is safe for concurrent use; every
// Dispatch is applied against the state left by the previous one.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners map[int]Listener
	nextID    int
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for debug diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithState seeds the store with a state other than Initial.
func WithState(st State) Option {
	return func(s *Store) { s.state = st }
}

// New creates a store holding Initial().
func New(opts ...Option) *Store {
	s := &Store{
		state:     Initial(),
		listeners: make(map[int]Listener),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies t and notifies listeners in dispatch order. Listeners run
// while the store is locked and must not call Dispatch themselves.
func (s *Store) Dispatch(t Transition) {
	if t == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if reason := ignoredReason(s.state, t); reason != "" {
		metrics.TransitionsIgnored.WithLabelValues(t.Name()).Inc()
		s.logger.Debug("transition left state unchanged", "transition", t.Name(), "reason", reason)
		return
	}
	s.state = Apply(s.state, t)
	metrics.TransitionsApplied.WithLabelValues(t.Name()).Inc()

	for _, l := range s.listeners {
		l(s.state, t)
	}
}

// Subscribe registers a listener and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// ignoredReason explains why Apply would return st unchanged for t, or "".
func ignoredReason(st State, t Transition) string {
	switch t := t.(type) {
	case UpdateSystem:
		if indexOfSystem(st.Systems, t.System.ID) < 0 {
			return "no system with id " + t.System.ID
		}
	case SetLoading:
		if !t.Key.Valid() {
			return "unknown loading key " + string(t.Key)
		}
	case SetPreference:
		if _, ok := mergePreference(st.Preferences, t.Key, t.Value); !ok {
			return "invalid value for preference " + string(t.Key)
		}
	}
	return ""
}

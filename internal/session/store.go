package session

import (
	"sync"

	"datanomics/domain/core"
	"datanomics/domain/session"
	"datanomics/internal"
)

// Listener is notified after every successful mutation with the new session
// and whether the mutation was a wholesale replacement (upload or reset).
type Listener func(next session.AnalysisSession, wholesale bool)

// Ticket captures the store generation before an asynchronous backend call.
// Committing with an outdated ticket is refused.
type Ticket struct {
	generation uint64
}

type listenerEntry struct {
	id int
	fn Listener
}

// Store is the single source of truth for the AnalysisSession. It is
// constructed once per session and handed to every stage.
type Store struct {
	// writeMu serializes mutation+notification so listeners observe
	// mutations in the order they were applied.
	writeMu sync.Mutex

	mu         sync.RWMutex
	current    session.AnalysisSession
	generation uint64
	listeners  []listenerEntry
	nextID     int

	logger *internal.Logger
}

// NewStore creates a store holding the empty session
func NewStore(logger *internal.Logger) *Store {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Store{
		current: session.Empty(),
		logger:  logger.With("SessionStore"),
	}
}

// Get returns a copy of the current session; never nil-valued
func (s *Store) Get() session.AnalysisSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Generation returns the number of wholesale replacements so far
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Ticket snapshots the current generation
func (s *Store) Ticket() Ticket {
	return Ticket{generation: s.Generation()}
}

// Replace merges the patch into the current session and notifies every
// listener before returning. Unset patch fields are untouched.
func (s *Store) Replace(p session.Patch) session.AnalysisSession {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.current = p.Apply(s.current)
	next := s.current.Clone()
	s.mu.Unlock()

	s.logger.Trace("replace: filename=%q rows=%d", next.Filename, len(next.FullDataset))
	s.notify(next, false)
	return next
}

// Commit applies a patch computed from a backend response, provided no
// wholesale replacement happened since the ticket was taken.
func (s *Store) Commit(t Ticket, p session.Patch) (session.AnalysisSession, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if t.generation != s.generation {
		current := s.generation
		s.mu.Unlock()
		s.logger.Debug("discarding stale response (ticket generation %d, current %d)", t.generation, current)
		return session.AnalysisSession{}, core.ErrStaleResponse
	}
	s.current = p.Apply(s.current)
	next := s.current.Clone()
	s.mu.Unlock()

	s.notify(next, false)
	return next, nil
}

// Load replaces the whole session (fresh upload or rehydration) and starts a new generation
func (s *Store) Load(sess session.AnalysisSession) session.AnalysisSession {
	return s.swap(session.ReplaceAll(sess).Apply(session.Empty()))
}

// LoadIf replaces the whole session unless another wholesale replacement
// happened since the ticket was taken
func (s *Store) LoadIf(t Ticket, sess session.AnalysisSession) (session.AnalysisSession, error) {
	return s.swapIf(&t, session.ReplaceAll(sess).Apply(session.Empty()))
}

// Reset empties the session and starts a new generation
func (s *Store) Reset() {
	s.swap(session.Empty())
}

func (s *Store) swap(sess session.AnalysisSession) session.AnalysisSession {
	next, _ := s.swapIf(nil, sess)
	return next
}

func (s *Store) swapIf(t *Ticket, sess session.AnalysisSession) (session.AnalysisSession, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if t != nil && t.generation != s.generation {
		s.mu.Unlock()
		return session.AnalysisSession{}, core.ErrStaleResponse
	}
	s.current = sess
	s.generation++
	next := s.current.Clone()
	gen := s.generation
	s.mu.Unlock()

	s.logger.Debug("session replaced: filename=%q rows=%d generation=%d", next.Filename, len(next.FullDataset), gen)
	s.notify(next, true)
	return next, nil
}

// Subscribe registers a listener; the returned func unregisters it
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// notify runs listeners outside mu so they may call Get
func (s *Store) notify(next session.AnalysisSession, wholesale bool) {
	s.mu.RLock()
	listeners := append([]listenerEntry(nil), s.listeners...)
	s.mu.RUnlock()

	for _, l := range listeners {
		l.fn(next, wholesale)
	}
}

// Package flight enforces single-flight per logical action: while a backend
// call for an action is outstanding, a second trigger of the same action is
// refused instead of queued. Different actions never block each other.
package flight

import (
	"sync"

	"datanomics/domain/core"
	"datanomics/internal"

	"golang.org/x/sync/semaphore"
)

// Action names one user-triggerable operation, e.g. "run-model" or "clean:remove-missing"
type Action string

// Guard holds one weight-1 semaphore per action. Claims and releases are
// recorded under mu so Busy can answer without touching the semaphore.
type Guard struct {
	mu       sync.Mutex
	sems     map[Action]*semaphore.Weighted
	inFlight map[Action]bool
	logger   *internal.Logger
}

// NewGuard creates an empty guard
func NewGuard(logger *internal.Logger) *Guard {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Guard{
		sems:     make(map[Action]*semaphore.Weighted),
		inFlight: make(map[Action]bool),
		logger:   logger.With("Flight"),
	}
}

// sem must be called with mu held
func (g *Guard) sem(action Action) *semaphore.Weighted {
	s, ok := g.sems[action]
	if !ok {
		s = semaphore.NewWeighted(1)
		g.sems[action] = s
	}
	return s
}

// Begin claims the action. The returned release func must be called exactly
// once when the call completes; calling it again is a no-op.
func (g *Guard) Begin(action Action) (release func(), err error) {
	g.mu.Lock()
	s := g.sem(action)
	if !s.TryAcquire(1) {
		g.mu.Unlock()
		g.logger.Debug("refused %s: already in flight", action)
		return nil, core.NewInFlightError(string(action))
	}
	g.inFlight[action] = true
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, action)
			s.Release(1)
			g.mu.Unlock()
		})
	}, nil
}

// Busy reports whether the action is currently in flight, for disabling its
// trigger. It never claims the action, so it cannot make a concurrent Begin fail.
func (g *Guard) Busy(action Action) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight[action]
}

package stages

import (
	"context"
	"sync"

	"datanomics/domain/session"
	"datanomics/domain/stage"
	"datanomics/internal"
	"datanomics/internal/navigator"
)

// FallbackReportCount is shown when the backend cannot say how many reports it generated
const FallbackReportCount = 1000

// Support is the informational stage. Its only backend call is the report counter.
type Support struct {
	view
	logger  *internal.Logger
	count   int
	pending sync.WaitGroup
}

func NewSupport(deps Deps) *Support {
	return &Support{view: newView(stage.StageSupport, deps), logger: deps.logger("Support"), count: FallbackReportCount}
}

// Activate reads the counter in the background. A count that arrives after
// the user left is dropped.
func (s *Support) Activate(ctx context.Context, a navigator.Activation, _ session.AnalysisSession) {
	s.begin(a)
	ctx = context.WithoutCancel(ctx)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		n := s.fetch(ctx)
		if !s.live(a) {
			s.logger.Debug("dropped report count for inactive page")
			return
		}
		s.store(n)
	}()
}

// Wait blocks until a background counter read has finished
func (s *Support) Wait() {
	s.pending.Wait()
}

func (s *Support) Deactivate(navigator.Activation) {}

// Refresh re-reads the report counter. Failures keep the fallback value and
// are not shown to the user.
func (s *Support) Refresh(ctx context.Context) int {
	n := s.fetch(ctx)
	s.store(n)
	return n
}

func (s *Support) fetch(ctx context.Context) int {
	n, err := s.deps.Backend.ReportCount(ctx)
	if err != nil {
		s.logger.Debug("report count unavailable: %v", err)
		return FallbackReportCount
	}
	return n
}

func (s *Support) store(n int) {
	s.mu.Lock()
	s.count = n
	s.mu.Unlock()
}

// ReportCount returns the last known number of generated reports
func (s *Support) ReportCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

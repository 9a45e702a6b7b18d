package stages

import (
	"context"
	"sort"
	"sync"

	"datanomics/domain/analysis"
	"datanomics/domain/session"
	"datanomics/domain/stage"
	"datanomics/internal"
	"datanomics/internal/errors"
	"datanomics/internal/navigator"
	"datanomics/internal/viz"
	"datanomics/ports"
)

// Visualize is the dashboard: summary statistics plus the chart surfaces of
// the selected variable
type Visualize struct {
	view
	viz    *viz.Manager
	specs  []ports.SurfaceSpec
	logger *internal.Logger

	summary     map[string]analysis.ColumnStats
	variables   []string
	selected    string
	unsubscribe func()
	pending     sync.WaitGroup
	// loads counts summary requests; only the newest one may apply
	loads uint64
}

// NewVisualize creates the dashboard controller. A nil specs means viz.DefaultSpecs.
func NewVisualize(deps Deps, manager *viz.Manager, specs []ports.SurfaceSpec) *Visualize {
	if specs == nil {
		specs = viz.DefaultSpecs
	}
	return &Visualize{
		view:   newView(stage.StageVisualize, deps),
		viz:    manager,
		specs:  specs,
		logger: deps.logger("Visualize"),
	}
}

// Activate fetches the summary in the background and re-runs it whenever the
// session changes while the dashboard is showing
func (v *Visualize) Activate(ctx context.Context, a navigator.Activation, _ session.AnalysisSession) {
	v.begin(a)
	ctx = context.WithoutCancel(ctx)

	v.mu.Lock()
	v.summary = map[string]analysis.ColumnStats{}
	v.variables = nil
	v.selected = ""
	v.unsubscribe = v.deps.Store.Subscribe(func(session.AnalysisSession, bool) {
		v.refresh(ctx, a)
	})
	v.mu.Unlock()

	v.refresh(ctx, a)
}

// Deactivate destroys the surfaces even when nothing else is pending
func (v *Visualize) Deactivate(navigator.Activation) {
	v.mu.Lock()
	if v.unsubscribe != nil {
		v.unsubscribe()
		v.unsubscribe = nil
	}
	v.mu.Unlock()
	v.viz.Deactivate()
}

// Wait blocks until background summary loads have finished
func (v *Visualize) Wait() {
	v.pending.Wait()
}

func (v *Visualize) refresh(ctx context.Context, a navigator.Activation) {
	v.mu.Lock()
	v.loads++
	seq := v.loads
	v.mu.Unlock()

	v.pending.Add(1)
	go func() {
		defer v.pending.Done()
		v.load(ctx, a, seq)
	}()
}

// latest reports whether load seq of activation a is still the one to show
func (v *Visualize) latest(a navigator.Activation, seq uint64) bool {
	if !v.live(a) {
		return false
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.activation == a && v.loads == seq
}

func (v *Visualize) load(ctx context.Context, a navigator.Activation, seq uint64) {
	sess := v.deps.Store.Get()
	if !sess.HasDataset() {
		if v.apply(a, seq, map[string]analysis.ColumnStats{}, nil) {
			v.render(ctx, a)
		}
		return
	}

	stats, err := v.deps.Backend.Summary(ctx, sess.FullDataset)
	if !v.latest(a, seq) {
		v.logger.Debug("dropped superseded summary")
		return
	}
	if err != nil {
		v.logger.Warn("summary failed: %v", err)
		v.setErr(err)
		return
	}
	if v.apply(a, seq, stats, orderedVariables(sess.Columns, stats)) {
		v.render(ctx, a)
	}
}

func (v *Visualize) apply(a navigator.Activation, seq uint64, stats map[string]analysis.ColumnStats, variables []string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.activation != a || v.loads != seq {
		return false
	}
	v.err = nil
	v.summary = stats
	v.variables = variables
	if !contains(variables, v.selected) {
		v.selected = ""
		if len(variables) > 0 {
			v.selected = variables[0]
		}
	}
	return true
}

// orderedVariables returns the summary keys in session column order; keys
// the session does not list come last, sorted
func orderedVariables(columns []string, stats map[string]analysis.ColumnStats) []string {
	out := make([]string, 0, len(stats))
	seen := make(map[string]bool, len(stats))
	for _, col := range columns {
		if _, ok := stats[col]; ok && !seen[col] {
			out = append(out, col)
			seen[col] = true
		}
	}
	var rest []string
	for col := range stats {
		if !seen[col] {
			rest = append(rest, col)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func (v *Visualize) render(ctx context.Context, a navigator.Activation) {
	v.mu.RLock()
	variable := v.selected
	v.mu.RUnlock()

	_, err := v.viz.Render(ctx, variable, v.deps.Store.Get().FullDataset, v.specs)
	if !v.live(a) {
		v.viz.Deactivate()
		return
	}
	if err != nil {
		v.logger.Warn("render %s failed: %v", variable, err)
		v.setErr(err)
	}
}

// Select switches the charted variable and re-renders
func (v *Visualize) Select(ctx context.Context, variable string) error {
	v.mu.Lock()
	if !contains(v.variables, variable) {
		v.mu.Unlock()
		err := errors.ValidationError("Unknown variable: " + variable)
		v.setErr(err)
		return err
	}
	v.selected = variable
	a := v.activation
	v.mu.Unlock()

	v.setErr(nil)
	v.render(ctx, a)
	return v.Err()
}

// Variables returns the numeric columns available for charting
func (v *Visualize) Variables() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]string(nil), v.variables...)
}

// Selected returns the charted variable; empty in the blank state
func (v *Visualize) Selected() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.selected
}

// Stats returns the summary statistics of the selected variable
func (v *Visualize) Stats() analysis.ColumnStats {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.summary[v.selected]
}

// Summary returns every column's statistics
func (v *Visualize) Summary() map[string]analysis.ColumnStats {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]analysis.ColumnStats, len(v.summary))
	for k, s := range v.summary {
		out[k] = s
	}
	return out
}

// Surfaces returns the live chart surfaces
func (v *Visualize) Surfaces() []ports.Surface {
	return v.viz.Surfaces()
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

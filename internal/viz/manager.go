// Package viz owns the chart surfaces of the active stage. The external
// rendering engine is loaded at most once per session; every render tears
// down the previous surface set before building the next one.
package viz

import (
	"context"
	"fmt"
	"sync"

	"datanomics/domain/session"
	"datanomics/internal"
	"datanomics/ports"
)

// LoadState is the engine initialization state
type LoadState int

const (
	Unloaded LoadState = iota
	Loading
	Ready
)

func (s LoadState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "unloaded"
	}
}

// DefaultSpecs is the dashboard trio: trend line, distribution bar, index scatter
var DefaultSpecs = []ports.SurfaceSpec{
	{Kind: ports.SurfaceLine, Title: "Trend"},
	{Kind: ports.SurfaceBar, Title: "Distribution"},
	{Kind: ports.SurfaceScatter, Title: "Scatter"},
}

type loadAttempt struct {
	done chan struct{}
	err  error
}

// Manager is the visualization lifecycle manager of one session
type Manager struct {
	engine ports.RenderEngine
	logger *internal.Logger

	// renderMu serializes Render and Deactivate so two surface sets never coexist
	renderMu sync.Mutex
	surfaces []ports.Surface

	loadMu  sync.Mutex
	state   LoadState
	attempt *loadAttempt
}

// NewManager creates a manager over engine; nothing is loaded yet
func NewManager(engine ports.RenderEngine, logger *internal.Logger) *Manager {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Manager{engine: engine, logger: logger.With("Viz")}
}

// State returns the engine load state
func (m *Manager) State() LoadState {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	return m.state
}

// Preload starts loading the engine in the background, if not already started
func (m *Manager) Preload(ctx context.Context) {
	go func() {
		if err := m.ensureLoaded(ctx); err != nil {
			m.logger.Warn("engine preload failed: %v", err)
		}
	}()
}

// ensureLoaded loads the engine once. Concurrent callers wait for the
// in-progress attempt; a failed attempt returns to Unloaded so a later
// render can try again.
func (m *Manager) ensureLoaded(ctx context.Context) error {
	m.loadMu.Lock()
	switch m.state {
	case Ready:
		m.loadMu.Unlock()
		return nil
	case Loading:
		attempt := m.attempt
		m.loadMu.Unlock()
		select {
		case <-attempt.done:
			return attempt.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	attempt := &loadAttempt{done: make(chan struct{})}
	m.attempt = attempt
	m.state = Loading
	m.loadMu.Unlock()

	m.logger.Debug("loading rendering engine")
	err := m.engine.Load(ctx)

	m.loadMu.Lock()
	if err != nil {
		m.state = Unloaded
		attempt.err = fmt.Errorf("load rendering engine: %w", err)
	} else {
		m.state = Ready
	}
	m.loadMu.Unlock()
	close(attempt.done)
	return attempt.err
}

// Project pairs each row's 1-based index with the variable's numeric value.
// Rows where the value is missing or not numeric are skipped.
func Project(variable string, dataset []session.Record) ports.Series {
	series := ports.Series{Variable: variable, Points: make([]ports.Point, 0, len(dataset))}
	for i, row := range dataset {
		v, _ := row.Get(variable)
		if y, ok := session.Numeric(v); ok {
			series.Points = append(series.Points, ports.Point{X: float64(i + 1), Y: y})
		}
	}
	return series
}

// Render replaces the current surfaces with one surface per spec, all fed
// the same projection of dataset onto variable. A blank variable or an empty
// dataset leaves no surfaces.
func (m *Manager) Render(ctx context.Context, variable string, dataset []session.Record, specs []ports.SurfaceSpec) ([]ports.Surface, error) {
	m.renderMu.Lock()
	defer m.renderMu.Unlock()

	m.destroyAll()

	if variable == "" || len(dataset) == 0 || len(specs) == 0 {
		return nil, nil
	}
	if err := m.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	series := Project(variable, dataset)
	created := make([]ports.Surface, 0, len(specs))
	for _, spec := range specs {
		surface, err := m.engine.NewSurface(ctx, spec, series)
		if err != nil {
			for _, s := range created {
				m.destroy(s)
			}
			return nil, fmt.Errorf("create %s surface for %s: %w", spec.Kind, variable, err)
		}
		created = append(created, surface)
	}
	m.surfaces = created
	m.logger.Debug("rendered %d surfaces for %s (%d points)", len(created), variable, len(series.Points))
	return append([]ports.Surface(nil), created...), nil
}

// Deactivate destroys every surface; called when the owning stage deactivates
func (m *Manager) Deactivate() {
	m.renderMu.Lock()
	defer m.renderMu.Unlock()
	m.destroyAll()
}

// Surfaces returns the live surfaces
func (m *Manager) Surfaces() []ports.Surface {
	m.renderMu.Lock()
	defer m.renderMu.Unlock()
	return append([]ports.Surface(nil), m.surfaces...)
}

func (m *Manager) destroyAll() {
	for _, s := range m.surfaces {
		m.destroy(s)
	}
	m.surfaces = nil
}

func (m *Manager) destroy(s ports.Surface) {
	if err := s.Destroy(); err != nil {
		m.logger.Warn("destroy %s surface: %v", s.Spec().Kind, err)
	}
}

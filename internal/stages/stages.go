// Package stages holds one controller per workflow screen. Controllers read
// the session store, call the backend through the typed client and keep the
// view state of their screen: results, the last error, busy flags.
package stages

import (
	"context"
	"sync"

	"datanomics/domain/session"
	"datanomics/domain/stage"
	"datanomics/internal"
	"datanomics/internal/flight"
	"datanomics/internal/navigator"
	sessionstore "datanomics/internal/session"
	"datanomics/ports"
)

// ActivationSource tells whether an activation is still the live one
type ActivationSource interface {
	IsCurrent(a navigator.Activation) bool
}

// Deps are the collaborators shared by every stage controller
type Deps struct {
	Store   *sessionstore.Store
	Backend ports.AnalysisBackend
	Guard   *flight.Guard
	Nav     ActivationSource
	Logger  *internal.Logger
}

func (d Deps) logger(component string) *internal.Logger {
	if d.Logger == nil {
		return internal.DefaultLogger.With(component)
	}
	return d.Logger.With(component)
}

// ModelSlot carries the ModelResult from the Model stage to the Report stage.
// It lives only in memory.
type ModelSlot struct {
	mu      sync.RWMutex
	result  session.ModelResult
	version uint64
}

// Get returns the current result; empty when no model has been run
func (s *ModelSlot) Get() session.ModelResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Set replaces the result
func (s *ModelSlot) Set(r session.ModelResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = r
	s.version++
}

// Clear drops the result
func (s *ModelSlot) Clear() { s.Set("") }

// Reserve clears the slot and returns the version a later SetIf must match.
// Any Set or Clear in between invalidates the reservation.
func (s *ModelSlot) Reserve() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = ""
	s.version++
	return s.version
}

// SetIf stores r only while the reservation v is still current
func (s *ModelSlot) SetIf(v uint64, r session.ModelResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != v {
		return false
	}
	s.result = r
	s.version++
	return true
}

// view is the activation bookkeeping embedded in every controller
type view struct {
	name stage.StageName
	deps Deps

	mu         sync.RWMutex
	activation navigator.Activation
	err        error
}

func newView(name stage.StageName, deps Deps) view {
	return view{name: name, deps: deps}
}

// Name returns the stage this controller serves
func (v *view) Name() stage.StageName { return v.name }

// Err returns the error the screen is currently showing, if any
func (v *view) Err() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.err
}

func (v *view) setErr(err error) {
	v.mu.Lock()
	v.err = err
	v.mu.Unlock()
}

func (v *view) begin(a navigator.Activation) {
	v.mu.Lock()
	v.activation = a
	v.err = nil
	v.mu.Unlock()
}

func (v *view) current() navigator.Activation {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.activation
}

// live reports whether a result for activation a may still be shown
func (v *view) live(a navigator.Activation) bool {
	if v.deps.Nav == nil {
		return true
	}
	return v.deps.Nav.IsCurrent(a)
}

// run claims action, calls fn and records its error on the screen while the
// activation is still live
func (v *view) run(ctx context.Context, action flight.Action, fn func(ctx context.Context) error) error {
	a := v.current()
	release, err := v.deps.Guard.Begin(action)
	if err != nil {
		return err
	}
	defer release()

	v.setErr(nil)
	err = fn(ctx)
	if v.live(a) {
		v.setErr(err)
	}
	return err
}

// Busy reports whether action is in flight, i.e. its trigger is disabled
func (v *view) Busy(action flight.Action) bool {
	return v.deps.Guard.Busy(action)
}

// Package navigator sequences the workflow stages. Any stage can be requested
// directly, but activation is gated by the declarative prerequisite table in
// domain/stage: a stage whose prerequisite is unmet redirects to Upload.
package navigator

import (
	"context"
	"fmt"
	"sync"

	"datanomics/domain/core"
	"datanomics/domain/session"
	"datanomics/domain/stage"
	"datanomics/internal"
)

// SessionSource is the read side of the session store
type SessionSource interface {
	Get() session.AnalysisSession
}

// Activation identifies one activation of a stage. Results that arrive for an
// activation that is no longer current are dropped by the stage.
type Activation struct {
	Stage stage.StageName
	Epoch uint64
}

// Hooks is implemented by stage controllers. Hooks run while the transition
// is in progress and must not navigate themselves.
type Hooks interface {
	Activate(ctx context.Context, a Activation, sess session.AnalysisSession)
	Deactivate(a Activation)
}

// Transition describes the outcome of a navigation request
type Transition struct {
	Requested  stage.StageName
	From       stage.StageName
	To         stage.StageName
	Redirected bool
	Reason     string
}

func (t Transition) String() string {
	if t.Redirected {
		return fmt.Sprintf("%s -> %s (redirected from %s: %s)", t.From, t.To, t.Requested, t.Reason)
	}
	return fmt.Sprintf("%s -> %s", t.From, t.To)
}

// Err is the prerequisite error behind a redirect, or nil
func (t Transition) Err() error {
	if !t.Redirected {
		return nil
	}
	return core.NewPrerequisiteError(string(t.Requested), t.Reason)
}

// Navigator holds the current stage
type Navigator struct {
	// transMu serializes whole transitions including hooks
	transMu sync.Mutex

	mu      sync.RWMutex
	current Activation
	started bool

	source SessionSource
	hooks  map[stage.StageName]Hooks
	logger *internal.Logger
}

// New creates a navigator positioned on Upload. Call Start to run its
// activation hook.
func New(source SessionSource, logger *internal.Logger) *Navigator {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Navigator{
		current: Activation{Stage: stage.StageUpload},
		source:  source,
		hooks:   make(map[stage.StageName]Hooks),
		logger:  logger.With("Navigator"),
	}
}

// Register attaches the hooks of a stage. Registering twice replaces.
func (n *Navigator) Register(name stage.StageName, h Hooks) {
	n.transMu.Lock()
	defer n.transMu.Unlock()
	n.hooks[name] = h
}

// Start activates the initial stage
func (n *Navigator) Start(ctx context.Context) Transition {
	return n.Go(ctx, stage.StageUpload)
}

// Current returns the active stage
func (n *Navigator) Current() stage.StageName {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.current.Stage
}

// Activation returns the current activation
func (n *Navigator) Activation() Activation {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.current
}

// IsCurrent reports whether a is still the live activation
func (n *Navigator) IsCurrent(a Activation) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.started && n.current == a
}

// Go requests a stage. Unknown stages land on NotFound; stages with an unmet
// prerequisite land on Upload.
func (n *Navigator) Go(ctx context.Context, requested stage.StageName) Transition {
	n.transMu.Lock()
	defer n.transMu.Unlock()

	if requested.Index() < 0 {
		requested = stage.StageNotFound
	}

	sess := n.source.Get()
	target := requested
	t := Transition{Requested: requested, From: n.Current()}
	if ok, reason := requested.Satisfied(sess); !ok {
		target = stage.StageUpload
		t.Redirected = true
		t.Reason = reason
	}
	if ok, reason := target.Satisfied(sess); !ok {
		panic(fmt.Sprintf("navigator: activating %s with unmet prerequisite: %s", target, reason))
	}
	t.To = target

	n.mu.Lock()
	prev := n.current
	wasStarted := n.started
	next := Activation{Stage: target, Epoch: prev.Epoch + 1}
	n.current = next
	n.started = true
	n.mu.Unlock()

	if wasStarted {
		if h, ok := n.hooks[prev.Stage]; ok {
			h.Deactivate(prev)
		}
	}
	if t.Redirected {
		n.logger.Info("%s", t)
	} else {
		n.logger.Debug("%s", t)
	}
	if h, ok := n.hooks[target]; ok {
		h.Activate(ctx, next, sess)
	}
	return t
}

// GoPath resolves a deep-link path and navigates to it
func (n *Navigator) GoPath(ctx context.Context, path string) Transition {
	return n.Go(ctx, stage.FromPath(path))
}

// Next moves one stage forward; at the last stage it stays put
func (n *Navigator) Next(ctx context.Context) Transition {
	next, ok := n.Current().Next()
	if !ok {
		cur := n.Current()
		return Transition{Requested: cur, From: cur, To: cur}
	}
	return n.Go(ctx, next)
}

// Back moves one stage backward; at Upload it stays put
func (n *Navigator) Back(ctx context.Context) Transition {
	prev, ok := n.Current().Prev()
	if !ok {
		cur := n.Current()
		return Transition{Requested: cur, From: cur, To: cur}
	}
	return n.Go(ctx, prev)
}

// Close deactivates the current stage, e.g. on session end
func (n *Navigator) Close() {
	n.transMu.Lock()
	defer n.transMu.Unlock()

	n.mu.Lock()
	cur := n.current
	wasStarted := n.started
	n.started = false
	n.mu.Unlock()

	if !wasStarted {
		return
	}
	if h, ok := n.hooks[cur.Stage]; ok {
		h.Deactivate(cur)
	}
}

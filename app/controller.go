// Package app composes one analysis session: the store and its durable
// cache, the navigator, the chart manager and the stage controllers.
package app

import (
	"context"
	"io"

	"datanomics/domain/core"
	"datanomics/domain/session"
	"datanomics/domain/stage"
	"datanomics/internal"
	"datanomics/internal/flight"
	"datanomics/internal/navigator"
	sessionstore "datanomics/internal/session"
	"datanomics/internal/stages"
	"datanomics/internal/viz"
	"datanomics/ports"
)

// Options configures a Controller
type Options struct {
	SessionID core.SessionID
	// CacheStore backs the durable session cache; nil disables it
	CacheStore ports.SessionCacheStore
	Engine     ports.RenderEngine
	Specs      []ports.SurfaceSpec
	Prepare    stages.PrepareOptions
	Logger     *internal.Logger
}

// Controller is the analysis session controller
type Controller struct {
	ID     core.SessionID
	Store  *sessionstore.Store
	Cache  *sessionstore.Cache
	Nav    *navigator.Navigator
	Guard  *flight.Guard
	Slot   *stages.ModelSlot
	Charts *viz.Manager

	Upload    *stages.Upload
	Prepare   *stages.Prepare
	Visualize *stages.Visualize
	Diagnose  *stages.Diagnose
	Model     *stages.Model
	Report    *stages.Report
	Contact   *stages.Contact
	Support   *stages.Support

	logger *internal.Logger
	detach func()
}

// NewController wires a session against backend. Nothing runs until Start.
func NewController(backend ports.AnalysisBackend, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if opts.SessionID == "" {
		opts.SessionID = core.NewSessionID()
	}

	store := sessionstore.NewStore(logger)
	nav := navigator.New(store, logger)
	c := &Controller{
		ID:     opts.SessionID,
		Store:  store,
		Nav:    nav,
		Guard:  flight.NewGuard(logger),
		Slot:   &stages.ModelSlot{},
		Charts: viz.NewManager(opts.Engine, logger),
		logger: logger.With("Session"),
	}
	if opts.CacheStore != nil {
		c.Cache = sessionstore.NewCache(opts.CacheStore, opts.SessionID, logger)
	}

	deps := stages.Deps{Store: store, Backend: backend, Guard: c.Guard, Nav: nav, Logger: logger}
	c.Upload = stages.NewUpload(deps, c.Slot.Clear)
	c.Prepare = stages.NewPrepare(deps, opts.Prepare)
	c.Visualize = stages.NewVisualize(deps, c.Charts, opts.Specs)
	c.Diagnose = stages.NewDiagnose(deps)
	c.Model = stages.NewModel(deps, c.Slot)
	c.Report = stages.NewReport(deps, c.Slot)
	c.Contact = stages.NewContact(deps)
	c.Support = stages.NewSupport(deps)

	for _, h := range []interface {
		navigator.Hooks
		Name() stage.StageName
	}{c.Upload, c.Prepare, c.Visualize, c.Diagnose, c.Model, c.Report, c.Contact, c.Support} {
		nav.Register(h.Name(), h)
	}
	return c
}

// Start rehydrates the cached session, begins mirroring changes into the
// cache and activates the initial stage. A cache that cannot be read is
// logged and ignored.
func (c *Controller) Start(ctx context.Context) navigator.Transition {
	if c.Cache != nil {
		if _, err := c.Cache.Rehydrate(ctx, c.Store); err != nil {
			c.logger.Warn("starting with an empty session: %v", err)
		}
		c.detach = c.Cache.Attach(c.Store)
	}
	c.Charts.Preload(ctx)
	return c.Nav.Start(ctx)
}

// Session returns a copy of the current session
func (c *Controller) Session() session.AnalysisSession {
	return c.Store.Get()
}

// Current returns the active stage
func (c *Controller) Current() stage.StageName {
	return c.Nav.Current()
}

// Go navigates to a stage, honoring prerequisites
func (c *Controller) Go(ctx context.Context, name stage.StageName) navigator.Transition {
	return c.Nav.Go(ctx, name)
}

// GoPath navigates to a deep-link path
func (c *Controller) GoPath(ctx context.Context, path string) navigator.Transition {
	return c.Nav.GoPath(ctx, path)
}

func (c *Controller) Next(ctx context.Context) navigator.Transition { return c.Nav.Next(ctx) }

func (c *Controller) Back(ctx context.Context) navigator.Transition { return c.Nav.Back(ctx) }

// UploadFile uploads a dataset and, on success, moves on to Prepare
func (c *Controller) UploadFile(ctx context.Context, filename string, content io.Reader) (*stages.UploadOutcome, error) {
	out, err := c.Upload.Upload(ctx, filename, content)
	if err != nil {
		return nil, err
	}
	c.Nav.Go(ctx, stage.StagePrepare)
	return out, nil
}

// Reset discards the session: the store, the cached copy and the model
// result. The navigator returns to Upload.
func (c *Controller) Reset(ctx context.Context) error {
	c.Store.Reset()
	c.Slot.Clear()
	var err error
	if c.Cache != nil {
		err = c.Cache.Clear(ctx)
	}
	c.Nav.Go(ctx, stage.StageUpload)
	c.logger.Info("session %s reset", c.ID)
	return err
}

// Close deactivates the current stage, releasing chart surfaces, and stops
// mirroring into the cache
func (c *Controller) Close() {
	c.Nav.Close()
	c.Charts.Deactivate()
	if c.detach != nil {
		c.detach()
		c.detach = nil
	}
}

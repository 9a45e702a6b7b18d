package container

import (
	"context"
	"fmt"

	"datanomics/adapters/backend"
	"datanomics/adapters/chart"
	"datanomics/adapters/postgres"
	"datanomics/app"
	"datanomics/domain/core"
	"datanomics/internal"
	"datanomics/internal/config"
	"datanomics/internal/session"
	"datanomics/internal/stages"
	"datanomics/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	Gateway    *backend.Gateway
	Backend    *backend.Client
	CacheStore ports.SessionCacheStore
	Engine     *chart.Engine
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	c := &Container{
		Config: cfg,
		Logger: internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel)),
	}
	if err := c.initBackend(); err != nil {
		return nil, fmt.Errorf("failed to initialize backend gateway: %w", err)
	}
	c.Engine = chart.NewEngine(chart.Config{
		Dir:    cfg.Charts.Dir,
		Width:  cfg.Charts.Width,
		Height: cfg.Charts.Height,
	}, c.Logger)
	return c, nil
}

func (c *Container) initBackend() error {
	gw, err := backend.NewGateway(backend.Config{
		BaseURL: c.Config.Backend.URL,
		Timeout: c.Config.Backend.Timeout,
	}, c.Logger)
	if err != nil {
		return err
	}
	c.Gateway = gw
	c.Backend = backend.NewClient(gw)
	return nil
}

// InitCache opens the configured durable cache backend
func (c *Container) InitCache(ctx context.Context) error {
	switch c.Config.Cache.Backend {
	case config.CachePostgres:
		db, err := postgres.Connect(ctx, c.Config.Cache.DatabaseURL, c.Config.Cache.Migrate)
		if err != nil {
			return err
		}
		c.DB = db
		c.CacheStore = postgres.NewSessionCacheRepository(db, c.Config.Cache.Namespace)
	default:
		store, err := session.NewLocalBlobStore(c.Config.Cache.Dir)
		if err != nil {
			return err
		}
		c.CacheStore = store
	}
	c.Logger.With("Container").Info("session cache: %s", c.Config.Cache.Backend)
	return nil
}

// NewSession builds an analysis session controller over the shared infrastructure
func (c *Container) NewSession() *app.Controller {
	return app.NewController(c.Backend, app.Options{
		SessionID:  core.NewSessionID(),
		CacheStore: c.CacheStore,
		Engine:     c.Engine,
		Prepare: stages.PrepareOptions{
			PreviewRows: c.Config.Data.PreviewRows,
			Offline:     c.Config.Data.OfflineTransforms,
		},
		Logger: c.Logger,
	})
}

// Shutdown releases the database connection, if any
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

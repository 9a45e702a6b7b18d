// Package ui serves a read-only HTML and JSON preview of a live analysis
// session: the dataset, the dashboard charts, exports and the report.
package ui

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"datanomics/app"
	"datanomics/internal"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed templates/*.html
var embeddedFiles embed.FS

// Config holds UI application configuration
type Config struct {
	Addr string
}

// App is the preview server of one session
type App struct {
	router    *chi.Mux
	session   *app.Controller
	templates *template.Template
	config    Config
	logger    *internal.Logger
}

// NewApp creates the preview server for session
func NewApp(config Config, session *app.Controller, logger *internal.Logger) (*App, error) {
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	templates, err := template.ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	a := &App{
		router:    chi.NewRouter(),
		session:   session,
		templates: templates,
		config:    config,
		logger:    logger.With("UI"),
	}
	a.setupMiddleware()
	a.setupRoutes()
	return a, nil
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
	a.router.Use(a.requestLogger)
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/", a.handleIndex)

	a.router.Route("/api", func(r chi.Router) {
		r.Get("/session", a.handleSession)
		r.Get("/dashboard", a.handleDashboard)
		r.Get("/support", a.handleSupport)
	})

	a.router.Get("/charts/{index}.png", a.handleChart)
	a.router.Get("/export/{filename}", a.handleExport)
	a.router.Get("/report/{lang}", a.handleReport)
	a.router.Get("/report/{lang}/download", a.handleReportDownload)
}

// Handler exposes the router
func (a *App) Handler() http.Handler {
	return a.router
}

// Serve listens on the configured address until ctx is done
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.config.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("preview on http://%s", a.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (a *App) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Debug("%s %s -> %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
	})
}

func (a *App) renderTemplate(w http.ResponseWriter, templateName string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.templates.ExecuteTemplate(w, templateName, data); err != nil {
		a.logger.Error("template %s: %v", templateName, err)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

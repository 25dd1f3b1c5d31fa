package ui

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"bracketlab/domain/core"
	"bracketlab/domain/run"
	"bracketlab/internal"
	"bracketlab/internal/api"
	"bracketlab/internal/errors"
	"bracketlab/internal/report"
	"bracketlab/ports"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed templates/*.html
var embeddedFiles embed.FS

const listLimit = 200

// Pinger is implemented by stores that can report their health
type Pinger interface {
	Ping(ctx context.Context) error
}

// App serves the run browser and mounts the JSON API
type App struct {
	router    *chi.Mux
	runs      ports.RunRepository
	templates *template.Template
	logger    *internal.Logger
}

// Config holds UI application dependencies
type Config struct {
	Runs    ports.RunRepository
	Metrics ports.MetricHistoryReader
	Logger  *internal.Logger
}

// NewApp creates the UI application
func NewApp(config Config) (*App, error) {
	if config.Runs == nil {
		return nil, errors.ConfigInvalid("run browser needs a run store")
	}
	logger := config.Logger
	if logger == nil {
		logger = internal.DefaultLogger
	}

	funcMap := template.FuncMap{
		"ago":   func(t time.Time) string { return humanize.Time(t) },
		"comma": func(n int) string { return humanize.Comma(int64(n)) },
		"upper": strings.ToUpper,
		"short": func(s string) string {
			if len(s) > 8 {
				return s[:8]
			}
			return s
		},
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	app := &App{
		router:    chi.NewRouter(),
		runs:      config.Runs,
		templates: templates,
		logger:    logger,
	}

	app.setupMiddleware()
	app.setupRoutes(api.NewRouter(api.NewRunsHandler(config.Runs, config.Metrics, logger)))

	return app, nil
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
	a.router.Use(a.requestLogger)
}

// setupRoutes configures the application routes
func (a *App) setupRoutes(apiRouter http.Handler) {
	a.router.Get("/", a.handleIndex)
	a.router.Get("/runs/{id}", a.handleRun)
	a.router.Get("/runs/{id}/workbook", a.handleWorkbook)
	a.router.Get("/healthz", a.handleHealth)

	// gin sees the full path, so its routes keep the /api prefix
	a.router.Mount("/api", apiRouter)
}

// Handler exposes the router
func (a *App) Handler() http.Handler {
	return a.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (a *App) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.logger.Info("Serving run browser on %s", addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.Info("Shutting down run browser")
		return server.Shutdown(shutdownCtx)
	}
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	runs, err := a.runs.List(r.Context(), listLimit)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.render(w, "runs.html", map[string]interface{}{
		"Title": "Runs",
		"Runs":  runs,
	})
}

func (a *App) handleRun(w http.ResponseWriter, r *http.Request) {
	rep, ok := a.loadRun(w, r)
	if !ok {
		return
	}
	a.render(w, "run.html", map[string]interface{}{
		"Title":  "Run " + rep.ID.String(),
		"Report": rep,
		"Body":   template.HTML(report.HTMLFragment(rep)),
	})
}

func (a *App) handleWorkbook(w http.ResponseWriter, r *http.Request) {
	rep, ok := a.loadRun(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteWorkbook(&buf, rep); err != nil {
		a.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "run-"+rep.ID.String()+".xlsx"))
	w.Write(buf.Bytes())
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := a.runs.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			a.logger.Warn("Health check failed: %v", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (a *App) loadRun(w http.ResponseWriter, r *http.Request) (*run.Report, bool) {
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, errors.WithCode(errors.CodeInvalidInput, err))
		return nil, false
	}
	rep, err := a.runs.Get(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return nil, false
	}
	return rep, true
}

func (a *App) render(w http.ResponseWriter, name string, data interface{}) {
	var buf bytes.Buffer
	if err := a.templates.ExecuteTemplate(&buf, name, data); err != nil {
		a.fail(w, errors.Wrapf(err, "failed to render %s", name))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (a *App) fail(w http.ResponseWriter, err error) {
	status := api.StatusFor(err)
	if status == http.StatusInternalServerError {
		a.logger.Error("Request failed: %v", err)
		http.Error(w, "internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func (a *App) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.Debug("%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hpungsan/ocrdesk/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewHandlers wires the route handlers around deps.
func NewHandlers(deps *ops.Deps, version string) (*Handlers, error) {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		deps:     deps,
		renderer: NewRenderer(templateSub, version, logger),
		sessions: NewSessionStore(maxSessions, sessionTTL),
		logger:   logger,
		version:  version,
	}, nil
}

// NewRouter builds the chi router: the JSON API at the root, the HTML UI
// under /ui, static assets and /metrics.
func NewRouter(h *Handlers) (http.Handler, error) {
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static sub-FS: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(securityHeaders)

	// JSON API
	r.Group(func(api chi.Router) {
		api.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.deps.Config.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))

		api.Get("/", h.HandleRoot)
		api.Get("/health", h.HandleHealth)
		api.Post("/process-pdf", h.HandleProcessPDF)
		api.Get("/check-duplicate/{hash}", h.HandleCheckDuplicate)
		api.Get("/stats", h.HandleStats)
		api.Get("/search", h.HandleSearch)

		api.Route("/records", func(rr chi.Router) {
			rr.Get("/", h.HandleRecent)
			rr.Get("/no-summary", h.HandleNoSummary)
			rr.Get("/search", h.HandleListRecords)
			rr.Get("/{id}", h.HandleGetRecord)
			rr.Put("/{id}/summary", h.HandleUpdateSummary)
			rr.Delete("/{id}", h.HandleDeleteRecord)
		})
	})

	// HTML UI
	r.Route("/ui", func(ui chi.Router) {
		ui.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/ui/records", http.StatusFound)
		})
		ui.Get("/ingest", h.HandleIngestPage)
		ui.Post("/ingest", h.HandleIngestRun)
		ui.Get("/records", h.HandleRecordsPage)
		ui.Post("/records/{id}/summary", h.HandleUISummary)
		ui.Post("/records/{id}/delete", h.HandleUIDelete)
		ui.Post("/records/{id}/delete/cancel", h.HandleUIDeleteCancel)
		ui.Get("/settings", h.HandleSettingsPage)
		ui.Post("/settings", h.HandleSettingsSave)
	})

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(staticSub)))
	r.Handle("/metrics", promhttp.Handler())

	return r, nil
}

// NewServer creates and configures the HTTP server for the API and web UI.
func NewServer(deps *ops.Deps, version string) (*http.Server, error) {
	h, err := NewHandlers(deps, version)
	if err != nil {
		return nil, err
	}
	router, err := NewRouter(h)
	if err != nil {
		return nil, err
	}

	return &http.Server{
		Addr:              deps.Config.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(h.logger.Handler(), slog.LevelError),
	}, nil
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, logger *slog.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("ocrdesk running", "url", "http://"+srv.Addr+"/ui")

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.HasPrefix(srv.Addr, "[::]") || strings.HasPrefix(srv.Addr, ":") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

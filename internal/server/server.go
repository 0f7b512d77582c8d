// Package server exposes files, charts and insights over a JSON REST API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/KaramelBytes/excelytics/internal/insights"
	"github.com/KaramelBytes/excelytics/internal/store"
	"github.com/KaramelBytes/excelytics/internal/upload"
	"github.com/KaramelBytes/excelytics/internal/utils"
	"github.com/gorilla/mux"
)

// Config holds the file system locations and limits used by the handlers.
type Config struct {
	// SpoolDir receives uploads until they are confirmed.
	SpoolDir string
	// FilesDir holds confirmed spreadsheets.
	FilesDir       string
	MaxUploadBytes int64
}

// Server wires the store, the pending upload registry and the insights
// service to HTTP routes. Insights may be nil, in which case the insights
// route answers 503.
type Server struct {
	store    store.Store
	uploads  *upload.Registry
	insights *insights.Service
	cfg      Config
	router   *mux.Router
}

// New creates the spool and files directories and registers the routes.
func New(st store.Store, reg *upload.Registry, svc *insights.Service, cfg Config) (*Server, error) {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	for _, dir := range []string{cfg.SpoolDir, cfg.FilesDir} {
		if dir == "" {
			return nil, errors.New("server: spool and files directories are required")
		}
		if err := utils.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
	}
	s := &Server{store: st, uploads: reg, insights: svc, cfg: cfg}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/files/upload", s.handleUpload).Methods(http.MethodPost)
	api.HandleFunc("/files/confirm/{tempId}", s.handleConfirm).Methods(http.MethodPost)
	api.HandleFunc("/files", s.handleListFiles).Methods(http.MethodGet)
	api.HandleFunc("/files/{id}", s.handleGetFile).Methods(http.MethodGet)
	api.HandleFunc("/files/{id}", s.handleDeleteFile).Methods(http.MethodDelete)
	api.HandleFunc("/files/{id}/charts", s.handleCreateChart).Methods(http.MethodPost)
	api.HandleFunc("/files/{id}/charts/{chartId}", s.handleDeleteChart).Methods(http.MethodDelete)
	api.HandleFunc("/insights", s.handleInsights).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errRoute)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errMethod)
	})
	s.router = r
}

// Handler returns the router wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	return chain(requestLogger, owner)(s.router)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	slog.Info("server listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"pending": s.uploads.Len(),
	})
}

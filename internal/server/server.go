// Package server provides the HTTP REST API for the transcription pipeline.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/audioscribe/internal/checkpoint"
	"github.com/jonathan/audioscribe/internal/pipeline"
	"github.com/jonathan/audioscribe/internal/types"
)

// ProjectStore is the persistence surface the handlers need. *db.DB
// implements it; tests use a fake.
type ProjectStore interface {
	CreateProject(ctx context.Context, filename string, mode types.ProcessingMode, styleConfig []byte) (*types.Project, error)
	GetProject(ctx context.Context, projectID uuid.UUID) (*types.Project, error)
	ListProjects(ctx context.Context, limit int) ([]types.Project, error)
	DeleteProject(ctx context.Context, projectID uuid.UUID) error
	CreateChunks(ctx context.Context, projectID uuid.UUID, inputs []types.ChunkInput) error
	SetCheckpoint(ctx context.Context, projectID uuid.UUID, cp checkpoint.Checkpoint) error
	GetFinalDocument(ctx context.Context, projectID uuid.UUID) (*types.FinalDocument, error)
}

// Controller is the run-control surface the handlers drive. *pipeline.Manager
// implements it.
type Controller interface {
	Start(ctx context.Context, projectID uuid.UUID) error
	Pause(projectID uuid.UUID) error
	Resume(ctx context.Context, projectID uuid.UUID) error
	Abort(ctx context.Context, projectID uuid.UUID) error
	Status(ctx context.Context, projectID uuid.UUID) (*pipeline.Status, error)
	RetryChunk(ctx context.Context, projectID, chunkID uuid.UUID) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	store      ProjectStore
	controller Controller
	broker     *EventBroker
	log        *logrus.Entry
}

// Config holds server configuration
type Config struct {
	Addr string
}

// New creates a new server instance
func New(cfg Config, store ProjectStore, controller Controller, broker *EventBroker, log *logrus.Entry) *Server {
	s := &Server{
		store:      store,
		controller: controller,
		broker:     broker,
		log:        log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /projects", s.handleCreateProject)
	mux.HandleFunc("GET /projects", s.handleListProjects)
	mux.HandleFunc("GET /projects/{id}", s.handleGetProject)
	mux.HandleFunc("DELETE /projects/{id}", s.handleDeleteProject)

	mux.HandleFunc("POST /projects/{id}/start", s.handleStart)
	mux.HandleFunc("POST /projects/{id}/pause", s.handlePause)
	mux.HandleFunc("POST /projects/{id}/resume", s.handleResume)
	mux.HandleFunc("POST /projects/{id}/abort", s.handleAbort)
	mux.HandleFunc("GET /projects/{id}/status", s.handleStatus)
	mux.HandleFunc("GET /projects/{id}/merged", s.handleMerged)
	mux.HandleFunc("GET /projects/{id}/events", s.handleEvents)
	mux.HandleFunc("POST /projects/{id}/chunks/{chunk_id}/retry", s.handleRetryChunk)

	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.withLogging(s.withCORS(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // long timeout for SSE streams
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		s.log.WithField("addr", s.httpServer.Addr).Info("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Fatal("server error")
		}
	}()

	<-stop
	s.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.WithError(err).Error("failed to encode JSON response")
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

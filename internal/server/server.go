package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/neonvoidvibes/align/internal/engine"
	"github.com/neonvoidvibes/align/internal/scoring"
	"github.com/neonvoidvibes/align/internal/store"
)

// Enqueuer accepts messages for analysis. *engine.Queue implements it.
type Enqueuer interface {
	Enqueue(messageID string, at time.Time) error
	Len() int
}

// MetricsReader reports engine counters. *engine.Metrics implements it.
type MetricsReader interface {
	Counts(ctx context.Context) (engine.Counts, error)
}

// Server is the align HTTP API server.
type Server struct {
	db       *store.DB
	registry *scoring.Registry
	queue    Enqueuer
	metrics  MetricsReader
	router   chi.Router
	version  string
	started  time.Time
}

// New creates a Server. queue may be nil, in which case messages are stored
// but never analyzed by this process.
func New(db *store.DB, reg *scoring.Registry, queue Enqueuer, version string) *Server {
	s := &Server{
		db:       db,
		registry: reg,
		queue:    queue,
		version:  version,
		started:  time.Now(),
	}
	s.routes()
	return s
}

// SetMetrics makes /api/health report engine counters from m.
func (s *Server) SetMetrics(m MetricsReader) {
	s.metrics = m
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/categories", s.handleCategories)

		r.Post("/messages", s.handleAddMessage)
		r.Get("/messages/pending", s.handlePendingMessages)
		r.Post("/messages/{messageID}/analyze", s.handleAnalyze)

		r.Get("/score", s.handleLatestScore)
		r.Get("/scores", s.handleRecentScores)
		r.Get("/scores/{day}", s.handleDayScore)
		r.Get("/raw/{day}", s.handleRawValues)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	queued := 0
	if s.queue != nil {
		queued = s.queue.Len()
	}

	body := map[string]any{
		"status":   "ok",
		"version":  s.version,
		"uptime":   time.Since(s.started).Seconds(),
		"db":       dbOK,
		"db_path":  s.db.Path,
		"analysis": s.queue != nil,
		"queued":   queued,
	}
	if s.metrics != nil {
		counts, err := s.metrics.Counts(r.Context())
		if err != nil {
			log.Printf("server: read metrics: %v", err)
		} else {
			body["metrics"] = counts
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/sessionstore/internal/logging"
	"github.com/aretw0/sessionstore/pkg/domain"
	"github.com/aretw0/sessionstore/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes bounds request bodies; sessions carry whole source files.
const maxBodyBytes = 8 << 20

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CreateRequest is the body of POST /sessions/{id}.
type CreateRequest struct {
	Language string            `json:"language"`
	TTL      *int64            `json:"ttl,omitempty"` // seconds
	Files    map[string]string `json:"files"`
}

// Server exposes a session Manager over HTTP.
type Server struct {
	Manager    *session.Manager
	DefaultTTL time.Duration
	Health     Pinger
	Gatherer   prometheus.Gatherer
	Logger     *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithDefaultTTL sets the TTL used when a create request omits it.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.DefaultTTL = ttl
	}
}

// WithHealth sets the backend checked by /healthz.
func WithHealth(p Pinger) Option {
	return func(s *Server) {
		s.Health = p
	}
}

// WithGatherer exposes the given registry on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.Gatherer = g
	}
}

// WithLogger sets the request error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// NewHandler creates a new HTTP handler for the session manager.
func NewHandler(manager *session.Manager, opts ...Option) http.Handler {
	server := &Server{
		Manager:    manager,
		DefaultTTL: time.Hour,
		Logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()

	r.Get("/healthz", server.Healthz)
	if server.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(server.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Post("/", server.CreateSession)
		r.Get("/", server.GetSession)
		r.Delete("/", server.DeleteSession)
		r.Put("/files", server.ReplaceFiles)
		r.Post("/touch", server.TouchSession)
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateSession handles POST /sessions/{id}. An existing session is overwritten.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body CreateRequest
	if err := decodeBody(w, r, &body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.Logger.Warn("CreateSession: Invalid request body", "error", err)
		return
	}

	ttl := s.DefaultTTL
	if body.TTL != nil {
		var err error
		if ttl, err = domain.TTLFromSeconds(*body.TTL); err != nil {
			http.Error(w, "Invalid ttl", http.StatusBadRequest)
			s.Logger.Warn("CreateSession: Invalid ttl", "error", err)
			return
		}
	}

	created := domain.NewSession(body.Language, ttl, body.Files)
	if err := s.Manager.Create(r.Context(), id, created); err != nil {
		s.fail(w, "CreateSession", id, err)
		return
	}

	writeJSON(w, http.StatusCreated, created, s.Logger)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found, ok, err := s.Manager.Get(r.Context(), id)
	if err != nil {
		s.fail(w, "GetSession", id, err)
		return
	}
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, found, s.Logger)
}

// ReplaceFiles handles PUT /sessions/{id}/files. The session is touched.
func (s *Server) ReplaceFiles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var files map[string]string
	if err := decodeBody(w, r, &files); err != nil || files == nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.Logger.Warn("ReplaceFiles: Invalid request body", "error", err)
		return
	}

	_, ok, err := s.Manager.Update(r.Context(), id, func(sess *domain.Session) error {
		sess.Files = files
		return nil
	})
	s.noContent(w, "ReplaceFiles", id, ok, err)
}

// TouchSession handles POST /sessions/{id}/touch.
func (s *Server) TouchSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	_, ok, err := s.Manager.Touch(r.Context(), id)
	s.noContent(w, "TouchSession", id, ok, err)
}

// DeleteSession handles DELETE /sessions/{id}. Deleting an absent session succeeds.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := s.Manager.Delete(r.Context(), id)
	s.noContent(w, "DeleteSession", id, true, err)
}

// Healthz handles GET /healthz.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	if s.Health != nil {
		if err := s.Health.Ping(r.Context()); err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			s.Logger.Warn("Healthz: backend unreachable", "error", err)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) noContent(w http.ResponseWriter, op, id string, found bool, err error) {
	if err != nil {
		s.fail(w, op, id, err)
		return
	}
	if !found {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) fail(w http.ResponseWriter, op, id string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrBackendUnavailable) {
		status = http.StatusServiceUnavailable
	}
	http.Error(w, http.StatusText(status), status)
	s.Logger.Error(op+" failed", "session_id", id, "error", err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "error", err)
	}
}

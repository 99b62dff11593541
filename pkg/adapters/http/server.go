// Package http exposes the conversation engine over a REST API: turn
// processing, graph inspection and audit, and suggestion review.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VinayDangodra28/botbuddy/internal/controller"
	"github.com/VinayDangodra28/botbuddy/internal/flowgraph"
	"github.com/VinayDangodra28/botbuddy/internal/logging"
	"github.com/VinayDangodra28/botbuddy/pkg/domain"
	"github.com/VinayDangodra28/botbuddy/pkg/session"
)

// maxUtteranceBytes bounds a single turn request body.
const maxUtteranceBytes = 64 * 1024

// Server routes REST requests to the engine.
type Server struct {
	graph    *flowgraph.Store
	ctrl     *controller.Controller
	sessions *session.Manager
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a structured logger for request handling.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsGatherer mounts GET /metrics serving the given registry.
func WithMetricsGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// NewHandler builds the REST handler over the engine's collaborators.
func NewHandler(graph *flowgraph.Store, ctrl *controller.Controller, sessions *session.Manager, opts ...Option) http.Handler {
	s := &Server{
		graph:    graph,
		ctrl:     ctrl,
		sessions: sessions,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()

	r.Get("/health", s.getHealth)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/open", s.openSession)
			r.Post("/turns", s.postTurn)
		})
	})

	r.Route("/graph", func(r chi.Router) {
		r.Get("/", s.getGraph)
		r.Get("/validate", s.validateGraph)
		r.Get("/audit", s.auditGraph)
		r.Get("/branches/{branchID}", s.getBranch)
	})

	r.Route("/suggestions", func(r chi.Router) {
		r.Get("/", s.listSuggestions)
		r.Get("/preview", s.previewSuggestions)
		r.Post("/apply", s.applySuggestions)
		r.Delete("/", s.clearSuggestions)
	})

	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TurnRequest is the body of POST /sessions/{id}/turns.
type TurnRequest struct {
	Utterance string `json:"utterance"`
}

// ApplyRequest is the body of POST /suggestions/apply. A nil Indices applies
// the whole pending log.
type ApplyRequest struct {
	Indices []int `json:"indices,omitempty"`
}

func (s *Server) postTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body TurnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUtteranceBytes)).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Utterance == "" {
		http.Error(w, "utterance cannot be empty", http.StatusBadRequest)
		return
	}

	var result *domain.TurnResult
	err := s.sessions.WithLock(r.Context(), sessionID, func(ctx context.Context) error {
		state, err := s.sessions.Store().Load(ctx, sessionID)
		if err == domain.ErrSessionNotFound {
			state = domain.NewSession(sessionID, s.graph.EntryBranch())
		} else if err != nil {
			return err
		}
		result = s.ctrl.ProcessTurn(ctx, body.Utterance, state)
		return s.sessions.Store().Save(ctx, sessionID, state)
	})
	if err != nil {
		s.logger.Error("turn processing failed", "session", sessionID, "err", err)
		http.Error(w, fmt.Sprintf("turn error: %v", err), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, result)
}

func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var result *domain.TurnResult
	err := s.sessions.WithLock(r.Context(), sessionID, func(ctx context.Context) error {
		state, err := s.sessions.Store().Load(ctx, sessionID)
		if err == domain.ErrSessionNotFound {
			state = domain.NewSession(sessionID, s.graph.EntryBranch())
		} else if err != nil {
			return err
		}
		result = s.ctrl.Open(state)
		return s.sessions.Store().Save(ctx, sessionID, state)
	})
	if err != nil {
		s.logger.Error("session open failed", "session", sessionID, "err", err)
		http.Error(w, fmt.Sprintf("open error: %v", err), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, result)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	state, err := s.sessions.Load(r.Context(), sessionID)
	if err == domain.ErrSessionNotFound {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("load error: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, state)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.sessions.Delete(r.Context(), sessionID); err != nil {
		http.Error(w, fmt.Sprintf("delete error: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("list error: %v", err), http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, map[string][]string{"sessions": ids})
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.graph.Document())
}

func (s *Server) getBranch(w http.ResponseWriter, r *http.Request) {
	branch := s.graph.GetBranch(chi.URLParam(r, "branchID"))
	if branch == nil {
		http.Error(w, "branch not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, branch)
}

func (s *Server) validateGraph(w http.ResponseWriter, r *http.Request) {
	problems := s.graph.ValidateAll()
	s.writeJSON(w, map[string]any{
		"valid":    len(problems) == 0,
		"problems": problems,
	})
}

func (s *Server) auditGraph(w http.ResponseWriter, r *http.Request) {
	report := s.graph.Audit()
	s.writeJSON(w, map[string]any{
		"clean":  report.Clean(),
		"report": report,
	})
}

func (s *Server) listSuggestions(w http.ResponseWriter, r *http.Request) {
	ops := s.graph.PendingOperations()
	if ops == nil {
		ops = []domain.SuggestionOperation{}
	}
	s.writeJSON(w, map[string]any{"pending_operations": ops})
}

func (s *Server) previewSuggestions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.graph.PreviewEffect())
}

func (s *Server) applySuggestions(w http.ResponseWriter, r *http.Request) {
	var body ApplyRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	result := s.graph.ApplySuggestions(body.Indices)
	s.logger.Info("suggestions applied", "applied", result.Applied, "failed", result.Failed)
	s.writeJSON(w, result)
}

func (s *Server) clearSuggestions(w http.ResponseWriter, r *http.Request) {
	s.graph.ClearSuggestions()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

// Package httpapi exposes the session management REST API: creating
// interview sessions, ending them, reading transcripts, and minting LiveKit
// join tokens for the frontend.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/hirevoice/interview-agent/pkg/interview"
	"github.com/hirevoice/interview-agent/pkg/rtc/livekit"
	"github.com/hirevoice/interview-agent/pkg/store"
)

// Server is the HTTP API server.
type Server struct {
	orchestrator *interview.Orchestrator
	transcripts  store.TranscriptStore
	apiKey       string
	apiSecret    string
	logger       *slog.Logger
	router       chi.Router
}

// Config holds server dependencies.
type Config struct {
	Orchestrator *interview.Orchestrator
	Transcripts  store.TranscriptStore

	// LiveKit credentials for minting join tokens.
	APIKey    string
	APISecret string

	Logger *slog.Logger
}

// New creates the API server and its routes.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		orchestrator: cfg.Orchestrator,
		transcripts:  cfg.Transcripts,
		apiKey:       cfg.APIKey,
		apiSecret:    cfg.APISecret,
		logger:       logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Post("/sessions/{id}/end", s.handleEndSession)
		r.Get("/sessions/{id}/transcript", s.handleGetTranscript)
		r.Post("/livekit/token", s.handleToken)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type createSessionResponse struct {
	SessionID     string `json:"sessionId"`
	QuestionTitle string `json:"questionTitle"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.New().String()

	q, err := s.orchestrator.Initialize(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("initialize session failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	s.logger.Info("session created",
		slog.String("session_id", sessionID),
		slog.String("question", q.Title))
	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:     sessionID,
		QuestionTitle: q.Title,
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	if err := s.orchestrator.Complete(r.Context(), sessionID); err != nil {
		s.logger.Error("end session failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	entries, err := s.transcripts.List(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("list transcript failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"entries":   entries,
	})
}

type tokenRequest struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Room == "" || req.Identity == "" {
		writeError(w, http.StatusBadRequest, "room and identity are required")
		return
	}

	token, err := livekit.Token(s.apiKey, s.apiSecret, req.Room, req.Identity)
	if err != nil {
		s.logger.Error("mint token failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to mint token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

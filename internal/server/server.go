// Package server exposes the chat service over HTTP using the data stream
// protocol understood by the web client.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/joss/navigator/internal/agent"
	"github.com/joss/navigator/internal/chat"
	"github.com/joss/navigator/internal/logging"
	"github.com/joss/navigator/internal/metrics"
	"github.com/joss/navigator/internal/provider"
)

const maxBodyBytes = 4 << 20

// Server provides the Navigator HTTP API
type Server struct {
	chat    *chat.Service
	metrics *metrics.Metrics
	mux     *http.ServeMux
	ready   http.HandlerFunc
	origins []string
	log     *logging.Logger
}

// Options configures a Server.
type Options struct {
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	// Ready serves GET /health/ready when set.
	Ready http.HandlerFunc
}

func New(svc *chat.Service, opts Options) *Server {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Global()
	}
	s := &Server{
		chat:    svc,
		metrics: opts.Metrics,
		mux:     http.NewServeMux(),
		ready:   opts.Ready,
		origins: opts.AllowedOrigins,
		log:     logging.New("server"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if s.ready != nil {
		s.mux.HandleFunc("GET /health/ready", s.ready)
	}
	s.mux.HandleFunc("GET /metrics", s.metrics.Handler())
	s.mux.HandleFunc("GET /api/tools", s.handleTools)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"tools": s.chat.Tools()})
}

// statusFor maps errors returned before streaming to a status and the
// text the client may see.
func statusFor(err error) (int, string) {
	var missing *provider.MissingCredentialError
	switch {
	case errors.Is(err, chat.ErrUnauthorized):
		return http.StatusUnauthorized, chat.ErrUnauthorized.Error()
	case errors.As(err, &missing):
		return http.StatusInternalServerError, missing.Error()
	case errors.Is(err, provider.ErrUnknownProvider):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, chat.ErrEmptyConversation):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusBadGateway, agent.GenerationFailedMessage
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	w.Header().Set("X-Request-Id", requestID)
	log := s.log.With("request_id", requestID)

	auth := sessionAuth(r)
	if auth.Token == "" || auth.UserID == "" {
		log.Warn("chat_rejected", map[string]any{"status": http.StatusUnauthorized}, nil)
		http.Error(w, chat.ErrUnauthorized.Error(), http.StatusUnauthorized)
		return
	}

	var body chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	events, err := s.chat.Start(r.Context(), chat.Request{
		ID:        requestID,
		Auth:      auth,
		Messages:  domainMessages(body.Messages),
		Session:   body.session(),
		Selection: body.selection(),
	})
	if err != nil {
		status, msg := statusFor(err)
		log.Error("chat_rejected", map[string]any{"status": status}, err)
		http.Error(w, msg, status)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set(DataStreamHeader, "v1")
	w.WriteHeader(http.StatusOK)

	sw := newStreamWriter(w)
	sw.drain(events)
	if sw.err != nil {
		log.Debug("client_gone", map[string]any{"error": sw.err.Error()})
	}
}

// CORS allows the Jellyfin web client to call the API from its origin.
func CORS(origins []string, next http.Handler) http.Handler {
	allowAll := len(origins) == 0
	allowed := map[string]bool{}
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, Authorization, X-Emby-Token, X-MediaBrowser-Token, X-Jellyfin-User-Id")
		w.Header().Set("Access-Control-Expose-Headers", DataStreamHeader+", X-Request-Id")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the routes wrapped in middleware.
func (s *Server) Handler() http.Handler {
	return CORS(s.origins, s.mux)
}

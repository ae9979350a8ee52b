// Package server exposes the Vocalis HTTP surface: the websocket
// conversation endpoint, health and readiness probes, the Prometheus metrics
// endpoint, and a redacted view of the running configuration.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ddhuet/Vocalis/internal/config"
	"github.com/Ddhuet/Vocalis/internal/health"
	"github.com/Ddhuet/Vocalis/internal/observe"
	"github.com/Ddhuet/Vocalis/pkg/provider/llm"
	"github.com/Ddhuet/Vocalis/pkg/provider/stt"
	"github.com/Ddhuet/Vocalis/pkg/provider/tts"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// Providers bundles the three pipeline backends handed to the server.
// TTS may be nil; replies are then sent as text only.
type Providers struct {
	STT stt.Model
	LLM llm.Provider
	TTS tts.Provider
}

// Server hosts the conversation endpoint and its operational routes.
type Server struct {
	cfg       *config.Config
	providers Providers
	metrics   *observe.Metrics
	health    *health.Handler

	mu       sync.Mutex
	sessions map[*conversation]struct{}

	httpSrv *http.Server
}

// Option is a functional option for New.
type Option func(*Server)

// WithMetrics attaches metric instruments to the server. When unset, the
// package-level default metrics are used.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealthCheckers registers readiness checkers on the /readyz endpoint.
func WithHealthCheckers(checkers ...health.Checker) Option {
	return func(s *Server) { s.health = health.New(checkers...) }
}

// New creates a Server around the given configuration and providers.
func New(cfg *config.Config, providers Providers, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: cfg must not be nil")
	}
	if providers.STT == nil {
		return nil, errors.New("server: STT model must not be nil")
	}
	if providers.LLM == nil {
		return nil, errors.New("server: LLM provider must not be nil")
	}

	s := &Server{
		cfg:       cfg,
		providers: providers,
		sessions:  make(map[*conversation]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.health == nil {
		s.health = health.New()
	}

	mux := http.NewServeMux()
	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /config", s.handleConfig)
	mux.HandleFunc("GET /ws", s.handleWebsocket)

	s.httpSrv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(s.metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the server's root handler, middleware included. Exposed
// for httptest-based tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.httpSrv.Addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}

// addSession tracks a live conversation so /config can report session state.
func (s *Server) addSession(c *conversation) {
	s.mu.Lock()
	s.sessions[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeSession(c *conversation) {
	s.mu.Lock()
	delete(s.sessions, c)
	s.mu.Unlock()
}

// sessionCounts returns the number of live sessions and how many of them are
// transcribing right now.
func (s *Server) sessionCounts() (active, transcribing int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.sessions {
		active++
		if c.pipeline.Busy() {
			transcribing++
		}
	}
	return active, transcribing
}

// redactedConfig is the JSON shape served by /config. API keys are omitted.
type redactedConfig struct {
	ListenAddr       string  `json:"listen_addr"`
	LLMProvider      string  `json:"llm_provider"`
	LLMModel         string  `json:"llm_model"`
	STTProvider      string  `json:"stt_provider"`
	TTSProvider      string  `json:"tts_provider"`
	TargetSampleRate int     `json:"target_sample_rate"`
	ContextTokens    int     `json:"context_tokens"`
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"max_tokens"`
	ActiveSessions   int     `json:"active_sessions"`
	Transcribing     int     `json:"transcribing"`
}

// handleConfig serves a redacted view of the running configuration so
// clients can discover capabilities without seeing credentials.
func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	active, transcribing := s.sessionCounts()
	out := redactedConfig{
		ListenAddr:       s.cfg.Server.ListenAddr,
		LLMProvider:      s.cfg.Providers.LLM.Name,
		LLMModel:         s.cfg.Providers.LLM.Model,
		STTProvider:      s.cfg.Providers.STT.Name,
		TTSProvider:      s.cfg.Providers.TTS.Name,
		TargetSampleRate: s.cfg.Audio.TargetSampleRate,
		ContextTokens:    s.cfg.Context.ApproximateTokens,
		Temperature:      s.cfg.Generation.Temperature,
		MaxTokens:        s.cfg.Generation.MaxTokens,
		ActiveSessions:   active,
		Transcribing:     transcribing,
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		http.Error(w, "encode config", http.StatusInternalServerError)
	}
}

// handleWebsocket upgrades the connection and runs the conversation loop
// until the client disconnects.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Browser clients connect from the app's own origin; native clients
		// send no Origin header at all.
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s.metrics.ActiveSessions.Add(r.Context(), 1)
	defer s.metrics.ActiveSessions.Add(context.Background(), -1)

	sess := newSession(s.cfg, s.providers, s.metrics, conn)
	s.addSession(sess)
	defer s.removeSession(sess)
	sess.run(r.Context())
}

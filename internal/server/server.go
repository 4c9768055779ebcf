// Package server exposes VoxBridge over HTTP: the session API for creating
// and joining rooms, the per-participant WebSocket channel, and the
// health/metrics endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxbridge/voxbridge/internal/config"
	"github.com/voxbridge/voxbridge/internal/health"
	"github.com/voxbridge/voxbridge/internal/observe"
	"github.com/voxbridge/voxbridge/internal/relay"
	"github.com/voxbridge/voxbridge/internal/room"
	"github.com/voxbridge/voxbridge/pkg/provider/stt"
)

// shutdownTimeout bounds graceful HTTP shutdown plus connection draining.
const shutdownTimeout = 15 * time.Second

// Server assembles the HTTP surface and owns the live websocket set.
type Server struct {
	addr          string
	publicBaseURL string
	tls           *config.TLSConfig

	registry *room.Registry
	relay    *relay.Relay
	stt      stt.Provider
	metrics  *observe.Metrics
	health   *health.Handler

	silenceTimeout time.Duration
	streamMaxAge   time.Duration
	sampleRate     int

	mu     sync.Mutex
	active map[*relay.Connection]*wsSink
}

// Config carries everything a [Server] needs.
type Config struct {
	// ListenAddr is the TCP address to bind (e.g., ":8080").
	ListenAddr string

	// PublicBaseURL prefixes shareable join links. Optional.
	PublicBaseURL string

	// TLS enables HTTPS when non-nil.
	TLS *config.TLSConfig

	// Registry is the shared session registry. Required.
	Registry *room.Registry

	// Relay runs the sentence pipeline. Required.
	Relay *relay.Relay

	// STT is the recognition backend handed to each connection. Required.
	STT stt.Provider

	// SilenceTimeout, StreamMaxAge and SampleRate are the per-connection
	// pipeline tunables.
	SilenceTimeout time.Duration
	StreamMaxAge   time.Duration
	SampleRate     int

	// Metrics may be nil.
	Metrics *observe.Metrics

	// Health serves /healthz and /readyz. Defaults to a checker-less handler.
	Health *health.Handler
}

// New creates a [Server].
func New(cfg Config) *Server {
	h := cfg.Health
	if h == nil {
		h = health.New()
	}
	return &Server{
		addr:           cfg.ListenAddr,
		publicBaseURL:  cfg.PublicBaseURL,
		tls:            cfg.TLS,
		registry:       cfg.Registry,
		relay:          cfg.Relay,
		stt:            cfg.STT,
		metrics:        cfg.Metrics,
		health:         h,
		silenceTimeout: cfg.SilenceTimeout,
		streamMaxAge:   cfg.StreamMaxAge,
		sampleRate:     cfg.SampleRate,
		active:         make(map[*relay.Connection]*wsSink),
	}
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	mux.HandleFunc("POST /api/rooms/{id}/join", s.handleJoinRoom)
	mux.HandleFunc("GET /api/rooms/{id}", s.handleRoomInfo)
	mux.HandleFunc("DELETE /api/rooms/{id}", s.handleLeaveRoom)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// Run serves until ctx is cancelled, then drains live connections and shuts
// the HTTP server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server listening", "addr", s.addr, "tls", s.tls != nil)
		var err error
		if s.tls != nil {
			err = httpSrv.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.closeActiveConnections(shutdownCtx)
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", "error", err)
			return err
		}
		return nil
	})

	return g.Wait()
}

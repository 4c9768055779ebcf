package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxbridge/voxbridge/internal/observe"
	"github.com/voxbridge/voxbridge/pkg/provider/stt"
)

// Stream restart reasons, recorded on the restarts metric.
const (
	restartRotation    = "rotation"
	restartWriteError  = "write_error"
	restartStreamError = "stream_error"
)

// StreamManager owns the single live recognition stream of one connection.
//
// States: idle (no stream) and streaming. The stream starts lazily on the
// first audio fragment and is rotated proactively once its age exceeds
// MaxAge, before the provider's own hard lifetime cap kills it. A rotation
// replaces the handle wholesale; accumulated sentence text lives in the
// [Accumulator] and is untouched.
//
// Every stream gets a generation number. Transcript events and the
// end-of-stream handler carry the generation they belong to and are dropped
// when a newer stream has taken over, so a superseded stream's callbacks can
// never mutate current state.
type StreamManager struct {
	provider stt.Provider
	cfg      stt.StreamConfig
	maxAge   time.Duration
	acc      *Accumulator
	metrics  *observe.Metrics
	log      *slog.Logger

	mu        sync.Mutex
	handle    stt.StreamHandle
	startedAt time.Time
	gen       uint64
}

// StreamManagerConfig configures a [StreamManager].
type StreamManagerConfig struct {
	// Provider is the STT backend. Required.
	Provider stt.Provider

	// Stream is the per-stream recognition configuration (language, sample
	// rate, punctuation).
	Stream stt.StreamConfig

	// MaxAge is the proactive rotation threshold.
	MaxAge time.Duration

	// Accumulator receives transcript events and the fallback-finalize on
	// stream death. Required.
	Accumulator *Accumulator

	// Metrics may be nil.
	Metrics *observe.Metrics

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// NewStreamManager creates an idle [StreamManager].
func NewStreamManager(cfg StreamManagerConfig) *StreamManager {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &StreamManager{
		provider: cfg.Provider,
		cfg:      cfg.Stream,
		maxAge:   cfg.MaxAge,
		acc:      cfg.Accumulator,
		metrics:  cfg.Metrics,
		log:      log,
	}
}

// Write forwards one raw PCM fragment to the recognition stream, starting it
// lazily and rotating it first when it has aged past MaxAge. A write failure
// is recovered by restarting the stream and re-sending the fragment once.
func (m *StreamManager) Write(ctx context.Context, pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil && time.Since(m.startedAt) > m.maxAge {
		m.log.Debug("rotating recognition stream", "age", time.Since(m.startedAt))
		m.restartLocked(ctx, restartRotation)
	}
	if m.handle == nil {
		if err := m.startLocked(ctx); err != nil {
			return fmt.Errorf("relay: start recognition stream: %w", err)
		}
	}

	if err := m.handle.SendAudio(pcm); err != nil {
		m.log.Warn("recognition stream write failed, restarting", "error", err)
		m.restartLocked(ctx, restartWriteError)
		if err := m.startLocked(ctx); err != nil {
			return fmt.Errorf("relay: restart recognition stream: %w", err)
		}
		if err := m.handle.SendAudio(pcm); err != nil {
			return fmt.Errorf("relay: send audio after restart: %w", err)
		}
	}
	return nil
}

// Streaming reports whether a recognition stream is currently open.
func (m *StreamManager) Streaming() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle != nil
}

// Stop closes the current stream, if any, and suppresses its trailing
// callbacks. Pending sentence text stays in the accumulator; teardown decides
// what to do with it.
func (m *StreamManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropLocked()
}

// startLocked opens a fresh stream and spawns its consumer goroutine.
// Must be called with m.mu held and m.handle nil.
func (m *StreamManager) startLocked(ctx context.Context) error {
	h, err := m.provider.StartStream(ctx, m.cfg)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordProviderError(ctx, "stt")
		}
		return err
	}
	m.gen++
	m.handle = h
	m.startedAt = time.Now()
	go m.consume(m.gen, h)
	return nil
}

// restartLocked closes the current stream and records the restart reason.
// The caller starts the replacement. Must be called with m.mu held.
func (m *StreamManager) restartLocked(ctx context.Context, reason string) {
	m.dropLocked()
	if m.metrics != nil {
		m.metrics.RecordRestart(ctx, reason)
	}
}

// dropLocked closes and forgets the current handle. Bumping the generation
// here makes the consumer goroutine's remaining events fall on the floor.
// Must be called with m.mu held.
func (m *StreamManager) dropLocked() {
	if m.handle == nil {
		return
	}
	if err := m.handle.Close(); err != nil {
		m.log.Debug("closing recognition stream", "error", err)
	}
	m.handle = nil
	m.gen++
}

// consume pumps one stream's transcript channels into the accumulator until
// both close, then runs the end-of-stream recovery. Events belonging to a
// superseded generation are discarded.
func (m *StreamManager) consume(gen uint64, h stt.StreamHandle) {
	partials, finals := h.Partials(), h.Finals()
	for partials != nil || finals != nil {
		select {
		case tr, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			if m.current(gen) {
				m.acc.OnInterim(tr.Text)
			}
		case tr, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			if m.current(gen) {
				m.acc.OnFinal(tr.Text)
			}
		}
	}
	m.streamEnded(gen, h.Err())
}

// current reports whether gen is still the live stream generation.
func (m *StreamManager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen
}

// streamEnded handles provider-side stream termination: mark idle, classify
// the error, and flush whatever the accumulator holds through the fallback
// path so speech captured only as an interim preview is not lost.
func (m *StreamManager) streamEnded(gen uint64, err error) {
	m.mu.Lock()
	if m.gen != gen {
		// A restart or Stop already superseded this stream.
		m.mu.Unlock()
		return
	}
	m.handle = nil
	m.gen++
	m.mu.Unlock()

	switch {
	case err == nil:
		m.log.Debug("recognition stream ended")
	case stt.IsTransient(err):
		m.log.Info("recognition stream expired", "error", err)
		if m.metrics != nil {
			m.metrics.RecordRestart(context.Background(), restartStreamError)
		}
	default:
		m.log.Error("recognition stream failed", "error", err)
		if m.metrics != nil {
			m.metrics.RecordProviderError(context.Background(), "stt")
			m.metrics.RecordRestart(context.Background(), restartStreamError)
		}
	}

	m.acc.FallbackFinalize(TriggerStreamEnd)
}

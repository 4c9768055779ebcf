package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxbridge/voxbridge/internal/event"
	"github.com/voxbridge/voxbridge/internal/observe"
	"github.com/voxbridge/voxbridge/internal/room"
	"github.com/voxbridge/voxbridge/pkg/provider/stt"
)

// Connection binds one participant's live channel to its session slot and
// owns all per-participant pipeline state: the sentence accumulator, the
// recognition stream manager, and the single-flight processing flag.
type Connection struct {
	RoomID   string
	Role     room.Role
	Language string
	Name     string

	sink     event.Sink
	registry *room.Registry
	relay    *Relay
	acc      *Accumulator
	streams  *StreamManager
	metrics  *observe.Metrics
	log      *slog.Logger

	processing atomic.Bool
	closeOnce  sync.Once
}

// ConnectionConfig configures a [Connection].
type ConnectionConfig struct {
	// RoomID, Role, Language and Name identify the participant's slot.
	RoomID   string
	Role     room.Role
	Language string
	Name     string

	// Sink delivers outbound events to this participant. Required.
	Sink event.Sink

	// Registry is the shared session registry. Required.
	Registry *room.Registry

	// Relay runs the translate/synthesize round for finalized sentences.
	// Required.
	Relay *Relay

	// STT is the recognition backend. Required.
	STT stt.Provider

	// SilenceTimeout finalizes the accumulated sentence after this much
	// recognition quiet.
	SilenceTimeout time.Duration

	// StreamMaxAge is the recognition stream rotation threshold.
	StreamMaxAge time.Duration

	// SampleRate is the PCM sample rate of inbound audio in Hz.
	SampleRate int

	// Metrics may be nil.
	Metrics *observe.Metrics

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// NewConnection wires up the per-participant pipeline. The recognition
// stream stays idle until the first audio fragment arrives.
func NewConnection(cfg ConnectionConfig) *Connection {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("room_id", cfg.RoomID, "role", cfg.Role)

	c := &Connection{
		RoomID:   cfg.RoomID,
		Role:     cfg.Role,
		Language: cfg.Language,
		Name:     cfg.Name,
		sink:     cfg.Sink,
		registry: cfg.Registry,
		relay:    cfg.Relay,
		metrics:  cfg.Metrics,
		log:      log,
	}

	c.acc = NewAccumulator(AccumulatorConfig{
		SilenceTimeout: cfg.SilenceTimeout,
		OnFinalize: func(text, trigger string) {
			ctx := context.Background()
			c.log.Info("sentence finalized", "trigger", trigger, "length", len(text))
			if c.metrics != nil {
				c.metrics.RecordFinalized(ctx, trigger)
			}
			c.relay.ProcessSentence(ctx, c, text)
		},
		OnInterim: func(preview string) {
			if err := c.sink.Send(context.Background(), event.TranscriptInterim{Text: preview}); err != nil {
				c.log.Debug("interim delivery skipped", "error", err)
			}
		},
	})

	c.streams = NewStreamManager(StreamManagerConfig{
		Provider: cfg.STT,
		Stream: stt.StreamConfig{
			SampleRate: cfg.SampleRate,
			Channels:   1,
			Language:   cfg.Language,
			Punctuate:  true,
		},
		MaxAge:      cfg.StreamMaxAge,
		Accumulator: c.acc,
		Metrics:     cfg.Metrics,
		Logger:      log,
	})

	return c
}

// Register attaches the connection to its session slot and notifies an
// already-present partner that this participant joined.
func (c *Connection) Register(ctx context.Context) error {
	if err := c.registry.Attach(c.RoomID, c.Role, c.sink, c.Language, c.Name); err != nil {
		return fmt.Errorf("relay: register connection: %w", err)
	}
	if c.metrics != nil {
		c.metrics.ActiveConnections.Add(ctx, 1)
	}
	c.log.Info("participant connected", "language", c.Language)

	if partner, err := c.registry.Partner(c.RoomID, c.Role); err == nil {
		ev := event.UserJoined{Name: c.Name, Language: c.Language}
		if err := partner.Sink.Send(ctx, ev); err != nil {
			c.log.Debug("join notification skipped", "error", err)
		}
	}
	return nil
}

// HandleAudio forwards one raw PCM fragment into the recognition pipeline.
// Fragments are passed through unfiltered; the recognition engine decides
// what counts as speech.
func (c *Connection) HandleAudio(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	return c.streams.Write(ctx, pcm)
}

// Close tears the connection down: stop the recognition stream, flush any
// pending sentence through the normal finalize path, release the session
// slot, and tell the partner. Safe to call more than once.
func (c *Connection) Close(ctx context.Context) {
	c.closeOnce.Do(func() {
		c.streams.Stop()
		c.acc.FallbackFinalize(TriggerTeardown)
		c.acc.Stop()

		c.registry.Detach(c.RoomID, c.Role, c.sink)

		if partner, err := c.registry.Partner(c.RoomID, c.Role); err == nil {
			if err := partner.Sink.Send(ctx, event.UserLeft{}); err != nil {
				c.log.Debug("leave notification skipped", "error", err)
			}
		}

		if c.metrics != nil {
			c.metrics.ActiveConnections.Add(ctx, -1)
		}
		c.log.Info("participant disconnected")
	})
}

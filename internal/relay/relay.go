package relay

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/voxbridge/voxbridge/internal/event"
	"github.com/voxbridge/voxbridge/internal/observe"
	"github.com/voxbridge/voxbridge/internal/resilience"
	"github.com/voxbridge/voxbridge/internal/room"
	"github.com/voxbridge/voxbridge/pkg/audio"
	"github.com/voxbridge/voxbridge/pkg/provider/translate"
	"github.com/voxbridge/voxbridge/pkg/provider/tts"
)

// Relay runs the translate → deliver → synthesize round for finalized
// sentences. One Relay is shared by all connections; the single-flight guard
// lives on each [Connection].
//
// Both external services are best-effort: a translation failure (or an open
// translation breaker) falls back to passing the original text through, and
// a synthesis failure only costs the audio — the text has already been
// delivered.
type Relay struct {
	registry   *room.Registry
	translator translate.Provider
	synth      tts.Provider
	trBreaker  *resilience.CircuitBreaker
	ttsBreaker *resilience.CircuitBreaker
	metrics    *observe.Metrics
	log        *slog.Logger
}

// RelayConfig configures a [Relay].
type RelayConfig struct {
	// Registry resolves partner connections. Required.
	Registry *room.Registry

	// Translator may be nil; sentences are then relayed untranslated.
	Translator translate.Provider

	// Synthesizer may be nil; partners then receive text only.
	Synthesizer tts.Provider

	// Metrics may be nil.
	Metrics *observe.Metrics

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// New creates a [Relay] with circuit breakers guarding both external
// services.
func New(cfg RelayConfig) *Relay {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		registry:   cfg.Registry,
		translator: cfg.Translator,
		synth:      cfg.Synthesizer,
		trBreaker:  resilience.New(resilience.Config{Name: "translate"}),
		ttsBreaker: resilience.New(resilience.Config{Name: "synthesis"}),
		metrics:    cfg.Metrics,
		log:        log,
	}
}

// ProcessSentence runs one full relay round for a finalized sentence from c.
//
// At most one round runs per connection at a time: a sentence arriving while
// another is still in flight is dropped, not queued. The guard is released on
// every exit path.
func (r *Relay) ProcessSentence(ctx context.Context, c *Connection, text string) {
	if text == "" {
		return
	}
	if !c.processing.CompareAndSwap(false, true) {
		r.log.Debug("sentence dropped, round already in flight", "room_id", c.RoomID, "role", c.Role)
		if r.metrics != nil {
			r.metrics.SentencesDropped.Add(ctx, 1)
		}
		return
	}
	defer c.processing.Store(false)

	start := time.Now()

	partner, err := r.registry.Partner(c.RoomID, c.Role)
	if err != nil {
		r.log.Info("sentence not relayed, no partner", "room_id", c.RoomID, "role", c.Role, "error", err)
		return
	}

	translated := r.translateText(ctx, text, c.Language, partner.Language)

	ev := event.Translation{
		OriginalText:   text,
		TranslatedText: translated,
		FromUser:       string(c.Role),
		FromLanguage:   translate.BaseLang(c.Language),
		ToLanguage:     translate.BaseLang(partner.Language),
	}
	// Text goes out to both sides before synthesis starts, so neither
	// participant waits on the slower audio path.
	if err := c.sink.Send(ctx, ev); err != nil {
		r.log.Debug("own translation delivery skipped", "room_id", c.RoomID, "error", err)
	}
	if err := partner.Sink.Send(ctx, ev); err != nil {
		r.log.Debug("partner translation delivery skipped", "room_id", c.RoomID, "error", err)
	}

	r.deliverAudio(ctx, c, partner, translated)

	if r.metrics != nil {
		r.metrics.SentenceDuration.Record(ctx, time.Since(start).Seconds())
	}
}

// translateText returns text rendered in the partner's language. Same-base
// participants short-circuit without touching the translation service, and
// any failure degrades to the original text.
func (r *Relay) translateText(ctx context.Context, text, sourceLang, targetLang string) string {
	if translate.SameBase(sourceLang, targetLang) {
		return text
	}
	if r.translator == nil {
		return text
	}

	var translated string
	start := time.Now()
	err := r.trBreaker.Execute(func() error {
		var err error
		translated, err = r.translator.Translate(ctx, text, translate.BaseLang(sourceLang), translate.BaseLang(targetLang))
		return err
	})
	if r.metrics != nil {
		r.metrics.TranslationDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		r.log.Warn("translation failed, passing original through", "error", err)
		if r.metrics != nil {
			r.metrics.RecordProviderError(ctx, "translate")
		}
		return text
	}
	return translated
}

// deliverAudio synthesizes the translated sentence in the partner's language
// and sends the WAV-wrapped result to the partner only. Every failure here is
// non-fatal.
func (r *Relay) deliverAudio(ctx context.Context, c *Connection, partner room.Partner, text string) {
	if r.synth == nil {
		return
	}

	var out tts.Audio
	start := time.Now()
	err := r.ttsBreaker.Execute(func() error {
		var err error
		out, err = r.synth.Synthesize(ctx, text, partner.Language)
		return err
	})
	if r.metrics != nil {
		r.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		r.log.Warn("synthesis failed, skipping audio delivery", "room_id", c.RoomID, "error", err)
		if r.metrics != nil {
			r.metrics.RecordProviderError(ctx, "tts")
		}
		return
	}
	if len(out.PCM) == 0 {
		return
	}

	wav, err := audio.WrapPCM(out.PCM, out.SampleRate)
	if err != nil {
		r.log.Warn("wrapping synthesized audio failed", "error", err)
		return
	}
	ev := event.AudioPlayback{
		Audio:  base64.StdEncoding.EncodeToString(wav),
		Format: "wav",
	}
	if err := partner.Sink.Send(ctx, ev); err != nil {
		r.log.Debug("audio delivery skipped", "room_id", c.RoomID, "error", err)
	}
}

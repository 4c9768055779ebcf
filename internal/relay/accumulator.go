// Package relay implements the core speech pipeline: per-connection sentence
// accumulation over recognition events, recognition stream lifecycle with
// proactive rotation, and the translate → deliver → synthesize round for each
// finalized sentence.
package relay

import (
	"strings"
	"sync"
	"time"
)

// Finalize triggers, recorded on the sentences metric and logged.
const (
	TriggerSilence   = "silence"
	TriggerStreamEnd = "stream_end"
	TriggerTeardown  = "teardown"
)

// Accumulator turns a stream of interim/final recognition fragments into
// discrete finalized sentences. The recognizer has no explicit sentence-end
// signal, so a silence timer is the primary boundary heuristic: each event
// re-arms the timer, and when it fires the accumulated text is dispatched as
// one sentence.
//
// Finalize may be invoked concurrently from the timer, a stream-error handler
// and connection teardown. The lastEmitted guard makes it dispatch each
// sentence exactly once no matter how many callers race.
type Accumulator struct {
	silence time.Duration

	// onFinalize receives each finalized sentence with the trigger that
	// caused it. Called without the accumulator lock held; it may block.
	onFinalize func(text, trigger string)

	// onInterim receives each live-typing preview. Called without the lock.
	onInterim func(preview string)

	mu          sync.Mutex
	committed   string
	interim     string
	lastEmitted string
	timer       *time.Timer
}

// AccumulatorConfig configures an [Accumulator].
type AccumulatorConfig struct {
	// SilenceTimeout is the quiet interval after which the accumulated text
	// is finalized as one sentence.
	SilenceTimeout time.Duration

	// OnFinalize is invoked with each finalized sentence. Required.
	OnFinalize func(text, trigger string)

	// OnInterim is invoked with each preview for the live-typing indicator.
	// Optional.
	OnInterim func(preview string)
}

// NewAccumulator creates an [Accumulator]. The silence timer is only armed
// once the first recognition event arrives.
func NewAccumulator(cfg AccumulatorConfig) *Accumulator {
	onInterim := cfg.OnInterim
	if onInterim == nil {
		onInterim = func(string) {}
	}
	return &Accumulator{
		silence:    cfg.SilenceTimeout,
		onFinalize: cfg.OnFinalize,
		onInterim:  onInterim,
	}
}

// OnFinal consumes one confirmed recognition fragment: appends it to the
// committed text, discards the interim preview it supersedes, and re-arms the
// silence timer.
func (a *Accumulator) OnFinal(fragment string) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return
	}

	a.mu.Lock()
	if a.committed == "" {
		a.committed = fragment
	} else {
		a.committed += " " + fragment
	}
	a.interim = ""
	a.resetTimerLocked()
	a.mu.Unlock()
}

// OnInterim consumes one provisional recognition fragment: stores the
// combined preview as the fallback for stream death and re-arms the silence
// timer, then emits the preview to the speaker's live-typing indicator.
func (a *Accumulator) OnInterim(fragment string) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return
	}

	a.mu.Lock()
	preview := fragment
	if a.committed != "" {
		preview = a.committed + " " + fragment
	}
	a.interim = preview
	a.resetTimerLocked()
	a.mu.Unlock()

	a.onInterim(preview)
}

// Finalize dispatches the committed text as one sentence. It no-ops when
// there is nothing committed or when the committed text already went out —
// the guard that keeps a timer fire racing teardown from dispatching twice.
func (a *Accumulator) Finalize(trigger string) {
	a.mu.Lock()
	a.stopTimerLocked()

	text := strings.TrimSpace(a.committed)
	if text == "" || text == a.lastEmitted {
		a.mu.Unlock()
		return
	}
	a.lastEmitted = text
	a.committed = ""
	a.mu.Unlock()

	a.onFinalize(text, trigger)
}

// FallbackFinalize is the stream-death recovery path: when no fragment was
// confirmed but an interim preview exists, the preview is promoted so speech
// captured only provisionally is not lost, then Finalize runs as usual. The
// preview is consumed either way.
func (a *Accumulator) FallbackFinalize(trigger string) {
	a.mu.Lock()
	if a.committed == "" && a.interim != "" && a.interim != a.lastEmitted {
		a.committed = a.interim
	}
	a.interim = ""
	a.mu.Unlock()

	a.Finalize(trigger)
}

// Stop cancels the pending silence timer without dispatching anything.
func (a *Accumulator) Stop() {
	a.mu.Lock()
	a.stopTimerLocked()
	a.mu.Unlock()
}

// Committed returns the confirmed text accumulated since the last finalize.
func (a *Accumulator) Committed() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.committed
}

// resetTimerLocked re-arms the silence timer. Must be called with a.mu held.
func (a *Accumulator) resetTimerLocked() {
	a.stopTimerLocked()
	a.timer = time.AfterFunc(a.silence, func() {
		a.Finalize(TriggerSilence)
	})
}

// stopTimerLocked cancels the pending timer. Must be called with a.mu held.
func (a *Accumulator) stopTimerLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

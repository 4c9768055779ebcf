// Package stt defines the Provider interface for streaming speech-to-text
// backends.
//
// An STT provider wraps a real-time transcription service (e.g., Deepgram) and
// exposes a uniform streaming interface. The central abstraction is
// StreamHandle: once opened, a stream accepts raw PCM audio chunks and emits
// two streams of Transcript values — low-latency interims for the live-typing
// indicator and authoritative finals for sentence accumulation.
//
// Streaming recognition services enforce a hard per-stream lifetime; callers
// are expected to rotate streams proactively and to inspect [StreamHandle.Err]
// after the transcript channels close. [IsTransient] distinguishes the
// expected time/range-class terminations from genuine failures.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
	"net"
)

// ErrStreamExpired is the terminal stream error reported when the provider
// closed the stream because its per-stream time or audio-duration limit was
// reached. This is an expected condition: callers recover by opening a fresh
// stream.
var ErrStreamExpired = errors.New("stt: stream exceeded provider limit")

// ErrStreamClosed is returned by SendAudio after the stream has been closed.
var ErrStreamClosed = errors.New("stt: stream is closed")

// IsTransient reports whether err is a time/range-class stream termination —
// an expected end-of-life signal rather than a failure. Transient errors are
// logged at a lower severity and recovered by restarting the stream.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStreamExpired) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// StreamConfig describes the audio format and recognition hints for a new STT
// stream.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz (e.g., 48000 for browser
	// microphone capture).
	SampleRate int

	// Channels is the number of audio channels. 1 = mono.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	Language string

	// Punctuate requests automatic punctuation when the provider supports it.
	Punctuate bool

	// Model is an optional provider-specific model hint.
	Model string
}

// StreamHandle represents an open streaming recognition session. It is an
// interface so that test code can provide mock implementations without a live
// provider connection.
//
// Callers must call Close when the stream is no longer needed. All methods
// must be safe for concurrent use.
type StreamHandle interface {
	// SendAudio delivers a chunk of raw PCM audio bytes to the provider.
	// The chunk must match the SampleRate and Channels agreed in StreamConfig.
	// Calling SendAudio after Close returns ErrStreamClosed.
	SendAudio(chunk []byte) error

	// Partials returns a read-only channel emitting interim Transcript values
	// as the provider makes preliminary guesses. Interims may be revised or
	// replaced by later results. The channel is closed when the stream ends.
	Partials() <-chan Transcript

	// Finals returns a read-only channel emitting confirmed Transcript values
	// once the provider has committed to a recognition result. The channel is
	// closed when the stream ends.
	Finals() <-chan Transcript

	// Err returns the terminal stream error, or nil if the stream ended
	// cleanly. It must only be called after both transcript channels have
	// closed.
	Err() error

	// Close terminates the stream, flushes any pending audio, and releases
	// all associated resources. After Close returns, the Partials and Finals
	// channels will be closed. Calling Close more than once is safe.
	Close() error
}

// Provider is the abstraction over any streaming STT backend.
//
// Implementations must be safe for concurrent use; one stream is opened per
// connected participant.
type Provider interface {
	// StartStream opens a new streaming transcription session with the given
	// audio format and recognition configuration. The returned StreamHandle is
	// ready to accept audio immediately.
	//
	// The caller owns the StreamHandle and must call Close when done.
	StartStream(ctx context.Context, cfg StreamConfig) (StreamHandle, error)
}

// Package tts defines the Provider interface for speech-synthesis backends.
//
// A TTS provider wraps a synthesis service (e.g., ElevenLabs) and converts one
// sentence of text at a time into raw little-endian 16-bit mono PCM. Voice
// selection happens by language tag: each provider maintains its own mapping
// from base language to a concrete voice, with a default for unmapped
// languages.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Audio is the result of a synthesis request: raw PCM samples plus the rate
// they were rendered at. The relay wraps Audio into a WAV container before
// delivery.
type Audio struct {
	// PCM is raw little-endian 16-bit mono PCM.
	PCM []byte

	// SampleRate is the sample rate of PCM in Hz.
	SampleRate int
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text as speech in the voice selected for language
	// (a BCP-47 tag; providers match on the base language). Returns the
	// synthesized audio or an error. Synthesis failures are non-fatal to the
	// relay pipeline — callers skip audio delivery and keep going.
	Synthesize(ctx context.Context, text, language string) (Audio, error)
}

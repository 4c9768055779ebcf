package stt

// Transcript represents a speech-to-text result from an STT provider.
// Both interim and final transcripts use this type.
type Transcript struct {
	// Text is the transcribed speech fragment.
	Text string

	// IsFinal indicates whether this is a final (confirmed) or interim
	// (provisional) transcript.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). May be zero if
	// the provider does not report confidence.
	Confidence float64
}

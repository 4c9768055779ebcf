// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// ElevenLabs HTTP synthesis API. It implements the tts.Provider interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/voxbridge/voxbridge/pkg/provider/tts"
)

const (
	synthEndpointFmt = "https://api.elevenlabs.io/v1/text-to-speech/%s?output_format=%s"
	voicesEndpoint   = "https://api.elevenlabs.io/v1/voices"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_48000"

	// defaultVoiceID is ElevenLabs' multilingual "Rachel" stock voice, used
	// when no voice is mapped for the requested language.
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the audio output format. Must be one of the raw PCM
// formats ("pcm_16000", "pcm_24000", "pcm_48000") so the payload can be
// WAV-wrapped downstream.
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithVoice maps a base language tag to a voice ID, overriding the default
// voice for that language.
func WithVoice(language, voiceID string) Option {
	return func(p *Provider) {
		p.voices[strings.ToLower(language)] = voiceID
	}
}

// WithDefaultVoice sets the voice used for languages without an explicit
// [WithVoice] mapping.
func WithDefaultVoice(voiceID string) Option {
	return func(p *Provider) {
		p.defaultVoice = voiceID
	}
}

// Provider implements tts.Provider backed by the ElevenLabs HTTP API.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	defaultVoice string
	voices       map[string]string
	httpClient   *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		defaultVoice: defaultVoiceID,
		voices:       make(map[string]string),
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	if _, err := sampleRateOf(p.outputFormat); err != nil {
		return nil, err
	}
	return p, nil
}

// synthRequest is the JSON body for POST /v1/text-to-speech/{voice_id}.
type synthRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize renders text in the voice mapped for language and returns the
// raw PCM payload.
func (p *Provider) Synthesize(ctx context.Context, text, language string) (tts.Audio, error) {
	if strings.TrimSpace(text) == "" {
		return tts.Audio{}, errors.New("elevenlabs: text must not be empty")
	}

	rate, err := sampleRateOf(p.outputFormat)
	if err != nil {
		return tts.Audio{}, err
	}

	body, err := json.Marshal(synthRequest{
		Text:    text,
		ModelID: p.model,
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return tts.Audio{}, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := fmt.Sprintf(synthEndpointFmt, p.voiceFor(language), p.outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return tts.Audio{}, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("elevenlabs: synthesis HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return tts.Audio{}, fmt.Errorf("elevenlabs: synthesis status %d: %s", resp.StatusCode, detail)
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	if len(pcm) == 0 {
		return tts.Audio{}, errors.New("elevenlabs: empty audio response")
	}

	return tts.Audio{PCM: pcm, SampleRate: rate}, nil
}

// voiceFor resolves the voice ID for a BCP-47 language tag, matching on the
// base language and falling back to the default voice.
func (p *Provider) voiceFor(language string) string {
	base, _, _ := strings.Cut(strings.ToLower(language), "-")
	if id, ok := p.voices[base]; ok {
		return id
	}
	return p.defaultVoice
}

// sampleRateOf extracts the sample rate from a pcm_NNNNN output format name.
func sampleRateOf(format string) (int, error) {
	rest, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, fmt.Errorf("elevenlabs: output format %q is not raw PCM", format)
	}
	rate, err := strconv.Atoi(rest)
	if err != nil || rate <= 0 {
		return 0, fmt.Errorf("elevenlabs: invalid output format %q", format)
	}
	return rate, nil
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)

// Package config provides the configuration schema, loader, and provider
// registry for the VoxBridge relay server.
package config

import (
	"fmt"
	"time"
)

// LogLevel controls log verbosity for the VoxBridge server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Duration wraps time.Duration so values can be written in YAML as
// human-readable strings like "1.5s" or "10m".
type Duration time.Duration

// UnmarshalYAML parses a duration string via [time.ParseDuration].
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a standard [time.Duration].
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default pipeline tunables. Used wherever the corresponding config field is
// left at its zero value.
const (
	// DefaultSilenceTimeout is how long speech must be quiet before the
	// accumulated sentence is finalized.
	DefaultSilenceTimeout = 1500 * time.Millisecond

	// DefaultStreamMaxAge is the age at which a recognition stream is
	// proactively rotated, staying under typical provider caps (~60s).
	DefaultStreamMaxAge = 50 * time.Second

	// DefaultSampleRate is the PCM sample rate expected from clients and
	// produced by synthesis.
	DefaultSampleRate = 48000

	// DefaultSessionIdleExpiry is how long a session with no attached
	// connections survives before the janitor removes it.
	DefaultSessionIdleExpiry = 10 * time.Minute

	// DefaultSweepInterval is how often the janitor scans for expired sessions.
	DefaultSweepInterval = time.Minute
)

// Config is the root configuration structure for VoxBridge.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Relay     RelayConfig     `yaml:"relay"`
	Session   SessionConfig   `yaml:"session"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig holds network and logging settings for the VoxBridge server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// PublicBaseURL is the externally reachable base URL used when building
	// join links (e.g., "https://bridge.example.com"). When empty, join links
	// are relative.
	PublicBaseURL string `yaml:"public_base_url"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// RelayConfig holds the speech pipeline tunables. Zero values fall back to
// the package defaults.
type RelayConfig struct {
	// SilenceTimeout is the quiet period that finalizes an accumulated
	// sentence. Default: 1.5s.
	SilenceTimeout Duration `yaml:"silence_timeout"`

	// StreamMaxAge is the recognition stream rotation age. Default: 50s.
	StreamMaxAge Duration `yaml:"stream_max_age"`

	// SampleRate is the PCM sample rate in Hz. Default: 48000.
	SampleRate int `yaml:"sample_rate"`
}

// EffectiveSilenceTimeout returns SilenceTimeout or the default.
func (c RelayConfig) EffectiveSilenceTimeout() time.Duration {
	if c.SilenceTimeout > 0 {
		return c.SilenceTimeout.Std()
	}
	return DefaultSilenceTimeout
}

// EffectiveStreamMaxAge returns StreamMaxAge or the default.
func (c RelayConfig) EffectiveStreamMaxAge() time.Duration {
	if c.StreamMaxAge > 0 {
		return c.StreamMaxAge.Std()
	}
	return DefaultStreamMaxAge
}

// EffectiveSampleRate returns SampleRate or the default.
func (c RelayConfig) EffectiveSampleRate() int {
	if c.SampleRate > 0 {
		return c.SampleRate
	}
	return DefaultSampleRate
}

// SessionConfig holds session registry housekeeping settings.
type SessionConfig struct {
	// IdleExpiry is how long a session with no attached connections survives.
	// Default: 10m.
	IdleExpiry Duration `yaml:"idle_expiry"`

	// SweepInterval is how often expired sessions are collected. Default: 1m.
	SweepInterval Duration `yaml:"sweep_interval"`
}

// EffectiveIdleExpiry returns IdleExpiry or the default.
func (c SessionConfig) EffectiveIdleExpiry() time.Duration {
	if c.IdleExpiry > 0 {
		return c.IdleExpiry.Std()
	}
	return DefaultSessionIdleExpiry
}

// EffectiveSweepInterval returns SweepInterval or the default.
func (c SessionConfig) EffectiveSweepInterval() time.Duration {
	if c.SweepInterval > 0 {
		return c.SweepInterval.Std()
	}
	return DefaultSweepInterval
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	STT       ProviderEntry `yaml:"stt"`
	Translate ProviderEntry `yaml:"translate"`
	TTS       ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "deepgram", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "nova-3", "gpt-4o-mini").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

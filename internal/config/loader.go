package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":       {"deepgram"},
	"translate": {"openai"},
	"tts":       {"elevenlabs"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Relay
	if cfg.Relay.SilenceTimeout < 0 {
		errs = append(errs, fmt.Errorf("relay.silence_timeout %v must not be negative", cfg.Relay.SilenceTimeout.Std()))
	}
	if cfg.Relay.StreamMaxAge < 0 {
		errs = append(errs, fmt.Errorf("relay.stream_max_age %v must not be negative", cfg.Relay.StreamMaxAge.Std()))
	}
	if cfg.Relay.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("relay.sample_rate %d must not be negative", cfg.Relay.SampleRate))
	}

	// Session
	if cfg.Session.IdleExpiry < 0 {
		errs = append(errs, fmt.Errorf("session.idle_expiry %v must not be negative", cfg.Session.IdleExpiry.Std()))
	}
	if cfg.Session.SweepInterval < 0 {
		errs = append(errs, fmt.Errorf("session.sweep_interval %v must not be negative", cfg.Session.SweepInterval.Std()))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("translate", cfg.Providers.Translate.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	// The relay cannot do anything without speech recognition.
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.Translate.Name == "" {
		slog.Warn("no translation provider configured; transcripts will be relayed untranslated")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no synthesis provider configured; partners will receive text only")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

// Package translate defines the Provider interface for machine-translation
// backends.
//
// A translation provider converts one finalized sentence at a time between
// base language tags (e.g., "en" → "es"). Callers are expected to treat
// translation as best-effort: on failure the relay falls back to delivering
// the original text rather than blocking the pipeline.
//
// Implementations must be safe for concurrent use.
package translate

import (
	"context"
	"strings"
)

// Provider is the abstraction over any machine-translation backend.
type Provider interface {
	// Translate converts text from sourceLang to targetLang. Both language
	// arguments are base language tags without a region subtag (use
	// [BaseLang] to normalize full BCP-47 tags first).
	//
	// Returns the translated text, or an error if the backend fails. An empty
	// text input returns an empty result without contacting the backend.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// BaseLang strips the region subtag from a BCP-47 language tag:
// "en-US" → "en", "pt-BR" → "pt". Tags without a region are returned
// lowercased and otherwise unchanged.
func BaseLang(tag string) string {
	base, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(base)
}

// SameBase reports whether two BCP-47 tags share the same base language,
// ignoring region subtags. A sentence between same-base participants is
// passed through without invoking a Provider.
func SameBase(a, b string) bool {
	return BaseLang(a) == BaseLang(b)
}

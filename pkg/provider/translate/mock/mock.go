// Package mock provides a test double for the translate.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/voxbridge/voxbridge/pkg/provider/translate"
)

// TranslateCall records a single invocation of Provider.Translate.
type TranslateCall struct {
	Text       string
	SourceLang string
	TargetLang string
}

// Provider is a mock implementation of translate.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Translate when Fn is nil.
	Result string

	// Err, if non-nil, is returned by every Translate call.
	Err error

	// Fn, if non-nil, computes the result for each call, taking precedence
	// over Result and Err.
	Fn func(text, sourceLang, targetLang string) (string, error)

	// Calls records every Translate invocation in order.
	Calls []TranslateCall
}

// Translate records the call and returns the configured response.
func (p *Provider) Translate(_ context.Context, text, sourceLang, targetLang string) (string, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, TranslateCall{Text: text, SourceLang: sourceLang, TargetLang: targetLang})
	fn := p.Fn
	result, err := p.Result, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(text, sourceLang, targetLang)
	}
	if err != nil {
		return "", err
	}
	return result, nil
}

// CallCount returns the number of Translate calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Ensure Provider implements translate.Provider at compile time.
var _ translate.Provider = (*Provider)(nil)

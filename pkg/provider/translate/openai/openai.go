// Package openai provides a translation provider backed by the OpenAI chat
// completions API. It implements the translate.Provider interface.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

const defaultModel = "gpt-4o-mini"

// systemPromptFmt instructs the model to act as a pure translation function.
// Sentence-at-a-time input keeps prompts short enough that instruction drift
// is not a practical concern.
const systemPromptFmt = "You are a translation engine. Translate the user's text from %s to %s. " +
	"Reply with the translated text only — no quotes, no explanations."

// Option is a functional option for configuring the Provider.
type Option func(*config)

type config struct {
	model   string
	baseURL string
	timeout time.Duration
}

// WithModel sets the chat model used for translation (e.g., "gpt-4o-mini").
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithBaseURL overrides the default OpenAI API base URL. Useful for
// OpenAI-compatible local servers.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Provider implements translate.Provider using OpenAI chat completions.
type Provider struct {
	client oai.Client
	model  string
}

// New constructs a new OpenAI translation Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  cfg.model,
	}, nil
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(fmt.Sprintf(systemPromptFmt, languageName(sourceLang), languageName(targetLang))),
			oai.UserMessage(text),
		},
		Temperature: param.NewOpt(0.2),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("openai: empty translation for %d-byte input", len(text))
	}
	return out, nil
}

// languageName maps common base language tags to English names; the model
// translates more reliably when given a name rather than a bare tag. Unknown
// tags are passed through as-is, which the model also understands.
func languageName(tag string) string {
	names := map[string]string{
		"en": "English",
		"es": "Spanish",
		"fr": "French",
		"de": "German",
		"it": "Italian",
		"pt": "Portuguese",
		"nl": "Dutch",
		"ru": "Russian",
		"uk": "Ukrainian",
		"pl": "Polish",
		"ja": "Japanese",
		"ko": "Korean",
		"zh": "Chinese",
		"ar": "Arabic",
		"hi": "Hindi",
		"tr": "Turkish",
	}
	if name, ok := names[strings.ToLower(tag)]; ok {
		return name
	}
	return tag
}

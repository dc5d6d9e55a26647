// Package llm sends composition prompts to chat-completion providers, falling
// through an ordered list until one answers.
package llm

import (
	"context"
	"errors"

	"salescomposer/internal/prompt"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	DefaultOpenAIBaseURL  = "https://api.openai.com/v1"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	DefaultTemperature    = 0.2
	DefaultMaxTokens      = 1200
)

var (
	// ErrNoProviders means no provider has a credential configured.
	ErrNoProviders = errors.New("no llm provider configured")
	// ErrAllProvidersFailed wraps the joined per-provider errors.
	ErrAllProvidersFailed = errors.New("all llm providers failed")
)

type Prompt = prompt.Prompt

// Reply is the raw text of the first successful provider.
type Reply struct {
	Text     string
	Provider string
	Model    string
}

type Provider interface {
	Name() string
	Model() string
	// Configured reports whether the provider has a credential. Unconfigured
	// providers are skipped without a network call.
	Configured() bool
	Complete(ctx context.Context, p Prompt) (string, error)
}

package interfaces

import (
	"context"
	"errors"
)

// Provider-boundary errors. The generator treats any of these as a signal to
// fall back to the deterministic path rather than surface a failure.
var (
	// ErrProviderUnavailable indicates no provider is configured or reachable
	ErrProviderUnavailable = errors.New("llm provider unavailable")
	// ErrRateLimited indicates the provider rejected the call for quota reasons
	ErrRateLimited = errors.New("llm provider rate limited")
	// ErrProviderTimeout indicates the provider did not answer within the deadline
	ErrProviderTimeout = errors.New("llm provider timeout")
)

// LLMMessage is a single turn sent to a provider
type LLMMessage struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// LLMService abstracts a chat-completion and embedding provider
type LLMService interface {
	// Generate produces a completion for the given conversation
	Generate(ctx context.Context, messages []LLMMessage) (string, error)

	// Embed computes an embedding vector for the given text using the
	// provider's embedding model
	Embed(ctx context.Context, text string) ([]float32, error)

	// HealthCheck verifies the provider is reachable
	HealthCheck(ctx context.Context) error

	// Close releases provider resources
	Close() error
}

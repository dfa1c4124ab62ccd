package llm

import (
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docent/internal/common"
	"github.com/ternarybob/docent/internal/interfaces"
)

// Factory creates and caches provider clients lazily. A provider whose API
// key cannot be resolved simply stays unavailable; the generator's fallback
// handles the rest.
type Factory struct {
	config    *common.Config
	kvStorage interfaces.KeyValueStorage
	logger    arbor.ILogger

	mu      sync.Mutex
	clients map[common.LLMProvider]interfaces.LLMService
}

// NewFactory creates a provider factory. kvStorage may be nil.
func NewFactory(config *common.Config, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) *Factory {
	return &Factory{
		config:    config,
		kvStorage: kvStorage,
		logger:    logger,
		clients:   make(map[common.LLMProvider]interfaces.LLMService),
	}
}

// Get returns the client for a provider, creating it on first use
func (f *Factory) Get(provider common.LLMProvider) (interfaces.LLMService, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[provider]; ok {
		return client, nil
	}

	var client interfaces.LLMService
	var err error
	switch provider {
	case common.LLMProviderGemini:
		client, err = NewGeminiService(&f.config.Gemini, f.config.LLM.EmbedDimension, f.kvStorage, f.logger)
	case common.LLMProviderClaude:
		client, err = NewClaudeService(&f.config.Claude, f.kvStorage, f.logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", provider, err)
	}

	f.clients[provider] = client
	return client, nil
}

// Default returns the configured default provider's client, or nil when no
// provider can be constructed (missing keys). Callers treat nil as
// provider-unavailable.
func (f *Factory) Default() interfaces.LLMService {
	client, err := f.Get(f.config.LLM.DefaultProvider)
	if err != nil {
		f.logger.Warn().
			Err(err).
			Str("provider", string(f.config.LLM.DefaultProvider)).
			Msg("Default LLM provider unavailable")
		return nil
	}
	return client
}

// Order returns available clients in fallback order: the default provider
// first, then the other provider if it can be constructed.
func (f *Factory) Order() []interfaces.LLMService {
	providers := []common.LLMProvider{common.LLMProviderGemini, common.LLMProviderClaude}
	if f.config.LLM.DefaultProvider == common.LLMProviderClaude {
		providers = []common.LLMProvider{common.LLMProviderClaude, common.LLMProviderGemini}
	}

	var clients []interfaces.LLMService
	for _, provider := range providers {
		client, err := f.Get(provider)
		if err != nil {
			f.logger.Debug().
				Err(err).
				Str("provider", string(provider)).
				Msg("Skipping unavailable LLM provider")
			continue
		}
		clients = append(clients, client)
	}
	return clients
}

// Embedder returns the client used for model-strategy embeddings. Only
// Gemini offers an embedding API.
func (f *Factory) Embedder() interfaces.LLMService {
	client, err := f.Get(common.LLMProviderGemini)
	if err != nil {
		f.logger.Warn().Err(err).Msg("Embedding provider unavailable, fallback strategy will be used")
		return nil
	}
	return client
}

// Close releases all cached clients
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for provider, client := range f.clients {
		if err := client.Close(); err != nil {
			f.logger.Warn().Err(err).Str("provider", string(provider)).Msg("Failed to close LLM client")
		}
	}
	f.clients = make(map[common.LLMProvider]interfaces.LLMService)
	return nil
}

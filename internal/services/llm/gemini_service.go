package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ternarybob/docent/internal/common"
	"github.com/ternarybob/docent/internal/interfaces"
)

// GeminiService implements the LLMService interface using the Google Gemini
// API. It provides chat completions and embeddings.
type GeminiService struct {
	config         *common.GeminiConfig
	logger         arbor.ILogger
	client         *genai.Client
	limiter        *rate.Limiter
	retry          *RetryConfig
	timeout        time.Duration
	embedDimension int
}

// convertMessagesToGemini converts []interfaces.LLMMessage to Gemini Content
// format. System messages are extracted separately for SystemInstruction.
func convertMessagesToGemini(messages []interfaces.LLMMessage) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		var geminiRole string
		switch msg.Role {
		case "assistant":
			geminiRole = genai.RoleModel
		default:
			geminiRole = genai.RoleUser
		}

		contents = append(contents, &genai.Content{
			Role:  geminiRole,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}

	return contents, systemText, nil
}

// NewGeminiService creates a new Gemini LLM service instance. The API key is
// resolved env → KV store → config fallback.
func NewGeminiService(config *common.GeminiConfig, embedDimension int, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) (*GeminiService, error) {
	apiKey, err := common.ResolveAPIKey(kvStorage, "gemini_api_key", config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Gemini API key is required (set via DOCENT_GEMINI_API_KEY, KV store, or gemini.api_key in config): %w", err)
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	rateInterval, err := time.ParseDuration(config.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit duration '%s': %w", config.RateLimit, err)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	service := &GeminiService{
		config:         config,
		logger:         logger,
		client:         client,
		limiter:        rate.NewLimiter(rate.Every(rateInterval), 1),
		retry:          NewDefaultRetryConfig(),
		timeout:        timeout,
		embedDimension: embedDimension,
	}

	logger.Debug().
		Str("chat_model", config.Model).
		Str("embed_model", config.EmbedModel).
		Int("embed_dimension", embedDimension).
		Dur("timeout", timeout).
		Msg("Gemini LLM service initialized")

	return service, nil
}

// Generate produces a completion for the given conversation, with one bounded
// retry on transient failure
func (s *GeminiService) Generate(ctx context.Context, messages []interfaces.LLMMessage) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	response, err := s.withRetry(timeoutCtx, "chat", func() (string, error) {
		return s.generateCompletion(timeoutCtx, messages)
	})
	if err != nil {
		return "", s.classifyError(err)
	}

	s.logger.Debug().
		Int("message_count", len(messages)).
		Int("response_length", len(response)).
		Dur("duration", time.Since(start)).
		Msg("Gemini chat completion succeeded")

	return response, nil
}

// Embed generates an embedding vector for the given text using the
// configured embedding model and output dimensionality
func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty for embedding generation")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(timeoutCtx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	outputDim := int32(s.embedDimension)
	result, err := s.client.Models.EmbedContent(timeoutCtx, s.config.EmbedModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{OutputDimensionality: &outputDim})
	if err != nil {
		return nil, s.classifyError(fmt.Errorf("embedding generation failed: %w", err))
	}

	var embedding []float32
	if result != nil && len(result.Embeddings) > 0 {
		embedding = result.Embeddings[0].Values
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned from API")
	}
	if len(embedding) != s.embedDimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.embedDimension, len(embedding))
	}

	return embedding, nil
}

// HealthCheck verifies the service can reach the API
func (s *GeminiService) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("genai client is not initialized: %w", interfaces.ErrProviderUnavailable)
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	embedding, err := s.Embed(healthCtx, "health check probe")
	if err != nil {
		return fmt.Errorf("embedding probe failed: %w", err)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("embedding probe returned empty vector")
	}
	return nil
}

// Close releases resources. The genai client needs no explicit cleanup.
func (s *GeminiService) Close() error {
	s.logger.Debug().Msg("Closing Gemini LLM service")
	s.client = nil
	return nil
}

// withRetry runs a provider call with the bounded retry policy, honoring
// API-suggested delays on rate limit errors
func (s *GeminiService) withRetry(ctx context.Context, operation string, call func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter wait failed: %w", err)
		}

		result, err := call()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == s.retry.MaxRetries || !IsTransientError(err) {
			break
		}

		backoff := s.retry.CalculateBackoff(attempt, ExtractRetryDelay(err))
		s.logger.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Transient Gemini error, retrying")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

// classifyError maps raw provider errors onto the sentinel errors the
// generator's fallback logic keys on
func (s *GeminiService) classifyError(err error) error {
	switch {
	case err == nil:
		return nil
	case IsRateLimitError(err):
		return fmt.Errorf("%w: %v", interfaces.ErrRateLimited, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", interfaces.ErrProviderTimeout, err)
	default:
		return err
	}
}

func (s *GeminiService) generateCompletion(ctx context.Context, messages []interfaces.LLMMessage) (string, error) {
	geminiContents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages to Gemini format: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(s.config.Temperature),
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.config.Model, geminiContents, config)
	if err != nil {
		return "", fmt.Errorf("chat generation failed: %w", err)
	}

	var response strings.Builder
	if resp != nil && len(resp.Candidates) > 0 {
		for _, candidate := range resp.Candidates {
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					response.WriteString(part.Text)
				}
			}
			if response.Len() > 0 {
				break
			}
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from chat model")
	}

	return response.String(), nil
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/docent/internal/common"
	"github.com/ternarybob/docent/internal/interfaces"
)

// ClaudeService implements the LLMService interface using the Anthropic
// Claude API. Claude offers chat completions only; Embed always fails so the
// embedding layer falls through to its deterministic strategy.
type ClaudeService struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    *anthropic.Client
	limiter   *rate.Limiter
	retry     *RetryConfig
	timeout   time.Duration
	maxTokens int
}

// convertMessagesToClaude converts []interfaces.LLMMessage to Claude
// MessageParam format. System messages are extracted for the System parameter.
func convertMessagesToClaude(messages []interfaces.LLMMessage) ([]anthropic.MessageParam, string, error) {
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

	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		switch msg.Role {
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	return claudeMessages, systemText, nil
}

// NewClaudeService creates a new Claude LLM service instance. The API key is
// resolved env → KV store → config fallback.
func NewClaudeService(config *common.ClaudeConfig, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) (*ClaudeService, error) {
	apiKey, err := common.ResolveAPIKey(kvStorage, "anthropic_api_key", config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Anthropic API key is required (set via ANTHROPIC_API_KEY, DOCENT_CLAUDE_API_KEY, or claude.api_key in config): %w", err)
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	rateInterval, err := time.ParseDuration(config.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit duration '%s': %w", config.RateLimit, err)
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	service := &ClaudeService{
		config:    config,
		logger:    logger,
		client:    &client,
		limiter:   rate.NewLimiter(rate.Every(rateInterval), 1),
		retry:     NewDefaultRetryConfig(),
		timeout:   timeout,
		maxTokens: maxTokens,
	}

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Int("max_tokens", maxTokens).
		Msg("Claude LLM service initialized")

	return service, nil
}

// Generate produces a completion for the given conversation, with one bounded
// retry on transient failure
func (s *ClaudeService) Generate(ctx context.Context, messages []interfaces.LLMMessage) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		if err := s.limiter.Wait(timeoutCtx); err != nil {
			return "", fmt.Errorf("rate limiter wait failed: %w", err)
		}

		response, err := s.generateCompletion(timeoutCtx, messages)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if attempt == s.retry.MaxRetries || !IsTransientError(err) {
			break
		}

		backoff := s.retry.CalculateBackoff(attempt, ExtractRetryDelay(err))
		s.logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Transient Claude error, retrying")

		select {
		case <-time.After(backoff):
		case <-timeoutCtx.Done():
			return "", timeoutCtx.Err()
		}
	}

	return "", s.classifyError(lastErr)
}

// Embed is not supported by the Anthropic API
func (s *ClaudeService) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("Claude does not provide an embedding API: %w", interfaces.ErrProviderUnavailable)
}

// HealthCheck verifies the service can reach the API
func (s *ClaudeService) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("Claude client is not initialized: %w", interfaces.ErrProviderUnavailable)
	}

	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	response, err := s.generateCompletion(healthCtx, []interfaces.LLMMessage{
		{Role: "user", Content: "ping"},
	})
	if err != nil {
		return fmt.Errorf("Claude probe failed: %w", err)
	}
	if len(strings.TrimSpace(response)) == 0 {
		return fmt.Errorf("Claude probe returned empty response")
	}
	return nil
}

// Close releases resources. The Claude client needs no explicit cleanup.
func (s *ClaudeService) Close() error {
	s.logger.Debug().Msg("Closing Claude LLM service")
	s.client = nil
	return nil
}

func (s *ClaudeService) classifyError(err error) error {
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

func (s *ClaudeService) generateCompletion(ctx context.Context, messages []interfaces.LLMMessage) (string, error) {
	claudeMessages, systemText, err := convertMessagesToClaude(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages to Claude format: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.maxTokens),
		Messages:  claudeMessages,
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from Claude API")
	}

	return response.String(), nil
}

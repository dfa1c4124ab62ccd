package llm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"429 status", errors.New("Error 429: too many requests"), true},
		{"resource exhausted", errors.New("RESOURCE_EXHAUSTED: quota exceeded"), true},
		{"quota message", errors.New("quota limit reached"), true},
		{"anthropic rate limit", errors.New("rate_limit_error: rate limited"), true},
		{"unrelated error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRateLimitError(tt.err))
		})
	}
}

func TestIsTransientError(t *testing.T) {
	assert.True(t, IsTransientError(errors.New("503 Service Unavailable")))
	assert.True(t, IsTransientError(errors.New("model overloaded")))
	assert.True(t, IsTransientError(errors.New("Error 429")))
	assert.False(t, IsTransientError(errors.New("invalid api key")))
	assert.False(t, IsTransientError(nil))
}

func TestExtractRetryDelay(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected time.Duration
	}{
		{"nil error", nil, 0},
		{
			"gemini style",
			errors.New("Error 429, Message: Please retry in 45.387061394s., Status: RESOURCE_EXHAUSTED"),
			time.Duration(45.387061394 * float64(time.Second)),
		},
		{
			"retryDelay field",
			errors.New("retryDelay: 30s"),
			30 * time.Second,
		},
		{"no delay present", errors.New("Error 429"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, float64(tt.expected), float64(ExtractRetryDelay(tt.err)), float64(time.Millisecond))
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := &RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}

	assert.Equal(t, 2*time.Second, cfg.CalculateBackoff(0, 0))
	assert.Equal(t, 4*time.Second, cfg.CalculateBackoff(1, 0))
	// Capped at MaxBackoff
	assert.Equal(t, 10*time.Second, cfg.CalculateBackoff(5, 0))
}

func TestCalculateBackoff_UsesAPIDelay(t *testing.T) {
	cfg := NewDefaultRetryConfig()

	// API-provided delay plus buffer takes precedence over InitialBackoff
	backoff := cfg.CalculateBackoff(0, 30*time.Second)
	assert.Equal(t, 31*time.Second, backoff)
}

func TestNewDefaultRetryConfig_SingleBoundedRetry(t *testing.T) {
	cfg := NewDefaultRetryConfig()
	assert.Equal(t, 1, cfg.MaxRetries)
}

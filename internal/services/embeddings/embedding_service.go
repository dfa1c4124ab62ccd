// Package embeddings turns text into vectors, preferring the provider's
// embedding model and degrading to a deterministic local strategy when the
// provider is unavailable.
package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docent/internal/interfaces"
	"github.com/ternarybob/docent/internal/models"
)

// Service implements the EmbeddingService interface
type Service struct {
	llmService interfaces.LLMService // nil when no provider is configured
	dimension  int                   // expected model-strategy dimension
	logger     arbor.ILogger
}

// NewService creates a new embedding service. llmService may be nil, in which
// case every embedding uses the fallback strategy.
func NewService(llmService interfaces.LLMService, dimension int, logger arbor.ILogger) interfaces.EmbeddingService {
	return &Service{
		llmService: llmService,
		dimension:  dimension,
		logger:     logger,
	}
}

// EmbedText embeds a single text. The model strategy is attempted first; any
// provider failure degrades to the fallback strategy and the result records
// which strategy produced it.
func (s *Service) EmbedText(ctx context.Context, text string) (*interfaces.EmbeddingResult, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	if s.llmService != nil {
		start := time.Now()
		vector, err := s.llmService.Embed(ctx, text)
		if err == nil && len(vector) > 0 {
			s.logger.Debug().
				Int("dimension", len(vector)).
				Dur("duration", time.Since(start)).
				Msg("Generated model embedding")
			return &interfaces.EmbeddingResult{
				Vector:    vector,
				Strategy:  models.EmbeddingStrategyModel,
				Dimension: len(vector),
			}, nil
		}
		s.logger.Warn().Err(err).Msg("Model embedding failed, using fallback strategy")
	}

	return s.fallbackResult(text), nil
}

// EmbedBatch embeds a batch with one consistent strategy. The model strategy
// is tried for the whole batch; if any text fails, the entire batch is
// recomputed with the fallback so a document never mixes strategies.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([]*interfaces.EmbeddingResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if s.llmService != nil {
		results := make([]*interfaces.EmbeddingResult, 0, len(texts))
		ok := true
		for _, text := range texts {
			vector, err := s.llmService.Embed(ctx, text)
			if err != nil || len(vector) == 0 {
				s.logger.Warn().
					Err(err).
					Int("batch_size", len(texts)).
					Msg("Model embedding failed mid-batch, recomputing batch with fallback")
				ok = false
				break
			}
			results = append(results, &interfaces.EmbeddingResult{
				Vector:    vector,
				Strategy:  models.EmbeddingStrategyModel,
				Dimension: len(vector),
			})
		}
		if ok {
			return results, nil
		}
	}

	results := make([]*interfaces.EmbeddingResult, len(texts))
	for i, text := range texts {
		results[i] = s.fallbackResult(text)
	}
	return results, nil
}

// EmbedWithStrategy embeds text with the given strategy only. Unlike
// EmbedText there is no cross-strategy fallback: a model-strategy failure is
// an error, so a query vector can never silently switch strategies.
func (s *Service) EmbedWithStrategy(ctx context.Context, text string, strategy models.EmbeddingStrategy) (*interfaces.EmbeddingResult, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	switch strategy {
	case models.EmbeddingStrategyFallback:
		return s.fallbackResult(text), nil

	case models.EmbeddingStrategyModel:
		if s.llmService == nil {
			return nil, fmt.Errorf("model strategy requested but no provider configured: %w", interfaces.ErrProviderUnavailable)
		}
		vector, err := s.llmService.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to generate model embedding: %w", err)
		}
		if len(vector) == 0 {
			return nil, fmt.Errorf("provider returned empty embedding")
		}
		return &interfaces.EmbeddingResult{
			Vector:    vector,
			Strategy:  models.EmbeddingStrategyModel,
			Dimension: len(vector),
		}, nil

	default:
		return nil, fmt.Errorf("unknown embedding strategy: %s", strategy)
	}
}

func (s *Service) fallbackResult(text string) *interfaces.EmbeddingResult {
	return &interfaces.EmbeddingResult{
		Vector:    FallbackEmbedding(text),
		Strategy:  models.EmbeddingStrategyFallback,
		Dimension: FallbackDimension,
	}
}

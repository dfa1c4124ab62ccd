package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/docent/internal/models"
)

// ErrStrategyMismatch is returned when a query vector's strategy or dimension
// does not match the strategy recorded on the target document. Similarity is
// never computed across strategies.
var ErrStrategyMismatch = errors.New("embedding strategy mismatch")

// EmbeddingResult carries a vector together with the strategy that produced it
type EmbeddingResult struct {
	Vector    []float32                `json:"vector"`
	Strategy  models.EmbeddingStrategy `json:"strategy"`
	Dimension int                      `json:"dimension"`
}

// EmbeddingService produces embedding vectors for text. The model strategy is
// attempted first; on provider failure the deterministic fallback is used and
// the result is labelled accordingly.
type EmbeddingService interface {
	// EmbedText embeds a single text, model strategy first with fallback
	EmbedText(ctx context.Context, text string) (*EmbeddingResult, error)

	// EmbedBatch embeds a batch of texts with one consistent strategy: if any
	// text falls back, the whole batch is recomputed with the fallback
	EmbedBatch(ctx context.Context, texts []string) ([]*EmbeddingResult, error)

	// EmbedWithStrategy embeds text using the given strategy only, without
	// fallback. Used for query vectors that must match a document's recorded
	// strategy.
	EmbedWithStrategy(ctx context.Context, text string, strategy models.EmbeddingStrategy) (*EmbeddingResult, error)
}

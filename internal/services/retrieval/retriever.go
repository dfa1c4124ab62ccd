// Package retrieval ranks a document's chunks against a question and returns
// the most relevant ones for context assembly.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docent/internal/interfaces"
	"github.com/ternarybob/docent/internal/models"
	"github.com/ternarybob/docent/internal/vectors"
)

// Result is one retrieved chunk with its relevance score
type Result struct {
	Chunk *models.Chunk
	Score float64
}

// Engine retrieves relevant chunks by cosine similarity. It prefers the
// storage-native search path when the storage backend offers one and falls
// back to an in-memory linear scan; both paths share the same scoring math
// and ordering.
type Engine struct {
	docStorage interfaces.DocumentStorage
	embedder   interfaces.EmbeddingService
	topK       int
	minScore   float64
	logger     arbor.ILogger
}

// NewEngine creates a retrieval engine. topK is the default result count and
// minScore the relevance floor below which chunks are discarded.
func NewEngine(docStorage interfaces.DocumentStorage, embedder interfaces.EmbeddingService, topK int, minScore float64, logger arbor.ILogger) *Engine {
	if topK <= 0 {
		topK = 3
	}
	return &Engine{
		docStorage: docStorage,
		embedder:   embedder,
		topK:       topK,
		minScore:   minScore,
		logger:     logger,
	}
}

// MinScore returns the configured relevance floor
func (e *Engine) MinScore() float64 {
	return e.minScore
}

// Retrieve embeds the question with the document's recorded strategy and
// returns up to k chunks clearing the relevance floor, best first. A document
// with no chunks yields no results and no error.
func (e *Engine) Retrieve(ctx context.Context, doc *models.Document, question string, k int) ([]Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is required")
	}
	if doc.ChunkCount == 0 || doc.Status != models.DocumentStatusReady {
		return nil, nil
	}
	if k <= 0 {
		k = e.topK
	}

	strategy := doc.EmbeddingStrategy
	if strategy == "" {
		strategy = models.EmbeddingStrategyFallback
	}

	query, err := e.embedder.EmbedWithStrategy(ctx, question, strategy)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	return e.RetrieveVector(doc, query.Vector, query.Strategy, k)
}

// RetrieveVector ranks a document's chunks against a pre-computed query
// vector. The vector's strategy and dimension must match what the document
// recorded; similarity across strategies is never computed.
func (e *Engine) RetrieveVector(doc *models.Document, query []float32, strategy models.EmbeddingStrategy, k int) ([]Result, error) {
	if doc.EmbeddingStrategy != "" && strategy != doc.EmbeddingStrategy {
		return nil, fmt.Errorf("query strategy %s vs document strategy %s: %w",
			strategy, doc.EmbeddingStrategy, interfaces.ErrStrategyMismatch)
	}
	if doc.EmbeddingDimension != 0 && len(query) != doc.EmbeddingDimension {
		return nil, fmt.Errorf("query dimension %d vs document dimension %d: %w",
			len(query), doc.EmbeddingDimension, interfaces.ErrStrategyMismatch)
	}
	if k <= 0 {
		k = e.topK
	}

	if searcher, ok := e.docStorage.(interfaces.ChunkVectorSearcher); ok {
		results, err := e.retrieveNative(searcher, doc.ID, query, k)
		if err == nil {
			return results, nil
		}
		e.logger.Warn().Err(err).
			Str("doc_id", doc.ID).
			Msg("Storage-native vector search failed, using linear scan")
	}

	return e.retrieveLinear(doc.ID, query, k)
}

// retrieveNative delegates scoring to the storage layer, then loads the
// winning chunks
func (e *Engine) retrieveNative(searcher interfaces.ChunkVectorSearcher, documentID string, query []float32, k int) ([]Result, error) {
	scores, err := searcher.SearchChunkVectors(documentID, query, k)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(scores))
	for _, score := range scores {
		if score.Score < e.minScore {
			continue
		}
		chunk, err := e.docStorage.GetChunk(score.ChunkID)
		if err != nil {
			return nil, fmt.Errorf("failed to load chunk %s: %w", score.ChunkID, err)
		}
		results = append(results, Result{Chunk: chunk, Score: score.Score})
	}
	return results, nil
}

// retrieveLinear scans all of a document's chunks in memory. Ordering: score
// descending, position ascending for ties.
func (e *Engine) retrieveLinear(documentID string, query []float32, k int) ([]Result, error) {
	chunks, err := e.docStorage.GetChunks(documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	results := make([]Result, 0, len(chunks))
	for _, chunk := range chunks {
		score := vectors.Cosine(query, chunk.Embedding)
		if score < e.minScore {
			continue
		}
		results = append(results, Result{Chunk: chunk, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Position < results[j].Chunk.Position
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

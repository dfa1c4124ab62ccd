// Package documents orchestrates the document lifecycle: extraction,
// chunking, embedding, atomic chunk replacement, and cross-document search.
package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docent/internal/common"
	"github.com/ternarybob/docent/internal/interfaces"
	"github.com/ternarybob/docent/internal/models"
	"github.com/ternarybob/docent/internal/services/chunker"
	"github.com/ternarybob/docent/internal/services/retrieval"
)

// summaryInputLimit caps the text sent to a provider for summarization
const summaryInputLimit = 4000

// qaInputLimit caps the text sent to a provider for question generation
const qaInputLimit = 3000

// defaultQACount is the number of question-answer pairs generated when the
// caller does not ask for a specific count
const defaultQACount = 5

// Service implements the DocumentService interface
type Service struct {
	storage   interfaces.DocumentStorage
	sessions  interfaces.SessionStorage
	extractor interfaces.TextExtractor
	chunker   *chunker.Chunker
	embedder  interfaces.EmbeddingService
	engine    *retrieval.Engine
	providers []interfaces.LLMService // fallback order for summaries; may be empty
	validate  *validator.Validate
	logger    arbor.ILogger
}

// NewService creates the document service
func NewService(
	storage interfaces.DocumentStorage,
	sessions interfaces.SessionStorage,
	extractor interfaces.TextExtractor,
	chunkSvc *chunker.Chunker,
	embedder interfaces.EmbeddingService,
	engine *retrieval.Engine,
	providers []interfaces.LLMService,
	logger arbor.ILogger,
) *Service {
	return &Service{
		storage:   storage,
		sessions:  sessions,
		extractor: extractor,
		chunker:   chunkSvc,
		embedder:  embedder,
		engine:    engine,
		providers: providers,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Submit extracts text from the uploaded bytes, stores the document and
// processes it into embedded chunks. Extraction failure is recorded on the
// document rather than returned: the document lands in failed status.
func (s *Service) Submit(ctx context.Context, req *interfaces.SubmitDocumentRequest) (*models.Document, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid document submission: %w", err)
	}

	doc := &models.Document{
		ID:       common.NewDocumentID(),
		OwnerID:  req.OwnerID,
		Title:    req.Title,
		Filename: req.Filename,
		Status:   models.DocumentStatusPending,
	}

	text, err := s.extractor.ExtractText(ctx, req.Filename, req.Data)
	if err != nil {
		if errors.Is(err, interfaces.ErrUnsupportedFormat) {
			return nil, fmt.Errorf("cannot submit %s: %w", req.Filename, err)
		}
		doc.Status = models.DocumentStatusFailed
		doc.FailReason = fmt.Sprintf("text extraction failed: %v", err)
		if saveErr := s.storage.SaveDocument(doc); saveErr != nil {
			return nil, fmt.Errorf("failed to save document: %w", saveErr)
		}
		s.logger.Warn().
			Err(err).
			Str("doc_id", doc.ID).
			Str("filename", req.Filename).
			Msg("Document stored as failed after extraction error")
		return doc, nil
	}

	doc.Content = text
	if err := s.storage.SaveDocument(doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	if err := s.process(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Reprocess re-runs chunking and embedding for a document. The chunk set is
// replaced atomically, so repeating it is safe and readers never see a
// partial set.
func (s *Service) Reprocess(ctx context.Context, documentID, ownerID string) (*models.Document, error) {
	doc, err := s.getOwned(documentID, ownerID)
	if err != nil {
		return nil, err
	}

	if err := s.process(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// process chunks and embeds a document's content and swaps in the new chunk
// set. All chunks of one run share a single embedding strategy, recorded on
// the document.
func (s *Service) process(ctx context.Context, doc *models.Document) error {
	fragments := s.chunker.Chunk(doc.Content)
	if len(fragments) == 0 {
		doc.Status = models.DocumentStatusFailed
		doc.FailReason = "document contains no substantive text"
		doc.ChunkCount = 0
		doc.EmbeddingStrategy = ""
		doc.EmbeddingDimension = 0
		if err := s.storage.ReplaceChunks(doc.ID, nil); err != nil {
			return fmt.Errorf("failed to clear chunks: %w", err)
		}
		if err := s.storage.SaveDocument(doc); err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}
		s.logger.Info().Str("doc_id", doc.ID).Msg("Document has no chunkable text")
		return nil
	}

	texts := make([]string, len(fragments))
	for i, fragment := range fragments {
		texts[i] = fragment.Text
	}

	results, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(results) != len(fragments) {
		return fmt.Errorf("embedding count mismatch: %d fragments, %d vectors", len(fragments), len(results))
	}

	now := time.Now()
	chunks := make([]*models.Chunk, len(fragments))
	for i, fragment := range fragments {
		chunks[i] = &models.Chunk{
			ID:          common.NewChunkID(),
			DocumentID:  doc.ID,
			Position:    i,
			Text:        fragment.Text,
			Embedding:   results[i].Vector,
			StartOffset: fragment.Start,
			EndOffset:   fragment.End,
			CreatedAt:   now,
		}
	}

	if err := s.storage.ReplaceChunks(doc.ID, chunks); err != nil {
		return fmt.Errorf("failed to replace chunks: %w", err)
	}

	doc.Status = models.DocumentStatusReady
	doc.FailReason = ""
	doc.ChunkCount = len(chunks)
	doc.EmbeddingStrategy = results[0].Strategy
	doc.EmbeddingDimension = results[0].Dimension
	if err := s.storage.SaveDocument(doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	s.logger.Info().
		Str("doc_id", doc.ID).
		Int("chunks", len(chunks)).
		Str("strategy", string(doc.EmbeddingStrategy)).
		Int("dimension", doc.EmbeddingDimension).
		Msg("Document processed")
	return nil
}

// getOwned loads a document and verifies it belongs to ownerID. Documents of
// other owners are reported as not found, never as forbidden, so ids cannot
// be probed.
func (s *Service) getOwned(documentID, ownerID string) (*models.Document, error) {
	doc, err := s.storage.GetDocument(documentID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, fmt.Errorf("document %s: %w", documentID, interfaces.ErrNotFound)
	}
	return doc, nil
}

// GetDocument returns a document by id, scoped to its owner
func (s *Service) GetDocument(documentID, ownerID string) (*models.Document, error) {
	return s.getOwned(documentID, ownerID)
}

// ListDocuments returns an owner's documents, newest first
func (s *Service) ListDocuments(ownerID string) ([]*models.Document, error) {
	return s.storage.ListDocumentsByOwner(ownerID)
}

// DeleteDocument removes a document, its chunks and every session bound to it
func (s *Service) DeleteDocument(documentID, ownerID string) error {
	if _, err := s.getOwned(documentID, ownerID); err != nil {
		return err
	}
	if err := s.storage.DeleteDocument(documentID); err != nil {
		return err
	}
	if err := s.sessions.DeleteSessionsByDocument(documentID); err != nil {
		return fmt.Errorf("failed to delete sessions for document %s: %w", documentID, err)
	}
	s.logger.Info().Str("doc_id", documentID).Msg("Deleted document with chunks and sessions")
	return nil
}

// Search performs cross-document semantic search over an owner's ready
// documents. Each document is queried with a vector of its own recorded
// strategy; documents whose strategy cannot currently be served are skipped.
func (s *Service) Search(ctx context.Context, req *interfaces.SearchRequest) ([]interfaces.SearchResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	docs, err := s.storage.ListDocumentsByOwner(req.OwnerID)
	if err != nil {
		return nil, err
	}

	// One query embedding per strategy, computed lazily
	queries := make(map[models.EmbeddingStrategy]*interfaces.EmbeddingResult)

	var merged []interfaces.SearchResult
	for _, doc := range docs {
		if doc.Status != models.DocumentStatusReady || doc.ChunkCount == 0 {
			continue
		}

		strategy := doc.EmbeddingStrategy
		if strategy == "" {
			strategy = models.EmbeddingStrategyFallback
		}

		query, ok := queries[strategy]
		if !ok {
			query, err = s.embedder.EmbedWithStrategy(ctx, req.Query, strategy)
			if err != nil {
				s.logger.Warn().
					Err(err).
					Str("strategy", string(strategy)).
					Msg("Cannot embed query for strategy, skipping its documents")
				queries[strategy] = nil
				continue
			}
			queries[strategy] = query
		}
		if query == nil {
			continue
		}

		results, err := s.engine.RetrieveVector(doc, query.Vector, query.Strategy, limit)
		if err != nil {
			s.logger.Warn().Err(err).Str("doc_id", doc.ID).Msg("Search failed for document, skipping")
			continue
		}
		for _, result := range results {
			merged = append(merged, interfaces.SearchResult{
				ChunkID:       result.Chunk.ID,
				DocumentID:    doc.ID,
				DocumentTitle: doc.Title,
				Position:      result.Chunk.Position,
				Text:          result.Chunk.Text,
				Score:         result.Score,
			})
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		if merged[i].DocumentID != merged[j].DocumentID {
			return merged[i].DocumentID < merged[j].DocumentID
		}
		return merged[i].Position < merged[j].Position
	})

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// Summarize produces a short summary of the document. Providers are tried in
// order; when none answers, the extractive first-sentences fallback is used.
func (s *Service) Summarize(ctx context.Context, documentID, ownerID string) (string, error) {
	doc, err := s.getOwned(documentID, ownerID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(doc.Content) == "" {
		return "", fmt.Errorf("document %s has no text to summarize", documentID)
	}

	input := doc.Content
	if len(input) > summaryInputLimit {
		input = input[:summaryInputLimit]
	}

	messages := []interfaces.LLMMessage{
		{Role: "system", Content: "Summarize documents concisely in two or three sentences."},
		{Role: "user", Content: fmt.Sprintf("Summarize this document titled %q:\n\n%s", doc.Title, input)},
	}
	for _, provider := range s.providers {
		summary, err := provider.Generate(ctx, messages)
		if err == nil && strings.TrimSpace(summary) != "" {
			return strings.TrimSpace(summary), nil
		}
		s.logger.Warn().Err(err).Str("doc_id", doc.ID).Msg("Provider summary failed, trying next")
	}

	return extractiveSummary(doc.Content), nil
}

// AnalyzeStructure computes counts, keywords and reading time for a document
func (s *Service) AnalyzeStructure(documentID, ownerID string) (*models.DocumentStructure, error) {
	doc, err := s.getOwned(documentID, ownerID)
	if err != nil {
		return nil, err
	}
	return analyzeText(doc.Content), nil
}

// GenerateQA produces question-answer pairs from the document content.
// Providers are tried in order; when none yields parseable pairs, simple
// pairs are extracted from the document's own sentences.
func (s *Service) GenerateQA(ctx context.Context, documentID, ownerID string, count int) ([]models.QAPair, error) {
	doc, err := s.getOwned(documentID, ownerID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Content) == "" {
		return nil, fmt.Errorf("document %s has no text to generate questions from", documentID)
	}
	if count <= 0 {
		count = defaultQACount
	}

	input := doc.Content
	if len(input) > qaInputLimit {
		input = input[:qaInputLimit]
	}

	messages := []interfaces.LLMMessage{
		{Role: "system", Content: fmt.Sprintf(
			`Generate %d question-answer pairs based on the document content. Respond with only a JSON array: [{"question": "...", "answer": "..."}]`, count)},
		{Role: "user", Content: fmt.Sprintf("Document content:\n%s", input)},
	}
	for _, provider := range s.providers {
		response, err := provider.Generate(ctx, messages)
		if err != nil {
			s.logger.Warn().Err(err).Str("doc_id", doc.ID).Msg("Provider QA generation failed, trying next")
			continue
		}
		pairs, err := parseQAPairs(response)
		if err != nil {
			s.logger.Warn().Err(err).Str("doc_id", doc.ID).Msg("Provider QA response not parseable, trying next")
			continue
		}
		if len(pairs) > count {
			pairs = pairs[:count]
		}
		return pairs, nil
	}

	return extractiveQAPairs(doc.Content, count), nil
}

// parseQAPairs extracts the JSON array from a provider response, tolerating
// surrounding prose or code fences
func parseQAPairs(response string) ([]models.QAPair, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var pairs []models.QAPair
	if err := json.Unmarshal([]byte(response[start:end+1]), &pairs); err != nil {
		return nil, fmt.Errorf("failed to parse QA pairs: %w", err)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("response contained no QA pairs")
	}
	return pairs, nil
}

package badger

import (
	"fmt"
	"sort"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/docent/internal/interfaces"
	"github.com/ternarybob/docent/internal/models"
	"github.com/ternarybob/docent/internal/vectors"
)

// DocumentStorage implements the DocumentStorage interface for Badger.
// It also implements ChunkVectorSearcher, the storage-native similarity path.
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStorage {
	return &DocumentStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DocumentStorage) SaveDocument(doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) GetDocument(id string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.Store().Get(id, &doc); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStorage) ListDocumentsByOwner(ownerID string) ([]*models.Document, error) {
	var docs []models.Document
	err := s.db.Store().Find(&docs, badgerhold.Where("OwnerID").Eq(ownerID).SortBy("CreatedAt").Reverse())
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	result := make([]*models.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

func (s *DocumentStorage) ListDocumentsByStatus(status models.DocumentStatus, limit int) ([]*models.Document, error) {
	query := badgerhold.Where("Status").Eq(status).SortBy("UpdatedAt")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var docs []models.Document
	if err := s.db.Store().Find(&docs, query); err != nil {
		return nil, fmt.Errorf("failed to list documents by status: %w", err)
	}

	result := make([]*models.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

// DeleteDocument removes a document and all of its chunks
func (s *DocumentStorage) DeleteDocument(id string) error {
	if err := s.db.Store().Delete(id, &models.Document{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrNotFound
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if err := s.db.Store().DeleteMatching(&models.Chunk{}, badgerhold.Where("DocumentID").Eq(id)); err != nil {
		return fmt.Errorf("failed to delete chunks for document %s: %w", id, err)
	}
	return nil
}

func (s *DocumentStorage) CountDocuments() (int, error) {
	count, err := s.db.Store().Count(&models.Document{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(count), nil
}

func (s *DocumentStorage) GetStats() (*models.DocumentStats, error) {
	total, err := s.db.Store().Count(&models.Document{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	ready, err := s.db.Store().Count(&models.Document{}, badgerhold.Where("Status").Eq(models.DocumentStatusReady))
	if err != nil {
		return nil, fmt.Errorf("failed to count ready documents: %w", err)
	}

	chunks, err := s.db.Store().Count(&models.Chunk{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	return &models.DocumentStats{
		TotalDocuments: int(total),
		ReadyDocuments: int(ready),
		TotalChunks:    int(chunks),
		LastUpdated:    time.Now(),
	}, nil
}

// ReplaceChunks swaps a document's full chunk set inside one Badger
// transaction. Readers never observe a mix of old and new chunks.
func (s *DocumentStorage) ReplaceChunks(documentID string, chunks []*models.Chunk) error {
	if documentID == "" {
		return fmt.Errorf("document ID is required")
	}

	store := s.db.Store()
	err := store.Badger().Update(func(txn *badgerdb.Txn) error {
		var existing []models.Chunk
		if err := store.TxFind(txn, &existing, badgerhold.Where("DocumentID").Eq(documentID)); err != nil {
			return fmt.Errorf("failed to find existing chunks: %w", err)
		}

		for i := range existing {
			if err := store.TxDelete(txn, existing[i].ID, models.Chunk{}); err != nil && err != badgerhold.ErrNotFound {
				return fmt.Errorf("failed to delete chunk %s: %w", existing[i].ID, err)
			}
		}

		for _, chunk := range chunks {
			if chunk.CreatedAt.IsZero() {
				chunk.CreatedAt = time.Now()
			}
			if err := store.TxInsert(txn, chunk.ID, chunk); err != nil {
				return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace chunks for document %s: %w", documentID, err)
	}

	s.logger.Debug().
		Str("doc_id", documentID).
		Int("chunks", len(chunks)).
		Msg("Replaced chunk set")
	return nil
}

// GetChunks returns a document's chunks ordered by position
func (s *DocumentStorage) GetChunks(documentID string) ([]*models.Chunk, error) {
	var chunks []models.Chunk
	err := s.db.Store().Find(&chunks, badgerhold.Where("DocumentID").Eq(documentID).SortBy("Position"))
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}

	result := make([]*models.Chunk, len(chunks))
	for i := range chunks {
		result[i] = &chunks[i]
	}
	return result, nil
}

func (s *DocumentStorage) GetChunk(id string) (*models.Chunk, error) {
	var chunk models.Chunk
	if err := s.db.Store().Get(id, &chunk); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	return &chunk, nil
}

func (s *DocumentStorage) CountChunks(documentID string) (int, error) {
	count, err := s.db.Store().Count(&models.Chunk{}, badgerhold.Where("DocumentID").Eq(documentID))
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return int(count), nil
}

// SearchChunkVectors ranks a document's chunks against a query vector inside
// the storage layer. Ordering: score descending, then position ascending for
// ties, same as the in-memory path.
func (s *DocumentStorage) SearchChunkVectors(documentID string, query []float32, k int) ([]interfaces.ChunkScore, error) {
	var chunks []models.Chunk
	err := s.db.Store().Find(&chunks, badgerhold.Where("DocumentID").Eq(documentID))
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunks: %w", err)
	}

	scores := make([]interfaces.ChunkScore, 0, len(chunks))
	for i := range chunks {
		scores = append(scores, interfaces.ChunkScore{
			ChunkID:  chunks[i].ID,
			Position: chunks[i].Position,
			Score:    vectors.Cosine(query, chunks[i].Embedding),
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Position < scores[j].Position
	})

	if k > 0 && len(scores) > k {
		scores = scores[:k]
	}
	return scores, nil
}

package interfaces

import (
	"errors"

	"github.com/ternarybob/docent/internal/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// DocumentStorage - persistence for documents and their chunk sets
type DocumentStorage interface {
	// Document operations
	SaveDocument(doc *models.Document) error
	GetDocument(id string) (*models.Document, error)
	ListDocumentsByOwner(ownerID string) ([]*models.Document, error)
	ListDocumentsByStatus(status models.DocumentStatus, limit int) ([]*models.Document, error)
	DeleteDocument(id string) error
	CountDocuments() (int, error)
	GetStats() (*models.DocumentStats, error)

	// Chunk operations. ReplaceChunks swaps the full chunk set for a document
	// in a single transaction - readers never observe a partial set.
	ReplaceChunks(documentID string, chunks []*models.Chunk) error
	GetChunks(documentID string) ([]*models.Chunk, error)
	GetChunk(id string) (*models.Chunk, error)
	CountChunks(documentID string) (int, error)
}

// ChunkScore pairs a chunk with its similarity score for a query
type ChunkScore struct {
	ChunkID  string  `json:"chunk_id"`
	Position int     `json:"position"`
	Score    float64 `json:"score"`
}

// ChunkVectorSearcher is the optional storage-native similarity path. Storage
// backends that can rank chunk vectors themselves implement this; the
// retrieval engine falls back to an in-memory linear scan when they do not.
// Both paths must produce identical rankings for identical inputs.
type ChunkVectorSearcher interface {
	SearchChunkVectors(documentID string, query []float32, k int) ([]ChunkScore, error)
}

// SessionStorage - persistence for chat sessions and their message history
type SessionStorage interface {
	SaveSession(session *models.ChatSession) error
	GetSession(id string) (*models.ChatSession, error)
	ListSessionsByOwner(ownerID string) ([]*models.ChatSession, error)
	ListSessionsByDocument(documentID string) ([]*models.ChatSession, error)

	// AppendMessage adds a message to the end of a session's history and
	// bumps LastActivityAt. History is append-only.
	AppendMessage(sessionID string, msg models.Message) error

	DeleteSession(id string) error
	// DeleteSessionsByDocument cascades when a document is removed
	DeleteSessionsByDocument(documentID string) error
}

// StorageManager provides access to all storage implementations
type StorageManager interface {
	DocumentStorage() DocumentStorage
	SessionStorage() SessionStorage
	KeyValueStorage() KeyValueStorage
	Close() error
}

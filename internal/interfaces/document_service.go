package interfaces

import (
	"context"

	"github.com/ternarybob/docent/internal/models"
)

// SubmitDocumentRequest submits raw document bytes for processing
type SubmitDocumentRequest struct {
	OwnerID  string `json:"owner_id" validate:"required"`
	Title    string `json:"title" validate:"required,min=1,max=512"`
	Filename string `json:"filename" validate:"required"`
	Data     []byte `json:"data" validate:"required"`
}

// SearchRequest searches across all of an owner's ready documents
type SearchRequest struct {
	OwnerID string `json:"owner_id" validate:"required"`
	Query   string `json:"query" validate:"required,min=1"`
	Limit   int    `json:"limit" validate:"omitempty,min=1,max=50"`
}

// SearchResult is one scored chunk from cross-document search
type SearchResult struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	Position      int     `json:"position"`
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
}

// DocumentService manages the document lifecycle and search
type DocumentService interface {
	// Submit extracts text, stores the document and processes it into
	// embedded chunks. Extraction failure stores the document as failed.
	Submit(ctx context.Context, req *SubmitDocumentRequest) (*models.Document, error)

	// Reprocess re-runs chunking and embedding for a document, replacing
	// its chunk set atomically. Safe to repeat. Documents belonging to a
	// different owner are reported as not found.
	Reprocess(ctx context.Context, documentID, ownerID string) (*models.Document, error)

	// GetDocument returns a document by id. Documents belonging to a
	// different owner are reported as not found.
	GetDocument(documentID, ownerID string) (*models.Document, error)

	// ListDocuments returns an owner's documents, newest first
	ListDocuments(ownerID string) ([]*models.Document, error)

	// DeleteDocument removes a document, its chunks and its sessions.
	// Documents belonging to a different owner are reported as not found.
	DeleteDocument(documentID, ownerID string) error

	// Search performs cross-document semantic search over an owner's ready
	// documents
	Search(ctx context.Context, req *SearchRequest) ([]SearchResult, error)

	// Summarize produces a short summary of the document, provider-backed
	// with an extractive fallback
	Summarize(ctx context.Context, documentID, ownerID string) (string, error)

	// AnalyzeStructure computes word/paragraph/sentence counts, keywords and
	// reading time for a document
	AnalyzeStructure(documentID, ownerID string) (*models.DocumentStructure, error)

	// GenerateQA produces question-answer pairs from the document content,
	// provider-backed with an extractive fallback
	GenerateQA(ctx context.Context, documentID, ownerID string, count int) ([]models.QAPair, error)
}

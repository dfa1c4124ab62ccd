package models

import "time"

// DocumentStatus tracks a document through the processing pipeline
type DocumentStatus string

const (
	// DocumentStatusPending indicates the document is awaiting chunking/embedding
	DocumentStatusPending DocumentStatus = "pending"
	// DocumentStatusReady indicates chunks and embeddings are available
	DocumentStatusReady DocumentStatus = "ready"
	// DocumentStatusFailed indicates extraction or processing failed
	DocumentStatusFailed DocumentStatus = "failed"
)

// EmbeddingStrategy identifies how a document's chunk vectors were computed.
// The strategy is recorded on the document so query vectors are never compared
// against chunk vectors produced by a different strategy or dimension.
type EmbeddingStrategy string

const (
	// EmbeddingStrategyModel uses the external embedding model
	EmbeddingStrategyModel EmbeddingStrategy = "model"
	// EmbeddingStrategyFallback uses the deterministic local digest
	EmbeddingStrategyFallback EmbeddingStrategy = "fallback"
)

// Document represents an uploaded document and its processing state
type Document struct {
	ID       string `json:"id"`       // doc_{uuid}
	OwnerID  string `json:"owner_id"` // owning user identifier
	Title    string `json:"title"`
	Filename string `json:"filename"`

	// Content is the extracted plain text (chunks reference offsets into it)
	Content string `json:"content"`

	Status     DocumentStatus `json:"status"`
	FailReason string         `json:"fail_reason,omitempty"`

	// Embedding bookkeeping - all chunks of one document share these
	EmbeddingStrategy  EmbeddingStrategy `json:"embedding_strategy,omitempty"`
	EmbeddingDimension int               `json:"embedding_dimension,omitempty"`
	ChunkCount         int               `json:"chunk_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Chunk is a bounded, self-contained span of a document's text with its
// embedding vector. Chunks are immutable once written; reprocessing replaces
// the whole set atomically.
type Chunk struct {
	ID         string    `json:"id"`          // chunk_{uuid}
	DocumentID string    `json:"document_id"` // owning document
	Position   int       `json:"position"`    // ordinal within the document, stable tie-break
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding"`

	// Character offsets into Document.Content (optional, 0/0 when unknown)
	StartOffset int `json:"start_offset,omitempty"`
	EndOffset   int `json:"end_offset,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// DocumentStructure summarizes the shape of a document's text
type DocumentStructure struct {
	WordCount          int      `json:"word_count"`
	ParagraphCount     int      `json:"paragraph_count"`
	SentenceCount      int      `json:"sentence_count"`
	TopKeywords        []string `json:"top_keywords"`
	ReadingTimeMinutes int      `json:"reading_time_minutes"`
}

// QAPair is one generated study question with its answer
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// DocumentStats aggregates counts across stored documents
type DocumentStats struct {
	TotalDocuments int       `json:"total_documents"`
	ReadyDocuments int       `json:"ready_documents"`
	TotalChunks    int       `json:"total_chunks"`
	LastUpdated    time.Time `json:"last_updated"`
}

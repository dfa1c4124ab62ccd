package interfaces

import (
	"context"

	"github.com/ternarybob/docent/internal/models"
)

// AskRequest asks a question within a chat session. SessionID may be empty, in
// which case a new session against DocumentID is created.
type AskRequest struct {
	SessionID  string `json:"session_id,omitempty"`
	DocumentID string `json:"document_id" validate:"required"`
	OwnerID    string `json:"owner_id" validate:"required"`
	Question   string `json:"question" validate:"required,min=1"`
}

// Evidence is one retrieved chunk backing an answer
type Evidence struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	Position      int     `json:"position"`
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
}

// AskResponse carries the generated answer and its supporting evidence
type AskResponse struct {
	SessionID string         `json:"session_id"`
	Answer    models.Message `json:"answer"`
	Evidence  []Evidence     `json:"evidence,omitempty"`
}

// ChatService orchestrates retrieval-augmented question answering
type ChatService interface {
	// Ask answers a question in the context of a session and its document.
	// Both the user question and the reply are appended to the session.
	Ask(ctx context.Context, req *AskRequest) (*AskResponse, error)

	// GetSession returns a session with its full history. Sessions belonging
	// to a different owner are reported as not found.
	GetSession(sessionID, ownerID string) (*models.ChatSession, error)

	// ListSessions returns an owner's sessions ordered by last activity
	ListSessions(ownerID string) ([]*models.ChatSession, error)

	// DeleteSession removes a session and its history. Sessions belonging to
	// a different owner are reported as not found.
	DeleteSession(sessionID, ownerID string) error
}

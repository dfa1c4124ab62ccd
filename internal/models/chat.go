package models

import "time"

// MessageRole identifies the sender of a chat message
type MessageRole string

const (
	// RoleUser marks a message authored by the user
	RoleUser MessageRole = "user"
	// RoleAssistant marks a generated reply
	RoleAssistant MessageRole = "assistant"
)

// Message is a single turn in a chat session. Messages are immutable once
// appended; history is append-only and ordered by timestamp.
type Message struct {
	ID      string      `json:"id"` // msg_{uuid}
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`

	// ChunkIDs lists the evidence chunks backing an assistant reply.
	// Empty for user messages and for pure fallback replies.
	ChunkIDs []string `json:"chunk_ids,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ChatSession is a conversation between one user and one document.
// Sessions are never shared across users and never merged or reordered.
type ChatSession struct {
	ID         string `json:"id"` // session_{uuid}
	DocumentID string `json:"document_id"`
	OwnerID    string `json:"owner_id"`

	Messages []Message `json:"messages"`

	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

package common

import (
	"github.com/google/uuid"
)

// NewDocumentID generates a unique document ID with the "doc_" prefix
// Format: doc_<uuid>
func NewDocumentID() string {
	return "doc_" + uuid.New().String()
}

// NewChunkID generates a unique chunk ID with the "chunk_" prefix
// Format: chunk_<uuid>
func NewChunkID() string {
	return "chunk_" + uuid.New().String()
}

// NewSessionID generates a unique chat session ID with the "session_" prefix
// Format: session_<uuid>
func NewSessionID() string {
	return "session_" + uuid.New().String()
}

// NewMessageID generates a unique message ID with the "msg_" prefix
// Format: msg_<uuid>
func NewMessageID() string {
	return "msg_" + uuid.New().String()
}

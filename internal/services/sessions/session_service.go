// Package sessions manages chat sessions and assembles the bounded history
// window carried into provider context.
package sessions

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docent/internal/common"
	"github.com/ternarybob/docent/internal/interfaces"
	"github.com/ternarybob/docent/internal/models"
)

// DefaultHistoryWindow is the number of recent messages included as context
// when none is configured
const DefaultHistoryWindow = 6

// Service manages chat sessions
type Service struct {
	storage       interfaces.SessionStorage
	historyWindow int
	logger        arbor.ILogger
}

// NewService creates a session manager
func NewService(storage interfaces.SessionStorage, historyWindow int, logger arbor.ILogger) *Service {
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &Service{
		storage:       storage,
		historyWindow: historyWindow,
		logger:        logger,
	}
}

// CreateSession starts a new empty session between one owner and one document
func (s *Service) CreateSession(documentID, ownerID string) (*models.ChatSession, error) {
	now := time.Now()
	session := &models.ChatSession{
		ID:             common.NewSessionID(),
		DocumentID:     documentID,
		OwnerID:        ownerID,
		Messages:       []models.Message{},
		CreatedAt:      now,
		LastActivityAt: now,
	}

	if err := s.storage.SaveSession(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Debug().
		Str("session_id", session.ID).
		Str("doc_id", documentID).
		Msg("Created chat session")
	return session, nil
}

// GetSession returns a session with its full history
func (s *Service) GetSession(sessionID string) (*models.ChatSession, error) {
	return s.storage.GetSession(sessionID)
}

// GetOrCreate resolves an existing session or starts a new one. An existing
// session must belong to the given owner and document.
func (s *Service) GetOrCreate(sessionID, documentID, ownerID string) (*models.ChatSession, error) {
	if sessionID == "" {
		return s.CreateSession(documentID, ownerID)
	}

	session, err := s.storage.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != ownerID {
		return nil, fmt.Errorf("session %s does not belong to owner: %w", sessionID, interfaces.ErrNotFound)
	}
	if documentID != "" && session.DocumentID != documentID {
		return nil, fmt.Errorf("session %s is bound to a different document", sessionID)
	}
	return session, nil
}

// AppendUserMessage appends a user turn to the session history
func (s *Service) AppendUserMessage(sessionID, content string) (models.Message, error) {
	msg := models.Message{
		ID:        common.NewMessageID(),
		Role:      models.RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := s.storage.AppendMessage(sessionID, msg); err != nil {
		return models.Message{}, fmt.Errorf("failed to append user message: %w", err)
	}
	return msg, nil
}

// AppendAssistantMessage appends an assistant turn, recording the evidence
// chunks that backed it. chunkIDs is empty for fallback replies.
func (s *Service) AppendAssistantMessage(sessionID, content string, chunkIDs []string) (models.Message, error) {
	msg := models.Message{
		ID:        common.NewMessageID(),
		Role:      models.RoleAssistant,
		Content:   content,
		ChunkIDs:  chunkIDs,
		CreatedAt: time.Now(),
	}
	if err := s.storage.AppendMessage(sessionID, msg); err != nil {
		return models.Message{}, fmt.Errorf("failed to append assistant message: %w", err)
	}
	return msg, nil
}

// ContextWindow returns the most recent messages of a session, oldest first.
// The window size is fixed by configuration; a session shorter than the
// window returns all of its messages.
func (s *Service) ContextWindow(session *models.ChatSession) []models.Message {
	if session == nil || len(session.Messages) == 0 {
		return nil
	}

	start := len(session.Messages) - s.historyWindow
	if start < 0 {
		start = 0
	}
	window := make([]models.Message, len(session.Messages)-start)
	copy(window, session.Messages[start:])
	return window
}

// HistoryWindow returns the configured window size
func (s *Service) HistoryWindow() int {
	return s.historyWindow
}

// ListSessions returns an owner's sessions ordered by last activity
func (s *Service) ListSessions(ownerID string) ([]*models.ChatSession, error) {
	return s.storage.ListSessionsByOwner(ownerID)
}

// DeleteSession removes a session and its history
func (s *Service) DeleteSession(sessionID string) error {
	return s.storage.DeleteSession(sessionID)
}

// DeleteByDocument removes all sessions bound to a document
func (s *Service) DeleteByDocument(documentID string) error {
	return s.storage.DeleteSessionsByDocument(documentID)
}

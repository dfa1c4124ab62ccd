package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/docent/internal/interfaces"
	"github.com/ternarybob/docent/internal/models"
)

// SessionStorage implements the SessionStorage interface for Badger
type SessionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSessionStorage creates a new SessionStorage instance
func NewSessionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SessionStorage {
	return &SessionStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SessionStorage) SaveSession(session *models.ChatSession) error {
	if session.ID == "" {
		return fmt.Errorf("session ID is required")
	}

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastActivityAt.IsZero() {
		session.LastActivityAt = now
	}

	if err := s.db.Store().Upsert(session.ID, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SessionStorage) GetSession(id string) (*models.ChatSession, error) {
	var session models.ChatSession
	if err := s.db.Store().Get(id, &session); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (s *SessionStorage) ListSessionsByOwner(ownerID string) ([]*models.ChatSession, error) {
	var sessions []models.ChatSession
	err := s.db.Store().Find(&sessions, badgerhold.Where("OwnerID").Eq(ownerID).SortBy("LastActivityAt").Reverse())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	result := make([]*models.ChatSession, len(sessions))
	for i := range sessions {
		result[i] = &sessions[i]
	}
	return result, nil
}

func (s *SessionStorage) ListSessionsByDocument(documentID string) ([]*models.ChatSession, error) {
	var sessions []models.ChatSession
	err := s.db.Store().Find(&sessions, badgerhold.Where("DocumentID").Eq(documentID))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions by document: %w", err)
	}

	result := make([]*models.ChatSession, len(sessions))
	for i := range sessions {
		result[i] = &sessions[i]
	}
	return result, nil
}

// AppendMessage adds a message to the end of a session's history. History is
// append-only: existing messages are never modified or reordered.
func (s *SessionStorage) AppendMessage(sessionID string, msg models.Message) error {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return err
	}

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	session.Messages = append(session.Messages, msg)
	session.LastActivityAt = msg.CreatedAt

	if err := s.db.Store().Upsert(session.ID, session); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

func (s *SessionStorage) DeleteSession(id string) error {
	if err := s.db.Store().Delete(id, &models.ChatSession{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrNotFound
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteSessionsByDocument removes all sessions for a document. Used when the
// document itself is deleted.
func (s *SessionStorage) DeleteSessionsByDocument(documentID string) error {
	err := s.db.Store().DeleteMatching(&models.ChatSession{}, badgerhold.Where("DocumentID").Eq(documentID))
	if err != nil {
		return fmt.Errorf("failed to delete sessions for document %s: %w", documentID, err)
	}
	return nil
}

// Package chat orchestrates one conversational turn: session resolution,
// retrieval, generation and history persistence.
package chat

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docent/internal/interfaces"
	"github.com/ternarybob/docent/internal/models"
	"github.com/ternarybob/docent/internal/services/generator"
	"github.com/ternarybob/docent/internal/services/retrieval"
	"github.com/ternarybob/docent/internal/services/sessions"
)

// Service implements the ChatService interface
type Service struct {
	documents interfaces.DocumentStorage
	sessions  *sessions.Service
	engine    *retrieval.Engine
	generator *generator.Generator
	validate  *validator.Validate
	logger    arbor.ILogger
}

// NewService creates the chat service
func NewService(
	documents interfaces.DocumentStorage,
	sessionSvc *sessions.Service,
	engine *retrieval.Engine,
	gen *generator.Generator,
	logger arbor.ILogger,
) *Service {
	return &Service{
		documents: documents,
		sessions:  sessionSvc,
		engine:    engine,
		generator: gen,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Ask answers one question against a document. The user turn and the
// assistant turn are both recorded on the session; the assistant message
// carries the ids of the chunks that backed the answer.
func (s *Service) Ask(ctx context.Context, req *interfaces.AskRequest) (*interfaces.AskResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid ask request: %w", err)
	}

	doc, err := s.documents.GetDocument(req.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != req.OwnerID {
		return nil, fmt.Errorf("document %s: %w", req.DocumentID, interfaces.ErrNotFound)
	}

	session, err := s.sessions.GetOrCreate(req.SessionID, req.DocumentID, req.OwnerID)
	if err != nil {
		return nil, err
	}

	// History window is captured before this turn's user message is appended
	history := s.sessions.ContextWindow(session)

	if _, err := s.sessions.AppendUserMessage(session.ID, req.Question); err != nil {
		return nil, err
	}

	results, err := s.engine.Retrieve(ctx, doc, req.Question, 0)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	evidence := make([]interfaces.Evidence, len(results))
	chunkIDs := make([]string, len(results))
	for i, result := range results {
		evidence[i] = interfaces.Evidence{
			ChunkID:       result.Chunk.ID,
			DocumentID:    doc.ID,
			DocumentTitle: doc.Title,
			Position:      result.Chunk.Position,
			Text:          result.Chunk.Text,
			Score:         result.Score,
		}
		chunkIDs[i] = result.Chunk.ID
	}

	reply := s.generator.Generate(ctx, generator.Input{
		Question:      req.Question,
		DocumentTitle: doc.Title,
		Evidence:      evidence,
		History:       history,
	})

	answer, err := s.sessions.AppendAssistantMessage(session.ID, reply, chunkIDs)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("session_id", session.ID).
		Str("doc_id", doc.ID).
		Int("evidence", len(evidence)).
		Msg("Answered question")

	return &interfaces.AskResponse{
		SessionID: session.ID,
		Answer:    answer,
		Evidence:  evidence,
	}, nil
}

// getOwned loads a session and verifies it belongs to ownerID. Sessions of
// other owners are reported as not found so ids cannot be probed.
func (s *Service) getOwned(sessionID, ownerID string) (*models.ChatSession, error) {
	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != ownerID {
		return nil, fmt.Errorf("session %s: %w", sessionID, interfaces.ErrNotFound)
	}
	return session, nil
}

// GetSession returns a session with its full history, scoped to its owner
func (s *Service) GetSession(sessionID, ownerID string) (*models.ChatSession, error) {
	return s.getOwned(sessionID, ownerID)
}

// ListSessions returns an owner's sessions, most recently active first
func (s *Service) ListSessions(ownerID string) ([]*models.ChatSession, error) {
	return s.sessions.ListSessions(ownerID)
}

// DeleteSession removes a session and its history, scoped to its owner
func (s *Service) DeleteSession(sessionID, ownerID string) error {
	if _, err := s.getOwned(sessionID, ownerID); err != nil {
		return err
	}
	return s.sessions.DeleteSession(sessionID)
}

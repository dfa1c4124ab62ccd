package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docent/internal/interfaces"
	"github.com/ternarybob/docent/internal/models"
	"github.com/ternarybob/docent/internal/services/embeddings"
	"github.com/ternarybob/docent/internal/services/generator"
	"github.com/ternarybob/docent/internal/services/retrieval"
	"github.com/ternarybob/docent/internal/services/sessions"
)

type memDocs struct {
	docs   map[string]*models.Document
	chunks map[string][]*models.Chunk
}

func newMemDocs() *memDocs {
	return &memDocs{
		docs:   make(map[string]*models.Document),
		chunks: make(map[string][]*models.Chunk),
	}
}

func (m *memDocs) SaveDocument(doc *models.Document) error { m.docs[doc.ID] = doc; return nil }

func (m *memDocs) GetDocument(id string) (*models.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return doc, nil
}

func (m *memDocs) ListDocumentsByOwner(ownerID string) ([]*models.Document, error) {
	return nil, nil
}

func (m *memDocs) ListDocumentsByStatus(status models.DocumentStatus, limit int) ([]*models.Document, error) {
	return nil, nil
}

func (m *memDocs) DeleteDocument(id string) error { delete(m.docs, id); return nil }
func (m *memDocs) CountDocuments() (int, error)   { return len(m.docs), nil }
func (m *memDocs) GetStats() (*models.DocumentStats, error) {
	return &models.DocumentStats{}, nil
}

func (m *memDocs) ReplaceChunks(documentID string, chunks []*models.Chunk) error {
	m.chunks[documentID] = chunks
	return nil
}

func (m *memDocs) GetChunks(documentID string) ([]*models.Chunk, error) {
	return m.chunks[documentID], nil
}

func (m *memDocs) GetChunk(id string) (*models.Chunk, error) {
	for _, chunks := range m.chunks {
		for _, chunk := range chunks {
			if chunk.ID == id {
				return chunk, nil
			}
		}
	}
	return nil, interfaces.ErrNotFound
}

func (m *memDocs) CountChunks(documentID string) (int, error) {
	return len(m.chunks[documentID]), nil
}

type memSessions struct {
	sessions map[string]*models.ChatSession
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]*models.ChatSession)}
}

func (m *memSessions) SaveSession(session *models.ChatSession) error {
	copied := *session
	copied.Messages = append([]models.Message(nil), session.Messages...)
	m.sessions[session.ID] = &copied
	return nil
}

func (m *memSessions) GetSession(id string) (*models.ChatSession, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copied := *session
	copied.Messages = append([]models.Message(nil), session.Messages...)
	return &copied, nil
}

func (m *memSessions) ListSessionsByOwner(ownerID string) ([]*models.ChatSession, error) {
	var out []*models.ChatSession
	for _, session := range m.sessions {
		if session.OwnerID == ownerID {
			out = append(out, session)
		}
	}
	return out, nil
}

func (m *memSessions) ListSessionsByDocument(documentID string) ([]*models.ChatSession, error) {
	var out []*models.ChatSession
	for _, session := range m.sessions {
		if session.DocumentID == documentID {
			out = append(out, session)
		}
	}
	return out, nil
}

func (m *memSessions) AppendMessage(sessionID string, msg models.Message) error {
	session, ok := m.sessions[sessionID]
	if !ok {
		return interfaces.ErrNotFound
	}
	session.Messages = append(session.Messages, msg)
	return nil
}

func (m *memSessions) DeleteSession(id string) error { delete(m.sessions, id); return nil }

func (m *memSessions) DeleteSessionsByDocument(documentID string) error {
	for id, session := range m.sessions {
		if session.DocumentID == documentID {
			delete(m.sessions, id)
		}
	}
	return nil
}

// recordingProvider captures the messages sent to it
type recordingProvider struct {
	response string
	err      error
	seen     []interfaces.LLMMessage
}

func (p *recordingProvider) Generate(ctx context.Context, messages []interfaces.LLMMessage) (string, error) {
	p.seen = messages
	return p.response, p.err
}

func (p *recordingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("not implemented")
}
func (p *recordingProvider) HealthCheck(ctx context.Context) error { return nil }
func (p *recordingProvider) Close() error                          { return nil }

func testLogger() arbor.ILogger { return arbor.NewLogger() }

// seedDoc stores a ready document with deterministic fallback embeddings
func seedDoc(t *testing.T, storage *memDocs, id, owner string, chunkTexts ...string) *models.Document {
	t.Helper()
	doc := &models.Document{
		ID:                 id,
		OwnerID:            owner,
		Title:              "Test Doc",
		Status:             models.DocumentStatusReady,
		EmbeddingStrategy:  models.EmbeddingStrategyFallback,
		EmbeddingDimension: embeddings.FallbackDimension,
		ChunkCount:         len(chunkTexts),
	}
	chunks := make([]*models.Chunk, len(chunkTexts))
	for i, text := range chunkTexts {
		chunks[i] = &models.Chunk{
			ID:         fmt.Sprintf("%s-chunk-%d", id, i),
			DocumentID: id,
			Position:   i,
			Text:       text,
			Embedding:  embeddings.FallbackEmbedding(text),
		}
	}
	require.NoError(t, storage.SaveDocument(doc))
	require.NoError(t, storage.ReplaceChunks(id, chunks))
	return doc
}

func newTestService(storage *memDocs, sessionStore *memSessions, providers []interfaces.LLMService) *Service {
	logger := testLogger()
	embedder := embeddings.NewService(nil, 768, logger)
	engine := retrieval.NewEngine(storage, embedder, 3, 0.0, logger)
	sessionSvc := sessions.NewService(sessionStore, 6, logger)
	gen := generator.NewGenerator(providers, logger)
	return NewService(storage, sessionSvc, engine, gen, logger)
}

func TestAsk_CreatesSessionAndRecordsBothTurns(t *testing.T) {
	storage := newMemDocs()
	sessionStore := newMemSessions()
	seedDoc(t, storage, "doc_1", "user_1", "the warranty lasts twelve months")
	provider := &recordingProvider{response: "Twelve months."}
	svc := newTestService(storage, sessionStore, []interfaces.LLMService{provider})

	resp, err := svc.Ask(context.Background(), &interfaces.AskRequest{
		DocumentID: "doc_1",
		OwnerID:    "user_1",
		Question:   "how long is the warranty?",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "Twelve months.", resp.Answer.Content)
	assert.Equal(t, models.RoleAssistant, resp.Answer.Role)
	require.NotEmpty(t, resp.Evidence)
	assert.Equal(t, "doc_1-chunk-0", resp.Evidence[0].ChunkID)
	assert.Equal(t, resp.Evidence[0].ChunkID, resp.Answer.ChunkIDs[0])

	session, err := svc.GetSession(resp.SessionID, "user_1")
	require.NoError(t, err)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, models.RoleUser, session.Messages[0].Role)
	assert.Equal(t, "how long is the warranty?", session.Messages[0].Content)
	assert.Equal(t, models.RoleAssistant, session.Messages[1].Role)
}

func TestAsk_ReusesExistingSession(t *testing.T) {
	storage := newMemDocs()
	sessionStore := newMemSessions()
	seedDoc(t, storage, "doc_1", "user_1", "chunk text")
	svc := newTestService(storage, sessionStore, nil)

	first, err := svc.Ask(context.Background(), &interfaces.AskRequest{
		DocumentID: "doc_1",
		OwnerID:    "user_1",
		Question:   "first question?",
	})
	require.NoError(t, err)

	second, err := svc.Ask(context.Background(), &interfaces.AskRequest{
		SessionID:  first.SessionID,
		DocumentID: "doc_1",
		OwnerID:    "user_1",
		Question:   "second question?",
	})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	session, err := svc.GetSession(first.SessionID, "user_1")
	require.NoError(t, err)
	assert.Len(t, session.Messages, 4)
}

func TestAsk_HistoryCarriedIntoProviderContext(t *testing.T) {
	storage := newMemDocs()
	sessionStore := newMemSessions()
	seedDoc(t, storage, "doc_1", "user_1", "chunk text")
	provider := &recordingProvider{response: "answer"}
	svc := newTestService(storage, sessionStore, []interfaces.LLMService{provider})

	first, err := svc.Ask(context.Background(), &interfaces.AskRequest{
		DocumentID: "doc_1",
		OwnerID:    "user_1",
		Question:   "first question?",
	})
	require.NoError(t, err)

	_, err = svc.Ask(context.Background(), &interfaces.AskRequest{
		SessionID:  first.SessionID,
		DocumentID: "doc_1",
		OwnerID:    "user_1",
		Question:   "second question?",
	})
	require.NoError(t, err)

	// system + 2 history turns + final user message
	require.Len(t, provider.seen, 4)
	assert.Equal(t, "first question?", provider.seen[1].Content)
	assert.Equal(t, "answer", provider.seen[2].Content)
	assert.Contains(t, provider.seen[3].Content, "second question?")
}

func TestAsk_NoEvidenceReturnsFixedMessage(t *testing.T) {
	storage := newMemDocs()
	sessionStore := newMemSessions()
	// Document is ready but has no chunks
	require.NoError(t, storage.SaveDocument(&models.Document{
		ID:      "doc_empty",
		OwnerID: "user_1",
		Title:   "Empty",
		Status:  models.DocumentStatusReady,
	}))
	svc := newTestService(storage, sessionStore, nil)

	resp, err := svc.Ask(context.Background(), &interfaces.AskRequest{
		DocumentID: "doc_empty",
		OwnerID:    "user_1",
		Question:   "anything?",
	})

	require.NoError(t, err)
	assert.Equal(t, generator.NoRelevantInfoMessage, resp.Answer.Content)
	assert.Empty(t, resp.Evidence)
	assert.Empty(t, resp.Answer.ChunkIDs)
}

func TestAsk_UnknownDocument(t *testing.T) {
	svc := newTestService(newMemDocs(), newMemSessions(), nil)

	_, err := svc.Ask(context.Background(), &interfaces.AskRequest{
		DocumentID: "doc_missing",
		OwnerID:    "user_1",
		Question:   "anything?",
	})

	assert.True(t, errors.Is(err, interfaces.ErrNotFound))
}

func TestAsk_OtherOwnersDocumentHidden(t *testing.T) {
	storage := newMemDocs()
	seedDoc(t, storage, "doc_1", "user_1", "private content")
	svc := newTestService(storage, newMemSessions(), nil)

	_, err := svc.Ask(context.Background(), &interfaces.AskRequest{
		DocumentID: "doc_1",
		OwnerID:    "user_2",
		Question:   "what does it say?",
	})

	assert.True(t, errors.Is(err, interfaces.ErrNotFound))
}

func TestAsk_SessionBoundToOtherDocumentRejected(t *testing.T) {
	storage := newMemDocs()
	sessionStore := newMemSessions()
	seedDoc(t, storage, "doc_1", "user_1", "chunk a")
	seedDoc(t, storage, "doc_2", "user_1", "chunk b")
	svc := newTestService(storage, sessionStore, nil)

	first, err := svc.Ask(context.Background(), &interfaces.AskRequest{
		DocumentID: "doc_1",
		OwnerID:    "user_1",
		Question:   "question?",
	})
	require.NoError(t, err)

	_, err = svc.Ask(context.Background(), &interfaces.AskRequest{
		SessionID:  first.SessionID,
		DocumentID: "doc_2",
		OwnerID:    "user_1",
		Question:   "question?",
	})
	assert.Error(t, err)
}

func TestAsk_ValidationRejectsEmptyQuestion(t *testing.T) {
	svc := newTestService(newMemDocs(), newMemSessions(), nil)

	_, err := svc.Ask(context.Background(), &interfaces.AskRequest{
		DocumentID: "doc_1",
		OwnerID:    "user_1",
	})
	assert.Error(t, err)
}

func TestDeleteSession_RemovesHistory(t *testing.T) {
	storage := newMemDocs()
	sessionStore := newMemSessions()
	seedDoc(t, storage, "doc_1", "user_1", "chunk text")
	svc := newTestService(storage, sessionStore, nil)

	resp, err := svc.Ask(context.Background(), &interfaces.AskRequest{
		DocumentID: "doc_1",
		OwnerID:    "user_1",
		Question:   "question?",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSession(resp.SessionID, "user_1"))
	_, err = svc.GetSession(resp.SessionID, "user_1")
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))
}

func TestGetSession_OtherOwnersSessionHidden(t *testing.T) {
	storage := newMemDocs()
	sessionStore := newMemSessions()
	seedDoc(t, storage, "doc_1", "user_1", "private content")
	svc := newTestService(storage, sessionStore, nil)

	resp, err := svc.Ask(context.Background(), &interfaces.AskRequest{
		DocumentID: "doc_1",
		OwnerID:    "user_1",
		Question:   "question?",
	})
	require.NoError(t, err)

	_, err = svc.GetSession(resp.SessionID, "user_2")
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))
}

func TestDeleteSession_OtherOwnerCannotDelete(t *testing.T) {
	storage := newMemDocs()
	sessionStore := newMemSessions()
	seedDoc(t, storage, "doc_1", "user_1", "private content")
	svc := newTestService(storage, sessionStore, nil)

	resp, err := svc.Ask(context.Background(), &interfaces.AskRequest{
		DocumentID: "doc_1",
		OwnerID:    "user_1",
		Question:   "question?",
	})
	require.NoError(t, err)

	err = svc.DeleteSession(resp.SessionID, "user_2")
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))

	// The session is still intact for its owner
	session, err := svc.GetSession(resp.SessionID, "user_1")
	require.NoError(t, err)
	assert.Len(t, session.Messages, 2)
}

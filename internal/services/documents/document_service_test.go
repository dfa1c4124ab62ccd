package documents

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
	"github.com/ternarybob/docent/internal/services/chunker"
	"github.com/ternarybob/docent/internal/services/embeddings"
	"github.com/ternarybob/docent/internal/services/retrieval"
)

// memDocs is an in-memory DocumentStorage
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

func (m *memDocs) SaveDocument(doc *models.Document) error {
	m.docs[doc.ID] = doc
	return nil
}

func (m *memDocs) GetDocument(id string) (*models.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return doc, nil
}

func (m *memDocs) ListDocumentsByOwner(ownerID string) ([]*models.Document, error) {
	var docs []*models.Document
	for _, doc := range m.docs {
		if doc.OwnerID == ownerID {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (m *memDocs) ListDocumentsByStatus(status models.DocumentStatus, limit int) ([]*models.Document, error) {
	var docs []*models.Document
	for _, doc := range m.docs {
		if doc.Status == status {
			docs = append(docs, doc)
		}
	}
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (m *memDocs) DeleteDocument(id string) error {
	if _, ok := m.docs[id]; !ok {
		return interfaces.ErrNotFound
	}
	delete(m.docs, id)
	delete(m.chunks, id)
	return nil
}

func (m *memDocs) CountDocuments() (int, error) { return len(m.docs), nil }

func (m *memDocs) GetStats() (*models.DocumentStats, error) {
	return &models.DocumentStats{TotalDocuments: len(m.docs)}, nil
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

// memSessions records session deletions per document
type memSessions struct {
	sessions map[string]*models.ChatSession
	deleted  []string
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]*models.ChatSession)}
}

func (m *memSessions) SaveSession(session *models.ChatSession) error {
	m.sessions[session.ID] = session
	return nil
}

func (m *memSessions) GetSession(id string) (*models.ChatSession, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return session, nil
}

func (m *memSessions) ListSessionsByOwner(ownerID string) ([]*models.ChatSession, error) {
	var sessions []*models.ChatSession
	for _, session := range m.sessions {
		if session.OwnerID == ownerID {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

func (m *memSessions) ListSessionsByDocument(documentID string) ([]*models.ChatSession, error) {
	var sessions []*models.ChatSession
	for _, session := range m.sessions {
		if session.DocumentID == documentID {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

func (m *memSessions) AppendMessage(sessionID string, msg models.Message) error {
	session, ok := m.sessions[sessionID]
	if !ok {
		return interfaces.ErrNotFound
	}
	session.Messages = append(session.Messages, msg)
	return nil
}

func (m *memSessions) DeleteSession(id string) error {
	delete(m.sessions, id)
	return nil
}

func (m *memSessions) DeleteSessionsByDocument(documentID string) error {
	m.deleted = append(m.deleted, documentID)
	for id, session := range m.sessions {
		if session.DocumentID == documentID {
			delete(m.sessions, id)
		}
	}
	return nil
}

// stubExtractor passes text files through and fails on demand
type stubExtractor struct {
	err error
}

func (e *stubExtractor) ExtractText(ctx context.Context, filename string, data []byte) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return string(data), nil
}

func (e *stubExtractor) SupportedExtensions() []string { return []string{".txt"} }

// failingLLM always errors so summaries fall back to the extractive path
type failingLLM struct{}

func (f *failingLLM) Generate(ctx context.Context, messages []interfaces.LLMMessage) (string, error) {
	return "", errors.New("provider down")
}
func (f *failingLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("provider down")
}
func (f *failingLLM) HealthCheck(ctx context.Context) error { return errors.New("provider down") }
func (f *failingLLM) Close() error                          { return nil }

func testLogger() arbor.ILogger { return arbor.NewLogger() }

func newTestService(storage *memDocs, sessions *memSessions, extractor interfaces.TextExtractor, providers []interfaces.LLMService) *Service {
	logger := testLogger()
	embedder := embeddings.NewService(nil, 768, logger)
	engine := retrieval.NewEngine(storage, embedder, 3, 0.0, logger)
	return NewService(storage, sessions, extractor, chunker.NewChunker(0, logger), embedder, engine, providers, logger)
}

func TestSubmit_ProcessesDocumentToReady(t *testing.T) {
	storage := newMemDocs()
	svc := newTestService(storage, newMemSessions(), &stubExtractor{}, nil)

	doc, err := svc.Submit(context.Background(), &interfaces.SubmitDocumentRequest{
		OwnerID:  "user_1",
		Title:    "Notes",
		Filename: "notes.txt",
		Data:     []byte("First paragraph here.\n\nSecond paragraph here."),
	})

	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusReady, doc.Status)
	assert.Equal(t, 2, doc.ChunkCount)
	assert.Equal(t, models.EmbeddingStrategyFallback, doc.EmbeddingStrategy)
	assert.Equal(t, embeddings.FallbackDimension, doc.EmbeddingDimension)

	chunks, err := storage.GetChunks(doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Position)
	assert.Equal(t, "First paragraph here.", chunks[0].Text)
	assert.Len(t, chunks[0].Embedding, embeddings.FallbackDimension)
}

func TestSubmit_ValidationRejectsMissingFields(t *testing.T) {
	svc := newTestService(newMemDocs(), newMemSessions(), &stubExtractor{}, nil)

	_, err := svc.Submit(context.Background(), &interfaces.SubmitDocumentRequest{
		OwnerID: "user_1",
	})
	assert.Error(t, err)
}

func TestSubmit_UnsupportedFormatReturnsError(t *testing.T) {
	svc := newTestService(newMemDocs(), newMemSessions(),
		&stubExtractor{err: fmt.Errorf("extension %q: %w", ".png", interfaces.ErrUnsupportedFormat)}, nil)

	_, err := svc.Submit(context.Background(), &interfaces.SubmitDocumentRequest{
		OwnerID:  "user_1",
		Title:    "Image",
		Filename: "image.png",
		Data:     []byte{0x89},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, interfaces.ErrUnsupportedFormat))
}

func TestSubmit_ExtractionFailureStoredAsFailed(t *testing.T) {
	storage := newMemDocs()
	svc := newTestService(storage, newMemSessions(), &stubExtractor{err: errors.New("corrupt file")}, nil)

	doc, err := svc.Submit(context.Background(), &interfaces.SubmitDocumentRequest{
		OwnerID:  "user_1",
		Title:    "Broken",
		Filename: "broken.txt",
		Data:     []byte("x"),
	})

	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusFailed, doc.Status)
	assert.Contains(t, doc.FailReason, "corrupt file")

	stored, err := storage.GetDocument(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusFailed, stored.Status)
}

func TestSubmit_EmptyTextMarksFailed(t *testing.T) {
	storage := newMemDocs()
	svc := newTestService(storage, newMemSessions(), &stubExtractor{}, nil)

	doc, err := svc.Submit(context.Background(), &interfaces.SubmitDocumentRequest{
		OwnerID:  "user_1",
		Title:    "Blank",
		Filename: "blank.txt",
		Data:     []byte("   \n\n  "),
	})

	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusFailed, doc.Status)
	assert.Equal(t, 0, doc.ChunkCount)
}

func TestReprocess_ReplacesChunkSet(t *testing.T) {
	storage := newMemDocs()
	svc := newTestService(storage, newMemSessions(), &stubExtractor{}, nil)

	doc, err := svc.Submit(context.Background(), &interfaces.SubmitDocumentRequest{
		OwnerID:  "user_1",
		Title:    "Notes",
		Filename: "notes.txt",
		Data:     []byte("Paragraph one.\n\nParagraph two."),
	})
	require.NoError(t, err)

	firstChunks, err := storage.GetChunks(doc.ID)
	require.NoError(t, err)
	require.Len(t, firstChunks, 2)

	reprocessed, err := svc.Reprocess(context.Background(), doc.ID, "user_1")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusReady, reprocessed.Status)
	assert.Equal(t, 2, reprocessed.ChunkCount)

	// Chunk identities change but the set stays consistent
	secondChunks, err := storage.GetChunks(doc.ID)
	require.NoError(t, err)
	require.Len(t, secondChunks, 2)
	assert.NotEqual(t, firstChunks[0].ID, secondChunks[0].ID)
	assert.Equal(t, firstChunks[0].Text, secondChunks[0].Text)
}

func TestReprocess_UnknownDocument(t *testing.T) {
	svc := newTestService(newMemDocs(), newMemSessions(), &stubExtractor{}, nil)

	_, err := svc.Reprocess(context.Background(), "doc_missing", "user_1")
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))
}

func TestDeleteDocument_CascadesToSessions(t *testing.T) {
	storage := newMemDocs()
	sessions := newMemSessions()
	svc := newTestService(storage, sessions, &stubExtractor{}, nil)

	doc, err := svc.Submit(context.Background(), &interfaces.SubmitDocumentRequest{
		OwnerID:  "user_1",
		Title:    "Notes",
		Filename: "notes.txt",
		Data:     []byte("Some content here."),
	})
	require.NoError(t, err)
	require.NoError(t, sessions.SaveSession(&models.ChatSession{ID: "session_1", DocumentID: doc.ID, OwnerID: "user_1"}))

	require.NoError(t, svc.DeleteDocument(doc.ID, "user_1"))

	_, err = storage.GetDocument(doc.ID)
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))
	assert.Contains(t, sessions.deleted, doc.ID)
	_, err = sessions.GetSession("session_1")
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))
}

func TestSearch_MergesAcrossDocuments(t *testing.T) {
	storage := newMemDocs()
	svc := newTestService(storage, newMemSessions(), &stubExtractor{}, nil)

	for i, content := range []string{
		"Cats are small domestic animals.",
		"The stock market closed higher today.",
	} {
		_, err := svc.Submit(context.Background(), &interfaces.SubmitDocumentRequest{
			OwnerID:  "user_1",
			Title:    fmt.Sprintf("Doc %d", i),
			Filename: fmt.Sprintf("doc%d.txt", i),
			Data:     []byte(content),
		})
		require.NoError(t, err)
	}

	results, err := svc.Search(context.Background(), &interfaces.SearchRequest{
		OwnerID: "user_1",
		Query:   "Cats are small domestic animals.",
		Limit:   5,
	})

	require.NoError(t, err)
	require.NotEmpty(t, results)
	// Exact text match under the deterministic strategy ranks first
	assert.Equal(t, "Cats are small domestic animals.", results[0].Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestSearch_SkipsUnreadyDocuments(t *testing.T) {
	storage := newMemDocs()
	svc := newTestService(storage, newMemSessions(), &stubExtractor{}, nil)

	require.NoError(t, storage.SaveDocument(&models.Document{
		ID:      "doc_pending",
		OwnerID: "user_1",
		Status:  models.DocumentStatusPending,
	}))

	results, err := svc.Search(context.Background(), &interfaces.SearchRequest{
		OwnerID: "user_1",
		Query:   "anything",
	})

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSummarize_FallsBackToExtractive(t *testing.T) {
	storage := newMemDocs()
	svc := newTestService(storage, newMemSessions(), &stubExtractor{}, []interfaces.LLMService{&failingLLM{}})

	doc, err := svc.Submit(context.Background(), &interfaces.SubmitDocumentRequest{
		OwnerID:  "user_1",
		Title:    "Report",
		Filename: "report.txt",
		Data:     []byte("First sentence. Second sentence. Third sentence. Fourth sentence."),
	})
	require.NoError(t, err)

	summary, err := svc.Summarize(context.Background(), doc.ID, "user_1")

	require.NoError(t, err)
	assert.Contains(t, summary, "First sentence.")
	assert.Contains(t, summary, "Third sentence.")
	assert.NotContains(t, summary, "Fourth sentence.")
}

func TestSummarize_EmptyDocumentRejected(t *testing.T) {
	storage := newMemDocs()
	require.NoError(t, storage.SaveDocument(&models.Document{ID: "doc_blank", OwnerID: "user_1"}))
	svc := newTestService(storage, newMemSessions(), &stubExtractor{}, nil)

	_, err := svc.Summarize(context.Background(), "doc_blank", "user_1")
	assert.Error(t, err)
}

func TestOwnerScoping_OtherOwnersDocumentHidden(t *testing.T) {
	storage := newMemDocs()
	sessions := newMemSessions()
	svc := newTestService(storage, sessions, &stubExtractor{}, nil)

	doc, err := svc.Submit(context.Background(), &interfaces.SubmitDocumentRequest{
		OwnerID:  "user_1",
		Title:    "Private",
		Filename: "private.txt",
		Data:     []byte("Owner one's private document content."),
	})
	require.NoError(t, err)

	_, err = svc.GetDocument(doc.ID, "user_2")
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))

	_, err = svc.Reprocess(context.Background(), doc.ID, "user_2")
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))

	_, err = svc.Summarize(context.Background(), doc.ID, "user_2")
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))

	_, err = svc.AnalyzeStructure(doc.ID, "user_2")
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))

	err = svc.DeleteDocument(doc.ID, "user_2")
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))

	// The document is untouched for its owner
	stored, err := svc.GetDocument(doc.ID, "user_1")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusReady, stored.Status)
}

// jsonLLM answers every generation request with a fixed payload
type jsonLLM struct {
	response string
}

func (j *jsonLLM) Generate(ctx context.Context, messages []interfaces.LLMMessage) (string, error) {
	return j.response, nil
}
func (j *jsonLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("not implemented")
}
func (j *jsonLLM) HealthCheck(ctx context.Context) error { return nil }
func (j *jsonLLM) Close() error                          { return nil }

func TestGenerateQA_ParsesProviderResponse(t *testing.T) {
	storage := newMemDocs()
	provider := &jsonLLM{response: "Here you go:\n```json\n[{\"question\": \"What is Go?\", \"answer\": \"A programming language.\"}, {\"question\": \"Who made it?\", \"answer\": \"Google.\"}]\n```"}
	svc := newTestService(storage, newMemSessions(), &stubExtractor{}, []interfaces.LLMService{provider})

	doc, err := svc.Submit(context.Background(), &interfaces.SubmitDocumentRequest{
		OwnerID:  "user_1",
		Title:    "Go Notes",
		Filename: "go.txt",
		Data:     []byte("Go is a programming language designed at Google."),
	})
	require.NoError(t, err)

	pairs, err := svc.GenerateQA(context.Background(), doc.ID, "user_1", 5)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "What is Go?", pairs[0].Question)
	assert.Equal(t, "A programming language.", pairs[0].Answer)
}

func TestGenerateQA_FallsBackToExtractive(t *testing.T) {
	storage := newMemDocs()
	svc := newTestService(storage, newMemSessions(), &stubExtractor{}, []interfaces.LLMService{&failingLLM{}})

	doc, err := svc.Submit(context.Background(), &interfaces.SubmitDocumentRequest{
		OwnerID:  "user_1",
		Title:    "Solar Notes",
		Filename: "solar.txt",
		Data:     []byte("Solar panels convert sunlight directly into electricity. Wind turbines capture kinetic energy from moving air masses."),
	})
	require.NoError(t, err)

	pairs, err := svc.GenerateQA(context.Background(), doc.ID, "user_1", 2)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "What is mentioned about Solar panels convert?", pairs[0].Question)
	assert.Equal(t, "Solar panels convert sunlight directly into electricity", pairs[0].Answer)
}

func TestGenerateQA_CapsAtRequestedCount(t *testing.T) {
	storage := newMemDocs()
	provider := &jsonLLM{response: `[{"question": "Q1?", "answer": "A1"}, {"question": "Q2?", "answer": "A2"}, {"question": "Q3?", "answer": "A3"}]`}
	svc := newTestService(storage, newMemSessions(), &stubExtractor{}, []interfaces.LLMService{provider})

	doc, err := svc.Submit(context.Background(), &interfaces.SubmitDocumentRequest{
		OwnerID:  "user_1",
		Title:    "Notes",
		Filename: "notes.txt",
		Data:     []byte("Plenty of content to question."),
	})
	require.NoError(t, err)

	pairs, err := svc.GenerateQA(context.Background(), doc.ID, "user_1", 2)
	require.NoError(t, err)
	assert.Len(t, pairs, 2)
}

func TestGenerateQA_OtherOwnersDocumentHidden(t *testing.T) {
	storage := newMemDocs()
	svc := newTestService(storage, newMemSessions(), &stubExtractor{}, nil)

	doc, err := svc.Submit(context.Background(), &interfaces.SubmitDocumentRequest{
		OwnerID:  "user_1",
		Title:    "Private",
		Filename: "private.txt",
		Data:     []byte("Owner one's private document content."),
	})
	require.NoError(t, err)

	_, err = svc.GenerateQA(context.Background(), doc.ID, "user_2", 3)
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))
}

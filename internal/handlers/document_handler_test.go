package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docent/internal/interfaces"
	"github.com/ternarybob/docent/internal/models"
)

// stubDocumentService implements interfaces.DocumentService for handler tests
type stubDocumentService struct {
	submitted   *interfaces.SubmitDocumentRequest
	doc         *models.Document
	err         error
	owner       string
	deleted     []string
	reprocessed []string
	results     []interfaces.SearchResult
	qaCount     int
	pairs       []models.QAPair
}

func (s *stubDocumentService) Submit(ctx context.Context, req *interfaces.SubmitDocumentRequest) (*models.Document, error) {
	s.submitted = req
	return s.doc, s.err
}

func (s *stubDocumentService) Reprocess(ctx context.Context, documentID, ownerID string) (*models.Document, error) {
	s.reprocessed = append(s.reprocessed, documentID)
	s.owner = ownerID
	return s.doc, s.err
}

func (s *stubDocumentService) GetDocument(documentID, ownerID string) (*models.Document, error) {
	s.owner = ownerID
	return s.doc, s.err
}

func (s *stubDocumentService) ListDocuments(ownerID string) ([]*models.Document, error) {
	if s.doc == nil {
		return nil, s.err
	}
	return []*models.Document{s.doc}, s.err
}

func (s *stubDocumentService) DeleteDocument(documentID, ownerID string) error {
	s.deleted = append(s.deleted, documentID)
	s.owner = ownerID
	return s.err
}

func (s *stubDocumentService) Search(ctx context.Context, req *interfaces.SearchRequest) ([]interfaces.SearchResult, error) {
	return s.results, s.err
}

func (s *stubDocumentService) Summarize(ctx context.Context, documentID, ownerID string) (string, error) {
	s.owner = ownerID
	return "a summary", s.err
}

func (s *stubDocumentService) AnalyzeStructure(documentID, ownerID string) (*models.DocumentStructure, error) {
	s.owner = ownerID
	return &models.DocumentStructure{WordCount: 42}, s.err
}

func (s *stubDocumentService) GenerateQA(ctx context.Context, documentID, ownerID string, count int) ([]models.QAPair, error) {
	s.owner = ownerID
	s.qaCount = count
	return s.pairs, s.err
}

func multipartUpload(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestDocumentUpload(t *testing.T) {
	svc := &stubDocumentService{doc: &models.Document{ID: "doc_1", Status: models.DocumentStatusReady}}
	h := NewDocumentHandler(svc, nil, arbor.NewLogger())

	body, contentType := multipartUpload(t, "notes.txt", "hello world", map[string]string{
		"owner_id": "user_1",
		"title":    "Notes",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.CollectionHandler(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.submitted)
	assert.Equal(t, "user_1", svc.submitted.OwnerID)
	assert.Equal(t, "Notes", svc.submitted.Title)
	assert.Equal(t, "notes.txt", svc.submitted.Filename)
	assert.Equal(t, []byte("hello world"), svc.submitted.Data)
}

func TestDocumentUpload_MissingFilePart(t *testing.T) {
	h := NewDocumentHandler(&stubDocumentService{}, nil, arbor.NewLogger())

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("title", "No file"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()

	h.CollectionHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentList_RequiresOwner(t *testing.T) {
	h := NewDocumentHandler(&stubDocumentService{}, nil, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	rec := httptest.NewRecorder()

	h.CollectionHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentItem_NotFound(t *testing.T) {
	svc := &stubDocumentService{err: interfaces.ErrNotFound}
	h := NewDocumentHandler(svc, nil, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc_absent", nil)
	req.Header.Set("X-Owner-ID", "user_1")
	rec := httptest.NewRecorder()

	h.ItemHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocumentItem_RequiresOwner(t *testing.T) {
	svc := &stubDocumentService{doc: &models.Document{ID: "doc_1"}}
	h := NewDocumentHandler(svc, nil, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc_1", nil)
	rec := httptest.NewRecorder()

	h.ItemHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.owner)
}

func TestDocumentItem_Reprocess(t *testing.T) {
	svc := &stubDocumentService{doc: &models.Document{ID: "doc_1"}}
	h := NewDocumentHandler(svc, nil, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/doc_1/reprocess", nil)
	req.Header.Set("X-Owner-ID", "user_1")
	rec := httptest.NewRecorder()

	h.ItemHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"doc_1"}, svc.reprocessed)
	assert.Equal(t, "user_1", svc.owner)
}

func TestDocumentItem_Summary(t *testing.T) {
	svc := &stubDocumentService{}
	h := NewDocumentHandler(svc, nil, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc_1/summary", nil)
	req.Header.Set("X-Owner-ID", "user_1")
	rec := httptest.NewRecorder()

	h.ItemHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "a summary", resp["summary"])
}

func TestDocumentItem_Delete(t *testing.T) {
	svc := &stubDocumentService{}
	h := NewDocumentHandler(svc, nil, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/doc_1", nil)
	req.Header.Set("X-Owner-ID", "user_1")
	rec := httptest.NewRecorder()

	h.ItemHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"doc_1"}, svc.deleted)
	assert.Equal(t, "user_1", svc.owner)
}

func TestDocumentItem_QAPairs(t *testing.T) {
	svc := &stubDocumentService{pairs: []models.QAPair{
		{Question: "What is Go?", Answer: "A programming language."},
	}}
	h := NewDocumentHandler(svc, nil, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc_1/qa?num=3", nil)
	req.Header.Set("X-Owner-ID", "user_1")
	rec := httptest.NewRecorder()

	h.ItemHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, svc.qaCount)
	assert.Equal(t, "user_1", svc.owner)

	var resp struct {
		Pairs []models.QAPair `json:"qa_pairs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Pairs, 1)
	assert.Equal(t, "What is Go?", resp.Pairs[0].Question)
}

func TestDocumentItem_QAPairsRejectsBadCount(t *testing.T) {
	h := NewDocumentHandler(&stubDocumentService{}, nil, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc_1/qa?num=zero", nil)
	req.Header.Set("X-Owner-ID", "user_1")
	rec := httptest.NewRecorder()

	h.ItemHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentItem_ExportText(t *testing.T) {
	svc := &stubDocumentService{doc: &models.Document{
		ID:      "doc_1",
		Title:   "Notes",
		Content: "extracted text here",
	}}
	h := NewDocumentHandler(svc, nil, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc_1/export", nil)
	req.Header.Set("X-Owner-ID", "user_1")
	rec := httptest.NewRecorder()

	h.ItemHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "extracted text here", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `"Notes.txt"`)
}

func TestDocumentItem_ExportMarkdown(t *testing.T) {
	svc := &stubDocumentService{doc: &models.Document{
		ID:      "doc_1",
		Title:   "Notes",
		Content: "extracted text here",
	}}
	h := NewDocumentHandler(svc, nil, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc_1/export?format=md", nil)
	req.Header.Set("X-Owner-ID", "user_1")
	rec := httptest.NewRecorder()

	h.ItemHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# Notes\n\nextracted text here", rec.Body.String())
}

func TestDocumentItem_ExportUnsupportedFormat(t *testing.T) {
	svc := &stubDocumentService{doc: &models.Document{ID: "doc_1", Title: "Notes"}}
	h := NewDocumentHandler(svc, nil, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc_1/export?format=docx", nil)
	req.Header.Set("X-Owner-ID", "user_1")
	rec := httptest.NewRecorder()

	h.ItemHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchHandler_ReturnsResults(t *testing.T) {
	svc := &stubDocumentService{results: []interfaces.SearchResult{
		{ChunkID: "c1", DocumentID: "doc_1", Text: "match", Score: 0.9},
	}}
	h := NewSearchHandler(svc, arbor.NewLogger())

	payload, _ := json.Marshal(SearchRequestBody{OwnerID: "user_1", Query: "match", Limit: 5})
	req := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(payload))
	rec := httptest.NewRecorder()

	h.Handle(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Results []interfaces.SearchResult `json:"results"`
		Count   int                       `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "c1", resp.Results[0].ChunkID)
}

func TestSearchHandler_RejectsGet(t *testing.T) {
	h := NewSearchHandler(&stubDocumentService{}, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	rec := httptest.NewRecorder()

	h.Handle(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

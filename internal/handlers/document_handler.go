package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docent/internal/interfaces"
)

// maxUploadBytes caps document upload size (16 MB)
const maxUploadBytes = 16 << 20

// DocumentHandler serves the document lifecycle API
type DocumentHandler struct {
	documentService interfaces.DocumentService
	documentStorage interfaces.DocumentStorage
	logger          arbor.ILogger
}

func NewDocumentHandler(documentService interfaces.DocumentService, documentStorage interfaces.DocumentStorage, logger arbor.ILogger) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		documentStorage: documentStorage,
		logger:          logger,
	}
}

// CollectionHandler handles /api/documents: POST uploads, GET lists
func (h *DocumentHandler) CollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.upload(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// upload accepts a multipart form with a "file" part plus title/owner fields
func (h *DocumentHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	ownerID := r.FormValue("owner_id")
	if ownerID == "" {
		ownerID = OwnerID(r)
	}
	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}

	doc, err := h.documentService.Submit(r.Context(), &interfaces.SubmitDocumentRequest{
		OwnerID:  ownerID,
		Title:    title,
		Filename: header.Filename,
		Data:     data,
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("filename", header.Filename).Msg("Document submission rejected")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) list(w http.ResponseWriter, r *http.Request) {
	ownerID := OwnerID(r)
	if ownerID == "" {
		WriteError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	docs, err := h.documentService.ListDocuments(ownerID)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list documents")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

// StatsHandler returns aggregate document statistics
func (h *DocumentHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.documentStorage.GetStats()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to get document stats")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// ItemHandler routes /api/documents/{id} and its subresources. Every route
// is scoped to the caller's owner id; other owners' documents read as not
// found.
func (h *DocumentHandler) ItemHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "document id is required")
		return
	}

	ownerID := OwnerID(r)
	if ownerID == "" {
		WriteError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id, ownerID)
		case http.MethodDelete:
			h.delete(w, r, id, ownerID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "reprocess":
		if !RequireMethod(w, r, http.MethodPost) {
			return
		}
		h.reprocess(w, r, id, ownerID)
	case "summary":
		if !RequireMethod(w, r, http.MethodGet) {
			return
		}
		h.summary(w, r, id, ownerID)
	case "structure":
		if !RequireMethod(w, r, http.MethodGet) {
			return
		}
		h.structure(w, r, id, ownerID)
	case "qa":
		if !RequireMethod(w, r, http.MethodGet) {
			return
		}
		h.qaPairs(w, r, id, ownerID)
	case "export":
		if !RequireMethod(w, r, http.MethodGet) {
			return
		}
		h.export(w, r, id, ownerID)
	default:
		WriteError(w, http.StatusNotFound, "unknown document resource")
	}
}

func (h *DocumentHandler) get(w http.ResponseWriter, r *http.Request, id, ownerID string) {
	doc, err := h.documentService.GetDocument(id, ownerID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) delete(w http.ResponseWriter, r *http.Request, id, ownerID string) {
	if err := h.documentService.DeleteDocument(id, ownerID); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, "document deleted")
}

func (h *DocumentHandler) reprocess(w http.ResponseWriter, r *http.Request, id, ownerID string) {
	doc, err := h.documentService.Reprocess(r.Context(), id, ownerID)
	if err != nil {
		h.logger.Warn().Err(err).Str("doc_id", id).Msg("Reprocess failed")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) summary(w http.ResponseWriter, r *http.Request, id, ownerID string) {
	summary, err := h.documentService.Summarize(r.Context(), id, ownerID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"document_id": id,
		"summary":     summary,
	})
}

func (h *DocumentHandler) structure(w http.ResponseWriter, r *http.Request, id, ownerID string) {
	structure, err := h.documentService.AnalyzeStructure(id, ownerID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, structure)
}

// qaPairs generates study question-answer pairs from the document. The "num"
// query parameter sets how many; the service default applies otherwise.
func (h *DocumentHandler) qaPairs(w http.ResponseWriter, r *http.Request, id, ownerID string) {
	count := 0
	if num := r.URL.Query().Get("num"); num != "" {
		parsed, err := strconv.Atoi(num)
		if err != nil || parsed <= 0 {
			WriteError(w, http.StatusBadRequest, "num must be a positive integer")
			return
		}
		count = parsed
	}

	pairs, err := h.documentService.GenerateQA(r.Context(), id, ownerID, count)
	if err != nil {
		h.logger.Warn().Err(err).Str("doc_id", id).Msg("QA generation failed")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": id,
		"qa_pairs":    pairs,
	})
}

// export downloads the document's extracted text. Supported formats: txt
// (default), md, json.
func (h *DocumentHandler) export(w http.ResponseWriter, r *http.Request, id, ownerID string) {
	doc, err := h.documentService.GetDocument(id, ownerID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "txt"
	}

	filename := fmt.Sprintf("%s.%s", doc.Title, format)
	switch format {
	case "txt":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(doc.Content))
	case "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "# %s\n\n%s", doc.Title, doc.Content)
	case "json":
		structure, err := h.documentService.AnalyzeStructure(id, ownerID)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"title":      doc.Title,
			"filename":   doc.Filename,
			"content":    doc.Content,
			"created_at": doc.CreatedAt,
			"structure":  structure,
		})
	default:
		WriteError(w, http.StatusBadRequest, "unsupported export format")
	}
}

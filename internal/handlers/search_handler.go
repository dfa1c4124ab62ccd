package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docent/internal/interfaces"
)

// SearchHandler serves cross-document semantic search
type SearchHandler struct {
	documentService interfaces.DocumentService
	logger          arbor.ILogger
}

func NewSearchHandler(documentService interfaces.DocumentService, logger arbor.ILogger) *SearchHandler {
	return &SearchHandler{
		documentService: documentService,
		logger:          logger,
	}
}

// SearchRequestBody is the POST /api/search payload
type SearchRequestBody struct {
	OwnerID string `json:"owner_id"`
	Query   string `json:"query"`
	Limit   int    `json:"limit"`
}

// SearchHandler handles POST /api/search
func (h *SearchHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var body SearchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.OwnerID == "" {
		body.OwnerID = OwnerID(r)
	}

	results, err := h.documentService.Search(r.Context(), &interfaces.SearchRequest{
		OwnerID: body.OwnerID,
		Query:   body.Query,
		Limit:   body.Limit,
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("Search failed")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

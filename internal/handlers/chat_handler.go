package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docent/internal/interfaces"
)

// ChatHandler serves the conversational API
type ChatHandler struct {
	chatService interfaces.ChatService
	logger      arbor.ILogger
}

func NewChatHandler(chatService interfaces.ChatService, logger arbor.ILogger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// AskHandler handles POST /api/chat: one question, one grounded answer
func (h *ChatHandler) AskHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req interfaces.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OwnerID == "" {
		req.OwnerID = OwnerID(r)
	}

	resp, err := h.chatService.Ask(r.Context(), &req)
	if err != nil {
		h.logger.Warn().Err(err).Str("doc_id", req.DocumentID).Msg("Ask failed")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

// SessionsHandler handles GET /api/chat/sessions (list by owner)
func (h *ChatHandler) SessionsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	ownerID := OwnerID(r)
	if ownerID == "" {
		WriteError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	sessions, err := h.chatService.ListSessions(ownerID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// SessionHandler routes /api/chat/sessions/{id}: GET history, DELETE session.
// The caller's owner id scopes both; other owners' sessions read as not found.
func (h *ChatHandler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/chat/sessions/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusBadRequest, "session id is required")
		return
	}

	ownerID := OwnerID(r)
	if ownerID == "" {
		WriteError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		session, err := h.chatService.GetSession(id, ownerID)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, session)
	case http.MethodDelete:
		if err := h.chatService.DeleteSession(id, ownerID); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteSuccess(w, "session deleted")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

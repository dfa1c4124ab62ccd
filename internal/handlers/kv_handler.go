package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docent/internal/interfaces"
)

// KVHandler manages the key/value store used for provider API keys and
// other runtime settings
type KVHandler struct {
	storage interfaces.KeyValueStorage
	logger  arbor.ILogger
}

func NewKVHandler(storage interfaces.KeyValueStorage, logger arbor.ILogger) *KVHandler {
	return &KVHandler{
		storage: storage,
		logger:  logger,
	}
}

// CollectionHandler handles /api/kv: GET lists, POST sets a pair
func (h *KVHandler) CollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		pairs, err := h.storage.List(r.URL.Query().Get("prefix"))
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"pairs": pairs,
			"count": len(pairs),
		})
	case http.MethodPost:
		var pair interfaces.KeyValuePair
		if err := json.NewDecoder(r.Body).Decode(&pair); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if pair.Key == "" {
			WriteError(w, http.StatusBadRequest, "key is required")
			return
		}
		if err := h.storage.Set(pair.Key, pair.Value); err != nil {
			WriteServiceError(w, err)
			return
		}
		h.logger.Debug().Str("key", pair.Key).Msg("Stored key/value pair")
		WriteSuccess(w, "stored")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ItemHandler handles /api/kv/{key}: GET and DELETE
func (h *KVHandler) ItemHandler(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/kv/")
	if key == "" {
		WriteError(w, http.StatusBadRequest, "key is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		value, err := h.storage.Get(key)
		if err != nil {
			if errors.Is(err, interfaces.ErrKeyNotFound) {
				WriteError(w, http.StatusNotFound, "key not found")
				return
			}
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, interfaces.KeyValuePair{Key: key, Value: value})
	case http.MethodDelete:
		if err := h.storage.Delete(key); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteSuccess(w, "deleted")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docent/internal/common"
	"github.com/ternarybob/docent/internal/interfaces"
)

// APIHandler serves version, health and fallthrough routes
type APIHandler struct {
	storage   interfaces.StorageManager
	providers []interfaces.LLMService
	logger    arbor.ILogger
}

func NewAPIHandler(storage interfaces.StorageManager, providers []interfaces.LLMService, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		storage:   storage,
		providers: providers,
		logger:    logger,
	}
}

// VersionHandler returns build version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.Version,
		"build":   common.Build,
		"commit":  common.GitCommit,
	})
}

// HealthHandler reports storage and provider health. Storage failure makes
// the service unhealthy; provider failures only degrade it because the
// deterministic fallbacks keep answering.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	status := "healthy"
	code := http.StatusOK

	if _, err := h.storage.DocumentStorage().CountDocuments(); err != nil {
		h.logger.Error().Err(err).Msg("Storage health check failed")
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	providersUp := 0
	for _, provider := range h.providers {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		err := provider.HealthCheck(ctx)
		cancel()
		if err == nil {
			providersUp++
		}
	}
	if status == "healthy" && len(h.providers) > 0 && providersUp == 0 {
		status = "degraded"
	}

	WriteJSON(w, code, map[string]interface{}{
		"status":       status,
		"providers_up": providersUp,
		"providers":    len(h.providers),
	})
}

// NotFoundHandler is the fallthrough for unmatched API routes
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "unknown API route")
}

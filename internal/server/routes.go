package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Documents
	mux.HandleFunc("/api/documents/stats", s.app.DocumentHandler.StatsHandler)
	mux.HandleFunc("/api/documents", s.app.DocumentHandler.CollectionHandler)
	mux.HandleFunc("/api/documents/", s.app.DocumentHandler.ItemHandler) // /{id}, /{id}/reprocess, /{id}/summary, /{id}/structure

	// API routes - Search
	mux.HandleFunc("/api/search", s.app.SearchHandler.Handle)

	// API routes - Chat
	mux.HandleFunc("/api/chat", s.app.ChatHandler.AskHandler)
	mux.HandleFunc("/api/chat/sessions", s.app.ChatHandler.SessionsHandler)
	mux.HandleFunc("/api/chat/sessions/", s.app.ChatHandler.SessionHandler)

	// API routes - Key/value settings (provider API keys)
	mux.HandleFunc("/api/kv", s.app.KVHandler.CollectionHandler)
	mux.HandleFunc("/api/kv/", s.app.KVHandler.ItemHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

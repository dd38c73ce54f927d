// -----------------------------------------------------------------------
// Last Modified: Saturday, 29th August 2026 5:25:00 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Manuscripts (import, list, resume, search)
	mux.HandleFunc("/api/manuscripts", s.app.ManuscriptHandler.CollectionHandler)
	mux.HandleFunc("/api/manuscripts/", s.app.ManuscriptHandler.ItemHandler)

	// API routes - Characters
	mux.HandleFunc("/api/characters", s.app.CharacterHandler.CollectionHandler)
	mux.HandleFunc("/api/characters/extract", s.app.CharacterHandler.ExtractHandler)
	mux.HandleFunc("/api/characters/", s.app.CharacterHandler.ItemHandler)

	// API routes - Chat (character conversations)
	mux.HandleFunc("/api/chat", s.app.ChatHandler.ChatHandler)
	mux.HandleFunc("/api/chat/health", s.app.ChatHandler.HealthHandler)

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)

	return mux
}

package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
)

// StatusHandler reports application status: version, storage counts, and
// LLM backend health
type StatusHandler struct {
	storage interfaces.StorageManager
	llm     interfaces.LLMService
	logger  arbor.ILogger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(storage interfaces.StorageManager, llm interfaces.LLMService, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		storage: storage,
		llm:     llm,
		logger:  logger,
	}
}

// GetStatusHandler handles GET /api/status requests
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	manuscriptCount, err := h.storage.ManuscriptStorage().CountManuscripts()
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to count manuscripts for status")
	}

	characters, err := h.storage.CharacterStorage().ListCharacters("")
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to list characters for status")
	}

	llmHealthy := h.llm.HealthCheck(r.Context()) == nil

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version":     common.GetVersion(),
		"manuscripts": manuscriptCount,
		"characters":  len(characters),
		"goroutines":  common.GetGoroutineCount(),
		"llm": map[string]interface{}{
			"healthy": llmHealthy,
			"model":   h.llm.ModelName(),
			"mode":    h.llm.GetMode(),
		},
	})
}

// VersionHandler handles GET /api/version requests
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetFullVersion(),
	})
}

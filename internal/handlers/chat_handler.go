package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/interfaces"
)

// ChatHandler handles character conversation requests
type ChatHandler struct {
	chatService interfaces.ChatService
	logger      arbor.ILogger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService interfaces.ChatService, logger arbor.ILogger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// ChatHandler handles POST /api/chat requests
func (h *ChatHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req interfaces.ChatRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	h.logger.Info().
		Str("character_id", req.CharacterID).
		Int("message_length", len(req.Message)).
		Msg("Processing chat request")

	response, err := h.chatService.Chat(r.Context(), &req)
	if err != nil {
		h.logger.Error().Err(err).Str("character_id", req.CharacterID).Msg("Chat turn failed")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  response.Message,
		"passages": response.Passages,
		"model":    response.Model,
		"mode":     response.Mode,
	})
}

// HealthHandler handles GET /api/chat/health requests
func (h *ChatHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if err := h.chatService.HealthCheck(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("Chat service health check failed")
		WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"healthy": false,
			"mode":    h.chatService.GetMode(),
			"error":   err.Error(),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"healthy": true,
		"mode":    h.chatService.GetMode(),
	})
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
)

// CharacterHandler handles character profile requests
type CharacterHandler struct {
	characters interfaces.CharacterService
	logger     arbor.ILogger
}

// NewCharacterHandler creates a new character handler
func NewCharacterHandler(characters interfaces.CharacterService, logger arbor.ILogger) *CharacterHandler {
	return &CharacterHandler{
		characters: characters,
		logger:     logger,
	}
}

// createCharacterRequest is the POST /api/characters body
type createCharacterRequest struct {
	Name         string `json:"name" validate:"required"`
	Role         string `json:"role"`
	Traits       string `json:"traits"`
	ManuscriptID string `json:"manuscript_id" validate:"required"`
}

// CollectionHandler handles /api/characters: POST creates, GET lists
// (optionally filtered by ?manuscript_id=)
func (h *CharacterHandler) CollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createCharacter(w, r)
	case http.MethodGet:
		h.listCharacters(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ItemHandler handles /api/characters/{id}: GET, DELETE
func (h *CharacterHandler) ItemHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/characters/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusBadRequest, "Character ID is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getCharacter(w, r, id)
	case http.MethodDelete:
		h.deleteCharacter(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// extractCharactersRequest is the POST /api/characters/extract body
type extractCharactersRequest struct {
	ManuscriptID string `json:"manuscript_id" validate:"required"`
}

// ExtractHandler handles POST /api/characters/extract: detect characters
// in a manuscript's text and register profiles for the new ones
func (h *CharacterHandler) ExtractHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req extractCharactersRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	created, err := h.characters.ExtractFromManuscript(r.Context(), req.ManuscriptID)
	if err != nil {
		h.logger.Error().Err(err).Str("manuscript_id", req.ManuscriptID).Msg("Character extraction failed")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"characters": created,
		"count":      len(created),
	})
}

func (h *CharacterHandler) createCharacter(w http.ResponseWriter, r *http.Request) {
	var req createCharacterRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	c, err := h.characters.Create(r.Context(), &models.CharacterProfile{
		Name:         req.Name,
		Role:         req.Role,
		Traits:       req.Traits,
		ManuscriptID: req.ManuscriptID,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("name", req.Name).Msg("Character creation failed")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, c)
}

func (h *CharacterHandler) listCharacters(w http.ResponseWriter, r *http.Request) {
	characters, err := h.characters.List(r.Context(), r.URL.Query().Get("manuscript_id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"characters": characters,
		"count":      len(characters),
	})
}

func (h *CharacterHandler) getCharacter(w http.ResponseWriter, r *http.Request, id string) {
	c, err := h.characters.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

func (h *CharacterHandler) deleteCharacter(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.characters.Delete(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"id":     id,
	})
}

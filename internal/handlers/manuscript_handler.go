package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/interfaces"
)

// ManuscriptHandler handles manuscript import and management requests
type ManuscriptHandler struct {
	manuscripts interfaces.ManuscriptService
	retrieval   interfaces.RetrievalService
	logger      arbor.ILogger
}

// NewManuscriptHandler creates a new manuscript handler
func NewManuscriptHandler(
	manuscripts interfaces.ManuscriptService,
	retrieval interfaces.RetrievalService,
	logger arbor.ILogger,
) *ManuscriptHandler {
	return &ManuscriptHandler{
		manuscripts: manuscripts,
		retrieval:   retrieval,
		logger:      logger,
	}
}

// CollectionHandler handles /api/manuscripts: POST imports, GET lists
func (h *ManuscriptHandler) CollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.importManuscript(w, r)
	case http.MethodGet:
		h.listManuscripts(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ItemHandler handles /api/manuscripts/{id} and its subpaths:
// GET/DELETE on the manuscript, POST /{id}/resume, GET /{id}/search
func (h *ManuscriptHandler) ItemHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/manuscripts/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Manuscript ID is required")
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "resume":
			h.resumeManuscript(w, r, id)
		case "search":
			h.searchManuscript(w, r, id)
		default:
			WriteError(w, http.StatusNotFound, "Unknown manuscript operation")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getManuscript(w, r, id)
	case http.MethodDelete:
		h.deleteManuscript(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ManuscriptHandler) importManuscript(w http.ResponseWriter, r *http.Request) {
	var req interfaces.ImportRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	h.logger.Info().
		Str("title", req.Title).
		Int("text_length", len(req.Text)).
		Msg("Processing manuscript import")

	m, err := h.manuscripts.Import(r.Context(), &req)
	if err != nil {
		h.logger.Error().Err(err).Str("title", req.Title).Msg("Manuscript import failed")
		WriteServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if r.Context().Err() != nil {
		// Client went away mid-import; the committed prefix is kept and
		// the background resumer finishes the tail
		status = http.StatusAccepted
	}
	WriteJSON(w, status, m)
}

func (h *ManuscriptHandler) listManuscripts(w http.ResponseWriter, r *http.Request) {
	manuscripts, err := h.manuscripts.List(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"manuscripts": manuscripts,
		"count":       len(manuscripts),
	})
}

func (h *ManuscriptHandler) getManuscript(w http.ResponseWriter, r *http.Request, id string) {
	m, err := h.manuscripts.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, m)
}

func (h *ManuscriptHandler) deleteManuscript(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.manuscripts.Remove(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"id":     id,
	})
}

func (h *ManuscriptHandler) resumeManuscript(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	m, err := h.manuscripts.Resume(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("manuscript_id", id).Msg("Manuscript resume failed")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, m)
}

// searchManuscript handles GET /api/manuscripts/{id}/search?q=...&k=...
func (h *ManuscriptHandler) searchManuscript(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query().Get("q")
	k := 0
	if kStr := r.URL.Query().Get("k"); kStr != "" {
		if parsed, err := strconv.Atoi(kStr); err == nil && parsed > 0 {
			k = parsed
		}
	}

	result, err := h.retrieval.Retrieve(r.Context(), id, query, k, 0)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

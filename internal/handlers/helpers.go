package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/fabula/internal/common"
)

var validate = validator.New()

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// DecodeAndValidate decodes the request body into dst and runs struct
// validation. Writes the error response itself and returns false on failure.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// StatusForError maps pipeline errors onto HTTP status codes: caller
// mistakes are 4xx, backend outages are 503, everything else is 500.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidQuery) || common.IsConfigurationError(err):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrManuscriptNotFound) || errors.Is(err, common.ErrCharacterNotFound):
		return http.StatusNotFound
	case common.IsDuplicateChunk(err):
		return http.StatusConflict
	case errors.Is(err, common.ErrEmbeddingUnavailable) || errors.Is(err, common.ErrCompletionUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError writes an error response with the mapped status code
func WriteServiceError(w http.ResponseWriter, err error) error {
	return WriteError(w, StatusForError(err), err.Error())
}

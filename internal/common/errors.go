package common

import (
	"errors"
	"fmt"
)

// Sentinel errors for the retrieval pipeline. Callers classify failures
// with errors.Is and decide whether to retry or surface them.
var (
	// ErrEmbeddingUnavailable indicates the embedding backend is unreachable
	// or returned malformed output. Transient; safe to retry.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrCompletionUnavailable indicates the completion backend is unreachable.
	// Transient; safe to retry. Malformed responses are NOT wrapped with this
	// error so callers can distinguish the two failure modes.
	ErrCompletionUnavailable = errors.New("completion service unavailable")

	// ErrInvalidQuery indicates an empty or malformed retrieval query.
	// Rejected immediately, never retried.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrManuscriptNotFound indicates the manuscript ID is not registered.
	ErrManuscriptNotFound = errors.New("manuscript not found")

	// ErrCharacterNotFound indicates the character ID is not registered.
	ErrCharacterNotFound = errors.New("character not found")
)

// ConfigurationError reports an invalid chunking or retrieval parameter.
// Surfaced before any embedding or storage work starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// NewConfigurationError creates a ConfigurationError for the given field
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

// IsConfigurationError reports whether err is a ConfigurationError
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// DuplicateChunkError reports an attempt to insert a second record for the
// same (manuscript, generation, chunk index). Fatal for the import that
// triggered it; the index itself stays intact.
type DuplicateChunkError struct {
	ManuscriptID string
	Generation   int
	Index        int
}

func (e *DuplicateChunkError) Error() string {
	return fmt.Sprintf("duplicate chunk: manuscript %s generation %d index %d already indexed",
		e.ManuscriptID, e.Generation, e.Index)
}

// IsDuplicateChunk reports whether err is a DuplicateChunkError
func IsDuplicateChunk(err error) bool {
	var de *DuplicateChunkError
	return errors.As(err, &de)
}

package interfaces

import (
	"context"

	"github.com/ternarybob/fabula/internal/models"
)

// ChatRequest represents one conversation turn with a character
type ChatRequest struct {
	// CharacterID selects the character profile (and its manuscript)
	CharacterID string `json:"character_id" validate:"required"`

	// Message is the user's question for the character
	Message string `json:"message" validate:"required"`
}

// ChatResponse represents the character's reply for one turn
type ChatResponse struct {
	// Message is the generated in-character response
	Message string `json:"message"`

	// Passages are the retrieved manuscript excerpts used for grounding
	// (empty when nothing cleared the similarity threshold)
	Passages []models.ScoredChunk `json:"passages,omitempty"`

	// Model is the completion model used
	Model string `json:"model"`

	// Mode is the LLM mode (offline/cloud)
	Mode LLMMode `json:"mode"`
}

// ChatService runs the per-turn RAG pipeline: retrieve manuscript context,
// assemble the character prompt, call the completion backend, and record
// the turn in the character's history.
type ChatService interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// HealthCheck verifies the completion backend is operational
	HealthCheck(ctx context.Context) error

	// GetMode returns the current LLM mode
	GetMode() LLMMode
}

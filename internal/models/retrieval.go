package models

// ScoredChunk pairs a retrieved chunk with its cosine similarity score
type ScoredChunk struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// RetrievalResult holds the passages retrieved for one query, ordered by
// descending similarity. Ephemeral: produced per query, never persisted.
// Zero passages is a valid, common outcome, not an error.
type RetrievalResult struct {
	Query        string        `json:"query"`
	ManuscriptID string        `json:"manuscript_id"`
	Passages     []ScoredChunk `json:"passages"`
}

// Empty reports whether no passages cleared the similarity threshold
func (r *RetrievalResult) Empty() bool {
	return r == nil || len(r.Passages) == 0
}

// AssembledContext is the structured prompt produced for one chat turn.
// Ephemeral, created per turn.
type AssembledContext struct {
	System   string             `json:"system"` // Stay-in-character system instruction
	Prompt   string             `json:"prompt"` // Biography, passages, history, question
	Passages []ScoredChunk      `json:"passages"`
	Turns    []ConversationTurn `json:"turns"`
	Tokens   int                `json:"tokens"` // Estimated prompt size after truncation
}

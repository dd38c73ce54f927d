package models

import (
	"time"
)

// CharacterProfile represents a fictional character grounded in a manuscript.
// The retrieval pipeline only reads Name/Role/Traits to build prompts; the
// conversation subsystem owns the rest.
type CharacterProfile struct {
	ID           string `json:"id"` // char_<uuid>
	Name         string `json:"name"`
	Role         string `json:"role"`
	Traits       string `json:"traits"` // Free-text personality description
	ManuscriptID string `json:"manuscript_id"`

	// Ordered conversation history, oldest first, bounded to the most
	// recent turns (see chat.stored_turns).
	History []ConversationTurn `json:"history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationTurn is one user question and the character's response
type ConversationTurn struct {
	UserMessage       string    `json:"user_message"`
	CharacterResponse string    `json:"character_response"`
	Timestamp         time.Time `json:"timestamp"`
}

// AppendTurn adds a turn to the history, trimming to maxStored entries.
// Oldest turns are discarded first.
func (c *CharacterProfile) AppendTurn(turn ConversationTurn, maxStored int) {
	c.History = append(c.History, turn)
	if maxStored > 0 && len(c.History) > maxStored {
		c.History = c.History[len(c.History)-maxStored:]
	}
}

// RecentTurns returns the last n turns in chronological order
func (c *CharacterProfile) RecentTurns(n int) []ConversationTurn {
	if n <= 0 || len(c.History) == 0 {
		return nil
	}
	if len(c.History) <= n {
		return c.History
	}
	return c.History[len(c.History)-n:]
}

package chat

import (
	"fmt"
	"strings"

	"github.com/ternarybob/fabula/internal/models"
)

// CharacterSystemPrompt keeps the model in character for the whole turn.
// It travels on the provider's system channel, separate from the prompt
// body, and is never truncated.
const CharacterSystemPrompt = `You are not an AI assistant. You are a fictional character from a novel. You must answer completely from the perspective of this character, using their voice, personality, and knowledge. Never break character.`

// noContextPlaceholder stands in for the excerpt section when nothing
// cleared the similarity threshold. The character can still answer from
// its biography.
const noContextPlaceholder = "No specific context available."

// noHistoryPlaceholder stands in for the history section on a first turn
const noHistoryPlaceholder = "No previous conversation."

// renderPrompt builds the prompt body: biography, manuscript excerpts,
// conversation history, then the author's question. The biography and
// question sections are always present; passages and turns are whatever
// survived truncation.
func renderPrompt(c *models.CharacterProfile, passages []models.ScoredChunk, turns []models.ConversationTurn, question string) string {
	var b strings.Builder

	b.WriteString("### CHARACTER BIOGRAPHY\n")
	fmt.Fprintf(&b, "Name: %s\n", c.Name)
	fmt.Fprintf(&b, "Role: %s\n", c.Role)
	fmt.Fprintf(&b, "Personality Traits: %s\n\n", c.Traits)

	b.WriteString("### RELEVANT MANUSCRIPT CONTEXT\n")
	b.WriteString("Here are some relevant excerpts from the manuscript that might help you answer the user's question. You should treat these as your memories and experiences:\n---\n")
	if len(passages) == 0 {
		b.WriteString(noContextPlaceholder)
	} else {
		for i, p := range passages {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(p.Text)
		}
	}
	b.WriteString("\n---\n\n")

	b.WriteString("### CONVERSATION HISTORY\n")
	if len(turns) == 0 {
		b.WriteString(noHistoryPlaceholder)
	} else {
		for i, turn := range turns {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "Author: %s\n", turn.UserMessage)
			fmt.Fprintf(&b, "%s: %s", c.Name, turn.CharacterResponse)
		}
	}
	b.WriteString("\n\n")

	b.WriteString("### AUTHOR'S QUESTION\n")
	b.WriteString(question)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "### YOUR RESPONSE (as %s):\n", c.Name)

	return b.String()
}

package chat

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/models"
)

// Assembler builds the per-turn prompt from character profile, retrieved
// passages, and conversation history, truncating to the token budget.
// Truncation drops the oldest history turns first, then the
// lowest-similarity passages; the biography and the question always
// survive.
type Assembler struct {
	logger       arbor.ILogger
	historyTurns int
	budget       int
	system       string

	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
}

// NewAssembler creates a context assembler. historyTurns bounds how many
// recent turns are rendered; budget is the token ceiling for the whole
// prompt (no ceiling when zero).
func NewAssembler(historyTurns, budget int, logger arbor.ILogger) *Assembler {
	return &Assembler{
		logger:       logger,
		historyTurns: historyTurns,
		budget:       budget,
		system:       CharacterSystemPrompt,
	}
}

// WithSystemPrompt replaces the built-in character instruction. Blank
// input keeps the default.
func (a *Assembler) WithSystemPrompt(system string) *Assembler {
	if strings.TrimSpace(system) != "" {
		a.system = system
	}
	return a
}

// Assemble produces the structured prompt for one chat turn. The passages
// arrive ranked by descending similarity and keep that order in the
// prompt; history renders oldest-first.
func (a *Assembler) Assemble(c *models.CharacterProfile, result *models.RetrievalResult, question string) *models.AssembledContext {
	passages := result.Passages
	turns := c.RecentTurns(a.historyTurns)

	prompt := renderPrompt(c, passages, turns, question)
	tokens := a.countTokens(a.system) + a.countTokens(prompt)

	// Shrink until the prompt fits: oldest turn first, then weakest
	// passage (the passages are sorted by score, so the weakest is last)
	for a.budget > 0 && tokens > a.budget {
		if len(turns) > 0 {
			turns = turns[1:]
		} else if len(passages) > 0 {
			passages = passages[:len(passages)-1]
		} else {
			// Only biography and question remain; nothing else to drop
			break
		}
		prompt = renderPrompt(c, passages, turns, question)
		tokens = a.countTokens(a.system) + a.countTokens(prompt)
	}

	if len(passages) < len(result.Passages) || len(turns) < len(c.RecentTurns(a.historyTurns)) {
		a.logger.Debug().
			Int("passages", len(passages)).
			Int("turns", len(turns)).
			Int("tokens", tokens).
			Msg("Prompt truncated to fit token budget")
	}

	return &models.AssembledContext{
		System:   a.system,
		Prompt:   prompt,
		Passages: passages,
		Turns:    turns,
		Tokens:   tokens,
	}
}

// countTokens estimates the token count of text using the cl100k_base
// encoding, falling back to a chars/4 heuristic if the encoding data
// cannot be loaded (tiktoken fetches it on first use).
func (a *Assembler) countTokens(text string) int {
	a.encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			a.logger.Warn().Err(err).Msg("Token encoding unavailable, using character heuristic")
			return
		}
		a.encoding = enc
	})

	if a.encoding != nil {
		return len(a.encoding.Encode(text, nil, nil))
	}
	return len(text) / 4
}

// -----------------------------------------------------------------------
// Last Modified: Sunday, 30th August 2026 11:20:00 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package characters

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/tidwall/gjson"

	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
)

const (
	// A name must be mentioned this often to count as a character at all
	minMentions = 3
	// Frequent mentions qualify a name even without dialogue or actions
	frequentMentions = 5

	maxExtractedCharacters = 10
	maxProfilePassages     = 10
	analysisMaxTokens      = 512
)

const (
	dialogueVerbs = `said|asked|replied|whispered|shouted|muttered|exclaimed|declared|announced|called|cried|yelled`
	actionVerbs   = `walked|ran|looked|turned|smiled|frowned|nodded|shook|stood|sat|moved|stepped|laughed|sighed|rose|fell`
)

// namePatterns capture a capitalized token in contexts where prose mentions
// a person: attached to dialogue, performing an action, possessing a body
// part, or being introduced.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`"[^"]*"[,\s]*(?:` + dialogueVerbs + `)\s+([A-Z][a-zA-Z]+)`),
	regexp.MustCompile(`([A-Z][a-zA-Z]+)\s+(?:` + dialogueVerbs + `)\b`),
	regexp.MustCompile(`([A-Z][a-zA-Z]+)\s+(?:` + actionVerbs + `)\b`),
	regexp.MustCompile(`([A-Z][a-zA-Z]+)'s\s+(?:eyes|face|voice|hand|heart|mind|head|hair|smile|frown|expression|thoughts)`),
	regexp.MustCompile(`([A-Z][a-zA-Z]+)\s+was\s+(?:a|an|the)\s`),
	regexp.MustCompile(`([A-Z][a-zA-Z]+),?\s+who\s+(?:was|had|could|would)`),
}

// excludedNames are capitalized words the patterns match that are never
// character names: sentence openers, pronouns, time words.
var excludedNames = map[string]bool{
	"The": true, "And": true, "But": true, "When": true, "Where": true,
	"What": true, "Who": true, "How": true, "Why": true, "This": true,
	"That": true, "These": true, "Those": true, "Here": true, "There": true,
	"Now": true, "Then": true, "Yes": true, "No": true, "Perhaps": true,
	"However": true, "Chapter": true, "Morning": true, "Evening": true,
	"Night": true, "Day": true, "Today": true, "Tomorrow": true,
	"Yesterday": true, "She": true, "He": true, "It": true, "They": true,
	"Her": true, "His": true, "Their": true, "Someone": true, "Nobody": true,
	"Everyone": true, "Once": true, "Only": true, "Even": true, "Still": true,
	"Just": true, "Before": true, "After": true, "While": true, "Until": true,
	"Since": true, "From": true, "With": true, "Suddenly": true,
	"Finally": true, "Meanwhile": true, "Inside": true, "Outside": true,
	"Nothing": true, "Something": true, "Everything": true, "Old": true,
	"Young": true, "Captain": true, "Lady": true, "Lord": true, "Mister": true,
}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// roleHints maps occupation words found near a character to a role label,
// used when the completion backend cannot characterize them.
var roleHints = []struct {
	pattern *regexp.Regexp
	role    string
}{
	{regexp.MustCompile(`(?i)\b(?:king|queen|prince|princess|lord|lady)\b`), "noble"},
	{regexp.MustCompile(`(?i)\b(?:knight|warrior|soldier|guard)\b`), "warrior"},
	{regexp.MustCompile(`(?i)\b(?:wizard|mage|sorcerer|witch)\b`), "magic user"},
	{regexp.MustCompile(`(?i)\b(?:captain|sailor|mate)\b`), "seafarer"},
	{regexp.MustCompile(`(?i)\b(?:merchant|trader|innkeeper)\b`), "tradesperson"},
	{regexp.MustCompile(`(?i)\b(?:priest|cleric|monk|vicar)\b`), "religious figure"},
	{regexp.MustCompile(`(?i)\b(?:healer|doctor)\b`), "healer"},
}

var traitHints = []struct {
	pattern *regexp.Regexp
	trait   string
}{
	{regexp.MustCompile(`(?i)\b(?:brave|courageous|bold)\b`), "brave"},
	{regexp.MustCompile(`(?i)\b(?:wise|intelligent|clever)\b`), "wise"},
	{regexp.MustCompile(`(?i)\b(?:kind|gentle|caring)\b`), "kind"},
	{regexp.MustCompile(`(?i)\b(?:strong|powerful|mighty)\b`), "strong"},
	{regexp.MustCompile(`(?i)\b(?:mysterious|enigmatic|secretive)\b`), "mysterious"},
	{regexp.MustCompile(`(?i)\b(?:young|youthful)\b`), "young"},
	{regexp.MustCompile(`(?i)\b(?:old|elderly|aged)\b`), "old"},
	{regexp.MustCompile(`(?i)\b(?:skilled|talented)\b`), "skilled"},
}

// Extractor finds named characters in manuscript text and builds a profile
// for each by asking the completion backend to characterize them from the
// passages they appear in. When the backend is unavailable or answers
// garbage, a pattern-derived basic profile stands in.
type Extractor struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

// NewExtractor creates a character extractor on the given completion backend
func NewExtractor(llm interfaces.LLMService, logger arbor.ILogger) *Extractor {
	return &Extractor{llm: llm, logger: logger}
}

// ExtractProfiles scans text for character names and returns a profile per
// detected character, most-mentioned first. Cancellation between characters
// returns the profiles built so far along with the context error.
func (e *Extractor) ExtractProfiles(ctx context.Context, text, manuscriptID string) ([]*models.CharacterProfile, error) {
	names := e.detectNames(text)
	e.logger.Info().
		Str("manuscript_id", manuscriptID).
		Int("characters", len(names)).
		Msg("Detected character names in manuscript")

	profiles := make([]*models.CharacterProfile, 0, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			return profiles, ctx.Err()
		}

		passages := collectPassages(text, name)
		if len(passages) == 0 {
			continue
		}

		role, traits, err := e.analyze(ctx, name, passages)
		if err != nil {
			e.logger.Warn().Err(err).
				Str("name", name).
				Msg("Character analysis failed, using pattern-derived profile")
			role, traits = basicProfile(passages)
		}

		profiles = append(profiles, &models.CharacterProfile{
			Name:         name,
			Role:         role,
			Traits:       traits,
			ManuscriptID: manuscriptID,
		})
	}
	return profiles, nil
}

// detectNames returns validated character names ordered by mention count.
// A name qualifies when it is mentioned at least minMentions times and
// appears in dialogue or action context, or is simply frequent.
func (e *Extractor) detectNames(text string) []string {
	candidates := map[string]bool{}
	for _, pattern := range namePatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			name := strings.TrimSpace(match[1])
			if len(name) > 2 && !excludedNames[name] {
				candidates[name] = true
			}
		}
	}

	type scored struct {
		name     string
		mentions int
	}
	validated := make([]scored, 0, len(candidates))
	for name := range candidates {
		total := countMatches(text, `\b`+regexp.QuoteMeta(name)+`\b`)
		if total < minMentions {
			continue
		}
		dialogue := countMatches(text, regexp.QuoteMeta(name)+`\s+(?:`+dialogueVerbs+`)\b`)
		action := countMatches(text, regexp.QuoteMeta(name)+`\s+(?:`+actionVerbs+`)\b`)
		if dialogue >= 1 || action >= 1 || total >= frequentMentions {
			validated = append(validated, scored{name: name, mentions: total})
		}
	}

	sort.Slice(validated, func(i, j int) bool {
		if validated[i].mentions != validated[j].mentions {
			return validated[i].mentions > validated[j].mentions
		}
		return validated[i].name < validated[j].name
	})
	if len(validated) > maxExtractedCharacters {
		validated = validated[:maxExtractedCharacters]
	}

	names := make([]string, len(validated))
	for i, v := range validated {
		names[i] = v.name
	}
	return names
}

func countMatches(text, pattern string) int {
	return len(regexp.MustCompile(`(?i)`+pattern).FindAllStringIndex(text, -1))
}

// collectPassages gathers sentences mentioning the character, grouped into
// overlapping windows so the analysis prompt sees surrounding context.
func collectPassages(text, name string) []string {
	mention := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)

	var sentences []string
	for _, s := range sentenceSplit.Split(text, -1) {
		s = strings.TrimSpace(s)
		if s != "" && mention.MatchString(s) {
			sentences = append(sentences, s)
		}
	}

	var passages []string
	for i := 0; i < len(sentences); i += 3 {
		end := i + 5
		if end > len(sentences) {
			end = len(sentences)
		}
		passage := strings.Join(sentences[i:end], ". ")
		if len(passage) > 50 {
			passages = append(passages, passage)
		}
		if len(passages) == maxProfilePassages {
			break
		}
	}
	return passages
}

// analyze asks the completion backend to characterize the named character
// from the collected passages, expecting a small JSON object back.
func (e *Extractor) analyze(ctx context.Context, name string, passages []string) (role, traits string, err error) {
	limit := len(passages)
	if limit > 5 {
		limit = 5
	}

	prompt := fmt.Sprintf(`Analyze the character %q based on the following passages from a manuscript.

PASSAGES:
%s

Respond with a JSON object of this exact shape and nothing else:

{
    "role": "the character's role, occupation, or position in the story",
    "traits": "key personality traits and behavioral patterns, comma separated"
}

JSON Response:`, name, strings.Join(passages[:limit], "\n\n"))

	response, err := e.llm.Complete(ctx, &interfaces.CompletionRequest{
		Prompt:    prompt,
		MaxTokens: analysisMaxTokens,
	})
	if err != nil {
		return "", "", err
	}

	body := jsonObject(response)
	if body == "" || !gjson.Valid(body) {
		return "", "", fmt.Errorf("analysis response for %s is not a JSON object", name)
	}

	role = strings.TrimSpace(gjson.Get(body, "role").String())
	traits = strings.TrimSpace(gjson.Get(body, "traits").String())
	if role == "" && traits == "" {
		return "", "", fmt.Errorf("analysis response for %s carried no role or traits", name)
	}
	return role, traits, nil
}

// jsonObject cuts the first top-level JSON object out of a completion that
// may wrap it in prose or code fences
func jsonObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// basicProfile derives a role and traits from wording in the passages when
// the completion backend cannot
func basicProfile(passages []string) (role, traits string) {
	all := strings.Join(passages, " ")

	role = "character from the manuscript"
	for _, h := range roleHints {
		if h.pattern.MatchString(all) {
			role = h.role
			break
		}
	}

	var found []string
	for _, h := range traitHints {
		if h.pattern.MatchString(all) {
			found = append(found, h.trait)
		}
	}
	traits = strings.Join(found, ", ")
	if traits == "" {
		traits = "distinct personality"
	}
	return role, traits
}

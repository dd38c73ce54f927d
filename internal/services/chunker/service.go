package chunker

import (
	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/models"
)

// separators, in preference order, tried when looking for a semantic break
// near the size limit: paragraph, line, sentence, word, then a hard cut.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune(" "),
}

// Service splits manuscript text into overlapping chunks suitable for
// embedding. Splitting is deterministic: identical text and configuration
// always produce an identical chunk sequence.
type Service struct{}

// NewService creates a new chunker service
func NewService() *Service {
	return &Service{}
}

// ValidateParams checks chunking parameters before any work starts
func ValidateParams(maxSize, overlap int) error {
	if maxSize <= 0 {
		return common.NewConfigurationError("max_size", "must be a positive integer")
	}
	if overlap <= 0 {
		return common.NewConfigurationError("overlap", "must be a positive integer")
	}
	if overlap >= maxSize {
		return common.NewConfigurationError("overlap", "must be smaller than max_size")
	}
	return nil
}

// Chunk splits text into chunks of at most maxSize runes, consecutive
// chunks sharing exactly overlap runes. Breaks prefer paragraph, line,
// sentence, then word boundaries before falling back to a hard cut.
// Empty text yields an empty sequence; text shorter than maxSize yields
// exactly one chunk.
func (s *Service) Chunk(text string, maxSize, overlap int) ([]models.Chunk, error) {
	if err := ValidateParams(maxSize, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	var chunks []models.Chunk
	start := 0
	prevOverlap := 0
	for idx := 0; ; idx++ {
		if len(runes)-start <= maxSize {
			chunks = append(chunks, models.Chunk{
				Index:   idx,
				Text:    string(runes[start:]),
				Start:   start,
				End:     len(runes),
				Overlap: prevOverlap,
			})
			break
		}

		cut := findCut(runes, start, start+maxSize, overlap)
		chunks = append(chunks, models.Chunk{
			Index:   idx,
			Text:    string(runes[start:cut]),
			Start:   start,
			End:     cut,
			Overlap: prevOverlap,
		})

		// The next chunk re-reads exactly overlap runes of this one
		start = cut - overlap
		prevOverlap = overlap
	}

	return chunks, nil
}

// findCut picks the break position in (start+overlap, hardEnd], preferring
// the latest occurrence of the highest-priority separator. The lower bound
// guarantees forward progress after the overlap is re-read.
func findCut(runes []rune, start, hardEnd, overlap int) int {
	minCut := start + overlap + 1
	for _, sep := range separators {
		if cut := lastSeparatorEnd(runes, sep, minCut, hardEnd); cut > 0 {
			return cut
		}
	}
	return hardEnd
}

// lastSeparatorEnd returns the largest position p in [minCut, hardEnd] such
// that sep ends exactly at p, or 0 when no occurrence qualifies
func lastSeparatorEnd(runes []rune, sep []rune, minCut, hardEnd int) int {
	for p := hardEnd; p >= minCut; p-- {
		if matchesAt(runes, sep, p-len(sep)) {
			return p
		}
	}
	return 0
}

func matchesAt(runes []rune, sep []rune, at int) bool {
	if at < 0 || at+len(sep) > len(runes) {
		return false
	}
	for i, r := range sep {
		if runes[at+i] != r {
			return false
		}
	}
	return true
}

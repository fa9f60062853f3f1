package extract

import (
	"sort"
	"strings"

	"github.com/fairyhunter13/jobscout/internal/pipeline/lexicon"
)

const (
	primaryWeight   = 3
	secondaryWeight = 1
	// dataTieScore is the score at which data beats tech on a tie.
	dataTieScore = 5
)

// Category scores the section against every category's weighted keyword
// sets. Data wins ties over tech when its score reaches dataTieScore;
// all-zero scores yield "unspecified".
func Category(section string, lex *lexicon.Lexicon) string {
	lower := strings.ToLower(section)
	scores := map[string]int{}
	for name, set := range lex.Categories {
		s := 0
		for _, kw := range set.Primary {
			if strings.Contains(lower, kw) {
				s += primaryWeight
			}
		}
		for _, kw := range set.Secondary {
			if strings.Contains(lower, kw) {
				s += secondaryWeight
			}
		}
		scores[name] = s
	}

	names := make([]string, 0, len(scores))
	for n := range scores {
		names = append(names, n)
	}
	sort.Strings(names)

	// Deterministic pick: alphabetical order breaks generic ties, except the
	// explicit data-over-tech rule below.
	best, bestScore := "unspecified", 0
	for _, n := range names {
		if scores[n] > bestScore {
			best, bestScore = n, scores[n]
		}
	}
	if bestScore == 0 {
		return "unspecified"
	}
	if scores["data"] == scores["tech"] && scores["tech"] == bestScore {
		if bestScore >= dataTieScore {
			return "data"
		}
		return "tech"
	}
	return best
}

package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fairyhunter13/jobscout/internal/domain"
	"github.com/fairyhunter13/jobscout/internal/pipeline/lexicon"
)

var (
	expRangeRe = regexp.MustCompile(`(?i)(\d{1,2})\s*(?:-|to)\s*(\d{1,2})\s*(?:\+\s*)?(?:years?|yrs?)`)
	expPlusRe  = regexp.MustCompile(`(?i)(\d{1,2})\s*\+\s*(?:years?|yrs?)`)
	expMinRe   = regexp.MustCompile(`(?i)(?:min(?:imum)?|at\s*least|atleast)\s*(\d{1,2})\s*(?:years?|yrs?)`)
	expPlainRe = regexp.MustCompile(`(?i)(\d{1,2})\s*(?:years?|yrs?)`)
)

// Experience parses the experience requirement. Match order: fresher
// keywords, range, "N+", "min N", plain "N years".
func Experience(section string, lex *lexicon.Lexicon) domain.ExperienceInfo {
	lower := strings.ToLower(section)
	if lexicon.ContainsAny(lower, lex.Fresher) {
		return domain.ExperienceInfo{Raw: "fresher", IsFresher: true}
	}
	if m := expRangeRe.FindStringSubmatch(section); m != nil {
		lo, hi := atoi(m[1]), atoi(m[2])
		if lo > hi {
			lo, hi = hi, lo
		}
		return domain.ExperienceInfo{Raw: fmt.Sprintf("%d-%d years", lo, hi), MinYears: lo, MaxYears: hi}
	}
	if m := expPlusRe.FindStringSubmatch(section); m != nil {
		n := atoi(m[1])
		return domain.ExperienceInfo{Raw: fmt.Sprintf("%d+ years", n), MinYears: n}
	}
	if m := expMinRe.FindStringSubmatch(section); m != nil {
		n := atoi(m[1])
		return domain.ExperienceInfo{Raw: fmt.Sprintf("%d+ years", n), MinYears: n}
	}
	if m := expPlainRe.FindStringSubmatch(section); m != nil {
		n := atoi(m[1])
		return domain.ExperienceInfo{Raw: fmt.Sprintf("%d years", n), MinYears: n, MaxYears: n}
	}
	return domain.ExperienceInfo{}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

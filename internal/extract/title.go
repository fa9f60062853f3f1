package extract

import (
	"regexp"
	"strings"

	"github.com/fairyhunter13/jobscout/internal/pipeline/lexicon"
)

var (
	titleLabelRe   = regexp.MustCompile(`(?im)^\s*(?:role|position|designation|job title|profile)\s*[:\-]\s*(.{2,70})$`)
	hiringForRe    = regexp.MustCompile(`(?i)\bhiring for\s+(?:an?\s+)?(.{2,60}?)(?:[,.!\n]|$)`)
	titleAtRe      = regexp.MustCompile(`(?i)\b([a-z][a-z /&+.\-]{1,45}?(?:engineer|developer|manager|analyst|designer|architect|lead|intern|specialist|consultant))\s+at\s+[A-Z]`)
	trailingSuffix = regexp.MustCompile(`\s*[([{#].*$`)
)

// Title extracts the role title: labeled patterns first, then "hiring for
// X", then a line carrying a known role suffix. The title must not equal
// the company.
func Title(section, company string, lex *lexicon.Lexicon) string {
	if m := titleLabelRe.FindStringSubmatch(section); m != nil {
		if t := cleanTitle(m[1], company); t != "" {
			return t
		}
	}
	if m := hiringForRe.FindStringSubmatch(section); m != nil {
		if t := cleanTitle(m[1], company); t != "" {
			return t
		}
	}
	if m := titleAtRe.FindStringSubmatch(section); m != nil {
		if t := cleanTitle(m[1], company); t != "" {
			return t
		}
	}
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > 80 {
			continue
		}
		lower := strings.ToLower(line)
		for _, suffix := range lex.TitleSuffixes {
			if strings.Contains(lower, suffix) {
				if t := cleanTitle(line, company); t != "" {
					return t
				}
				break
			}
		}
	}
	return ""
}

func cleanTitle(t, company string) string {
	t = trailingSuffix.ReplaceAllString(t, "")
	t = strings.Trim(strings.TrimSpace(t), `*_"'.,:;!-•`)
	if len(t) < 3 || len(t) > 70 {
		return ""
	}
	if company != "" && strings.EqualFold(t, company) {
		return ""
	}
	return t
}

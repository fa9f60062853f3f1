// Package classify decides whether a raw message is a job posting. Rule
// fast-paths run first over handcrafted features; everything else goes to a
// trained TF-IDF logistic model. The deciding branch is always recorded so
// regressions stay diagnosable.
package classify

import (
	"regexp"
	"strings"
)

var (
	urlRe   = regexp.MustCompile(`https?://[^\s<>"']+`)
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	tokenRe = regexp.MustCompile(`[\p{L}\p{N}#+./]+`)
)

// Normalized is the cleaned view of a message: lower-cased text with URLs
// and emails lifted into side channels, and the token stream with
// consecutive duplicates collapsed.
type Normalized struct {
	Text   string
	Tokens []string
	URLs   []string
	Emails []string
}

// Normalize prepares text for feature extraction.
func Normalize(text string) Normalized {
	n := Normalized{
		URLs:   urlRe.FindAllString(text, -1),
		Emails: emailRe.FindAllString(text, -1),
	}

	lower := strings.ToLower(strings.TrimSpace(text))
	raw := tokenRe.FindAllString(lower, -1)
	tokens := make([]string, 0, len(raw))
	prev := ""
	for _, tok := range raw {
		if tok == prev {
			continue
		}
		tokens = append(tokens, tok)
		prev = tok
	}
	n.Tokens = tokens
	n.Text = strings.Join(strings.Fields(lower), " ")
	return n
}

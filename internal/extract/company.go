package extract

import (
	"regexp"
	"strings"
)

var (
	// A leading non-word guard keeps the local part of emails from reading
	// as a mention.
	mentionRe      = regexp.MustCompile(`(?:^|[^\w.])@([A-Za-z][A-Za-z0-9_]{2,31})`)
	companyHiresRe = regexp.MustCompile(`(?im)^\s*\*{0,2}([A-Z][\w&.\- ]{1,48}?)\*{0,2}\s+is hiring\b`)
	quotedNameRe   = regexp.MustCompile(`["“]([^"”\n]{2,50})["”]`)
	companyLabelRe = regexp.MustCompile(`(?im)^\s*(?:company|organization|organisation|firm)\s*[:\-]\s*(.{2,60})$`)
	joinXRe        = regexp.MustCompile(`(?i)\bjoin\s+([A-Z][\w&.\- ]{1,40}?)(?:\s+(?:as|team|family)\b|[,.!\n]|$)`)
	roleAtRe       = regexp.MustCompile(`\bat\s+([A-Z][A-Za-z0-9&.\-]{1,30})`)
	phoneInNameRe  = regexp.MustCompile(`\d{6,}`)
)

// roleWords rejects company candidates that are really role fragments.
var roleWords = map[string]bool{
	"engineer": true, "developer": true, "manager": true, "analyst": true,
	"designer": true, "architect": true, "lead": true, "intern": true,
	"specialist": true, "consultant": true, "hiring": true, "job": true,
	"jobs": true, "vacancy": true, "urgent": true, "requirement": true,
	"we": true, "team": true, "position": true, "role": true, "apply": true,
	"company": true, "organization": true, "organisation": true,
}

// Company extracts the employer name by priority: mention handle, "<X> is
// hiring", quoted name, explicit label, "Join <X>", "<role> at <X>", then a
// short capitalized first line.
func Company(section string) string {
	if m := mentionRe.FindStringSubmatch(section); m != nil {
		if name := cleanCompany(m[1]); name != "" {
			return name
		}
	}
	if m := companyHiresRe.FindStringSubmatch(section); m != nil {
		if name := cleanCompany(m[1]); name != "" {
			return name
		}
	}
	if m := quotedNameRe.FindStringSubmatch(section); m != nil {
		if name := cleanCompany(m[1]); name != "" {
			return name
		}
	}
	if m := companyLabelRe.FindStringSubmatch(section); m != nil {
		if name := cleanCompany(m[1]); name != "" {
			return name
		}
	}
	if m := joinXRe.FindStringSubmatch(section); m != nil {
		if name := cleanCompany(m[1]); name != "" {
			return name
		}
	}
	if m := roleAtRe.FindStringSubmatch(section); m != nil {
		if name := cleanCompany(m[1]); name != "" {
			return name
		}
	}
	if name := firstLineCompany(section); name != "" {
		return name
	}
	return ""
}

// firstLineCompany accepts a short capitalized first line that is not a
// role or noise phrase.
func firstLineCompany(section string) string {
	line := ""
	for _, l := range strings.Split(section, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	if line == "" || len(line) > 40 {
		return ""
	}
	first, _ := firstRune(line)
	if first < 'A' || first > 'Z' {
		return ""
	}
	if len(strings.Fields(line)) > 4 {
		return ""
	}
	return cleanCompany(line)
}

// cleanCompany applies the validity filter; empty means rejected.
func cleanCompany(name string) string {
	name = strings.Trim(strings.TrimSpace(name), `*_"'.,:;!-`)
	if len(name) < 2 || len(name) > 50 {
		return ""
	}
	lower := strings.ToLower(name)
	if strings.Contains(lower, "http") || strings.Contains(name, "@") && strings.Contains(name, ".") {
		return ""
	}
	if phoneInNameRe.MatchString(name) {
		return ""
	}
	for _, w := range strings.Fields(lower) {
		if roleWords[strings.Trim(w, ".,!:")] {
			return ""
		}
	}
	return name
}

func firstRune(s string) (byte, bool) {
	if s == "" {
		return 0, false
	}
	return s[0], true
}

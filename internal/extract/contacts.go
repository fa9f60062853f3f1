package extract

import (
	"regexp"
	"strings"

	"github.com/fairyhunter13/jobscout/internal/domain"
)

var (
	emailsRe      = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	indianPhone   = regexp.MustCompile(`(?:\+91[\s\-]?|0)?[6-9]\d{9}\b`)
	urlsRe        = regexp.MustCompile(`https?://[^\s<>"')]+`)
	applyNearbyRe = regexp.MustCompile(`(?i)apply[^\n]{0,80}?(https?://[^\s<>"')]+)`)
)

// atsMarkers flag URLs that point at application systems.
var atsMarkers = []string{
	"career", "careers", "job", "jobs", "apply", "lever.co", "greenhouse.io",
	"workday", "smartrecruiters", "naukri", "linkedin.com/jobs", "forms.gle",
	"typeform",
}

// Contacts extracts apply channels: emails, Indian phone numbers, and the
// best apply URL. URL preference: adjacent to "apply", then career/ATS
// markers, then the supplied URL list, then any URL in text.
func Contacts(section string, urls []string) domain.ApplyChannel {
	ac := domain.ApplyChannel{
		Emails: dedupe(emailsRe.FindAllString(section, -1)),
		Phones: dedupe(indianPhone.FindAllString(section, -1)),
	}

	if m := applyNearbyRe.FindStringSubmatch(section); m != nil {
		ac.URL = m[1]
		return ac
	}
	inText := urlsRe.FindAllString(section, -1)
	for _, u := range inText {
		if looksLikeATS(u) {
			ac.URL = u
			return ac
		}
	}
	for _, u := range urls {
		if looksLikeATS(u) {
			ac.URL = u
			return ac
		}
	}
	if len(urls) > 0 {
		ac.URL = urls[0]
		return ac
	}
	if len(inText) > 0 {
		ac.URL = inText[0]
	}
	return ac
}

func looksLikeATS(u string) bool {
	lower := strings.ToLower(u)
	for _, m := range atsMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Package extract turns classified job text into structured JobCandidates:
// section splitting for multi-job messages, then field extraction (company,
// title, location, salary, experience, skills, category, contacts) and a
// weighted extraction confidence.
package extract

import (
	"regexp"
	"strings"
)

var (
	numberedSectionRe = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+`)
	isHiringRe        = regexp.MustCompile(`(?im)^.{0,60}?\bis hiring\b`)
	applyHereRe       = regexp.MustCompile(`(?i)apply here\s*:`)
)

// Split breaks a message into per-job sections. Three heuristics apply in
// order, first match wins; otherwise the whole text is one section.
func Split(text string) []string {
	if secs := splitBy(text, numberedSectionRe, 2); secs != nil {
		return secs
	}
	if secs := splitBy(text, isHiringRe, 2); secs != nil {
		return secs
	}
	if secs := splitAfter(text, applyHereRe, 3); secs != nil {
		return secs
	}
	return []string{text}
}

// splitBy splits at each match start when the text has at least minMatches
// matches.
func splitBy(text string, re *regexp.Regexp, minMatches int) []string {
	locs := re.FindAllStringIndex(text, -1)
	if len(locs) < minMatches {
		return nil
	}
	var secs []string
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if sec := strings.TrimSpace(text[loc[0]:end]); sec != "" {
			secs = append(secs, sec)
		}
	}
	// Text before the first marker usually is a header; keep it attached to
	// the first section so a lone company line is not lost.
	if locs[0][0] > 0 {
		head := strings.TrimSpace(text[:locs[0][0]])
		if head != "" && len(secs) > 0 {
			secs[0] = head + "\n" + secs[0]
		}
	}
	return secs
}

// splitAfter splits after each delimiter line, so every section ends with
// its own apply link.
func splitAfter(text string, re *regexp.Regexp, minMatches int) []string {
	locs := re.FindAllStringIndex(text, -1)
	if len(locs) < minMatches {
		return nil
	}
	var secs []string
	start := 0
	for _, loc := range locs {
		// Extend to the end of the line carrying the delimiter.
		end := strings.IndexByte(text[loc[1]:], '\n')
		if end < 0 {
			end = len(text)
		} else {
			end += loc[1]
		}
		if sec := strings.TrimSpace(text[start:end]); sec != "" {
			secs = append(secs, sec)
		}
		start = end
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		secs = append(secs, tail)
	}
	return secs
}

// Package canonical holds the normalization helpers shared by the deduper,
// the persister and the verify report. Every function is pure; two inputs
// differing only in case, punctuation or whitespace normalize identically.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	punctRe  = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	spacesRe = regexp.MustCompile(`\s+`)

	companySuffixes = []string{
		"private limited", "pvt ltd", "pvt. ltd.", "limited", "ltd",
		"inc", "llp", "llc", "corp", "corporation", "co",
	}
)

// Fold lower-cases, strips punctuation and collapses whitespace.
func Fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = punctRe.ReplaceAllString(s, " ")
	s = spacesRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CompanyName folds a company name and drops legal suffixes so that
// "Acme, Inc." and "acme inc" resolve to the same row.
func CompanyName(name string) string {
	s := Fold(name)
	for _, suf := range companySuffixes {
		s = strings.TrimSuffix(s, " "+suf)
	}
	return strings.TrimSpace(s)
}

// ContentHash digests the identifying fields of a posting. Inputs are folded
// first, so the hash is invariant under whitespace/case normalization.
func ContentHash(title, company, location, applyURL string) string {
	h := sha256.New()
	for _, part := range []string{Fold(title), CompanyName(company), Fold(location), strings.TrimSpace(strings.ToLower(applyURL))} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

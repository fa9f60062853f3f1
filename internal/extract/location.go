package extract

import (
	"regexp"
	"strings"

	"github.com/fairyhunter13/jobscout/internal/domain"
	"github.com/fairyhunter13/jobscout/internal/pipeline/lexicon"
)

var locationLabelRe = regexp.MustCompile(`(?im)^\s*(?:location|place|city|work location)\s*[:\-]\s*(.{2,80})$`)

// Location parses the location block: raw string, city whitelist hits, work
// mode flags and geographic scope. Remote or hybrid overrides onsite-only.
func Location(section string, lex *lexicon.Lexicon) domain.LocationInfo {
	info := domain.LocationInfo{Scope: domain.GeoUnspecified}
	if m := locationLabelRe.FindStringSubmatch(section); m != nil {
		info.Raw = strings.TrimSpace(m[1])
	}

	lower := strings.ToLower(section)
	info.Cities = lexicon.MatchAll(lower, lex.Cities)

	info.IsRemote = lexicon.ContainsAny(lower, lex.Remote) && !lexicon.ContainsAny(lower, lex.RemoteNegative)
	info.IsHybrid = lexicon.ContainsAny(lower, lex.Hybrid)
	info.IsOnsiteOnly = lexicon.ContainsAny(lower, lex.OnsiteOnly)
	if info.IsRemote || info.IsHybrid {
		info.IsOnsiteOnly = false
	}

	switch {
	case len(info.Cities) > 0:
		info.Scope = domain.GeoIndia
	case lexicon.ContainsAny(lower, lex.International):
		info.Scope = domain.GeoInternational
	}

	if info.Raw == "" && len(info.Cities) > 0 {
		info.Raw = strings.Join(info.Cities, ", ")
	}
	return info
}

// rejectedByGeoGate applies the firm business rule: international postings
// that require presence on site are dropped.
func rejectedByGeoGate(loc domain.LocationInfo) bool {
	return loc.Scope == domain.GeoInternational && loc.IsOnsiteOnly && !loc.IsRemote && !loc.IsHybrid
}

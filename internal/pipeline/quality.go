// Package pipeline runs the per-message processing chain: classify, extract,
// dedupe, score, persist. It consumes process tasks from the queue and the
// pending sweep, and is safe to replay: a processed raw message is skipped.
package pipeline

import (
	"strings"

	"github.com/fairyhunter13/jobscout/internal/domain"
)

// Quality weighting. Completeness dominates; the rest rewards specificity.
const (
	weightCompleteness = 0.5
	weightSkills       = 0.2
	weightExperience   = 0.15
	weightSalary       = 0.15

	skillsRichCount = 5
)

// Completeness is the populated fraction of the six core fields.
func Completeness(c domain.JobCandidate) float64 {
	n := 0
	if c.Title != "" {
		n++
	}
	if c.Company != "" {
		n++
	}
	if c.Location.Raw != "" || len(c.Location.Cities) > 0 || c.Location.IsRemote {
		n++
	}
	if c.SalaryMonthly > 0 {
		n++
	}
	if c.Experience.Raw != "" {
		n++
	}
	if c.Apply.URL != "" || len(c.Apply.Emails) > 0 || len(c.Apply.Phones) > 0 {
		n++
	}
	return float64(n) / 6
}

// QualityScore combines completeness with skill richness and the
// specificity of experience and salary.
func QualityScore(c domain.JobCandidate) float64 {
	score := weightCompleteness * Completeness(c)

	skills := float64(len(c.Skills)) / skillsRichCount
	if skills > 1 {
		skills = 1
	}
	score += weightSkills * skills

	if c.Experience.IsFresher || c.Experience.MaxYears > 0 {
		score += weightExperience
	} else if c.Experience.MinYears > 0 {
		score += weightExperience / 2
	}
	if c.SalaryMonthly > 0 {
		score += weightSalary
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Relevance scores a candidate against the active preferences and decides
// whether it meets the bar. An excluded-keyword hit is a hard veto.
func Relevance(c domain.JobCandidate, prefs domain.Preferences, modelConfidence float64) (float64, bool) {
	text := relevanceText(c)

	for _, kw := range prefs.ExcludedKeywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return 0, false
		}
	}
	for _, skill := range prefs.ExcludedSkills {
		if skill != "" && containsFold(c.Skills, skill) {
			return 0, false
		}
	}

	total, hit := 0.0, 0.0

	if prefs.MaxExperience > 0 || prefs.MinExperience > 0 {
		total++
		if experienceOverlaps(c.Experience, prefs.MinExperience, prefs.MaxExperience) {
			hit++
		}
	}
	if len(prefs.AllowedLocations) > 0 {
		total++
		if locationAllowed(c.Location, prefs.AllowedLocations) {
			hit++
		}
	}
	if len(prefs.AllowedWorkModes) > 0 {
		total++
		if workModeAllowed(c.Location, prefs.AllowedWorkModes) {
			hit++
		}
	}
	if len(prefs.PrioritySkills) > 0 {
		total++
		for _, s := range prefs.PrioritySkills {
			if containsFold(c.Skills, s) {
				hit++
				break
			}
		}
	}
	if len(prefs.RequiredKeywords) > 0 {
		total++
		ok := true
		for _, kw := range prefs.RequiredKeywords {
			if kw != "" && !strings.Contains(text, strings.ToLower(kw)) {
				ok = false
				break
			}
		}
		if ok {
			hit++
		}
	}

	score := 1.0
	if total > 0 {
		score = hit / total
	}
	meets := score >= prefs.MinRelevance && modelConfidence >= prefs.MinConfidence
	return score, meets
}

func relevanceText(c domain.JobCandidate) string {
	parts := []string{c.Title, c.Company, c.Location.Raw, c.Category}
	parts = append(parts, c.Skills...)
	return strings.ToLower(strings.Join(parts, " "))
}

func containsFold(list []string, want string) bool {
	for _, s := range list {
		if strings.EqualFold(s, want) {
			return true
		}
	}
	return false
}

// experienceOverlaps checks candidate range against the preferred range.
// Unparsed experience counts as an overlap so sparse postings are not
// penalized twice.
func experienceOverlaps(e domain.ExperienceInfo, min, max int) bool {
	if e.Raw == "" {
		return true
	}
	if e.IsFresher {
		return min == 0
	}
	hi := e.MaxYears
	if hi == 0 {
		hi = e.MinYears
	}
	if max == 0 {
		max = 100
	}
	return e.MinYears <= max && hi >= min
}

func locationAllowed(loc domain.LocationInfo, allowed []string) bool {
	if loc.IsRemote {
		return true
	}
	for _, a := range allowed {
		la := strings.ToLower(a)
		for _, city := range loc.Cities {
			if strings.EqualFold(city, la) {
				return true
			}
		}
		if loc.Raw != "" && strings.Contains(strings.ToLower(loc.Raw), la) {
			return true
		}
	}
	return false
}

func workModeAllowed(loc domain.LocationInfo, modes []string) bool {
	for _, m := range modes {
		switch strings.ToLower(m) {
		case "remote":
			if loc.IsRemote {
				return true
			}
		case "hybrid":
			if loc.IsHybrid {
				return true
			}
		case "onsite":
			if !loc.IsRemote && !loc.IsHybrid {
				return true
			}
		}
	}
	return false
}

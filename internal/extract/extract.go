package extract

import (
	"strings"

	"github.com/fairyhunter13/jobscout/internal/domain"
	"github.com/fairyhunter13/jobscout/internal/pipeline/canonical"
	"github.com/fairyhunter13/jobscout/internal/pipeline/lexicon"
)

// Confidence weights per extracted field.
const (
	weightCompany    = 0.3
	weightTitle      = 0.3
	weightLocation   = 0.1
	weightSalary     = 0.1
	weightApply      = 0.1
	weightExperience = 0.05
	weightEmail      = 0.05

	// MinConfidence rejects candidates below it.
	MinConfidence = 0.3

	maxSkills = 10
)

// Extractor turns job text into candidates.
type Extractor struct {
	lex *lexicon.Lexicon
}

// New builds an Extractor over the embedded lexicon.
func New() *Extractor {
	return &Extractor{lex: lexicon.MustLoad()}
}

// Extract returns the ordered candidates found in text. Sections failing
// the geo gate or the confidence floor are dropped.
func (e *Extractor) Extract(text string, urls []string) []domain.JobCandidate {
	var out []domain.JobCandidate
	for _, section := range Split(text) {
		c, ok := e.extractSection(section, urls)
		if !ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (e *Extractor) extractSection(section string, urls []string) (domain.JobCandidate, bool) {
	loc := Location(section, e.lex)
	if rejectedByGeoGate(loc) {
		return domain.JobCandidate{}, false
	}

	company := Company(section)
	c := domain.JobCandidate{
		Company:       company,
		Title:         Title(section, company, e.lex),
		Location:      loc,
		SalaryMonthly: Salary(section),
		Experience:    Experience(section, e.lex),
		Skills:        e.skills(section),
		Category:      Category(section, e.lex),
		Apply:         Contacts(section, urls),
	}
	c.Confidence = confidence(c)
	if c.Confidence < MinConfidence {
		return domain.JobCandidate{}, false
	}
	c.ContentHash = canonical.ContentHash(c.Title, c.Company, c.Location.Raw, c.Apply.URL)
	return c, true
}

// skills intersects the text with the skills lexicon, capped.
func (e *Extractor) skills(section string) []string {
	lower := strings.ToLower(section)
	matched := lexicon.MatchAll(lower, e.lex.Skills)
	if len(matched) > maxSkills {
		matched = matched[:maxSkills]
	}
	return matched
}

// confidence is the weighted field-presence sum, capped at 1.
func confidence(c domain.JobCandidate) float64 {
	score := 0.0
	if c.Company != "" {
		score += weightCompany
	}
	if c.Title != "" {
		score += weightTitle
	}
	if c.Location.Raw != "" || len(c.Location.Cities) > 0 || c.Location.IsRemote {
		score += weightLocation
	}
	if c.SalaryMonthly > 0 {
		score += weightSalary
	}
	if c.Apply.URL != "" || len(c.Apply.Phones) > 0 {
		score += weightApply
	}
	if c.Experience.Raw != "" {
		score += weightExperience
	}
	if len(c.Apply.Emails) > 0 {
		score += weightEmail
	}
	if score > 1 {
		score = 1
	}
	return score
}

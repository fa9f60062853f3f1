package classify

import (
	"regexp"
	"strings"

	"github.com/fairyhunter13/jobscout/internal/pipeline/lexicon"
)

var (
	salaryExprRe     = regexp.MustCompile(`(?i)(\d+(\.\d+)?\s*(-|to)\s*\d+(\.\d+)?\s*lpa|\d+(\.\d+)?\s*lpa|₹\s*[\d,]+|\d+\s*k\s*(per month|/month|pm)|salary|ctc|stipend)`)
	experienceExprRe = regexp.MustCompile(`(?i)(\d+\s*(-|to)\s*\d+\s*(\+)?\s*(years?|yrs?)|\d+\s*\+\s*(years?|yrs?)|fresher|experience)`)
	bulletRe         = regexp.MustCompile(`(?m)^\s*([-*•‣▪]|\d+[.)])\s+`)
	headingRe        = regexp.MustCompile(`(?m)^[A-Z][A-Za-z /&]{2,30}:\s*$`)
)

// Features is the handcrafted signal set the rules and the model share.
type Features struct {
	JobIntentHits  int
	TitleHits      int
	SkillHits      int
	LocationHits   int
	JobTypeHits    int
	NonJobHits     int
	ApplyPhraseHit bool
	SalaryExpr     bool
	ExperienceExpr bool
	HasEmail       bool
	HasURL         bool
	TokenCount     int
	ReasonableLen  bool // token count in [20, 500]
	HasBullets     bool
	HasHeadings    bool
}

// ExtractFeatures computes the feature set over a normalized message.
// original is the raw text, needed for line-structure checks that
// normalization flattens away.
func ExtractFeatures(original string, n Normalized, lex *lexicon.Lexicon) Features {
	text := n.Text
	f := Features{
		JobIntentHits:  len(lexicon.MatchAll(text, lex.JobIntent)),
		TitleHits:      len(lexicon.MatchAll(text, lex.Titles)),
		SkillHits:      len(lexicon.MatchAll(text, lex.Skills)),
		JobTypeHits:    len(lexicon.MatchAll(text, lex.JobTypes)),
		NonJobHits:     len(lexicon.MatchAll(text, lex.NonJob)),
		ApplyPhraseHit: lexicon.ContainsAny(text, lex.ApplyPhrases),
		SalaryExpr:     salaryExprRe.MatchString(text),
		ExperienceExpr: experienceExprRe.MatchString(text),
		HasEmail:       len(n.Emails) > 0,
		HasURL:         len(n.URLs) > 0,
		TokenCount:     len(n.Tokens),
	}
	f.LocationHits = len(lexicon.MatchAll(text, lex.Cities)) + len(lexicon.MatchAll(text, lex.International))
	f.ReasonableLen = f.TokenCount >= 20 && f.TokenCount <= 500
	f.HasBullets = bulletRe.MatchString(strings.TrimSpace(original))
	f.HasHeadings = headingRe.MatchString(original)
	return f
}

// hasJobMarker reports any positive job signal at all.
func (f Features) hasJobMarker() bool {
	return f.JobIntentHits > 0 || f.TitleHits > 0 || f.SalaryExpr || f.ExperienceExpr || f.ApplyPhraseHit
}

// strongJobSignals is the high-precision predicate behind the positive
// fast-path.
func (f Features) strongJobSignals() bool {
	applyMechanism := f.ApplyPhraseHit || f.HasEmail || f.HasURL
	return f.JobIntentHits > 0 && f.TitleHits > 0 && f.SkillHits > 0 && applyMechanism
}

// Vector flattens the features for the model. Order is part of the model
// contract; retrain after changing it.
func (f Features) Vector() []float64 {
	return []float64{
		float64(f.JobIntentHits),
		float64(f.TitleHits),
		float64(f.SkillHits),
		float64(f.LocationHits),
		float64(f.JobTypeHits),
		float64(f.NonJobHits),
		b2f(f.ApplyPhraseHit),
		b2f(f.SalaryExpr),
		b2f(f.ExperienceExpr),
		b2f(f.HasEmail),
		b2f(f.HasURL),
		b2f(f.ReasonableLen),
		b2f(f.HasBullets),
		b2f(f.HasHeadings),
	}
}

// FeatureDim is the length of Features.Vector.
const FeatureDim = 14

// Map exposes the features on the classification result.
func (f Features) Map() map[string]float64 {
	return map[string]float64{
		"job_intent_hits": float64(f.JobIntentHits),
		"title_hits":      float64(f.TitleHits),
		"skill_hits":      float64(f.SkillHits),
		"location_hits":   float64(f.LocationHits),
		"job_type_hits":   float64(f.JobTypeHits),
		"non_job_hits":    float64(f.NonJobHits),
		"apply_phrase":    b2f(f.ApplyPhraseHit),
		"salary_expr":     b2f(f.SalaryExpr),
		"experience_expr": b2f(f.ExperienceExpr),
		"has_email":       b2f(f.HasEmail),
		"has_url":         b2f(f.HasURL),
		"token_count":     float64(f.TokenCount),
		"reasonable_len":  b2f(f.ReasonableLen),
	}
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

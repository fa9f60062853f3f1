package classify

import (
	"time"

	"github.com/fairyhunter13/jobscout/internal/observability"
	"github.com/fairyhunter13/jobscout/internal/pipeline/lexicon"
)

// Branch names recorded on results.
const (
	BranchRuleNonJob    = "rule_non_job"
	BranchRuleStrongJob = "rule_strong_job"
	BranchModel         = "model"
	BranchNoModel       = "no_model"
)

// Result is one classification decision.
type Result struct {
	IsJob      bool
	Confidence float64
	Reason     string
	Branch     string
	Features   map[string]float64
	Elapsed    time.Duration
}

// Classifier is the rule+model ensemble.
type Classifier struct {
	lex   *lexicon.Lexicon
	model *Model
}

// New builds a Classifier. model may be nil only in rule-path tests; the
// processor requires a loaded model at startup.
func New(model *Model) *Classifier {
	return &Classifier{lex: lexicon.MustLoad(), model: model}
}

// Classify decides whether text is a job posting. Fast-paths take
// precedence over the model unconditionally.
func (c *Classifier) Classify(text string) Result {
	start := time.Now()
	n := Normalize(text)
	f := ExtractFeatures(text, n, c.lex)

	res := c.decide(n, f)
	res.Features = f.Map()
	res.Elapsed = time.Since(start)
	observability.ClassifyDuration.WithLabelValues(res.Branch).Observe(res.Elapsed.Seconds())
	return res
}

func (c *Classifier) decide(n Normalized, f Features) Result {
	if f.NonJobHits > 0 && !f.hasJobMarker() {
		return Result{
			IsJob:      false,
			Confidence: 0.9,
			Reason:     "non-job keywords dominant",
			Branch:     BranchRuleNonJob,
		}
	}
	if f.strongJobSignals() {
		return Result{
			IsJob:      true,
			Confidence: 0.95,
			Reason:     "strong job signals",
			Branch:     BranchRuleStrongJob,
		}
	}
	if c.model == nil {
		return Result{
			IsJob:      false,
			Confidence: 0,
			Reason:     "model not loaded",
			Branch:     BranchNoModel,
		}
	}

	p := c.model.Predict(n, f)
	isJob := p >= 0.5
	confidence := p
	if !isJob {
		confidence = 1 - p
	}
	return Result{
		IsJob:      isJob,
		Confidence: confidence,
		Reason:     "model decision",
		Branch:     BranchModel,
	}
}

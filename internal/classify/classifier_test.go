package classify

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/jobscout/internal/domain"
)

const strongJobText = `We are hiring a Backend Developer!
Skills: Golang, PostgreSQL, Docker
Experience: 2-4 years
Location: Bangalore
Apply here: https://example.com/jobs/42`

const nonJobText = `Good morning everyone! Don't miss our giveaway,
promo code inside. Subscribe to our channel for more motivational quotes.`

func TestNormalize(t *testing.T) {
	t.Parallel()
	n := Normalize("Apply Apply NOW at careers@acme.io or https://acme.io/jobs")
	assert.Contains(t, n.Emails, "careers@acme.io")
	assert.Contains(t, n.URLs, "https://acme.io/jobs")
	// Consecutive duplicate tokens collapse.
	count := 0
	for _, tok := range n.Tokens {
		if tok == "apply" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestClassify_StrongJobFastPath(t *testing.T) {
	t.Parallel()
	c := New(nil) // no model: the fast-path must decide alone
	res := c.Classify(strongJobText)
	assert.True(t, res.IsJob)
	assert.InDelta(t, 0.95, res.Confidence, 1e-9)
	assert.Equal(t, BranchRuleStrongJob, res.Branch)
	assert.Equal(t, "strong job signals", res.Reason)
}

func TestClassify_NonJobFastPath(t *testing.T) {
	t.Parallel()
	c := New(nil)
	res := c.Classify(nonJobText)
	assert.False(t, res.IsJob)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.Equal(t, BranchRuleNonJob, res.Branch)
}

func TestClassify_NoModelFallback(t *testing.T) {
	t.Parallel()
	c := New(nil)
	// Ambiguous text: no fast-path applies, and without a model the result
	// is a hard negative with zero confidence.
	res := c.Classify("looking for a good restaurant recommendation in town")
	assert.False(t, res.IsJob)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, BranchNoModel, res.Branch)
	assert.Equal(t, "model not loaded", res.Reason)
}

func TestLoadModel_MissingIsFatalSentinel(t *testing.T) {
	t.Parallel()
	_, err := LoadModel(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, domain.ErrModelNotLoaded)
}

func TestLoadModel_OutOfRangeVocabularyIndexRejected(t *testing.T) {
	t.Parallel()
	m := Model{
		Vocabulary: map[string]int{"foo": 999},
		IDF:        []float64{1},
		Weights:    make([]float64, 1+FeatureDim),
	}
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, m.Save(path))

	_, err := LoadModel(path)
	assert.ErrorIs(t, err, domain.ErrModelNotLoaded)
	assert.Contains(t, err.Error(), "out of range")
}

func trainingCorpus() []Sample {
	job := []string{
		"we are hiring a python developer, 2-4 years experience, bangalore, apply here: https://x.io/j1",
		"job opening: data analyst with sql and excel, send your resume to hr@acme.io",
		"urgent requirement react developer, remote, salary 12 lpa, apply now",
		"vacancy for qa engineer, selenium and java, pune, interested candidates dm your resume",
		"hiring for devops engineer with aws and kubernetes, 3+ years, apply at https://y.io/a",
		"looking for ui designer, figma, 1-2 years, mumbai, share your cv",
		"job alert: backend engineer golang postgresql, hyderabad, apply link below",
		"we're hiring content writer, seo experience, work from home, send your cv",
	}
	non := []string{
		"good morning friends, have a great day ahead",
		"huge discount on our new course, enroll now, limited seats",
		"crypto signal of the day, buy now for big profit",
		"happy birthday to our community admin!",
		"giveaway time! subscribe to our channel and win",
		"webinar on personal finance this sunday, register",
		"motivational quote of the day: never give up",
		"festival wishes to everyone celebrating today",
	}
	var samples []Sample
	for _, t := range job {
		samples = append(samples, Sample{Text: t, IsJob: true})
	}
	for _, t := range non {
		samples = append(samples, Sample{Text: t, IsJob: false})
	}
	return samples
}

func TestTrain_ModelSeparatesCorpus(t *testing.T) {
	t.Parallel()
	m, err := Train(trainingCorpus(), TrainOptions{Epochs: 200, LearningRate: 1.0, MinDocFreq: 1})
	require.NoError(t, err)

	c := New(m)
	res := c.Classify("hiring a backend developer with golang, apply at https://z.io/j")
	assert.True(t, res.IsJob)

	res = c.Classify("good morning friends, have a great day")
	assert.False(t, res.IsJob)
}

func TestTrain_RoundTripThroughBlob(t *testing.T) {
	t.Parallel()
	m, err := Train(trainingCorpus(), TrainOptions{Epochs: 50, LearningRate: 1.0, MinDocFreq: 1})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "classifier.json")
	require.NoError(t, m.Save(path))

	loaded, err := LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, m.Samples, loaded.Samples)
	assert.Len(t, loaded.Weights, len(loaded.Vocabulary)+FeatureDim)

	n := Normalize(strongJobText)
	f := ExtractFeatures(strongJobText, n, New(nil).lex)
	assert.InDelta(t, m.Predict(n, f), loaded.Predict(n, f), 1e-9)
}

func TestStrongJobPredicateOverridesModel(t *testing.T) {
	t.Parallel()
	// A model deliberately biased to say "not a job".
	m, err := Train(trainingCorpus(), TrainOptions{Epochs: 1, LearningRate: 0.0001, MinDocFreq: 1})
	require.NoError(t, err)
	m.Bias = -100

	c := New(m)
	res := c.Classify(strongJobText)
	assert.True(t, res.IsJob, "fast-path must win regardless of model outcome")
	assert.Equal(t, BranchRuleStrongJob, res.Branch)
}

package classify

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/fairyhunter13/jobscout/internal/domain"
)

// Model is a logistic classifier over a TF-IDF vector concatenated with the
// handcrafted feature vector. The blob is JSON so retraining anywhere
// produces a loadable artifact.
type Model struct {
	// Vocabulary maps token -> index into the TF-IDF part of the weight
	// vector.
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
	// Weights covers len(Vocabulary) TF-IDF dims followed by FeatureDim
	// handcrafted dims.
	Weights   []float64 `json:"weights"`
	Bias      float64   `json:"bias"`
	TrainedAt time.Time `json:"trained_at"`
	Samples   int       `json:"samples"`
}

// LoadModel reads a trained model blob. A missing or malformed blob is
// ErrModelNotLoaded; the processing stage treats that as fatal at startup.
func LoadModel(path string) (*Model, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("op=classify.LoadModel path=%s: %v: %w", path, err, domain.ErrModelNotLoaded)
	}
	var m Model
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("op=classify.LoadModel path=%s: %v: %w", path, err, domain.ErrModelNotLoaded)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("op=classify.LoadModel path=%s: %v: %w", path, err, domain.ErrModelNotLoaded)
	}
	return &m, nil
}

func (m *Model) validate() error {
	if len(m.Vocabulary) == 0 {
		return fmt.Errorf("empty vocabulary")
	}
	if len(m.IDF) != len(m.Vocabulary) {
		return fmt.Errorf("idf length %d != vocabulary size %d", len(m.IDF), len(m.Vocabulary))
	}
	if want := len(m.Vocabulary) + FeatureDim; len(m.Weights) != want {
		return fmt.Errorf("weight length %d != %d", len(m.Weights), want)
	}
	for tok, idx := range m.Vocabulary {
		if idx < 0 || idx >= len(m.Vocabulary) {
			return fmt.Errorf("vocabulary index %d for %q out of range", idx, tok)
		}
	}
	return nil
}

// Save writes the model blob.
func (m *Model) Save(path string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("op=classify.model.Save: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("op=classify.model.Save path=%s: %w", path, err)
	}
	return nil
}

// Predict returns the positive-class probability for a message.
func (m *Model) Predict(n Normalized, f Features) float64 {
	vec := m.vectorize(n.Tokens)
	z := m.Bias
	for i, v := range vec {
		if v != 0 {
			z += v * m.Weights[i]
		}
	}
	hand := f.Vector()
	off := len(m.Vocabulary)
	for i, v := range hand {
		z += v * m.Weights[off+i]
	}
	return sigmoid(z)
}

// vectorize builds the L2-normalized TF-IDF vector.
func (m *Model) vectorize(tokens []string) []float64 {
	vec := make([]float64, len(m.Vocabulary))
	for _, tok := range tokens {
		if idx, ok := m.Vocabulary[tok]; ok {
			vec[idx]++
		}
	}
	var norm float64
	for i := range vec {
		if vec[i] > 0 {
			vec[i] *= m.IDF[i]
			norm += vec[i] * vec[i]
		}
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

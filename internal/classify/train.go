package classify

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/fairyhunter13/jobscout/internal/pipeline/lexicon"
)

// Sample is one labeled training example.
type Sample struct {
	Text  string `json:"text"`
	IsJob bool   `json:"is_job"`
}

// LoadCorpus reads a JSONL labeled corpus, one Sample per line.
func LoadCorpus(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("op=classify.LoadCorpus path=%s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var samples []Sample
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var s Sample
		if err := json.Unmarshal(sc.Bytes(), &s); err != nil {
			return nil, fmt.Errorf("op=classify.LoadCorpus path=%s line=%d: %w", path, line, err)
		}
		samples = append(samples, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("op=classify.LoadCorpus path=%s: %w", path, err)
	}
	return samples, nil
}

// TrainOptions tunes the fitting loop.
type TrainOptions struct {
	Epochs       int
	LearningRate float64
	// MinDocFreq drops vocabulary tokens seen in fewer documents.
	MinDocFreq int
}

// DefaultTrainOptions matches the shipped model artifact.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{Epochs: 60, LearningRate: 0.5, MinDocFreq: 2}
}

// Train fits the TF-IDF + handcrafted-feature logistic model over a labeled
// corpus.
func Train(samples []Sample, opts TrainOptions) (*Model, error) {
	if len(samples) < 10 {
		return nil, fmt.Errorf("op=classify.Train: corpus too small: %d samples", len(samples))
	}
	if opts.Epochs <= 0 {
		opts.Epochs = DefaultTrainOptions().Epochs
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = DefaultTrainOptions().LearningRate
	}
	if opts.MinDocFreq <= 0 {
		opts.MinDocFreq = 1
	}

	lex := lexicon.MustLoad()
	type prepared struct {
		n Normalized
		f Features
		y float64
	}
	prep := make([]prepared, len(samples))
	docFreq := map[string]int{}
	for i, s := range samples {
		n := Normalize(s.Text)
		prep[i] = prepared{n: n, f: ExtractFeatures(s.Text, n, lex)}
		if s.IsJob {
			prep[i].y = 1
		}
		seen := map[string]bool{}
		for _, tok := range n.Tokens {
			if !seen[tok] {
				seen[tok] = true
				docFreq[tok]++
			}
		}
	}

	vocab := map[string]int{}
	for tok, df := range docFreq {
		if df >= opts.MinDocFreq {
			vocab[tok] = len(vocab)
		}
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("op=classify.Train: empty vocabulary after pruning")
	}
	idf := make([]float64, len(vocab))
	nDocs := float64(len(samples))
	for tok, idx := range vocab {
		idf[idx] = math.Log((1+nDocs)/(1+float64(docFreq[tok]))) + 1
	}

	m := &Model{
		Vocabulary: vocab,
		IDF:        idf,
		Weights:    make([]float64, len(vocab)+FeatureDim),
		TrainedAt:  time.Now().UTC(),
		Samples:    len(samples),
	}

	// Plain batch gradient descent on log loss. The corpus is small enough
	// that sparsity tricks are not worth their complexity.
	off := len(vocab)
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		gradW := make([]float64, len(m.Weights))
		var gradB float64
		for _, p := range prep {
			vec := m.vectorize(p.n.Tokens)
			z := m.Bias
			for i, v := range vec {
				if v != 0 {
					z += v * m.Weights[i]
				}
			}
			hand := p.f.Vector()
			for i, v := range hand {
				z += v * m.Weights[off+i]
			}
			err := sigmoid(z) - p.y
			for i, v := range vec {
				if v != 0 {
					gradW[i] += err * v
				}
			}
			for i, v := range hand {
				gradW[off+i] += err * v
			}
			gradB += err
		}
		scale := opts.LearningRate / nDocs
		for i := range m.Weights {
			m.Weights[i] -= scale * gradW[i]
		}
		m.Bias -= scale * gradB
	}
	return m, nil
}

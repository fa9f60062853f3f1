// Package lexicon holds the keyword sets driving classification and
// extraction. The sets live in an embedded YAML file so tuning them is a
// data change, not a code change.
package lexicon

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var raw []byte

// CategorySet is one job category's weighted keyword lists.
type CategorySet struct {
	Primary   []string `yaml:"primary"`
	Secondary []string `yaml:"secondary"`
}

// Lexicon is the full keyword inventory.
type Lexicon struct {
	JobIntent      []string               `yaml:"job_intent"`
	Titles         []string               `yaml:"titles"`
	TitleSuffixes  []string               `yaml:"title_suffixes"`
	Skills         []string               `yaml:"skills"`
	Cities         []string               `yaml:"cities"`
	International  []string               `yaml:"international"`
	JobTypes       []string               `yaml:"job_types"`
	NonJob         []string               `yaml:"non_job"`
	ApplyPhrases   []string               `yaml:"apply_phrases"`
	Remote         []string               `yaml:"remote"`
	RemoteNegative []string               `yaml:"remote_negative"`
	Hybrid         []string               `yaml:"hybrid"`
	OnsiteOnly     []string               `yaml:"onsite_only"`
	Fresher        []string               `yaml:"fresher"`
	Categories     map[string]CategorySet `yaml:"categories"`
}

var (
	once    sync.Once
	loaded  *Lexicon
	errLoad error
)

// Load parses the embedded lexicon once and returns it.
func Load() (*Lexicon, error) {
	once.Do(func() {
		var l Lexicon
		if err := yaml.Unmarshal(raw, &l); err != nil {
			errLoad = fmt.Errorf("op=lexicon.Load: %w", err)
			return
		}
		loaded = &l
	})
	return loaded, errLoad
}

// MustLoad panics on a broken embedded lexicon; only a bad build can trigger
// it.
func MustLoad() *Lexicon {
	l, err := Load()
	if err != nil {
		panic(err)
	}
	return l
}

// ContainsAny reports whether text (lower-cased by the caller) contains any
// of the phrases.
func ContainsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// MatchAll returns the phrases present in text, preserving lexicon order.
func MatchAll(text string, phrases []string) []string {
	var out []string
	for _, p := range phrases {
		if strings.Contains(text, p) {
			out = append(out, p)
		}
	}
	return out
}

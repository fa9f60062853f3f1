package lexicon_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/jobscout/internal/pipeline/lexicon"
)

func TestLoad(t *testing.T) {
	t.Parallel()
	l, err := lexicon.Load()
	require.NoError(t, err)

	assert.NotEmpty(t, l.JobIntent)
	assert.NotEmpty(t, l.Titles)
	assert.NotEmpty(t, l.Skills)
	assert.NotEmpty(t, l.Cities)
	assert.NotEmpty(t, l.NonJob)
	assert.NotEmpty(t, l.ApplyPhrases)
	assert.Contains(t, l.Categories, "tech")
	assert.Contains(t, l.Categories, "data")
}

func TestContainsAny(t *testing.T) {
	t.Parallel()
	l := lexicon.MustLoad()
	assert.True(t, lexicon.ContainsAny("we are hiring a backend developer", l.JobIntent))
	assert.False(t, lexicon.ContainsAny("good weather today", l.JobIntent))
}

func TestMatchAll_PreservesOrder(t *testing.T) {
	t.Parallel()
	got := lexicon.MatchAll("python and golang and react", []string{"python", "react", "golang", "java"})
	assert.Equal(t, []string{"python", "react", "golang"}, got)
}

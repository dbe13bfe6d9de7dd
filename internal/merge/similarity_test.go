package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("stanforduniversity", "stanforduniversity"))
	assert.Equal(t, 0.0, Similarity("", "stanforduniversity"))
	assert.Greater(t, Similarity("stanforduniversity", "stanforduniverslty"), 0.9)
	assert.Less(t, Similarity("stanforduniversity", "tsinghuauniversity"), 0.86)
}

func TestVariantScoreMatchesAcrossForms(t *testing.T) {
	score := VariantScore(
		"Department of Computer Science, Stanford University",
		"Stanford University",
	)
	assert.GreaterOrEqual(t, score, 0.86)
}

func TestSameInstitution(t *testing.T) {
	assert.True(t, SameInstitution(
		"CSAIL, Massachusetts Institute of Technology",
		"Massachusetts Institute of Technology", 0))
	assert.False(t, SameInstitution(
		"Stanford University",
		"Tsinghua University", 0))
	// A looser threshold admits weaker matches.
	assert.True(t, SameInstitution(
		"Stanford University",
		"Stanford Univ", 0.5))
}

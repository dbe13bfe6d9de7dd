package merge

import (
	"github.com/agext/levenshtein"
)

// DefaultThreshold is the minimum similarity score at which two institution
// names are treated as the same organization.
const DefaultThreshold = 0.86

// Similarity scores two already-normalized strings in [0,1].
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, levenshtein.NewParams())
}

// VariantScore returns the best similarity across all normalized variant
// pairs of two raw institution names.
func VariantScore(a, b string) float64 {
	best := 0.0
	for _, va := range NormalizeVariants(a) {
		for _, vb := range NormalizeVariants(b) {
			if s := Similarity(va, vb); s > best {
				best = s
			}
		}
	}
	return best
}

// SameInstitution reports whether two raw names clear the threshold.
func SameInstitution(a, b string, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return VariantScore(a, b) >= threshold
}

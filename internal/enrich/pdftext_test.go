package enrich

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTrimToRuneBoundary(t *testing.T) {
	assert.Equal(t, "short", trimToRuneBoundary("short", 10))
	assert.Equal(t, "abcde", trimToRuneBoundary("abcdef", 5))

	// A cut inside the two-byte é backs off to the previous boundary.
	assert.Equal(t, "Institut f", trimToRuneBoundary("Institut für", 11))
	assert.True(t, utf8.ValidString(trimToRuneBoundary("Universität", 10)))
}

func TestTrimToRuneBoundary_LongText(t *testing.T) {
	text := strings.Repeat("é", maxFirstPageChars)
	got := trimToRuneBoundary(text, maxFirstPageChars)
	assert.LessOrEqual(t, len(got), maxFirstPageChars)
	assert.True(t, utf8.ValidString(got))
}

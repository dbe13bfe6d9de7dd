package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFetchRange(t *testing.T) {
	start, end, err := parseFetchRange("2024-03-01", "2024-03-07")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), start)
	// The end date covers the whole day.
	assert.True(t, end.After(time.Date(2024, 3, 7, 23, 0, 0, 0, time.UTC)))
	assert.True(t, end.Before(time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)))
}

func TestParseFetchRange_Errors(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
	}{
		{"missing from", "", "2024-03-07"},
		{"missing to", "2024-03-01", ""},
		{"bad from", "03/01/2024", "2024-03-07"},
		{"bad to", "2024-03-01", "next week"},
		{"end before start", "2024-03-07", "2024-03-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseFetchRange(tt.from, tt.to)
			assert.Error(t, err)
		})
	}
}

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zzxtbeta/arixv-fetcher/internal/model"
)

func TestFormatSessionsList(t *testing.T) {
	sessions := []model.Session{
		{
			ID:              "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d",
			Status:          model.SessionStatusPartiallyFailed,
			TotalPapers:     10,
			CompletedPapers: 7,
			FailedPapers:    3,
			PendingPapers:   0,
			TotalInserted:   5,
			TotalSkipped:    2,
			CreatedAt:       time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	formatSessionsList(&buf, sessions)
	out := buf.String()

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d")
	assert.Contains(t, out, string(model.SessionStatusPartiallyFailed))
	assert.Contains(t, out, "2024-04-01T12:00:00Z")
}

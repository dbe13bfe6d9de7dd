// Package upsert serializes entity persistence. Enrichment fans out, but
// writes funnel through a single coordinator so natural-key upserts never
// race each other.
package upsert

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zzxtbeta/arixv-fetcher/internal/model"
)

const defaultChunkSize = 25

// EntityWriter is the slice of the store the coordinator needs.
type EntityWriter interface {
	UpsertEntities(ctx context.Context, entities []model.PaperEntity) (model.UpsertResult, error)
}

// Coordinator chunks batches and holds a mutex across the whole batch, so
// concurrent callers get one transaction stream instead of interleaved writes.
type Coordinator struct {
	writer    EntityWriter
	chunkSize int

	mu sync.Mutex
}

func NewCoordinator(writer EntityWriter, chunkSize int) *Coordinator {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Coordinator{writer: writer, chunkSize: chunkSize}
}

// Persist upserts the entities in insertion order, one transaction per chunk.
// On error the counts accumulated so far are returned with it, so callers can
// still credit the chunks that committed.
func (c *Coordinator) Persist(ctx context.Context, entities []model.PaperEntity) (model.UpsertResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total model.UpsertResult
	for start := 0; start < len(entities); start += c.chunkSize {
		end := min(start+c.chunkSize, len(entities))
		res, err := c.writer.UpsertEntities(ctx, entities[start:end])
		if err != nil {
			return total, eris.Wrapf(err, "upsert: chunk %d..%d", start, end)
		}
		total.Add(res)
		zap.L().Debug("persisted chunk",
			zap.Int("size", end-start),
			zap.Int("inserted", res.Inserted),
			zap.Int("skipped", res.Skipped))
	}
	return total, nil
}

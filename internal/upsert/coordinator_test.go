package upsert

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzxtbeta/arixv-fetcher/internal/model"
)

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]model.PaperEntity
	fn      func(batch []model.PaperEntity) (model.UpsertResult, error)

	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func (w *fakeWriter) UpsertEntities(_ context.Context, entities []model.PaperEntity) (model.UpsertResult, error) {
	cur := w.inFlight.Add(1)
	defer w.inFlight.Add(-1)
	for {
		seen := w.maxSeen.Load()
		if cur <= seen || w.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}
	if w.delay > 0 {
		time.Sleep(w.delay)
	}

	w.mu.Lock()
	w.batches = append(w.batches, entities)
	w.mu.Unlock()

	if w.fn != nil {
		return w.fn(entities)
	}
	return model.UpsertResult{Inserted: len(entities)}, nil
}

func entityBatch(n int) []model.PaperEntity {
	out := make([]model.PaperEntity, n)
	for i := range out {
		out[i].ArxivID = string(rune('a' + i))
	}
	return out
}

func TestCoordinator_ChunksBatches(t *testing.T) {
	w := &fakeWriter{}
	c := NewCoordinator(w, 3)

	res, err := c.Persist(context.Background(), entityBatch(7))
	require.NoError(t, err)
	assert.Equal(t, model.UpsertResult{Inserted: 7}, res)

	require.Len(t, w.batches, 3)
	assert.Len(t, w.batches[0], 3)
	assert.Len(t, w.batches[1], 3)
	assert.Len(t, w.batches[2], 1)
}

func TestCoordinator_SingleWriter(t *testing.T) {
	w := &fakeWriter{delay: 5 * time.Millisecond}
	c := NewCoordinator(w, 2)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Persist(context.Background(), entityBatch(4))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), w.maxSeen.Load())
}

func TestCoordinator_ReturnsPartialCountsOnError(t *testing.T) {
	calls := 0
	w := &fakeWriter{fn: func(batch []model.PaperEntity) (model.UpsertResult, error) {
		calls++
		if calls == 2 {
			return model.UpsertResult{}, eris.New("disk full")
		}
		return model.UpsertResult{Inserted: len(batch)}, nil
	}}
	c := NewCoordinator(w, 2)

	res, err := c.Persist(context.Background(), entityBatch(6))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, model.UpsertResult{Inserted: 2}, res)
}

func TestCoordinator_EmptyBatch(t *testing.T) {
	w := &fakeWriter{}
	c := NewCoordinator(w, 0)

	res, err := c.Persist(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, model.UpsertResult{}, res)
	assert.Empty(t, w.batches)
}

// Package enrich runs the per-paper enrichment fan-out: every applicable
// source is consulted under a global concurrency cap, and the results are
// joined into one outcome per paper.
package enrich

import (
	"context"

	"github.com/zzxtbeta/arixv-fetcher/internal/model"
)

// Enricher is one metadata source consulted for a paper. Implementations
// publish their output as merge field maps (see internal/merge field names).
type Enricher interface {
	// Name identifies the source in results, logs and provenance.
	Name() string
	// Mandatory marks the source whose failure fails the whole item.
	Mandatory() bool
	// Enrich consults the source for one paper. The entity carries what
	// earlier tiers already merged and must not be mutated.
	Enrich(ctx context.Context, paper model.Paper, entity *model.PaperEntity) (map[string]any, error)
}

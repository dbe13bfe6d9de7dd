package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/zzxtbeta/arixv-fetcher/internal/model"
)

// ErrNotFound is the sentinel wrapped by lookups of missing sessions or
// items. Callers test it with eris.Is.
var ErrNotFound = eris.New("not found")

// SessionFilter specifies criteria for listing sessions.
type SessionFilter struct {
	Status model.SessionStatus `json:"status,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
	Offset int                 `json:"offset,omitempty"`
}

// Store defines the persistence interface for the ingestion pipeline.
// Both backends keep the same semantics: session aggregates are recomputed
// from item rows inside the same transaction that updates an item, and
// entity upserts are idempotent on their natural keys.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, arxivIDs []string) (*model.Session, error)
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	GetSessionDetails(ctx context.Context, sessionID string) (*model.SessionDetails, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error)
	UpdateSessionStatus(ctx context.Context, sessionID string, status model.SessionStatus, errMsg string) error
	AddSessionCounts(ctx context.Context, sessionID string, inserted, skipped int) error
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteSessionsOlderThan(ctx context.Context, age time.Duration) (int, error)

	// Session items
	MarkItemProcessing(ctx context.Context, sessionID, arxivID string) error
	RecordItemOutcome(ctx context.Context, sessionID string, outcome model.ItemOutcome) (*model.Session, error)
	PendingArxivIDs(ctx context.Context, sessionID string) ([]string, error)

	// Entities
	UpsertEntities(ctx context.Context, entities []model.PaperEntity) (model.UpsertResult, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

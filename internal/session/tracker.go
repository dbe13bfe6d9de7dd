// Package session tracks durable ingestion progress: one session per batch,
// one item row per paper, with aggregate counts recomputed from item state.
package session

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zzxtbeta/arixv-fetcher/internal/model"
	"github.com/zzxtbeta/arixv-fetcher/internal/store"
)

// Tracker wraps the store with the session state machine. All writes go
// through the store; the tracker only decides which status a session lands in.
type Tracker struct {
	store store.Store
}

func NewTracker(st store.Store) *Tracker {
	return &Tracker{store: st}
}

// Begin creates a session covering the given arXiv ids and marks it processing.
func (t *Tracker) Begin(ctx context.Context, arxivIDs []string) (*model.Session, error) {
	sess, err := t.store.CreateSession(ctx, arxivIDs)
	if err != nil {
		return nil, eris.Wrap(err, "session: create")
	}
	if err := t.store.UpdateSessionStatus(ctx, sess.ID, model.SessionStatusProcessing, ""); err != nil {
		return nil, eris.Wrap(err, "session: mark processing")
	}
	sess.Status = model.SessionStatusProcessing
	zap.L().Info("session started",
		zap.String("session_id", sess.ID),
		zap.Int("total_papers", sess.TotalPapers))
	return sess, nil
}

// Resume moves an existing session back to processing for another pass over
// its unfinished items.
func (t *Tracker) Resume(ctx context.Context, sessionID string) error {
	return eris.Wrap(
		t.store.UpdateSessionStatus(ctx, sessionID, model.SessionStatusProcessing, ""),
		"session: resume")
}

// RecordStart marks one item in flight and bumps its attempt counter.
func (t *Tracker) RecordStart(ctx context.Context, sessionID, arxivID string) error {
	return eris.Wrap(
		t.store.MarkItemProcessing(ctx, sessionID, arxivID),
		"session: record start")
}

// RecordResult persists an item outcome and returns the session with
// aggregates recomputed in the same transaction.
func (t *Tracker) RecordResult(ctx context.Context, sessionID string, outcome model.ItemOutcome) (*model.Session, error) {
	sess, err := t.store.RecordItemOutcome(ctx, sessionID, outcome)
	if err != nil {
		return nil, eris.Wrap(err, "session: record result")
	}
	return sess, nil
}

// AddCounts accumulates persistence counters onto the session.
func (t *Tracker) AddCounts(ctx context.Context, sessionID string, result model.UpsertResult) error {
	if result.Inserted == 0 && result.Skipped == 0 {
		return nil
	}
	return eris.Wrap(
		t.store.AddSessionCounts(ctx, sessionID, result.Inserted, result.Skipped),
		"session: add counts")
}

// Pending lists the arXiv ids still worth processing: everything not yet
// completed, so failed items get another chance on resume.
func (t *Tracker) Pending(ctx context.Context, sessionID string) ([]string, error) {
	ids, err := t.store.PendingArxivIDs(ctx, sessionID)
	if err != nil {
		return nil, eris.Wrap(err, "session: pending")
	}
	return ids, nil
}

// Finalize derives the terminal status from the recomputed aggregates and
// writes it. quotaExhausted wins over everything else so a later resume can
// pick up exactly where dispatch stopped.
func (t *Tracker) Finalize(ctx context.Context, sessionID string, quotaExhausted bool, errMsg string) (*model.Session, error) {
	sess, err := t.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, eris.Wrap(err, "session: finalize get")
	}

	status := DeriveStatus(sess, quotaExhausted)
	if err := t.store.UpdateSessionStatus(ctx, sessionID, status, errMsg); err != nil {
		return nil, eris.Wrap(err, "session: finalize update")
	}
	sess.Status = status
	sess.ErrorMessage = errMsg
	sess.UpdatedAt = time.Now().UTC()

	zap.L().Info("session finalized",
		zap.String("session_id", sess.ID),
		zap.String("status", string(status)),
		zap.Int("completed", sess.CompletedPapers),
		zap.Int("failed", sess.FailedPapers),
		zap.Int("pending", sess.PendingPapers))
	return sess, nil
}

// DeriveStatus maps aggregate counts to a session status. Pending items with
// no quota signal mean the batch was interrupted and stays processing.
func DeriveStatus(sess *model.Session, quotaExhausted bool) model.SessionStatus {
	switch {
	case quotaExhausted:
		return model.SessionStatusQuotaExhausted
	case sess.PendingPapers > 0:
		return model.SessionStatusProcessing
	case sess.FailedPapers == 0:
		return model.SessionStatusCompleted
	case sess.CompletedPapers == 0:
		return model.SessionStatusFailed
	default:
		return model.SessionStatusPartiallyFailed
	}
}

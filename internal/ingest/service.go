// Package ingest orchestrates one batch end to end: fetch candidates from
// arXiv, enrich them through the pool, persist merged entities, and keep the
// session record honest the whole way.
package ingest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zzxtbeta/arixv-fetcher/internal/enrich"
	"github.com/zzxtbeta/arixv-fetcher/internal/model"
	"github.com/zzxtbeta/arixv-fetcher/internal/session"
	"github.com/zzxtbeta/arixv-fetcher/internal/store"
	"github.com/zzxtbeta/arixv-fetcher/internal/upsert"
	"github.com/zzxtbeta/arixv-fetcher/pkg/arxiv"
)

// Summary is what a batch reports back to callers, CLI and HTTP alike.
type Summary struct {
	SessionID string              `json:"session_id,omitempty"`
	Status    model.SessionStatus `json:"status"`
	Outcome   model.ResumeOutcome `json:"outcome,omitempty"`
	Fetched   int                 `json:"fetched"`
	Inserted  int                 `json:"inserted"`
	Skipped   int                 `json:"skipped"`
	Completed int                 `json:"completed"`
	Failed    int                 `json:"failed"`
	Pending   int                 `json:"pending"`
}

// PoolFactory builds a fresh enrichment pool per batch so the quota gate
// always starts open.
type PoolFactory func() *enrich.Pool

// Service wires the fetcher, enrichment pool, session tracker, and upsert
// coordinator into the batch operations.
type Service struct {
	fetcher arxiv.Client
	newPool PoolFactory
	tracker *session.Tracker
	coord   *upsert.Coordinator
	store   store.Store
}

func NewService(fetcher arxiv.Client, newPool PoolFactory, tracker *session.Tracker, coord *upsert.Coordinator, st store.Store) *Service {
	return &Service{
		fetcher: fetcher,
		newPool: newPool,
		tracker: tracker,
		coord:   coord,
		store:   st,
	}
}

// FetchWindow ingests papers submitted or updated in the last N days.
func (s *Service) FetchWindow(ctx context.Context, categories []string, days, maxResults int) (*Summary, error) {
	papers, err := s.fetcher.SearchWindow(ctx, categories, days, maxResults)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: search window")
	}
	return s.ingest(ctx, papers)
}

// FetchRange ingests papers submitted or updated within [start, end].
func (s *Service) FetchRange(ctx context.Context, categories []string, start, end time.Time, maxResults int) (*Summary, error) {
	papers, err := s.fetcher.SearchRange(ctx, categories, start, end, maxResults)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: search range")
	}
	return s.ingest(ctx, papers)
}

// FetchByIDs ingests an explicit list of arXiv identifiers.
func (s *Service) FetchByIDs(ctx context.Context, ids []string) (*Summary, error) {
	papers, err := s.fetcher.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: fetch by ids")
	}
	if len(papers) < len(ids) {
		zap.L().Warn("some requested ids did not resolve",
			zap.Int("requested", len(ids)),
			zap.Int("resolved", len(papers)))
	}
	return s.ingest(ctx, papers)
}

// Resume re-runs the unfinished items of an existing session.
func (s *Service) Resume(ctx context.Context, sessionID string) (*Summary, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: resume lookup")
	}

	if sess.Status == model.SessionStatusCompleted {
		sum := summarize(sess, 0)
		sum.Outcome = model.ResumeAlreadyCompleted
		return sum, nil
	}

	pending, err := s.tracker.Pending(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		sum := summarize(sess, 0)
		sum.Outcome = model.ResumeNoPendingPapers
		return sum, nil
	}

	if err := s.tracker.Resume(ctx, sessionID); err != nil {
		return nil, err
	}

	papers, err := s.fetcher.FetchByIDs(ctx, pending)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: refetch pending")
	}

	sum, quota, err := s.run(ctx, sessionID, papers)
	if err != nil {
		return nil, err
	}
	if quota {
		sum.Outcome = model.ResumeQuotaExhausted
	} else {
		sum.Outcome = model.ResumeResumed
	}
	return sum, nil
}

func (s *Service) ingest(ctx context.Context, papers []model.Paper) (*Summary, error) {
	if len(papers) == 0 {
		return &Summary{Status: model.SessionStatusCompleted}, nil
	}

	ids := make([]string, len(papers))
	for i, p := range papers {
		ids[i] = p.ArxivID
	}

	sess, err := s.tracker.Begin(ctx, ids)
	if err != nil {
		return nil, err
	}

	sum, _, err := s.run(ctx, sess.ID, papers)
	return sum, err
}

// run processes one batch against an already-created session. A single item
// failing never fails the batch; only infrastructure errors surface.
func (s *Service) run(ctx context.Context, sessionID string, papers []model.Paper) (*Summary, bool, error) {
	pool := s.newPool()
	// Items are marked processing as workers pick them up, so session
	// details reflect in-flight work, not just finished items.
	pool.OnDispatch = func(ctx context.Context, arxivID string) error {
		return s.tracker.RecordStart(ctx, sessionID, arxivID)
	}

	for item := range pool.Process(ctx, papers) {
		if !item.Attempted {
			// Quota gate or cancellation stopped it before any source
			// ran; the item stays pending for a later resume.
			continue
		}

		outcome := model.ItemOutcome{
			ArxivID:        item.Paper.ArxivID,
			Warning:        item.Warning,
			ProcessingTime: item.Elapsed,
		}

		switch {
		case item.Err != nil:
			outcome.Status = model.ItemStatusFailed
			outcome.ErrorMessage = item.Err.Error()
		default:
			res, err := s.coord.Persist(ctx, []model.PaperEntity{*item.Entity})
			if err != nil {
				outcome.Status = model.ItemStatusFailed
				outcome.ErrorMessage = err.Error()
			} else {
				outcome.Status = model.ItemStatusCompleted
				if err := s.tracker.AddCounts(ctx, sessionID, res); err != nil {
					return nil, false, err
				}
			}
		}

		if _, err := s.tracker.RecordResult(ctx, sessionID, outcome); err != nil {
			return nil, false, err
		}
	}

	quota := pool.QuotaExhausted()
	errMsg := ""
	if quota {
		errMsg = "api quota exhausted"
	}
	final, err := s.tracker.Finalize(ctx, sessionID, quota, errMsg)
	if err != nil {
		return nil, false, err
	}
	return summarize(final, len(papers)), quota, nil
}

func summarize(sess *model.Session, fetched int) *Summary {
	return &Summary{
		SessionID: sess.ID,
		Status:    sess.Status,
		Fetched:   fetched,
		Inserted:  sess.TotalInserted,
		Skipped:   sess.TotalSkipped,
		Completed: sess.CompletedPapers,
		Failed:    sess.FailedPapers,
		Pending:   sess.PendingPapers,
	}
}

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzxtbeta/arixv-fetcher/internal/merge"
	"github.com/zzxtbeta/arixv-fetcher/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func testEntity(arxivID string) model.PaperEntity {
	brain := merge.NormKey("Google Brain")
	return model.PaperEntity{
		Paper: model.Paper{
			ArxivID:     arxivID,
			Title:       "Attention Is All You Need",
			Abstract:    "We propose a new network architecture.",
			Authors:     []string{"Ashish Vaswani", "Noam Shazeer"},
			Categories:  []string{"cs.CL", "cs.LG"},
			PDFURL:      "https://arxiv.org/pdf/" + arxivID,
			PublishedAt: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			UpdatedAt:   time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC),
		},
		AuthorAffiliations: []model.AuthorAffiliation{
			{Name: "Ashish Vaswani", Affiliations: []string{"Google Brain"}, Email: "vaswani@example.com"},
			{Name: "Noam Shazeer", Affiliations: []string{"Google Brain"}},
		},
		ORCIDByAuthor: map[string]string{"Ashish Vaswani": "0000-0001-2345-6789"},
		AffiliationMeta: map[string]map[string]model.AffiliationMeta{
			"Ashish Vaswani": {brain: {Role: "Research Scientist", StartDate: "2016-03"}},
		},
		CountryByAffiliation: map[string]string{brain: "United States"},
		RankingsByAffiliation: map[string][]model.InstitutionRanking{
			brain: {{System: "QS 2025", Year: 2025, Rank: "=12"}},
		},
	}
}

func TestSQLiteStore_CreateSession_DedupesIDs(t *testing.T) {
	s := newTestSQLiteStore(t)

	sess, err := s.CreateSession(context.Background(), []string{"2401.00001", "2401.00002", "2401.00001", ""})
	require.NoError(t, err)

	assert.Equal(t, model.SessionStatusCreated, sess.Status)
	assert.Equal(t, 2, sess.TotalPapers)
	assert.Equal(t, 2, sess.PendingPapers)
	assert.Equal(t, 0, sess.CompletedPapers)
	assert.NotEmpty(t, sess.ID)
}

func TestSQLiteStore_GetSession_NotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.GetSession(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLiteStore_SessionLifecycle(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, []string{"2401.00001", "2401.00002", "2401.00003"})
	require.NoError(t, err)

	require.NoError(t, s.MarkItemProcessing(ctx, sess.ID, "2401.00001"))

	updated, err := s.RecordItemOutcome(ctx, sess.ID, model.ItemOutcome{
		ArxivID:        "2401.00001",
		Status:         model.ItemStatusCompleted,
		Warning:        "orcid lookup failed",
		ProcessingTime: 1500 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CompletedPapers)
	assert.Equal(t, 0, updated.FailedPapers)
	assert.Equal(t, 2, updated.PendingPapers)

	updated, err = s.RecordItemOutcome(ctx, sess.ID, model.ItemOutcome{
		ArxivID:      "2401.00002",
		Status:       model.ItemStatusFailed,
		ErrorMessage: "affiliation extraction failed",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CompletedPapers)
	assert.Equal(t, 1, updated.FailedPapers)
	assert.Equal(t, 1, updated.PendingPapers)
	assert.Equal(t, updated.TotalPapers,
		updated.CompletedPapers+updated.FailedPapers+updated.PendingPapers)

	details, err := s.GetSessionDetails(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, details.Items, 3)
	assert.Equal(t, 1, details.Items["2401.00001"].Attempts)
	assert.Equal(t, "orcid lookup failed", details.Items["2401.00001"].Warning)
	assert.Equal(t, 1500*time.Millisecond, details.Items["2401.00001"].ProcessingTime)
	assert.Equal(t, model.ItemStatusFailed, details.Items["2401.00002"].Status)
	assert.Equal(t, model.ItemStatusPending, details.Items["2401.00003"].Status)

	// Failed and pending items are both candidates for resume.
	pending, err := s.PendingArxivIDs(ctx, sess.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2401.00002", "2401.00003"}, pending)
}

func TestSQLiteStore_UpdateSessionStatus(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, []string{"2401.00001"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateSessionStatus(ctx, sess.ID, model.SessionStatusQuotaExhausted, "credit balance too low"))

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusQuotaExhausted, got.Status)
	assert.Equal(t, "credit balance too low", got.ErrorMessage)

	err = s.UpdateSessionStatus(ctx, "missing", model.SessionStatusFailed, "")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLiteStore_AddSessionCounts(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, []string{"2401.00001"})
	require.NoError(t, err)

	require.NoError(t, s.AddSessionCounts(ctx, sess.ID, 3, 1))
	require.NoError(t, s.AddSessionCounts(ctx, sess.ID, 2, 4))

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.TotalInserted)
	assert.Equal(t, 5, got.TotalSkipped)
}

func TestSQLiteStore_ListSessions_FilterByStatus(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := s.CreateSession(ctx, []string{"2401.00001"})
	require.NoError(t, err)
	_, err = s.CreateSession(ctx, []string{"2401.00002"})
	require.NoError(t, err)
	require.NoError(t, s.UpdateSessionStatus(ctx, a.ID, model.SessionStatusCompleted, ""))

	completed, err := s.ListSessions(ctx, SessionFilter{Status: model.SessionStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, a.ID, completed[0].ID)

	all, err := s.ListSessions(ctx, SessionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	limited, err := s.ListSessions(ctx, SessionFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteStore_DeleteSession(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, []string{"2401.00001"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteSession(ctx, sess.ID))

	_, err = s.GetSession(ctx, sess.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.DeleteSession(ctx, sess.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLiteStore_DeleteSessionsOlderThan(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.CreateSession(ctx, []string{"2401.00001"})
	require.NoError(t, err)

	n, err := s.DeleteSessionsOlderThan(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	time.Sleep(20 * time.Millisecond)
	n, err = s.DeleteSessionsOlderThan(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteStore_UpsertEntities_InsertThenSkip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	res, err := s.UpsertEntities(ctx, []model.PaperEntity{testEntity("2401.00001")})
	require.NoError(t, err)
	assert.Equal(t, model.UpsertResult{Inserted: 1, Skipped: 0}, res)

	res, err = s.UpsertEntities(ctx, []model.PaperEntity{testEntity("2401.00001")})
	require.NoError(t, err)
	assert.Equal(t, model.UpsertResult{Inserted: 0, Skipped: 1}, res)

	var papers, authors, affiliations, categories, rankings int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM papers`).Scan(&papers))
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM authors`).Scan(&authors))
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM affiliations`).Scan(&affiliations))
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM categories`).Scan(&categories))
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM affiliation_rankings`).Scan(&rankings))
	assert.Equal(t, 1, papers)
	assert.Equal(t, 2, authors)
	assert.Equal(t, 1, affiliations)
	assert.Equal(t, 2, categories)
	assert.Equal(t, 1, rankings)
}

func TestSQLiteStore_UpsertEntities_FillsMissingFields(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	bare := testEntity("2401.00001")
	bare.ORCIDByAuthor = nil
	bare.CountryByAffiliation = nil
	_, err := s.UpsertEntities(ctx, []model.PaperEntity{bare})
	require.NoError(t, err)

	var orcid, country string
	require.NoError(t, s.db.QueryRow(`SELECT orcid FROM authors WHERE name = ?`, "Ashish Vaswani").Scan(&orcid))
	require.NoError(t, s.db.QueryRow(`SELECT country FROM affiliations`).Scan(&country))
	assert.Empty(t, orcid)
	assert.Empty(t, country)

	_, err = s.UpsertEntities(ctx, []model.PaperEntity{testEntity("2401.00001")})
	require.NoError(t, err)

	require.NoError(t, s.db.QueryRow(`SELECT orcid FROM authors WHERE name = ?`, "Ashish Vaswani").Scan(&orcid))
	require.NoError(t, s.db.QueryRow(`SELECT country FROM affiliations`).Scan(&country))
	assert.Equal(t, "0000-0001-2345-6789", orcid)
	assert.Equal(t, "United States", country)
}

func TestSQLiteStore_UpsertEntities_KeepsExistingRole(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	first := testEntity("2401.00001")
	_, err := s.UpsertEntities(ctx, []model.PaperEntity{first})
	require.NoError(t, err)

	second := testEntity("2401.00002")
	second.AffiliationMeta["Ashish Vaswani"][merge.NormKey("Google Brain")] = model.AffiliationMeta{
		Role:      "Principal Scientist",
		StartDate: "2018-01",
	}
	_, err = s.UpsertEntities(ctx, []model.PaperEntity{second})
	require.NoError(t, err)

	var role, startDate string
	require.NoError(t, s.db.QueryRow(
		`SELECT role, start_date FROM author_affiliation
		 JOIN authors ON authors.id = author_affiliation.author_id
		 WHERE authors.name = ?`, "Ashish Vaswani").Scan(&role, &startDate))
	assert.Equal(t, "Research Scientist", role)
	// Tenure window widens to the earliest known start.
	assert.Equal(t, "2016-03", startDate)
}

func TestSQLiteStore_UpsertEntities_SharedAffiliation(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testEntity("2401.00001")
	b := testEntity("2401.00002")
	b.AuthorAffiliations = []model.AuthorAffiliation{
		{Name: "Noam Shazeer", Affiliations: []string{"Google  brain"}},
	}
	b.Authors = []string{"Noam Shazeer"}

	res, err := s.UpsertEntities(ctx, []model.PaperEntity{a, b})
	require.NoError(t, err)
	assert.Equal(t, model.UpsertResult{Inserted: 2, Skipped: 0}, res)

	// Both spellings normalize to the same key.
	var affiliations int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM affiliations`).Scan(&affiliations))
	assert.Equal(t, 1, affiliations)
}

func TestSQLiteStore_UpsertEntities_Empty(t *testing.T) {
	s := newTestSQLiteStore(t)

	res, err := s.UpsertEntities(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, model.UpsertResult{}, res)
}

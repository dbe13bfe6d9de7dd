package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzxtbeta/arixv-fetcher/internal/enrich"
	"github.com/zzxtbeta/arixv-fetcher/internal/ingest"
	"github.com/zzxtbeta/arixv-fetcher/internal/merge"
	"github.com/zzxtbeta/arixv-fetcher/internal/model"
	"github.com/zzxtbeta/arixv-fetcher/internal/session"
	"github.com/zzxtbeta/arixv-fetcher/internal/store"
	"github.com/zzxtbeta/arixv-fetcher/internal/upsert"
)

type apiStubFetcher struct {
	papers []model.Paper
}

func (f *apiStubFetcher) SearchWindow(_ context.Context, _ []string, _ int, _ int) ([]model.Paper, error) {
	return f.papers, nil
}

func (f *apiStubFetcher) SearchRange(_ context.Context, _ []string, _, _ time.Time, _ int) ([]model.Paper, error) {
	return f.papers, nil
}

func (f *apiStubFetcher) FetchByIDs(_ context.Context, ids []string) ([]model.Paper, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Paper
	for _, p := range f.papers {
		if want[p.ArxivID] {
			out = append(out, p)
		}
	}
	return out, nil
}

type apiStubEnricher struct{}

func (apiStubEnricher) Name() string    { return "affiliation" }
func (apiStubEnricher) Mandatory() bool { return true }

func (apiStubEnricher) Enrich(_ context.Context, paper model.Paper, _ *model.PaperEntity) (map[string]any, error) {
	return map[string]any{
		merge.FieldAuthorAffiliations: []model.AuthorAffiliation{
			{Name: paper.Authors[0], Affiliations: []string{"MIT"}},
		},
	}, nil
}

func apiPapers(ids ...string) []model.Paper {
	out := make([]model.Paper, len(ids))
	for i, id := range ids {
		out[i] = model.Paper{
			ArxivID:     id,
			Title:       "Paper " + id,
			Authors:     []string{"Grace Hopper"},
			Categories:  []string{"cs.AI"},
			PublishedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			UpdatedAt:   time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC),
		}
	}
	return out
}

func newTestRouter(t *testing.T, papers []model.Paper) (http.Handler, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	newPool := func() *enrich.Pool {
		return enrich.NewPool([]enrich.Enricher{apiStubEnricher{}}, enrich.DefaultCatalog(), 2, merge.PolicyFillMissing)
	}
	svc := ingest.NewService(&apiStubFetcher{papers: papers}, newPool, session.NewTracker(st), upsert.NewCoordinator(st, 0), st)
	return newRouter(svc, st), st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPI_Health(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestAPI_Fetch(t *testing.T) {
	h, _ := newTestRouter(t, apiPapers("2402.00001", "2402.00002"))

	rec := doJSON(t, h, http.MethodPost, "/data/fetch", fetchRequest{
		Days:       3,
		Categories: []string{"cs.AI"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var sum ingest.Summary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sum))
	assert.Equal(t, model.SessionStatusCompleted, sum.Status)
	assert.Equal(t, 2, sum.Fetched)
	assert.Equal(t, 2, sum.Inserted)
	assert.NotEmpty(t, sum.SessionID)
}

func TestAPI_Fetch_RequiresCategories(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := doJSON(t, h, http.MethodPost, "/data/fetch", fetchRequest{Days: 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Fetch_RangeValidation(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := doJSON(t, h, http.MethodPost, "/data/fetch", fetchRequest{
		From:       "2024-02-10",
		To:         "2024-02-01",
		Categories: []string{"cs.AI"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_FetchByID(t *testing.T) {
	h, _ := newTestRouter(t, apiPapers("2402.00001", "2402.00002"))

	rec := doJSON(t, h, http.MethodPost, "/data/fetch-by-id", map[string]any{
		"arxiv_ids": []string{"2402.00002"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var sum ingest.Summary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sum))
	assert.Equal(t, 1, sum.Fetched)
	assert.Equal(t, 1, sum.Completed)
}

func TestAPI_SessionLifecycle(t *testing.T) {
	h, _ := newTestRouter(t, apiPapers("2402.00001"))

	rec := doJSON(t, h, http.MethodPost, "/data/fetch", fetchRequest{
		Days:       1,
		Categories: []string{"cs.AI"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var sum ingest.Summary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sum))

	rec = doJSON(t, h, http.MethodGet, "/sessions?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Sessions []model.Session `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, sum.SessionID, list.Sessions[0].ID)

	rec = doJSON(t, h, http.MethodGet, "/sessions/"+sum.SessionID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/sessions/"+sum.SessionID+"/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resumed ingest.Summary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resumed))
	assert.Equal(t, model.ResumeAlreadyCompleted, resumed.Outcome)

	rec = doJSON(t, h, http.MethodDelete, "/sessions/"+sum.SessionID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/sessions/"+sum.SessionID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_SessionNotFound(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := doJSON(t, h, http.MethodGet, "/sessions/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/sessions/does-not-exist/resume", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/sessions/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package main

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/zzxtbeta/arixv-fetcher/internal/enrich"
	"github.com/zzxtbeta/arixv-fetcher/internal/ingest"
	"github.com/zzxtbeta/arixv-fetcher/internal/merge"
	"github.com/zzxtbeta/arixv-fetcher/internal/resilience"
	"github.com/zzxtbeta/arixv-fetcher/internal/session"
	"github.com/zzxtbeta/arixv-fetcher/internal/store"
	"github.com/zzxtbeta/arixv-fetcher/internal/upsert"
	"github.com/zzxtbeta/arixv-fetcher/pkg/anthropic"
	"github.com/zzxtbeta/arixv-fetcher/pkg/arxiv"
	"github.com/zzxtbeta/arixv-fetcher/pkg/orcid"
)

// Per-invocation overrides bound as flags on the commands that run the
// enrichment pool.
var (
	flagConcurrency int
	flagPolicy      string
)

// env bundles everything a command needs, built once per invocation.
type env struct {
	Store   store.Store
	Service *ingest.Service
}

func (e *env) Close() {
	_ = e.Store.Close()
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "arxiv.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DSN, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	fetcher := initArxivClient()

	enrichers, err := initEnrichers()
	if err != nil {
		st.Close()
		return nil, err
	}

	catalog := enrich.DefaultCatalog()
	if cfg.Enrich.SourcesFile != "" {
		catalog, err = enrich.LoadCatalog(cfg.Enrich.SourcesFile)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	policy, err := resolvePolicy(flagPolicy)
	if err != nil {
		st.Close()
		return nil, err
	}
	concurrency := cfg.Enrich.MaxConcurrency
	if flagConcurrency > 0 {
		concurrency = flagConcurrency
	}

	newPool := func() *enrich.Pool {
		return enrich.NewPool(enrichers, catalog, int64(concurrency), policy)
	}

	svc := ingest.NewService(fetcher, newPool, session.NewTracker(st), upsert.NewCoordinator(st, 0), st)
	return &env{Store: st, Service: svc}, nil
}

func resolvePolicy(name string) (merge.Policy, error) {
	switch name {
	case "", string(merge.PolicyFillMissing):
		return merge.PolicyFillMissing, nil
	case string(merge.PolicyOverwrite):
		return merge.PolicyOverwrite, nil
	default:
		return "", eris.Errorf("unknown merge policy: %s (want fill-missing or overwrite)", name)
	}
}

func initArxivClient() arxiv.Client {
	opts := []arxiv.Option{
		arxiv.WithPageSize(cfg.Arxiv.PageSize),
	}
	if cfg.Arxiv.BaseURL != "" {
		opts = append(opts, arxiv.WithBaseURL(cfg.Arxiv.BaseURL))
	}
	if cfg.Arxiv.RateLimit > 0 {
		opts = append(opts, arxiv.WithRateLimit(rate.Limit(cfg.Arxiv.RateLimit)))
	}
	if cfg.Arxiv.MaxAttempts > 0 {
		retry := resilience.DefaultRetryConfig()
		retry.MaxAttempts = cfg.Arxiv.MaxAttempts
		opts = append(opts, arxiv.WithRetryConfig(retry))
	}
	return arxiv.NewClient(opts...)
}

func initEnrichers() ([]enrich.Enricher, error) {
	if cfg.Anthropic.APIKey == "" {
		return nil, eris.New("anthropic api key is required (ARXIV_ANTHROPIC_API_KEY)")
	}

	llm := anthropic.NewClient(cfg.Anthropic.APIKey)
	text := enrich.NewPdfTextSource()
	enrichers := []enrich.Enricher{
		enrich.NewAffiliationEnricher(llm, text, cfg.Anthropic.Model, int64(cfg.Anthropic.MaxTokens)),
	}

	if cfg.Orcid.Enabled {
		var orcidOpts []orcid.Option
		if cfg.Orcid.BaseURL != "" {
			orcidOpts = append(orcidOpts, orcid.WithBaseURL(cfg.Orcid.BaseURL))
		}
		enrichers = append(enrichers,
			enrich.NewORCIDEnricher(orcid.NewClient(orcidOpts...), cfg.Enrich.SimilarityThreshold))
	}

	if cfg.Enrich.RankingsFile != "" {
		ranking, err := enrich.NewRankingEnricher(cfg.Enrich.RankingsFile, "QS 2025", cfg.Enrich.SimilarityThreshold)
		if err != nil {
			return nil, err
		}
		enrichers = append(enrichers, ranking)
	}

	return enrichers, nil
}

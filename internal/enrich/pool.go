package enrich

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/zzxtbeta/arixv-fetcher/internal/merge"
	"github.com/zzxtbeta/arixv-fetcher/internal/model"
	"github.com/zzxtbeta/arixv-fetcher/internal/resilience"
)

// ItemResult is the joined outcome of enriching one paper.
type ItemResult struct {
	Paper   model.Paper
	Entity  *model.PaperEntity
	Results []model.EnrichmentResult
	// Err is set when the mandatory source failed; the item is failed.
	Err error
	// Warning collects non-fatal source failures.
	Warning string
	// Attempted is false when the quota gate stopped the item before any
	// source ran; such items stay pending for a later resume.
	Attempted bool
	// Elapsed is the wall time spent on this item.
	Elapsed time.Duration
}

// Pool runs the enrichment fan-out with a global concurrency cap. One
// semaphore bounds in-flight source calls across all papers, so batch width
// never multiplies external pressure.
type Pool struct {
	enrichers []Enricher
	catalog   *Catalog
	sem       *semaphore.Weighted
	policy    merge.Policy

	// OnDispatch, when set, runs as an item passes the quota gate and
	// before any source is called. A returned error fails the item.
	OnDispatch func(ctx context.Context, arxivID string) error

	// quotaHit flips once any source reports an exhausted quota. No new
	// item starts after that; in-flight items drain.
	quotaHit atomic.Bool
}

// NewPool builds a pool over the given enrichers. Sources missing from the
// catalog or disabled there never run.
func NewPool(enrichers []Enricher, catalog *Catalog, maxConcurrency int64, policy merge.Policy) *Pool {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if policy == "" {
		policy = merge.PolicyFillMissing
	}
	return &Pool{
		enrichers: enrichers,
		catalog:   catalog,
		sem:       semaphore.NewWeighted(maxConcurrency),
		policy:    policy,
	}
}

// QuotaExhausted reports whether the quota gate tripped during processing.
func (p *Pool) QuotaExhausted() bool {
	return p.quotaHit.Load()
}

// Process enriches a batch. Results stream out as items finish; the channel
// closes when the whole batch has been accounted for, including items the
// quota gate never attempted.
func (p *Pool) Process(ctx context.Context, papers []model.Paper) <-chan ItemResult {
	out := make(chan ItemResult, len(papers))

	var wg sync.WaitGroup
	for _, paper := range papers {
		wg.Add(1)
		go func(paper model.Paper) {
			defer wg.Done()
			out <- p.processItem(ctx, paper)
		}(paper)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (p *Pool) processItem(ctx context.Context, paper model.Paper) ItemResult {
	res := ItemResult{Paper: paper}

	if p.quotaHit.Load() || ctx.Err() != nil {
		return res
	}
	if p.OnDispatch != nil {
		if err := p.OnDispatch(ctx, paper.ArxivID); err != nil {
			res.Attempted = true
			res.Err = err
			return res
		}
	}
	res.Attempted = true
	started := time.Now()
	defer func() { res.Elapsed = time.Since(started) }()

	entity := &model.PaperEntity{Paper: paper}
	res.Entity = entity

	var warnings []string
	for _, tier := range p.tiers() {
		tierResults, tierErrs := p.runTier(ctx, tier, paper, entity)
		res.Results = append(res.Results, tierResults...)

		for i, r := range tierResults {
			if r.OK {
				continue
			}
			spec, _ := p.catalog.Spec(r.Source)
			switch {
			case resilience.IsQuota(tierErrs[i]):
				// A spent quota is not the item's fault: leave it
				// unconsumed so resume picks it up.
				if spec.Mandatory {
					res.Attempted = false
				} else {
					warnings = append(warnings, r.Source+": "+r.Error)
				}
			case spec.Mandatory:
				res.Err = eris.Errorf("enrich: mandatory source %s failed: %s", r.Source, r.Error)
			default:
				warnings = append(warnings, r.Source+": "+r.Error)
			}
		}
		if res.Err != nil || !res.Attempted {
			break
		}
		merge.Apply(entity, tierResults, p.policy)
	}

	res.Warning = strings.Join(warnings, "; ")
	return res
}

// runTier fans out over the tier's sources and joins them all. Failures are
// captured in the results rather than aborting siblings.
func (p *Pool) runTier(ctx context.Context, tier []Enricher, paper model.Paper, entity *model.PaperEntity) ([]model.EnrichmentResult, []error) {
	results := make([]model.EnrichmentResult, len(tier))
	errs := make([]error, len(tier))
	g, gctx := errgroup.WithContext(ctx)

	for i, e := range tier {
		g.Go(func() error {
			results[i], errs[i] = p.callSource(gctx, e, paper, entity)
			return nil
		})
	}
	_ = g.Wait()

	outResults := make([]model.EnrichmentResult, 0, len(tier))
	outErrs := make([]error, 0, len(tier))
	for i, r := range results {
		if r.Source != "" {
			outResults = append(outResults, r)
			outErrs = append(outErrs, errs[i])
		}
	}
	return outResults, outErrs
}

func (p *Pool) callSource(ctx context.Context, e Enricher, paper model.Paper, entity *model.PaperEntity) (model.EnrichmentResult, error) {
	result := model.EnrichmentResult{ArxivID: paper.ArxivID, Source: e.Name()}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		result.Error = err.Error()
		return result, err
	}
	defer p.sem.Release(1)

	// Re-check after waiting: a sibling may have tripped the gate while
	// this call was queued.
	if p.quotaHit.Load() {
		err := resilience.NewQuotaError(e.Name(), eris.New("dispatch paused"))
		result.Error = err.Error()
		return result, err
	}

	spec, _ := p.catalog.Spec(e.Name())
	callCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	started := time.Now()
	fields, err := e.Enrich(callCtx, paper, entity)
	result.Latency = time.Since(started)

	if err != nil {
		result.Error = err.Error()
		if resilience.IsQuota(err) {
			if p.quotaHit.CompareAndSwap(false, true) {
				zap.L().Warn("api quota exhausted, pausing dispatch",
					zap.String("source", e.Name()),
					zap.String("arxiv_id", paper.ArxivID),
				)
			}
		}
		return result, err
	}

	result.OK = true
	result.Fields = fields
	return result, nil
}

// tiers groups the enabled enrichers by catalog tier, ascending.
func (p *Pool) tiers() [][]Enricher {
	byTier := map[int][]Enricher{}
	for _, e := range p.enrichers {
		if !p.catalog.IsEnabled(e.Name()) {
			continue
		}
		spec, _ := p.catalog.Spec(e.Name())
		byTier[spec.Tier] = append(byTier[spec.Tier], e)
	}

	levels := make([]int, 0, len(byTier))
	for t := range byTier {
		levels = append(levels, t)
	}
	sort.Ints(levels)

	out := make([][]Enricher, 0, len(levels))
	for _, t := range levels {
		group := byTier[t]
		sort.Slice(group, func(i, j int) bool { return group[i].Name() < group[j].Name() })
		out = append(out, group)
	}
	return out
}

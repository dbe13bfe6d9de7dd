package enrich

import (
	"context"
	"encoding/csv"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zzxtbeta/arixv-fetcher/internal/merge"
	"github.com/zzxtbeta/arixv-fetcher/internal/model"
)

var (
	parenAliasRe = regexp.MustCompile(`\(([^)]*)\)`)
	rankYearRe   = regexp.MustCompile(`^(\d{4})\s+rank$`)
)

// rankingRecord is one catalog institution with its per-year ranks.
type rankingRecord struct {
	Name    string
	Country string
	Ranks   []model.InstitutionRanking
}

// RankingEnricher annotates affiliations with institution rankings and
// countries from a CSV catalog. Pure lookup, no network.
type RankingEnricher struct {
	system    string
	threshold float64
	byKey     map[string]*rankingRecord
	records   []*rankingRecord
	variants  map[*rankingRecord][]string
}

// NewRankingEnricher loads the catalog CSV. Expected header: an institution
// name column, an optional country/location column, and one or more
// "<year> Rank" columns. Header matching tolerates spacing and case noise.
func NewRankingEnricher(path, system string, threshold float64) (*RankingEnricher, error) {
	if system == "" {
		system = "QS"
	}
	if threshold <= 0 {
		threshold = merge.DefaultThreshold
	}
	e := &RankingEnricher{
		system:    system,
		threshold: threshold,
		byKey:     map[string]*rankingRecord{},
		variants:  map[*rankingRecord][]string{},
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: open ranking catalog %s", path)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: parse ranking catalog %s", path)
	}
	if len(rows) < 2 {
		return nil, eris.Errorf("enrich: ranking catalog %s has no data rows", path)
	}

	header := rows[0]
	nameCol, countryCol := -1, -1
	yearCols := map[int]int{}
	for i, h := range header {
		switch k := normHeader(h); {
		case k == "institution name" || k == "institution" || k == "name":
			nameCol = i
		case k == "location full" || k == "location" || k == "country":
			if countryCol < 0 {
				countryCol = i
			}
		default:
			if m := rankYearRe.FindStringSubmatch(k); m != nil {
				year, _ := strconv.Atoi(m[1])
				yearCols[i] = year
			}
		}
	}
	if nameCol < 0 {
		return nil, eris.Errorf("enrich: ranking catalog %s has no institution column", path)
	}

	for _, row := range rows[1:] {
		if nameCol >= len(row) {
			continue
		}
		name := strings.TrimSpace(row[nameCol])
		if name == "" {
			continue
		}
		rec := &rankingRecord{Name: name}
		if countryCol >= 0 && countryCol < len(row) {
			rec.Country = strings.TrimSpace(row[countryCol])
		}
		for col, year := range yearCols {
			if col < len(row) {
				if rank := strings.TrimSpace(row[col]); rank != "" {
					rec.Ranks = append(rec.Ranks, model.InstitutionRanking{
						System: system + " " + strconv.Itoa(year),
						Year:   year,
						Rank:   rank,
					})
				}
			}
		}
		e.index(rec)
	}

	zap.L().Info("ranking catalog loaded",
		zap.String("path", path),
		zap.Int("institutions", len(e.records)),
	)
	return e, nil
}

// index registers every normalized variant of the institution name,
// parenthetical aliases included, plus the acronym.
func (e *RankingEnricher) index(rec *rankingRecord) {
	keys := merge.NormalizeVariants(rec.Name)
	for _, alias := range parenAliasRe.FindAllStringSubmatch(rec.Name, -1) {
		for _, k := range merge.NormalizeVariants(alias[1]) {
			if !containsKey(keys, k) {
				keys = append(keys, k)
			}
		}
	}
	if acr := merge.BuildAcronym(rec.Name); acr != "" && !containsKey(keys, acr) {
		keys = append(keys, acr)
	}

	for _, k := range keys {
		if _, taken := e.byKey[k]; !taken {
			e.byKey[k] = rec
		}
	}
	e.records = append(e.records, rec)
	e.variants[rec] = keys
}

func (e *RankingEnricher) Name() string    { return "ranking" }
func (e *RankingEnricher) Mandatory() bool { return false }

func (e *RankingEnricher) Enrich(_ context.Context, _ model.Paper, entity *model.PaperEntity) (map[string]any, error) {
	if entity == nil || len(entity.AuthorAffiliations) == 0 {
		return nil, nil
	}

	countries := map[string]string{}
	rankings := map[string][]model.InstitutionRanking{}
	for _, aa := range entity.AuthorAffiliations {
		for _, aff := range aa.Affiliations {
			key := merge.NormKey(aff)
			if _, done := rankings[key]; done {
				continue
			}
			rec := e.find(aff)
			if rec == nil {
				continue
			}
			if rec.Country != "" {
				countries[key] = rec.Country
			}
			if len(rec.Ranks) > 0 {
				rankings[key] = rec.Ranks
			}
		}
	}

	if len(countries) == 0 && len(rankings) == 0 {
		return nil, nil
	}
	fields := map[string]any{}
	if len(countries) > 0 {
		fields[merge.FieldCountryByAffiliation] = countries
	}
	if len(rankings) > 0 {
		fields[merge.FieldRankingsByAffiliation] = rankings
	}
	return fields, nil
}

// find resolves an affiliation name to a catalog record: exact variant hit
// first, acronym hit, then fuzzy fallback over all catalog variants.
func (e *RankingEnricher) find(aff string) *rankingRecord {
	targets := merge.NormalizeVariants(aff)
	for _, k := range targets {
		if rec, ok := e.byKey[k]; ok {
			return rec
		}
	}
	if acr := merge.BuildAcronym(aff); acr != "" {
		if rec, ok := e.byKey[acr]; ok {
			return rec
		}
		targets = append(targets, acr)
	}

	var best *rankingRecord
	bestScore := 0.0
	for _, rec := range e.records {
		for _, v := range e.variants[rec] {
			for _, t := range targets {
				if s := merge.Similarity(t, v); s > bestScore {
					bestScore = s
					best = rec
				}
			}
		}
	}
	if best != nil && bestScore >= e.threshold {
		return best
	}
	return nil
}

func normHeader(s string) string {
	s = strings.ReplaceAll(s, "\uFEFF", "")
	s = strings.ReplaceAll(s, "\u200B", "")
	s = strings.ReplaceAll(s, "\u00A0", " ")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func containsKey(keys []string, k string) bool {
	for _, x := range keys {
		if x == k {
			return true
		}
	}
	return false
}

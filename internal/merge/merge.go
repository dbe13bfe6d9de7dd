package merge

import (
	"sort"
	"strings"

	"github.com/zzxtbeta/arixv-fetcher/internal/model"
)

// Field names under which enrichment sources publish their output.
const (
	FieldAuthorAffiliations    = "author_affiliations"
	FieldORCIDByAuthor         = "orcid_by_author"
	FieldAffiliationMeta       = "affiliation_meta"
	FieldCountryByAffiliation  = "country_by_affiliation"
	FieldRankingsByAffiliation = "rankings_by_affiliation"
)

// Policy decides what happens when a source supplies a value the entity
// already carries.
type Policy string

const (
	// PolicyFillMissing keeps existing values and only fills gaps.
	PolicyFillMissing Policy = "fill-missing"
	// PolicyOverwrite lets later sources replace existing values.
	PolicyOverwrite Policy = "overwrite"
)

// Apply folds successful enrichment results into the entity under the given
// policy. Results are applied in source-name order so the outcome does not
// depend on arrival order; provenance records which source won each field.
func Apply(entity *model.PaperEntity, results []model.EnrichmentResult, policy Policy) {
	sorted := make([]model.EnrichmentResult, 0, len(results))
	for _, r := range results {
		if r.OK && len(r.Fields) > 0 {
			sorted = append(sorted, r)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Source < sorted[j].Source })

	if entity.Provenance == nil {
		entity.Provenance = map[string]model.Provenance{}
	}

	for _, r := range sorted {
		keys := make([]string, 0, len(r.Fields))
		for k := range r.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			applyField(entity, r.Source, k, r.Fields[k], policy)
		}
	}
}

func applyField(entity *model.PaperEntity, source, key string, value any, policy Policy) {
	switch key {
	case FieldAuthorAffiliations:
		v, ok := value.([]model.AuthorAffiliation)
		if !ok || len(v) == 0 {
			return
		}
		had := len(entity.AuthorAffiliations) > 0
		if had && policy == PolicyFillMissing {
			return
		}
		entity.AuthorAffiliations = v
		record(entity, source, key, had)

	case FieldORCIDByAuthor:
		v, ok := value.(map[string]string)
		if !ok || len(v) == 0 {
			return
		}
		if entity.ORCIDByAuthor == nil {
			entity.ORCIDByAuthor = map[string]string{}
		}
		changed, overwrote := false, false
		for author, id := range v {
			_, exists := entity.ORCIDByAuthor[author]
			if exists && policy == PolicyFillMissing {
				continue
			}
			entity.ORCIDByAuthor[author] = id
			changed = true
			overwrote = overwrote || exists
		}
		if changed {
			record(entity, source, key, overwrote)
		}

	case FieldAffiliationMeta:
		v, ok := value.(map[string]map[string]model.AffiliationMeta)
		if !ok || len(v) == 0 {
			return
		}
		if entity.AffiliationMeta == nil {
			entity.AffiliationMeta = map[string]map[string]model.AffiliationMeta{}
		}
		changed, overwrote := false, false
		for author, byAff := range v {
			if entity.AffiliationMeta[author] == nil {
				entity.AffiliationMeta[author] = map[string]model.AffiliationMeta{}
			}
			for affKey, meta := range byAff {
				_, exists := entity.AffiliationMeta[author][affKey]
				if exists && policy == PolicyFillMissing {
					continue
				}
				entity.AffiliationMeta[author][affKey] = meta
				changed = true
				overwrote = overwrote || exists
			}
		}
		if changed {
			record(entity, source, key, overwrote)
		}

	case FieldCountryByAffiliation:
		v, ok := value.(map[string]string)
		if !ok || len(v) == 0 {
			return
		}
		if entity.CountryByAffiliation == nil {
			entity.CountryByAffiliation = map[string]string{}
		}
		changed, overwrote := false, false
		for affKey, country := range v {
			_, exists := entity.CountryByAffiliation[affKey]
			if exists && policy == PolicyFillMissing {
				continue
			}
			entity.CountryByAffiliation[affKey] = country
			changed = true
			overwrote = overwrote || exists
		}
		if changed {
			record(entity, source, key, overwrote)
		}

	case FieldRankingsByAffiliation:
		v, ok := value.(map[string][]model.InstitutionRanking)
		if !ok || len(v) == 0 {
			return
		}
		if entity.RankingsByAffiliation == nil {
			entity.RankingsByAffiliation = map[string][]model.InstitutionRanking{}
		}
		changed, overwrote := false, false
		for affKey, ranks := range v {
			_, exists := entity.RankingsByAffiliation[affKey]
			if exists && policy == PolicyFillMissing {
				continue
			}
			entity.RankingsByAffiliation[affKey] = ranks
			changed = true
			overwrote = overwrote || exists
		}
		if changed {
			record(entity, source, key, overwrote)
		}
	}
}

func record(entity *model.PaperEntity, source, key string, overwrote bool) {
	mode := model.ProvenanceFill
	if overwrote {
		mode = model.ProvenanceOverwrite
	}
	entity.Provenance[key] = model.Provenance{Source: source, Mode: mode}
}

// SynthesizeRole combines a role title and department into one display role.
// A department without a title yields no role: a department name is not a
// position and must not be stored as one.
func SynthesizeRole(roleTitle, department string) string {
	roleTitle = strings.TrimSpace(roleTitle)
	department = strings.TrimSpace(department)
	switch {
	case roleTitle == "":
		return ""
	case department != "":
		return roleTitle + " (" + department + ")"
	default:
		return roleTitle
	}
}

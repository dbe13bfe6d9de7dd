package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzxtbeta/arixv-fetcher/internal/model"
)

func affResult(source string, affs []model.AuthorAffiliation) model.EnrichmentResult {
	return model.EnrichmentResult{
		Source: source,
		OK:     true,
		Fields: map[string]any{FieldAuthorAffiliations: affs},
	}
}

func TestApplyFillMissing(t *testing.T) {
	entity := &model.PaperEntity{}
	results := []model.EnrichmentResult{
		affResult("affiliation", []model.AuthorAffiliation{{Name: "Alice", Affiliations: []string{"MIT"}}}),
		{
			Source: "orcid",
			OK:     true,
			Fields: map[string]any{FieldORCIDByAuthor: map[string]string{"Alice": "0000-0002-1825-0097"}},
		},
	}

	Apply(entity, results, PolicyFillMissing)

	require.Len(t, entity.AuthorAffiliations, 1)
	assert.Equal(t, "0000-0002-1825-0097", entity.ORCIDByAuthor["Alice"])
	assert.Equal(t, "affiliation", entity.Provenance[FieldAuthorAffiliations].Source)
	assert.Equal(t, model.ProvenanceFill, entity.Provenance[FieldAuthorAffiliations].Mode)
}

func TestApplyFillMissingKeepsExisting(t *testing.T) {
	entity := &model.PaperEntity{
		ORCIDByAuthor: map[string]string{"Alice": "0000-0001-0000-0001"},
	}
	Apply(entity, []model.EnrichmentResult{{
		Source: "orcid",
		OK:     true,
		Fields: map[string]any{FieldORCIDByAuthor: map[string]string{
			"Alice": "0000-0009-9999-9999",
			"Bob":   "0000-0002-0000-0002",
		}},
	}}, PolicyFillMissing)

	assert.Equal(t, "0000-0001-0000-0001", entity.ORCIDByAuthor["Alice"])
	assert.Equal(t, "0000-0002-0000-0002", entity.ORCIDByAuthor["Bob"])
}

func TestApplyOverwrite(t *testing.T) {
	entity := &model.PaperEntity{
		ORCIDByAuthor: map[string]string{"Alice": "0000-0001-0000-0001"},
	}
	Apply(entity, []model.EnrichmentResult{{
		Source: "orcid",
		OK:     true,
		Fields: map[string]any{FieldORCIDByAuthor: map[string]string{"Alice": "0000-0009-9999-9999"}},
	}}, PolicyOverwrite)

	assert.Equal(t, "0000-0009-9999-9999", entity.ORCIDByAuthor["Alice"])
	assert.Equal(t, model.ProvenanceOverwrite, entity.Provenance[FieldORCIDByAuthor].Mode)
}

func TestApplySkipsFailedResults(t *testing.T) {
	entity := &model.PaperEntity{}
	Apply(entity, []model.EnrichmentResult{{
		Source: "affiliation",
		OK:     false,
		Error:  "llm returned malformed output",
		Fields: map[string]any{FieldAuthorAffiliations: []model.AuthorAffiliation{{Name: "X"}}},
	}}, PolicyFillMissing)

	assert.Empty(t, entity.AuthorAffiliations)
	assert.Empty(t, entity.Provenance)
}

func TestApplyDeterministicSourceOrder(t *testing.T) {
	// Two sources publish the same field; the lexicographically first source
	// wins under fill-missing regardless of slice order.
	a := affResult("alpha", []model.AuthorAffiliation{{Name: "A", Affiliations: []string{"MIT"}}})
	b := affResult("beta", []model.AuthorAffiliation{{Name: "A", Affiliations: []string{"ETH"}}})

	e1 := &model.PaperEntity{}
	Apply(e1, []model.EnrichmentResult{a, b}, PolicyFillMissing)
	e2 := &model.PaperEntity{}
	Apply(e2, []model.EnrichmentResult{b, a}, PolicyFillMissing)

	assert.Equal(t, e1.AuthorAffiliations, e2.AuthorAffiliations)
	assert.Equal(t, "alpha", e1.Provenance[FieldAuthorAffiliations].Source)
	assert.Equal(t, "alpha", e2.Provenance[FieldAuthorAffiliations].Source)
}

func TestApplyRankingsAndCountry(t *testing.T) {
	entity := &model.PaperEntity{}
	Apply(entity, []model.EnrichmentResult{{
		Source: "ranking",
		OK:     true,
		Fields: map[string]any{
			FieldRankingsByAffiliation: map[string][]model.InstitutionRanking{
				"mit": {{System: "QS 2025", Year: 2025, Rank: "1"}},
			},
			FieldCountryByAffiliation: map[string]string{"mit": "United States"},
		},
	}}, PolicyFillMissing)

	require.Len(t, entity.RankingsByAffiliation["mit"], 1)
	assert.Equal(t, "United States", entity.CountryByAffiliation["mit"])
}

func TestSynthesizeRole(t *testing.T) {
	assert.Equal(t, "Professor (EECS)", SynthesizeRole("Professor", "EECS"))
	assert.Equal(t, "Professor", SynthesizeRole(" Professor ", ""))
	assert.Equal(t, "", SynthesizeRole("", ""))
}

func TestSynthesizeRole_DepartmentAloneIsNotARole(t *testing.T) {
	assert.Equal(t, "", SynthesizeRole("", "EECS"))
	assert.Equal(t, "", SynthesizeRole("  ", "Computer Science"))
}

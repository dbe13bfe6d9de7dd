package model

import (
	"time"
)

// Paper is one candidate item fetched from the arXiv catalog. The ArxivID is
// the stable dedup key; everything else is raw metadata from the Atom feed.
// A Paper is immutable once fetched.
type Paper struct {
	ArxivID     string    `json:"arxiv_id"`
	Title       string    `json:"title"`
	Abstract    string    `json:"abstract"`
	Authors     []string  `json:"authors"`
	Categories  []string  `json:"categories"`
	PDFURL      string    `json:"pdf_url"`
	PublishedAt time.Time `json:"published_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EnrichmentResult is the outcome of one (paper, source) enrichment attempt.
type EnrichmentResult struct {
	ArxivID string         `json:"arxiv_id"`
	Source  string         `json:"source"`
	Fields  map[string]any `json:"fields,omitempty"`
	OK      bool           `json:"ok"`
	Error   string         `json:"error,omitempty"`
	Latency time.Duration  `json:"latency_ns"`
}

// ProvenanceMode records how an enriched value was applied to the entity.
type ProvenanceMode string

const (
	ProvenanceFill      ProvenanceMode = "fill"
	ProvenanceOverwrite ProvenanceMode = "overwrite"
)

// Provenance tags an enriched field with the source that supplied it and
// whether it filled a missing value or overwrote an existing one.
type Provenance struct {
	Source string         `json:"source"`
	Mode   ProvenanceMode `json:"mode"`
}

// AuthorAffiliation maps one author to the affiliations extracted for them
// on this paper, plus an optional contact email.
type AuthorAffiliation struct {
	Name         string   `json:"name"`
	Affiliations []string `json:"affiliations"`
	Email        string   `json:"email,omitempty"`
}

// AffiliationMeta carries identity-resolution metadata for one
// (author, affiliation) pair: a synthesized role plus tenure dates.
type AffiliationMeta struct {
	Role       string `json:"role,omitempty"`
	Department string `json:"department,omitempty"`
	StartDate  string `json:"start_date,omitempty"`
	EndDate    string `json:"end_date,omitempty"`
}

// InstitutionRanking is one ranking-catalog entry applied to an affiliation.
type InstitutionRanking struct {
	System string `json:"system"`
	Year   int    `json:"year"`
	Rank   string `json:"rank"`
}

// PaperEntity is the merged, storage-ready record: the candidate's base
// fields plus whatever enrichment survived the merge policy. Field-level
// provenance is keyed by the entity field name.
type PaperEntity struct {
	Paper

	AuthorAffiliations []AuthorAffiliation `json:"author_affiliations,omitempty"`

	// ORCIDByAuthor maps author name to a resolved ORCID id.
	ORCIDByAuthor map[string]string `json:"orcid_by_author,omitempty"`

	// AffiliationMeta is keyed by author name, then by the normalized
	// affiliation key (see merge.NormKey).
	AffiliationMeta map[string]map[string]AffiliationMeta `json:"affiliation_meta,omitempty"`

	// CountryByAffiliation maps normalized affiliation key to a country
	// supplied by the ranking catalog.
	CountryByAffiliation map[string]string `json:"country_by_affiliation,omitempty"`

	// RankingsByAffiliation maps normalized affiliation key to catalog
	// ranking rows.
	RankingsByAffiliation map[string][]InstitutionRanking `json:"rankings_by_affiliation,omitempty"`

	Provenance map[string]Provenance `json:"provenance,omitempty"`
}

// UpsertResult summarizes a persistence batch.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// Add accumulates another batch result.
func (r *UpsertResult) Add(other UpsertResult) {
	r.Inserted += other.Inserted
	r.Skipped += other.Skipped
}

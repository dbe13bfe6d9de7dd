package enrich

import (
	"context"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/zzxtbeta/arixv-fetcher/internal/merge"
	"github.com/zzxtbeta/arixv-fetcher/internal/model"
	"github.com/zzxtbeta/arixv-fetcher/pkg/orcid"
)

const maxOrcidCandidates = 5

// ORCIDEnricher resolves author identities against the ORCID registry. It
// runs after affiliation extraction because candidate profiles are accepted
// only when one of their recorded institutions matches a paper-extracted
// affiliation.
type ORCIDEnricher struct {
	client    orcid.Client
	threshold float64
}

// NewORCIDEnricher wires the ORCID client. threshold <= 0 selects the
// default institution-similarity threshold.
func NewORCIDEnricher(client orcid.Client, threshold float64) *ORCIDEnricher {
	if threshold <= 0 {
		threshold = merge.DefaultThreshold
	}
	return &ORCIDEnricher{client: client, threshold: threshold}
}

func (e *ORCIDEnricher) Name() string    { return "orcid" }
func (e *ORCIDEnricher) Mandatory() bool { return false }

func (e *ORCIDEnricher) Enrich(ctx context.Context, paper model.Paper, entity *model.PaperEntity) (map[string]any, error) {
	if entity == nil || len(entity.AuthorAffiliations) == 0 {
		return nil, nil
	}

	orcidByAuthor := map[string]string{}
	affMeta := map[string]map[string]model.AffiliationMeta{}

	for _, aa := range entity.AuthorAffiliations {
		if aa.Name == "" || len(aa.Affiliations) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		profile, matchedAff, best := e.lookupAuthor(ctx, aa.Name, aa.Affiliations)
		if profile == nil {
			continue
		}

		orcidByAuthor[aa.Name] = profile.OrcidID
		if best != nil {
			key := merge.NormKey(matchedAff)
			if affMeta[aa.Name] == nil {
				affMeta[aa.Name] = map[string]model.AffiliationMeta{}
			}
			affMeta[aa.Name][key] = model.AffiliationMeta{
				Role:       merge.SynthesizeRole(best.Role, best.Department),
				Department: best.Department,
				StartDate:  best.StartDate,
				EndDate:    best.EndDate,
			}
		}
	}

	if len(orcidByAuthor) == 0 {
		return nil, nil
	}
	fields := map[string]any{merge.FieldORCIDByAuthor: orcidByAuthor}
	if len(affMeta) > 0 {
		fields[merge.FieldAffiliationMeta] = affMeta
	}
	return fields, nil
}

// lookupAuthor fetches strict-name candidate profiles and accepts the first
// whose employments or educations match one of the paper affiliations.
func (e *ORCIDEnricher) lookupAuthor(ctx context.Context, name string, affs []string) (*orcid.Profile, string, *orcid.Affiliation) {
	ids, err := e.client.Search(ctx, name, "", maxOrcidCandidates*4)
	if err != nil {
		zap.L().Debug("orcid search failed",
			zap.String("author", name),
			zap.Error(err),
		)
		return nil, "", nil
	}

	candidates := 0
	for _, id := range ids {
		if candidates >= maxOrcidCandidates {
			break
		}
		profile, err := e.client.FetchProfile(ctx, id)
		if err != nil {
			continue
		}
		if !strictNameMatch(name, profile) {
			continue
		}
		candidates++

		for _, aff := range affs {
			if best := e.bestAffiliationMatch(aff, profile); best != nil {
				return profile, aff, best
			}
		}
	}
	return nil, "", nil
}

// bestAffiliationMatch scores employments first, then educations, against
// the target institution and returns the best record above threshold.
func (e *ORCIDEnricher) bestAffiliationMatch(target string, profile *orcid.Profile) *orcid.Affiliation {
	scoreOne := func(a orcid.Affiliation) float64 {
		best := merge.VariantScore(target, a.Organization)
		if a.Department != "" {
			if s := merge.VariantScore(target, a.Department); s > best {
				best = s
			}
		}
		return best
	}

	pick := func(records []orcid.Affiliation) *orcid.Affiliation {
		var bestRec *orcid.Affiliation
		bestScore := 0.0
		for i := range records {
			if s := scoreOne(records[i]); s > bestScore {
				bestScore = s
				bestRec = &records[i]
			}
		}
		if bestRec == nil {
			return nil
		}
		if merge.SameInstitution(target, bestRec.Organization, e.threshold) ||
			merge.SameInstitution(target, bestRec.Department, e.threshold) {
			return bestRec
		}
		return nil
	}

	if rec := pick(profile.Employments); rec != nil {
		return rec
	}
	return pick(profile.Educations)
}

// strictNameMatch accepts a profile only when its recorded name equals the
// author name at the token level, allowing given/family reversal.
func strictNameMatch(name string, profile *orcid.Profile) bool {
	target := nameTokens(name)
	if len(target) == 0 {
		return false
	}
	if eqTokens(nameTokens(profile.DisplayName), target) {
		return true
	}
	full := append(nameTokens(profile.GivenNames), nameTokens(profile.FamilyName)...)
	if eqTokens(full, target) {
		return true
	}
	for _, other := range profile.OtherNames {
		if eqTokens(nameTokens(other), target) {
			return true
		}
	}
	return false
}

func nameTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func eqTokens(a, b []string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	forward, reverse := true, true
	for i := range a {
		if a[i] != b[i] {
			forward = false
		}
		if a[i] != b[len(b)-1-i] {
			reverse = false
		}
	}
	return forward || reverse
}

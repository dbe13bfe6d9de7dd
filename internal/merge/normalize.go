// Package merge combines multi-source enrichment output into a single
// storage-ready entity, resolving conflicts by policy and matching
// institution names through normalized fuzzy comparison.
package merge

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	deptPrefixRe = regexp.MustCompile(`(?i)^(department|dept\.?|school|faculty|college|laboratory|laboratories|lab|centre|center|institute|institutes|academy|division|unit)\s+of\s+`)
	articleRe    = regexp.MustCompile(`(?i)^\s*(the|a|an)\s+`)
	parenRe      = regexp.MustCompile(`\([^)]*\)`)
	orgKeywordRe = regexp.MustCompile(`(?i)\b(university|institute|college|academy|polytechnic|universit[eé]|universidad|universita|group|corp|corporation|company|ltd|limited|inc|incorporated|llc|co\.|gmbh|sa|ag|bv|pty|pte|technologies|tech|lab|labs|laboratory|laboratories|research|systems|solutions|international|global)\b`)
)

// NormKey is the canonical map key for an affiliation string: NFKC folded,
// lowercased, all whitespace removed.
func NormKey(s string) string {
	folded := norm.NFKC.String(s)
	var b strings.Builder
	for _, r := range folded {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// NormString reduces a string to lowercase alphanumerics for comparison.
func NormString(s string) string {
	folded := norm.NFKC.String(strings.ToLower(s))
	var b strings.Builder
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StripParentheses removes parenthetical content.
func StripParentheses(s string) string {
	return strings.TrimSpace(parenRe.ReplaceAllString(s, ""))
}

// StripDeptPrefix removes leading "Department of", "School of" and similar.
func StripDeptPrefix(s string) string {
	return strings.TrimSpace(deptPrefixRe.ReplaceAllString(s, ""))
}

// StripArticles removes a leading English article.
func StripArticles(s string) string {
	return strings.TrimSpace(articleRe.ReplaceAllString(s, ""))
}

func firstSegmentBeforeComma(s string) string {
	head, _, _ := strings.Cut(s, ",")
	return strings.TrimSpace(head)
}

func lastSegmentAfterComma(s string) string {
	parts := splitSegments(s)
	if len(parts) == 0 {
		return strings.TrimSpace(s)
	}
	return parts[len(parts)-1]
}

func splitSegments(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// BuildAcronym derives an acronym from the capitalizable words of a name,
// skipping small connectors.
func BuildAcronym(s string) string {
	skip := map[string]bool{"of": true, "and": true, "for": true, "at": true, "in": true, "on": true}
	var b strings.Builder
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if skip[strings.ToLower(tok)] {
			continue
		}
		r := []rune(tok)[0]
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// NormalizeVariants generates the normalized comparison forms of an
// affiliation name. Institution names arrive in wildly different shapes
// ("Dept. of CS, MIT, Cambridge, MA"), so matching considers the raw name,
// parenthesis-stripped, department-stripped, head and tail comma segments,
// and article-stripped forms of all of those. Tail segments are kept only
// when they contain a recognizable organization keyword.
func NormalizeVariants(name string) []string {
	if strings.TrimSpace(name) == "" {
		return nil
	}

	tail1 := lastSegmentAfterComma(name)
	tail2 := name
	if segs := splitSegments(name); len(segs) >= 2 {
		tail2 = strings.Join(segs[len(segs)-2:], ", ")
	}

	candidates := []string{
		name,
		StripParentheses(name),
		firstSegmentBeforeComma(name),
		StripDeptPrefix(name),
		StripDeptPrefix(firstSegmentBeforeComma(name)),
		StripDeptPrefix(StripParentheses(name)),
		tail1,
		StripDeptPrefix(tail1),
		tail2,
	}
	tails := map[string]bool{tail1: true, StripDeptPrefix(tail1): true, tail2: true}

	n := len(candidates)
	for i := 0; i < n; i++ {
		candidates = append(candidates, StripArticles(candidates[i]))
	}

	var norms []string
	seen := map[string]bool{}
	for _, c := range candidates {
		if strings.TrimSpace(c) == "" {
			continue
		}
		if tails[c] && !orgKeywordRe.MatchString(c) {
			continue
		}
		key := NormString(c)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		norms = append(norms, key)
	}
	return norms
}

// Package orcid provides a read-only client for the ORCID public API.
package orcid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/zzxtbeta/arixv-fetcher/internal/resilience"
)

const defaultBaseURL = "https://pub.orcid.org/v3.0"

// Affiliation is one employment or education record on a profile.
type Affiliation struct {
	Organization string `json:"organization"`
	Department   string `json:"department,omitempty"`
	Role         string `json:"role,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
}

// Profile is a simplified ORCID record: identity names plus affiliations.
type Profile struct {
	OrcidID     string        `json:"orcid_id"`
	DisplayName string        `json:"display_name"`
	GivenNames  string        `json:"given_names,omitempty"`
	FamilyName  string        `json:"family_name,omitempty"`
	OtherNames  []string      `json:"other_names,omitempty"`
	Employments []Affiliation `json:"employments,omitempty"`
	Educations  []Affiliation `json:"educations,omitempty"`
}

// Client defines the ORCID public API operations.
type Client interface {
	// Search returns ORCID ids matching an author name, optionally
	// restricted by affiliation organization name.
	Search(ctx context.Context, name, institution string, rows int) ([]string, error)
	// FetchProfile resolves one ORCID id into a simplified profile.
	FetchProfile(ctx context.Context, orcidID string) (*Profile, error)
}

// Option configures the ORCID client.
type Option func(*httpClient)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an ORCID public API client. The public endpoints need no
// authentication for read access.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, name, institution string, rows int) ([]string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	if rows <= 0 {
		rows = 10
	}

	params := url.Values{}
	params.Set("q", buildNameQuery(name, institution))
	params.Set("rows", strconv.Itoa(rows))

	var parsed struct {
		Result []struct {
			OrcidIdentifier struct {
				Path string `json:"path"`
			} `json:"orcid-identifier"`
		} `json:"result"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/search?"+params.Encode(), &parsed); err != nil {
		return nil, eris.Wrapf(err, "orcid: search %q", name)
	}

	ids := make([]string, 0, len(parsed.Result))
	for _, r := range parsed.Result {
		if r.OrcidIdentifier.Path != "" {
			ids = append(ids, r.OrcidIdentifier.Path)
		}
	}
	return ids, nil
}

func (c *httpClient) FetchProfile(ctx context.Context, orcidID string) (*Profile, error) {
	p := &Profile{OrcidID: orcidID}

	var person personDoc
	if err := c.getJSON(ctx, fmt.Sprintf("%s/%s/person", c.baseURL, orcidID), &person); err != nil {
		return nil, eris.Wrapf(err, "orcid: fetch person %s", orcidID)
	}
	p.GivenNames = person.Name.GivenNames.Value
	p.FamilyName = person.Name.FamilyName.Value
	p.DisplayName = strings.TrimSpace(p.GivenNames + " " + p.FamilyName)
	for _, on := range person.OtherNames.OtherName {
		if on.Content != "" {
			p.OtherNames = append(p.OtherNames, on.Content)
		}
	}

	emp, err := c.fetchAffiliations(ctx, orcidID, "employments", "employment-summary")
	if err != nil {
		return nil, err
	}
	p.Employments = emp

	edu, err := c.fetchAffiliations(ctx, orcidID, "educations", "education-summary")
	if err != nil {
		return nil, err
	}
	p.Educations = edu

	return p, nil
}

func (c *httpClient) fetchAffiliations(ctx context.Context, orcidID, endpoint, summaryKey string) ([]Affiliation, error) {
	var doc affiliationsDoc
	if err := c.getJSON(ctx, fmt.Sprintf("%s/%s/%s", c.baseURL, orcidID, endpoint), &doc); err != nil {
		return nil, eris.Wrapf(err, "orcid: fetch %s %s", endpoint, orcidID)
	}

	var out []Affiliation
	for _, group := range doc.AffiliationGroup {
		for _, raw := range group.Summaries {
			var wrapper map[string]affiliationSummary
			if err := json.Unmarshal(raw, &wrapper); err != nil {
				continue
			}
			s, ok := wrapper[summaryKey]
			if !ok {
				continue
			}
			out = append(out, Affiliation{
				Organization: s.Organization.Name,
				Department:   s.DepartmentName,
				Role:         s.RoleTitle,
				StartDate:    formatPartialDate(s.StartDate),
				EndDate:      formatPartialDate(s.EndDate),
			})
		}
	}
	return out, nil
}

func (c *httpClient) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "arxiv-fetcher/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return resilience.NewTransientError(err, 0)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "read response"), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("unexpected status %d", resp.StatusCode)
		if resilience.ClassifyHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

// buildNameQuery composes the Solr query ORCID exposes: an exact
// given/family split when the name has multiple tokens, ORed with looser
// single-field matches, then ANDed with the affiliation filter.
func buildNameQuery(name, institution string) string {
	parts := strings.Fields(name)
	var nameQuery string
	if len(parts) >= 2 {
		given := strings.Join(parts[:len(parts)-1], " ")
		family := parts[len(parts)-1]
		nameQuery = fmt.Sprintf(
			`(given-names:%q AND family-name:%q) OR (given-names:%q OR family-name:%q OR other-names:%q)`,
			given, family, name, name, name)
	} else {
		nameQuery = fmt.Sprintf(`(given-names:%q OR family-name:%q OR other-names:%q)`, name, name, name)
	}
	if institution != "" {
		return fmt.Sprintf(`(%s) AND affiliation-org-name:%q`, nameQuery, institution)
	}
	return nameQuery
}

type personDoc struct {
	Name struct {
		GivenNames struct {
			Value string `json:"value"`
		} `json:"given-names"`
		FamilyName struct {
			Value string `json:"value"`
		} `json:"family-name"`
	} `json:"name"`
	OtherNames struct {
		OtherName []struct {
			Content string `json:"content"`
		} `json:"other-name"`
	} `json:"other-names"`
}

type affiliationsDoc struct {
	AffiliationGroup []struct {
		Summaries []json.RawMessage `json:"summaries"`
	} `json:"affiliation-group"`
}

type affiliationSummary struct {
	Organization struct {
		Name string `json:"name"`
	} `json:"organization"`
	DepartmentName string      `json:"department-name"`
	RoleTitle      string      `json:"role-title"`
	StartDate      partialDate `json:"start-date"`
	EndDate        partialDate `json:"end-date"`
}

type partialDate struct {
	Year  dateValue `json:"year"`
	Month dateValue `json:"month"`
	Day   dateValue `json:"day"`
}

type dateValue struct {
	Value string `json:"value"`
}

// formatPartialDate renders whatever precision ORCID recorded: year,
// year-month or a full date.
func formatPartialDate(d partialDate) string {
	y, _ := strconv.Atoi(d.Year.Value)
	if y == 0 {
		return ""
	}
	m, _ := strconv.Atoi(d.Month.Value)
	day, _ := strconv.Atoi(d.Day.Value)
	switch {
	case m > 0 && day > 0:
		return fmt.Sprintf("%04d-%02d-%02d", y, m, day)
	case m > 0:
		return fmt.Sprintf("%04d-%02d", y, m)
	default:
		return fmt.Sprintf("%04d", y)
	}
}

package arxiv

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/zzxtbeta/arixv-fetcher/internal/model"
)

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
		Type string `xml:"type,attr"`
	} `xml:"link"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
	PrimaryCategory struct {
		Term string `xml:"term,attr"`
	} `xml:"primary_category"`
}

// parseAtomFeed converts an arXiv Atom response into papers. Entries without
// an identifier are dropped.
func parseAtomFeed(data []byte) ([]model.Paper, error) {
	var feed atomFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, eris.Wrap(err, "unmarshal atom feed")
	}

	papers := make([]model.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		id := baseArxivID(entry.ID)
		if id == "" {
			continue
		}

		p := model.Paper{
			ArxivID:  id,
			Title:    collapseWhitespace(entry.Title),
			Abstract: collapseWhitespace(entry.Summary),
		}

		for _, a := range entry.Authors {
			if name := strings.TrimSpace(a.Name); name != "" {
				p.Authors = append(p.Authors, name)
			}
		}

		if term := entry.PrimaryCategory.Term; term != "" {
			p.Categories = append(p.Categories, term)
		}
		for _, c := range entry.Categories {
			if c.Term != "" && !containsString(p.Categories, c.Term) {
				p.Categories = append(p.Categories, c.Term)
			}
		}

		for _, l := range entry.Links {
			if l.Type == "application/pdf" {
				p.PDFURL = l.Href
			}
		}
		if p.PDFURL == "" {
			p.PDFURL = "https://arxiv.org/pdf/" + id
		}

		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(entry.Published)); err == nil {
			p.PublishedAt = t
		}
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(entry.Updated)); err == nil {
			p.UpdatedAt = t
		}

		papers = append(papers, p)
	}
	return papers, nil
}

// baseArxivID extracts the versionless identifier from an entry id URL like
// "http://arxiv.org/abs/2401.12345v2".
func baseArxivID(entryID string) string {
	s := strings.TrimSpace(entryID)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "v"); i > 0 {
		if isDigits(s[i+1:]) {
			s = s[:i]
		}
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsString(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}

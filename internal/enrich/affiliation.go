package enrich

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zzxtbeta/arixv-fetcher/internal/merge"
	"github.com/zzxtbeta/arixv-fetcher/internal/model"
	"github.com/zzxtbeta/arixv-fetcher/internal/resilience"
	"github.com/zzxtbeta/arixv-fetcher/pkg/anthropic"
)

const affiliationSystemPrompt = `You are a precise scholarly metadata linker. You will be given: (1) a fixed ordered list of authors from arXiv (authoritative), and (2) the first-page text of the paper PDF. Your job is to map each GIVEN author to their institutional affiliations and email addresses found in the text.
RULES:
- DO NOT add, remove, rename, or reorder authors.
- If you are unsure for an author, return an empty array for that author's affiliations or null for email.
- Extract institution-level names (university, lab, company). Extract email addresses if present.
- If superscripts/markers are present, use them to bind authors to affiliations and emails.
- Standardize affiliation names in readable English: use proper spacing between words and correct capitalization (e.g., 'Zhejiang University' not 'ZhejiangUniversity').
- For emails, extract the exact email address as written in the text.
- Do not invent or guess names or emails. Use only what is explicitly present in the text.
Return STRICT JSON only with this schema:
{ "authors": [ {"name": "...", "affiliations": ["..."], "email": "..." or null} ] }
The order must match exactly the order of the provided author list.`

var jsonFencePrefixRe = regexp.MustCompile(`(?i)^json\s*\n`)

// AffiliationEnricher maps a paper's authors to institutions by prompting an
// LLM with the first page of the PDF. It is the base mapping step: every
// downstream source keys off its output.
type AffiliationEnricher struct {
	llm       anthropic.Client
	text      TextSource
	model     string
	maxTokens int64
	retry     resilience.RetryConfig
}

// NewAffiliationEnricher wires the LLM client and text source.
func NewAffiliationEnricher(llm anthropic.Client, text TextSource, llmModel string, maxTokens int64) *AffiliationEnricher {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AffiliationEnricher{
		llm:       llm,
		text:      text,
		model:     llmModel,
		maxTokens: maxTokens,
		retry:     resilience.DefaultRetryConfig(),
	}
}

func (e *AffiliationEnricher) Name() string    { return "affiliation" }
func (e *AffiliationEnricher) Mandatory() bool { return true }

func (e *AffiliationEnricher) Enrich(ctx context.Context, paper model.Paper, _ *model.PaperEntity) (map[string]any, error) {
	if len(paper.Authors) == 0 {
		return nil, nil
	}

	firstPage, err := e.text.FirstPageText(ctx, paper.PDFURL)
	if err != nil {
		zap.L().Warn("first-page text unavailable",
			zap.String("arxiv_id", paper.ArxivID),
			zap.Error(err),
		)
		return nil, nil
	}
	if strings.TrimSpace(firstPage) == "" {
		return nil, nil
	}

	resp, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		r, err := e.llm.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     e.model,
			MaxTokens: e.maxTokens,
			System:    affiliationSystemPrompt,
			Messages: []anthropic.Message{
				{Role: "user", Content: buildAffiliationPrompt(paper.Authors, firstPage)},
			},
		})
		if err != nil {
			if anthropic.IsQuotaExhausted(err) {
				return nil, resilience.NewQuotaError("anthropic", err)
			}
			return nil, resilience.NewTransientError(err, 0)
		}
		return r, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: affiliation llm call for %s", paper.ArxivID)
	}
	resp.Usage.LogCost(e.model, "affiliation")

	mapped, err := parseAffiliationResponse(resp.Text(), paper.Authors)
	if err != nil {
		// Malformed model output is permanent: retrying the same prompt
		// does not change the contract violation.
		return nil, eris.Wrapf(err, "enrich: affiliation mapping for %s", paper.ArxivID)
	}

	return map[string]any{merge.FieldAuthorAffiliations: mapped}, nil
}

func buildAffiliationPrompt(authors []string, firstPage string) string {
	list, _ := json.Marshal(authors)
	var b strings.Builder
	b.WriteString("Author list (authoritative, ordered):\n")
	b.Write(list)
	b.WriteString("\n\nFirst-page text:\n")
	b.WriteString(firstPage)
	b.WriteString("\n\nNow output JSON only.")
	return b.String()
}

// parseAffiliationResponse validates the strict JSON contract and binds the
// model's mapping back onto the authoritative author list. Authors the model
// skipped get an empty affiliation set rather than dropping out.
func parseAffiliationResponse(raw string, authors []string) ([]model.AuthorAffiliation, error) {
	content := strings.TrimSpace(raw)
	content = strings.Trim(content, "`")
	content = jsonFencePrefixRe.ReplaceAllString(content, "")
	content = strings.TrimSpace(content)

	var parsed struct {
		Authors []struct {
			Name         string   `json:"name"`
			Affiliations []string `json:"affiliations"`
			Email        *string  `json:"email"`
		} `json:"authors"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, eris.Wrap(err, "malformed llm output")
	}

	byName := map[string]int{}
	for i, a := range parsed.Authors {
		byName[strings.TrimSpace(a.Name)] = i
	}

	out := make([]model.AuthorAffiliation, 0, len(authors))
	for _, name := range authors {
		aa := model.AuthorAffiliation{Name: name}
		if i, ok := byName[name]; ok {
			for _, aff := range parsed.Authors[i].Affiliations {
				if s := strings.TrimSpace(aff); s != "" {
					aa.Affiliations = append(aa.Affiliations, s)
				}
			}
			if parsed.Authors[i].Email != nil {
				aa.Email = strings.TrimSpace(*parsed.Authors[i].Email)
			}
		}
		out = append(out, aa)
	}
	return out, nil
}

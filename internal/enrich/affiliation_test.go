package enrich

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzxtbeta/arixv-fetcher/internal/merge"
	"github.com/zzxtbeta/arixv-fetcher/internal/model"
	"github.com/zzxtbeta/arixv-fetcher/internal/resilience"
	"github.com/zzxtbeta/arixv-fetcher/pkg/anthropic"
)

type stubLLM struct {
	response string
	err      error
	calls    int
}

func (s *stubLLM) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: s.response}},
	}, nil
}

type stubText struct {
	text string
	err  error
}

func (s *stubText) FirstPageText(context.Context, string) (string, error) {
	return s.text, s.err
}

func testPaper() model.Paper {
	return model.Paper{
		ArxivID: "2401.12345",
		Title:   "Attention Is Not All You Need",
		Authors: []string{"Alice Zhang", "Bob Müller"},
		PDFURL:  "https://arxiv.org/pdf/2401.12345",
	}
}

func fastEnricher(llm anthropic.Client, text TextSource) *AffiliationEnricher {
	e := NewAffiliationEnricher(llm, text, "test-model", 1024)
	e.retry = resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: 1, MaxBackoff: 1}
	return e
}

func TestAffiliationEnrich(t *testing.T) {
	llm := &stubLLM{response: `{"authors":[
		{"name":"Alice Zhang","affiliations":["MIT","  "],"email":"alice@mit.edu"},
		{"name":"Bob Müller","affiliations":[],"email":null}
	]}`}
	e := fastEnricher(llm, &stubText{text: "first page"})

	fields, err := e.Enrich(context.Background(), testPaper(), nil)
	require.NoError(t, err)

	affs, ok := fields[merge.FieldAuthorAffiliations].([]model.AuthorAffiliation)
	require.True(t, ok)
	require.Len(t, affs, 2)
	assert.Equal(t, []string{"MIT"}, affs[0].Affiliations)
	assert.Equal(t, "alice@mit.edu", affs[0].Email)
	assert.Equal(t, "Bob Müller", affs[1].Name)
	assert.Empty(t, affs[1].Affiliations)
}

func TestAffiliationEnrichFencedOutput(t *testing.T) {
	llm := &stubLLM{response: "```json\n{\"authors\":[{\"name\":\"Alice Zhang\",\"affiliations\":[\"MIT\"],\"email\":null}]}\n```"}
	e := fastEnricher(llm, &stubText{text: "page"})

	fields, err := e.Enrich(context.Background(), testPaper(), nil)
	require.NoError(t, err)
	affs := fields[merge.FieldAuthorAffiliations].([]model.AuthorAffiliation)
	assert.Equal(t, []string{"MIT"}, affs[0].Affiliations)
}

func TestAffiliationEnrichMalformedOutputIsPermanent(t *testing.T) {
	llm := &stubLLM{response: "sorry, I cannot help with that"}
	e := fastEnricher(llm, &stubText{text: "page"})

	_, err := e.Enrich(context.Background(), testPaper(), nil)
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
	assert.Equal(t, 1, llm.calls)
}

func TestAffiliationEnrichQuotaError(t *testing.T) {
	llm := &stubLLM{err: eris.New("Your credit balance is too low")}
	e := fastEnricher(llm, &stubText{text: "page"})

	_, err := e.Enrich(context.Background(), testPaper(), nil)
	require.Error(t, err)
	assert.True(t, resilience.IsQuota(err))
	assert.Equal(t, 1, llm.calls)
}

func TestAffiliationEnrichRetriesTransientLLMError(t *testing.T) {
	llm := &stubLLM{err: eris.New("overloaded_error")}
	e := fastEnricher(llm, &stubText{text: "page"})

	_, err := e.Enrich(context.Background(), testPaper(), nil)
	require.Error(t, err)
	assert.Equal(t, 2, llm.calls)
}

func TestAffiliationEnrichNoTextIsNotFatal(t *testing.T) {
	llm := &stubLLM{}
	e := fastEnricher(llm, &stubText{err: eris.New("download failed")})

	fields, err := e.Enrich(context.Background(), testPaper(), nil)
	require.NoError(t, err)
	assert.Nil(t, fields)
	assert.Equal(t, 0, llm.calls)
}

func TestAffiliationEnrichNoAuthors(t *testing.T) {
	e := fastEnricher(&stubLLM{}, &stubText{text: "page"})
	p := testPaper()
	p.Authors = nil
	fields, err := e.Enrich(context.Background(), p, nil)
	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestParseAffiliationResponseOrderPreserved(t *testing.T) {
	out, err := parseAffiliationResponse(
		`{"authors":[{"name":"Bob Müller","affiliations":["ETH Zurich"],"email":null},
		             {"name":"Alice Zhang","affiliations":["MIT"],"email":null}]}`,
		[]string{"Alice Zhang", "Bob Müller"},
	)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Alice Zhang", out[0].Name)
	assert.Equal(t, []string{"MIT"}, out[0].Affiliations)
	assert.Equal(t, []string{"ETH Zurich"}, out[1].Affiliations)
}

package enrich

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"os/exec"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/zzxtbeta/arixv-fetcher/internal/resilience"
)

// maxFirstPageChars bounds the prompt size fed to the LLM.
const maxFirstPageChars = 12000

// TextSource supplies the first-page text of a paper for affiliation
// extraction.
type TextSource interface {
	FirstPageText(ctx context.Context, pdfURL string) (string, error)
}

// PdfTextSource downloads the PDF and extracts the first page with the
// pdftotext CLI tool.
type PdfTextSource struct {
	binPath string
	http    *http.Client
	retry   resilience.RetryConfig
}

// PdfTextOption configures a PdfTextSource.
type PdfTextOption func(*PdfTextSource)

// WithPdfToTextPath overrides the pdftotext binary path.
func WithPdfToTextPath(path string) PdfTextOption {
	return func(s *PdfTextSource) {
		if path != "" {
			s.binPath = path
		}
	}
}

// WithTextHTTPClient sets a custom HTTP client for PDF downloads.
func WithTextHTTPClient(hc *http.Client) PdfTextOption {
	return func(s *PdfTextSource) {
		s.http = hc
	}
}

// NewPdfTextSource creates a TextSource backed by pdftotext.
func NewPdfTextSource(opts ...PdfTextOption) *PdfTextSource {
	s := &PdfTextSource{
		binPath: "pdftotext",
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PdfTextSource) FirstPageText(ctx context.Context, pdfURL string) (string, error) {
	if pdfURL == "" {
		return "", nil
	}

	data, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) ([]byte, error) {
		return s.download(ctx, pdfURL)
	})
	if err != nil {
		return "", eris.Wrapf(err, "enrich: download pdf %s", pdfURL)
	}

	tmp, err := os.CreateTemp("", "arxiv-*.pdf")
	if err != nil {
		return "", eris.Wrap(err, "enrich: create temp pdf")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", eris.Wrap(err, "enrich: write temp pdf")
	}
	if err := tmp.Close(); err != nil {
		return "", eris.Wrap(err, "enrich: close temp pdf")
	}

	// First page only.
	cmd := exec.CommandContext(ctx, s.binPath, "-f", "1", "-l", "1", "-layout", tmp.Name(), "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "enrich: pdftotext failed for %s: %s", pdfURL, stderr.String())
	}

	return trimToRuneBoundary(stdout.String(), maxFirstPageChars), nil
}

func (s *PdfTextSource) download(ctx context.Context, pdfURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", "arxiv-fetcher/1.0")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(err, 0)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("unexpected status %d", resp.StatusCode)
		if resilience.ClassifyHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// trimToRuneBoundary cuts s to at most n bytes without splitting a UTF-8
// rune, so the prompt fed to the LLM stays valid UTF-8.
func trimToRuneBoundary(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultTimeout   = 30 * time.Second
	maxBodyBytes     = 32 << 20
)

var (
	// ErrFetch covers network failures: DNS, refused connections, timeouts.
	ErrFetch = errors.New("failed to fetch URL")
	// ErrStatus is matched by every *StatusError.
	ErrStatus = errors.New("unexpected HTTP status")
	// ErrEmptyBody means the page had no visible text after cleaning.
	ErrEmptyBody = errors.New("page contains no text")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Fetcher downloads a web page and reduces it to visible text.
type Fetcher struct {
	HTTPClient *http.Client
	UserAgent  string
}

// NewFetcher returns a Fetcher with a browser user agent and a 30s timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		UserAgent:  DefaultUserAgent,
	}
}

// FetchAndCleanText returns the page's visible text, one trimmed line per text node.
func (f *Fetcher) FetchAndCleanText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "text/html")

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{URL: url, Code: resp.StatusCode}
	}

	text, err := CleanHTML(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if text == "" {
		return "", ErrEmptyBody
	}

	zap.L().Info("web page fetched", zap.String("url", url), zap.Int("text_bytes", len(text)))
	return text, nil
}

// CleanHTML drops script, style and noscript elements and returns the
// remaining text nodes as non-empty trimmed lines.
func CleanHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	var lines []string
	collectText(doc.Selection, &lines)
	return strings.Join(lines, "\n"), nil
}

func collectText(sel *goquery.Selection, lines *[]string) {
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) != "#text" {
			collectText(c, lines)
			return
		}
		for _, line := range strings.Split(c.Text(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				*lines = append(*lines, line)
			}
		}
	})
}

package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/markusmobius/go-trafilatura"

	"github.com/podscope/podscope/pkg/domain"
)

// PageFetcher scrapes a web page and extracts its main text content using
// trafilatura. Each poll yields at most one item; unchanged pages are
// suppressed downstream by fingerprint deduplication. The cursor is unused.
type PageFetcher struct {
	client    *http.Client
	userAgent string
}

// NewPageFetcher creates a page fetcher with the given timeout
func NewPageFetcher(timeout time.Duration, userAgent string) *PageFetcher {
	return &PageFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch retrieves the page and extracts its content as a single item
func (f *PageFetcher) Fetch(ctx context.Context, src *domain.Source) ([]domain.Item, string, error) {
	parsedURL, err := url.Parse(src.URL)
	if err != nil {
		return nil, "", fmt.Errorf("parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, "", fmt.Errorf("invalid URL: %s", src.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, http.NoBody)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	addBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch URL %s: %w", src.URL, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, src.URL); err != nil {
		return nil, "", err
	}

	opts := trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		Deduplicate:     true,
		OriginalURL:     parsedURL,
	}

	result, err := trafilatura.Extract(resp.Body, opts)
	if err != nil {
		return nil, "", fmt.Errorf("extract content from %s: %w", src.URL, err)
	}
	if result == nil || strings.TrimSpace(result.ContentText) == "" {
		return nil, "", fmt.Errorf("no text content extracted from %s", src.URL)
	}

	item := domain.Item{
		SourceID: src.ID,
		Title:    result.Metadata.Title,
		Body:     strings.TrimSpace(result.ContentText),
		URL:      src.URL,
		Author:   result.Metadata.Author,
	}
	if item.Title == "" {
		item.Title = parsedURL.Host
	}
	if !result.Metadata.Date.IsZero() {
		published := result.Metadata.Date
		item.Published = &published
	}

	return []domain.Item{item}, src.LastSeenCursor, nil
}

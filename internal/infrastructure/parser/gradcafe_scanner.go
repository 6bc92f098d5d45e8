package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/be-green/grab-cafe/internal/domain"
	"github.com/be-green/grab-cafe/internal/scanner"
)

const (
	// detailRowClass marks the styled rows that follow a fact row
	// (badge details and free-text comments).
	detailRowClass = "tw-border-none"

	defaultUserAgent = "grab-cafe/1.0"
)

// GradCafeScanner fetches one page of the survey listing and
// reconstructs candidate postings from its table rows.
type GradCafeScanner struct {
	client     *http.Client
	listingURL string
	userAgent  string
	logger     *slog.Logger
}

var _ scanner.Scanner = (*GradCafeScanner)(nil)

// NewGradCafeScanner wires an HTTP client against the listing URL.
// A nil client gets a bounded default.
func NewGradCafeScanner(client *http.Client, listingURL, userAgent string, logger *slog.Logger) *GradCafeScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &GradCafeScanner{
		client:     client,
		listingURL: listingURL,
		userAgent:  userAgent,
		logger:     logger,
	}
}

// Name identifies the strategy inside the registry.
func (g *GradCafeScanner) Name() string {
	return "gradcafe"
}

// FetchPage issues a single GET for the requested listing page and
// parses its rows. One attempt only; retry policy belongs to the
// scheduler's next cycle.
func (g *GradCafeScanner) FetchPage(ctx context.Context, page int) ([]domain.Candidate, error) {
	pageURL, err := buildPageURL(g.listingURL, page)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetchFailed, err)
	}

	doc, err := g.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %w", domain.ErrFetchFailed, page, err)
	}

	candidates := ParseRows(doc)
	g.debug("page parsed", "page", page, "candidates", len(candidates))
	return candidates, nil
}

func (g *GradCafeScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// buildPageURL encodes the page number as a query parameter; page 1 is
// the bare listing URL, matching the source's own links.
func buildPageURL(base string, page int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base, err)
	}

	if page > 1 {
		query := parsed.Query()
		query.Set("page", strconv.Itoa(page))
		parsed.RawQuery = query.Encode()
	}

	return parsed.String(), nil
}

func (g *GradCafeScanner) debug(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Debug(msg, args...)
	}
}

// Package arxiv fetches paper metadata and full text from arXiv. Metadata
// comes from the Atom query API, HTML full text from ar5iv, and PDFs from
// the standard export mirror.
package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/poiesic/ronbun/core"
)

const (
	defaultAPIBaseURL  = "https://export.arxiv.org/api/query"
	defaultHTMLBaseURL = "https://ar5iv.labs.arxiv.org/html"
	defaultPDFBaseURL  = "https://arxiv.org/pdf"

	// arXiv asks for no more than one request every three seconds; callers
	// doing bulk fetches should pace themselves on top of this timeout.
	defaultTimeout = 60 * time.Second
)

var (
	// ErrNotFound indicates arXiv has no paper with the given ID.
	ErrNotFound = errors.New("paper not found on arxiv")

	// ErrContentUnavailable indicates no fetchable full text exists for
	// the paper in the requested format.
	ErrContentUnavailable = errors.New("paper content unavailable")
)

// Client talks to the arXiv APIs.
type Client struct {
	httpClient  *http.Client
	apiBaseURL  string
	htmlBaseURL string
	pdfBaseURL  string
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithBaseURLs overrides the API endpoints, primarily for tests.
func WithBaseURLs(api, html, pdf string) ClientOption {
	return func(c *Client) {
		if api != "" {
			c.apiBaseURL = api
		}
		if html != "" {
			c.htmlBaseURL = html
		}
		if pdf != "" {
			c.pdfBaseURL = pdf
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates an arXiv client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		apiBaseURL:  defaultAPIBaseURL,
		htmlBaseURL: defaultHTMLBaseURL,
		pdfBaseURL:  defaultPDFBaseURL,
		logger:      slog.Default().With("component", "arxiv"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetMetadata fetches one paper's metadata by arXiv ID.
func (c *Client) GetMetadata(ctx context.Context, arxivID string) (*Metadata, error) {
	entries, err := c.queryFeed(ctx, url.Values{"id_list": {arxivID}})
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		meta := parseAtomEntry(entry)
		// The API returns an empty entry rather than an error for
		// unknown IDs.
		if meta.ArxivID != "" {
			return meta, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, arxivID)
}

// GetMetadataBatch fetches metadata for multiple papers in one API call.
// Unknown IDs are skipped, not errors.
func (c *Client) GetMetadataBatch(ctx context.Context, arxivIDs []string) ([]*Metadata, error) {
	if len(arxivIDs) == 0 {
		return nil, nil
	}
	entries, err := c.queryFeed(ctx, url.Values{
		"id_list":     {strings.Join(arxivIDs, ",")},
		"max_results": {fmt.Sprintf("%d", len(arxivIDs))},
	})
	if err != nil {
		return nil, err
	}

	results := make([]*Metadata, 0, len(entries))
	for _, entry := range entries {
		meta := parseAtomEntry(entry)
		if meta.ArxivID != "" {
			results = append(results, meta)
		}
	}
	return results, nil
}

// Search queries the arXiv API by free text over all fields.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]*Metadata, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	entries, err := c.queryFeed(ctx, url.Values{
		"search_query": {"all:" + query},
		"max_results":  {fmt.Sprintf("%d", maxResults)},
	})
	if err != nil {
		return nil, err
	}

	results := make([]*Metadata, 0, len(entries))
	for _, entry := range entries {
		meta := parseAtomEntry(entry)
		if meta.ArxivID != "" {
			results = append(results, meta)
		}
	}
	return results, nil
}

func (c *Client) queryFeed(ctx context.Context, params url.Values) ([]atomEntry, error) {
	reqURL := c.apiBaseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv api: http %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse atom feed: %w", err)
	}
	return feed.Entries, nil
}

// FetchHTML retrieves a paper's rendered HTML source from ar5iv.
// Returns ErrContentUnavailable when no HTML rendering exists.
func (c *Client) FetchHTML(ctx context.Context, arxivID string) ([]byte, error) {
	return c.fetchBinary(ctx, fmt.Sprintf("%s/%s", c.htmlBaseURL, arxivID))
}

// FetchPDF retrieves a paper's PDF.
// Returns ErrContentUnavailable when the PDF cannot be fetched.
func (c *Client) FetchPDF(ctx context.Context, arxivID string) ([]byte, error) {
	return c.fetchBinary(ctx, fmt.Sprintf("%s/%s", c.pdfBaseURL, arxivID))
}

func (c *Client) fetchBinary(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrContentUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http %s", ErrContentUnavailable, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// parseAtomEntry converts an atom entry to Metadata. The entry ID is a URL
// like http://arxiv.org/abs/2301.00001v1; the arXiv ID is the normalized
// tail.
func parseAtomEntry(entry atomEntry) *Metadata {
	var arxivID string
	if idx := strings.LastIndex(entry.ID, "/abs/"); idx >= 0 {
		raw := entry.ID[idx+5:]
		normalized, err := core.NormalizeArxivID(raw)
		if err == nil {
			arxivID = normalized
		}
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	categories := make([]string, 0, len(entry.Categories))
	for _, cat := range entry.Categories {
		if cat.Term != "" {
			categories = append(categories, cat.Term)
		}
	}

	meta := &Metadata{
		ArxivID:    arxivID,
		Title:      strings.Join(strings.Fields(entry.Title), " "),
		Abstract:   strings.TrimSpace(entry.Summary),
		Authors:    authors,
		Categories: categories,
		DOI:        entry.DOI,
	}
	meta.PublishedAt, _ = time.Parse(time.RFC3339, entry.Published)
	meta.UpdatedAt, _ = time.Parse(time.RFC3339, entry.Updated)
	return meta
}

package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultOAIBaseURL = "https://export.arxiv.org/oai2"

// OAIClient is an OAI-PMH client for bulk discovery of new papers.
type OAIClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewOAIClient creates an OAI-PMH client.
func NewOAIClient() *OAIClient {
	return &OAIClient{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultOAIBaseURL,
	}
}

// NewOAIClientWithBaseURL creates an OAI-PMH client against a custom
// endpoint, primarily for tests.
func NewOAIClientWithBaseURL(baseURL string) *OAIClient {
	c := NewOAIClient()
	c.baseURL = baseURL
	return c
}

// OAIPage is one page of an OAI-PMH ListRecords response. A non-empty
// ResumptionToken means more pages follow.
type OAIPage struct {
	Records         []*Metadata
	ResumptionToken string
}

// ListRecords fetches one page of records. With an empty resumptionToken the
// listing starts from the given set and date window; otherwise it continues
// from the token.
func (c *OAIClient) ListRecords(ctx context.Context, set string, from, until time.Time, resumptionToken string) (*OAIPage, error) {
	params := url.Values{}
	params.Set("verb", "ListRecords")

	if resumptionToken != "" {
		params.Set("resumptionToken", resumptionToken)
	} else {
		params.Set("metadataPrefix", "arXiv")
		if set != "" {
			params.Set("set", set)
		}
		if !from.IsZero() {
			params.Set("from", from.Format("2006-01-02"))
		}
		if !until.IsZero() {
			params.Set("until", until.Format("2006-01-02"))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, fmt.Errorf("oai: rate limited (503)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oai: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var oaiResp oaiPMHResponse
	if err := xml.Unmarshal(body, &oaiResp); err != nil {
		return nil, fmt.Errorf("parse oai response: %w", err)
	}
	if oaiResp.Error.Code != "" {
		return nil, fmt.Errorf("oai error %s: %s", oaiResp.Error.Code, oaiResp.Error.Value)
	}

	page := &OAIPage{
		ResumptionToken: strings.TrimSpace(oaiResp.ListRecords.ResumptionToken.Value),
	}
	for _, rec := range oaiResp.ListRecords.Records {
		meta := &Metadata{
			ArxivID:    rec.Metadata.ArXiv.ID,
			Title:      strings.Join(strings.Fields(rec.Metadata.ArXiv.Title), " "),
			Abstract:   strings.TrimSpace(rec.Metadata.ArXiv.Abstract),
			Categories: strings.Fields(rec.Metadata.ArXiv.Categories),
			DOI:        rec.Metadata.ArXiv.DOI,
		}
		for _, a := range rec.Metadata.ArXiv.Authors {
			name := strings.TrimSpace(a.Forenames + " " + a.Keyname)
			if name != "" {
				meta.Authors = append(meta.Authors, name)
			}
		}
		if rec.Metadata.ArXiv.Created != "" {
			meta.PublishedAt, _ = time.Parse("2006-01-02", rec.Metadata.ArXiv.Created)
		}
		if rec.Metadata.ArXiv.Updated != "" {
			meta.UpdatedAt, _ = time.Parse("2006-01-02", rec.Metadata.ArXiv.Updated)
		} else {
			meta.UpdatedAt = meta.PublishedAt
		}
		page.Records = append(page.Records, meta)
	}
	return page, nil
}

// XML structures for OAI-PMH parsing

type oaiPMHResponse struct {
	XMLName     xml.Name       `xml:"OAI-PMH"`
	Error       oaiError       `xml:"error"`
	ListRecords oaiListRecords `xml:"ListRecords"`
}

type oaiError struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

type oaiListRecords struct {
	Records         []oaiRecord        `xml:"record"`
	ResumptionToken oaiResumptionToken `xml:"resumptionToken"`
}

type oaiResumptionToken struct {
	Value string `xml:",chardata"`
}

type oaiRecord struct {
	Metadata oaiMetadata `xml:"metadata"`
}

type oaiMetadata struct {
	ArXiv oaiArXiv `xml:"arXiv"`
}

type oaiArXiv struct {
	ID         string      `xml:"id"`
	Created    string      `xml:"created"`
	Updated    string      `xml:"updated"`
	Title      string      `xml:"title"`
	Authors    []oaiAuthor `xml:"authors>author"`
	Categories string      `xml:"categories"`
	DOI        string      `xml:"doi"`
	Abstract   string      `xml:"abstract"`
}

type oaiAuthor struct {
	Keyname   string `xml:"keyname"`
	Forenames string `xml:"forenames"`
}

package arxiv

import (
	"encoding/xml"
	"time"
)

// Metadata is a paper's bibliographic record from the arXiv API.
type Metadata struct {
	ArxivID     string
	Title       string
	Abstract    string
	Authors     []string
	Categories  []string
	DOI         string
	PublishedAt time.Time
	UpdatedAt   time.Time
}

// ParsedSection is one section of a paper's body text.
type ParsedSection struct {
	Heading  string
	Level    int
	Content  string
	Position int
}

// Reference is one entry of a paper's reference list. At least one of
// ArxivID, DOI or Title is set.
type Reference struct {
	ArxivID string
	DOI     string
	Title   string
}

// Atom feed structures for the arXiv API

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Authors    []atomAuthor   `xml:"author"`
	Categories []atomCategory `xml:"category"`
	Published  string         `xml:"published"`
	Updated    string         `xml:"updated"`
	DOI        string         `xml:"doi"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

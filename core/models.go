package core

import (
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// NewID generates a random identifier for a stored row.
func NewID() string {
	return uuid.NewString()
}

// IDFromContent generates a deterministic ID from text content using BLAKE2b
// hashing. Identical content always produces the same ID, which keeps
// delete-then-reinsert stages idempotent for content-keyed rows.
func IDFromContent(text string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(text))
	sum := h.Sum(nil)
	var u uuid.UUID
	copy(u[:], sum)
	return u.String()
}

// Paper is an academic paper tracked through the ingestion pipeline.
// It is identified by an internal ID and an immutable arXiv ID; the arXiv ID
// is unique across papers. Metadata fields are empty until the metadata
// stage completes.
type Paper struct {
	ID          string
	ArxivID     string
	Title       string
	Authors     []string
	Categories  []string
	Abstract    string
	PublishedAt time.Time
	UpdatedAt   time.Time
	Status      Status
	Error       string // last stage failure, empty unless Status is StatusFailed
	CreatedAt   time.Time
	IngestedAt  time.Time // set only when the paper reaches StatusReady
}

// Section is one titled slice of a paper's full text, in document order.
// Position values for a paper are contiguous starting at 0.
type Section struct {
	ID        string
	PaperID   string
	Heading   string
	Level     int // 1-based heading nesting depth
	Content   string
	Position  int
	CreatedAt time.Time
}

// ExtractionType classifies a structured item pulled out of a section.
type ExtractionType int

const (
	ExtractionMethod ExtractionType = iota + 1
	ExtractionDataset
	ExtractionBaseline
	ExtractionMetric
	ExtractionResult
	ExtractionContribution
	ExtractionLimitation
)

var extractionTypeNames = map[ExtractionType]string{
	ExtractionMethod:       "method",
	ExtractionDataset:      "dataset",
	ExtractionBaseline:     "baseline",
	ExtractionMetric:       "metric",
	ExtractionResult:       "result",
	ExtractionContribution: "contribution",
	ExtractionLimitation:   "limitation",
}

func (t ExtractionType) String() string {
	if name, ok := extractionTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseExtractionType maps a type name back to its ExtractionType.
func ParseExtractionType(name string) (ExtractionType, bool) {
	for t, n := range extractionTypeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// Extraction is a typed knowledge item extracted from a paper by the LLM.
type Extraction struct {
	ID        string
	PaperID   string
	Type      ExtractionType
	Name      string
	Detail    string
	SectionID string // section the item was derived from, empty if unknown
	CreatedAt time.Time
}

// Citation is a directed reference edge from a source paper to a target.
// The target may not exist locally yet; TargetPaperID is empty in that case
// and TargetArxivID/TargetTitle carry whatever the reference list yielded.
type Citation struct {
	ID            string
	SourcePaperID string
	TargetPaperID string
	TargetArxivID string
	TargetDOI     string
	TargetTitle   string
	CreatedAt     time.Time
}

// EntityType classifies an entity link.
type EntityType int

const (
	EntityMethod EntityType = iota + 1
	EntityDataset
	EntityAuthor
)

var entityTypeNames = map[EntityType]string{
	EntityMethod:  "method",
	EntityDataset: "dataset",
	EntityAuthor:  "author",
}

func (t EntityType) String() string {
	if name, ok := entityTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseEntityType maps a type name back to its EntityType.
func ParseEntityType(name string) (EntityType, bool) {
	for t, n := range entityTypeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// EntityLink associates a paper with a named method, dataset or author.
// Two papers sharing a link with the same (type, name) are related through
// that entity. Author links are written by the metadata stage and survive
// content/extraction retries; method and dataset links belong to the
// extraction stage and are replaced on its retry.
type EntityLink struct {
	ID         string
	PaperID    string
	EntityType EntityType
	EntityName string
	CreatedAt  time.Time
}

// LinkID returns the deterministic row ID for an entity link, so a replayed
// stage writes the same row instead of accumulating duplicates.
func LinkID(paperID string, entityType EntityType, entityName string) string {
	return IDFromContent(paperID + "|" + entityType.String() + "|" + entityName)
}

// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"context"

	"github.com/poiesic/ronbun/core"
)

// ListPapersQuery selects and pages a paper listing. Papers are ordered by
// CreatedAt descending, ID descending as tiebreak. Cursor is the ID of the
// last paper from the previous page; empty starts from the newest paper.
type ListPapersQuery struct {
	Status   core.Status // zero value matches any status
	Category string      // exact category match, empty matches any
	Cursor   string
	Limit    int
}

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// PaperRepository provides operations for managing papers.
type PaperRepository interface {
	Repository
	// AddPaper adds a paper to storage. Generates an ID for papers without
	// one and sets CreatedAt if not already set. Returns ErrDuplicateKey
	// if another paper already claims the same arXiv ID.
	AddPaper(ctx context.Context, paper *core.Paper) (*core.Paper, error)

	// UpdatePaper overwrites an existing paper. Returns ErrNotFound if the
	// paper doesn't exist. Status changes must satisfy
	// core.Status.CanTransition; illegal transitions return
	// core.ErrIllegalTransition.
	UpdatePaper(ctx context.Context, paper *core.Paper) (*core.Paper, error)

	// SetPaperStatus advances a paper's status. Setting the current status
	// again is a no-op. For StatusFailed, errMsg records the failure
	// reason; for StatusReady, IngestedAt is stamped.
	SetPaperStatus(ctx context.Context, id string, next core.Status, errMsg string) (*core.Paper, error)

	// GetPaper retrieves a single paper by ID.
	// Returns ErrNotFound if the paper doesn't exist.
	GetPaper(ctx context.Context, id string) (*core.Paper, error)

	// GetPapers retrieves multiple papers by their IDs.
	// Returns only the papers that exist (no error for missing papers).
	GetPapers(ctx context.Context, ids ...string) ([]*core.Paper, error)

	// GetPaperByArxivID retrieves a paper by its arXiv identifier.
	// Returns ErrNotFound if no paper has that identifier.
	GetPaperByArxivID(ctx context.Context, arxivID string) (*core.Paper, error)

	// ListPapers returns one page of papers matching the query plus a flag
	// indicating whether more pages follow.
	ListPapers(ctx context.Context, query ListPapersQuery) ([]*core.Paper, bool, error)

	// CountPapersByStatus returns the number of papers in each status.
	CountPapersByStatus(ctx context.Context) (map[core.Status]int, error)

	// DeletePaper removes a paper and everything derived from it: sections,
	// extractions, outgoing citations, entity links and index entries.
	// Returns ErrNotFound if the paper doesn't exist.
	DeletePaper(ctx context.Context, id string) error

	// SearchPapers performs keyword search over paper titles and abstracts.
	// Only ready papers are returned, ordered by relevance, up to limit;
	// papers still in the pipeline do not consume result slots.
	SearchPapers(ctx context.Context, query string, limit int) ([]*core.Paper, error)
}

// SectionRepository provides operations for managing paper sections.
type SectionRepository interface {
	Repository
	// ReplaceSections atomically deletes a paper's existing sections and
	// inserts the given ones, so a replayed parse stage never accumulates
	// duplicates. Generates IDs and sets CreatedAt where missing.
	ReplaceSections(ctx context.Context, paperID string, sections []*core.Section) ([]*core.Section, error)

	// GetSection retrieves a single section by ID.
	// Returns ErrNotFound if the section doesn't exist.
	GetSection(ctx context.Context, id string) (*core.Section, error)

	// GetSectionsByPaper retrieves a paper's sections ordered by position.
	GetSectionsByPaper(ctx context.Context, paperID string) ([]*core.Section, error)

	// SearchSections performs keyword search over section headings and
	// content. Only sections of ready papers are returned, ordered by
	// relevance, up to limit.
	SearchSections(ctx context.Context, query string, limit int) ([]*core.Section, error)
}

// ExtractionRepository provides operations for managing extracted knowledge.
type ExtractionRepository interface {
	Repository
	// ReplaceExtractions atomically deletes a paper's existing extractions
	// and inserts the given ones. Generates IDs and sets CreatedAt where
	// missing.
	ReplaceExtractions(ctx context.Context, paperID string, extractions []*core.Extraction) ([]*core.Extraction, error)

	// GetExtractionsByPaper retrieves all extractions for a paper.
	GetExtractionsByPaper(ctx context.Context, paperID string) ([]*core.Extraction, error)

	// SearchExtractions performs keyword search over extraction names and
	// details, optionally restricted to one extraction type (zero value
	// matches any). Results are ordered by relevance, up to limit.
	SearchExtractions(ctx context.Context, query string, extractionType core.ExtractionType, limit int) ([]*core.Extraction, error)
}

// CitationRepository provides operations for managing citation edges.
type CitationRepository interface {
	Repository
	// ReplaceCitations atomically deletes a paper's outgoing citations and
	// inserts the given ones. Incoming citations from other papers are
	// untouched. Generates IDs and sets CreatedAt where missing.
	ReplaceCitations(ctx context.Context, sourcePaperID string, citations []*core.Citation) ([]*core.Citation, error)

	// GetCitationsBySource retrieves a paper's outgoing citations.
	GetCitationsBySource(ctx context.Context, sourcePaperID string) ([]*core.Citation, error)

	// GetCitationsByTarget retrieves citations pointing at a local paper.
	GetCitationsByTarget(ctx context.Context, targetPaperID string) ([]*core.Citation, error)

	// ResolveCitations links dangling citations that reference the given
	// arXiv ID to the paper that now carries it. Returns the number of
	// citations resolved.
	ResolveCitations(ctx context.Context, arxivID, paperID string) (int, error)
}

// EntityLinkRepository provides operations for managing entity links.
type EntityLinkRepository interface {
	Repository
	// PutEntityLinks upserts entity links. Link IDs are deterministic per
	// (paper, type, name), so replayed stages overwrite rather than
	// duplicate.
	PutEntityLinks(ctx context.Context, links ...*core.EntityLink) ([]*core.EntityLink, error)

	// DeleteEntityLinksByType removes a paper's links of the given types,
	// leaving other types in place.
	DeleteEntityLinksByType(ctx context.Context, paperID string, types ...core.EntityType) error

	// GetEntityLinksByPaper retrieves all entity links for a paper.
	GetEntityLinksByPaper(ctx context.Context, paperID string) ([]*core.EntityLink, error)

	// GetPapersByEntity returns IDs of papers linked to the named entity.
	GetPapersByEntity(ctx context.Context, entityType core.EntityType, entityName string) ([]string, error)
}

// VectorIndex provides storage and similarity search for section embeddings.
type VectorIndex interface {
	// UpsertSectionVectors stores section embeddings, overwriting any
	// existing vector for the same section.
	UpsertSectionVectors(ctx context.Context, vectors ...*core.SectionVector) error

	// DeleteSectionVectorsByPaper removes all of a paper's section vectors.
	DeleteSectionVectorsByPaper(ctx context.Context, paperID string) error

	// FindSimilarSections finds sections similar to the given vector.
	// Returns matches with similarity >= minSimilarity, up to limit,
	// ordered by similarity score (highest first). Vectors are assumed
	// normalized, so the dot product is the cosine similarity.
	FindSimilarSections(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SectionMatch, error)
}

// Store combines all repositories over a single backend, so multi-record
// operations can share one transaction.
type Store interface {
	PaperRepository
	SectionRepository
	ExtractionRepository
	CitationRepository
	EntityLinkRepository
	VectorIndex
}

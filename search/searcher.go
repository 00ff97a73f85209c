package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/ronbun/ai"
	"github.com/poiesic/ronbun/core"
	"github.com/poiesic/ronbun/storage"
)

// rrfK is the Reciprocal Rank Fusion constant: score = sum of 1/(k+rank).
const rrfK = 60

const defaultLimit = 10

// Searcher provides hybrid keyword and semantic search over ready papers.
type Searcher struct {
	store    storage.Store
	embedder ai.Embedder
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default() scoped to the search component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store storage.Store, provider ai.Provider, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		store:    store,
		embedder: provider.Embedder(),
		logger:   slog.Default().With("component", "search"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// PaperQuery selects and filters a hybrid paper search.
type PaperQuery struct {
	Query    string
	Category string // substring match against the paper's categories
	YearFrom int    // inclusive lower bound on published year, 0 unbounded
	YearTo   int    // inclusive upper bound on published year, 0 unbounded
	Limit    int
}

// PaperResult is one hybrid search hit with its fused score.
type PaperResult struct {
	Paper *core.Paper
	Score float64
}

// SearchPapers runs the hybrid search: keyword hits over titles/abstracts,
// keyword hits over section bodies, and semantic neighbors of the query
// embedding, merged by Reciprocal Rank Fusion. Only ready papers are
// returned. A semantic failure degrades to keyword-only results.
func (s *Searcher) SearchPapers(ctx context.Context, query PaperQuery) ([]*PaperResult, error) {
	if strings.TrimSpace(query.Query) == "" {
		return nil, ErrEmptyQuery
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	fetch := 2 * limit

	keywordRanks, order, err := s.keywordRanks(ctx, query.Query, fetch)
	if err != nil {
		return nil, err
	}

	vectorRanks, vectorOrder := s.semanticRanks(ctx, query.Query, fetch)

	// Candidate order is deterministic: keyword hits by rank, then
	// vector-only hits by rank, so equal fused scores tie-break stably.
	for _, paperID := range vectorOrder {
		if _, ok := keywordRanks[paperID]; !ok {
			order = append(order, paperID)
		}
	}
	if len(order) == 0 {
		return []*PaperResult{}, nil
	}

	scores := make(map[string]float64, len(order))
	for paperID, rank := range keywordRanks {
		scores[paperID] += 1.0 / float64(rrfK+rank)
	}
	for paperID, rank := range vectorRanks {
		scores[paperID] += 1.0 / float64(rrfK+rank)
	}

	papers, err := s.store.GetPapers(ctx, order...)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*core.Paper, len(papers))
	for _, paper := range papers {
		byID[paper.ID] = paper
	}

	results := make([]*PaperResult, 0, len(order))
	for _, paperID := range order {
		paper, ok := byID[paperID]
		if !ok || paper.Status != core.StatusReady {
			continue
		}
		if !matchesFilters(paper, query) {
			continue
		}
		results = append(results, &PaperResult{Paper: paper, Score: scores[paperID]})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// keywordRanks merges paper-level and section-level keyword hits into one
// 0-based rank map. Section-only papers are offset by the paper-level hit
// count, so a title/abstract match always outranks a body-only match.
func (s *Searcher) keywordRanks(ctx context.Context, query string, fetch int) (map[string]int, []string, error) {
	papers, err := s.store.SearchPapers(ctx, query, fetch)
	if err != nil {
		return nil, nil, err
	}

	ranks := make(map[string]int, len(papers))
	order := make([]string, 0, len(papers))
	for rank, paper := range papers {
		ranks[paper.ID] = rank
		order = append(order, paper.ID)
	}

	sections, err := s.store.SearchSections(ctx, query, fetch)
	if err != nil {
		return nil, nil, err
	}
	for i, section := range sections {
		if _, ok := ranks[section.PaperID]; ok {
			continue
		}
		ranks[section.PaperID] = len(papers) + i
		order = append(order, section.PaperID)
	}
	return ranks, order, nil
}

// semanticRanks maps the query embedding's nearest sections to their owning
// papers, keeping the best rank per paper. Failures are logged and yield an
// empty map so the caller proceeds keyword-only.
func (s *Searcher) semanticRanks(ctx context.Context, query string, fetch int) (map[string]int, []string) {
	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed, keyword-only search", "err", err)
		return nil, nil
	}
	if len(vector) == 0 {
		return nil, nil
	}

	matches, err := s.store.FindSimilarSections(ctx, vector, 0, fetch)
	if err != nil {
		s.logger.Warn("semantic search failed, keyword-only search", "err", err)
		return nil, nil
	}

	ranks := make(map[string]int, len(matches))
	order := make([]string, 0, len(matches))
	for rank, match := range matches {
		paperID := match.PaperID
		if paperID == "" {
			paperID = match.SectionID
		}
		if _, ok := ranks[paperID]; ok {
			continue
		}
		ranks[paperID] = rank
		order = append(order, paperID)
	}
	return ranks, order
}

func matchesFilters(paper *core.Paper, query PaperQuery) bool {
	if query.Category != "" {
		joined := strings.ToLower(strings.Join(paper.Categories, " "))
		if !strings.Contains(joined, strings.ToLower(query.Category)) {
			return false
		}
	}
	year := paper.PublishedAt.Year()
	if query.YearFrom != 0 && year < query.YearFrom {
		return false
	}
	if query.YearTo != 0 && year > query.YearTo {
		return false
	}
	return true
}

// ExtractionResult is one extraction keyword hit joined to its paper.
type ExtractionResult struct {
	Extraction *core.Extraction
	PaperTitle string
	ArxivID    string
}

// SearchExtractions performs keyword search over extraction names and
// details, optionally restricted to one type, in relevance order.
func (s *Searcher) SearchExtractions(ctx context.Context, query string, extractionType core.ExtractionType, limit int) ([]*ExtractionResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	extractions, err := s.store.SearchExtractions(ctx, query, extractionType, limit)
	if err != nil {
		return nil, err
	}
	if len(extractions) == 0 {
		return []*ExtractionResult{}, nil
	}

	paperIDs := make([]string, 0, len(extractions))
	seen := make(map[string]bool)
	for _, extraction := range extractions {
		if !seen[extraction.PaperID] {
			seen[extraction.PaperID] = true
			paperIDs = append(paperIDs, extraction.PaperID)
		}
	}
	papers, err := s.store.GetPapers(ctx, paperIDs...)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*core.Paper, len(papers))
	for _, paper := range papers {
		byID[paper.ID] = paper
	}

	results := make([]*ExtractionResult, 0, len(extractions))
	for _, extraction := range extractions {
		result := &ExtractionResult{Extraction: extraction}
		if paper, ok := byID[extraction.PaperID]; ok {
			result.PaperTitle = paper.Title
			result.ArxivID = paper.ArxivID
		}
		results = append(results, result)
	}
	return results, nil
}

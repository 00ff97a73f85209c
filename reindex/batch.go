package reindex

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/ronbun/ai"
	"github.com/poiesic/ronbun/core"
	"github.com/poiesic/ronbun/storage"
)

const (
	// maxSectionsPerPaper bounds embedding cost per paper
	maxSectionsPerPaper = 100

	// maxSectionChars is the per-section embedding text ceiling
	maxSectionChars = 8000
)

// BatchProcessor generates fresh embeddings for pages of papers.
type BatchProcessor struct {
	store          storage.Store
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of retry attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(store storage.Store, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		store:          store,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process reembeds every section of the given papers and replaces their
// stored vectors. Vectors are normalized after embedding so the dot product
// over the index remains the cosine similarity.
func (bp *BatchProcessor) Process(ctx context.Context, papers []*core.Paper) error {
	for _, paper := range papers {
		if err := bp.processPaper(ctx, paper); err != nil {
			return fmt.Errorf("paper %s: %w", paper.ID, err)
		}
	}
	return nil
}

func (bp *BatchProcessor) processPaper(ctx context.Context, paper *core.Paper) error {
	sections, err := bp.store.GetSectionsByPaper(ctx, paper.ID)
	if err != nil {
		return fmt.Errorf("failed to load sections: %w", err)
	}
	if len(sections) > maxSectionsPerPaper {
		sections = sections[:maxSectionsPerPaper]
	}
	if len(sections) == 0 {
		return nil
	}

	texts := make([]string, len(sections))
	for i, section := range sections {
		texts[i] = truncate(section.Content, maxSectionChars)
	}

	var embeddings [][]float32
	err = RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)

	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(sections) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(sections), len(embeddings))
	}

	vectors := make([]*core.SectionVector, 0, len(sections))
	for i, section := range sections {
		if len(embeddings[i]) == 0 {
			continue
		}
		vectors = append(vectors, &core.SectionVector{
			SectionID: section.ID,
			PaperID:   paper.ID,
			Vector:    NormalizeVector(embeddings[i]),
		})
	}

	if err := bp.store.DeleteSectionVectorsByPaper(ctx, paper.ID); err != nil {
		return fmt.Errorf("failed to clear old vectors: %w", err)
	}
	if len(vectors) == 0 {
		return nil
	}
	if err := bp.store.UpsertSectionVectors(ctx, vectors...); err != nil {
		return fmt.Errorf("failed to store vectors: %w", err)
	}

	return nil
}

// truncate clips s to at most n runes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

package ingestion

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/ronbun/ai"
	"github.com/poiesic/ronbun/arxiv"
	"github.com/poiesic/ronbun/blob"
	"github.com/poiesic/ronbun/core"
	"github.com/poiesic/ronbun/queue"
	"github.com/poiesic/ronbun/storage"
)

const (
	// maxBatchSubmit caps how many papers one batch submission may name.
	maxBatchSubmit = 50

	// maxExtractionSections bounds LLM cost per paper.
	maxExtractionSections = 10

	// maxExtractionChars is the per-section prompt slice.
	maxExtractionChars = 4000

	// maxEmbeddingSections bounds embedding cost per paper.
	maxEmbeddingSections = 100

	// maxEmbeddingChars is the per-section embedding text ceiling.
	maxEmbeddingChars = 8000

	defaultMaxAttempts = 3
)

// Catalog is the slice of the arXiv client the pipeline uses.
// Satisfied by *arxiv.Client; tests substitute fakes.
type Catalog interface {
	GetMetadata(ctx context.Context, arxivID string) (*arxiv.Metadata, error)
	Search(ctx context.Context, query string, maxResults int) ([]*arxiv.Metadata, error)
	FetchHTML(ctx context.Context, arxivID string) ([]byte, error)
	FetchPDF(ctx context.Context, arxivID string) ([]byte, error)
}

var _ Catalog = (*arxiv.Client)(nil)

// Pipeline orchestrates the ingestion of papers through the stage chain.
type Pipeline struct {
	store       storage.Store
	catalog     Catalog
	blobs       blob.Store
	publisher   queue.Publisher
	provider    ai.Provider
	maxAttempts int
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default() scoped to the ingestion component.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithMaxAttempts sets the delivery attempt count after which a failing
// stage marks its paper failed. It should match the queue's retry cap.
// Default is 3.
func WithMaxAttempts(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		p.maxAttempts = n
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline over the given dependencies.
func NewPipeline(
	store storage.Store,
	catalog Catalog,
	blobs blob.Store,
	publisher queue.Publisher,
	provider ai.Provider,
	opts ...Option,
) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if blobs == nil {
		return nil, ErrBlobStoreRequired
	}
	if publisher == nil {
		return nil, ErrPublisherRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	p := &Pipeline{
		store:       store,
		catalog:     catalog,
		blobs:       blobs,
		publisher:   publisher,
		provider:    provider,
		maxAttempts: defaultMaxAttempts,
		logger:      slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// HandleMessage consumes one stage message. It runs the stage handler and,
// on success, publishes the next stage's message, keeping the whole chain
// visible in one place. The returned error drives the queue's redelivery
// policy; the paper itself is only marked failed on a permanent error or
// once the final delivery attempt has been spent.
func (p *Pipeline) HandleMessage(ctx context.Context, msg queue.Message) error {
	var err error
	switch msg.Stage {
	case core.StageMetadata:
		err = p.runMetadata(ctx, msg.PaperID, msg.ArxivID)
	case core.StageContent:
		err = p.runContent(ctx, msg.PaperID, msg.ArxivID)
	case core.StageExtraction:
		err = p.runExtraction(ctx, msg.PaperID)
	case core.StageEmbedding:
		err = p.runEmbedding(ctx, msg.PaperID)
	default:
		p.logger.Error("dropping message with unknown stage", "paper_id", msg.PaperID, "stage", int(msg.Stage))
		return nil
	}

	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// The paper was deleted while its message was in flight.
			p.logger.Warn("paper gone, dropping stage message",
				"paper_id", msg.PaperID, "stage", msg.Stage.String())
			return nil
		}
		if permanent(err) {
			p.markFailed(ctx, msg.PaperID, msg.Stage, err)
			return nil
		}
		if msg.Attempt >= p.maxAttempts {
			p.markFailed(ctx, msg.PaperID, msg.Stage, err)
		}
		return err
	}

	next, ok := msg.Stage.Next()
	if !ok {
		return nil
	}
	return p.publisher.Publish(ctx, queue.Message{
		PaperID: msg.PaperID,
		ArxivID: msg.ArxivID,
		Stage:   next,
	})
}

// permanent reports whether retrying the stage cannot succeed.
func permanent(err error) bool {
	return errors.Is(err, ErrContentUnavailable) ||
		errors.Is(err, arxiv.ErrNotFound) ||
		errors.Is(err, core.ErrIllegalTransition)
}

// markFailed records the stage error on the paper and moves it to failed.
func (p *Pipeline) markFailed(ctx context.Context, paperID string, stage core.Stage, cause error) {
	p.logger.Error("stage failed",
		"paper_id", paperID,
		"stage", stage.String(),
		"err", cause)

	if _, err := p.store.SetPaperStatus(ctx, paperID, core.StatusFailed, cause.Error()); err != nil {
		p.logger.Error("failed to mark paper failed", "paper_id", paperID, "err", err)
	}
}

// truncate returns s cut to at most n runes.
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

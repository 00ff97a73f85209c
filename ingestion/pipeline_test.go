package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/ronbun/ai"
	"github.com/poiesic/ronbun/ai/mock"
	"github.com/poiesic/ronbun/arxiv"
	"github.com/poiesic/ronbun/blob"
	"github.com/poiesic/ronbun/core"
	"github.com/poiesic/ronbun/queue"
	"github.com/poiesic/ronbun/storage"
	badgerstore "github.com/poiesic/ronbun/storage/badger"
)

// testCatalog implements Catalog against fixed fixtures.
type testCatalog struct {
	metadata      map[string]*arxiv.Metadata
	html          map[string][]byte
	searchResults []*arxiv.Metadata
	metadataErr   error
	htmlErr       error
	pdfErr        error
}

func (c *testCatalog) GetMetadata(ctx context.Context, arxivID string) (*arxiv.Metadata, error) {
	if c.metadataErr != nil {
		return nil, c.metadataErr
	}
	meta, ok := c.metadata[arxivID]
	if !ok {
		return nil, arxiv.ErrNotFound
	}
	return meta, nil
}

func (c *testCatalog) Search(ctx context.Context, query string, maxResults int) ([]*arxiv.Metadata, error) {
	if len(c.searchResults) > maxResults {
		return c.searchResults[:maxResults], nil
	}
	return c.searchResults, nil
}

func (c *testCatalog) FetchHTML(ctx context.Context, arxivID string) ([]byte, error) {
	if c.htmlErr != nil {
		return nil, c.htmlErr
	}
	src, ok := c.html[arxivID]
	if !ok {
		return nil, arxiv.ErrContentUnavailable
	}
	return src, nil
}

func (c *testCatalog) FetchPDF(ctx context.Context, arxivID string) ([]byte, error) {
	if c.pdfErr != nil {
		return nil, c.pdfErr
	}
	return nil, arxiv.ErrContentUnavailable
}

// capturePublisher records published messages instead of consuming them.
type capturePublisher struct {
	mu       sync.Mutex
	messages []queue.Message
}

func (p *capturePublisher) Publish(ctx context.Context, msg queue.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *capturePublisher) published() []queue.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.Message(nil), p.messages...)
}

const testArxivID = "2301.00001"

var testHTML = []byte(`<html><body>
<h1>Introduction</h1>
<p>Transformers dominate language modeling, and this work studies why attention scales so well in practice.</p>
<h2>Method</h2>
<p>We propose a sparse attention variant that reduces the quadratic cost while keeping task accuracy intact.</p>
<section id="bibliography">
<li>A. Vaswani et al. Attention is all you need. <a href="https://arxiv.org/abs/1706.03762">arXiv:1706.03762</a></li>
</section>
</body></html>`)

func testMetadata() *arxiv.Metadata {
	return &arxiv.Metadata{
		ArxivID:     testArxivID,
		Title:       "Sparse Attention at Scale",
		Abstract:    "We study sparse attention mechanisms for large language models.",
		Authors:     []string{"Aiko Tanaka", "Ben Ortiz"},
		Categories:  []string{"cs.LG", "cs.CL"},
		PublishedAt: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC),
	}
}

type testEnv struct {
	store     storage.Store
	catalog   *testCatalog
	publisher *capturePublisher
	provider  ai.Provider
	pipeline  *Pipeline
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	store, err := badgerstore.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	blobs, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)

	catalog := &testCatalog{
		metadata: map[string]*arxiv.Metadata{testArxivID: testMetadata()},
		html:     map[string][]byte{testArxivID: testHTML},
	}
	publisher := &capturePublisher{}
	provider := mock.NewMockProvider()

	pipeline, err := NewPipeline(store, catalog, blobs, publisher, provider, opts...)
	require.NoError(t, err)

	return &testEnv{
		store:     store,
		catalog:   catalog,
		publisher: publisher,
		provider:  provider,
		pipeline:  pipeline,
	}
}

// runThrough advances the paper through stages by handling each published
// message in order, as the queue would.
func (e *testEnv) runThrough(t *testing.T, ctx context.Context) {
	t.Helper()
	for i := 0; i < len(e.publisher.published()); i++ {
		msg := e.publisher.published()[i]
		require.NoError(t, e.pipeline.HandleMessage(ctx, msg))
	}
}

func TestNewPipeline(t *testing.T) {
	store, err := badgerstore.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()
	blobs, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)
	catalog := &testCatalog{}
	publisher := &capturePublisher{}
	provider := mock.NewMockProvider()

	t.Run("valid dependencies", func(t *testing.T) {
		p, err := NewPipeline(store, catalog, blobs, publisher, provider)
		require.NoError(t, err)
		assert.NotNil(t, p)
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := NewPipeline(nil, catalog, blobs, publisher, provider)
		assert.ErrorIs(t, err, ErrStoreRequired)
	})

	t.Run("nil catalog", func(t *testing.T) {
		_, err := NewPipeline(store, nil, blobs, publisher, provider)
		assert.ErrorIs(t, err, ErrCatalogRequired)
	})

	t.Run("nil blob store", func(t *testing.T) {
		_, err := NewPipeline(store, catalog, nil, publisher, provider)
		assert.ErrorIs(t, err, ErrBlobStoreRequired)
	})

	t.Run("nil publisher", func(t *testing.T) {
		_, err := NewPipeline(store, catalog, blobs, nil, provider)
		assert.ErrorIs(t, err, ErrPublisherRequired)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := NewPipeline(store, catalog, blobs, publisher, nil)
		assert.ErrorIs(t, err, ErrAIProviderRequired)
	})
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("new paper", func(t *testing.T) {
		env := newTestEnv(t)

		result, err := env.pipeline.Submit(ctx, testArxivID)
		require.NoError(t, err)
		assert.Equal(t, core.StatusQueued, result.Status)
		assert.Equal(t, testArxivID, result.ArxivID)
		assert.NotEmpty(t, result.PaperID)

		msgs := env.publisher.published()
		require.Len(t, msgs, 1)
		assert.Equal(t, core.StageMetadata, msgs[0].Stage)
		assert.Equal(t, result.PaperID, msgs[0].PaperID)
	})

	t.Run("version suffix stripped", func(t *testing.T) {
		env := newTestEnv(t)

		result, err := env.pipeline.Submit(ctx, testArxivID+"v2")
		require.NoError(t, err)
		assert.Equal(t, testArxivID, result.ArxivID)
	})

	t.Run("idempotent for non-failed paper", func(t *testing.T) {
		env := newTestEnv(t)

		first, err := env.pipeline.Submit(ctx, testArxivID)
		require.NoError(t, err)
		second, err := env.pipeline.Submit(ctx, testArxivID)
		require.NoError(t, err)

		assert.Equal(t, first.PaperID, second.PaperID)
		assert.Equal(t, core.StatusQueued, second.Status)
		assert.Len(t, env.publisher.published(), 1, "no second enqueue")
	})

	t.Run("failed paper gets fresh identity", func(t *testing.T) {
		env := newTestEnv(t)

		first, err := env.pipeline.Submit(ctx, testArxivID)
		require.NoError(t, err)
		_, err = env.store.SetPaperStatus(ctx, first.PaperID, core.StatusFailed, "metadata fetch: boom")
		require.NoError(t, err)

		second, err := env.pipeline.Submit(ctx, testArxivID)
		require.NoError(t, err)
		assert.NotEqual(t, first.PaperID, second.PaperID)
		assert.Equal(t, core.StatusQueued, second.Status)

		_, err = env.store.GetPaper(ctx, first.PaperID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("invalid identifier rejected", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.pipeline.Submit(ctx, "not-an-id")
		assert.ErrorIs(t, err, core.ErrInvalidArxivID)
		assert.Empty(t, env.publisher.published())
	})
}

func TestSubmitBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("merges explicit ids and query results", func(t *testing.T) {
		env := newTestEnv(t)
		env.catalog.searchResults = []*arxiv.Metadata{
			{ArxivID: "2301.00002"},
			{ArxivID: testArxivID}, // duplicate of explicit ID
		}

		entries, err := env.pipeline.SubmitBatch(ctx, BatchRequest{
			ArxivIDs: []string{testArxivID},
			Query:    "sparse attention",
		})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, testArxivID, entries[0].ArxivID)
		assert.Equal(t, "2301.00002", entries[1].ArxivID)
		for _, entry := range entries {
			assert.NoError(t, entry.Err)
			assert.NotNil(t, entry.Result)
		}
	})

	t.Run("caps the combined list at fifty", func(t *testing.T) {
		env := newTestEnv(t)

		ids := make([]string, maxBatchSubmit+5)
		for i := range ids {
			ids[i] = fmt.Sprintf("2301.%05d", i+1)
		}
		entries, err := env.pipeline.SubmitBatch(ctx, BatchRequest{ArxivIDs: ids})
		require.NoError(t, err)
		assert.Len(t, entries, maxBatchSubmit)
		assert.Len(t, env.publisher.published(), maxBatchSubmit)
	})

	t.Run("invalid id does not abort the batch", func(t *testing.T) {
		env := newTestEnv(t)

		entries, err := env.pipeline.SubmitBatch(ctx, BatchRequest{
			ArxivIDs: []string{"bogus", testArxivID},
		})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.ErrorIs(t, entries[0].Err, core.ErrInvalidArxivID)
		assert.NoError(t, entries[1].Err)
		assert.Len(t, env.publisher.published(), 1)
	})

	t.Run("empty request rejected", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.pipeline.SubmitBatch(ctx, BatchRequest{})
		assert.ErrorIs(t, err, ErrEmptyBatch)
	})
}

func TestMetadataStage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	result, err := env.pipeline.Submit(ctx, testArxivID)
	require.NoError(t, err)

	require.NoError(t, env.pipeline.HandleMessage(ctx, env.publisher.published()[0]))

	paper, err := env.store.GetPaper(ctx, result.PaperID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusMetadata, paper.Status)
	assert.Equal(t, "Sparse Attention at Scale", paper.Title)
	assert.Equal(t, []string{"Aiko Tanaka", "Ben Ortiz"}, paper.Authors)
	assert.Equal(t, []string{"cs.LG", "cs.CL"}, paper.Categories)

	links, err := env.store.GetEntityLinksByPaper(ctx, result.PaperID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	for _, link := range links {
		assert.Equal(t, core.EntityAuthor, link.EntityType)
	}

	msgs := env.publisher.published()
	require.Len(t, msgs, 2)
	assert.Equal(t, core.StageContent, msgs[1].Stage)
}

func TestMetadataStageResolvesIncomingCitations(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	// An earlier paper cites this arXiv ID before it is ingested.
	citing, err := env.store.AddPaper(ctx, &core.Paper{ArxivID: "2201.11111", Status: core.StatusQueued})
	require.NoError(t, err)
	_, err = env.store.ReplaceCitations(ctx, citing.ID, []*core.Citation{
		{SourcePaperID: citing.ID, TargetArxivID: testArxivID, TargetTitle: "Sparse Attention at Scale"},
	})
	require.NoError(t, err)

	result, err := env.pipeline.Submit(ctx, testArxivID)
	require.NoError(t, err)
	require.NoError(t, env.pipeline.HandleMessage(ctx, env.publisher.published()[0]))

	incoming, err := env.store.GetCitationsByTarget(ctx, result.PaperID)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, citing.ID, incoming[0].SourcePaperID)
}

func TestContentStage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	result, err := env.pipeline.Submit(ctx, testArxivID)
	require.NoError(t, err)
	require.NoError(t, env.pipeline.HandleMessage(ctx, env.publisher.published()[0]))
	require.NoError(t, env.pipeline.HandleMessage(ctx, env.publisher.published()[1]))

	paper, err := env.store.GetPaper(ctx, result.PaperID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusParsed, paper.Status)

	sections, err := env.store.GetSectionsByPaper(ctx, result.PaperID)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "Introduction", sections[0].Heading)
	assert.Equal(t, "Method", sections[1].Heading)

	citations, err := env.store.GetCitationsBySource(ctx, result.PaperID)
	require.NoError(t, err)
	require.Len(t, citations, 1)
	assert.Equal(t, "1706.03762", citations[0].TargetArxivID)
}

func TestContentStageRedeliveryKeepsPaperHealthy(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	result, err := env.pipeline.Submit(ctx, testArxivID)
	require.NoError(t, err)
	require.NoError(t, env.pipeline.HandleMessage(ctx, env.publisher.published()[0]))

	contentMsg := env.publisher.published()[1]
	require.NoError(t, env.pipeline.HandleMessage(ctx, contentMsg))

	// At-least-once delivery: the same stage message arrives again after
	// the stage already completed. The replay must not fail the paper.
	redelivered := contentMsg
	redelivered.Attempt++
	require.NoError(t, env.pipeline.HandleMessage(ctx, redelivered))

	paper, err := env.store.GetPaper(ctx, result.PaperID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusParsed, paper.Status)
	assert.Empty(t, paper.Error)
}

func TestContentStageLinksLocalTargets(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	cited, err := env.store.AddPaper(ctx, &core.Paper{ArxivID: "1706.03762", Status: core.StatusQueued})
	require.NoError(t, err)

	result, err := env.pipeline.Submit(ctx, testArxivID)
	require.NoError(t, err)
	require.NoError(t, env.pipeline.HandleMessage(ctx, env.publisher.published()[0]))
	require.NoError(t, env.pipeline.HandleMessage(ctx, env.publisher.published()[1]))

	citations, err := env.store.GetCitationsBySource(ctx, result.PaperID)
	require.NoError(t, err)
	require.Len(t, citations, 1)
	assert.Equal(t, cited.ID, citations[0].TargetPaperID)
}

func TestContentStageUnavailableIsPermanent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.catalog.htmlErr = arxiv.ErrContentUnavailable
	env.catalog.pdfErr = errors.New("pdf host down")

	result, err := env.pipeline.Submit(ctx, testArxivID)
	require.NoError(t, err)
	require.NoError(t, env.pipeline.HandleMessage(ctx, env.publisher.published()[0]))

	// The handler consumes the message without asking for redelivery.
	err = env.pipeline.HandleMessage(ctx, env.publisher.published()[1])
	require.NoError(t, err)

	paper, err := env.store.GetPaper(ctx, result.PaperID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, paper.Status)
	assert.Contains(t, paper.Error, "content unavailable")

	// No further stage was enqueued.
	assert.Len(t, env.publisher.published(), 2)
}

func TestExtractionStage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	provider := env.provider.(*mock.MockProvider)
	provider.GetMockExtractor().ExtractKnowledgeFunc = func(ctx context.Context, text string) ([]ai.KnowledgeItem, error) {
		return []ai.KnowledgeItem{
			{Type: core.ExtractionMethod, Name: "sparse attention", Detail: "reduces quadratic cost"},
			{Type: core.ExtractionDataset, Name: "WikiText-103", Detail: "evaluation corpus"},
			{Type: core.ExtractionResult, Name: "matching accuracy", Detail: "parity with dense attention"},
		}, nil
	}

	result, err := env.pipeline.Submit(ctx, testArxivID)
	require.NoError(t, err)
	env.runThrough(t, ctx)

	paper, err := env.store.GetPaper(ctx, result.PaperID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusReady, paper.Status)

	extractions, err := env.store.GetExtractionsByPaper(ctx, result.PaperID)
	require.NoError(t, err)
	assert.Len(t, extractions, 6, "three items per section, two sections")

	links, err := env.store.GetEntityLinksByPaper(ctx, result.PaperID)
	require.NoError(t, err)
	byType := map[core.EntityType]int{}
	for _, link := range links {
		byType[link.EntityType]++
	}
	assert.Equal(t, 2, byType[core.EntityAuthor], "author links preserved")
	assert.Equal(t, 1, byType[core.EntityMethod], "deduplicated by deterministic link ID")
	assert.Equal(t, 1, byType[core.EntityDataset])
}

func TestExtractionStageSectionFailureIsSkipped(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	calls := 0
	provider := env.provider.(*mock.MockProvider)
	provider.GetMockExtractor().ExtractKnowledgeFunc = func(ctx context.Context, text string) ([]ai.KnowledgeItem, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("model overloaded")
		}
		return []ai.KnowledgeItem{{Type: core.ExtractionMethod, Name: "sparse attention"}}, nil
	}

	result, err := env.pipeline.Submit(ctx, testArxivID)
	require.NoError(t, err)
	env.runThrough(t, ctx)

	paper, err := env.store.GetPaper(ctx, result.PaperID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusReady, paper.Status, "one bad section does not fail the stage")

	extractions, err := env.store.GetExtractionsByPaper(ctx, result.PaperID)
	require.NoError(t, err)
	assert.Len(t, extractions, 1)
}

func TestEmbeddingStage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	result, err := env.pipeline.Submit(ctx, testArxivID)
	require.NoError(t, err)
	env.runThrough(t, ctx)

	paper, err := env.store.GetPaper(ctx, result.PaperID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusReady, paper.Status)
	assert.False(t, paper.IngestedAt.IsZero())

	vector, err := env.provider.Embedder().EmbedText(ctx, "sparse attention variant")
	require.NoError(t, err)
	matches, err := env.store.FindSimilarSections(ctx, vector, -1, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}

func TestEmbeddingStageFailureStillReady(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	embedder := env.provider.(*mock.MockProvider).GetMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("embedding host unreachable")
	}
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embedding host unreachable")
	}

	result, err := env.pipeline.Submit(ctx, testArxivID)
	require.NoError(t, err)
	env.runThrough(t, ctx)

	paper, err := env.store.GetPaper(ctx, result.PaperID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusReady, paper.Status, "embedding is best effort")
	assert.False(t, paper.IngestedAt.IsZero())

	matches, err := env.store.FindSimilarSections(ctx, make([]float32, 384), -1, 10)
	require.NoError(t, err)
	assert.Empty(t, matches, "no upsert when every embedding failed")
}

func TestEmbeddingStageKeepsPartialBatch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	// Batch embedding fails outright; the per-section retry succeeds for
	// all but one section.
	embedder := env.provider.(*mock.MockProvider).GetMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("batch too large")
	}
	calls := 0
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("model overloaded")
		}
		vector := make([]float32, 384)
		vector[0] = 1
		return vector, nil
	}

	result, err := env.pipeline.Submit(ctx, testArxivID)
	require.NoError(t, err)
	env.runThrough(t, ctx)

	paper, err := env.store.GetPaper(ctx, result.PaperID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusReady, paper.Status)

	query := make([]float32, 384)
	query[0] = 1
	matches, err := env.store.FindSimilarSections(ctx, query, -1, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 1, "sections that embed cleanly are kept")
}

func TestHandleMessageMarksFailedOnFinalAttempt(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.catalog.metadataErr = errors.New("catalog timeout")

	result, err := env.pipeline.Submit(ctx, testArxivID)
	require.NoError(t, err)

	msg := env.publisher.published()[0]

	// Early attempts just report the error for redelivery.
	err = env.pipeline.HandleMessage(ctx, msg)
	require.Error(t, err)
	paper, err := env.store.GetPaper(ctx, result.PaperID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusQueued, paper.Status)

	// The final attempt records the failure on the paper.
	msg.Attempt = defaultMaxAttempts
	err = env.pipeline.HandleMessage(ctx, msg)
	require.Error(t, err)
	paper, err = env.store.GetPaper(ctx, result.PaperID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, paper.Status)
	assert.Contains(t, paper.Error, "catalog timeout")
}

func TestHandleMessageDropsDeletedPaper(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	result, err := env.pipeline.Submit(ctx, testArxivID)
	require.NoError(t, err)
	require.NoError(t, env.store.DeletePaper(ctx, result.PaperID))

	err = env.pipeline.HandleMessage(ctx, env.publisher.published()[0])
	assert.NoError(t, err, "stale message for a deleted paper is consumed")
}

func TestPipelineEndToEndWithQueue(t *testing.T) {
	ctx := context.Background()

	store, err := badgerstore.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()
	blobs, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)
	catalog := &testCatalog{
		metadata: map[string]*arxiv.Metadata{testArxivID: testMetadata()},
		html:     map[string][]byte{testArxivID: testHTML},
	}
	provider := mock.NewMockProvider()

	// Wire the real queue: the pipeline publishes to it and consumes from
	// it. A single worker proves stage handoffs never wait on their own
	// pool slot.
	var pipeline *Pipeline
	q, err := queue.New(func(ctx context.Context, msg queue.Message) error {
		return pipeline.HandleMessage(ctx, msg)
	}, queue.WithWorkers(1))
	require.NoError(t, err)
	defer q.Close()

	pipeline, err = NewPipeline(store, catalog, blobs, q, provider)
	require.NoError(t, err)

	result, err := pipeline.Submit(ctx, testArxivID)
	require.NoError(t, err)
	q.Drain()

	paper, err := store.GetPaper(ctx, result.PaperID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusReady, paper.Status)

	sections, err := store.GetSectionsByPaper(ctx, result.PaperID)
	require.NoError(t, err)
	assert.Len(t, sections, 2)

	extractions, err := store.GetExtractionsByPaper(ctx, result.PaperID)
	require.NoError(t, err)
	assert.NotEmpty(t, extractions)
}

package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/ronbun/core"
	"github.com/poiesic/ronbun/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testPaper(arxivID string) *core.Paper {
	return &core.Paper{
		ArxivID:    arxivID,
		Title:      "Attention Is All You Need",
		Authors:    []string{"A. Vaswani"},
		Categories: []string{"cs.CL"},
		Abstract:   "We propose the Transformer, based solely on attention mechanisms.",
		Status:     core.StatusQueued,
	}
}

// makeReady walks a queued paper through the full lifecycle so it shows up
// in keyword search.
func makeReady(t *testing.T, store storage.Store, id string) {
	t.Helper()
	ctx := context.Background()
	for _, next := range []core.Status{core.StatusMetadata, core.StatusParsed, core.StatusExtracted, core.StatusReady} {
		_, err := store.SetPaperStatus(ctx, id, next, "")
		require.NoError(t, err)
	}
}

func TestAddPaper_GeneratesID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paper, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)
	assert.NotEmpty(t, paper.ID)
	assert.False(t, paper.CreatedAt.IsZero())

	got, err := store.GetPaper(ctx, paper.ID)
	require.NoError(t, err)
	assert.Equal(t, paper.ArxivID, got.ArxivID)
	assert.Equal(t, paper.Title, got.Title)
}

func TestAddPaper_DuplicateArxivID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)

	_, err = store.AddPaper(ctx, testPaper("2301.00001"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestGetPaperByArxivID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paper, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)

	got, err := store.GetPaperByArxivID(ctx, "2301.00001")
	require.NoError(t, err)
	assert.Equal(t, paper.ID, got.ID)

	_, err = store.GetPaperByArxivID(ctx, "2301.99999")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSetPaperStatus_Transitions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paper, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)

	// Walk the full lifecycle.
	for _, next := range []core.Status{core.StatusMetadata, core.StatusParsed, core.StatusExtracted, core.StatusReady} {
		paper, err = store.SetPaperStatus(ctx, paper.ID, next, "")
		require.NoError(t, err)
		assert.Equal(t, next, paper.Status)
	}
	assert.False(t, paper.IngestedAt.IsZero())

	// Ready is terminal.
	_, err = store.SetPaperStatus(ctx, paper.ID, core.StatusFailed, "boom")
	assert.ErrorIs(t, err, core.ErrIllegalTransition)
}

func TestSetPaperStatus_SameStatusIsNoOp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paper, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)

	paper, err = store.SetPaperStatus(ctx, paper.ID, core.StatusMetadata, "")
	require.NoError(t, err)

	// At-least-once delivery can replay a completed stage; the replay
	// must not be treated as an illegal transition.
	paper, err = store.SetPaperStatus(ctx, paper.ID, core.StatusMetadata, "")
	require.NoError(t, err)
	assert.Equal(t, core.StatusMetadata, paper.Status)

	for _, next := range []core.Status{core.StatusParsed, core.StatusExtracted, core.StatusReady} {
		paper, err = store.SetPaperStatus(ctx, paper.ID, next, "")
		require.NoError(t, err)
	}
	ingestedAt := paper.IngestedAt
	require.False(t, ingestedAt.IsZero())

	// Replaying ready keeps the original ingestion timestamp.
	paper, err = store.SetPaperStatus(ctx, paper.ID, core.StatusReady, "")
	require.NoError(t, err)
	assert.Equal(t, ingestedAt, paper.IngestedAt)
}

func TestSetPaperStatus_Failed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paper, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)

	paper, err = store.SetPaperStatus(ctx, paper.ID, core.StatusFailed, "metadata fetch failed")
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, paper.Status)
	assert.Equal(t, "metadata fetch failed", paper.Error)
}

func TestUpdatePaper_IllegalStatusChange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paper, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)

	paper.Status = core.StatusReady
	_, err = store.UpdatePaper(ctx, paper)
	assert.ErrorIs(t, err, core.ErrIllegalTransition)
}

func TestListPapers_Pagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.AddPaper(ctx, testPaper(fmt.Sprintf("2301.0000%d", i+1)))
		require.NoError(t, err)
	}

	page1, hasMore, err := store.ListPapers(ctx, storage.ListPapersQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.True(t, hasMore)

	page2, hasMore, err := store.ListPapers(ctx, storage.ListPapersQuery{Limit: 2, Cursor: page1[1].ID})
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.True(t, hasMore)

	page3, hasMore, err := store.ListPapers(ctx, storage.ListPapersQuery{Limit: 2, Cursor: page2[1].ID})
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.False(t, hasMore)

	seen := make(map[string]bool)
	for _, p := range append(append(page1, page2...), page3...) {
		assert.False(t, seen[p.ID], "paper %s appeared twice", p.ID)
		seen[p.ID] = true
	}
}

func TestListPapers_StatusFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p1, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)
	_, err = store.AddPaper(ctx, testPaper("2301.00002"))
	require.NoError(t, err)

	_, err = store.SetPaperStatus(ctx, p1.ID, core.StatusMetadata, "")
	require.NoError(t, err)

	papers, _, err := store.ListPapers(ctx, storage.ListPapersQuery{Status: core.StatusMetadata})
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, p1.ID, papers[0].ID)
}

func TestCountPapersByStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p1, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)
	_, err = store.AddPaper(ctx, testPaper("2301.00002"))
	require.NoError(t, err)

	_, err = store.SetPaperStatus(ctx, p1.ID, core.StatusMetadata, "")
	require.NoError(t, err)

	counts, err := store.CountPapersByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[core.StatusQueued])
	assert.Equal(t, 1, counts[core.StatusMetadata])
}

func TestDeletePaper_Cascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paper, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)

	sections, err := store.ReplaceSections(ctx, paper.ID, []*core.Section{
		{Heading: "Introduction", Content: "Sequence transduction models dominate.", Position: 0},
	})
	require.NoError(t, err)

	_, err = store.ReplaceExtractions(ctx, paper.ID, []*core.Extraction{
		{Type: core.ExtractionMethod, Name: "Transformer", Detail: "attention only architecture"},
	})
	require.NoError(t, err)

	_, err = store.PutEntityLinks(ctx, &core.EntityLink{
		PaperID: paper.ID, EntityType: core.EntityAuthor, EntityName: "A. Vaswani",
	})
	require.NoError(t, err)

	err = store.UpsertSectionVectors(ctx, &core.SectionVector{
		SectionID: sections[0].ID, PaperID: paper.ID, Vector: []float32{0.6, 0.8},
	})
	require.NoError(t, err)

	require.NoError(t, store.DeletePaper(ctx, paper.ID))

	_, err = store.GetPaper(ctx, paper.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	remaining, err := store.GetSectionsByPaper(ctx, paper.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	links, err := store.GetEntityLinksByPaper(ctx, paper.ID)
	require.NoError(t, err)
	assert.Empty(t, links)

	matches, err := store.FindSimilarSections(ctx, []float32{0.6, 0.8}, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)

	// The arXiv ID is free again.
	_, err = store.AddPaper(ctx, testPaper("2301.00001"))
	assert.NoError(t, err)
}

func TestSearchPapers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	attention := testPaper("2301.00001")
	added, err := store.AddPaper(ctx, attention)
	require.NoError(t, err)
	makeReady(t, store, added.ID)

	other := testPaper("2301.00002")
	other.Title = "Deep Residual Learning for Image Recognition"
	other.Abstract = "Residual networks ease the training of deep networks."
	added, err = store.AddPaper(ctx, other)
	require.NoError(t, err)
	makeReady(t, store, added.ID)

	results, err := store.SearchPapers(ctx, "attention mechanisms", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, attention.ArxivID, results[0].ArxivID)

	results, err = store.SearchPapers(ctx, "residual networks", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, other.ArxivID, results[0].ArxivID)
}

func TestSearchPapers_RanksMoreMatchedTokensFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	partial := testPaper("2301.00001")
	partial.Title = "Graph Neural Networks"
	partial.Abstract = "Message passing over graphs."
	added, err := store.AddPaper(ctx, partial)
	require.NoError(t, err)
	makeReady(t, store, added.ID)

	full := testPaper("2301.00002")
	full.Title = "Convolutional Neural Networks for Vision"
	full.Abstract = "Convolutional architectures for image classification."
	added, err = store.AddPaper(ctx, full)
	require.NoError(t, err)
	makeReady(t, store, added.ID)

	results, err := store.SearchPapers(ctx, "convolutional neural networks", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, full.ArxivID, results[0].ArxivID)
}

func TestSearchPapers_NonReadyPapersDoNotConsumeSlots(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// The queued paper matches more query tokens and would rank first,
	// but it must not take the only result slot.
	queued := testPaper("2301.00001")
	queued.Title = "Sparse Attention Mechanisms at Scale"
	queued.Abstract = "Sparse attention mechanisms studied in depth."
	_, err := store.AddPaper(ctx, queued)
	require.NoError(t, err)

	ready := testPaper("2301.00002")
	ready.Title = "Attention Variants"
	ready.Abstract = "A survey of attention."
	added, err := store.AddPaper(ctx, ready)
	require.NoError(t, err)
	makeReady(t, store, added.ID)

	results, err := store.SearchPapers(ctx, "sparse attention mechanisms", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ready.ArxivID, results[0].ArxivID)
}

func TestSearchSections_OnlyReadyPapers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	queued, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)
	_, err = store.ReplaceSections(ctx, queued.ID, []*core.Section{
		{Heading: "Method", Content: "A sparse quantization method for inference.", Position: 0},
	})
	require.NoError(t, err)

	ready, err := store.AddPaper(ctx, testPaper("2301.00002"))
	require.NoError(t, err)
	_, err = store.ReplaceSections(ctx, ready.ID, []*core.Section{
		{Heading: "Approach", Content: "Our quantization approach in detail.", Position: 0},
	})
	require.NoError(t, err)
	makeReady(t, store, ready.ID)

	hits, err := store.SearchSections(ctx, "quantization", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, ready.ID, hits[0].PaperID)
}

package badger

import (
	"context"
	"testing"

	"github.com/poiesic/ronbun/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceSections_ReplacesNotAppends(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paper, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)
	makeReady(t, store, paper.ID)

	_, err = store.ReplaceSections(ctx, paper.ID, []*core.Section{
		{Heading: "Introduction", Content: "First version of the introduction.", Position: 0},
		{Heading: "Method", Content: "First version of the method.", Position: 1},
	})
	require.NoError(t, err)

	replaced, err := store.ReplaceSections(ctx, paper.ID, []*core.Section{
		{Heading: "Introduction", Content: "Second version of the introduction.", Position: 0},
	})
	require.NoError(t, err)
	require.Len(t, replaced, 1)

	sections, err := store.GetSectionsByPaper(ctx, paper.ID)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "Second version of the introduction.", sections[0].Content)

	// Postings for the old sections are gone too.
	hits, err := store.SearchSections(ctx, "first version method", 10)
	require.NoError(t, err)
	for _, hit := range hits {
		assert.NotEqual(t, "Method", hit.Heading)
	}
}

func TestGetSectionsByPaper_OrderedByPosition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paper, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)

	_, err = store.ReplaceSections(ctx, paper.ID, []*core.Section{
		{Heading: "Conclusion", Content: "We conclude with future work.", Position: 2},
		{Heading: "Abstract", Content: "A short summary of the work.", Position: 0},
		{Heading: "Method", Content: "The method in full detail.", Position: 1},
	})
	require.NoError(t, err)

	sections, err := store.GetSectionsByPaper(ctx, paper.ID)
	require.NoError(t, err)
	require.Len(t, sections, 3)
	assert.Equal(t, "Abstract", sections[0].Heading)
	assert.Equal(t, "Method", sections[1].Heading)
	assert.Equal(t, "Conclusion", sections[2].Heading)
}

func TestReplaceExtractions_TypeFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paper, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)

	_, err = store.ReplaceExtractions(ctx, paper.ID, []*core.Extraction{
		{Type: core.ExtractionMethod, Name: "Transformer", Detail: "self-attention encoder decoder"},
		{Type: core.ExtractionDataset, Name: "WMT 2014", Detail: "translation benchmark"},
	})
	require.NoError(t, err)

	all, err := store.GetExtractionsByPaper(ctx, paper.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	methods, err := store.SearchExtractions(ctx, "transformer", core.ExtractionMethod, 10)
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, "Transformer", methods[0].Name)

	datasets, err := store.SearchExtractions(ctx, "transformer", core.ExtractionDataset, 10)
	require.NoError(t, err)
	assert.Empty(t, datasets)
}

func TestReplaceCitations_AndResolve(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	source, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)

	_, err = store.ReplaceCitations(ctx, source.ID, []*core.Citation{
		{TargetArxivID: "2301.00002", TargetTitle: "A cited paper"},
		{TargetTitle: "An unresolvable citation with no identifier"},
	})
	require.NoError(t, err)

	outgoing, err := store.GetCitationsBySource(ctx, source.ID)
	require.NoError(t, err)
	assert.Len(t, outgoing, 2)

	// The cited paper arrives later; its citations resolve.
	target, err := store.AddPaper(ctx, testPaper("2301.00002"))
	require.NoError(t, err)

	resolved, err := store.ResolveCitations(ctx, target.ArxivID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	incoming, err := store.GetCitationsByTarget(ctx, target.ID)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, source.ID, incoming[0].SourcePaperID)

	// Resolving again is a no-op.
	resolved, err = store.ResolveCitations(ctx, target.ArxivID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, resolved)
}

func TestReplaceCitations_ClearsTargetIndex(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	source, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)
	target, err := store.AddPaper(ctx, testPaper("2301.00002"))
	require.NoError(t, err)

	_, err = store.ReplaceCitations(ctx, source.ID, []*core.Citation{
		{TargetPaperID: target.ID, TargetArxivID: target.ArxivID},
	})
	require.NoError(t, err)

	_, err = store.ReplaceCitations(ctx, source.ID, nil)
	require.NoError(t, err)

	incoming, err := store.GetCitationsByTarget(ctx, target.ID)
	require.NoError(t, err)
	assert.Empty(t, incoming)
}

func TestPutEntityLinks_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paper, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)

	link := &core.EntityLink{PaperID: paper.ID, EntityType: core.EntityMethod, EntityName: "transformer"}
	_, err = store.PutEntityLinks(ctx, link)
	require.NoError(t, err)

	// Same link written twice stays a single row.
	_, err = store.PutEntityLinks(ctx, &core.EntityLink{
		PaperID: paper.ID, EntityType: core.EntityMethod, EntityName: "transformer",
	})
	require.NoError(t, err)

	links, err := store.GetEntityLinksByPaper(ctx, paper.ID)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestDeleteEntityLinksByType_LeavesOtherTypes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paper, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)

	_, err = store.PutEntityLinks(ctx,
		&core.EntityLink{PaperID: paper.ID, EntityType: core.EntityAuthor, EntityName: "A. Vaswani"},
		&core.EntityLink{PaperID: paper.ID, EntityType: core.EntityMethod, EntityName: "transformer"},
		&core.EntityLink{PaperID: paper.ID, EntityType: core.EntityDataset, EntityName: "wmt 2014"},
	)
	require.NoError(t, err)

	err = store.DeleteEntityLinksByType(ctx, paper.ID, core.EntityMethod, core.EntityDataset)
	require.NoError(t, err)

	links, err := store.GetEntityLinksByPaper(ctx, paper.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, core.EntityAuthor, links[0].EntityType)
}

func TestGetPapersByEntity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p1, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)
	p2, err := store.AddPaper(ctx, testPaper("2301.00002"))
	require.NoError(t, err)

	_, err = store.PutEntityLinks(ctx,
		&core.EntityLink{PaperID: p1.ID, EntityType: core.EntityMethod, EntityName: "transformer"},
		&core.EntityLink{PaperID: p2.ID, EntityType: core.EntityMethod, EntityName: "transformer"},
		&core.EntityLink{PaperID: p2.ID, EntityType: core.EntityMethod, EntityName: "lstm"},
	)
	require.NoError(t, err)

	papers, err := store.GetPapersByEntity(ctx, core.EntityMethod, "transformer")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{p1.ID, p2.ID}, papers)

	papers, err = store.GetPapersByEntity(ctx, core.EntityMethod, "lstm")
	require.NoError(t, err)
	assert.Equal(t, []string{p2.ID}, papers)
}

func TestGetPapersByEntity_NamePrefixDoesNotBleed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p1, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)
	p2, err := store.AddPaper(ctx, testPaper("2301.00002"))
	require.NoError(t, err)

	// One name extends the other past the key separator.
	_, err = store.PutEntityLinks(ctx,
		&core.EntityLink{PaperID: p1.ID, EntityType: core.EntityMethod, EntityName: "bert"},
		&core.EntityLink{PaperID: p2.ID, EntityType: core.EntityMethod, EntityName: "bert:large"},
	)
	require.NoError(t, err)

	papers, err := store.GetPapersByEntity(ctx, core.EntityMethod, "bert")
	require.NoError(t, err)
	assert.Equal(t, []string{p1.ID}, papers)

	papers, err = store.GetPapersByEntity(ctx, core.EntityMethod, "bert:large")
	require.NoError(t, err)
	assert.Equal(t, []string{p2.ID}, papers)
}

func TestFindSimilarSections(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paper, err := store.AddPaper(ctx, testPaper("2301.00001"))
	require.NoError(t, err)

	err = store.UpsertSectionVectors(ctx,
		&core.SectionVector{SectionID: "sec-a", PaperID: paper.ID, Vector: []float32{1, 0}},
		&core.SectionVector{SectionID: "sec-b", PaperID: paper.ID, Vector: []float32{0.6, 0.8}},
		&core.SectionVector{SectionID: "sec-c", PaperID: paper.ID, Vector: []float32{0, 1}},
	)
	require.NoError(t, err)

	matches, err := store.FindSimilarSections(ctx, []float32{1, 0}, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "sec-a", matches[0].SectionID)
	assert.Equal(t, "sec-b", matches[1].SectionID)

	matches, err = store.FindSimilarSections(ctx, []float32{1, 0}, 0.5, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "sec-a", matches[0].SectionID)
}

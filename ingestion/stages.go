package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/ronbun/arxiv"
	"github.com/poiesic/ronbun/blob"
	"github.com/poiesic/ronbun/core"
	"github.com/poiesic/ronbun/storage"
)

// runMetadata fetches the paper's bibliographic record from the catalog,
// fills in the paper row, writes author entity links and resolves citations
// from already-ingested papers that reference this arXiv ID.
func (p *Pipeline) runMetadata(ctx context.Context, paperID, arxivID string) error {
	meta, err := p.catalog.GetMetadata(ctx, arxivID)
	if err != nil {
		return fmt.Errorf("fetch metadata: %w", err)
	}

	paper, err := p.store.GetPaper(ctx, paperID)
	if err != nil {
		return err
	}

	paper.Title = meta.Title
	paper.Abstract = meta.Abstract
	paper.Authors = meta.Authors
	paper.Categories = meta.Categories
	paper.PublishedAt = meta.PublishedAt
	paper.UpdatedAt = meta.UpdatedAt
	paper.Status = core.StatusMetadata
	if _, err := p.store.UpdatePaper(ctx, paper); err != nil {
		return err
	}

	// Author links survive content/extraction retries; they are replaced
	// only when this stage itself is re-run.
	if err := p.store.DeleteEntityLinksByType(ctx, paperID, core.EntityAuthor); err != nil {
		return err
	}
	links := make([]*core.EntityLink, 0, len(meta.Authors))
	for _, author := range meta.Authors {
		links = append(links, &core.EntityLink{
			PaperID:    paperID,
			EntityType: core.EntityAuthor,
			EntityName: author,
		})
	}
	if len(links) > 0 {
		if _, err := p.store.PutEntityLinks(ctx, links...); err != nil {
			return err
		}
	}

	resolved, err := p.store.ResolveCitations(ctx, arxivID, paperID)
	if err != nil {
		return err
	}
	if resolved > 0 {
		p.logger.Info("resolved incoming citations",
			"paper_id", paperID, "count", resolved)
	}

	p.logger.Info("metadata stage complete", "paper_id", paperID, "arxiv_id", arxivID)
	return nil
}

// runContent fetches the paper's body, archives the raw document, parses it
// into sections and references and replaces the paper's stage-owned rows.
// The HTML rendition is preferred; PDF text is the fallback. Both failing
// is a permanent failure for this attempt.
func (p *Pipeline) runContent(ctx context.Context, paperID, arxivID string) error {
	parsed, err := p.fetchContent(ctx, paperID, arxivID)
	if err != nil {
		return err
	}

	sections := make([]*core.Section, 0, len(parsed.Sections))
	for _, s := range parsed.Sections {
		sections = append(sections, &core.Section{
			PaperID:  paperID,
			Heading:  s.Heading,
			Level:    s.Level,
			Content:  s.Content,
			Position: s.Position,
		})
	}
	if _, err := p.store.ReplaceSections(ctx, paperID, sections); err != nil {
		return err
	}

	citations := make([]*core.Citation, 0, len(parsed.References))
	for _, ref := range parsed.References {
		citation := &core.Citation{
			SourcePaperID: paperID,
			TargetArxivID: ref.ArxivID,
			TargetDOI:     ref.DOI,
			TargetTitle:   ref.Title,
		}
		// Link targets that are already ingested locally.
		if ref.ArxivID != "" {
			target, err := p.store.GetPaperByArxivID(ctx, ref.ArxivID)
			if err == nil {
				citation.TargetPaperID = target.ID
			} else if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
		}
		citations = append(citations, citation)
	}
	if _, err := p.store.ReplaceCitations(ctx, paperID, citations); err != nil {
		return err
	}

	if _, err := p.store.SetPaperStatus(ctx, paperID, core.StatusParsed, ""); err != nil {
		return err
	}

	p.logger.Info("content stage complete",
		"paper_id", paperID,
		"sections", len(sections),
		"citations", len(citations))
	return nil
}

// fetchContent retrieves and parses the paper body, archiving the raw bytes.
// Archival is best effort; a blob store error is logged and skipped.
func (p *Pipeline) fetchContent(ctx context.Context, paperID, arxivID string) (*arxiv.ParsedContent, error) {
	htmlSrc, htmlErr := p.catalog.FetchHTML(ctx, arxivID)
	if htmlErr == nil {
		if err := p.blobs.Put(ctx, blob.HTMLKey(paperID), htmlSrc, "text/html"); err != nil {
			p.logger.Warn("failed to archive html", "paper_id", paperID, "err", err)
		}
		parsed, err := arxiv.ParseHTML(htmlSrc)
		if err == nil {
			return parsed, nil
		}
		htmlErr = err
	}
	p.logger.Warn("html rendition unavailable, falling back to pdf",
		"paper_id", paperID, "arxiv_id", arxivID, "err", htmlErr)

	pdf, pdfErr := p.catalog.FetchPDF(ctx, arxivID)
	if pdfErr != nil {
		return nil, fmt.Errorf("%w: html: %v, pdf: %v", ErrContentUnavailable, htmlErr, pdfErr)
	}
	if err := p.blobs.Put(ctx, blob.PDFKey(paperID), pdf, "application/pdf"); err != nil {
		p.logger.Warn("failed to archive pdf", "paper_id", paperID, "err", err)
	}

	text, err := arxiv.ExtractPDFText(ctx, pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: html: %v, pdf text: %v", ErrContentUnavailable, htmlErr, err)
	}
	return arxiv.ParsePDFText(text), nil
}

// runExtraction prompts the LLM over the paper's leading sections and
// replaces the paper's extractions and method/dataset entity links. One
// section's extraction failure is logged and skipped; it does not fail the
// stage.
func (p *Pipeline) runExtraction(ctx context.Context, paperID string) error {
	sections, err := p.store.GetSectionsByPaper(ctx, paperID)
	if err != nil {
		return err
	}
	if len(sections) > maxExtractionSections {
		sections = sections[:maxExtractionSections]
	}

	extractor := p.provider.KnowledgeExtractor()
	var extractions []*core.Extraction
	var links []*core.EntityLink

	for _, section := range sections {
		items, err := extractor.ExtractKnowledge(ctx, truncate(section.Content, maxExtractionChars))
		if err != nil {
			p.logger.Warn("section extraction failed, skipping",
				"paper_id", paperID,
				"section_id", section.ID,
				"err", err)
			continue
		}
		for _, item := range items {
			extractions = append(extractions, &core.Extraction{
				PaperID:   paperID,
				Type:      item.Type,
				Name:      item.Name,
				Detail:    item.Detail,
				SectionID: section.ID,
			})
			switch item.Type {
			case core.ExtractionMethod:
				links = append(links, &core.EntityLink{
					PaperID:    paperID,
					EntityType: core.EntityMethod,
					EntityName: item.Name,
				})
			case core.ExtractionDataset:
				links = append(links, &core.EntityLink{
					PaperID:    paperID,
					EntityType: core.EntityDataset,
					EntityName: item.Name,
				})
			}
		}
	}

	if _, err := p.store.ReplaceExtractions(ctx, paperID, extractions); err != nil {
		return err
	}

	// Method and dataset links belong to this stage; author links stay.
	if err := p.store.DeleteEntityLinksByType(ctx, paperID, core.EntityMethod, core.EntityDataset); err != nil {
		return err
	}
	if len(links) > 0 {
		if _, err := p.store.PutEntityLinks(ctx, links...); err != nil {
			return err
		}
	}

	if _, err := p.store.SetPaperStatus(ctx, paperID, core.StatusExtracted, ""); err != nil {
		return err
	}

	p.logger.Info("extraction stage complete",
		"paper_id", paperID,
		"extractions", len(extractions),
		"entity_links", len(links))
	return nil
}

// runEmbedding embeds the paper's sections into the vector index. Embedding
// is best effort: the paper reaches ready even when every embedding failed,
// so it stays reachable by keyword search.
func (p *Pipeline) runEmbedding(ctx context.Context, paperID string) error {
	sections, err := p.store.GetSectionsByPaper(ctx, paperID)
	if err != nil {
		return err
	}
	if len(sections) > maxEmbeddingSections {
		sections = sections[:maxEmbeddingSections]
	}

	var vectors []*core.SectionVector
	if len(sections) > 0 {
		texts := make([]string, len(sections))
		for i, section := range sections {
			texts[i] = truncate(section.Content, maxEmbeddingChars)
		}

		embedded, err := p.provider.Embedder().EmbedTexts(ctx, texts)
		if err != nil {
			// A batch failure must not lose every section. Retry one
			// section at a time and keep whatever embeds cleanly.
			p.logger.Warn("batch embedding failed, embedding per section",
				"paper_id", paperID, "err", err)
			embedded = make([][]float32, len(texts))
			for i, text := range texts {
				vector, embedErr := p.provider.Embedder().EmbedText(ctx, text)
				if embedErr != nil {
					p.logger.Warn("section embedding failed, skipping",
						"paper_id", paperID,
						"section_id", sections[i].ID,
						"err", embedErr)
					continue
				}
				embedded[i] = vector
			}
		}
		for i, vector := range embedded {
			if i >= len(sections) || len(vector) == 0 {
				continue
			}
			vectors = append(vectors, &core.SectionVector{
				SectionID: sections[i].ID,
				PaperID:   paperID,
				Vector:    vector,
			})
		}
	}

	if len(vectors) > 0 {
		// Drop vectors from a previous parse whose sections no longer exist.
		if err := p.store.DeleteSectionVectorsByPaper(ctx, paperID); err != nil {
			return err
		}
		if err := p.store.UpsertSectionVectors(ctx, vectors...); err != nil {
			return err
		}
	}

	if _, err := p.store.SetPaperStatus(ctx, paperID, core.StatusReady, ""); err != nil {
		return err
	}

	p.logger.Info("embedding stage complete",
		"paper_id", paperID,
		"sections", len(sections),
		"vectors", len(vectors))
	return nil
}

package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/ronbun/core"
	"github.com/poiesic/ronbun/storage"
)

// LinkType names one edge kind of the relationship graph.
type LinkType string

const (
	LinkCitation      LinkType = "citation"
	LinkCitedBy       LinkType = "cited_by"
	LinkSharedMethod  LinkType = "shared_method"
	LinkSharedDataset LinkType = "shared_dataset"
	LinkSharedAuthor  LinkType = "shared_author"
)

// allLinkTypes is the fixed examination order: a paper reachable through
// multiple edge kinds keeps the entry of the first kind examined.
var allLinkTypes = []LinkType{
	LinkCitation,
	LinkCitedBy,
	LinkSharedMethod,
	LinkSharedDataset,
	LinkSharedAuthor,
}

// RelatedPaper is one related-paper hit. EntityName is set for shared_*
// edges and names the method, dataset or author both papers share.
type RelatedPaper struct {
	Paper      *core.Paper
	LinkType   LinkType
	EntityName string
}

// FindRelated collects papers related to the given paper, resolved by
// internal or arXiv ID, through the requested link types. Nil linkTypes
// means all five. Papers reachable through several types are reported once,
// under the first type in the fixed order citation, cited_by,
// shared_method, shared_dataset, shared_author.
func (s *Searcher) FindRelated(ctx context.Context, paperID string, linkTypes []LinkType, limit int) ([]*RelatedPaper, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if len(linkTypes) == 0 {
		linkTypes = allLinkTypes
	}
	requested := make(map[LinkType]bool, len(linkTypes))
	for _, lt := range linkTypes {
		switch lt {
		case LinkCitation, LinkCitedBy, LinkSharedMethod, LinkSharedDataset, LinkSharedAuthor:
			requested[lt] = true
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownLinkType, lt)
		}
	}

	paper, err := s.resolvePaper(ctx, paperID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{paper.ID: true}
	type hit struct {
		paperID    string
		linkType   LinkType
		entityName string
	}
	var hits []hit

	collect := func(id string, lt LinkType, entity string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		hits = append(hits, hit{paperID: id, linkType: lt, entityName: entity})
	}

	for _, lt := range allLinkTypes {
		if !requested[lt] {
			continue
		}
		switch lt {
		case LinkCitation:
			citations, err := s.store.GetCitationsBySource(ctx, paper.ID)
			if err != nil {
				return nil, err
			}
			for _, c := range citations {
				collect(c.TargetPaperID, LinkCitation, "")
			}
		case LinkCitedBy:
			citations, err := s.store.GetCitationsByTarget(ctx, paper.ID)
			if err != nil {
				return nil, err
			}
			for _, c := range citations {
				collect(c.SourcePaperID, LinkCitedBy, "")
			}
		case LinkSharedMethod:
			if err := s.collectShared(ctx, paper.ID, core.EntityMethod, LinkSharedMethod, collect); err != nil {
				return nil, err
			}
		case LinkSharedDataset:
			if err := s.collectShared(ctx, paper.ID, core.EntityDataset, LinkSharedDataset, collect); err != nil {
				return nil, err
			}
		case LinkSharedAuthor:
			if err := s.collectShared(ctx, paper.ID, core.EntityAuthor, LinkSharedAuthor, collect); err != nil {
				return nil, err
			}
		}
		if len(hits) >= limit {
			break
		}
	}

	if len(hits) > limit {
		hits = hits[:limit]
	}
	if len(hits) == 0 {
		return []*RelatedPaper{}, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.paperID
	}
	papers, err := s.store.GetPapers(ctx, ids...)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*core.Paper, len(papers))
	for _, p := range papers {
		byID[p.ID] = p
	}

	results := make([]*RelatedPaper, 0, len(hits))
	for _, h := range hits {
		paper, ok := byID[h.paperID]
		if !ok {
			continue
		}
		results = append(results, &RelatedPaper{
			Paper:      paper,
			LinkType:   h.linkType,
			EntityName: h.entityName,
		})
	}
	return results, nil
}

// collectShared follows the paper's entity links of one type to every other
// paper holding a link with the same (type, name).
func (s *Searcher) collectShared(ctx context.Context, paperID string, entityType core.EntityType, lt LinkType, collect func(string, LinkType, string)) error {
	links, err := s.store.GetEntityLinksByPaper(ctx, paperID)
	if err != nil {
		return err
	}
	for _, link := range links {
		if link.EntityType != entityType {
			continue
		}
		others, err := s.store.GetPapersByEntity(ctx, entityType, link.EntityName)
		if err != nil {
			return err
		}
		for _, other := range others {
			collect(other, lt, link.EntityName)
		}
	}
	return nil
}

// resolvePaper looks a paper up by internal ID first, then by arXiv ID.
func (s *Searcher) resolvePaper(ctx context.Context, id string) (*core.Paper, error) {
	paper, err := s.store.GetPaper(ctx, id)
	if err == nil {
		return paper, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	arxivID, normErr := core.NormalizeArxivID(id)
	if normErr != nil {
		return nil, err
	}
	return s.store.GetPaperByArxivID(ctx, arxivID)
}

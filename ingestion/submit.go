package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/ronbun/core"
	"github.com/poiesic/ronbun/queue"
	"github.com/poiesic/ronbun/storage"
)

// SubmitResult reports the paper a submission resolved to.
type SubmitResult struct {
	PaperID string
	ArxivID string
	Status  core.Status
}

// BatchRequest names the papers of one batch submission. Explicit IDs and
// the results of the catalog query are merged, explicit IDs first; the
// combined list is capped at 50 papers.
type BatchRequest struct {
	ArxivIDs []string
	Query    string
}

// BatchEntry is the per-paper outcome of a batch submission. Exactly one of
// Result and Err is set.
type BatchEntry struct {
	ArxivID string
	Result  *SubmitResult
	Err     error
}

// Submit registers a paper for ingestion and publishes its first stage
// message. It is idempotent for papers in any non-failed state: repeated
// calls return the existing paper without enqueuing anything. A previously
// failed paper is deleted and re-created under a fresh internal ID.
func (p *Pipeline) Submit(ctx context.Context, rawArxivID string) (*SubmitResult, error) {
	arxivID, err := core.NormalizeArxivID(rawArxivID)
	if err != nil {
		return nil, err
	}

	existing, err := p.store.GetPaperByArxivID(ctx, arxivID)
	switch {
	case err == nil:
		if existing.Status != core.StatusFailed {
			return &SubmitResult{
				PaperID: existing.ID,
				ArxivID: existing.ArxivID,
				Status:  existing.Status,
			}, nil
		}
		// A failed attempt is superseded: the old row and everything
		// derived from it go away, the retry gets a new internal ID.
		p.logger.Info("resubmitting failed paper",
			"arxiv_id", arxivID, "old_paper_id", existing.ID)
		if err := p.store.DeletePaper(ctx, existing.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	paper := &core.Paper{
		ArxivID: arxivID,
		Status:  core.StatusQueued,
	}
	added, err := p.store.AddPaper(ctx, paper)
	if err != nil {
		return nil, err
	}

	if err := p.publisher.Publish(ctx, queue.Message{
		PaperID: added.ID,
		ArxivID: arxivID,
		Stage:   core.StageMetadata,
	}); err != nil {
		return nil, err
	}

	p.logger.Info("paper submitted", "arxiv_id", arxivID, "paper_id", added.ID)
	return &SubmitResult{
		PaperID: added.ID,
		ArxivID: arxivID,
		Status:  core.StatusQueued,
	}, nil
}

// SubmitBatch submits every paper the request names. A failure on one paper
// is recorded in its entry and does not abort the rest of the batch.
func (p *Pipeline) SubmitBatch(ctx context.Context, req BatchRequest) ([]*BatchEntry, error) {
	if len(req.ArxivIDs) == 0 && req.Query == "" {
		return nil, ErrEmptyBatch
	}

	entries := make([]*BatchEntry, 0, len(req.ArxivIDs))
	seen := make(map[string]bool)
	ids := make([]string, 0, len(req.ArxivIDs))

	for _, raw := range req.ArxivIDs {
		id, err := core.NormalizeArxivID(raw)
		if err != nil {
			entries = append(entries, &BatchEntry{ArxivID: raw, Err: err})
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if req.Query != "" {
		found, err := p.catalog.Search(ctx, req.Query, maxBatchSubmit)
		if err != nil {
			return nil, fmt.Errorf("resolve batch query: %w", err)
		}
		for _, meta := range found {
			if !seen[meta.ArxivID] {
				seen[meta.ArxivID] = true
				ids = append(ids, meta.ArxivID)
			}
		}
	}

	if len(ids) > maxBatchSubmit {
		p.logger.Warn("batch capped", "requested", len(ids), "cap", maxBatchSubmit)
		ids = ids[:maxBatchSubmit]
	}

	for _, id := range ids {
		result, err := p.Submit(ctx, id)
		entries = append(entries, &BatchEntry{ArxivID: id, Result: result, Err: err})
	}
	return entries, nil
}

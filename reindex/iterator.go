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


package reindex

import (
	"context"

	"github.com/poiesic/ronbun/core"
	"github.com/poiesic/ronbun/storage"
)

const (
	// DefaultBatchSize is the default number of papers to fetch in each page
	DefaultBatchSize = 100
)

// PaperIterator iterates over all ready papers in pages.
type PaperIterator struct {
	store     storage.PaperRepository
	batchSize int
}

// NewPaperIterator creates a new paper iterator.
// batchSize: number of papers to fetch in each page (must be > 0)
func NewPaperIterator(store storage.PaperRepository, batchSize int) *PaperIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &PaperIterator{
		store:     store,
		batchSize: batchSize,
	}
}

// Count returns the number of ready papers. It walks the same pages ForEach
// will visit, so the count matches unless papers change between calls.
func (it *PaperIterator) Count(ctx context.Context) (int, error) {
	total := 0
	err := it.ForEach(ctx, func(papers []*core.Paper) error {
		total += len(papers)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ForEach iterates over all ready papers, calling fn for each page.
// Iteration stops on first error from fn or when all papers are visited.
// Context cancellation is checked between pages.
func (it *PaperIterator) ForEach(ctx context.Context, fn func([]*core.Paper) error) error {
	cursor := ""
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		papers, hasMore, err := it.store.ListPapers(ctx, storage.ListPapersQuery{
			Status: core.StatusReady,
			Cursor: cursor,
			Limit:  it.batchSize,
		})
		if err != nil {
			return err
		}

		if len(papers) > 0 {
			if err := fn(papers); err != nil {
				return err
			}
			cursor = papers[len(papers)-1].ID
		}

		if !hasMore {
			return nil
		}
	}
}

package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ronbun/core"
	"github.com/poiesic/ronbun/storage"
)

// paperSearchText is the text a paper is keyword-indexed under.
func paperSearchText(paper *core.Paper) string {
	return paper.Title + "\n" + paper.Abstract + "\n" + strings.Join(paper.Authors, "\n")
}

// AddPaper adds a paper to storage.
func (s *Store) AddPaper(ctx context.Context, paper *core.Paper) (*core.Paper, error) {
	if paper != nil && paper.ID == "" {
		paper.ID = core.NewID()
	}
	if err := core.ValidatePaper(paper); err != nil {
		return nil, err
	}
	if paper.CreatedAt.IsZero() {
		paper.CreatedAt = time.Now().UTC()
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		arxivKey := makePaperArxivKey(paper.ArxivID)
		_, err := tx.Get(arxivKey)
		if err == nil {
			return fmt.Errorf("%w: arxiv id %s", storage.ErrDuplicateKey, paper.ArxivID)
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		if err := tx.Set(makePaperKey(paper.ID), storage.MarshalPaper(paper)); err != nil {
			return err
		}
		if err := tx.Set(arxivKey, []byte(paper.ID)); err != nil {
			return err
		}
		if err := tx.Set(makePaperCreatedKey(paper.CreatedAt, paper.ID), []byte(paper.ID)); err != nil {
			return err
		}
		if err := indexDocument(tx, termDomainPaper, paper.ID, paperSearchText(paper), paper.CreatedAt.UnixMicro()); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return paper, nil
}

// UpdatePaper overwrites an existing paper, enforcing status transitions.
func (s *Store) UpdatePaper(ctx context.Context, paper *core.Paper) (*core.Paper, error) {
	if err := core.ValidatePaper(paper); err != nil {
		return nil, err
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		old, err := readPaper(tx, makePaperKey(paper.ID))
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		if old.Status != paper.Status && !old.Status.CanTransition(paper.Status) {
			return fmt.Errorf("%w: %s to %s", core.ErrIllegalTransition, old.Status, paper.Status)
		}

		if err := tx.Set(makePaperKey(paper.ID), storage.MarshalPaper(paper)); err != nil {
			return err
		}

		if old.ArxivID != paper.ArxivID {
			if err := tx.Delete(makePaperArxivKey(old.ArxivID)); err != nil {
				return err
			}
			if err := tx.Set(makePaperArxivKey(paper.ArxivID), []byte(paper.ID)); err != nil {
				return err
			}
		}

		oldText, newText := paperSearchText(old), paperSearchText(paper)
		if oldText != newText {
			if err := deindexDocument(tx, termDomainPaper, old.ID, oldText); err != nil {
				return err
			}
			if err := indexDocument(tx, termDomainPaper, paper.ID, newText, paper.CreatedAt.UnixMicro()); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return paper, nil
}

// SetPaperStatus advances a paper's lifecycle status. Setting the status the
// paper already has is a no-op, so redelivered pipeline messages can replay
// a completed stage without tripping the transition rules.
func (s *Store) SetPaperStatus(ctx context.Context, id string, next core.Status, errMsg string) (*core.Paper, error) {
	var result *core.Paper
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		paper, err := readPaper(tx, makePaperKey(id))
		if err != nil {
			return err
		}
		if paper == nil {
			return storage.ErrNotFound
		}

		if paper.Status == next {
			result = paper
			return nil
		}

		paper.Status, err = paper.Status.Transition(next)
		if err != nil {
			return err
		}

		paper.Error = ""
		switch next {
		case core.StatusFailed:
			paper.Error = errMsg
		case core.StatusReady:
			paper.IngestedAt = time.Now().UTC()
		}

		if err := tx.Set(makePaperKey(id), storage.MarshalPaper(paper)); err != nil {
			return err
		}
		result = paper
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetPaper retrieves a single paper by ID.
func (s *Store) GetPaper(ctx context.Context, id string) (*core.Paper, error) {
	var result *core.Paper
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readPaper(tx, makePaperKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetPapers retrieves multiple papers by their IDs.
func (s *Store) GetPapers(ctx context.Context, ids ...string) ([]*core.Paper, error) {
	var result []*core.Paper
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			paper, err := readPaper(tx, makePaperKey(id))
			if err != nil {
				return err
			}
			if paper != nil {
				result = append(result, paper)
			}
		}
		return nil
	}, false)
	return result, err
}

// GetPaperByArxivID retrieves a paper by its arXiv identifier.
func (s *Store) GetPaperByArxivID(ctx context.Context, arxivID string) (*core.Paper, error) {
	var result *core.Paper
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makePaperArxivKey(arxivID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		var paperID string
		if err := item.Value(func(val []byte) error {
			paperID = string(val)
			return nil
		}); err != nil {
			return err
		}

		result, err = readPaper(tx, makePaperKey(paperID))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListPapers returns one page of papers, newest first.
func (s *Store) ListPapers(ctx context.Context, query storage.ListPapersQuery) ([]*core.Paper, bool, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var (
		results []*core.Paper
		hasMore bool
	)
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		startKey := makePaperCreatedKey(time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC), "")
		if query.Cursor != "" {
			cursor, err := readPaper(tx, makePaperKey(query.Cursor))
			if err != nil {
				return err
			}
			if cursor == nil {
				return fmt.Errorf("%w: cursor %s", storage.ErrInvalidQuery, query.Cursor)
			}
			startKey = makePaperCreatedKey(cursor.CreatedAt, cursor.ID)
		}

		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefix := []byte(paperCreatedPrefix + ":")
		for iter.Seek(startKey); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if len(key) < len(prefix) || string(key[:len(prefix)]) != string(prefix) {
				break
			}

			var paperID string
			if err := iter.Item().Value(func(val []byte) error {
				paperID = string(val)
				return nil
			}); err != nil {
				return err
			}

			// The seek lands on the cursor's own entry; skip it.
			if query.Cursor != "" && paperID == query.Cursor {
				continue
			}

			paper, err := readPaper(tx, makePaperKey(paperID))
			if err != nil {
				return err
			}
			if paper == nil {
				continue
			}
			if query.Status != 0 && paper.Status != query.Status {
				continue
			}
			if query.Category != "" && !hasCategory(paper, query.Category) {
				continue
			}

			if len(results) == limit {
				hasMore = true
				break
			}
			results = append(results, paper)
		}
		return nil
	}, false)

	if err != nil {
		return nil, false, err
	}
	return results, hasMore, nil
}

func hasCategory(paper *core.Paper, category string) bool {
	for _, c := range paper.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// CountPapersByStatus returns the number of papers in each status.
func (s *Store) CountPapersByStatus(ctx context.Context) (map[core.Status]int, error) {
	counts := make(map[core.Status]int)
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(paperPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var paper *core.Paper
			err := iter.Item().Value(func(val []byte) error {
				var err error
				paper, err = storage.UnmarshalPaper(val)
				return err
			})
			if err != nil {
				return err
			}
			counts[paper.Status]++
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return counts, nil
}

// DeletePaper removes a paper and everything derived from it.
func (s *Store) DeletePaper(ctx context.Context, id string) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		paper, err := readPaper(tx, makePaperKey(id))
		if err != nil {
			return err
		}
		if paper == nil {
			return storage.ErrNotFound
		}

		if err := deleteSectionsForPaper(tx, id); err != nil {
			return err
		}
		if err := deleteExtractionsForPaper(tx, id); err != nil {
			return err
		}
		if err := deleteCitationsForSource(tx, id); err != nil {
			return err
		}
		if err := deleteEntityLinksForPaper(tx, id); err != nil {
			return err
		}
		if err := deleteVectorsForPaper(tx, id); err != nil {
			return err
		}

		if err := deindexDocument(tx, termDomainPaper, id, paperSearchText(paper)); err != nil {
			return err
		}
		if err := tx.Delete(makePaperCreatedKey(paper.CreatedAt, paper.ID)); err != nil {
			return err
		}
		if err := tx.Delete(makePaperArxivKey(paper.ArxivID)); err != nil {
			return err
		}
		if err := tx.Delete(makePaperKey(id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// SearchPapers performs keyword search over titles, abstracts and authors.
// Only ready papers are returned; papers still in the pipeline do not
// consume result slots.
func (s *Store) SearchPapers(ctx context.Context, query string, limit int) ([]*core.Paper, error) {
	var results []*core.Paper
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		_, err := searchTerms(tx, termDomainPaper, query, limit, func(id string) (bool, error) {
			paper, err := readPaper(tx, makePaperKey(id))
			if err != nil || paper == nil {
				return false, err
			}
			if paper.Status != core.StatusReady {
				return false, nil
			}
			results = append(results, paper)
			return true, nil
		})
		return err
	}, false)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// readPaper reads a paper from the transaction. Returns nil without error if
// the key is absent.
func readPaper(tx *badger.Txn, key []byte) (*core.Paper, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var paper *core.Paper
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		paper, unmarshalErr = storage.UnmarshalPaper(val)
		return unmarshalErr
	})
	return paper, err
}

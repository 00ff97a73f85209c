package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ronbun/core"
	"github.com/poiesic/ronbun/storage"
)

// ReplaceCitations atomically swaps a paper's outgoing citations for the
// given set. Citations targeting a known paper are indexed by target; the
// rest are indexed by target arXiv ID so they can be resolved later.
func (s *Store) ReplaceCitations(ctx context.Context, sourcePaperID string, citations []*core.Citation) ([]*core.Citation, error) {
	now := time.Now().UTC()
	for _, citation := range citations {
		citation.SourcePaperID = sourcePaperID
		if citation.ID == "" {
			citation.ID = core.NewID()
		}
		if citation.CreatedAt.IsZero() {
			citation.CreatedAt = now
		}
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if err := deleteCitationsForSource(tx, sourcePaperID); err != nil {
			return err
		}
		for _, citation := range citations {
			if err := writeCitation(tx, citation); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return citations, nil
}

func writeCitation(tx *badger.Txn, citation *core.Citation) error {
	if err := tx.Set(makeCitationKey(citation.ID), storage.MarshalCitation(citation)); err != nil {
		return err
	}
	if err := tx.Set(makeCitationSourceKey(citation.SourcePaperID, citation.ID), []byte(citation.ID)); err != nil {
		return err
	}
	if citation.TargetPaperID != "" {
		return tx.Set(makeCitationTargetKey(citation.TargetPaperID, citation.ID), []byte(citation.ID))
	}
	if citation.TargetArxivID != "" {
		return tx.Set(makeCitationArxivKey(citation.TargetArxivID, citation.ID), []byte(citation.ID))
	}
	return nil
}

// GetCitationsBySource retrieves a paper's outgoing citations.
func (s *Store) GetCitationsBySource(ctx context.Context, sourcePaperID string) ([]*core.Citation, error) {
	return s.citationsByIndex(makeCitationSourcePrefix(sourcePaperID))
}

// GetCitationsByTarget retrieves citations pointing at a local paper.
func (s *Store) GetCitationsByTarget(ctx context.Context, targetPaperID string) ([]*core.Citation, error) {
	return s.citationsByIndex(makeCitationTargetPrefix(targetPaperID))
}

func (s *Store) citationsByIndex(prefix []byte) ([]*core.Citation, error) {
	var results []*core.Citation
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var citationID string
			if err := iter.Item().Value(func(val []byte) error {
				citationID = string(val)
				return nil
			}); err != nil {
				return err
			}

			citation, err := readCitation(tx, makeCitationKey(citationID))
			if err != nil {
				return err
			}
			if citation != nil {
				results = append(results, citation)
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// ResolveCitations links dangling citations referencing the given arXiv ID
// to the paper that now carries it.
func (s *Store) ResolveCitations(ctx context.Context, arxivID, paperID string) (int, error) {
	resolved := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeCitationArxivPrefix(arxivID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)

		var citationIDs []string
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var citationID string
			if err := iter.Item().Value(func(val []byte) error {
				citationID = string(val)
				return nil
			}); err != nil {
				iter.Close()
				return err
			}
			citationIDs = append(citationIDs, citationID)
		}
		iter.Close()

		for _, citationID := range citationIDs {
			citation, err := readCitation(tx, makeCitationKey(citationID))
			if err != nil {
				return err
			}
			if citation == nil || citation.TargetPaperID != "" {
				continue
			}

			citation.TargetPaperID = paperID
			if err := tx.Set(makeCitationKey(citationID), storage.MarshalCitation(citation)); err != nil {
				return err
			}
			if err := tx.Set(makeCitationTargetKey(paperID, citationID), []byte(citationID)); err != nil {
				return err
			}
			if err := tx.Delete(makeCitationArxivKey(arxivID, citationID)); err != nil {
				return err
			}
			resolved++
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return 0, err
	}
	return resolved, nil
}

// deleteCitationsForSource removes a paper's outgoing citations and their
// index entries within the transaction.
func deleteCitationsForSource(tx *badger.Txn, sourcePaperID string) error {
	prefix := makeCitationSourcePrefix(sourcePaperID)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)

	var citationIDs []string
	for iter.Rewind(); iter.Valid(); iter.Next() {
		var citationID string
		if err := iter.Item().Value(func(val []byte) error {
			citationID = string(val)
			return nil
		}); err != nil {
			iter.Close()
			return err
		}
		citationIDs = append(citationIDs, citationID)
	}
	iter.Close()

	for _, citationID := range citationIDs {
		citation, err := readCitation(tx, makeCitationKey(citationID))
		if err != nil {
			return err
		}
		if err := tx.Delete(makeCitationSourceKey(sourcePaperID, citationID)); err != nil {
			return err
		}
		if citation == nil {
			continue
		}
		if citation.TargetPaperID != "" {
			if err := tx.Delete(makeCitationTargetKey(citation.TargetPaperID, citationID)); err != nil {
				return err
			}
		} else if citation.TargetArxivID != "" {
			if err := tx.Delete(makeCitationArxivKey(citation.TargetArxivID, citationID)); err != nil {
				return err
			}
		}
		if err := tx.Delete(makeCitationKey(citationID)); err != nil {
			return err
		}
	}
	return nil
}

// readCitation reads a citation from the transaction. Returns nil without
// error if the key is absent.
func readCitation(tx *badger.Txn, key []byte) (*core.Citation, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var citation *core.Citation
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		citation, unmarshalErr = storage.UnmarshalCitation(val)
		return unmarshalErr
	})
	return citation, err
}

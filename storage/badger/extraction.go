package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ronbun/core"
	"github.com/poiesic/ronbun/storage"
)

func extractionSearchText(extraction *core.Extraction) string {
	return extraction.Name + "\n" + extraction.Detail
}

// ReplaceExtractions atomically swaps a paper's extractions for the given set.
func (s *Store) ReplaceExtractions(ctx context.Context, paperID string, extractions []*core.Extraction) ([]*core.Extraction, error) {
	for _, extraction := range extractions {
		extraction.PaperID = paperID
		if extraction.ID == "" {
			extraction.ID = core.NewID()
		}
		if err := core.ValidateExtraction(extraction); err != nil {
			return nil, err
		}
		if extraction.CreatedAt.IsZero() {
			extraction.CreatedAt = time.Now().UTC()
		}
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if err := deleteExtractionsForPaper(tx, paperID); err != nil {
			return err
		}
		for _, extraction := range extractions {
			if err := tx.Set(makeExtractionKey(extraction.ID), storage.MarshalExtraction(extraction)); err != nil {
				return err
			}
			if err := tx.Set(makeExtractionPaperKey(paperID, extraction.ID), []byte(extraction.ID)); err != nil {
				return err
			}
			if err := indexDocument(tx, termDomainExtraction, extraction.ID, extractionSearchText(extraction), extraction.CreatedAt.UnixMicro()); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return extractions, nil
}

// GetExtractionsByPaper retrieves all extractions for a paper.
func (s *Store) GetExtractionsByPaper(ctx context.Context, paperID string) ([]*core.Extraction, error) {
	var results []*core.Extraction
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeExtractionPaperPrefix(paperID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var extractionID string
			if err := iter.Item().Value(func(val []byte) error {
				extractionID = string(val)
				return nil
			}); err != nil {
				return err
			}

			extraction, err := readExtraction(tx, makeExtractionKey(extractionID))
			if err != nil {
				return err
			}
			if extraction != nil {
				results = append(results, extraction)
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// SearchExtractions performs keyword search over names and details.
func (s *Store) SearchExtractions(ctx context.Context, query string, extractionType core.ExtractionType, limit int) ([]*core.Extraction, error) {
	var results []*core.Extraction
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		// The keyword index is type-blind; filter before the limit so
		// mismatched types do not consume result slots.
		_, err := searchTerms(tx, termDomainExtraction, query, limit, func(id string) (bool, error) {
			extraction, err := readExtraction(tx, makeExtractionKey(id))
			if err != nil || extraction == nil {
				return false, err
			}
			if extractionType != 0 && extraction.Type != extractionType {
				return false, nil
			}
			results = append(results, extraction)
			return true, nil
		})
		return err
	}, false)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// deleteExtractionsForPaper removes a paper's extractions, their index
// entries and keyword postings within the transaction.
func deleteExtractionsForPaper(tx *badger.Txn, paperID string) error {
	prefix := makeExtractionPaperPrefix(paperID)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)

	type pendingDelete struct {
		indexKey   []byte
		extraction *core.Extraction
	}
	var pending []pendingDelete

	for iter.Rewind(); iter.Valid(); iter.Next() {
		indexKey := iter.Item().KeyCopy(nil)
		var extractionID string
		if err := iter.Item().Value(func(val []byte) error {
			extractionID = string(val)
			return nil
		}); err != nil {
			iter.Close()
			return err
		}

		extraction, err := readExtraction(tx, makeExtractionKey(extractionID))
		if err != nil {
			iter.Close()
			return err
		}
		pending = append(pending, pendingDelete{indexKey: indexKey, extraction: extraction})
	}
	iter.Close()

	for _, p := range pending {
		if err := tx.Delete(p.indexKey); err != nil {
			return err
		}
		if p.extraction == nil {
			continue
		}
		if err := deindexDocument(tx, termDomainExtraction, p.extraction.ID, extractionSearchText(p.extraction)); err != nil {
			return err
		}
		if err := tx.Delete(makeExtractionKey(p.extraction.ID)); err != nil {
			return err
		}
	}
	return nil
}

// readExtraction reads an extraction from the transaction. Returns nil
// without error if the key is absent.
func readExtraction(tx *badger.Txn, key []byte) (*core.Extraction, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var extraction *core.Extraction
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		extraction, unmarshalErr = storage.UnmarshalExtraction(val)
		return unmarshalErr
	})
	return extraction, err
}

package badger

import (
	"context"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ronbun/core"
	"github.com/poiesic/ronbun/storage"
)

// UpsertSectionVectors stores section embeddings, overwriting any existing
// vector for the same section.
func (s *Store) UpsertSectionVectors(ctx context.Context, vectors ...*core.SectionVector) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, vec := range vectors {
			if err := tx.Set(makeVectorKey(vec.SectionID), storage.MarshalSectionVector(vec)); err != nil {
				return err
			}
			if err := tx.Set(makeVectorPaperKey(vec.PaperID, vec.SectionID), []byte(vec.SectionID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteSectionVectorsByPaper removes all of a paper's section vectors.
func (s *Store) DeleteSectionVectorsByPaper(ctx context.Context, paperID string) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := deleteVectorsForPaper(tx, paperID); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// FindSimilarSections finds sections similar to the given vector using a
// full scan over stored embeddings. Vectors are assumed normalized, so the
// dot product is the cosine similarity.
func (s *Store) FindSimilarSections(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SectionMatch, error) {
	var results []*core.SectionMatch

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var vec *core.SectionVector
			err := iter.Item().Value(func(val []byte) error {
				var err error
				vec, err = storage.UnmarshalSectionVector(val)
				return err
			})
			if err != nil {
				return err
			}
			if vec == nil || len(vec.Vector) == 0 {
				continue
			}

			similarity := dotProduct(vector, vec.Vector)
			if similarity >= minSimilarity {
				results = append(results, &core.SectionMatch{
					SectionID: vec.SectionID,
					PaperID:   vec.PaperID,
					Score:     similarity,
				})
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.SectionMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// deleteVectorsForPaper removes a paper's section vectors and index entries
// within the transaction.
func deleteVectorsForPaper(tx *badger.Txn, paperID string) error {
	prefix := makeVectorPaperPrefix(paperID)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)

	type pendingDelete struct {
		indexKey  []byte
		sectionID string
	}
	var pending []pendingDelete

	for iter.Rewind(); iter.Valid(); iter.Next() {
		indexKey := iter.Item().KeyCopy(nil)
		var sectionID string
		if err := iter.Item().Value(func(val []byte) error {
			sectionID = string(val)
			return nil
		}); err != nil {
			iter.Close()
			return err
		}
		pending = append(pending, pendingDelete{indexKey: indexKey, sectionID: sectionID})
	}
	iter.Close()

	for _, p := range pending {
		if err := tx.Delete(p.indexKey); err != nil {
			return err
		}
		if err := tx.Delete(makeVectorKey(p.sectionID)); err != nil {
			return err
		}
	}
	return nil
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ronbun/core"
	"github.com/poiesic/ronbun/storage"
)

// PutEntityLinks upserts entity links. IDs are derived from
// (paper, type, name), so writing the same link twice is a no-op overwrite.
func (s *Store) PutEntityLinks(ctx context.Context, links ...*core.EntityLink) ([]*core.EntityLink, error) {
	now := time.Now().UTC()
	for _, link := range links {
		link.ID = core.LinkID(link.PaperID, link.EntityType, link.EntityName)
		if link.CreatedAt.IsZero() {
			link.CreatedAt = now
		}
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, link := range links {
			if err := tx.Set(makeLinkKey(link.ID), storage.MarshalEntityLink(link)); err != nil {
				return err
			}
			if err := tx.Set(makeLinkPaperKey(link.PaperID, link.ID), []byte(link.ID)); err != nil {
				return err
			}
			if err := tx.Set(makeLinkEntityKey(link.EntityType, link.EntityName, link.PaperID), []byte(link.PaperID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return links, nil
}

// DeleteEntityLinksByType removes a paper's links of the given types.
func (s *Store) DeleteEntityLinksByType(ctx context.Context, paperID string, types ...core.EntityType) error {
	wanted := make(map[core.EntityType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		links, err := readEntityLinksForPaper(tx, paperID)
		if err != nil {
			return err
		}
		for _, link := range links {
			if !wanted[link.EntityType] {
				continue
			}
			if err := deleteEntityLink(tx, link); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetEntityLinksByPaper retrieves all entity links for a paper.
func (s *Store) GetEntityLinksByPaper(ctx context.Context, paperID string) ([]*core.EntityLink, error) {
	var results []*core.EntityLink
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		results, err = readEntityLinksForPaper(tx, paperID)
		return err
	}, false)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetPapersByEntity returns IDs of papers linked to the named entity.
func (s *Store) GetPapersByEntity(ctx context.Context, entityType core.EntityType, entityName string) ([]string, error) {
	var paperIDs []string
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeLinkEntityPrefix(entityType, entityName)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := iter.Item().Value(func(val []byte) error {
				paperIDs = append(paperIDs, string(val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return paperIDs, nil
}

// deleteEntityLinksForPaper removes all of a paper's entity links within the
// transaction.
func deleteEntityLinksForPaper(tx *badger.Txn, paperID string) error {
	links, err := readEntityLinksForPaper(tx, paperID)
	if err != nil {
		return err
	}
	for _, link := range links {
		if err := deleteEntityLink(tx, link); err != nil {
			return err
		}
	}
	return nil
}

func deleteEntityLink(tx *badger.Txn, link *core.EntityLink) error {
	if err := tx.Delete(makeLinkEntityKey(link.EntityType, link.EntityName, link.PaperID)); err != nil {
		return err
	}
	if err := tx.Delete(makeLinkPaperKey(link.PaperID, link.ID)); err != nil {
		return err
	}
	return tx.Delete(makeLinkKey(link.ID))
}

func readEntityLinksForPaper(tx *badger.Txn, paperID string) ([]*core.EntityLink, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeLinkPaperPrefix(paperID)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var results []*core.EntityLink
	for iter.Rewind(); iter.Valid(); iter.Next() {
		var linkID string
		if err := iter.Item().Value(func(val []byte) error {
			linkID = string(val)
			return nil
		}); err != nil {
			return nil, err
		}

		item, err := tx.Get(makeLinkKey(linkID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				continue
			}
			return nil, err
		}

		var link *core.EntityLink
		if err := item.Value(func(val []byte) error {
			var unmarshalErr error
			link, unmarshalErr = storage.UnmarshalEntityLink(val)
			return unmarshalErr
		}); err != nil {
			return nil, err
		}
		results = append(results, link)
	}
	return results, nil
}

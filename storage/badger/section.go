package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ronbun/core"
	"github.com/poiesic/ronbun/storage"
)

func sectionSearchText(section *core.Section) string {
	return section.Heading + "\n" + section.Content
}

// ReplaceSections atomically swaps a paper's sections for the given set.
func (s *Store) ReplaceSections(ctx context.Context, paperID string, sections []*core.Section) ([]*core.Section, error) {
	for _, section := range sections {
		section.PaperID = paperID
		if section.ID == "" {
			section.ID = core.NewID()
		}
		if err := core.ValidateSection(section); err != nil {
			return nil, err
		}
		if section.CreatedAt.IsZero() {
			section.CreatedAt = time.Now().UTC()
		}
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if err := deleteSectionsForPaper(tx, paperID); err != nil {
			return err
		}
		for _, section := range sections {
			if err := tx.Set(makeSectionKey(section.ID), storage.MarshalSection(section)); err != nil {
				return err
			}
			if err := tx.Set(makeSectionPaperKey(paperID, section.Position), []byte(section.ID)); err != nil {
				return err
			}
			if err := indexDocument(tx, termDomainSection, section.ID, sectionSearchText(section), section.CreatedAt.UnixMicro()); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return sections, nil
}

// GetSection retrieves a single section by ID.
func (s *Store) GetSection(ctx context.Context, id string) (*core.Section, error) {
	var result *core.Section
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readSection(tx, makeSectionKey(id))
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

// GetSectionsByPaper retrieves a paper's sections ordered by position.
func (s *Store) GetSectionsByPaper(ctx context.Context, paperID string) ([]*core.Section, error) {
	var results []*core.Section
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeSectionPaperPrefix(paperID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var sectionID string
			if err := iter.Item().Value(func(val []byte) error {
				sectionID = string(val)
				return nil
			}); err != nil {
				return err
			}

			section, err := readSection(tx, makeSectionKey(sectionID))
			if err != nil {
				return err
			}
			if section != nil {
				results = append(results, section)
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// SearchSections performs keyword search over headings and content. Only
// sections of ready papers are returned; sections of papers still in the
// pipeline do not consume result slots.
func (s *Store) SearchSections(ctx context.Context, query string, limit int) ([]*core.Section, error) {
	var results []*core.Section
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		ready := make(map[string]bool)
		_, err := searchTerms(tx, termDomainSection, query, limit, func(id string) (bool, error) {
			section, err := readSection(tx, makeSectionKey(id))
			if err != nil || section == nil {
				return false, err
			}
			ok, cached := ready[section.PaperID]
			if !cached {
				paper, err := readPaper(tx, makePaperKey(section.PaperID))
				if err != nil {
					return false, err
				}
				ok = paper != nil && paper.Status == core.StatusReady
				ready[section.PaperID] = ok
			}
			if !ok {
				return false, nil
			}
			results = append(results, section)
			return true, nil
		})
		return err
	}, false)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// deleteSectionsForPaper removes a paper's sections, their index entries and
// keyword postings within the transaction.
func deleteSectionsForPaper(tx *badger.Txn, paperID string) error {
	prefix := makeSectionPaperPrefix(paperID)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)

	type pendingDelete struct {
		indexKey []byte
		section  *core.Section
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

		section, err := readSection(tx, makeSectionKey(sectionID))
		if err != nil {
			iter.Close()
			return err
		}
		pending = append(pending, pendingDelete{indexKey: indexKey, section: section})
	}
	iter.Close()

	for _, p := range pending {
		if err := tx.Delete(p.indexKey); err != nil {
			return err
		}
		if p.section == nil {
			continue
		}
		if err := deindexDocument(tx, termDomainSection, p.section.ID, sectionSearchText(p.section)); err != nil {
			return err
		}
		if err := tx.Delete(makeSectionKey(p.section.ID)); err != nil {
			return err
		}
	}
	return nil
}

// readSection reads a section from the transaction. Returns nil without error
// if the key is absent.
func readSection(tx *badger.Txn, key []byte) (*core.Section, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var section *core.Section
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		section, unmarshalErr = storage.UnmarshalSection(val)
		return unmarshalErr
	})
	return section, err
}

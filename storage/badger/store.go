package badger

import (
	"context"
	"log/slog"

	"github.com/poiesic/ronbun/storage"
)

// Store implements storage.Store for BadgerDB. All repositories share one
// backend so cross-record operations run in a single transaction.
type Store struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// NewStore opens a BadgerDB-backed store at the given path.
func NewStore(filePath string) (storage.Store, error) {
	backend, err := OpenBackend(filePath, false)
	if err != nil {
		return nil, err
	}
	return newStore(backend), nil
}

// NewMemoryStore creates an in-memory store, primarily for testing.
func NewMemoryStore() (storage.Store, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	return newStore(backend), nil
}

func newStore(backend *Backend) *Store {
	return &Store{
		backend: backend,
		logger:  slog.Default().With("component", "storage"),
	}
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// WithTransaction delegates to the backend.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.backend.WithTransaction(ctx, fn)
}

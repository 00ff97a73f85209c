package ronbun

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/ronbun/ai/mock"
	"github.com/poiesic/ronbun/blob"
	"github.com/poiesic/ronbun/reindex"
)

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		db, err := NewDatabase(tmpDir, WithProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		assert.NotNil(t, db.Store())
		assert.NotNil(t, db.Blobs())
		assert.NotNil(t, db.Catalog())
		assert.NotNil(t, db.Provider())
	})

	t.Run("in-memory store", func(t *testing.T) {
		db, err := NewDatabase("", WithInMemoryStore(),
			WithBlobStore(mustFSStore(t)), WithProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		db, err := NewDatabase(tmpFile, WithProvider(mock.NewMockProvider()))
		assert.Error(t, err)
		assert.Nil(t, db)
	})
}

func TestDatabase_Close(t *testing.T) {
	db, err := NewDatabase(filepath.Join(t.TempDir(), "db"), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)

	err = db.Close()
	assert.NoError(t, err)
}

func TestDatabase_FactoryMethods(t *testing.T) {
	db, err := NewDatabase(filepath.Join(t.TempDir(), "db"), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer db.Close()

	t.Run("can create ingestion pipeline", func(t *testing.T) {
		pipeline, q, err := db.NewIngestionPipeline(2)
		require.NoError(t, err)
		require.NotNil(t, pipeline)
		require.NotNil(t, q)
		q.Close()
	})

	t.Run("can create sweeper", func(t *testing.T) {
		pipeline, q, err := db.NewIngestionPipeline(1)
		require.NoError(t, err)
		defer q.Close()

		sweeper, err := db.NewSweeper(pipeline, []string{"cs"})
		require.NoError(t, err)
		require.NotNil(t, sweeper)
	})

	t.Run("can create searcher", func(t *testing.T) {
		searcher, err := db.NewSearcher()
		require.NoError(t, err)
		require.NotNil(t, searcher)
	})

	t.Run("can create reindexer", func(t *testing.T) {
		reindexer := db.NewReindexer(reindex.DefaultConfig(), os.Stderr)
		require.NotNil(t, reindexer)
	})
}

func mustFSStore(t *testing.T) blob.Store {
	t.Helper()
	store, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)
	return store
}

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


package ronbun

import (
	"context"
	"io"
	"log/slog"

	"github.com/poiesic/ronbun/ai"
	"github.com/poiesic/ronbun/ai/openai"
	"github.com/poiesic/ronbun/arxiv"
	"github.com/poiesic/ronbun/blob"
	"github.com/poiesic/ronbun/ingestion"
	"github.com/poiesic/ronbun/queue"
	"github.com/poiesic/ronbun/reindex"
	"github.com/poiesic/ronbun/search"
	"github.com/poiesic/ronbun/storage"
	badgerstore "github.com/poiesic/ronbun/storage/badger"
)

// Database bundles the storage backend, the blob store, the arXiv catalog
// client and the AI provider, and hands out the pipeline, searcher and
// reindexer built over them.
type Database struct {
	store    storage.Store
	blobs    blob.Store
	catalog  *arxiv.Client
	provider ai.Provider
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	blobs    blob.Store
	catalog  *arxiv.Client
	provider ai.Provider
	inMemory bool
}

// WithAIConfig sets the AI provider configuration.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithBlobStore overrides the default filesystem blob store.
func WithBlobStore(blobs blob.Store) DatabaseOption {
	return func(o *databaseOptions) {
		o.blobs = blobs
	}
}

// WithCatalog overrides the default arXiv catalog client.
func WithCatalog(catalog *arxiv.Client) DatabaseOption {
	return func(o *databaseOptions) {
		o.catalog = catalog
	}
}

// WithProvider overrides the default openai-compatible AI provider,
// primarily for tests.
func WithProvider(provider ai.Provider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithInMemoryStore keeps all records in memory instead of opening the
// database file. The filePath argument is ignored.
func WithInMemoryStore() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// NewDatabase opens the paper database at filePath. Unless overridden,
// fetched documents are archived under filePath + "-blobs" and the AI
// provider connects to the default local hosts.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	var (
		store storage.Store
		err   error
	)
	if options.inMemory {
		store, err = badgerstore.NewMemoryStore()
	} else {
		store, err = badgerstore.NewStore(filePath)
	}
	if err != nil {
		return nil, err
	}

	blobs := options.blobs
	if blobs == nil {
		blobs, err = blob.NewFSStore(filePath + "-blobs")
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	catalog := options.catalog
	if catalog == nil {
		catalog = arxiv.NewClient()
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	return &Database{
		store:    store,
		blobs:    blobs,
		catalog:  catalog,
		provider: provider,
		logger:   slog.Default(),
	}, nil
}

func (db *Database) Close() error {
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}
	if err := db.store.Close(); err != nil {
		db.logger.Error("error closing storage backend", "err", err)
		return err
	}
	return nil
}

func (db *Database) Store() storage.Store {
	return db.store
}

func (db *Database) Blobs() blob.Store {
	return db.blobs
}

func (db *Database) Catalog() *arxiv.Client {
	return db.catalog
}

func (db *Database) Provider() ai.Provider {
	return db.provider
}

// NewIngestionPipeline creates an ingestion pipeline together with the
// queue that feeds it. workers <= 0 uses the queue's default pool size.
// The caller owns the returned queue and must Close it.
func (db *Database) NewIngestionPipeline(workers int, opts ...ingestion.Option) (*ingestion.Pipeline, *queue.Queue, error) {
	var pipeline *ingestion.Pipeline

	var queueOpts []queue.Option
	if workers > 0 {
		queueOpts = append(queueOpts, queue.WithWorkers(workers))
	}

	// The queue consumes into the pipeline, and the pipeline publishes the
	// next stage back onto the queue. The handler closure breaks the cycle.
	q, err := queue.New(func(ctx context.Context, msg queue.Message) error {
		return pipeline.HandleMessage(ctx, msg)
	}, queueOpts...)
	if err != nil {
		return nil, nil, err
	}

	pipeline, err = ingestion.NewPipeline(db.store, db.catalog, db.blobs, q, db.provider, opts...)
	if err != nil {
		q.Close()
		return nil, nil, err
	}
	return pipeline, q, nil
}

// NewSweeper creates a scheduled OAI-PMH sweeper submitting new papers in
// the given sets through the pipeline.
func (db *Database) NewSweeper(pipeline *ingestion.Pipeline, sets []string, opts ...ingestion.SweepOption) (*ingestion.Sweeper, error) {
	return ingestion.NewSweeper(pipeline, arxiv.NewOAIClient(), sets, opts...)
}

func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(db.store, db.provider, opts...)
}

// NewReindexer creates a reindexer that reembeds every ready paper's
// sections, writing progress to the given writer.
func (db *Database) NewReindexer(config *reindex.Config, progress io.Writer) *reindex.Reindexer {
	return reindex.NewReindexer(db.store, db.provider.Embedder(), config, progress)
}

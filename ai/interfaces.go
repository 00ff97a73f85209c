package ai

import (
	"context"

	"github.com/poiesic/ronbun/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// KnowledgeExtractor pulls typed knowledge items out of section text.
// Implementations must be thread-safe for concurrent use.
type KnowledgeExtractor interface {
	// ExtractKnowledge analyzes a section of paper text and extracts the
	// methods, datasets, baselines, metrics, results, contributions, and
	// limitations it describes.
	// Returns an empty slice if nothing is found.
	// Returns an error if extraction fails.
	ExtractKnowledge(ctx context.Context, text string) ([]KnowledgeItem, error)
}

// KnowledgeItem is a single typed item identified in section text.
type KnowledgeItem struct {
	// Type categorizes the item (method, dataset, baseline, and so on).
	Type core.ExtractionType

	// Name is a short identifier for the item, such as a method or
	// dataset name. Example: "contrastive pretraining", "ImageNet".
	Name string

	// Detail is a one sentence description of the item in context.
	Detail string
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and KnowledgeExtractor instances,
// ensuring they share configuration and resources appropriately.
type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// KnowledgeExtractor returns the knowledge extraction service.
	// The returned KnowledgeExtractor is safe for concurrent use.
	KnowledgeExtractor() KnowledgeExtractor

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}

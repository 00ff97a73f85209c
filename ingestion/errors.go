package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a store is not provided.
	ErrStoreRequired = errors.New("store required")

	// ErrCatalogRequired is returned when a catalog client is not provided.
	ErrCatalogRequired = errors.New("catalog client required")

	// ErrBlobStoreRequired is returned when a blob store is not provided.
	ErrBlobStoreRequired = errors.New("blob store required")

	// ErrPublisherRequired is returned when a queue publisher is not provided.
	ErrPublisherRequired = errors.New("queue publisher required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrEmptyBatch is returned when a batch submission names neither
	// papers nor a catalog query.
	ErrEmptyBatch = errors.New("batch needs arxiv ids or a query")

	// ErrContentUnavailable is returned by the content stage when neither
	// the HTML nor the PDF rendition of a paper could be fetched. It is a
	// permanent failure; redelivering the message will not help.
	ErrContentUnavailable = errors.New("paper content unavailable")

	// ErrUnknownStage is returned for queue messages naming a stage the
	// pipeline does not handle.
	ErrUnknownStage = errors.New("unknown pipeline stage")
)

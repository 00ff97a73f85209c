// Package blob provides archival storage for fetched paper artifacts.
// Source documents are kept verbatim so papers can be re-parsed without
// refetching from arXiv.
package blob

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested object does not exist.
var ErrNotFound = errors.New("blob not found")

// Store persists raw fetched artifacts by key.
type Store interface {
	// Put stores an object under the given key, overwriting any existing
	// object.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get retrieves an object. Returns ErrNotFound if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes an object. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// HTMLKey is the archive key for a paper's fetched HTML source.
func HTMLKey(paperID string) string {
	return fmt.Sprintf("html/%s.html", paperID)
}

// PDFKey is the archive key for a paper's fetched PDF.
func PDFKey(paperID string) string {
	return fmt.Sprintf("pdf/%s.pdf", paperID)
}

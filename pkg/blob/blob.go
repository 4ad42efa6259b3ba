// Package blob provides opaque binary storage for article images. The core
// only depends on the Store interface; the bytes live wherever the
// implementation puts them, addressed by the returned URI.
package blob

import "context"

// Store is an opaque blob store keyed by URI.
type Store interface {
	// Put stores data under the given path and returns the URI addressing it.
	Put(ctx context.Context, path string, data []byte) (string, error)
	// Get retrieves the bytes addressed by a URI previously returned by Put.
	Get(ctx context.Context, uri string) ([]byte, error)
}

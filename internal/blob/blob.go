// Package blob abstracts binary object storage for product images.
package blob

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned when a path or URL has no stored object
var ErrObjectNotFound = errors.New("object not found")

// Store uploads, downloads and deletes binary objects addressed by path.
// Upload returns a URL the object can later be retrieved from.
type Store interface {
	Upload(ctx context.Context, data []byte, path string) (string, error)
	Download(ctx context.Context, url string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

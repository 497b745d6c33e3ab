package blob

import (
	"context"
	"errors"
)

// ErrStorageDisabled is returned by NoopStore for every operation
var ErrStorageDisabled = errors.New("blob storage is not configured")

// NoopStore is a Store used when no bucket is configured. Every call fails
// with ErrStorageDisabled, keeping the rest of the app working without
// image support.
type NoopStore struct{}

// NewNoopStore creates a new NoopStore
func NewNoopStore() *NoopStore {
	return &NoopStore{}
}

func (s *NoopStore) Upload(ctx context.Context, data []byte, path string) (string, error) {
	return "", ErrStorageDisabled
}

func (s *NoopStore) Download(ctx context.Context, url string) ([]byte, error) {
	return nil, ErrStorageDisabled
}

func (s *NoopStore) Delete(ctx context.Context, path string) error {
	return ErrStorageDisabled
}

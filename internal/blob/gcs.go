package blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore stores objects in a Google Cloud Storage bucket and serves them
// through the bucket's public URL (or a CDN domain when configured).
type GCSStore struct {
	client    *storage.Client
	bucket    string
	cdnDomain string
}

// NewGCSStore creates a blob store over the named bucket. cdnDomain may be
// empty, in which case objects are addressed via storage.googleapis.com.
func NewGCSStore(ctx context.Context, bucket, cdnDomain string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &GCSStore{client: client, bucket: bucket, cdnDomain: cdnDomain}, nil
}

// Upload writes the object and returns its public URL
func (s *GCSStore) Upload(ctx context.Context, data []byte, path string) (string, error) {
	writer := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	writer.ContentType = contentTypeFor(path)

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to write object %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object %s: %w", path, err)
	}

	return s.publicURL(path), nil
}

// Download reads an object back by its URL
func (s *GCSStore) Download(ctx context.Context, url string) ([]byte, error) {
	path := s.pathFromURL(url)

	reader, err := s.client.Bucket(s.bucket).Object(path).NewReader(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open object %s: %w", path, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", path, err)
	}
	return data, nil
}

// Delete removes an object by path or public URL
func (s *GCSStore) Delete(ctx context.Context, path string) error {
	path = s.pathFromURL(path)

	err := s.client.Bucket(s.bucket).Object(path).Delete(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete object %s: %w", path, err)
	}
	return nil
}

// Close releases the underlying storage client
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) publicURL(path string) string {
	if s.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, path)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, path)
}

// pathFromURL accepts either a bare object path or a URL minted by publicURL
func (s *GCSStore) pathFromURL(url string) string {
	for _, prefix := range []string{
		fmt.Sprintf("https://storage.googleapis.com/%s/", s.bucket),
		fmt.Sprintf("https://%s/", s.cdnDomain),
	} {
		if s.cdnDomain == "" && strings.HasPrefix(prefix, "https:///") {
			continue
		}
		if strings.HasPrefix(url, prefix) {
			return strings.TrimPrefix(url, prefix)
		}
	}
	return url
}

func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

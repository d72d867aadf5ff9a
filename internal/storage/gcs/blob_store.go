// Package gcs provides a BlobStore backed by Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// BlobStore writes media assets to a configured GCS bucket. The blob id is
// the object path within the bucket, so downloads need no extra lookup.
type BlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Upload stores the bytes under a unique object path and returns it as the
// blob id. The filename hint is preserved as the path's last segment.
func (s *BlobStore) Upload(ctx context.Context, name string, data []byte) (string, error) {
	id := s.objectPath(name)
	writer := s.client.Bucket(s.bucket).Object(id).NewWriter(ctx)
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return id, nil
}

// Open streams a previously uploaded blob back out.
func (s *BlobStore) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("blob id is required")
	}
	reader, err := s.client.Bucket(s.bucket).Object(id).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %q: %w", id, err)
	}
	return reader, nil
}

func (s *BlobStore) objectPath(name string) string {
	name = strings.Trim(name, "/")
	if name == "" {
		name = "image"
	}
	if s.prefix == "" {
		return fmt.Sprintf("%s/%s", uuid.NewString(), name)
	}
	return fmt.Sprintf("%s/%s/%s", s.prefix, uuid.NewString(), name)
}

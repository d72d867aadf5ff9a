package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// BlobStore stores media bytes in-memory behind opaque ids.
type BlobStore struct {
	mu    sync.RWMutex
	data  map[string][]byte
	names map[string]string
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		data:  make(map[string][]byte),
		names: make(map[string]string),
	}
}

// Upload persists the content and returns a fresh id.
func (s *BlobStore) Upload(_ context.Context, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.data[id] = append([]byte(nil), data...)
	s.names[id] = name
	return id, nil
}

// Open streams a previously uploaded blob back out.
func (s *BlobStore) Open(_ context.Context, id string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("blob %q not found", id)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Name returns the filename hint recorded at upload time.
func (s *BlobStore) Name(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.names[id]
}

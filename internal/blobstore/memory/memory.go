package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/kgellert/lagoon-messenger/internal/blobstore"
)

type blob struct {
	data        []byte
	contentType string
}

type Store struct {
	mu    sync.Mutex
	blobs map[string]blob
}

func New() *Store {
	return &Store{blobs: make(map[string]blob)}
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	const op = "blobstore.memory.Put"

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%s: read: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = blob{data: data, contentType: contentType}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.blobs[key]
	if !ok {
		return nil, "", blobstore.ErrBlobNotFound
	}

	return io.NopCloser(bytes.NewReader(b.data)), b.contentType, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[key]; !ok {
		return blobstore.ErrBlobNotFound
	}
	delete(s.blobs, key)

	return nil
}

// Len reports how many blobs are stored. Test helper.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

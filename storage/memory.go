package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryStore is an in-process blob store with the same key and URL rules as
// MinioStore.
type MemoryStore struct {
	publicBase string

	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// NewMemoryStore returns an empty store whose public URLs start with base.
func NewMemoryStore(publicBase string) *MemoryStore {
	return &MemoryStore{publicBase: publicBase, objects: make(map[string]memoryObject)}
}

func (s *MemoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read upload %s: %w", key, err)
	}
	s.mu.Lock()
	s.objects[key] = memoryObject{data: data, contentType: contentType, modified: time.Now()}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) PublicURL(key string) string {
	return PublicURL(s.publicBase, key)
}

func (s *MemoryStore) KeyFromURL(raw string) (string, bool) {
	return KeyFromURL(s.publicBase, raw)
}

func (s *MemoryStore) Open(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		LastModified: obj.modified,
		ContentType:  obj.contentType,
	}, nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Len reports how many objects are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

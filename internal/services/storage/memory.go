package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// Object is a blob held by MemoryStore.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStore implements BlobStore with in-process maps. It backs tests and
// local runs.
type MemoryStore struct {
	mu         sync.RWMutex
	containers map[string]map[string]Object
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		containers: make(map[string]map[string]Object),
	}
}

// Put stores an object, creating its container if needed.
func (s *MemoryStore) Put(ref BlobRef, data []byte, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.containers[ref.Container]; !ok {
		s.containers[ref.Container] = make(map[string]Object)
	}
	s.containers[ref.Container][ref.Key] = Object{Data: bytes.Clone(data), ContentType: contentType}
}

// Get returns a stored object.
func (s *MemoryStore) Get(ref BlobRef) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.containers[ref.Container][ref.Key]
	return obj, ok
}

func (s *MemoryStore) HasContainer(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.containers[name]
	return ok
}

func (s *MemoryStore) Open(_ context.Context, ref BlobRef) (io.ReadCloser, error) {
	obj, ok := s.Get(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

func (s *MemoryStore) EnsureContainer(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.containers[name]; !ok {
		s.containers[name] = make(map[string]Object)
	}
	return nil
}

// Upload fails when the container is missing, like the cloud backends do.
func (s *MemoryStore) Upload(_ context.Context, ref BlobRef, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	container, ok := s.containers[ref.Container]
	if !ok {
		return fmt.Errorf("container %q does not exist", ref.Container)
	}
	container[ref.Key] = Object{Data: bytes.Clone(data), ContentType: contentType}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

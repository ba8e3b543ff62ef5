package memory

import (
	"context"
	"sync"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
)

// ObjectStore is an in-memory stand-in for hosted object storage.
type ObjectStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string][]byte // bucket/path -> data
}

func NewObjectStore(baseURL string) *ObjectStore {
	return &ObjectStore{baseURL: baseURL, objects: make(map[string][]byte)}
}

func (s *ObjectStore) Upload(_ context.Context, bucket, path string, data []byte, _ string, upsert bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := bucket + "/" + path
	if _, ok := s.objects[key]; ok && !upsert {
		return apperr.Validation("The resource already exists")
	}
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *ObjectStore) Remove(_ context.Context, bucket string, paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		delete(s.objects, bucket+"/"+p)
	}
	return nil
}

func (s *ObjectStore) PublicURL(bucket, path string) string {
	return s.baseURL + "/storage/v1/object/public/" + bucket + "/" + path
}

// Has reports whether an object exists.
func (s *ObjectStore) Has(bucket, path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[bucket+"/"+path]
	return ok
}

// Len is the number of stored objects.
func (s *ObjectStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

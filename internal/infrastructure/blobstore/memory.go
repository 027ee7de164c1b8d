package blobstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/nutriscan/backend/internal/domain"
)

// MemoryStore keeps uploaded objects in process. Download URLs point at
// the server's /blobs/ route, which serves them through Open.
type MemoryStore struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore creates a store whose URLs start with baseURL (e.g. http://localhost:8080)
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		objects: make(map[string]memoryObject),
	}
}

func (s *MemoryStore) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return "", fmt.Errorf("blobstore.Upload: empty path")
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.objects[path] = memoryObject{data: buf, contentType: contentType}
	s.mu.Unlock()

	return path, nil
}

func (s *MemoryStore) DownloadURL(ctx context.Context, ref string) (string, error) {
	s.mu.RLock()
	_, ok := s.objects[ref]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("blobstore.DownloadURL %s: %w", ref, domain.ErrBlobNotFound)
	}

	segments := strings.Split(ref, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/blobs/" + strings.Join(segments, "/"), nil
}

// Open returns a copy of the object stored at path
func (s *MemoryStore) Open(path string) ([]byte, string, error) {
	s.mu.RLock()
	obj, ok := s.objects[strings.TrimPrefix(path, "/")]
	s.mu.RUnlock()
	if !ok {
		return nil, "", domain.ErrBlobNotFound
	}

	buf := make([]byte, len(obj.data))
	copy(buf, obj.data)
	return buf, obj.contentType, nil
}

// Len returns the number of stored objects
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

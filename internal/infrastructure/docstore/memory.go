package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nutriscan/backend/internal/domain"
)

// MemoryStore is an in-process DocumentStore. Records are stored as JSON,
// so readers never share memory with writers.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]json.RawMessage)}
}

type memoryDocument struct {
	id   string
	data json.RawMessage
}

func (d *memoryDocument) ID() string { return d.id }

func (d *memoryDocument) DataTo(v any) error {
	return json.Unmarshal(d.data, v)
}

func (s *MemoryStore) Put(ctx context.Context, collection, id string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("docstore.Put %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]json.RawMessage)
		s.collections[collection] = docs
	}
	docs[id] = data
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("docstore.Get %s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	return &memoryDocument{id: id, data: data}, nil
}

// List returns every document in collection sorted by the top-level field
// orderBy. Values that parse as RFC 3339 timestamps compare as times.
func (s *MemoryStore) List(ctx context.Context, collection, orderBy string, dir domain.Direction) ([]domain.Document, error) {
	s.mu.RLock()
	docs := make([]*memoryDocument, 0, len(s.collections[collection]))
	for id, data := range s.collections[collection] {
		docs = append(docs, &memoryDocument{id: id, data: data})
	}
	s.mu.RUnlock()

	if orderBy != "" {
		keys := make(map[string]any, len(docs))
		for _, doc := range docs {
			var fields map[string]any
			if err := json.Unmarshal(doc.data, &fields); err != nil {
				return nil, fmt.Errorf("docstore.List %s: %w", collection, err)
			}
			keys[doc.id] = fields[orderBy]
		}
		sort.SliceStable(docs, func(i, j int) bool {
			c := compareValues(keys[docs[i].id], keys[docs[j].id])
			if c == 0 {
				return docs[i].id < docs[j].id
			}
			if dir == domain.Descending {
				return c > 0
			}
			return c < 0
		})
	} else {
		sort.Slice(docs, func(i, j int) bool { return docs[i].id < docs[j].id })
	}

	out := make([]domain.Document, len(docs))
	for i, doc := range docs {
		out[i] = doc
	}
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections[collection], id)
	return nil
}

// Len returns the number of documents in collection
func (s *MemoryStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// compareValues orders missing values first, then numbers, times and strings
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if af, ok := a.(float64); ok {
		if bf, ok := b.(float64); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}

	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	at, aErr := time.Parse(time.RFC3339Nano, as)
	bt, bErr := time.Parse(time.RFC3339Nano, bs)
	if aErr == nil && bErr == nil {
		return at.Compare(bt)
	}

	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

package docstore

import (
	"context"
	"sync"
)

// InMemoryStore keeps collections in process memory. It is the default for
// unit tests and single-node development; the mutex gives the same merge
// guarantees the remote implementations get from their storage engines.
type InMemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{collections: make(map[string]map[string]Document)}
}

func (s *InMemoryStore) GetAll(_ context.Context, collection string) (map[string]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Document, len(s.collections[collection]))
	for key, doc := range s.collections[collection] {
		out[key] = cloneDocument(doc)
	}
	return out, nil
}

func (s *InMemoryStore) Get(_ context.Context, collection, key string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDocument(doc), nil
}

func (s *InMemoryStore) Set(_ context.Context, collection, key string, fields Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.ensureDocument(collection, key)
	for field, value := range fields {
		if values, ok := value.([]string); ok {
			doc[field] = append([]string(nil), values...)
			continue
		}
		doc[field] = value
	}
	return nil
}

func (s *InMemoryStore) UpdateUnion(_ context.Context, collection, key, field string, values ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.ensureDocument(collection, key)
	existing := Document(doc).Strings(field)
	seen := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		existing = append(existing, v)
	}
	doc[field] = existing
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections[collection], key)
	return nil
}

// ensureDocument returns the live document for key, creating collection and
// document as needed. Callers must hold the write lock.
func (s *InMemoryStore) ensureDocument(collection, key string) Document {
	col, ok := s.collections[collection]
	if !ok {
		col = make(map[string]Document)
		s.collections[collection] = col
	}
	doc, ok := col[key]
	if !ok {
		doc = make(Document)
		col[key] = doc
	}
	return doc
}

func cloneDocument(doc Document) Document {
	out := make(Document, len(doc))
	for field, value := range doc {
		if values, ok := value.([]string); ok {
			out[field] = append([]string(nil), values...)
			continue
		}
		out[field] = value
	}
	return out
}

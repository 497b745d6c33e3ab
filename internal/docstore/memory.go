package docstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and local development.
// It preserves insertion order within a collection.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]map[string]json.RawMessage
	order map[string][]string
	hub   *hub
}

// NewMemoryStore creates an empty in-memory document store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]map[string]json.RawMessage),
		order: make(map[string][]string),
		hub:   newHub(),
	}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.docs[collection][id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{ID: id, Data: data}, nil
}

func (s *MemoryStore) GetAll(ctx context.Context, collection string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(collection), nil
}

func (s *MemoryStore) GetWhere(ctx context.Context, collection, field string, value interface{}) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := []Entry{}
	for _, entry := range s.snapshot(collection) {
		if fieldMatches(entry.Data, field, value) {
			matched = append(matched, entry)
		}
	}
	return matched, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, doc interface{}) error {
	data, err := marshal(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]json.RawMessage)
	}
	if _, exists := s.docs[collection][id]; !exists {
		s.order[collection] = append(s.order[collection], id)
	}
	s.docs[collection][id] = data
	entries := s.snapshot(collection)
	s.mu.Unlock()

	s.hub.broadcast(collection, entries)
	return nil
}

func (s *MemoryStore) Add(ctx context.Context, collection string, doc interface{}) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, doc interface{}) error {
	data, err := marshal(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.docs[collection][id]; !exists {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.docs[collection][id] = data
	entries := s.snapshot(collection)
	s.mu.Unlock()

	s.hub.broadcast(collection, entries)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	if _, exists := s.docs[collection][id]; !exists {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.docs[collection], id)
	ids := s.order[collection]
	for i, existing := range ids {
		if existing == id {
			s.order[collection] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	entries := s.snapshot(collection)
	s.mu.Unlock()

	s.hub.broadcast(collection, entries)
	return nil
}

func (s *MemoryStore) Query(collection string) Query {
	return &memoryQuery{store: s, collection: collection}
}

func (s *MemoryStore) Listen(collection string, onChange func([]Entry)) *Subscription {
	return s.hub.subscribe(collection, onChange)
}

// snapshot copies the collection in insertion order; callers hold the lock
func (s *MemoryStore) snapshot(collection string) []Entry {
	entries := make([]Entry, 0, len(s.order[collection]))
	for _, id := range s.order[collection] {
		entries = append(entries, Entry{ID: id, Data: s.docs[collection][id]})
	}
	return entries
}

type memoryCond struct {
	field string
	value interface{}
}

type memoryQuery struct {
	store      *MemoryStore
	collection string
	conds      []memoryCond
	limit      int
}

func (q *memoryQuery) Where(field string, value interface{}) Query {
	q.conds = append(q.conds, memoryCond{field: field, value: value})
	return q
}

func (q *memoryQuery) Limit(n int) Query {
	q.limit = n
	return q
}

func (q *memoryQuery) All(ctx context.Context) ([]Entry, error) {
	entries, err := q.store.GetAll(ctx, q.collection)
	if err != nil {
		return nil, err
	}

	matched := []Entry{}
	for _, entry := range entries {
		keep := true
		for _, cond := range q.conds {
			if !fieldMatches(entry.Data, cond.field, cond.value) {
				keep = false
				break
			}
		}
		if keep {
			matched = append(matched, entry)
			if q.limit > 0 && len(matched) == q.limit {
				break
			}
		}
	}
	return matched, nil
}

func fieldMatches(data json.RawMessage, field string, value interface{}) bool {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}
	stored, ok := doc[field]
	if !ok {
		return false
	}
	return jsonText(stored) == jsonText(value)
}

// Package docstore provides a small document-store abstraction: named
// collections of JSON documents addressed by string ids, with equality
// queries and collection-level change listeners.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document id does not exist in a collection
	ErrNotFound = errors.New("document not found")
)

// Entry is a stored document together with its id
type Entry struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the entry's document into v
func (e Entry) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", e.ID, err)
	}
	return nil
}

// Query is a fluent equality/limit query over one collection
type Query interface {
	Where(field string, value interface{}) Query
	Limit(n int) Query
	All(ctx context.Context) ([]Entry, error)
}

// Store is the persistence gateway contract. Implementations persist raw
// JSON documents; callers own the mapping to domain types.
type Store interface {
	Get(ctx context.Context, collection, id string) (Entry, error)
	GetAll(ctx context.Context, collection string) ([]Entry, error)
	GetWhere(ctx context.Context, collection, field string, value interface{}) ([]Entry, error)
	Set(ctx context.Context, collection, id string, doc interface{}) error
	Add(ctx context.Context, collection string, doc interface{}) (string, error)
	Update(ctx context.Context, collection, id string, doc interface{}) error
	Delete(ctx context.Context, collection, id string) error
	Query(collection string) Query
	// Listen registers a callback that receives the full collection contents
	// after every mutation made through this store. Callers must Close the
	// returned subscription to stop receiving updates.
	Listen(collection string, onChange func([]Entry)) *Subscription
}

// marshal accepts either pre-encoded JSON or any encodable value
func marshal(doc interface{}) (json.RawMessage, error) {
	switch d := doc.(type) {
	case json.RawMessage:
		return d, nil
	case []byte:
		return json.RawMessage(d), nil
	default:
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode document: %w", err)
		}
		return data, nil
	}
}

package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// PostgresStore keeps each document as a JSONB row in a single documents
// table keyed by (collection, id).
type PostgresStore struct {
	db  *sql.DB
	hub *hub
}

// NewPostgresStore creates a document store backed by the given database
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, hub: newHub()}
}

// Get retrieves a single document by id
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Entry, error) {
	query := `SELECT doc FROM documents WHERE collection = $1 AND id = $2`

	entry := Entry{ID: id}
	err := s.db.QueryRowContext(ctx, query, collection, id).Scan(&entry.Data)
	if err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("failed to get document: %w", err)
	}

	return entry, nil
}

// GetAll retrieves every document in a collection
func (s *PostgresStore) GetAll(ctx context.Context, collection string) ([]Entry, error) {
	query := `SELECT id, doc FROM documents WHERE collection = $1 ORDER BY created_at, id`
	return s.scanEntries(ctx, query, collection)
}

// GetWhere retrieves documents whose given top-level field equals value
func (s *PostgresStore) GetWhere(ctx context.Context, collection, field string, value interface{}) ([]Entry, error) {
	query := `SELECT id, doc FROM documents WHERE collection = $1 AND doc ->> $2 = $3 ORDER BY created_at, id`
	return s.scanEntries(ctx, query, collection, field, jsonText(value))
}

// Set writes a document under a caller-chosen id, creating or replacing it
func (s *PostgresStore) Set(ctx context.Context, collection, id string, doc interface{}) error {
	data, err := marshal(doc)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO documents (collection, id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, collection, id, []byte(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set document: %w", err)
	}

	s.notify(ctx, collection)
	return nil
}

// Add writes a document under a freshly minted id and returns the id
func (s *PostgresStore) Add(ctx context.Context, collection string, doc interface{}) (string, error) {
	data, err := marshal(doc)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	query := `
		INSERT INTO documents (collection, id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`

	if _, err := s.db.ExecContext(ctx, query, collection, id, []byte(data), time.Now().UTC()); err != nil {
		return "", fmt.Errorf("failed to add document: %w", err)
	}

	s.notify(ctx, collection)
	return id, nil
}

// Update replaces an existing document, failing if the id is absent
func (s *PostgresStore) Update(ctx context.Context, collection, id string, doc interface{}) error {
	data, err := marshal(doc)
	if err != nil {
		return err
	}

	query := `UPDATE documents SET doc = $3, updated_at = $4 WHERE collection = $1 AND id = $2`

	result, err := s.db.ExecContext(ctx, query, collection, id, []byte(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.notify(ctx, collection)
	return nil
}

// Delete removes a document, failing if the id is absent
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2`

	result, err := s.db.ExecContext(ctx, query, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.notify(ctx, collection)
	return nil
}

// Query starts a fluent equality/limit query over a collection
func (s *PostgresStore) Query(collection string) Query {
	return &postgresQuery{store: s, collection: collection}
}

// Listen registers a collection listener
func (s *PostgresStore) Listen(collection string, onChange func([]Entry)) *Subscription {
	return s.hub.subscribe(collection, onChange)
}

func (s *PostgresStore) notify(ctx context.Context, collection string) {
	entries, err := s.GetAll(ctx, collection)
	if err != nil {
		return
	}
	s.hub.broadcast(collection, entries)
}

func (s *PostgresStore) scanEntries(ctx context.Context, query string, args ...interface{}) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.Data); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return entries, nil
}

type fieldCond struct {
	field string
	value string
}

type postgresQuery struct {
	store      *PostgresStore
	collection string
	conds      []fieldCond
	limit      int
}

func (q *postgresQuery) Where(field string, value interface{}) Query {
	q.conds = append(q.conds, fieldCond{field: field, value: jsonText(value)})
	return q
}

func (q *postgresQuery) Limit(n int) Query {
	q.limit = n
	return q
}

func (q *postgresQuery) All(ctx context.Context) ([]Entry, error) {
	query := `SELECT id, doc FROM documents WHERE collection = $1`
	args := []interface{}{q.collection}

	argIndex := 2
	for _, cond := range q.conds {
		query += fmt.Sprintf(" AND doc ->> $%d = $%d", argIndex, argIndex+1)
		args = append(args, cond.field, cond.value)
		argIndex += 2
	}

	query += " ORDER BY created_at, id"

	if q.limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, q.limit)
	}

	return q.store.scanEntries(ctx, query, args...)
}

// jsonText renders a scalar the way ->> renders JSON values, so equality
// comparisons behave the same for strings, booleans and numbers.
func jsonText(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

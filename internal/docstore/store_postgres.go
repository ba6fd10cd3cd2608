package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore keeps scalar fields as jsonb and set-valued fields as rows in
// a members table, so UpdateUnion is a plain ON CONFLICT DO NOTHING insert and
// stays atomic under concurrent writers.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the backing tables when they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection text NOT NULL,
	key        text NOT NULL,
	fields     jsonb NOT NULL DEFAULT '{}'::jsonb,
	PRIMARY KEY (collection, key)
);
CREATE TABLE IF NOT EXISTS document_members (
	collection text NOT NULL,
	key        text NOT NULL,
	field      text NOT NULL,
	member     text NOT NULL,
	PRIMARY KEY (collection, key, field, member)
);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure docstore schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAll(ctx context.Context, collection string) (map[string]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, fields FROM documents WHERE collection = $1`, collection)
	if err != nil {
		return nil, fmt.Errorf("list collection %s: %w", collection, err)
	}
	defer rows.Close()

	out := make(map[string]Document)
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan document in %s: %w", collection, err)
		}
		doc, err := decodeFields(raw)
		if err != nil {
			return nil, fmt.Errorf("decode document %s/%s: %w", collection, key, err)
		}
		out[key] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list collection %s: %w", collection, err)
	}

	memberRows, err := s.db.QueryContext(ctx,
		`SELECT key, field, member FROM document_members WHERE collection = $1 ORDER BY key, field`, collection)
	if err != nil {
		return nil, fmt.Errorf("list members of %s: %w", collection, err)
	}
	defer memberRows.Close()

	for memberRows.Next() {
		var key, field, member string
		if err := memberRows.Scan(&key, &field, &member); err != nil {
			return nil, fmt.Errorf("scan member in %s: %w", collection, err)
		}
		doc, ok := out[key]
		if !ok {
			doc = make(Document)
			out[key] = doc
		}
		doc[field] = append(doc.Strings(field), member)
	}
	if err := memberRows.Err(); err != nil {
		return nil, fmt.Errorf("list members of %s: %w", collection, err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, key string) (Document, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = $1 AND key = $2`, collection, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read document %s/%s: %w", collection, key, err)
	}

	doc, err := decodeFields(raw)
	if err != nil {
		return nil, fmt.Errorf("decode document %s/%s: %w", collection, key, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT field, member FROM document_members WHERE collection = $1 AND key = $2 ORDER BY field`, collection, key)
	if err != nil {
		return nil, fmt.Errorf("read members of %s/%s: %w", collection, key, err)
	}
	defer rows.Close()

	for rows.Next() {
		var field, member string
		if err := rows.Scan(&field, &member); err != nil {
			return nil, fmt.Errorf("scan member of %s/%s: %w", collection, key, err)
		}
		doc[field] = append(doc.Strings(field), member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read members of %s/%s: %w", collection, key, err)
	}
	return doc, nil
}

func (s *PostgresStore) Set(ctx context.Context, collection, key string, fields Document) error {
	scalars := make(map[string]any)
	sets := make(map[string][]string)
	for field, value := range fields {
		switch v := value.(type) {
		case []string:
			sets[field] = v
		case time.Time:
			scalars[field] = v.UTC().Format(time.RFC3339)
		default:
			scalars[field] = v
		}
	}

	raw, err := json.Marshal(scalars)
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", collection, key, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write of %s/%s: %w", collection, key, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO documents (collection, key, fields) VALUES ($1, $2, $3)
ON CONFLICT (collection, key) DO UPDATE SET fields = documents.fields || EXCLUDED.fields`,
		collection, key, raw)
	if err != nil {
		return fmt.Errorf("write document %s/%s: %w", collection, key, err)
	}

	for field, values := range sets {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM document_members WHERE collection = $1 AND key = $2 AND field = $3`,
			collection, key, field)
		if err != nil {
			return fmt.Errorf("replace set field %s of %s/%s: %w", field, collection, key, err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO document_members (collection, key, field, member)
SELECT $1, $2, $3, unnest($4::text[])
ON CONFLICT DO NOTHING`,
			collection, key, field, pq.Array(values))
		if err != nil {
			return fmt.Errorf("write set field %s of %s/%s: %w", field, collection, key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit write of %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *PostgresStore) UpdateUnion(ctx context.Context, collection, key, field string, values ...string) error {
	if len(values) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin union into %s/%s: %w", collection, key, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO documents (collection, key) VALUES ($1, $2)
ON CONFLICT (collection, key) DO NOTHING`, collection, key)
	if err != nil {
		return fmt.Errorf("ensure document %s/%s: %w", collection, key, err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO document_members (collection, key, field, member)
SELECT $1, $2, $3, unnest($4::text[])
ON CONFLICT DO NOTHING`,
		collection, key, field, pq.Array(values))
	if err != nil {
		return fmt.Errorf("union into %s of %s/%s: %w", field, collection, key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit union into %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete of %s/%s: %w", collection, key, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_members WHERE collection = $1 AND key = $2`, collection, key); err != nil {
		return fmt.Errorf("delete members of %s/%s: %w", collection, key, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND key = $2`, collection, key); err != nil {
		return fmt.Errorf("delete document %s/%s: %w", collection, key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete of %s/%s: %w", collection, key, err)
	}
	return nil
}

func decodeFields(raw []byte) (Document, error) {
	doc := make(Document)
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Package docstore abstracts the remote document service backing the roster
// and the attendance ledger. Documents are schemaless field maps grouped into
// named collections; implementations exist for memory, Redis and Postgres.
package docstore

import (
	"context"
	"errors"
)

// Collection names used by the application.
const (
	CollectionUsers      = "Users"
	CollectionAttendance = "Attendance"
)

// ErrNotFound reports logical absence of a document. Callers must treat it as
// a normal outcome, distinct from transport failures.
var ErrNotFound = errors.New("docstore: document not found")

// Document is a schemaless field map. Set-valued fields hold []string.
type Document map[string]any

// Store is the port every backing implementation satisfies.
//
// Set upserts the given fields on a document; fields not named are left
// untouched, so scalar writes cannot clobber a concurrently-growing set field.
// UpdateUnion adds values to a set-valued field, creating the document when it
// does not exist yet; it is idempotent and commutative so concurrent writers
// always merge rather than overwrite.
type Store interface {
	GetAll(ctx context.Context, collection string) (map[string]Document, error)
	Get(ctx context.Context, collection, key string) (Document, error)
	Set(ctx context.Context, collection, key string, fields Document) error
	UpdateUnion(ctx context.Context, collection, key, field string, values ...string) error
	Delete(ctx context.Context, collection, key string) error
}

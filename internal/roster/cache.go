// Package roster mirrors the remote Users collection in memory. The cache is
// the single source of truth for search ranking and check-in resolution;
// writes go to the remote store first and are observed through a full
// re-refresh rather than an optimistic local mutation.
package roster

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/docstore"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/audit"
)

type Cache struct {
	store   docstore.Store
	logger  *slog.Logger
	auditor audit.Publisher

	// snapshot is replaced wholesale on refresh; readers always observe a
	// complete roster. The published slice is never mutated afterwards.
	snapshot atomic.Pointer[[]Person]

	subMu       sync.Mutex
	subscribers []func([]Person)
}

type Option func(*Cache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(c *Cache) {
		c.auditor = publisher
	}
}

func NewCache(store docstore.Store, opts ...Option) (*Cache, error) {
	if store == nil {
		return nil, fmt.Errorf("document store is required")
	}

	c := &Cache{
		store:   store,
		logger:  slog.Default(),
		auditor: audit.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	empty := make([]Person, 0)
	c.snapshot.Store(&empty)
	return c, nil
}

// Refresh fetches the full Users collection and atomically replaces the
// snapshot. Individual malformed documents degrade to field-defaulted
// Persons; only failure of the listing itself is an error, and in that case
// the previous snapshot stays available.
func (c *Cache) Refresh(ctx context.Context) error {
	docs, err := c.store.GetAll(ctx, docstore.CollectionUsers)
	if err != nil {
		c.logger.ErrorContext(ctx, "roster refresh failed, keeping stale snapshot", "error", err)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "roster refresh failed")
	}

	people := make([]Person, 0, len(docs))
	for id, doc := range docs {
		people = append(people, PersonFromDocument(id, doc))
	}
	sort.Slice(people, func(i, j int) bool {
		if people[i].Name != people[j].Name {
			return people[i].Name < people[j].Name
		}
		return people[i].ID < people[j].ID
	})

	c.snapshot.Store(&people)
	c.logger.InfoContext(ctx, "roster refreshed", "people", len(people))
	c.notify(people)
	return nil
}

// Snapshot returns the current roster. The slice is shared and must be
// treated as read-only.
func (c *Cache) Snapshot() []Person {
	return *c.snapshot.Load()
}

// Find resolves a person by stable ID against the current snapshot.
func (c *Cache) Find(id string) (Person, bool) {
	for _, p := range c.Snapshot() {
		if p.ID == id {
			return p, true
		}
	}
	return Person{}, false
}

// OnRefresh registers a callback invoked with each new snapshot. Dependents
// use it instead of polling shared mutable state.
func (c *Cache) OnRefresh(fn func([]Person)) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

func (c *Cache) notify(people []Person) {
	c.subMu.Lock()
	subs := append(([]func([]Person))(nil), c.subscribers...)
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(people)
	}
}

// Add writes a new person to the remote store and re-refreshes. A person
// without an ID gets a generated one; the returned Person carries it.
func (c *Cache) Add(ctx context.Context, p Person) (Person, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := c.store.Set(ctx, docstore.CollectionUsers, p.ID, p.Fields()); err != nil {
		c.logger.ErrorContext(ctx, "add person failed", "person_id", p.ID, "error", err)
		return Person{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "add person failed")
	}
	c.auditor.Emit(ctx, audit.Event{Action: "person_added", Subject: p.ID, At: time.Now().UTC()})
	return p, c.Refresh(ctx)
}

// Update rewrites an existing person's document and re-refreshes.
func (c *Cache) Update(ctx context.Context, p Person) error {
	if p.ID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "person id is required")
	}
	if err := c.store.Set(ctx, docstore.CollectionUsers, p.ID, p.Fields()); err != nil {
		c.logger.ErrorContext(ctx, "update person failed", "person_id", p.ID, "error", err)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "update person failed")
	}
	c.auditor.Emit(ctx, audit.Event{Action: "person_updated", Subject: p.ID, At: time.Now().UTC()})
	return c.Refresh(ctx)
}

// Delete removes a person's document and re-refreshes. Historical attendance
// records keep the ID; ledger views render it as an Unknown placeholder.
func (c *Cache) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dErrors.New(dErrors.CodeBadRequest, "person id is required")
	}
	if err := c.store.Delete(ctx, docstore.CollectionUsers, id); err != nil {
		c.logger.ErrorContext(ctx, "delete person failed", "person_id", id, "error", err)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "delete person failed")
	}
	c.auditor.Emit(ctx, audit.Event{Action: "person_deleted", Subject: id, At: time.Now().UTC()})
	return c.Refresh(ctx)
}

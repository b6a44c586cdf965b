// Package memory is an in-process remote backend. It is used by tests and by
// the client's "memory" driver, and supports fault injection.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/dmitrijs2005/clubsync/internal/common"
	"github.com/dmitrijs2005/clubsync/internal/entity"
	"github.com/dmitrijs2005/clubsync/internal/remote"
)

const (
	OpList   = "list"
	OpGet    = "get"
	OpGetKey = "get_by_key"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

type table struct {
	nextID int64
	rows   map[int64]entity.Record
}

// Backend holds every collection in memory.
type Backend struct {
	mu       sync.Mutex
	tables   map[string]*table
	absent   map[string]bool
	failures map[string][]error
	calls    map[string]map[string]int
	hooks    map[int]func(collection, op string)
	nextHook int
}

func New() *Backend {
	return &Backend{
		tables:   map[string]*table{},
		absent:   map[string]bool{},
		failures: map[string][]error{},
		calls:    map[string]map[string]int{},
		hooks:    map[int]func(string, string){},
	}
}

// Collection implements remote.Backend.
func (b *Backend) Collection(schema entity.Schema) remote.CollectionClient {
	return &Collection{b: b, schema: schema}
}

// SetSchemaAbsent makes every call on collection fail with SchemaAbsent.
func (b *Backend) SetSchemaAbsent(collection string, absent bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.absent[collection] = absent
}

// FailNext queues err for the next call on collection.
func (b *Backend) FailNext(collection string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[collection] = append(b.failures[collection], err)
}

// Calls returns how many times op was invoked on collection.
func (b *Backend) Calls(collection, op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[collection][op]
}

// Seed inserts records as if created remotely and returns them with ids.
func (b *Backend) Seed(schema entity.Schema, recs ...entity.Record) []entity.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]entity.Record, 0, len(recs))
	for _, r := range recs {
		out = append(out, b.insert(schema, r))
	}
	return out
}

// Remove deletes a record directly, bypassing fault injection.
func (b *Backend) Remove(schema entity.Schema, id string) {
	b.mu.Lock()
	n, _ := strconv.ParseInt(id, 10, 64)
	delete(b.table(schema.Name).rows, n)
	b.mu.Unlock()
	b.emit(schema.Name, "DELETE")
}

// OnChange registers fn for every successful mutation. The returned function
// unregisters it.
func (b *Backend) OnChange(fn func(collection, op string)) func() {
	b.mu.Lock()
	b.nextHook++
	id := b.nextHook
	b.hooks[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.hooks, id)
		b.mu.Unlock()
	}
}

func (b *Backend) emit(collection, op string) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.hooks))
	for id := range b.hooks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	hooks := make([]func(string, string), 0, len(ids))
	for _, id := range ids {
		hooks = append(hooks, b.hooks[id])
	}
	b.mu.Unlock()

	for _, h := range hooks {
		h(collection, op)
	}
}

func (b *Backend) table(name string) *table {
	t, ok := b.tables[name]
	if !ok {
		t = &table{rows: map[int64]entity.Record{}}
		b.tables[name] = t
	}
	return t
}

func (b *Backend) insert(schema entity.Schema, rec entity.Record) entity.Record {
	t := b.table(schema.Name)
	t.nextID++
	row := remote.Payload(schema, rec)
	row[schema.IDField] = t.nextID
	row, _ = remote.Wire(row)
	t.rows[t.nextID] = row
	return row.Clone()
}

// enter records the call and returns an injected error, if any.
// Must be called with mu held.
func (b *Backend) enter(collection, op string) error {
	if b.calls[collection] == nil {
		b.calls[collection] = map[string]int{}
	}
	b.calls[collection][op]++

	if q := b.failures[collection]; len(q) > 0 {
		b.failures[collection] = q[1:]
		return q[0]
	}
	if b.absent[collection] {
		return common.NewRemoteError(op, collection, common.KindSchemaAbsent, fmt.Errorf("collection %q does not exist", collection))
	}
	return nil
}

// Collection is a remote.CollectionClient over a Backend.
type Collection struct {
	b      *Backend
	schema entity.Schema
}

func (c *Collection) notFound(op, id string) error {
	return common.NewRemoteError(op, c.schema.Name, common.KindNotFound, fmt.Errorf("id %s", id))
}

func (c *Collection) List(ctx context.Context) ([]entity.Record, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if err := c.b.enter(c.schema.Name, OpList); err != nil {
		return nil, err
	}

	t := c.b.table(c.schema.Name)
	ids := make([]int64, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]entity.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.rows[id].Clone())
	}
	return out, nil
}

func (c *Collection) lookup(id string) (int64, entity.Record, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, nil, false
	}
	row, ok := c.b.table(c.schema.Name).rows[n]
	return n, row, ok
}

func (c *Collection) GetByID(ctx context.Context, id string) (entity.Record, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if err := c.b.enter(c.schema.Name, OpGet); err != nil {
		return nil, err
	}
	if _, row, ok := c.lookup(id); ok {
		return row.Clone(), nil
	}
	return nil, c.notFound(OpGet, id)
}

func (c *Collection) GetByForeignKey(ctx context.Context, key string) (entity.Record, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if err := c.b.enter(c.schema.Name, OpGetKey); err != nil {
		return nil, err
	}
	if c.schema.ForeignKey != "" {
		t := c.b.table(c.schema.Name)
		var best int64
		for id, row := range t.rows {
			if entity.IDString(row[c.schema.ForeignKey]) == key && (best == 0 || id < best) {
				best = id
			}
		}
		if best != 0 {
			return t.rows[best].Clone(), nil
		}
	}
	return nil, c.notFound(OpGetKey, key)
}

func (c *Collection) Create(ctx context.Context, rec entity.Record) (entity.Record, error) {
	c.b.mu.Lock()
	if err := c.b.enter(c.schema.Name, OpCreate); err != nil {
		c.b.mu.Unlock()
		return nil, err
	}
	row := c.b.insert(c.schema, rec)
	c.b.mu.Unlock()

	c.b.emit(c.schema.Name, "INSERT")
	return row, nil
}

func (c *Collection) Update(ctx context.Context, id string, rec entity.Record) (entity.Record, error) {
	c.b.mu.Lock()
	if err := c.b.enter(c.schema.Name, OpUpdate); err != nil {
		c.b.mu.Unlock()
		return nil, err
	}
	n, _, ok := c.lookup(id)
	if !ok {
		c.b.mu.Unlock()
		return nil, c.notFound(OpUpdate, id)
	}
	row := remote.Payload(c.schema, rec)
	row[c.schema.IDField] = n
	row, err := remote.Wire(row)
	if err != nil {
		c.b.mu.Unlock()
		return nil, common.NewRemoteError(OpUpdate, c.schema.Name, common.KindConflict, err)
	}
	c.b.table(c.schema.Name).rows[n] = row
	c.b.mu.Unlock()

	c.b.emit(c.schema.Name, "UPDATE")
	return row.Clone(), nil
}

func (c *Collection) Delete(ctx context.Context, id string) error {
	c.b.mu.Lock()
	if err := c.b.enter(c.schema.Name, OpDelete); err != nil {
		c.b.mu.Unlock()
		return err
	}
	n, _, ok := c.lookup(id)
	if !ok {
		c.b.mu.Unlock()
		return c.notFound(OpDelete, id)
	}
	delete(c.b.table(c.schema.Name).rows, n)
	c.b.mu.Unlock()

	c.b.emit(c.schema.Name, "DELETE")
	return nil
}

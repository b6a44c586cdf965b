// Package cache implements the per-collection entity cache: an in-memory
// envelope backed by a persisted store, with a freshness window used for
// stale-while-revalidate reads.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/clubsync/internal/entity"
	"github.com/dmitrijs2005/clubsync/internal/logging"
	"github.com/dmitrijs2005/clubsync/internal/store"
)

// Envelope is the persisted form of a cached collection.
type Envelope struct {
	Collection []entity.Record `json:"collection"`
	FetchedAt  time.Time       `json:"fetchedAt"`
}

// EntityCache caches one collection.
type EntityCache struct {
	mu     sync.Mutex
	store  store.Store
	key    string
	ttl    time.Duration
	now    func() time.Time
	log    logging.Logger
	loaded bool
	env    *Envelope
}

type Option func(*EntityCache)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *EntityCache) { c.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(c *EntityCache) { c.log = l }
}

// New returns a cache for schema persisted in st.
func New(st store.Store, schema entity.Schema, ttl time.Duration, opts ...Option) *EntityCache {
	c := &EntityCache{
		store: st,
		key:   schema.CacheKey(),
		ttl:   ttl,
		now:   time.Now,
		log:   logging.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With("component", "cache", "collection", schema.Name)
	return c
}

// load must be called with mu held.
func (c *EntityCache) load(ctx context.Context) {
	if c.loaded {
		return
	}
	b, err := c.store.Read(ctx, c.key)
	if err != nil {
		c.log.Warn(ctx, "cache read failed", "err", err)
		return
	}
	c.loaded = true
	if b == nil {
		return
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		c.log.Warn(ctx, "cache envelope undecodable, starting empty", "err", err)
		return
	}
	if env.Collection == nil {
		env.Collection = []entity.Record{}
	}
	c.env = &env
}

// Read returns a copy of the cached collection, or an empty collection.
func (c *EntityCache) Read(ctx context.Context) []entity.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.load(ctx)
	if c.env == nil {
		return []entity.Record{}
	}
	return entity.CloneAll(c.env.Collection)
}

// Exists reports whether an envelope has ever been written.
func (c *EntityCache) Exists(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.load(ctx)
	return c.env != nil
}

// IsFresh reports whether now - fetchedAt < TTL.
func (c *EntityCache) IsFresh(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.load(ctx)
	if c.env == nil || c.env.FetchedAt.IsZero() {
		return false
	}
	return c.now().Sub(c.env.FetchedAt) < c.ttl
}

// FetchedAt returns the time of the last sync pass (zero if none).
func (c *EntityCache) FetchedAt(ctx context.Context) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.load(ctx)
	if c.env == nil {
		return time.Time{}
	}
	return c.env.FetchedAt
}

// Write replaces the envelope with recs stamped now. The in-memory envelope
// is replaced even when persisting fails; the persist error is returned.
func (c *EntityCache) Write(ctx context.Context, recs []entity.Record) error {
	_, err := c.Apply(ctx, func([]entity.Record) []entity.Record { return recs })
	return err
}

// Apply replaces the envelope with fn(current) stamped now, holding the lock
// so that concurrent patches are not lost between read and write.
func (c *EntityCache) Apply(ctx context.Context, fn func(current []entity.Record) []entity.Record) ([]entity.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.load(ctx)
	next := fn(c.current())
	return next, c.replace(ctx, next, c.now())
}

// Patch replaces the collection with fn(current) keeping fetchedAt. When fn
// fails nothing changes.
func (c *EntityCache) Patch(ctx context.Context, fn func(current []entity.Record) ([]entity.Record, error)) ([]entity.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.load(ctx)
	next, err := fn(c.current())
	if err != nil {
		return nil, err
	}

	var fetchedAt time.Time
	if c.env != nil {
		fetchedAt = c.env.FetchedAt
	}
	return next, c.replace(ctx, next, fetchedAt)
}

func (c *EntityCache) current() []entity.Record {
	if c.env == nil {
		return []entity.Record{}
	}
	return entity.CloneAll(c.env.Collection)
}

func (c *EntityCache) replace(ctx context.Context, recs []entity.Record, fetchedAt time.Time) error {
	if recs == nil {
		recs = []entity.Record{}
	}
	env := &Envelope{Collection: entity.CloneAll(recs), FetchedAt: fetchedAt}

	b, err := json.Marshal(env)
	if err == nil {
		err = c.store.Write(ctx, c.key, b)
	}

	c.env = env
	c.loaded = true

	if err != nil {
		c.log.Error(ctx, "cache persist failed; memory is ahead of disk", "err", err)
		return fmt.Errorf("persist %s: %w", c.key, err)
	}
	return nil
}

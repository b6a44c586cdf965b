// Package manager is the facade application code uses for one collection:
// cached reads with background refresh, write-through add/update/delete with
// a local-only fallback, and change subscriptions.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/clubsync/internal/cache"
	"github.com/dmitrijs2005/clubsync/internal/common"
	"github.com/dmitrijs2005/clubsync/internal/entity"
	"github.com/dmitrijs2005/clubsync/internal/logging"
	"github.com/dmitrijs2005/clubsync/internal/notify"
	"github.com/dmitrijs2005/clubsync/internal/realtime"
	"github.com/dmitrijs2005/clubsync/internal/remote"
	"github.com/dmitrijs2005/clubsync/internal/store"
	"github.com/dmitrijs2005/clubsync/internal/syncer"
)

// DefaultTTL is the cache freshness window.
const DefaultTTL = 5 * time.Minute

// GetOptions controls GetAll.
type GetOptions struct {
	UseCache     bool
	ForceRefresh bool
}

// Cached serves from the cache and revalidates in the background.
var Cached = GetOptions{UseCache: true}

// Fresh waits for a forced sync pass.
var Fresh = GetOptions{UseCache: true, ForceRefresh: true}

type Manager struct {
	schema   entity.Schema
	remote   remote.CollectionClient
	assets   remote.AssetStore
	cache    *cache.EntityCache
	sync     *syncer.Coordinator
	notifier *notify.Notifier
	source   realtime.Source
	log      logging.Logger

	ttl        time.Duration
	cooldown   time.Duration
	now        func() time.Time
	bridgeOpts []realtime.Option
	onRealtime func(realtime.State, error)

	wg sync.WaitGroup

	mu     sync.Mutex
	subs   int
	bridge *realtime.Bridge
}

type Option func(*Manager)

// WithAssets sets the store used for asset uploads and deletions.
func WithAssets(a remote.AssetStore) Option {
	return func(m *Manager) { m.assets = a }
}

// WithRealtime enables push notifications from src while subscribed.
func WithRealtime(src realtime.Source, opts ...realtime.Option) Option {
	return func(m *Manager) {
		m.source = src
		m.bridgeOpts = opts
	}
}

func WithTTL(d time.Duration) Option {
	return func(m *Manager) { m.ttl = d }
}

func WithCooldown(d time.Duration) Option {
	return func(m *Manager) { m.cooldown = d }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// New builds the manager for schema. Records are cached in st under the
// schema's cache key and changes are published on n.
func New(schema entity.Schema, rc remote.CollectionClient, st store.Store, n *notify.Notifier, opts ...Option) *Manager {
	m := &Manager{
		schema:   schema,
		remote:   rc,
		assets:   remote.NoAssets{},
		notifier: n,
		log:      logging.Discard(),
		ttl:      DefaultTTL,
		cooldown: syncer.DefaultCooldown,
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	log := m.log
	m.log = log.With("component", "manager", "collection", schema.Name)

	m.cache = cache.New(st, schema, m.ttl, cache.WithClock(m.now), cache.WithLogger(log))
	m.sync = syncer.NewCoordinator(schema, rc, m.cache, n,
		syncer.WithCooldown(m.cooldown),
		syncer.WithClock(m.now),
		syncer.WithLogger(log),
	)
	return m
}

func (m *Manager) Schema() entity.Schema { return m.schema }

// GetAll returns the collection. With opts.UseCache and an existing cache it
// returns immediately and refreshes in the background when stale; otherwise
// it waits for a forced sync pass and falls back to the cache when the
// remote fails.
func (m *Manager) GetAll(ctx context.Context, opts GetOptions) ([]entity.Record, error) {
	if opts.UseCache && !opts.ForceRefresh && m.cache.Exists(ctx) {
		recs := m.cache.Read(ctx)
		if !m.cache.IsFresh(ctx) || len(recs) == 0 {
			m.refreshInBackground(ctx)
		}
		return normalizeAll(m.schema, recs), nil
	}

	res, err := m.sync.Refresh(ctx, true)
	switch {
	case err == nil:
		return normalizeAll(m.schema, res.Collection), nil
	case res.Synced:
		return normalizeAll(m.schema, res.Collection), err
	case ctx.Err() != nil:
		return nil, ctx.Err()
	}

	m.log.Warn(ctx, "refresh failed, serving cache", "err", err)
	return normalizeAll(m.schema, m.cache.Read(ctx)), nil
}

// Get returns one record from the cache, asking the remote when it is not
// cached.
func (m *Manager) Get(ctx context.Context, id string) (entity.Record, error) {
	recs := m.cache.Read(ctx)
	if pos := entity.FindByID(m.schema, recs, id); pos >= 0 {
		return m.schema.Normalize(recs[pos]), nil
	}
	rec, err := m.remote.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", m.schema.Name, id, err)
	}
	return m.schema.Normalize(rec), nil
}

// GetByKey fetches the record owning the foreign key from the remote.
func (m *Manager) GetByKey(ctx context.Context, key string) (entity.Record, error) {
	rec, err := m.remote.GetByForeignKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s by key: %w", m.schema.Name, err)
	}
	return m.schema.Normalize(rec), nil
}

// Refresh runs a sync pass directly.
func (m *Manager) Refresh(ctx context.Context, force bool) (syncer.Result, error) {
	return m.sync.Refresh(ctx, force)
}

func (m *Manager) refreshInBackground(ctx context.Context) {
	bg := context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if _, err := m.sync.Refresh(bg, false); err != nil {
			m.log.Warn(bg, "background refresh failed", "err", err)
		}
	}()
}

// Add creates rec remotely and caches the confirmed record. When the remote
// collection does not exist the record is kept locally under a placeholder id.
func (m *Manager) Add(ctx context.Context, rec entity.Record) (entity.Record, error) {
	rec = m.schema.Normalize(rec)
	return detach(ctx, &m.wg, func(ctx context.Context) (entity.Record, error) {
		created, err := m.remote.Create(ctx, rec)
		if err != nil {
			if common.IsSchemaAbsent(err) {
				m.log.Info(ctx, "remote collection absent, adding locally")
				return m.addLocal(ctx, rec)
			}
			return nil, fmt.Errorf("add %s: %w", m.schema.Name, err)
		}

		created = m.schema.Normalize(created)
		err = m.patch(ctx, func(cur []entity.Record) []entity.Record {
			return upsert(m.schema, cur, created)
		})
		return created.Clone(), err
	})
}

func (m *Manager) addLocal(ctx context.Context, rec entity.Record) (entity.Record, error) {
	var out entity.Record
	err := m.patch(ctx, func(cur []entity.Record) []entity.Record {
		n, temp := m.schema.NextPlaceholder(cur)
		out = rec.Clone()
		out[m.schema.IDField] = n
		out[m.schema.TempIDField] = temp
		return append(cur, out)
	})
	return out.Clone(), err
}

// Update merges patch into the cached record id and writes it through. A
// record the remote does not know is created instead.
func (m *Manager) Update(ctx context.Context, id string, patch entity.Record) (entity.Record, error) {
	recs := m.cache.Read(ctx)
	pos := entity.FindByID(m.schema, recs, id)
	if pos < 0 {
		return nil, fmt.Errorf("update %s %s: %w", m.schema.Name, id, common.ErrNotFound)
	}
	existing := recs[pos]
	merged := Merge(m.schema, existing, patch)

	return detach(ctx, &m.wg, func(ctx context.Context) (entity.Record, error) {
		var (
			saved entity.Record
			err   error
		)
		if m.schema.IsLocalOnly(existing) {
			saved, err = m.remote.Create(ctx, merged)
		} else {
			saved, err = m.remote.Update(ctx, m.schema.ID(existing), merged)
			if common.IsNotFound(err) {
				m.log.Info(ctx, "record missing remotely, recreating", "id", id)
				saved, err = m.remote.Create(ctx, merged)
			}
		}

		if err != nil {
			if !common.IsSchemaAbsent(err) {
				return nil, fmt.Errorf("update %s %s: %w", m.schema.Name, id, err)
			}
			m.log.Info(ctx, "remote collection absent, updating locally", "id", id)
			saved = merged
		}

		saved = m.schema.Normalize(saved)
		err = m.patch(ctx, func(cur []entity.Record) []entity.Record {
			return replaceByID(m.schema, cur, id, saved)
		})
		return saved.Clone(), err
	})
}

// Delete removes the record id, its assets and its cache entry. Asset
// failures are logged only. A record the remote no longer has is still
// removed from the cache.
func (m *Manager) Delete(ctx context.Context, id string) error {
	recs := m.cache.Read(ctx)
	var existing entity.Record
	if pos := entity.FindByID(m.schema, recs, id); pos >= 0 {
		existing = recs[pos]
	}

	_, err := detach(ctx, &m.wg, func(ctx context.Context) (struct{}, error) {
		if existing != nil {
			for _, p := range m.schema.AssetPaths(existing) {
				if err := m.assets.Delete(ctx, p); err != nil {
					m.log.Warn(ctx, "asset delete failed", "path", p, "err", err)
				}
			}
		}

		if existing == nil || !m.schema.IsLocalOnly(existing) {
			remoteID := id
			if existing != nil {
				remoteID = m.schema.ID(existing)
			}
			err := m.remote.Delete(ctx, remoteID)
			switch {
			case err == nil:
			case common.IsNotFound(err):
				m.log.Debug(ctx, "record already gone remotely", "id", id)
			case common.IsSchemaAbsent(err):
				m.log.Info(ctx, "remote collection absent, deleting locally", "id", id)
			default:
				return struct{}{}, fmt.Errorf("delete %s %s: %w", m.schema.Name, id, err)
			}
		}

		if existing == nil {
			return struct{}{}, nil
		}
		return struct{}{}, m.patch(ctx, func(cur []entity.Record) []entity.Record {
			return removeByID(m.schema, cur, id)
		})
	})
	return err
}

// UploadAsset stores data in the collection's asset store.
func (m *Manager) UploadAsset(ctx context.Context, data []byte, name string) (remote.Asset, error) {
	a, err := m.assets.Upload(ctx, data, name)
	if err != nil {
		return remote.Asset{}, fmt.Errorf("upload %s asset: %w", m.schema.Name, err)
	}
	return a, nil
}

// patch applies fn to the cache keeping fetchedAt and publishes the result.
// The collection is published even when persisting failed.
func (m *Manager) patch(ctx context.Context, fn func([]entity.Record) []entity.Record) error {
	recs, err := m.cache.Patch(ctx, func(cur []entity.Record) ([]entity.Record, error) {
		return fn(cur), nil
	})
	m.notifier.Publish(m.schema.Channel(), recs)
	if err != nil {
		return fmt.Errorf("cache %s: %w", m.schema.Name, err)
	}
	return nil
}

// Subscribe registers h for changes of this collection and opens the
// realtime bridge for the first subscriber. The returned function undoes
// both and is safe to call more than once.
func (m *Manager) Subscribe(h notify.Handler) func() {
	unsub := m.notifier.Subscribe(m.schema.Channel(), func(recs []entity.Record) {
		h(normalizeAll(m.schema, recs))
	})
	m.acquireBridge()

	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			m.releaseBridge()
		})
	}
}

func (m *Manager) acquireBridge() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subs++
	if m.source == nil || m.bridge != nil {
		return
	}
	opts := append([]realtime.Option{realtime.WithLogger(m.log)}, m.bridgeOpts...)
	m.bridge = realtime.NewBridge(m.source, m.schema.Name, m.sync, opts...)
	m.bridge.Start(context.Background())
}

func (m *Manager) releaseBridge() {
	m.mu.Lock()
	m.subs--
	var b *realtime.Bridge
	if m.subs == 0 {
		b, m.bridge = m.bridge, nil
	}
	m.mu.Unlock()

	if b != nil {
		_ = b.Close()
	}
}

// RealtimeState reports the bridge state, StateIdle when none is open.
func (m *Manager) RealtimeState() realtime.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bridge == nil {
		return realtime.StateIdle
	}
	return m.bridge.State()
}

// Close stops the realtime bridge and waits for background work.
func (m *Manager) Close() error {
	m.mu.Lock()
	b := m.bridge
	m.bridge = nil
	m.subs = 0
	m.mu.Unlock()

	if b != nil {
		_ = b.Close()
	}
	m.wg.Wait()
	return nil
}

// detach runs fn to completion even when ctx is cancelled; the caller stops
// waiting and gets ctx.Err().
func detach[T any](ctx context.Context, wg *sync.WaitGroup, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	bg := context.WithoutCancel(ctx)

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := fn(bg)
		ch <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}

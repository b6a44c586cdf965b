package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/clubsync/internal/cache"
	"github.com/dmitrijs2005/clubsync/internal/common"
	"github.com/dmitrijs2005/clubsync/internal/entity"
	"github.com/dmitrijs2005/clubsync/internal/logging"
	"golang.org/x/sync/singleflight"
)

// DefaultCooldown is the minimum spacing of non-forced refreshes.
const DefaultCooldown = common.DefaultSyncCooldownSeconds * time.Second

const (
	OutcomeSynced    = "synced"
	OutcomeSkipped   = "skipped"
	OutcomeLocalOnly = "local_only"
	OutcomeFailed    = "failed"
)

const (
	ReasonCooldown     = "COOLDOWN"
	ReasonSchemaAbsent = "SCHEMA_ABSENT"
)

// Result describes a refresh call.
type Result struct {
	Synced     bool
	Skipped    bool
	LocalOnly  bool
	Reason     string
	Counts     Counts
	Collection []entity.Record
}

// Lister fetches the full remote collection.
type Lister interface {
	List(ctx context.Context) ([]entity.Record, error)
}

// Publisher broadcasts a changed collection.
type Publisher interface {
	Publish(name string, collection []entity.Record)
}

// Coordinator runs sync passes for one collection.
type Coordinator struct {
	schema   entity.Schema
	remote   Lister
	cache    *cache.EntityCache
	pub      Publisher
	log      logging.Logger
	cooldown time.Duration
	now      func() time.Time

	group singleflight.Group

	mu       sync.Mutex
	running  bool
	lastDone time.Time
}

type Option func(*Coordinator)

func WithCooldown(d time.Duration) Option {
	return func(c *Coordinator) { c.cooldown = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// NewCoordinator wires a coordinator. pub may be nil.
func NewCoordinator(schema entity.Schema, remote Lister, ec *cache.EntityCache, pub Publisher, opts ...Option) *Coordinator {
	c := &Coordinator{
		schema:   schema,
		remote:   remote,
		cache:    ec,
		pub:      pub,
		log:      logging.Discard(),
		cooldown: DefaultCooldown,
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With("component", "syncer", "collection", schema.Name)
	return c
}

// Refresh runs a sync pass, joins the one already in flight, or (when force
// is false and the cooldown has not elapsed) returns a skipped result without
// contacting the remote.
//
// The pass itself is detached from ctx: a caller that stops waiting gets
// ctx.Err(), while the pass still completes and updates the cache.
//
// A missing remote schema yields Result{LocalOnly: true} and a nil error.
// Other remote failures are returned and leave the cache untouched. A cache
// persist failure is returned together with the synced result.
func (c *Coordinator) Refresh(ctx context.Context, force bool) (Result, error) {
	c.mu.Lock()
	skip := !c.running && !force && c.coolingDown()
	c.mu.Unlock()
	if skip {
		return c.skipped(ctx), nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(c.schema.Name, func() (any, error) {
		return c.pass(detached, force)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		res, _ := r.Val.(Result)
		return res, r.Err
	}
}

// pass runs one sync pass unless a pass that completed after the caller's
// cooldown check has armed it again.
func (c *Coordinator) pass(ctx context.Context, force bool) (Result, error) {
	c.mu.Lock()
	if !force && c.coolingDown() {
		c.mu.Unlock()
		return c.skipped(ctx), nil
	}
	c.running = true
	c.mu.Unlock()
	defer c.setRunning(false)

	return c.run(ctx)
}

func (c *Coordinator) skipped(ctx context.Context) Result {
	syncRunsTotal.WithLabelValues(c.schema.Name, OutcomeSkipped).Inc()
	c.log.Debug(ctx, "refresh skipped", "reason", ReasonCooldown)
	return Result{Skipped: true, Reason: ReasonCooldown, Collection: c.cache.Read(ctx)}
}

func (c *Coordinator) coolingDown() bool {
	return !c.lastDone.IsZero() && c.now().Sub(c.lastDone) < c.cooldown
}

// LastCompleted returns when the last pass completed.
func (c *Coordinator) LastCompleted() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastDone
}

func (c *Coordinator) setRunning(v bool) {
	c.mu.Lock()
	c.running = v
	c.mu.Unlock()
}

func (c *Coordinator) markDone() {
	c.mu.Lock()
	c.lastDone = c.now()
	c.mu.Unlock()
}

func (c *Coordinator) run(ctx context.Context) (Result, error) {
	remote, err := c.remote.List(ctx)
	if err != nil {
		if common.IsSchemaAbsent(err) {
			c.markDone()
			syncRunsTotal.WithLabelValues(c.schema.Name, OutcomeLocalOnly).Inc()
			c.log.Warn(ctx, "remote collection absent, serving local-only", "err", err)
			return Result{LocalOnly: true, Reason: ReasonSchemaAbsent, Collection: c.cache.Read(ctx)}, nil
		}
		syncRunsTotal.WithLabelValues(c.schema.Name, OutcomeFailed).Inc()
		return Result{}, fmt.Errorf("refresh %s: %w", c.schema.Name, err)
	}

	var counts Counts
	merged, werr := c.cache.Apply(ctx, func(local []entity.Record) []entity.Record {
		var out []entity.Record
		out, counts = Reconcile(c.schema, remote, local)
		return out
	})

	c.markDone()
	syncRunsTotal.WithLabelValues(c.schema.Name, OutcomeSynced).Inc()
	syncDeletedTotal.WithLabelValues(c.schema.Name).Add(float64(counts.Deleted))
	cacheRecords.WithLabelValues(c.schema.Name).Set(float64(counts.Merged))
	c.log.Info(ctx, "sync completed",
		"remote", counts.Remote, "local", counts.Local, "merged", counts.Merged,
		"added", counts.Added, "deleted", counts.Deleted, "collapsed", counts.Collapsed)
	if counts.Collapsed > 0 {
		c.log.Warn(ctx, "local records collapsed onto duplicate identities", "collapsed", counts.Collapsed)
	}

	if c.pub != nil {
		c.pub.Publish(c.schema.Channel(), merged)
	}

	res := Result{Synced: true, Counts: counts, Collection: merged}
	if werr != nil {
		return res, fmt.Errorf("refresh %s: %w", c.schema.Name, werr)
	}
	return res, nil
}

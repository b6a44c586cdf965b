// Package realtime bridges remote change notifications to sync passes.
// Each notification triggers exactly one forced refresh; reconciliation and
// broadcasting are left to the regular sync path.
package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dmitrijs2005/clubsync/internal/logging"
	"github.com/dmitrijs2005/clubsync/internal/syncer"
)

// ErrClosed is returned by Subscription.Next after Close.
var ErrClosed = errors.New("subscription closed")

// Notification is one remote change event.
type Notification struct {
	Collection string
	Op         string
}

// Subscription yields notifications for one collection.
type Subscription interface {
	Next(ctx context.Context) (Notification, error)
	Close() error
}

// Source opens change subscriptions.
type Source interface {
	Subscribe(ctx context.Context, collection string) (Subscription, error)
}

// Refresher runs a sync pass.
type Refresher interface {
	Refresh(ctx context.Context, force bool) (syncer.Result, error)
}

// State of a bridge connection. It is informational only.
type State int

const (
	StateIdle State = iota
	StateSubscribing
	StateActive
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// Bridge keeps a subscription open and reconnects with exponential backoff.
type Bridge struct {
	source     Source
	collection string
	refresher  Refresher
	log        logging.Logger
	newBackOff func() backoff.BackOff
	onState    func(State, error)

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Bridge)

func WithLogger(l logging.Logger) Option {
	return func(b *Bridge) { b.log = l }
}

// WithBackOff replaces the reconnect policy.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(b *Bridge) { b.newBackOff = f }
}

// OnState registers a hook called on every state transition.
func OnState(f func(State, error)) Option {
	return func(b *Bridge) { b.onState = f }
}

func NewBridge(src Source, collection string, r Refresher, opts ...Option) *Bridge {
	b := &Bridge{
		source:     src,
		collection: collection,
		refresher:  r,
		log:        logging.Discard(),
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(500*time.Millisecond),
				backoff.WithMaxInterval(30*time.Second),
				backoff.WithMaxElapsedTime(0),
			)
		},
	}
	for _, o := range opts {
		o(b)
	}
	b.log = b.log.With("component", "realtime", "collection", collection)
	return b
}

// Start launches the bridge loop. Calling Start on a running bridge is a no-op.
func (b *Bridge) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.loop(ctx, b.done)
}

// Close stops the loop and waits for it to exit.
func (b *Bridge) Close() error {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	b.setState(context.Background(), StateClosed, nil)
	return nil
}

// State returns the current connection state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bridge) setState(ctx context.Context, s State, err error) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()

	realtimeState.WithLabelValues(b.collection).Set(float64(s))
	if err != nil {
		b.log.Warn(ctx, "realtime state", "state", s.String(), "err", err)
	} else {
		b.log.Debug(ctx, "realtime state", "state", s.String())
	}
	if b.onState != nil {
		b.onState(s, err)
	}
}

func (b *Bridge) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	bo := b.newBackOff()

	for {
		b.setState(ctx, StateSubscribing, nil)
		sub, err := b.source.Subscribe(ctx, b.collection)
		if err == nil {
			b.setState(ctx, StateActive, nil)
			bo.Reset()
			err = b.consume(ctx, sub)
			_ = sub.Close()
		}
		if ctx.Err() != nil {
			return
		}
		b.setState(ctx, StateError, err)

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (b *Bridge) consume(ctx context.Context, sub Subscription) error {
	for {
		n, err := sub.Next(ctx)
		if err != nil {
			return err
		}
		b.log.Debug(ctx, "remote change", "op", n.Op)
		if _, err := b.refresher.Refresh(ctx, true); err != nil {
			b.log.Warn(ctx, "refresh after notification failed", "err", err)
		}
	}
}

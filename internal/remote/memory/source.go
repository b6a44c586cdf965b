package memory

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/clubsync/internal/realtime"
)

// Source returns a realtime.Source fed by the backend's mutations.
func (b *Backend) Source() realtime.Source { return source{b: b} }

type source struct{ b *Backend }

func (s source) Subscribe(ctx context.Context, collection string) (realtime.Subscription, error) {
	sub := &subscription{ch: make(chan realtime.Notification, 64), done: make(chan struct{})}
	sub.unhook = s.b.OnChange(func(c, op string) {
		if c != collection {
			return
		}
		select {
		case sub.ch <- realtime.Notification{Collection: c, Op: op}:
		case <-sub.done:
		default:
		}
	})
	return sub, nil
}

type subscription struct {
	ch     chan realtime.Notification
	done   chan struct{}
	unhook func()
	once   sync.Once
}

func (s *subscription) Next(ctx context.Context) (realtime.Notification, error) {
	select {
	case <-ctx.Done():
		return realtime.Notification{}, ctx.Err()
	case <-s.done:
		return realtime.Notification{}, realtime.ErrClosed
	case n := <-s.ch:
		return n, nil
	}
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.unhook()
		close(s.done)
	})
	return nil
}

// Package notify is the process-wide change bus. Publishing is synchronous:
// every handler registered for a channel runs on the caller's goroutine, in
// registration order.
package notify

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/clubsync/internal/entity"
	"github.com/dmitrijs2005/clubsync/internal/logging"
)

// Handler receives the full collection after a change. It must not mutate it.
type Handler func(collection []entity.Record)

type subscriber struct {
	id uint64
	h  Handler
}

// Notifier fans out change events by channel name.
type Notifier struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string][]subscriber
	log    logging.Logger
}

func New(log logging.Logger) *Notifier {
	if log == nil {
		log = logging.Discard()
	}
	return &Notifier{subs: map[string][]subscriber{}, log: log.With("component", "notifier")}
}

// Subscribe registers h on name. The returned function removes it and is
// safe to call more than once.
func (n *Notifier) Subscribe(name string, h Handler) func() {
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.subs[name] = append(n.subs[name], subscriber{id: id, h: h})
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(name, id) })
	}
}

func (n *Notifier) remove(name string, id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	list := n.subs[name]
	for i, s := range list {
		if s.id == id {
			next := make([]subscriber, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			if len(next) == 0 {
				delete(n.subs, name)
			} else {
				n.subs[name] = next
			}
			return
		}
	}
}

// Publish invokes the handlers registered on name when Publish was called.
// Handlers added or removed meanwhile do not affect this round. A panicking
// handler is logged and does not stop the others.
func (n *Notifier) Publish(name string, collection []entity.Record) {
	n.mu.Lock()
	snapshot := n.subs[name]
	n.mu.Unlock()

	for _, s := range snapshot {
		n.call(name, s.h, collection)
	}
}

func (n *Notifier) call(name string, h Handler, collection []entity.Record) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error(context.Background(), "subscriber panicked", "channel", name, "panic", r)
		}
	}()
	h(collection)
}

// Count returns the number of handlers on name.
func (n *Notifier) Count(name string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[name])
}

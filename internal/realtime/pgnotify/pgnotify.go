// Package pgnotify implements realtime.Source over Postgres LISTEN/NOTIFY.
// The collection tables carry a statement-level trigger that notifies
// clubsync_<table> once per modifying statement, with TG_OP as payload.
package pgnotify

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/clubsync/internal/entity"
	"github.com/dmitrijs2005/clubsync/internal/realtime"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ChannelPrefix is prepended to the table name to form the channel.
const ChannelPrefix = "clubsync_"

// Channel returns the NOTIFY channel of table.
func Channel(table string) string { return ChannelPrefix + table }

// Conn is the subset of *pgx.Conn used for listening.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Dialer opens a dedicated listening connection.
type Dialer func(ctx context.Context, dsn string) (Conn, error)

func pgxDial(ctx context.Context, dsn string) (Conn, error) {
	return pgx.Connect(ctx, dsn)
}

// Source listens on one connection per subscription.
type Source struct {
	dsn      string
	registry *entity.Registry
	dial     Dialer
}

// New returns a Source for the database at dsn. A nil dial uses pgx.Connect.
func New(dsn string, registry *entity.Registry, dial Dialer) *Source {
	if dial == nil {
		dial = pgxDial
	}
	return &Source{dsn: dsn, registry: registry, dial: dial}
}

func (s *Source) Subscribe(ctx context.Context, collection string) (realtime.Subscription, error) {
	schema, ok := s.registry.Get(collection)
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	conn, err := s.dial(ctx, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("listen connect: %w", err)
	}

	channel := Channel(schema.Table)
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}

	return &subscription{conn: conn, collection: collection}, nil
}

type subscription struct {
	conn       Conn
	collection string
	closeOnce  sync.Once
}

func (s *subscription) Next(ctx context.Context) (realtime.Notification, error) {
	n, err := s.conn.WaitForNotification(ctx)
	if err != nil {
		return realtime.Notification{}, err
	}
	return realtime.Notification{Collection: s.collection, Op: n.Payload}, nil
}

func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close(context.Background())
	})
	return err
}

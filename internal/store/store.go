// Package store provides the durable key/value storage backing the on-device
// entity cache. Every driver reports capacity failures as
// common.ErrQuotaExceeded so callers can surface them.
package store

import "context"

// Store is a durable key/value store. Read returns (nil, nil) for a missing key.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, value []byte) error
}

// Package remote defines the narrow surface through which the engine talks to
// the source of truth. Adapters classify every expected failure as a
// common.RemoteError so callers can branch on its kind.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/clubsync/internal/common"
	"github.com/dmitrijs2005/clubsync/internal/entity"
)

// DefaultTimeout bounds a single remote call when none is configured.
const DefaultTimeout = 10 * time.Second

// CollectionClient is CRUD access to one remote collection.
type CollectionClient interface {
	List(ctx context.Context) ([]entity.Record, error)
	GetByID(ctx context.Context, id string) (entity.Record, error)
	GetByForeignKey(ctx context.Context, key string) (entity.Record, error)
	Create(ctx context.Context, rec entity.Record) (entity.Record, error)
	Update(ctx context.Context, id string, rec entity.Record) (entity.Record, error)
	Delete(ctx context.Context, id string) error
}

// Backend hands out collection clients.
type Backend interface {
	Collection(schema entity.Schema) CollectionClient
}

// Asset is an uploaded object.
type Asset struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

// AssetStore keeps binary assets referenced by records.
type AssetStore interface {
	Upload(ctx context.Context, data []byte, name string) (Asset, error)
	Delete(ctx context.Context, path string) error
}

// NoAssets is used when no asset store is configured. Uploads fail as a
// validation error; deletes succeed.
type NoAssets struct{}

func (NoAssets) Upload(ctx context.Context, data []byte, name string) (Asset, error) {
	return Asset{}, common.NewRemoteError("upload", name, common.KindConflict, fmt.Errorf("asset store not configured"))
}

func (NoAssets) Delete(ctx context.Context, path string) error { return nil }

// Payload returns the fields sent to the remote on create or update: a copy
// of rec without the primary and temp ids.
func Payload(schema entity.Schema, rec entity.Record) entity.Record {
	out := rec.Clone()
	if out == nil {
		out = entity.Record{}
	}
	delete(out, schema.IDField)
	delete(out, schema.TempIDField)
	return out
}

// Wire normalises rec to what a JSON round trip would produce, so records
// from every adapter share the same value types.
func Wire(rec entity.Record) (entity.Record, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var out entity.Record
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Bound applies the call timeout to ctx.
func Bound(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

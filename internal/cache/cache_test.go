package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/clubsync/internal/common"
	"github.com/dmitrijs2005/clubsync/internal/entity"
	"github.com/dmitrijs2005/clubsync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

type failingStore struct {
	store.Store
	readErr  error
	writeErr error
}

func (s *failingStore) Read(ctx context.Context, key string) ([]byte, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.Store.Read(ctx, key)
}

func (s *failingStore) Write(ctx context.Context, key string, v []byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	return s.Store.Write(ctx, key, v)
}

func membersSchema(t *testing.T) entity.Schema {
	t.Helper()
	s, ok := entity.DefaultRegistry().Get("members")
	require.True(t, ok)
	return s
}

func TestRead_EmptyWhenNothingStored(t *testing.T) {
	c := New(store.NewMemoryStore(0), membersSchema(t), time.Minute)
	ctx := context.Background()

	got := c.Read(ctx)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.False(t, c.Exists(ctx))
	assert.False(t, c.IsFresh(ctx))
}

func TestWrite_ThenReadFromNewInstance(t *testing.T) {
	st := store.NewMemoryStore(0)
	clk := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	ctx := context.Background()

	c := New(st, membersSchema(t), time.Minute, WithClock(clk.Now))
	require.NoError(t, c.Write(ctx, []entity.Record{{"id": float64(1), "email": "a@x.com"}}))

	again := New(st, membersSchema(t), time.Minute, WithClock(clk.Now))
	got := again.Read(ctx)
	require.Len(t, got, 1)
	assert.Equal(t, "a@x.com", got[0]["email"])
	assert.True(t, again.FetchedAt(ctx).Equal(clk.t))
}

func TestIsFresh_Window(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	c := New(store.NewMemoryStore(0), membersSchema(t), time.Minute, WithClock(clk.Now))
	ctx := context.Background()

	require.NoError(t, c.Write(ctx, []entity.Record{}))
	assert.True(t, c.IsFresh(ctx))

	clk.Advance(59 * time.Second)
	assert.True(t, c.IsFresh(ctx))

	clk.Advance(time.Second)
	assert.False(t, c.IsFresh(ctx))
}

func TestWrite_PersistFailureStillUpdatesMemory(t *testing.T) {
	st := &failingStore{Store: store.NewMemoryStore(0), writeErr: common.ErrQuotaExceeded}
	c := New(st, membersSchema(t), time.Minute)
	ctx := context.Background()

	err := c.Write(ctx, []entity.Record{{"id": float64(1)}})
	require.ErrorIs(t, err, common.ErrQuotaExceeded)

	assert.Len(t, c.Read(ctx), 1)
	assert.True(t, c.Exists(ctx))
}

func TestRead_StoreErrorYieldsEmpty(t *testing.T) {
	st := &failingStore{Store: store.NewMemoryStore(0), readErr: errors.New("disk gone")}
	c := New(st, membersSchema(t), time.Minute)

	assert.Empty(t, c.Read(context.Background()))
}

func TestRead_CorruptEnvelopeYieldsEmpty(t *testing.T) {
	st := store.NewMemoryStore(0)
	s := membersSchema(t)
	require.NoError(t, st.Write(context.Background(), s.CacheKey(), []byte("{not json")))

	c := New(st, s, time.Minute)
	assert.Empty(t, c.Read(context.Background()))
	assert.False(t, c.Exists(context.Background()))
}

func TestRead_ReturnsCopies(t *testing.T) {
	c := New(store.NewMemoryStore(0), membersSchema(t), time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Write(ctx, []entity.Record{{"id": float64(1), "email": "a@x.com"}}))

	got := c.Read(ctx)
	got[0]["email"] = "mutated"

	assert.Equal(t, "a@x.com", c.Read(ctx)[0]["email"])
}

func TestPatch_KeepsFetchedAt(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(store.NewMemoryStore(0), membersSchema(t), time.Minute, WithClock(clk.Now))
	ctx := context.Background()
	require.NoError(t, c.Write(ctx, []entity.Record{}))
	stamped := c.FetchedAt(ctx)

	clk.Advance(time.Hour)
	_, err := c.Patch(ctx, func(cur []entity.Record) ([]entity.Record, error) {
		return append(cur, entity.Record{"id": float64(2)}), nil
	})
	require.NoError(t, err)

	assert.Len(t, c.Read(ctx), 1)
	assert.True(t, c.FetchedAt(ctx).Equal(stamped))
}

func TestPatch_ErrorLeavesCacheUntouched(t *testing.T) {
	c := New(store.NewMemoryStore(0), membersSchema(t), time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Write(ctx, []entity.Record{{"id": float64(1)}}))

	_, err := c.Patch(ctx, func(cur []entity.Record) ([]entity.Record, error) {
		return nil, common.ErrNotFound
	})
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Len(t, c.Read(ctx), 1)
}

func TestApply_SeesCurrentAndStamps(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(store.NewMemoryStore(0), membersSchema(t), time.Minute, WithClock(clk.Now))
	ctx := context.Background()
	_, err := c.Patch(ctx, func(cur []entity.Record) ([]entity.Record, error) {
		return []entity.Record{{"id": float64(1)}}, nil
	})
	require.NoError(t, err)
	assert.True(t, c.FetchedAt(ctx).IsZero())
	assert.False(t, c.IsFresh(ctx))

	out, err := c.Apply(ctx, func(cur []entity.Record) []entity.Record {
		require.Len(t, cur, 1)
		return append(cur, entity.Record{"id": float64(2)})
	})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.True(t, c.FetchedAt(ctx).Equal(clk.t))
}

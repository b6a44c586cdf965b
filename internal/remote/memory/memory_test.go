package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/clubsync/internal/common"
	"github.com/dmitrijs2005/clubsync/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func members(t *testing.T) entity.Schema {
	t.Helper()
	s, ok := entity.DefaultRegistry().Get("members")
	require.True(t, ok)
	return s
}

func TestCollection_CRUD(t *testing.T) {
	b := New()
	s := members(t)
	c := b.Collection(s)
	ctx := context.Background()

	created, err := c.Create(ctx, entity.Record{"id": float64(99), "tempId": "local-99", "email": "a@x.com", "authUserId": "u1"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), created["id"], "remote assigns its own id")
	assert.NotContains(t, created, "tempId")

	got, err := c.GetByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got["email"])

	byKey, err := c.GetByForeignKey(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, float64(1), byKey["id"])

	updated, err := c.Update(ctx, "1", entity.Record{"email": "b@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", updated["email"])

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, c.Delete(ctx, "1"))
	_, err = c.GetByID(ctx, "1")
	assert.True(t, common.IsNotFound(err))
	assert.True(t, common.IsNotFound(c.Delete(ctx, "1")))
	_, err = c.Update(ctx, "1", entity.Record{})
	assert.True(t, common.IsNotFound(err))

	assert.Equal(t, 1, b.Calls("members", OpList))
	assert.Equal(t, 2, b.Calls("members", OpDelete))
}

func TestCollection_FaultInjection(t *testing.T) {
	b := New()
	c := b.Collection(members(t))
	ctx := context.Background()

	boom := common.NewRemoteError("list", "members", common.KindRemoteUnavailable, errors.New("timeout"))
	b.FailNext("members", boom)
	_, err := c.List(ctx)
	assert.ErrorIs(t, err, common.ErrRemoteUnavailable)

	_, err = c.List(ctx)
	assert.NoError(t, err, "failure is consumed")

	b.SetSchemaAbsent("members", true)
	_, err = c.Create(ctx, entity.Record{"email": "x"})
	assert.True(t, common.IsSchemaAbsent(err))
}

func TestSource_DeliversOwnCollectionOnly(t *testing.T) {
	b := New()
	s := members(t)
	events, _ := entity.DefaultRegistry().Get("events")
	ctx := context.Background()

	sub, err := b.Source().Subscribe(ctx, "members")
	require.NoError(t, err)
	defer sub.Close()

	b.Seed(events, entity.Record{"slug": "x"})
	_, err = b.Collection(events).Create(ctx, entity.Record{"slug": "y"})
	require.NoError(t, err)
	_, err = b.Collection(s).Create(ctx, entity.Record{"email": "a@x.com"})
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	n, err := sub.Next(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, "members", n.Collection)
	assert.Equal(t, "INSERT", n.Op)

	require.NoError(t, sub.Close())
	_, err = sub.Next(ctx)
	assert.Error(t, err)
}

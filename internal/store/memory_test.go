package store

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/clubsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Quota(t *testing.T) {
	s := NewMemoryStore(10)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "a", []byte("12345")))
	require.NoError(t, s.Write(ctx, "a", []byte("1234567890")), "replacing a value frees its bytes")

	err := s.Write(ctx, "b", []byte("1"))
	assert.ErrorIs(t, err, common.ErrQuotaExceeded)

	v, err := s.Read(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, v, "failed write leaves nothing behind")
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	in := []byte("abc")
	require.NoError(t, s.Write(ctx, "k", in))
	in[0] = 'X'

	out, _ := s.Read(ctx, "k")
	assert.Equal(t, []byte("abc"), out)
	out[1] = 'Y'

	again, _ := s.Read(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
	assert.Equal(t, 1, s.Len())
}

package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/clubsync/internal/common"
	"github.com/dmitrijs2005/clubsync/internal/entity"
	pb "github.com/dmitrijs2005/clubsync/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func req(t *testing.T, collection, id string, rec map[string]any) *structpb.Struct {
	t.Helper()
	r, err := pb.NewRequest(collection, id, "", rec)
	require.NoError(t, err)
	return r
}

func TestHandlers_CRUD(t *testing.T) {
	s, _ := newTestServer("")
	ctx := context.Background()

	created, err := s.Create(ctx, req(t, "members", "", map[string]any{"email": "a@x.com", "tempId": "local-1"}))
	require.NoError(t, err)
	assert.Equal(t, float64(1), created.AsMap()["id"])
	assert.NotContains(t, created.AsMap(), "tempId")

	got, err := s.Get(ctx, req(t, "members", "1", nil))
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.AsMap()["email"])

	_, err = s.Update(ctx, req(t, "members", "1", map[string]any{"email": "b@x.com"}))
	require.NoError(t, err)

	list, err := s.List(ctx, req(t, "members", "", nil))
	require.NoError(t, err)
	recs, err := pb.ToRecords(list)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "b@x.com", recs[0]["email"])

	_, err = s.Delete(ctx, req(t, "members", "1", nil))
	require.NoError(t, err)

	_, err = s.Delete(ctx, req(t, "members", "1", nil))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestHandlers_UnknownCollectionIsFailedPrecondition(t *testing.T) {
	s, _ := newTestServer("")
	_, err := s.List(context.Background(), req(t, "volunteers", "", nil))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestHandlers_BackendSchemaAbsent(t *testing.T) {
	s, b := newTestServer("")
	b.SetSchemaAbsent("events", true)

	_, err := s.List(context.Background(), req(t, "events", "", nil))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestToStatus(t *testing.T) {
	s, _ := newTestServer("")
	ctx := context.Background()

	cases := map[common.Kind]codes.Code{
		common.KindSchemaAbsent:      codes.FailedPrecondition,
		common.KindNotFound:          codes.NotFound,
		common.KindConflict:          codes.InvalidArgument,
		common.KindUnauthorized:      codes.PermissionDenied,
		common.KindRemoteUnavailable: codes.Unavailable,
	}
	for kind, code := range cases {
		err := s.toStatus(ctx, common.NewRemoteError("op", "c", kind, errors.New("x")))
		assert.Equal(t, code, status.Code(err), kind.String())
	}
	assert.Equal(t, codes.Internal, status.Code(s.toStatus(ctx, errors.New("weird"))))
}

func TestGetByKey(t *testing.T) {
	s, b := newTestServer("")
	members, _ := entity.DefaultRegistry().Get("members")
	b.Seed(members, entity.Record{"authUserId": "u-9", "email": "k@x.com"})

	r, err := pb.NewRequest("members", "", "u-9", nil)
	require.NoError(t, err)
	got, err := s.GetByKey(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "k@x.com", got.AsMap()["email"])
}

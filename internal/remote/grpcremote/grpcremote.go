// Package grpcremote reaches collections through the clubsync gRPC gateway.
package grpcremote

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/clubsync/internal/common"
	"github.com/dmitrijs2005/clubsync/internal/entity"
	pb "github.com/dmitrijs2005/clubsync/internal/proto"
	"github.com/dmitrijs2005/clubsync/internal/remote"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Backend is a remote.Backend over a gRPC connection.
type Backend struct {
	conn    *grpc.ClientConn
	client  pb.CollectionsClient
	token   string
	timeout time.Duration
}

// Dial connects to the gateway at endpoint.
func Dial(endpoint, token string, timeout time.Duration, opts ...grpc.DialOption) (*Backend, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, err
	}
	b := NewBackend(conn, token, timeout)
	b.conn = conn
	return b, nil
}

// NewBackend wraps an existing connection. Close is then a no-op.
func NewBackend(cc grpc.ClientConnInterface, token string, timeout time.Duration) *Backend {
	return &Backend{
		client:  pb.NewCollectionsClient(cc),
		token:   token,
		timeout: timeout,
	}
}

func (b *Backend) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}

func (b *Backend) Collection(schema entity.Schema) remote.CollectionClient {
	return &Collection{b: b, schema: schema}
}

func (b *Backend) call(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := remote.Bound(ctx, b.timeout)
	if b.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, b.token)
	}
	return ctx, cancel
}

type Collection struct {
	b      *Backend
	schema entity.Schema
}

func (c *Collection) request(op, id, key string, rec entity.Record) (*structpb.Struct, error) {
	req, err := pb.NewRequest(c.schema.Name, id, key, rec)
	if err != nil {
		return nil, common.NewRemoteError(op, c.schema.Name, common.KindConflict, err)
	}
	return req, nil
}

func (c *Collection) List(ctx context.Context) ([]entity.Record, error) {
	req, err := c.request("list", "", "", nil)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.b.call(ctx)
	defer cancel()

	resp, err := c.b.client.List(ctx, req)
	if err != nil {
		return nil, c.mapError("list", err)
	}
	maps, err := pb.ToRecords(resp)
	if err != nil {
		return nil, common.NewRemoteError("list", c.schema.Name, common.KindRemoteUnavailable, err)
	}
	out := make([]entity.Record, len(maps))
	for i, m := range maps {
		out[i] = m
	}
	return out, nil
}

func (c *Collection) GetByID(ctx context.Context, id string) (entity.Record, error) {
	req, err := c.request("get", id, "", nil)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.b.call(ctx)
	defer cancel()
	resp, err := c.b.client.Get(ctx, req)
	return c.record("get", resp, err)
}

func (c *Collection) GetByForeignKey(ctx context.Context, key string) (entity.Record, error) {
	req, err := c.request("get_by_key", "", key, nil)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.b.call(ctx)
	defer cancel()
	resp, err := c.b.client.GetByKey(ctx, req)
	return c.record("get_by_key", resp, err)
}

func (c *Collection) Create(ctx context.Context, rec entity.Record) (entity.Record, error) {
	req, err := c.request("create", "", "", remote.Payload(c.schema, rec))
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.b.call(ctx)
	defer cancel()
	resp, err := c.b.client.Create(ctx, req)
	return c.record("create", resp, err)
}

func (c *Collection) Update(ctx context.Context, id string, rec entity.Record) (entity.Record, error) {
	req, err := c.request("update", id, "", remote.Payload(c.schema, rec))
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.b.call(ctx)
	defer cancel()
	resp, err := c.b.client.Update(ctx, req)
	return c.record("update", resp, err)
}

func (c *Collection) Delete(ctx context.Context, id string) error {
	req, err := c.request("delete", id, "", nil)
	if err != nil {
		return err
	}
	ctx, cancel := c.b.call(ctx)
	defer cancel()
	if _, err := c.b.client.Delete(ctx, req); err != nil {
		return c.mapError("delete", err)
	}
	return nil
}

func (c *Collection) record(op string, resp *structpb.Struct, err error) (entity.Record, error) {
	if err != nil {
		return nil, c.mapError(op, err)
	}
	return entity.Record(resp.AsMap()), nil
}

func (c *Collection) mapError(op string, err error) error {
	return common.NewRemoteError(op, c.schema.Name, Classify(err), err)
}

// Classify maps a gRPC status to an error kind.
func Classify(err error) common.Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return common.KindRemoteUnavailable
	}
	st, ok := status.FromError(err)
	if !ok {
		return common.KindRemoteUnavailable
	}
	switch st.Code() {
	case codes.FailedPrecondition:
		return common.KindSchemaAbsent
	case codes.NotFound:
		return common.KindNotFound
	case codes.InvalidArgument, codes.AlreadyExists:
		return common.KindConflict
	case codes.Unauthenticated, codes.PermissionDenied:
		return common.KindUnauthorized
	default:
		return common.KindRemoteUnavailable
	}
}

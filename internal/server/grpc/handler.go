package grpc

import (
	"context"

	"github.com/dmitrijs2005/clubsync/internal/common"
	"github.com/dmitrijs2005/clubsync/internal/entity"
	pb "github.com/dmitrijs2005/clubsync/internal/proto"
	"github.com/dmitrijs2005/clubsync/internal/remote"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) collection(req *structpb.Struct) (remote.CollectionClient, error) {
	name := pb.StringField(req, pb.FieldCollection)
	schema, ok := s.registry.Get(name)
	if !ok {
		return nil, status.Errorf(codes.FailedPrecondition, "collection %q does not exist", name)
	}
	return s.backend.Collection(schema), nil
}

func (s *GRPCServer) List(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	c, err := s.collection(req)
	if err != nil {
		return nil, err
	}

	recs, err := c.List(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	out, err := pb.FromRecords(plain(recs))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *GRPCServer) Get(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := s.collection(req)
	if err != nil {
		return nil, err
	}
	return s.record(ctx)(c.GetByID(ctx, pb.StringField(req, pb.FieldID)))
}

func (s *GRPCServer) GetByKey(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := s.collection(req)
	if err != nil {
		return nil, err
	}
	return s.record(ctx)(c.GetByForeignKey(ctx, pb.StringField(req, pb.FieldKey)))
}

func (s *GRPCServer) Create(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := s.collection(req)
	if err != nil {
		return nil, err
	}
	return s.record(ctx)(c.Create(ctx, entity.Record(pb.RecordField(req))))
}

func (s *GRPCServer) Update(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := s.collection(req)
	if err != nil {
		return nil, err
	}
	return s.record(ctx)(c.Update(ctx, pb.StringField(req, pb.FieldID), entity.Record(pb.RecordField(req))))
}

func (s *GRPCServer) Delete(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	c, err := s.collection(req)
	if err != nil {
		return nil, err
	}
	if err := c.Delete(ctx, pb.StringField(req, pb.FieldID)); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) record(ctx context.Context) func(entity.Record, error) (*structpb.Struct, error) {
	return func(rec entity.Record, err error) (*structpb.Struct, error) {
		if err != nil {
			return nil, s.toStatus(ctx, err)
		}
		out, err := pb.FromRecord(rec)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		return out, nil
	}
}

func plain(recs []entity.Record) []map[string]any {
	out := make([]map[string]any, len(recs))
	for i, r := range recs {
		out[i] = r
	}
	return out
}

// toStatus maps an error kind to the status code the client maps back.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch common.KindOf(err) {
	case common.KindSchemaAbsent:
		return status.Error(codes.FailedPrecondition, err.Error())
	case common.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case common.KindConflict:
		return status.Error(codes.InvalidArgument, err.Error())
	case common.KindUnauthorized:
		return status.Error(codes.PermissionDenied, err.Error())
	case common.KindRemoteUnavailable:
		return status.Error(codes.Unavailable, err.Error())
	default:
		s.logger.Error(ctx, "unclassified backend error", "err", err)
		return status.Error(codes.Internal, "internal error")
	}
}

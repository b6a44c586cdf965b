// Package proto holds the gRPC contract of the collection gateway. Messages
// are protobuf well-known types, so the service is registered by hand rather
// than generated: requests are Structs carrying "collection", "id", "key" and
// "record" fields, records travel as Structs and lists as ListValues.
package proto

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "clubsync.v1.Collections"

const (
	MethodList     = "/" + ServiceName + "/List"
	MethodGet      = "/" + ServiceName + "/Get"
	MethodGetByKey = "/" + ServiceName + "/GetByKey"
	MethodCreate   = "/" + ServiceName + "/Create"
	MethodUpdate   = "/" + ServiceName + "/Update"
	MethodDelete   = "/" + ServiceName + "/Delete"
)

// Request field names.
const (
	FieldCollection = "collection"
	FieldID         = "id"
	FieldKey        = "key"
	FieldRecord     = "record"
)

// CollectionsServer is the server API of the gateway.
type CollectionsServer interface {
	List(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	Get(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetByKey(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Create(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Update(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

func unary[T any](method string, call func(CollectionsServer, context.Context, *structpb.Struct) (T, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CollectionsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CollectionsServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes the Collections service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CollectionsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "List", Handler: unary(MethodList, CollectionsServer.List)},
		{MethodName: "Get", Handler: unary(MethodGet, CollectionsServer.Get)},
		{MethodName: "GetByKey", Handler: unary(MethodGetByKey, CollectionsServer.GetByKey)},
		{MethodName: "Create", Handler: unary(MethodCreate, CollectionsServer.Create)},
		{MethodName: "Update", Handler: unary(MethodUpdate, CollectionsServer.Update)},
		{MethodName: "Delete", Handler: unary(MethodDelete, CollectionsServer.Delete)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "clubsync/v1/collections.proto",
}

func RegisterCollectionsServer(s grpc.ServiceRegistrar, srv CollectionsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// CollectionsClient is the client API of the gateway.
type CollectionsClient interface {
	List(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error)
	Get(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetByKey(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Create(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Update(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Delete(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type collectionsClient struct {
	cc grpc.ClientConnInterface
}

func NewCollectionsClient(cc grpc.ClientConnInterface) CollectionsClient {
	return &collectionsClient{cc: cc}
}

func (c *collectionsClient) List(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, MethodList, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *collectionsClient) Get(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodGet, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *collectionsClient) GetByKey(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodGetByKey, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *collectionsClient) Create(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodCreate, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *collectionsClient) Update(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodUpdate, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *collectionsClient) Delete(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, MethodDelete, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// NewRequest builds a request Struct. record may be nil.
func NewRequest(collection, id, key string, record map[string]any) (*structpb.Struct, error) {
	fields := map[string]any{FieldCollection: collection}
	if id != "" {
		fields[FieldID] = id
	}
	if key != "" {
		fields[FieldKey] = key
	}
	if record != nil {
		plain, err := plainMap(record)
		if err != nil {
			return nil, err
		}
		fields[FieldRecord] = plain
	}
	return structpb.NewStruct(fields)
}

// StringField reads a string field of a request.
func StringField(req *structpb.Struct, name string) string {
	if req == nil {
		return ""
	}
	return req.GetFields()[name].GetStringValue()
}

// RecordField reads the record carried by a request.
func RecordField(req *structpb.Struct) map[string]any {
	if req == nil {
		return nil
	}
	return req.GetFields()[FieldRecord].GetStructValue().AsMap()
}

// FromRecord converts a record to a Struct.
func FromRecord(rec map[string]any) (*structpb.Struct, error) {
	plain, err := plainMap(rec)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(plain)
}

// FromRecords converts records to a ListValue of Structs.
func FromRecords(recs []map[string]any) (*structpb.ListValue, error) {
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(recs))}
	for _, r := range recs {
		s, err := FromRecord(r)
		if err != nil {
			return nil, err
		}
		out.Values = append(out.Values, structpb.NewStructValue(s))
	}
	return out, nil
}

// ToRecords converts a ListValue of Structs back to maps.
func ToRecords(l *structpb.ListValue) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(l.GetValues()))
	for i, v := range l.GetValues() {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("item %d is not a record", i)
		}
		out = append(out, s.AsMap())
	}
	return out, nil
}

// plainMap reduces arbitrary Go values to the types structpb accepts.
func plainMap(m map[string]any) (map[string]any, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

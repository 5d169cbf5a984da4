package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"storefront-service/internal/catalog"
	"storefront-service/internal/domain"
	"storefront-service/internal/store"
)

const catalogFeedService = "storefront.v1.CatalogFeed"

// CatalogFeedServer is the read-only catalog feed exposed to internal consumers
// (search indexers, marketing tools). Messages use the well-known protobuf types so
// no generated code is needed.
type CatalogFeedServer interface {
	GetSnapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetProduct(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Watch(*emptypb.Empty, grpc.ServerStream) error
}

// CatalogFeedServiceDesc registers a CatalogFeedServer on a grpc.Server.
var CatalogFeedServiceDesc = grpc.ServiceDesc{
	ServiceName: catalogFeedService,
	HandlerType: (*CatalogFeedServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSnapshot", Handler: getSnapshotHandler},
		{MethodName: "GetProduct", Handler: getProductHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "storefront/v1/catalog_feed.proto",
}

func RegisterCatalogFeedServer(s grpc.ServiceRegistrar, srv CatalogFeedServer) {
	s.RegisterService(&CatalogFeedServiceDesc, srv)
}

func getSnapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogFeedServer).GetSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + catalogFeedService + "/GetSnapshot"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogFeedServer).GetSnapshot(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getProductHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogFeedServer).GetProduct(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + catalogFeedService + "/GetProduct"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogFeedServer).GetProduct(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(CatalogFeedServer).Watch(in, stream)
}

// CatalogFeedClient is the client side of CatalogFeedServiceDesc.
type CatalogFeedClient struct {
	cc grpc.ClientConnInterface
}

func NewCatalogFeedClient(cc grpc.ClientConnInterface) *CatalogFeedClient {
	return &CatalogFeedClient{cc: cc}
}

func (c *CatalogFeedClient) GetSnapshot(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+catalogFeedService+"/GetSnapshot", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CatalogFeedClient) GetProduct(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+catalogFeedService+"/GetProduct", wrapperspb.String(id), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Watch opens the snapshot stream. Call Recv on the returned stream until it errors.
func (c *CatalogFeedClient) Watch(ctx context.Context, opts ...grpc.CallOption) (*SnapshotStream, error) {
	stream, err := c.cc.NewStream(ctx, &CatalogFeedServiceDesc.Streams[0], "/"+catalogFeedService+"/Watch", opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &SnapshotStream{stream: stream}, nil
}

type SnapshotStream struct {
	stream grpc.ClientStream
}

func (s *SnapshotStream) Recv() (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := s.stream.RecvMsg(out); err != nil {
		return nil, err
	}
	return out, nil
}

// GRPCHandler serves the catalog feed from the in-memory product table.
type GRPCHandler struct {
	table  *catalog.Table
	logger *zap.Logger
	now    func() time.Time
}

func NewGRPCHandler(table *catalog.Table, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{table: table, logger: logger, now: time.Now}
}

// mapDomainErrorToGrpcStatus converts store and domain failures into gRPC statuses.
func mapDomainErrorToGrpcStatus(err error, resourceName string, resourceID any) error {
	if err == nil {
		return nil
	}
	var validationErr *domain.ValidationError
	switch {
	case errors.Is(err, store.ErrProductNotFound), errors.Is(err, store.ErrCategoryNotFound):
		return status.Errorf(codes.NotFound, "%s with ID %v not found", resourceName, resourceID)
	case errors.As(err, &validationErr):
		return status.Errorf(codes.InvalidArgument, "%s", validationErr.Message)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		return status.Errorf(codes.Internal, "failed to process request for %s ID %v", resourceName, resourceID)
	}
}

func (s *GRPCHandler) GetSnapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	products := catalog.SortByDisplayOrder(s.table.All())
	s.logger.Debug("grpc snapshot requested", zap.Int("products", len(products)))
	msg, err := snapshotStruct(products, s.now())
	if err != nil {
		s.logger.Error("failed to encode snapshot", zap.Error(err))
		return nil, mapDomainErrorToGrpcStatus(err, "Catalog", "snapshot")
	}
	return msg, nil
}

func (s *GRPCHandler) GetProduct(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id := req.GetValue()
	if id == "" {
		return nil, mapDomainErrorToGrpcStatus(&domain.ValidationError{Message: "product id is required"}, "Product", id)
	}
	p, ok := s.table.Get(id)
	if !ok {
		return nil, mapDomainErrorToGrpcStatus(store.ErrProductNotFound, "Product", id)
	}
	msg, err := toStruct(newProductView(p, s.now()))
	if err != nil {
		s.logger.Error("failed to encode product", zap.String("product_id", id), zap.Error(err))
		return nil, mapDomainErrorToGrpcStatus(err, "Product", id)
	}
	return msg, nil
}

// Watch sends the current snapshot and then a full snapshot after every change until
// the client goes away.
func (s *GRPCHandler) Watch(_ *emptypb.Empty, stream grpc.ServerStream) error {
	snapshots, cancel := s.table.Subscribe()
	defer cancel()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return mapDomainErrorToGrpcStatus(ctx.Err(), "Catalog", "watch")
		case products, ok := <-snapshots:
			if !ok {
				return nil
			}
			msg, err := snapshotStruct(products, s.now())
			if err != nil {
				return mapDomainErrorToGrpcStatus(err, "Catalog", "watch")
			}
			if err := stream.SendMsg(msg); err != nil {
				s.logger.Debug("grpc watch send failed", zap.Error(err))
				return err
			}
		}
	}
}

func snapshotStruct(products []domain.Product, now time.Time) (*structpb.Struct, error) {
	return toStruct(SnapshotMessage{Type: "snapshot", Products: productViews(products, now)})
}

// toStruct round-trips through JSON so the feed carries the same field names as the
// HTTP API.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

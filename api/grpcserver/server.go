// Package grpcserver exposes order entry over gRPC. The service is small
// enough to describe by hand over protobuf well-known types.
package grpcserver

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"matchbook/gateway/fix"
	"matchbook/gateway/inbound"
	"matchbook/infra/logging"
	"matchbook/infra/queue"
)

const (
	ServiceName  = "matchbook.v1.OrderEntry"
	SubmitMethod = "/" + ServiceName + "/Submit"

	// ClientIDHeader carries the numeric client id of the session.
	ClientIDHeader = "x-client-id"
)

// Submitter is the inbound gateway.
type Submitter interface {
	Submit(ctx context.Context, line string, clientID uint64) (uint64, error)
}

// OrderEntryServer takes a raw FIX line and returns its journal sequence.
type OrderEntryServer interface {
	Submit(context.Context, *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error)
}

// Server adapts the inbound gateway to gRPC.
type Server struct {
	gw  Submitter
	log *zap.Logger
}

func NewServer(gw Submitter, logger *zap.Logger) *Server {
	return &Server{gw: gw, log: logging.OrNop(logger).Named("grpc")}
}

// -------------------- Commands --------------------

func (s *Server) Submit(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	clientID, err := clientIDFrom(ctx)
	if err != nil {
		return nil, err
	}

	seq, err := s.gw.Submit(ctx, req.GetValue(), clientID)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.UInt64(seq), nil
}

func clientIDFrom(ctx context.Context) (uint64, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	vals := md.Get(ClientIDHeader)
	if len(vals) == 0 {
		return 0, status.Errorf(codes.Unauthenticated, "missing %s metadata", ClientIDHeader)
	}
	id, err := strconv.ParseUint(vals[0], 10, 64)
	if err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "bad %s %q", ClientIDHeader, vals[0])
	}
	return id, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, queue.ErrClosed):
		return status.Error(codes.Unavailable, "order entry is shutting down")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, inbound.ErrEmpty),
		errors.Is(err, inbound.ErrUnsupported),
		errors.Is(err, fix.ErrNoFields),
		errors.Is(err, fix.ErrChecksum),
		errors.Is(err, fix.ErrMissingTag),
		errors.Is(err, fix.ErrBadValue):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// -------------------- Wiring --------------------

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderEntryServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Submit",
		Handler:    submitHandler,
	}},
	Streams:  []grpc.StreamDesc{},
	Metadata: "matchbook/v1/order_entry.proto",
}

func submitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderEntryServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SubmitMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderEntryServer).Submit(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func Register(g *grpc.Server, srv OrderEntryServer) {
	g.RegisterService(&serviceDesc, srv)
}

// NewGRPCServer builds a grpc.Server with request logging and registers s.
func NewGRPCServer(s *Server) *grpc.Server {
	g := grpc.NewServer(grpc.ChainUnaryInterceptor(logUnary(s.log)))
	Register(g, s)
	return g
}

func logUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("took", time.Since(start)),
			zap.Stringer("code", status.Code(err)),
		}
		if err != nil {
			log.Info("rpc failed", append(fields, zap.Error(err))...)
		} else {
			log.Debug("rpc", fields...)
		}
		return resp, err
	}
}

// Serve runs g on lis until ctx is done, then stops it gracefully.
func Serve(ctx context.Context, g *grpc.Server, lis net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- g.Serve(lis) }()

	select {
	case <-ctx.Done():
		g.GracefulStop()
		<-errc
		return nil
	case err := <-errc:
		return err
	}
}

// -------------------- Client --------------------

type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Submit sends line as clientID.
func (c *Client) Submit(ctx context.Context, line string, clientID uint64, opts ...grpc.CallOption) (uint64, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, ClientIDHeader, strconv.FormatUint(clientID, 10))
	out := new(wrapperspb.UInt64Value)
	if err := c.cc.Invoke(ctx, SubmitMethod, wrapperspb.String(line), out, opts...); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

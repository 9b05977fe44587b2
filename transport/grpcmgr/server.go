package grpcmgr

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/mpid/cidutil"
	"xdao.co/mpid/keys"
	"xdao.co/mpid/manager"
	"xdao.co/mpid/mpid"
	"xdao.co/mpid/xorname"
)

// AccountKey is the metadata key naming the calling account (hex).
const AccountKey = "mpid-account"

const (
	methodExchange = "Exchange"
	methodRemove   = "Remove"
)

// Server exposes a manager.Manager over the Manager gRPC service.
type Server struct {
	UnimplementedManagerServer
	Manager *manager.Manager
}

func (s *Server) Register(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.Manager == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing manager")
	}
	pub, err := keys.ParsePublicKey(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	name, err := s.Manager.Register(pub)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.String(name.Hex()), nil
}

func (s *Server) Exchange(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Manager == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing manager")
	}
	from, err := authenticate(ctx, s.Manager, methodExchange, in.GetValue())
	if err != nil {
		return nil, err
	}
	w, err := mpid.Decode(in.GetValue())
	if err != nil {
		return nil, mapErr(err)
	}
	reply, err := s.Manager.Handle(ctx, from, w)
	if err != nil {
		return nil, mapErr(err)
	}
	if reply == nil {
		return wrapperspb.Bytes(nil), nil
	}
	b, err := mpid.Encode(reply)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Remove(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if s == nil || s.Manager == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing manager")
	}
	from, err := authenticate(ctx, s.Manager, methodRemove, []byte(in.GetValue()))
	if err != nil {
		return nil, err
	}
	name, err := cidutil.ParseName(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.Manager.RemoveFromOutbox(from, name); err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bool(true), nil
}

func accountFrom(ctx context.Context) (xorname.Name, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	vals := md.Get(AccountKey)
	if len(vals) != 1 {
		return xorname.Name{}, status.Error(codes.Unauthenticated, "missing "+AccountKey+" metadata")
	}
	name, err := xorname.ParseHex(vals[0])
	if err != nil {
		return xorname.Name{}, status.Error(codes.Unauthenticated, err.Error())
	}
	return name, nil
}

// UnaryLogger logs every call with its method, outcome code and latency.
func UnaryLogger(log *zap.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod[strings.LastIndex(info.FullMethod, "/")+1:]),
			zap.Stringer("code", status.Code(err)),
			zap.Duration("elapsed", time.Since(start)),
		}
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(AccountKey); len(vals) == 1 && len(vals[0]) > 12 {
				fields = append(fields, zap.String("account", vals[0][:6]+".."+vals[0][len(vals[0])-6:]))
			}
		}
		if err != nil {
			log.Info("rpc failed", append(fields, zap.Error(err))...)
		} else {
			log.Debug("rpc", fields...)
		}
		return resp, err
	}
}

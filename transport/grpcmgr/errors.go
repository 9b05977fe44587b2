package grpcmgr

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/mpid/manager"
	"xdao.co/mpid/mpid"
	"xdao.co/mpid/storage"
)

// known lists the sentinel errors that survive a round trip. The status
// message carries the sentinel text so the client can restore it.
var known = []struct {
	err  error
	code codes.Code
}{
	{storage.ErrNotFound, codes.NotFound},
	{storage.ErrInvalidCID, codes.InvalidArgument},
	{storage.ErrImmutable, codes.AlreadyExists},
	{storage.ErrFull, codes.ResourceExhausted},
	{manager.ErrUnknownAccount, codes.NotFound},
	{manager.ErrSenderMismatch, codes.PermissionDenied},
	{manager.ErrInvalidSignature, codes.Unauthenticated},
	{manager.ErrNotRecipient, codes.PermissionDenied},
	{manager.ErrUnexpectedWrapper, codes.InvalidArgument},
	{manager.ErrNoMessage, codes.FailedPrecondition},
	{manager.ErrInvalidKey, codes.InvalidArgument},
	{ErrUnauthenticated, codes.Unauthenticated},
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	for _, k := range known {
		if errors.Is(err, k.err) {
			return status.Error(k.code, k.err.Error())
		}
	}
	switch {
	case mpid.IsKind(err, mpid.KindDecode), mpid.IsKind(err, mpid.KindInvalid),
		mpid.IsKind(err, mpid.KindMetadataTooLarge), mpid.IsKind(err, mpid.KindBodyTooLarge):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, k := range known {
		if st.Code() == k.code && st.Message() == k.err.Error() {
			return k.err
		}
	}
	switch st.Code() {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	default:
		return err
	}
}

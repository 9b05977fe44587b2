package grpcmgr

import (
	"context"
	"errors"

	"google.golang.org/grpc/metadata"

	"xdao.co/mpid/keys"
	"xdao.co/mpid/manager"
	"xdao.co/mpid/xorname"
)

// SignatureKey is the binary metadata key carrying the caller's signature
// over the request. Exchange and Remove require it.
const SignatureKey = "mpid-signature-bin"

const authDomain = "xdao-mpid-auth-v1"

// ErrUnauthenticated reports a missing signature or one that does not verify
// under the account's registered key.
var ErrUnauthenticated = errors.New("grpcmgr: request not signed by account key")

// authMessage is the byte string signed for one request: a domain tag, the
// method, the account name and the raw request payload, NUL separated.
func authMessage(method string, account xorname.Name, payload []byte) []byte {
	msg := make([]byte, 0, len(authDomain)+len(method)+len(account)+len(payload)+2)
	msg = append(msg, authDomain...)
	msg = append(msg, 0)
	msg = append(msg, method...)
	msg = append(msg, 0)
	msg = append(msg, account[:]...)
	return append(msg, payload...)
}

// authorize attaches the account name and a signature by sk to ctx.
func authorize(ctx context.Context, sk keys.SecretKey, method string, payload []byte) context.Context {
	account := keys.AccountName(sk.Public())
	sig := sk.Sign(authMessage(method, account, payload))
	return metadata.AppendToOutgoingContext(ctx, AccountKey, account.Hex(), SignatureKey, string(sig))
}

// authenticate resolves the calling account and checks its signature over
// payload against the key it registered with.
func authenticate(ctx context.Context, m *manager.Manager, method string, payload []byte) (xorname.Name, error) {
	from, err := accountFrom(ctx)
	if err != nil {
		return xorname.Name{}, err
	}
	pub, err := m.PublicKey(from)
	if err != nil {
		return xorname.Name{}, mapErr(err)
	}
	md, _ := metadata.FromIncomingContext(ctx)
	sigs := md.Get(SignatureKey)
	if len(sigs) != 1 || !pub.Verify(authMessage(method, from, payload), []byte(sigs[0])) {
		return xorname.Name{}, mapErr(ErrUnauthenticated)
	}
	return from, nil
}

package grpcmgr

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/mpid/keys"
	"xdao.co/mpid/manager"
	"xdao.co/mpid/mpid"
	"xdao.co/mpid/xorname"
)

// Client talks to a manager node on behalf of one or more accounts.
type Client struct {
	cc     *grpc.ClientConn
	client ManagerClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return NewClient(cc), nil
}

// NewClient wraps an existing connection.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: NewManagerClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// Register registers pub with the manager and returns the account name.
func (c *Client) Register(ctx context.Context, pub keys.PublicKey) (xorname.Name, error) {
	if pub == nil {
		return xorname.Name{}, manager.ErrInvalidKey
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Register(ctx, wrapperspb.String(keys.FormatPublicKey(pub)))
	if err != nil {
		return xorname.Name{}, mapRPC(err)
	}
	return xorname.ParseHex(reply.GetValue())
}

// Exchange sends w on behalf of the account owning sk and returns the
// manager's reply, or nil when the request needs none.
func (c *Client) Exchange(ctx context.Context, sk keys.SecretKey, w mpid.Wrapper) (mpid.Wrapper, error) {
	if sk == nil {
		return nil, manager.ErrInvalidKey
	}
	b, err := mpid.Encode(w)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Exchange(authorize(ctx, sk, methodExchange, b), wrapperspb.Bytes(b))
	if err != nil {
		return nil, mapRPC(err)
	}
	if len(reply.GetValue()) == 0 {
		return nil, nil
	}
	return mpid.Decode(reply.GetValue())
}

// Remove drops name from the outbox of the account owning sk.
func (c *Client) Remove(ctx context.Context, sk keys.SecretKey, name xorname.Name) error {
	if sk == nil {
		return manager.ErrInvalidKey
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	req := name.Hex()
	_, err := c.client.Remove(authorize(ctx, sk, methodRemove, []byte(req)), wrapperspb.String(req))
	return mapRPC(err)
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}

package manager

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"xdao.co/mpid/keys"
	"xdao.co/mpid/mpid"
	"xdao.co/mpid/storage"
	"xdao.co/mpid/xorname"
)

type client struct {
	sk   keys.SecretKey
	name xorname.Name
}

func newManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	opts.Logger = zaptest.NewLogger(t)
	return New(opts)
}

func register(t *testing.T, m *Manager, seed byte) client {
	t.Helper()
	sk, err := keys.Ed25519FromSeed(bytes.Repeat([]byte{seed}, keys.SeedSize))
	if err != nil {
		t.Fatalf("Ed25519FromSeed: %v", err)
	}
	name, err := m.Register(sk.Public())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return client{sk: sk, name: name}
}

func (c client) header(t *testing.T, metadata []byte) *mpid.Header {
	t.Helper()
	h, err := mpid.NewHeader(c.name, metadata, c.sk)
	if err != nil {
		t.Fatalf("NewHeader: %v", err)
	}
	return h
}

func (c client) message(t *testing.T, to xorname.Name, body string) *mpid.Message {
	t.Helper()
	msg, err := mpid.ComposeMessage(c.name, []byte("subject"), to, []byte(body), c.sk)
	if err != nil {
		t.Fatalf("ComposeMessage: %v", err)
	}
	return msg
}

func mustName(t *testing.T, h *mpid.Header) xorname.Name {
	t.Helper()
	n, err := h.Name()
	if err != nil {
		t.Fatalf("Name: %v", err)
	}
	return n
}

func handle(t *testing.T, m *Manager, from xorname.Name, w mpid.Wrapper) mpid.Wrapper {
	t.Helper()
	reply, err := m.Handle(context.Background(), from, w)
	if err != nil {
		t.Fatalf("Handle(%s): %v", w.Op(), err)
	}
	return reply
}

func TestOutboxHasAfterRemoval(t *testing.T) {
	m := newManager(t, Options{})
	alice := register(t, m, 1)

	h := alice.header(t, bytes.Repeat([]byte{0xab}, mpid.MaxHeaderMetadataSize))
	name := mustName(t, h)

	if reply := handle(t, m, alice.name, mpid.NewPutHeader(h)); reply != nil {
		t.Fatalf("PutHeader must not reply, got %s", reply.Op())
	}

	reply := handle(t, m, alice.name, mpid.NewOutboxHas([]xorname.Name{name}))
	resp, ok := reply.(mpid.OutboxHasResponse)
	if !ok {
		t.Fatalf("reply: got %T want OutboxHasResponse", reply)
	}
	if got := resp.Headers(); len(got) != 1 || !got[0].Equal(h) {
		t.Fatalf("OutboxHas: expected exactly the stored header")
	}

	if err := m.RemoveFromOutbox(alice.name, name); err != nil {
		t.Fatalf("RemoveFromOutbox: %v", err)
	}
	reply = handle(t, m, alice.name, mpid.NewOutboxHas([]xorname.Name{name}))
	if got := reply.(mpid.OutboxHasResponse).Headers(); len(got) != 0 {
		t.Fatalf("OutboxHas after removal: got %d headers", len(got))
	}
}

func TestOutboxHasDedupesAndSkipsUnknown(t *testing.T) {
	m := newManager(t, Options{})
	alice := register(t, m, 1)
	h := alice.header(t, nil)
	handle(t, m, alice.name, mpid.NewPutHeader(h))

	name := mustName(t, h)
	var missing xorname.Name
	missing[0] = 0x42
	reply := handle(t, m, alice.name, mpid.NewOutboxHas([]xorname.Name{name, missing, name}))
	if got := reply.(mpid.OutboxHasResponse).Headers(); len(got) != 1 {
		t.Fatalf("got %d headers, want 1", len(got))
	}
}

func TestPutMessageDeliversAndGetMessage(t *testing.T) {
	m := newManager(t, Options{})
	alice := register(t, m, 1)
	bob := register(t, m, 2)
	carol := register(t, m, 3)

	msg := alice.message(t, bob.name, "hi bob")
	handle(t, m, alice.name, mpid.NewPutMessage(msg))

	inbox, err := m.InboxHeaders(bob.name)
	if err != nil {
		t.Fatalf("InboxHeaders: %v", err)
	}
	if len(inbox) != 1 || !inbox[0].Equal(msg.Header()) {
		t.Fatalf("bob's inbox should hold the message header")
	}

	reply := handle(t, m, bob.name, mpid.NewGetMessage(inbox[0]))
	pm, ok := reply.(mpid.PutMessage)
	if !ok {
		t.Fatalf("reply: got %T want PutMessage", reply)
	}
	if !pm.Message().Equal(msg) || !pm.Message().Verify(alice.sk.Public()) {
		t.Fatalf("fetched message mismatch")
	}

	if _, err := m.Handle(context.Background(), carol.name, mpid.NewGetMessage(inbox[0])); !errors.Is(err, ErrNotRecipient) {
		t.Fatalf("carol GetMessage: got %v want ErrNotRecipient", err)
	}

	if err := m.RemoveFromInbox(bob.name, mustName(t, inbox[0])); err != nil {
		t.Fatalf("RemoveFromInbox: %v", err)
	}
	if inbox, _ := m.InboxHeaders(bob.name); len(inbox) != 0 {
		t.Fatalf("inbox not empty after removal")
	}
}

func TestPutMessageForRemoteRecipient(t *testing.T) {
	m := newManager(t, Options{})
	alice := register(t, m, 1)
	var remote xorname.Name
	remote[5] = 9

	msg := alice.message(t, remote, "far away")
	handle(t, m, alice.name, mpid.NewPutMessage(msg))
	reply := handle(t, m, alice.name, mpid.GetOutboxHeaders{})
	if got := reply.(mpid.GetOutboxHeadersResponse).Headers(); len(got) != 1 || !got[0].Equal(msg.Header()) {
		t.Fatalf("outbox should hold the message header")
	}
}

func TestGetMessageForHeaderOnlyEntry(t *testing.T) {
	m := newManager(t, Options{})
	alice := register(t, m, 1)
	h := alice.header(t, nil)
	handle(t, m, alice.name, mpid.NewPutHeader(h))
	if _, err := m.Handle(context.Background(), alice.name, mpid.NewGetMessage(h)); !errors.Is(err, ErrNoMessage) {
		t.Fatalf("got %v want ErrNoMessage", err)
	}
	other := alice.header(t, nil)
	if _, err := m.Handle(context.Background(), alice.name, mpid.NewGetMessage(other)); !storage.IsNotFound(err) {
		t.Fatalf("got %v want ErrNotFound", err)
	}
}

func TestGetOutboxHeadersSorted(t *testing.T) {
	m := newManager(t, Options{})
	alice := register(t, m, 1)
	for i := 0; i < 5; i++ {
		handle(t, m, alice.name, mpid.NewPutHeader(alice.header(t, []byte{byte(i)})))
	}
	reply := handle(t, m, alice.name, mpid.GetOutboxHeaders{})
	headers := reply.(mpid.GetOutboxHeadersResponse).Headers()
	if len(headers) != 5 {
		t.Fatalf("got %d headers want 5", len(headers))
	}
	for i := 1; i < len(headers); i++ {
		if mustName(t, headers[i-1]).Compare(mustName(t, headers[i])) >= 0 {
			t.Fatalf("headers not ordered by name")
		}
	}
}

func TestRejections(t *testing.T) {
	m := newManager(t, Options{})
	alice := register(t, m, 1)
	bob := register(t, m, 2)
	ctx := context.Background()

	h := alice.header(t, nil)
	if _, err := m.Handle(ctx, bob.name, mpid.NewPutHeader(h)); !errors.Is(err, ErrSenderMismatch) {
		t.Fatalf("foreign header: got %v want ErrSenderMismatch", err)
	}

	forged, err := mpid.NewHeader(bob.name, nil, alice.sk)
	if err != nil {
		t.Fatalf("NewHeader: %v", err)
	}
	if _, err := m.Handle(ctx, bob.name, mpid.NewPutHeader(forged)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("forged header: got %v want ErrInvalidSignature", err)
	}

	var stranger xorname.Name
	if _, err := m.Handle(ctx, stranger, mpid.Online{}); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("unknown account: got %v want ErrUnknownAccount", err)
	}

	for _, w := range []mpid.Wrapper{mpid.NewOutboxHasResponse(nil), mpid.NewGetOutboxHeadersResponse(nil), nil} {
		if _, err := m.Handle(ctx, alice.name, w); !errors.Is(err, ErrUnexpectedWrapper) {
			t.Fatalf("response from client: got %v want ErrUnexpectedWrapper", err)
		}
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := m.Handle(cancelled, alice.name, mpid.Online{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled context: got %v", err)
	}

	if _, err := m.Register(nil); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("Register(nil): got %v", err)
	}
}

func TestOnline(t *testing.T) {
	m := newManager(t, Options{})
	alice := register(t, m, 1)
	if m.IsOnline(alice.name) {
		t.Fatalf("fresh account must be offline")
	}
	if reply := handle(t, m, alice.name, mpid.Online{}); reply != nil {
		t.Fatalf("Online must not reply")
	}
	if !m.IsOnline(alice.name) {
		t.Fatalf("account should be online")
	}
}

func TestCapacity(t *testing.T) {
	m := newManager(t, Options{OutboxCapacity: 2000, InboxCapacity: 100})
	alice := register(t, m, 1)
	bob := register(t, m, 2)

	big := alice.message(t, bob.name, string(make([]byte, 400)))
	if _, err := m.Handle(context.Background(), alice.name, mpid.NewPutMessage(big)); !storage.IsFull(err) {
		t.Fatalf("inbox over capacity: got %v want ErrFull", err)
	}
	out, in, err := m.Usage(alice.name)
	if err != nil || out != 0 || in != 0 {
		t.Fatalf("failed delivery must roll back the outbox: out=%d in=%d err=%v", out, in, err)
	}

	huge := alice.message(t, bob.name, string(make([]byte, 3000)))
	if _, err := m.Handle(context.Background(), alice.name, mpid.NewPutMessage(huge)); !storage.IsFull(err) {
		t.Fatalf("outbox over capacity: got %v want ErrFull", err)
	}
}

func TestPutIsIdempotent(t *testing.T) {
	m := newManager(t, Options{})
	alice := register(t, m, 1)
	h := alice.header(t, []byte("again"))
	handle(t, m, alice.name, mpid.NewPutHeader(h))
	handle(t, m, alice.name, mpid.NewPutHeader(h))
	if again, err := m.Register(alice.sk.Public()); err != nil || again != alice.name {
		t.Fatalf("re-register: %v", err)
	}
	if len(m.Accounts()) != 1 {
		t.Fatalf("expected one account")
	}
}

func TestPointerWrappers(t *testing.T) {
	m := newManager(t, Options{})
	alice := register(t, m, 1)

	if reply := handle(t, m, alice.name, &mpid.Online{}); reply != nil {
		t.Fatalf("Online must not reply")
	}
	if !m.IsOnline(alice.name) {
		t.Fatalf("pointer Online must mark the account online")
	}

	h := alice.header(t, []byte("ptr"))
	put := mpid.NewPutHeader(h)
	handle(t, m, alice.name, &put)
	reply := handle(t, m, alice.name, &mpid.GetOutboxHeaders{})
	if got := reply.(mpid.GetOutboxHeadersResponse).Headers(); len(got) != 1 || !got[0].Equal(h) {
		t.Fatalf("outbox headers = %v", got)
	}

	var nilPut *mpid.PutHeader
	if _, err := m.Handle(context.Background(), alice.name, nilPut); !errors.Is(err, ErrUnexpectedWrapper) {
		t.Fatalf("nil pointer wrapper: %v", err)
	}
}

func TestPublicKey(t *testing.T) {
	m := newManager(t, Options{})
	alice := register(t, m, 1)
	pub, err := m.PublicKey(alice.name)
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	if keys.AccountName(pub) != alice.name {
		t.Fatalf("PublicKey returned a different key")
	}
	if _, err := m.PublicKey(xorname.Name{9}); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("unknown account: %v", err)
	}
}

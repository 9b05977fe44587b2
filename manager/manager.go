// Package manager implements an MPID manager node: it holds a bounded outbox
// and inbox per registered account and answers mailbox protocol requests.
//
// State is in memory only. The manager never relays between nodes.
package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"xdao.co/mpid/cidutil"
	"xdao.co/mpid/keys"
	"xdao.co/mpid/mpid"
	"xdao.co/mpid/storage"
	"xdao.co/mpid/storage/memory"
	"xdao.co/mpid/xorname"
)

type Options struct {
	// OutboxCapacity and InboxCapacity bound each account's stores in bytes.
	// Zero selects mpid.MaxOutboxSize / mpid.MaxInboxSize.
	OutboxCapacity int64
	InboxCapacity  int64

	// NewStore builds a per-account store. Defaults to memory.New.
	NewStore func(capacity int64) storage.Store

	Logger *zap.Logger
}

type account struct {
	name   xorname.Name
	pub    keys.PublicKey
	outbox storage.Store
	inbox  storage.Store

	mu     sync.Mutex
	online bool
}

// Manager is safe for concurrent use.
type Manager struct {
	opts Options
	log  *zap.Logger

	mu       sync.RWMutex
	accounts map[xorname.Name]*account
}

func New(opts Options) *Manager {
	if opts.OutboxCapacity <= 0 {
		opts.OutboxCapacity = mpid.MaxOutboxSize
	}
	if opts.InboxCapacity <= 0 {
		opts.InboxCapacity = mpid.MaxInboxSize
	}
	if opts.NewStore == nil {
		opts.NewStore = func(capacity int64) storage.Store { return memory.New(capacity) }
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{opts: opts, log: log.Named("manager"), accounts: make(map[xorname.Name]*account)}
}

// Register adds an account for pub and returns its name. Registering the same
// key again is a no-op.
func (m *Manager) Register(pub keys.PublicKey) (xorname.Name, error) {
	if pub == nil {
		return xorname.Name{}, ErrInvalidKey
	}
	name := keys.AccountName(pub)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[name]; ok {
		return name, nil
	}
	m.accounts[name] = &account{
		name:   name,
		pub:    pub,
		outbox: m.opts.NewStore(m.opts.OutboxCapacity),
		inbox:  m.opts.NewStore(m.opts.InboxCapacity),
	}
	m.log.Info("account registered", zap.Stringer("account", name), zap.String("algorithm", string(pub.Algorithm())))
	return name, nil
}

func (m *Manager) lookup(name xorname.Name) (*account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, name)
	}
	return a, nil
}

// PublicKey returns the key account was registered with.
func (m *Manager) PublicKey(account xorname.Name) (keys.PublicKey, error) {
	a, err := m.lookup(account)
	if err != nil {
		return nil, err
	}
	return a.pub, nil
}

// Accounts returns the registered account names in byte order.
func (m *Manager) Accounts() []xorname.Name {
	m.mu.RLock()
	out := make([]xorname.Name, 0, len(m.accounts))
	for n := range m.accounts {
		out = append(out, n)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}

// Handle processes one request from the account named from. A nil reply
// with a nil error means the request needs no answer.
func (m *Manager) Handle(ctx context.Context, from xorname.Name, w mpid.Wrapper) (mpid.Wrapper, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w = mpid.Normalize(w)
	if w == nil {
		return nil, ErrUnexpectedWrapper
	}
	a, err := m.lookup(from)
	if err != nil {
		return nil, err
	}
	log := m.log.With(zap.Stringer("account", from), zap.Stringer("op", w.Op()))

	reply, err := m.dispatch(a, w)
	if err != nil {
		log.Debug("request rejected", zap.Error(err))
		return nil, err
	}
	log.Debug("request handled")
	return reply, nil
}

func (m *Manager) dispatch(a *account, w mpid.Wrapper) (mpid.Wrapper, error) {
	switch v := w.(type) {
	case mpid.Online:
		a.mu.Lock()
		a.online = true
		a.mu.Unlock()
		return nil, nil
	case mpid.PutHeader:
		return nil, m.putHeader(a, v.Header())
	case mpid.PutMessage:
		return nil, m.putMessage(a, v.Message())
	case mpid.GetMessage:
		msg, err := m.getMessage(a, v.Header())
		if err != nil {
			return nil, err
		}
		return mpid.NewPutMessage(msg), nil
	case mpid.OutboxHas:
		headers, err := outboxHas(a, v.Names())
		if err != nil {
			return nil, err
		}
		return mpid.NewOutboxHasResponse(headers), nil
	case mpid.GetOutboxHeaders:
		headers, err := outboxHeaders(a)
		if err != nil {
			return nil, err
		}
		return mpid.NewGetOutboxHeadersResponse(headers), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedWrapper, w.Op())
	}
}

func (m *Manager) putHeader(a *account, h *mpid.Header) error {
	if h == nil {
		return fmt.Errorf("%w: %s", ErrUnexpectedWrapper, mpid.OpPutHeader)
	}
	if h.Sender() != a.name {
		return ErrSenderMismatch
	}
	if !h.Verify(a.pub) {
		return ErrInvalidSignature
	}
	name, err := h.Name()
	if err != nil {
		return err
	}
	entry, err := mpid.Encode(mpid.NewPutHeader(h))
	if err != nil {
		return err
	}
	return a.outbox.Put(cidutil.NameCID(name), entry)
}

func (m *Manager) putMessage(a *account, msg *mpid.Message) error {
	if msg == nil {
		return fmt.Errorf("%w: %s", ErrUnexpectedWrapper, mpid.OpPutMessage)
	}
	if msg.Header().Sender() != a.name {
		return ErrSenderMismatch
	}
	if !msg.Verify(a.pub) {
		return ErrInvalidSignature
	}
	name, err := msg.Name()
	if err != nil {
		return err
	}
	entry, err := mpid.Encode(mpid.NewPutMessage(msg))
	if err != nil {
		return err
	}
	id := cidutil.NameCID(name)
	existed := a.outbox.Has(id)
	if err := a.outbox.Put(id, entry); err != nil {
		return err
	}

	recipient, err := m.lookup(msg.Recipient())
	if err != nil {
		// Recipients on other nodes fetch through GetMessage.
		return nil
	}
	header, err := msg.Header().Encode()
	if err != nil {
		return err
	}
	if err := recipient.inbox.Put(id, header); err != nil {
		if !existed {
			_ = a.outbox.Delete(id)
		}
		m.log.Warn("inbox delivery failed",
			zap.Stringer("recipient", recipient.name), zap.Stringer("name", name), zap.Error(err))
		return fmt.Errorf("manager: delivering to %s: %w", recipient.name, err)
	}
	return nil
}

func (m *Manager) getMessage(requester *account, h *mpid.Header) (*mpid.Message, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedWrapper, mpid.OpGetMessage)
	}
	sender, err := m.lookup(h.Sender())
	if err != nil {
		return nil, err
	}
	name, err := h.Name()
	if err != nil {
		return nil, err
	}
	w, err := loadEntry(sender.outbox, cidutil.NameCID(name))
	if err != nil {
		return nil, err
	}
	pm, ok := w.(mpid.PutMessage)
	if !ok {
		return nil, ErrNoMessage
	}
	msg := pm.Message()
	if msg.Recipient() != requester.name {
		return nil, ErrNotRecipient
	}
	return msg, nil
}

func outboxHas(a *account, names []xorname.Name) ([]*mpid.Header, error) {
	var out []*mpid.Header
	for _, n := range mpid.UniqueNames(names) {
		id := cidutil.NameCID(n)
		if !a.outbox.Has(id) {
			continue
		}
		h, err := loadHeader(a.outbox, id)
		if storage.IsNotFound(err) {
			// Removed concurrently.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// outboxHeaders returns every header in the outbox ordered by name. Store
// keys share one CID prefix, so key order is name order.
func outboxHeaders(a *account) ([]*mpid.Header, error) {
	var out []*mpid.Header
	for _, id := range a.outbox.Keys() {
		h, err := loadHeader(a.outbox, id)
		if storage.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func loadEntry(s storage.Store, id cid.Cid) (mpid.Wrapper, error) {
	b, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return mpid.Decode(b)
}

func loadHeader(s storage.Store, id cid.Cid) (*mpid.Header, error) {
	w, err := loadEntry(s, id)
	if err != nil {
		return nil, err
	}
	switch v := w.(type) {
	case mpid.PutHeader:
		return v.Header(), nil
	case mpid.PutMessage:
		return v.Message().Header(), nil
	default:
		return nil, fmt.Errorf("manager: corrupt outbox entry %s (%s)", id, w.Op())
	}
}

// RemoveFromOutbox drops the named entry from account's outbox.
func (m *Manager) RemoveFromOutbox(account, name xorname.Name) error {
	a, err := m.lookup(account)
	if err != nil {
		return err
	}
	if err := a.outbox.Delete(cidutil.NameCID(name)); err != nil {
		return err
	}
	m.log.Debug("outbox entry removed", zap.Stringer("account", account), zap.Stringer("name", name))
	return nil
}

// RemoveFromInbox drops a delivered header from account's inbox.
func (m *Manager) RemoveFromInbox(account, name xorname.Name) error {
	a, err := m.lookup(account)
	if err != nil {
		return err
	}
	return a.inbox.Delete(cidutil.NameCID(name))
}

// InboxHeaders returns the headers delivered to account, ordered by name.
func (m *Manager) InboxHeaders(account xorname.Name) ([]*mpid.Header, error) {
	a, err := m.lookup(account)
	if err != nil {
		return nil, err
	}
	var out []*mpid.Header
	for _, id := range a.inbox.Keys() {
		b, err := a.inbox.Get(id)
		if storage.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		h, err := mpid.DecodeHeader(b)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func (m *Manager) IsOnline(account xorname.Name) bool {
	a, err := m.lookup(account)
	if err != nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.online
}

// Usage reports the bytes held in account's outbox and inbox.
func (m *Manager) Usage(account xorname.Name) (outbox, inbox int64, err error) {
	a, err := m.lookup(account)
	if err != nil {
		return 0, 0, err
	}
	return a.outbox.Size(), a.inbox.Size(), nil
}

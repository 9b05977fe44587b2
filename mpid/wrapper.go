package mpid

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"xdao.co/mpid/xorname"
)

// Op is the discriminant of a Wrapper. Values are part of the wire format.
type Op uint8

const (
	OpOnline Op = iota + 1
	OpPutMessage
	OpPutHeader
	OpGetMessage
	OpOutboxHas
	OpOutboxHasResponse
	OpGetOutboxHeaders
	OpGetOutboxHeadersResponse
)

func (o Op) String() string {
	switch o {
	case OpOnline:
		return "Online"
	case OpPutMessage:
		return "PutMessage"
	case OpPutHeader:
		return "PutHeader"
	case OpGetMessage:
		return "GetMessage"
	case OpOutboxHas:
		return "OutboxHas"
	case OpOutboxHasResponse:
		return "OutboxHasResponse"
	case OpGetOutboxHeaders:
		return "GetOutboxHeaders"
	case OpGetOutboxHeadersResponse:
		return "GetOutboxHeadersResponse"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// Wrapper is one operation of the mailbox protocol. The set of
// implementations is closed: Online, PutMessage, PutHeader, GetMessage,
// OutboxHas, OutboxHasResponse, GetOutboxHeaders and GetOutboxHeadersResponse.
// Pointers to these types also satisfy Wrapper; Normalize maps them to the
// value form, and Encode and Equal accept both.
type Wrapper interface {
	Op() Op
	isWrapper()
}

// Online announces that the client is reachable.
type Online struct{}

// PutMessage asks the manager to store a full message in the sender's outbox.
type PutMessage struct{ message *Message }

// PutHeader asks the manager to store a notification.
type PutHeader struct{ header *Header }

// GetMessage requests the message for a known header. The manager answers
// with PutMessage.
type GetMessage struct{ header *Header }

// OutboxHas asks which of the named envelopes are still in the outbox.
type OutboxHas struct{ names []xorname.Name }

// OutboxHasResponse lists the headers, out of those queried, that are still
// present. Order is unspecified and each name appears at most once.
type OutboxHasResponse struct{ headers []*Header }

// GetOutboxHeaders asks for every header retained in the outbox.
type GetOutboxHeaders struct{}

// GetOutboxHeadersResponse lists every retained header in no particular order.
type GetOutboxHeadersResponse struct{ headers []*Header }

func NewPutMessage(m *Message) PutMessage { return PutMessage{message: m} }
func NewPutHeader(h *Header) PutHeader    { return PutHeader{header: h} }
func NewGetMessage(h *Header) GetMessage  { return GetMessage{header: h} }

func NewOutboxHas(names []xorname.Name) OutboxHas {
	return OutboxHas{names: append([]xorname.Name{}, names...)}
}

func NewOutboxHasResponse(headers []*Header) OutboxHasResponse {
	return OutboxHasResponse{headers: append([]*Header{}, headers...)}
}

func NewGetOutboxHeadersResponse(headers []*Header) GetOutboxHeadersResponse {
	return GetOutboxHeadersResponse{headers: append([]*Header{}, headers...)}
}

func (w PutMessage) Message() *Message { return w.message }
func (w PutHeader) Header() *Header    { return w.header }
func (w GetMessage) Header() *Header   { return w.header }

func (w OutboxHas) Names() []xorname.Name {
	return append([]xorname.Name{}, w.names...)
}

func (w OutboxHasResponse) Headers() []*Header {
	return append([]*Header{}, w.headers...)
}

func (w GetOutboxHeadersResponse) Headers() []*Header {
	return append([]*Header{}, w.headers...)
}

func (Online) Op() Op                   { return OpOnline }
func (PutMessage) Op() Op               { return OpPutMessage }
func (PutHeader) Op() Op                { return OpPutHeader }
func (GetMessage) Op() Op               { return OpGetMessage }
func (OutboxHas) Op() Op                { return OpOutboxHas }
func (OutboxHasResponse) Op() Op        { return OpOutboxHasResponse }
func (GetOutboxHeaders) Op() Op         { return OpGetOutboxHeaders }
func (GetOutboxHeadersResponse) Op() Op { return OpGetOutboxHeadersResponse }

func (Online) isWrapper()                   {}
func (PutMessage) isWrapper()               {}
func (PutHeader) isWrapper()                {}
func (GetMessage) isWrapper()               {}
func (OutboxHas) isWrapper()                {}
func (OutboxHasResponse) isWrapper()        {}
func (GetOutboxHeaders) isWrapper()         {}
func (GetOutboxHeadersResponse) isWrapper() {}

// Normalize returns the value form of w. Nil pointer variants become nil.
func Normalize(w Wrapper) Wrapper {
	switch v := w.(type) {
	case *Online:
		if v == nil {
			return nil
		}
		return *v
	case *PutMessage:
		if v == nil {
			return nil
		}
		return *v
	case *PutHeader:
		if v == nil {
			return nil
		}
		return *v
	case *GetMessage:
		if v == nil {
			return nil
		}
		return *v
	case *OutboxHas:
		if v == nil {
			return nil
		}
		return *v
	case *OutboxHasResponse:
		if v == nil {
			return nil
		}
		return *v
	case *GetOutboxHeaders:
		if v == nil {
			return nil
		}
		return *v
	case *GetOutboxHeadersResponse:
		if v == nil {
			return nil
		}
		return *v
	default:
		return w
	}
}

// Encode serializes w as the canonical CBOR array [op, payload]. Variants
// without a payload carry null.
func Encode(w Wrapper) ([]byte, error) {
	w = Normalize(w)
	if w == nil {
		return nil, newError(KindInvalid, "MPID-WRAP-006", "nil wrapper")
	}
	var payload any
	switch v := w.(type) {
	case Online, GetOutboxHeaders:
	case PutMessage:
		if v.message == nil || v.message.header == nil {
			return nil, newError(KindInvalid, "MPID-WRAP-001", "PutMessage without message")
		}
		payload = v.message.wire()
	case PutHeader:
		if v.header == nil {
			return nil, newError(KindInvalid, "MPID-WRAP-002", "PutHeader without header")
		}
		payload = v.header.wire()
	case GetMessage:
		if v.header == nil {
			return nil, newError(KindInvalid, "MPID-WRAP-003", "GetMessage without header")
		}
		payload = v.header.wire()
	case OutboxHas:
		names := make([][]byte, len(v.names))
		for i := range v.names {
			names[i] = v.names[i][:]
		}
		payload = names
	case OutboxHasResponse:
		ws, err := headerWires(v.headers)
		if err != nil {
			return nil, err
		}
		payload = ws
	case GetOutboxHeadersResponse:
		ws, err := headerWires(v.headers)
		if err != nil {
			return nil, err
		}
		payload = ws
	default:
		return nil, newError(KindInvalid, "MPID-WRAP-004", fmt.Sprintf("unsupported wrapper %T", w))
	}

	out := wrapperWire{Kind: uint64(w.Op())}
	if payload != nil {
		raw, err := encodeCanonical(payload, "MPID-ENC-006", w.Op().String()+" payload")
		if err != nil {
			return nil, err
		}
		out.Payload = raw
	}
	return encodeCanonical(out, "MPID-ENC-007", "wrapper")
}

func headerWires(headers []*Header) ([]headerWire, error) {
	ws := make([]headerWire, len(headers))
	for i, h := range headers {
		if h == nil {
			return nil, newError(KindInvalid, "MPID-WRAP-005", "nil header in list")
		}
		ws[i] = h.wire()
	}
	return ws, nil
}

// Decode parses bytes produced by Encode. An unknown op is an error, never a
// default variant. Signatures are not checked.
func Decode(b []byte) (Wrapper, error) {
	var w wrapperWire
	if err := decodeWire(b, &w, "MPID-WIRE-001", "wrapper"); err != nil {
		return nil, err
	}
	if w.Kind == 0 || w.Kind > uint64(OpGetOutboxHeadersResponse) {
		return nil, newError(KindDecode, "MPID-WIRE-002", fmt.Sprintf("unknown wrapper op %d", w.Kind))
	}

	switch op := Op(w.Kind); op {
	case OpOnline:
		if !isNull(w.Payload) {
			return nil, newError(KindDecode, "MPID-WIRE-003", "Online carries a payload")
		}
		return Online{}, nil
	case OpGetOutboxHeaders:
		if !isNull(w.Payload) {
			return nil, newError(KindDecode, "MPID-WIRE-003", "GetOutboxHeaders carries a payload")
		}
		return GetOutboxHeaders{}, nil
	case OpPutMessage:
		var mw messageWire
		if err := decodeWire(w.Payload, &mw, "MPID-WIRE-004", "PutMessage payload"); err != nil {
			return nil, err
		}
		m, err := messageFromWire(mw)
		if err != nil {
			return nil, err
		}
		return PutMessage{message: m}, nil
	case OpPutHeader, OpGetMessage:
		var hw headerWire
		if err := decodeWire(w.Payload, &hw, "MPID-WIRE-004", op.String()+" payload"); err != nil {
			return nil, err
		}
		h, err := headerFromWire(hw)
		if err != nil {
			return nil, err
		}
		if op == OpPutHeader {
			return PutHeader{header: h}, nil
		}
		return GetMessage{header: h}, nil
	case OpOutboxHas:
		var raw [][]byte
		if err := decodeWire(w.Payload, &raw, "MPID-WIRE-004", "OutboxHas payload"); err != nil {
			return nil, err
		}
		names := make([]xorname.Name, len(raw))
		for i, b := range raw {
			n, err := xorname.FromBytes(b)
			if err != nil {
				return nil, wrapError(KindDecode, "MPID-WIRE-005", "OutboxHas name", err)
			}
			names[i] = n
		}
		return OutboxHas{names: names}, nil
	case OpOutboxHasResponse, OpGetOutboxHeadersResponse:
		var hws []headerWire
		if err := decodeWire(w.Payload, &hws, "MPID-WIRE-004", op.String()+" payload"); err != nil {
			return nil, err
		}
		headers := make([]*Header, len(hws))
		for i := range hws {
			h, err := headerFromWire(hws[i])
			if err != nil {
				return nil, err
			}
			headers[i] = h
		}
		if op == OpOutboxHasResponse {
			return OutboxHasResponse{headers: headers}, nil
		}
		return GetOutboxHeadersResponse{headers: headers}, nil
	default:
		return nil, newError(KindDecode, "MPID-WIRE-002", fmt.Sprintf("unknown wrapper op %d", w.Kind))
	}
}

func isNull(raw cbor.RawMessage) bool {
	return len(raw) == 0 || (len(raw) == 1 && raw[0] == 0xf6)
}

// Equal reports whether a and b are the same variant with equal payloads.
func Equal(a, b Wrapper) bool {
	a, b = Normalize(a), Normalize(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case Online:
		_, ok := b.(Online)
		return ok
	case GetOutboxHeaders:
		_, ok := b.(GetOutboxHeaders)
		return ok
	case PutMessage:
		bv, ok := b.(PutMessage)
		return ok && av.message.Equal(bv.message)
	case PutHeader:
		bv, ok := b.(PutHeader)
		return ok && av.header.Equal(bv.header)
	case GetMessage:
		bv, ok := b.(GetMessage)
		return ok && av.header.Equal(bv.header)
	case OutboxHas:
		bv, ok := b.(OutboxHas)
		if !ok || len(av.names) != len(bv.names) {
			return false
		}
		for i := range av.names {
			if av.names[i] != bv.names[i] {
				return false
			}
		}
		return true
	case OutboxHasResponse:
		bv, ok := b.(OutboxHasResponse)
		return ok && headersEqual(av.headers, bv.headers)
	case GetOutboxHeadersResponse:
		bv, ok := b.(GetOutboxHeadersResponse)
		return ok && headersEqual(av.headers, bv.headers)
	default:
		return false
	}
}

func headersEqual(a, b []*Header) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

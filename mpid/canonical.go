package mpid

import (
	"github.com/fxamacker/cbor/v2"
)

// encoder is the canonical encoder contract: the same logical value always
// yields the same bytes.
type encoder interface {
	Marshal(v any) ([]byte, error)
}

var (
	canonical encoder     = mustEncMode()
	wireDec   cbor.DecMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: 1 << 20,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}

// headerFields is the signed portion of a header.
type headerFields struct {
	_        struct{} `cbor:",toarray"`
	Sender   []byte
	GUID     []byte
	Metadata []byte
}

// headerWire is the complete header; its encoding is hashed to derive names.
type headerWire struct {
	_         struct{} `cbor:",toarray"`
	Sender    []byte
	GUID      []byte
	Metadata  []byte
	Signature []byte
}

// messageFields is the signed portion of a message. The header is signed on
// its own and is deliberately absent here.
type messageFields struct {
	_         struct{} `cbor:",toarray"`
	Recipient []byte
	Body      []byte
}

type messageWire struct {
	_         struct{} `cbor:",toarray"`
	Header    headerWire
	Recipient []byte
	Body      []byte
	Signature []byte
}

type wrapperWire struct {
	_       struct{} `cbor:",toarray"`
	Kind    uint64
	Payload cbor.RawMessage
}

func encodeCanonical(v any, ruleID, what string) ([]byte, error) {
	b, err := canonical.Marshal(v)
	if err != nil {
		return nil, wrapError(KindEncoding, ruleID, "canonical encoding of "+what+" failed", err)
	}
	return b, nil
}

func decodeWire(b []byte, v any, ruleID, what string) error {
	if err := wireDec.Unmarshal(b, v); err != nil {
		return wrapError(KindDecode, ruleID, "malformed "+what, err)
	}
	return nil
}

// cloneBytes copies b into a non-nil slice so empty values always encode as
// an empty byte string rather than null.
func cloneBytes(b []byte) []byte {
	return append([]byte{}, b...)
}

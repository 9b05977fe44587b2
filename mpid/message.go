package mpid

import (
	"bytes"
	"fmt"

	"xdao.co/mpid/keys"
	"xdao.co/mpid/xorname"
)

// Message is a full message: a header plus recipient and body, with its own
// signature over recipient and body.
type Message struct {
	header    *Header
	recipient xorname.Name
	body      []byte
	signature []byte
}

// NewMessage signs recipient and body and embeds header unchanged.
//
// header must already be a properly constructed header; it is not verified
// again here. body may be empty and must not exceed MaxBodySize.
func NewMessage(header *Header, recipient xorname.Name, body []byte, sk keys.SecretKey) (*Message, error) {
	if len(body) > MaxBodySize {
		return nil, newError(KindBodyTooLarge, "MPID-MSG-001",
			fmt.Sprintf("body is %d bytes, limit is %d", len(body), MaxBodySize))
	}
	if header == nil {
		return nil, newError(KindInvalid, "MPID-MSG-002", "missing header")
	}
	if sk == nil {
		return nil, newError(KindInvalid, "MPID-MSG-003", "missing secret key")
	}

	m := &Message{header: header, recipient: recipient, body: cloneBytes(body)}
	signed, err := m.signedBytes()
	if err != nil {
		return nil, err
	}
	m.signature = sk.Sign(signed)
	return m, nil
}

// ComposeMessage builds a fresh header from sender and metadata and then the
// message around it, all signed by sk.
func ComposeMessage(sender xorname.Name, metadata []byte, recipient xorname.Name, body []byte, sk keys.SecretKey) (*Message, error) {
	if len(body) > MaxBodySize {
		return nil, newError(KindBodyTooLarge, "MPID-MSG-001",
			fmt.Sprintf("body is %d bytes, limit is %d", len(body), MaxBodySize))
	}
	header, err := NewHeader(sender, metadata, sk)
	if err != nil {
		return nil, err
	}
	return NewMessage(header, recipient, body, sk)
}

func (m *Message) Header() *Header { return m.header }

func (m *Message) Recipient() xorname.Name { return m.recipient }

// Body returns a copy of the body.
func (m *Message) Body() []byte { return cloneBytes(m.body) }

// Signature returns a copy of the message-level signature.
func (m *Message) Signature() []byte { return cloneBytes(m.signature) }

func (m *Message) signedBytes() ([]byte, error) {
	return encodeCanonical(messageFields{Recipient: m.recipient[:], Body: m.body}, "MPID-ENC-003", "message fields")
}

func (m *Message) signatureValid(pub keys.PublicKey) bool {
	signed, err := m.signedBytes()
	if err != nil {
		return false
	}
	return pub.Verify(signed, m.signature)
}

// Verify reports whether both the message signature and the embedded header
// signature check out under pub. Requiring the same key for both binds the
// header and the body to one author.
func (m *Message) Verify(pub keys.PublicKey) bool {
	if m == nil || pub == nil {
		return false
	}
	return m.signatureValid(pub) && m.header.Verify(pub)
}

// Name is the name of the embedded header: messages sharing a header share a
// name.
func (m *Message) Name() (xorname.Name, error) {
	if m == nil || m.header == nil {
		return xorname.Name{}, newError(KindInvalid, "MPID-NAME-002", "message without header")
	}
	return m.header.Name()
}

func (m *Message) wire() messageWire {
	return messageWire{Header: m.header.wire(), Recipient: m.recipient[:], Body: m.body, Signature: m.signature}
}

// Encode returns the canonical wire encoding of the message.
func (m *Message) Encode() ([]byte, error) {
	if m == nil || m.header == nil {
		return nil, newError(KindInvalid, "MPID-NAME-002", "message without header")
	}
	return encodeCanonical(m.wire(), "MPID-ENC-005", "message")
}

func (m *Message) Equal(other *Message) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.header.Equal(other.header) &&
		m.recipient == other.recipient &&
		bytes.Equal(m.body, other.body) &&
		bytes.Equal(m.signature, other.signature)
}

func (m *Message) String() string {
	if m == nil {
		return "MpidMessage(<nil>)"
	}
	return fmt.Sprintf("MpidMessage { header: %s, recipient: %s, body: %s, signature: %s }",
		m.header, m.recipient, xorname.FormatBinary(m.body), xorname.FormatBinary(m.signature))
}

// DecodeMessage parses a message produced by Encode. Call Verify to
// authenticate the result.
func DecodeMessage(b []byte) (*Message, error) {
	var w messageWire
	if err := decodeWire(b, &w, "MPID-WIRE-020", "message"); err != nil {
		return nil, err
	}
	return messageFromWire(w)
}

func messageFromWire(w messageWire) (*Message, error) {
	header, err := headerFromWire(w.Header)
	if err != nil {
		return nil, err
	}
	recipient, err := xorname.FromBytes(w.Recipient)
	if err != nil {
		return nil, wrapError(KindDecode, "MPID-WIRE-021", "message recipient", err)
	}
	if len(w.Body) > MaxBodySize {
		return nil, newError(KindDecode, "MPID-WIRE-022", fmt.Sprintf("message body is %d bytes, limit is %d", len(w.Body), MaxBodySize))
	}
	if len(w.Signature) == 0 {
		return nil, newError(KindDecode, "MPID-WIRE-023", "message signature missing")
	}
	return &Message{header: header, recipient: recipient, body: cloneBytes(w.Body), signature: cloneBytes(w.Signature)}, nil
}

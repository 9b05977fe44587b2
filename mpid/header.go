package mpid

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"

	"xdao.co/mpid/cidutil"
	"xdao.co/mpid/keys"
	"xdao.co/mpid/xorname"
)

// Header is a signed notification: it tells a recipient that sender has
// something for them, and can be verified on its own.
type Header struct {
	sender    xorname.Name
	guid      [GUIDSize]byte
	metadata  []byte
	signature []byte
}

// NewHeader builds and signs a header, drawing its GUID from crypto/rand.
//
// metadata may be empty and must not exceed MaxHeaderMetadataSize.
func NewHeader(sender xorname.Name, metadata []byte, sk keys.SecretKey) (*Header, error) {
	return NewHeaderWithRand(rand.Reader, sender, metadata, sk)
}

// NewHeaderWithRand is NewHeader with an explicit GUID source. The reader must
// be safe for use by concurrent callers if it is shared.
//
// GUIDs are random and never checked for uniqueness.
func NewHeaderWithRand(r io.Reader, sender xorname.Name, metadata []byte, sk keys.SecretKey) (*Header, error) {
	if len(metadata) > MaxHeaderMetadataSize {
		return nil, newError(KindMetadataTooLarge, "MPID-HDR-001",
			fmt.Sprintf("metadata is %d bytes, limit is %d", len(metadata), MaxHeaderMetadataSize))
	}
	if sk == nil {
		return nil, newError(KindInvalid, "MPID-HDR-002", "missing secret key")
	}
	if r == nil {
		return nil, newError(KindInvalid, "MPID-HDR-003", "missing randomness source")
	}

	h := &Header{sender: sender, metadata: cloneBytes(metadata)}
	if _, err := io.ReadFull(r, h.guid[:]); err != nil {
		return nil, wrapError(KindRandomness, "MPID-HDR-004", "reading guid", err)
	}

	signed, err := h.signedBytes()
	if err != nil {
		return nil, err
	}
	h.signature = sk.Sign(signed)
	return h, nil
}

func (h *Header) Sender() xorname.Name { return h.sender }

func (h *Header) GUID() [GUIDSize]byte { return h.guid }

// Metadata returns a copy of the metadata.
func (h *Header) Metadata() []byte { return cloneBytes(h.metadata) }

// Signature returns a copy of the signature.
func (h *Header) Signature() []byte { return cloneBytes(h.signature) }

func (h *Header) fields() headerFields {
	return headerFields{Sender: h.sender[:], GUID: h.guid[:], Metadata: h.metadata}
}

func (h *Header) wire() headerWire {
	return headerWire{Sender: h.sender[:], GUID: h.guid[:], Metadata: h.metadata, Signature: h.signature}
}

func (h *Header) signedBytes() ([]byte, error) {
	return encodeCanonical(h.fields(), "MPID-ENC-001", "header fields")
}

// Verify reports whether the header's signature was made by the secret key
// matching pub. It never fails with an error.
func (h *Header) Verify(pub keys.PublicKey) bool {
	if h == nil || pub == nil {
		return false
	}
	signed, err := h.signedBytes()
	if err != nil {
		return false
	}
	return pub.Verify(signed, h.signature)
}

// Encode returns the canonical encoding of the whole header, signature
// included. It is both the wire form and the input to Name.
func (h *Header) Encode() ([]byte, error) {
	if h == nil {
		return nil, newError(KindInvalid, "MPID-NAME-001", "nil header")
	}
	return encodeCanonical(h.wire(), "MPID-ENC-002", "header")
}

// Name derives the header's network address: the sha2-512 digest of Encode.
//
// It is relatively expensive; callers that need it repeatedly should keep
// the result.
func (h *Header) Name() (xorname.Name, error) {
	b, err := h.Encode()
	if err != nil {
		return xorname.Name{}, err
	}
	name, err := cidutil.Sum512Name(b)
	if err != nil {
		return xorname.Name{}, wrapError(KindEncoding, "MPID-ENC-004", "hashing header", err)
	}
	return name, nil
}

// Equal reports whether both headers hold identical fields.
func (h *Header) Equal(other *Header) bool {
	if h == nil || other == nil {
		return h == other
	}
	return h.sender == other.sender &&
		h.guid == other.guid &&
		bytes.Equal(h.metadata, other.metadata) &&
		bytes.Equal(h.signature, other.signature)
}

func (h *Header) String() string {
	if h == nil {
		return "MpidHeader(<nil>)"
	}
	return fmt.Sprintf("MpidHeader { sender: %s, guid: %s, metadata: %s, signature: %s }",
		h.sender, xorname.FormatBinary(h.guid[:]), xorname.FormatBinary(h.metadata), xorname.FormatBinary(h.signature))
}

// DecodeHeader parses a header produced by Encode. It checks shape and size
// limits only; call Verify to authenticate the result.
func DecodeHeader(b []byte) (*Header, error) {
	var w headerWire
	if err := decodeWire(b, &w, "MPID-WIRE-010", "header"); err != nil {
		return nil, err
	}
	return headerFromWire(w)
}

func headerFromWire(w headerWire) (*Header, error) {
	sender, err := xorname.FromBytes(w.Sender)
	if err != nil {
		return nil, wrapError(KindDecode, "MPID-WIRE-011", "header sender", err)
	}
	if len(w.GUID) != GUIDSize {
		return nil, newError(KindDecode, "MPID-WIRE-012", fmt.Sprintf("header guid is %d bytes, want %d", len(w.GUID), GUIDSize))
	}
	if len(w.Metadata) > MaxHeaderMetadataSize {
		return nil, newError(KindDecode, "MPID-WIRE-013", fmt.Sprintf("header metadata is %d bytes, limit is %d", len(w.Metadata), MaxHeaderMetadataSize))
	}
	if len(w.Signature) == 0 {
		return nil, newError(KindDecode, "MPID-WIRE-014", "header signature missing")
	}
	h := &Header{sender: sender, metadata: cloneBytes(w.Metadata), signature: cloneBytes(w.Signature)}
	copy(h.guid[:], w.GUID)
	return h, nil
}

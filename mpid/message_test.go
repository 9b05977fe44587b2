package mpid

import (
	"bytes"
	"strings"
	"testing"

	"xdao.co/mpid/keys"
)

func TestMessage_ConstructAndVerify(t *testing.T) {
	sk := testKey(t, 1)
	header := testHeader(t, sk, bytes.Repeat([]byte{1}, MaxHeaderMetadataSize))
	body := bytes.Repeat([]byte{7}, 1024)

	m, err := NewMessage(header, testName(9), body, sk)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if !m.Verify(sk.Public()) {
		t.Fatalf("message did not verify")
	}
	if m.Header() != header || m.Recipient() != testName(9) || !bytes.Equal(m.Body(), body) {
		t.Fatalf("accessors do not reflect construction inputs")
	}
	if m.Verify(testKey(t, 2).Public()) {
		t.Fatalf("message verified under unrelated key")
	}
}

func TestMessage_ComposeBuildsFreshHeader(t *testing.T) {
	sk := testKey(t, 1)
	sender := keys.AccountName(sk.Public())
	metadata := []byte("subject")
	header := testHeader(t, sk, metadata)

	m, err := ComposeMessage(sender, metadata, testName(5), []byte("body"), sk)
	if err != nil {
		t.Fatalf("ComposeMessage: %v", err)
	}
	if !m.Verify(sk.Public()) {
		t.Fatalf("composed message did not verify")
	}
	if m.Header().Sender() != header.Sender() || !bytes.Equal(m.Header().Metadata(), header.Metadata()) {
		t.Fatalf("composed header fields mismatch")
	}
	if m.Header().GUID() == header.GUID() {
		t.Fatalf("expected a fresh guid")
	}

	_, err = ComposeMessage(sender, metadata, testName(5), make([]byte, MaxBodySize+1), sk)
	expectKind(t, err, KindBodyTooLarge, "MPID-MSG-001")
	_, err = ComposeMessage(sender, make([]byte, MaxHeaderMetadataSize+1), testName(5), nil, sk)
	expectKind(t, err, KindMetadataTooLarge, "MPID-HDR-001")
}

func TestMessage_BodyLimit(t *testing.T) {
	if MaxBodySize != 101760 {
		t.Fatalf("MaxBodySize = %d, want 101760", MaxBodySize)
	}
	sk := testKey(t, 1)
	header := testHeader(t, sk, nil)
	if _, err := NewMessage(header, testName(2), make([]byte, MaxBodySize), sk); err != nil {
		t.Fatalf("max body: %v", err)
	}
	_, err := NewMessage(header, testName(2), make([]byte, MaxBodySize+1), sk)
	expectKind(t, err, KindBodyTooLarge, "MPID-MSG-001")
}

func TestMessage_TamperSensitivity(t *testing.T) {
	sk := testKey(t, 1)
	m, err := NewMessage(testHeader(t, sk, []byte("m")), testName(2), []byte("hello body"), sk)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	tamper := map[string]func(w *messageWire){
		"recipient": func(w *messageWire) { w.Recipient[10] ^= 0x04 },
		"body":      func(w *messageWire) { w.Body[0] ^= 0x01 },
		"metadata":  func(w *messageWire) { w.Header.Metadata[0] ^= 0x01 },
	}
	for field, mutate := range tamper {
		w := m.wire()
		w.Recipient = append([]byte(nil), w.Recipient...)
		w.Body = append([]byte(nil), w.Body...)
		w.Header.Metadata = append([]byte(nil), w.Header.Metadata...)
		mutate(&w)
		altered, err := messageFromWire(w)
		if err != nil {
			t.Fatalf("%s: messageFromWire: %v", field, err)
		}
		if altered.Verify(sk.Public()) {
			t.Fatalf("%s: tampered message verified", field)
		}
	}
}

func TestMessage_BothSignaturesRequired(t *testing.T) {
	a := testKey(t, 1)
	b := testKey(t, 2)

	// Header by a, message layer by b.
	m, err := NewMessage(testHeader(t, a, nil), testName(3), []byte("x"), b)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if !m.signatureValid(b.Public()) {
		t.Fatalf("message-level signature should be valid under b")
	}
	if m.Verify(b.Public()) {
		t.Fatalf("verified although the header is not signed by b")
	}
	if !m.Header().Verify(a.Public()) {
		t.Fatalf("header should be valid under a")
	}
	if m.Verify(a.Public()) {
		t.Fatalf("verified although the message layer is not signed by a")
	}
}

func TestMessage_NameIsHeaderName(t *testing.T) {
	sk := testKey(t, 1)
	header := testHeader(t, sk, []byte("m"))
	m1, err := NewMessage(header, testName(1), []byte("one"), sk)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	m2, err := NewMessage(header, testName(2), []byte("two"), sk)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	hn, err := header.Name()
	if err != nil {
		t.Fatalf("Name: %v", err)
	}
	n1, err := MessageName(m1)
	if err != nil {
		t.Fatalf("MessageName: %v", err)
	}
	n2, err := m2.Name()
	if err != nil {
		t.Fatalf("Name: %v", err)
	}
	if n1 != hn || n2 != hn {
		t.Fatalf("message names must equal the header name")
	}
}

func TestMessage_EncodeDecodeRoundTrip(t *testing.T) {
	sk := testKey(t, 1)
	for _, body := range [][]byte{nil, []byte("b"), make([]byte, MaxBodySize)} {
		m, err := NewMessage(testHeader(t, sk, []byte("m")), testName(2), body, sk)
		if err != nil {
			t.Fatalf("NewMessage: %v", err)
		}
		b, err := m.Encode()
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, err := DecodeMessage(b)
		if err != nil {
			t.Fatalf("DecodeMessage: %v", err)
		}
		if !got.Equal(m) || !got.Verify(sk.Public()) {
			t.Fatalf("round trip mismatch for %d-byte body", len(body))
		}
	}
}

func TestMessage_InvalidArguments(t *testing.T) {
	sk := testKey(t, 1)
	_, err := NewMessage(nil, testName(1), nil, sk)
	expectKind(t, err, KindInvalid, "MPID-MSG-002")
	_, err = NewMessage(testHeader(t, sk, nil), testName(1), nil, nil)
	expectKind(t, err, KindInvalid, "MPID-MSG-003")
	_, err = MessageName(nil)
	expectKind(t, err, KindInvalid, "MPID-NAME-002")

	empty := &Message{}
	_, err = empty.Name()
	expectKind(t, err, KindInvalid, "MPID-NAME-002")
	_, err = empty.Encode()
	expectKind(t, err, KindInvalid, "MPID-NAME-002")
	_, err = MessageName(empty)
	expectKind(t, err, KindInvalid, "MPID-NAME-002")
}

func TestMessage_EncodingFailure(t *testing.T) {
	sk := testKey(t, 1)
	header := testHeader(t, sk, nil)
	m, err := NewMessage(header, testName(1), []byte("b"), sk)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	withFailingEncoder(t)
	_, err = NewMessage(header, testName(1), []byte("b"), sk)
	expectKind(t, err, KindEncoding, "MPID-ENC-003")
	if m.Verify(sk.Public()) {
		t.Fatalf("Verify must report false when encoding fails")
	}
}

func TestMessage_String(t *testing.T) {
	sk := testKey(t, 1)
	m, err := NewMessage(testHeader(t, sk, nil), testName(1), []byte("b"), sk)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if s := m.String(); !strings.HasPrefix(s, "MpidMessage {") || !strings.Contains(s, "MpidHeader {") {
		t.Fatalf("unexpected String(): %s", s)
	}
}

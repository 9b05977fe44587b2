package mpid

import (
	"bytes"
	"errors"
	"testing"

	"xdao.co/mpid/keys"
	"xdao.co/mpid/xorname"
)

// ----- test helpers -----

type deterministicReader struct{ b byte }

func (r *deterministicReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
		r.b++
	}
	return len(p), nil
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) { return 0, errors.New("entropy exhausted") }

type failingEncoder struct{}

func (failingEncoder) Marshal(v any) ([]byte, error) { return nil, errors.New("encoder offline") }

func withFailingEncoder(t *testing.T) {
	t.Helper()
	prev := canonical
	canonical = failingEncoder{}
	t.Cleanup(func() { canonical = prev })
}

func testKey(t *testing.T, b byte) keys.SecretKey {
	t.Helper()
	sk, err := keys.Ed25519FromSeed(bytes.Repeat([]byte{b}, keys.SeedSize))
	if err != nil {
		t.Fatalf("Ed25519FromSeed: %v", err)
	}
	return sk
}

func testName(b byte) xorname.Name {
	var n xorname.Name
	for i := range n {
		n[i] = b + byte(i)
	}
	return n
}

func testHeader(t *testing.T, sk keys.SecretKey, metadata []byte) *Header {
	t.Helper()
	h, err := NewHeader(keys.AccountName(sk.Public()), metadata, sk)
	if err != nil {
		t.Fatalf("NewHeader: %v", err)
	}
	return h
}

func expectKind(t *testing.T, err error, kind Kind, ruleID string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected structured *mpid.Error, got %T", err)
	}
	if e.Kind != kind {
		t.Fatalf("expected Kind %s, got %s (%v)", kind, e.Kind, err)
	}
	if ruleID != "" && e.RuleID != ruleID {
		t.Fatalf("expected RuleID %s, got %s", ruleID, e.RuleID)
	}
}

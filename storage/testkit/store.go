package testkit

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/mpid/cidutil"
	"xdao.co/mpid/storage"
)

// NewStore constructs a fresh, empty Store for a test. capacity is in bytes
// and 0 requests an unbounded store.
// The returned Store MUST be isolated from other tests.
type NewStore func(t *testing.T, capacity int64) storage.Store

func idFor(t *testing.T, b []byte) cid.Cid {
	t.Helper()
	name, err := cidutil.Sum512Name(b)
	if err != nil {
		t.Fatalf("Sum512Name failed: %v", err)
	}
	return cidutil.NameCID(name)
}

func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		s := newStore(t, 0)
		want := []byte("hello, mpid storage")
		id := idFor(t, want)

		if err := s.Put(id, want); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := s.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
		got[0] ^= 0xff
		again, _ := s.Get(id)
		if !bytes.Equal(again, want) {
			t.Fatalf("Get must return a copy")
		}
		if s.Size() != int64(len(want)) {
			t.Fatalf("Size: got %d want %d", s.Size(), len(want))
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		s := newStore(t, 0)
		b := []byte("same bytes")
		id := idFor(t, b)

		if err := s.Put(id, b); err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		if err := s.Put(id, b); err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if n := len(s.Keys()); n != 1 {
			t.Fatalf("Keys: got %d want 1", n)
		}
		if s.Size() != int64(len(b)) {
			t.Fatalf("idempotent Put changed Size to %d", s.Size())
		}
	})

	t.Run("RejectMutation", func(t *testing.T) {
		s := newStore(t, 0)
		id := idFor(t, []byte("original"))
		if err := s.Put(id, []byte("original")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := s.Put(id, []byte("replacement")); !errors.Is(err, storage.ErrImmutable) {
			t.Fatalf("Put different bytes: got err=%v want ErrImmutable", err)
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		s := newStore(t, 0)
		b := []byte("missing")
		id := idFor(t, b)

		if s.Has(id) {
			t.Fatalf("Has returned true for missing id")
		}
		if _, err := s.Get(id); !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}
		if err := s.Delete(id); !storage.IsNotFound(err) {
			t.Fatalf("Delete missing: got err=%v want ErrNotFound", err)
		}

		if err := s.Put(id, b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !s.Has(id) {
			t.Fatalf("Has returned false after Put")
		}
		if err := s.Delete(id); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if s.Has(id) || s.Size() != 0 {
			t.Fatalf("object still present after Delete")
		}
	})

	t.Run("Capacity", func(t *testing.T) {
		s := newStore(t, 10)
		a := []byte("12345678")
		b := []byte("abc")
		if err := s.Put(idFor(t, a), a); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := s.Put(idFor(t, b), b); !storage.IsFull(err) {
			t.Fatalf("Put over capacity: got err=%v want ErrFull", err)
		}
		// Re-putting existing bytes never counts against capacity.
		if err := s.Put(idFor(t, a), a); err != nil {
			t.Fatalf("idempotent Put at capacity failed: %v", err)
		}
		if err := s.Delete(idFor(t, a)); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := s.Put(idFor(t, b), b); err != nil {
			t.Fatalf("Put after Delete failed: %v", err)
		}
	})

	t.Run("KeysStableOrder", func(t *testing.T) {
		s := newStore(t, 0)
		for _, v := range []string{"c", "a", "b", "d"} {
			if err := s.Put(idFor(t, []byte(v)), []byte(v)); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
		}
		k1 := s.Keys()
		k2 := s.Keys()
		if len(k1) != 4 {
			t.Fatalf("Keys: got %d want 4", len(k1))
		}
		for i := range k1 {
			if k1[i] != k2[i] {
				t.Fatalf("Keys order unstable")
			}
			if i > 0 && k1[i-1].KeyString() >= k1[i].KeyString() {
				t.Fatalf("Keys not sorted")
			}
		}
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		s := newStore(t, 0)
		var undef cid.Cid
		if s.Has(undef) {
			t.Fatalf("Has should be false for undefined CID")
		}
		if _, err := s.Get(undef); !errors.Is(err, storage.ErrInvalidCID) {
			t.Fatalf("Get undefined: got err=%v want ErrInvalidCID", err)
		}
		if err := s.Put(undef, []byte("x")); !errors.Is(err, storage.ErrInvalidCID) {
			t.Fatalf("Put undefined: got err=%v want ErrInvalidCID", err)
		}
	})
}

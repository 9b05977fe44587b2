package storage

import "github.com/ipfs/go-cid"

// Store is a bounded, name-keyed blob store used for outboxes and inboxes.
//
// Contract:
// - Put MUST be idempotent for identical bytes under the same id.
// - Stored objects MUST be immutable: different bytes under an existing id fail with ErrImmutable.
// - Put MUST fail with ErrFull when the write would exceed the store's capacity.
// - Get and Delete MUST return ErrNotFound when the id is absent.
// - Undefined ids MUST be rejected with ErrInvalidCID.
// - Keys returns ids in a stable order (byte-wise on the CID).
type Store interface {
	Put(id cid.Cid, data []byte) error
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
	Delete(id cid.Cid) error
	Keys() []cid.Cid
	// Size is the number of payload bytes currently held.
	Size() int64
}

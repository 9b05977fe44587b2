// Package memory is an in-process storage.Store.
package memory

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/mpid/storage"
)

// Store keeps objects in a map guarded by a mutex.
//
// Capacity bounds the sum of stored payload sizes; 0 means unbounded.
type Store struct {
	capacity int64

	mu   sync.RWMutex
	objs map[cid.Cid][]byte
	used int64
}

var _ storage.Store = (*Store)(nil)

func New(capacity int64) *Store {
	if capacity < 0 {
		capacity = 0
	}
	return &Store{capacity: capacity, objs: make(map[cid.Cid][]byte)}
}

func (s *Store) Capacity() int64 { return s.capacity }

func (s *Store) Put(id cid.Cid, data []byte) error {
	if !id.Defined() {
		return storage.ErrInvalidCID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.objs[id]; ok {
		if !bytes.Equal(existing, data) {
			return storage.ErrImmutable
		}
		return nil
	}
	if s.capacity > 0 && s.used+int64(len(data)) > s.capacity {
		return storage.ErrFull
	}
	s.objs[id] = append([]byte{}, data...)
	s.used += int64(len(data))
	return nil
}

func (s *Store) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte{}, b...), nil
}

func (s *Store) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objs[id]
	return ok
}

func (s *Store) Delete(id cid.Cid) error {
	if !id.Defined() {
		return storage.ErrInvalidCID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objs[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.objs, id)
	s.used -= int64(len(b))
	return nil
}

func (s *Store) Keys() []cid.Cid {
	s.mu.RLock()
	out := make([]cid.Cid, 0, len(s.objs))
	for id := range s.objs {
		out = append(out, id)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].KeyString() < out[j].KeyString() })
	return out
}

func (s *Store) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

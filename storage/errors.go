package storage

import "errors"

var (
	ErrNotFound   = errors.New("storage: not found")
	ErrInvalidCID = errors.New("storage: invalid cid")
	ErrImmutable  = errors.New("storage: immutable object mismatch")
	ErrFull       = errors.New("storage: capacity exceeded")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsFull(err error) bool { return errors.Is(err, ErrFull) }

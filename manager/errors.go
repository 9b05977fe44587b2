package manager

import "errors"

var (
	ErrUnknownAccount    = errors.New("manager: unknown account")
	ErrSenderMismatch    = errors.New("manager: header sender is not the requesting account")
	ErrInvalidSignature  = errors.New("manager: signature does not verify")
	ErrNotRecipient      = errors.New("manager: requester is not the message recipient")
	ErrUnexpectedWrapper = errors.New("manager: wrapper is not a client request")
	ErrNoMessage         = errors.New("manager: outbox entry holds a header only")
	ErrInvalidKey        = errors.New("manager: missing public key")
)

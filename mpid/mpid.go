// Package mpid implements the signed envelopes of the MPID mailbox protocol.
//
// A client authors a Header (a signed notification) and optionally a Message
// (header + recipient + body, signed again over recipient and body). Either
// value, or a query, travels to a manager node inside a Wrapper.
//
// Signatures cover the canonical CBOR encoding of the signed fields only; the
// signature field itself is never part of the bytes it signs. Names are the
// sha2-512 digest of a header's full canonical encoding, signature included.
//
// Every value in this package is immutable once constructed and may be shared
// between goroutines without synchronization.
package mpid

const (
	// GUIDSize is the length of a header's random identifier.
	GUIDSize = 16

	// MaxHeaderMetadataSize is the largest permitted header metadata.
	MaxHeaderMetadataSize = 128

	// MaxBodySize is the largest permitted message body (101,760 bytes).
	MaxBodySize = 102400 - 512 - MaxHeaderMetadataSize

	// MaxInboxSize is the per-account inbox capacity a manager should grant (128 MiB).
	MaxInboxSize = 1 << 27

	// MaxOutboxSize is the per-account outbox capacity a manager should grant (128 MiB).
	MaxOutboxSize = 1 << 27
)

package mpid

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind/RuleID rather than matching error strings.
// A failed signature check is not an error: Verify reports it as false.
type Kind string

const (
	// KindMetadataTooLarge: header metadata exceeds MaxHeaderMetadataSize.
	KindMetadataTooLarge Kind = "MetadataTooLarge"
	// KindBodyTooLarge: message body exceeds MaxBodySize.
	KindBodyTooLarge Kind = "BodyTooLarge"
	// KindEncoding: the canonical encoder rejected a value. This is an
	// infrastructure fault, not a problem with caller input.
	KindEncoding Kind = "Encoding"
	// KindDecode: wire bytes are malformed or carry an unknown variant.
	KindDecode Kind = "Decode"
	// KindInvalid: a required argument (key, header) was missing.
	KindInvalid Kind = "Invalid"
	// KindRandomness: the GUID source could not be read.
	KindRandomness Kind = "Randomness"
)

// Error is the package's structured error type.
//
// RuleID is a stable identifier (e.g. MPID-HDR-001) naming the violated limit
// or the failing step. Message is for humans; do not match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return "mpid: " + e.Message + ": " + e.Cause.Error()
	}
	return "mpid: " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

func wrapError(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return newError(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}

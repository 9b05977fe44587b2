// Package xorname defines the fixed-length network identity used for accounts,
// senders, recipients and derived envelope names.
package xorname

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// Len is the size of a Name in bytes.
const Len = 64

// Name is an opaque network address. The zero value is a valid (all-zero) name.
type Name [Len]byte

// FromBytes copies b into a Name. b must be exactly Len bytes.
func FromBytes(b []byte) (Name, error) {
	var n Name
	if len(b) != Len {
		return n, fmt.Errorf("xorname: expected %d bytes, got %d", Len, len(b))
	}
	copy(n[:], b)
	return n, nil
}

// ParseHex decodes the full hex form produced by Hex.
func ParseHex(s string) (Name, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return Name{}, fmt.Errorf("xorname: %w", err)
	}
	return FromBytes(b)
}

// Random reads a Name from r.
func Random(r io.Reader) (Name, error) {
	var n Name
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return Name{}, err
	}
	return n, nil
}

// Bytes returns a copy of the name bytes.
func (n Name) Bytes() []byte {
	return append([]byte(nil), n[:]...)
}

// Compare orders names byte-wise. It returns -1, 0 or +1.
func (n Name) Compare(other Name) int {
	return bytes.Compare(n[:], other[:])
}

func (n Name) IsZero() bool { return n == Name{} }

// Hex returns the full lowercase hex encoding.
func (n Name) Hex() string {
	return hex.EncodeToString(n[:])
}

// String returns the abbreviated form, e.g. "010203..0d0e0f".
func (n Name) String() string {
	return FormatBinary(n[:])
}

// FormatBinary renders b as hex, keeping only the first and last three bytes
// when b is longer than six bytes.
func FormatBinary(b []byte) string {
	if len(b) <= 6 {
		return hex.EncodeToString(b)
	}
	return hex.EncodeToString(b[:3]) + ".." + hex.EncodeToString(b[len(b)-3:])
}

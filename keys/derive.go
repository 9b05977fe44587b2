package keys

import (
	"crypto/sha256"
	"fmt"
)

// SeedSize is the size of the ed25519 seeds held by KeyStore.
const SeedSize = 32

// PublicKeyFromSeed returns the public key text form for an ed25519 seed.
func PublicKeyFromSeed(seed []byte) (string, error) {
	sk, err := Ed25519FromSeed(seed)
	if err != nil {
		return "", err
	}
	return FormatPublicKey(sk.Public()), nil
}

// DeriveRoleSeed deterministically derives a role-specific ed25519 seed from a
// root seed, so one account holder can run several independently keyed clients.
func DeriveRoleSeed(rootSeed []byte, role string) ([]byte, error) {
	if len(rootSeed) != SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", SeedSize)
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}

	h := sha256.New()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("xdao-mpid-keys-v1"))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("role:"))
	_, _ = h.Write([]byte(role))
	return h.Sum(nil)[:SeedSize], nil
}

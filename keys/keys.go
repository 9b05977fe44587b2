package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"

	"xdao.co/mpid/xorname"
)

// Algorithm names a signature scheme. It is also the prefix of the public key
// text form.
type Algorithm string

const (
	Ed25519    Algorithm = "ed25519"
	Dilithium3 Algorithm = "dilithium3"
)

// PublicKey verifies detached signatures. Key bytes are opaque to callers.
type PublicKey interface {
	Algorithm() Algorithm
	Bytes() []byte
	Verify(message, signature []byte) bool
}

// SecretKey produces detached signatures over arbitrary bytes.
type SecretKey interface {
	Algorithm() Algorithm
	Public() PublicKey
	Sign(message []byte) []byte
}

type ed25519Public struct{ key ed25519.PublicKey }

func (p ed25519Public) Algorithm() Algorithm { return Ed25519 }
func (p ed25519Public) Bytes() []byte        { return append([]byte(nil), p.key...) }

func (p ed25519Public) Verify(message, signature []byte) bool {
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(p.key, message, signature)
}

type ed25519Secret struct {
	key ed25519.PrivateKey
	pub ed25519Public
}

func (s ed25519Secret) Algorithm() Algorithm       { return Ed25519 }
func (s ed25519Secret) Public() PublicKey          { return s.pub }
func (s ed25519Secret) Sign(message []byte) []byte { return ed25519.Sign(s.key, message) }

// GenerateEd25519 returns a new ed25519 secret key drawn from rand.
func GenerateEd25519(rand io.Reader) (SecretKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	return ed25519Secret{key: priv, pub: ed25519Public{key: pub}}, nil
}

// Ed25519FromSeed derives an ed25519 secret key from a 32-byte seed.
func Ed25519FromSeed(seed []byte) (SecretKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return ed25519Secret{key: priv, pub: ed25519Public{key: priv.Public().(ed25519.PublicKey)}}, nil
}

// NewEd25519PublicKey wraps raw ed25519 public key bytes.
func NewEd25519PublicKey(b []byte) (PublicKey, error) {
	if l := len(b); l != ed25519.PublicKeySize {
		return nil, fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, l)
	}
	return ed25519Public{key: append(ed25519.PublicKey(nil), b...)}, nil
}

type dilithium3Public struct{ key *mode3.PublicKey }

func (p dilithium3Public) Algorithm() Algorithm { return Dilithium3 }
func (p dilithium3Public) Bytes() []byte        { return p.key.Bytes() }

func (p dilithium3Public) Verify(message, signature []byte) bool {
	if len(signature) != mode3.SignatureSize {
		return false
	}
	return mode3.Verify(p.key, message, signature)
}

type dilithium3Secret struct {
	key *mode3.PrivateKey
	pub dilithium3Public
}

func (s dilithium3Secret) Algorithm() Algorithm { return Dilithium3 }
func (s dilithium3Secret) Public() PublicKey    { return s.pub }

func (s dilithium3Secret) Sign(message []byte) []byte {
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(s.key, message, sig)
	return sig
}

// GenerateDilithium3 returns a new post-quantum dilithium3 secret key.
func GenerateDilithium3(rand io.Reader) (SecretKey, error) {
	pk, sk, err := mode3.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	return dilithium3Secret{key: sk, pub: dilithium3Public{key: pk}}, nil
}

// Dilithium3FromSeed derives a dilithium3 secret key from a 32-byte seed.
func Dilithium3FromSeed(seed []byte) (SecretKey, error) {
	if len(seed) != mode3.SeedSize {
		return nil, fmt.Errorf("dilithium3 seed must be %d bytes, got %d", mode3.SeedSize, len(seed))
	}
	var s [mode3.SeedSize]byte
	copy(s[:], seed)
	pk, sk := mode3.NewKeyFromSeed(&s)
	return dilithium3Secret{key: sk, pub: dilithium3Public{key: pk}}, nil
}

// NewDilithium3PublicKey wraps packed dilithium3 public key bytes.
func NewDilithium3PublicKey(b []byte) (PublicKey, error) {
	var pk mode3.PublicKey
	if err := pk.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("invalid dilithium3 public key: %w", err)
	}
	return dilithium3Public{key: &pk}, nil
}

// FormatPublicKey encodes pub as "<alg>:<base64>".
func FormatPublicKey(pub PublicKey) string {
	return string(pub.Algorithm()) + ":" + base64.StdEncoding.EncodeToString(pub.Bytes())
}

// ParsePublicKey parses the FormatPublicKey form.
// Supported encodings:
// - ed25519:<base64>
// - dilithium3:<base64>
func ParsePublicKey(s string) (PublicKey, error) {
	alg, enc, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return nil, fmt.Errorf("invalid public key encoding")
	}
	raw, err := decodeBase64(enc)
	if err != nil {
		return nil, fmt.Errorf("invalid public key base64: %w", err)
	}
	switch Algorithm(alg) {
	case Ed25519:
		return NewEd25519PublicKey(raw)
	case Dilithium3:
		return NewDilithium3PublicKey(raw)
	default:
		return nil, fmt.Errorf("unsupported public key algorithm %q", alg)
	}
}

// AccountName is the network identity owned by pub: sha3-512 over the
// algorithm name, a zero byte and the public key bytes.
func AccountName(pub PublicKey) xorname.Name {
	h := sha3.New512()
	_, _ = h.Write([]byte(pub.Algorithm()))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(pub.Bytes())
	var n xorname.Name
	copy(n[:], h.Sum(nil))
	return n
}

func decodeBase64(s string) ([]byte, error) {
	// Prefer standard padded encoding, but accept raw encoding too.
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

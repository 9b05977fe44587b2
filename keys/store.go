package keys

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KeyStore keeps ed25519 seeds for named accounts on the local filesystem.
//
// Layout:
//
//	<dir>/<name>/root.key
//	<dir>/<name>/roles/<role>.key
//
// Each file holds the hex seed followed by a newline, mode 0600.
type KeyStore struct {
	Directory string
}

type KeyEntry struct {
	Name  string
	Roles []string
}

func DefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".mpid", "keys"), nil
}

// OpenKeyStore returns a KeyStore rooted at directory, or at DefaultDirectory
// when directory is empty. Nothing is created until a key is written.
func OpenKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) rootPath(name string) string {
	return filepath.Join(ks.Directory, name, "root.key")
}

func (ks *KeyStore) rolePath(name, role string) string {
	return filepath.Join(ks.Directory, name, "roles", role+".key")
}

func checkIdent(what, s string) error {
	if s == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}
	for _, char := range s {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in %s", char, what)
	}
	return nil
}

func CheckKeyName(name string) error { return checkIdent("key name", name) }
func CheckRole(role string) error    { return checkIdent("role", role) }

func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimPrefix(strings.TrimSpace(seedHex), "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", SeedSize, len(data))
	}
	return data, nil
}

func writeSeed(path string, seed []byte, overwrite bool) error {
	if len(seed) != SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return f.Close()
}

func readSeed(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(data))
}

// Init writes a root seed for name and returns its public key text form.
// A nil seed is replaced by a fresh random one.
func (ks *KeyStore) Init(name string, seed []byte, overwrite bool) (publicKey string, path string, err error) {
	if err := CheckKeyName(name); err != nil {
		return "", "", err
	}
	if seed == nil {
		seed = make([]byte, SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return "", "", err
		}
	}
	path = ks.rootPath(name)
	if err := writeSeed(path, seed, overwrite); err != nil {
		return "", "", err
	}
	publicKey, err = PublicKeyFromSeed(seed)
	return publicKey, path, err
}

// Derive writes the role seed derived from name's root seed.
func (ks *KeyStore) Derive(name, role string, overwrite bool) (publicKey string, path string, err error) {
	if err := CheckKeyName(name); err != nil {
		return "", "", err
	}
	rootSeed, err := readSeed(ks.rootPath(name))
	if err != nil {
		return "", "", err
	}
	roleSeed, err := DeriveRoleSeed(rootSeed, role)
	if err != nil {
		return "", "", err
	}
	path = ks.rolePath(name, role)
	if err := writeSeed(path, roleSeed, overwrite); err != nil {
		return "", "", err
	}
	publicKey, err = PublicKeyFromSeed(roleSeed)
	return publicKey, path, err
}

// SecretKey loads the secret key for name, or for name's role when role is set.
func (ks *KeyStore) SecretKey(name, role string) (SecretKey, error) {
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}
	path := ks.rootPath(name)
	if role != "" {
		if err := CheckRole(role); err != nil {
			return nil, err
		}
		path = ks.rolePath(name, role)
	}
	seed, err := readSeed(path)
	if err != nil {
		return nil, err
	}
	return Ed25519FromSeed(seed)
}

// Export returns the public key text form for name (and optional role).
func (ks *KeyStore) Export(name, role string) (string, error) {
	sk, err := ks.SecretKey(name, role)
	if err != nil {
		return "", err
	}
	return FormatPublicKey(sk.Public()), nil
}

// LoadSecretKey resolves a signer from, in order: a hex seed, a key file, or a
// stored key name (with optional role).
func (ks *KeyStore) LoadSecretKey(seedHex, name, role, keyFile string) (SecretKey, error) {
	switch {
	case seedHex != "":
		seed, err := ParseSeedHex(seedHex)
		if err != nil {
			return nil, err
		}
		return Ed25519FromSeed(seed)
	case keyFile != "":
		seed, err := readSeed(keyFile)
		if err != nil {
			return nil, err
		}
		return Ed25519FromSeed(seed)
	case name != "":
		return ks.SecretKey(name, role)
	default:
		return nil, errors.New("no signer provided")
	}
}

func (ks *KeyStore) List() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var result []KeyEntry
	for _, name := range names {
		roleEntries, rerr := os.ReadDir(filepath.Join(ks.Directory, name, "roles"))
		var roles []string
		if rerr == nil {
			for _, e := range roleEntries {
				if !e.IsDir() && strings.HasSuffix(e.Name(), ".key") {
					roles = append(roles, strings.TrimSuffix(e.Name(), ".key"))
				}
			}
			sort.Strings(roles)
		}
		result = append(result, KeyEntry{Name: name, Roles: roles})
	}
	return result, nil
}

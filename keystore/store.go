// Package keystore persists the enclave's sealed key material and owns all
// plaintext secret bytes in memory. BLS validator keys live in two disjoint
// namespaces (generated in-enclave vs imported) so listings can report
// provenance; secp256k1 transport keys live beside them. Every blob on disk
// is sealed by the enclave before it is written.
package keystore

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/holiman/uint256"
	pkgerrors "github.com/pkg/errors"

	"github.com/teesigner/teesigner/crypto"
	"github.com/teesigner/teesigner/enclave"
	"github.com/teesigner/teesigner/log"
)

// On-disk layout, relative to the sealed storage root.
const (
	blsGeneratedDir = "bls_keys/generated"
	blsImportedDir  = "bls_keys/imported"
	ethKeysDir      = "eth_keys"
)

// blsPubkeyHexLen is the hex digit count of a compressed G1 public key.
const blsPubkeyHexLen = 96

// blsSubgroupOrder is r, the order of the BLS12-381 G1/G2 subgroups.
// Imported scalars must lie in [1, r).
var blsSubgroupOrder = uint256.MustFromHex("0x73eda753299d7d483339d80809a1d80553bda402fffe5bfeffffffff00000001")

var (
	// ErrUnknownKey is returned when no key is stored under the given
	// public key.
	ErrUnknownKey = errors.New("keystore: unknown key")

	// ErrStorage is returned when a sealed read or write fails.
	ErrStorage = errors.New("keystore: storage failure")

	// ErrDecrypt is returned when an imported ciphertext cannot be
	// decrypted with the named transport key.
	ErrDecrypt = errors.New("keystore: import decryption failed")

	// ErrKeyMismatch is returned when an imported secret does not match
	// the claimed BLS public key.
	ErrKeyMismatch = errors.New("keystore: imported key does not match claimed pubkey")

	// ErrInvalidPubkey is returned for malformed public key hex.
	ErrInvalidPubkey = errors.New("keystore: invalid public key hex")

	// ErrInvalidScalar is returned when an imported secret is not a
	// valid BLS scalar in [1, r).
	ErrInvalidScalar = errors.New("keystore: imported secret out of range")
)

// Store is the process-wide key store. Secret bytes never leave it except
// inside scoped crypto.Secret handles.
type Store struct {
	mu     sync.RWMutex
	root   string
	sealer enclave.Sealer
	log    *log.Logger
}

// Open initializes the directory layout under root and returns the store.
func Open(root string, sealer enclave.Sealer) (*Store, error) {
	for _, dir := range []string{blsGeneratedDir, blsImportedDir, ethKeysDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o700); err != nil {
			return nil, pkgerrors.Wrap(ErrStorage, err.Error())
		}
	}
	return &Store{
		root:   root,
		sealer: sealer,
		log:    log.Default().Module("keystore"),
	}, nil
}

// NormalizeBLSPubkeyHex lowercases pkHex, strips an optional 0x prefix and
// validates that exactly 96 hex digits remain.
func NormalizeBLSPubkeyHex(pkHex string) (string, error) {
	s := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(pkHex, "0x"), "0X"))
	if len(s) != blsPubkeyHexLen {
		return "", ErrInvalidPubkey
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", ErrInvalidPubkey
	}
	return s, nil
}

// GenerateBLS samples a fresh BLS key inside the enclave, seals it and
// stores it in the generated namespace. Returns the public key hex.
func (s *Store) GenerateBLS() (string, error) {
	ikm := make([]byte, 32)
	if _, err := rand.Read(ikm); err != nil {
		return "", pkgerrors.Wrap(ErrStorage, "entropy unavailable")
	}

	pub, sec, err := crypto.BLSKeyGen(ikm)
	if err != nil {
		return "", pkgerrors.Wrap(ErrStorage, err.Error())
	}
	defer zero(sec)
	defer zero(ikm)

	pkHex := hex.EncodeToString(pub)
	if err := s.writeSealed(filepath.Join(blsGeneratedDir, pkHex), sec); err != nil {
		return "", err
	}

	s.log.Info("generated bls key", "pubkey", "0x"+pkHex)
	return pkHex, nil
}

// GenerateSecp256k1 samples a fresh transport keypair, seals the secret
// and stores it. Returns the compressed public key hex. Each transport key
// is stored under its own file; earlier keys are not removed and remain
// usable for imports.
func (s *Store) GenerateSecp256k1() (string, error) {
	prv, err := crypto.GenerateEthKey()
	if err != nil {
		return "", pkgerrors.Wrap(ErrStorage, err.Error())
	}
	sec := crypto.EthSecretBytes(prv)
	defer zero(sec)

	pkHex := crypto.CompressEthPubkeyHex(&prv.PublicKey)
	if err := s.writeSealed(filepath.Join(ethKeysDir, pkHex), sec); err != nil {
		return "", err
	}

	s.log.Info("generated secp256k1 key", "pubkey", "0x"+pkHex)
	return pkHex, nil
}

// ImportBLS decrypts an ECIES ciphertext addressed to the transport key
// identified by encryptingPkHex, validates the recovered scalar, checks it
// against the claimed BLS public key when one is provided, and stores the
// secret in the imported namespace. Returns the public key hex of the
// imported key.
func (s *Store) ImportBLS(ciphertext []byte, claimedPkHex, encryptingPkHex string) (string, error) {
	ethPub, err := crypto.ParseEthPubkeyHex(encryptingPkHex)
	if err != nil {
		return "", ErrUnknownKey
	}
	ethPkHex := crypto.CompressEthPubkeyHex(ethPub)

	ethSecret, err := s.readSealed(filepath.Join(ethKeysDir, ethPkHex))
	if err != nil {
		return "", err
	}
	defer ethSecret.Destroy()

	ethSecretBytes, err := ethSecret.Bytes()
	if err != nil {
		return "", pkgerrors.Wrap(ErrStorage, err.Error())
	}
	prv, err := crypto.EthSecretFromBytes(ethSecretBytes)
	if err != nil {
		return "", pkgerrors.Wrap(ErrStorage, err.Error())
	}

	blsSecret, err := crypto.ECIESDecrypt(prv, ciphertext)
	if err != nil {
		return "", ErrDecrypt
	}
	defer zero(blsSecret)

	if err := validateBLSScalar(blsSecret); err != nil {
		return "", err
	}

	pub, err := crypto.BLSSecretToPublic(blsSecret)
	if err != nil {
		return "", ErrInvalidScalar
	}
	pkHex := hex.EncodeToString(pub)

	if claimedPkHex != "" {
		claimed, err := NormalizeBLSPubkeyHex(claimedPkHex)
		if err != nil {
			return "", err
		}
		if claimed != pkHex {
			return "", ErrKeyMismatch
		}
	}

	if err := s.writeSealed(filepath.Join(blsImportedDir, pkHex), blsSecret); err != nil {
		return "", err
	}

	s.log.Info("imported bls key", "pubkey", "0x"+pkHex)
	return pkHex, nil
}

// LoadBLS opens the sealed secret for pkHex (generated or imported
// namespace) in a scoped handle. The caller must Destroy the handle.
func (s *Store) LoadBLS(pkHex string) (*crypto.Secret, error) {
	pk, err := NormalizeBLSPubkeyHex(pkHex)
	if err != nil {
		return nil, err
	}

	sec, err := s.readSealed(filepath.Join(blsGeneratedDir, pk))
	if errors.Is(err, ErrUnknownKey) {
		sec, err = s.readSealed(filepath.Join(blsImportedDir, pk))
	}
	return sec, err
}

// HasBLS reports whether a BLS key is stored under pkHex.
func (s *Store) HasBLS(pkHex string) bool {
	pk, err := NormalizeBLSPubkeyHex(pkHex)
	if err != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, dir := range []string{blsGeneratedDir, blsImportedDir} {
		if _, err := os.Stat(filepath.Join(s.root, dir, pk)); err == nil {
			return true
		}
	}
	return false
}

// LoadSecp256k1 opens the sealed transport secret for pkHex in a scoped
// handle. Accepts compressed or uncompressed input encoding.
func (s *Store) LoadSecp256k1(pkHex string) (*crypto.Secret, error) {
	pub, err := crypto.ParseEthPubkeyHex(pkHex)
	if err != nil {
		return nil, ErrUnknownKey
	}
	return s.readSealed(filepath.Join(ethKeysDir, crypto.CompressEthPubkeyHex(pub)))
}

// ListBLSGenerated enumerates public keys created by in-enclave keygen.
func (s *Store) ListBLSGenerated() ([]string, error) {
	return s.list(blsGeneratedDir)
}

// ListBLSImported enumerates public keys that arrived via encrypted import.
func (s *Store) ListBLSImported() ([]string, error) {
	return s.list(blsImportedDir)
}

// ListSecp256k1 enumerates stored transport public keys.
func (s *Store) ListSecp256k1() ([]string, error) {
	return s.list(ethKeysDir)
}

func (s *Store) list(dir string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(s.root, dir))
	if err != nil {
		return nil, pkgerrors.Wrap(ErrStorage, err.Error())
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		keys = append(keys, e.Name())
	}
	sort.Strings(keys)
	return keys, nil
}

// writeSealed seals plaintext and writes it atomically under the store
// root. rel must already be a validated key path.
func (s *Store) writeSealed(rel string, plaintext []byte) error {
	sealed, err := s.sealer.Seal(plaintext)
	if err != nil {
		return pkgerrors.Wrap(ErrStorage, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := enclave.WriteFileAtomic(filepath.Join(s.root, rel), sealed, 0o600); err != nil {
		return pkgerrors.Wrap(ErrStorage, err.Error())
	}
	return nil
}

// readSealed reads and unseals a blob into a scoped handle.
func (s *Store) readSealed(rel string) (*crypto.Secret, error) {
	s.mu.RLock()
	sealed, err := os.ReadFile(filepath.Join(s.root, rel))
	s.mu.RUnlock()

	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrUnknownKey
		}
		return nil, pkgerrors.Wrap(ErrStorage, err.Error())
	}

	plaintext, err := s.sealer.Unseal(sealed)
	if err != nil {
		return nil, err
	}
	return crypto.NewSecret(plaintext), nil
}

// validateBLSScalar checks the recovered import plaintext is a 32-byte
// scalar in [1, r).
func validateBLSScalar(b []byte) error {
	if len(b) != crypto.BLSSecretLength {
		return ErrInvalidScalar
	}
	v := new(uint256.Int).SetBytes(b)
	if v.IsZero() || v.Cmp(blsSubgroupOrder) >= 0 {
		return ErrInvalidScalar
	}
	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ECIES import channel on secp256k1, delegated to go-ethereum's crypto and
// crypto/ecies packages. The enclave holds the secp256k1 secret; operators
// encrypt BLS secrets to its attested public key and post the ciphertext.
package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
)

// Hex digit lengths for secp256k1 public key encodings.
const (
	EthPubkeyCompressedHexLen   = 66  // 33 bytes
	EthPubkeyUncompressedHexLen = 130 // 65 bytes
)

var (
	// ErrInvalidEthPubkey is returned when a secp256k1 public key cannot
	// be parsed from hex.
	ErrInvalidEthPubkey = errors.New("ecies: invalid secp256k1 public key")

	// ErrDecrypt is returned when an ECIES ciphertext fails to decrypt.
	ErrDecrypt = errors.New("ecies: decryption failed")
)

// GenerateEthKey generates a new secp256k1 private key.
func GenerateEthKey() (*ecdsa.PrivateKey, error) {
	return gethcrypto.GenerateKey()
}

// EthSecretBytes serializes a secp256k1 private key to its 32-byte scalar.
func EthSecretBytes(prv *ecdsa.PrivateKey) []byte {
	return gethcrypto.FromECDSA(prv)
}

// EthSecretFromBytes rebuilds a secp256k1 private key from its 32-byte
// scalar form.
func EthSecretFromBytes(b []byte) (*ecdsa.PrivateKey, error) {
	return gethcrypto.ToECDSA(b)
}

// CompressEthPubkeyHex renders a secp256k1 public key as lowercase hex in
// compressed form (66 hex digits, no 0x prefix).
func CompressEthPubkeyHex(pub *ecdsa.PublicKey) string {
	return hex.EncodeToString(gethcrypto.CompressPubkey(pub))
}

// ParseEthPubkeyHex parses a secp256k1 public key from hex. Both the
// compressed (66 digits) and uncompressed (130 digits) encodings are
// accepted; a 0x prefix and upper-case digits are tolerated.
func ParseEthPubkeyHex(s string) (*ecdsa.PublicKey, error) {
	s = strings.ToLower(strings.TrimPrefix(s, "0x"))
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidEthPubkey
	}
	switch len(s) {
	case EthPubkeyCompressedHexLen:
		pub, err := gethcrypto.DecompressPubkey(raw)
		if err != nil {
			return nil, ErrInvalidEthPubkey
		}
		return pub, nil
	case EthPubkeyUncompressedHexLen:
		pub, err := gethcrypto.UnmarshalPubkey(raw)
		if err != nil {
			return nil, ErrInvalidEthPubkey
		}
		return pub, nil
	default:
		return nil, ErrInvalidEthPubkey
	}
}

// ECIESEncrypt encrypts plaintext for the given secp256k1 public key.
// Intended for operators preparing key imports and for tests; the enclave
// itself only ever decrypts.
func ECIESEncrypt(pub *ecdsa.PublicKey, plaintext []byte) ([]byte, error) {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil, ErrInvalidEthPubkey
	}
	return ecies.Encrypt(rand.Reader, ecies.ImportECDSAPublic(pub), plaintext, nil, nil)
}

// ECIESDecrypt decrypts an ECIES ciphertext addressed to the given
// secp256k1 private key.
func ECIESDecrypt(prv *ecdsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	if prv == nil {
		return nil, ErrDecrypt
	}
	plaintext, err := ecies.ImportECDSA(prv).Decrypt(ciphertext, nil, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

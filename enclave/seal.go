// Package enclave implements the sealing boundary of the teesigner service.
// Every secret persisted to disk passes through a Sealer, which binds the
// ciphertext to the enclave identity: only the same enclave measurement can
// unseal it. The production measurement comes from the SGX sealing key; the
// development provider derives one from a root-dir keyfile so the service
// can run outside an enclave with the same code paths.
package enclave

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

// sealingInfo is the HKDF info string binding derived keys to this use.
const sealingInfo = "teesigner-sealing-v1"

// gcmNonceSize is the standard GCM nonce length prepended to sealed blobs.
const gcmNonceSize = 12

var (
	// ErrSeal is returned when sealing fails.
	ErrSeal = errors.New("enclave: seal failed")

	// ErrUnseal is returned when a sealed blob cannot be opened, either
	// because it is malformed or because it was sealed by a different
	// enclave identity.
	ErrUnseal = errors.New("enclave: unseal failed")
)

// Sealer binds plaintext to the enclave identity.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Unseal(sealed []byte) ([]byte, error)
}

// MeasurementProvider supplies the secret from which sealing keys are
// derived. Implementations must return a stable value for the lifetime of
// an enclave identity.
type MeasurementProvider interface {
	SealingSecret() ([]byte, error)
}

// AESGCMSealer seals with AES-256-GCM under a key derived from the
// measurement secret via HKDF-SHA256. Sealed blob layout:
//
//	nonce(12) || gcm_ciphertext
type AESGCMSealer struct {
	aead cipher.AEAD
}

// NewAESGCMSealer derives the sealing key from the provider and returns a
// ready sealer.
func NewAESGCMSealer(mp MeasurementProvider) (*AESGCMSealer, error) {
	secret, err := mp.SealingSecret()
	if err != nil {
		return nil, errors.Wrap(err, "enclave: sealing secret")
	}

	key := make([]byte, 32)
	r := hkdf.New(sha256.New, secret, nil, []byte(sealingInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.Wrap(err, "enclave: derive sealing key")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "enclave: cipher init")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "enclave: gcm init")
	}
	return &AESGCMSealer{aead: aead}, nil
}

// Seal encrypts plaintext under the enclave sealing key.
func (s *AESGCMSealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, ErrSeal
	}
	out := make([]byte, 0, gcmNonceSize+len(plaintext)+s.aead.Overhead())
	out = append(out, nonce...)
	return s.aead.Seal(out, nonce, plaintext, nil), nil
}

// Unseal authenticates and decrypts a sealed blob.
func (s *AESGCMSealer) Unseal(sealed []byte) ([]byte, error) {
	if len(sealed) < gcmNonceSize+s.aead.Overhead() {
		return nil, ErrUnseal
	}
	plaintext, err := s.aead.Open(nil, sealed[:gcmNonceSize], sealed[gcmNonceSize:], nil)
	if err != nil {
		return nil, ErrUnseal
	}
	return plaintext, nil
}

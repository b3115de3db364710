// Package crypto provides the cryptographic primitives of the teesigner
// enclave: BLS12-381 signing via the supranational/blst library with the
// "MinPk" scheme used by Ethereum (public keys in G1, signatures in G2),
// the secp256k1/ECIES channel used for key import, and scoped handles for
// plaintext secret material.
package crypto

import (
	"errors"

	blst "github.com/supranational/blst/bindings/go"
)

// blsDST is the domain separation tag for Ethereum BLS signatures.
var blsDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_")

// Key and signature sizes for the MinPk scheme.
const (
	BLSPubkeyLength    = 48 // compressed G1
	BLSSignatureLength = 96 // compressed G2
	BLSSecretLength    = 32 // scalar field element
)

// Errors returned by the BLS helpers.
var (
	ErrBLSInvalidIKM       = errors.New("bls: IKM must be at least 32 bytes")
	ErrBLSKeyGenFailed     = errors.New("bls: key generation failed")
	ErrBLSInvalidSecretKey = errors.New("bls: invalid secret key bytes")
	ErrBLSSignFailed       = errors.New("bls: signing failed")
)

// BLSKeyGen generates a BLS key pair from input key material (IKM).
// IKM must be at least 32 bytes. Returns the compressed public key
// (48 bytes) and the serialized secret key (32 bytes).
func BLSKeyGen(ikm []byte) (pubkey, secretKey []byte, err error) {
	if len(ikm) < 32 {
		return nil, nil, ErrBLSInvalidIKM
	}

	sk := blst.KeyGen(ikm)
	if sk == nil {
		return nil, nil, ErrBLSKeyGenFailed
	}

	pk := new(blst.P1Affine).From(sk)
	pubkey = pk.Compress()
	secretKey = sk.Serialize()
	return pubkey, secretKey, nil
}

// BLSSecretToPublic derives the compressed public key for a serialized
// secret key. Rejects scalars outside the field.
func BLSSecretToPublic(secretKey []byte) ([]byte, error) {
	if len(secretKey) != BLSSecretLength {
		return nil, ErrBLSInvalidSecretKey
	}

	sk := new(blst.SecretKey).Deserialize(secretKey)
	if sk == nil {
		return nil, ErrBLSInvalidSecretKey
	}
	defer sk.Zeroize()

	return new(blst.P1Affine).From(sk).Compress(), nil
}

// BLSSign signs a message using the given secret key bytes (32 bytes).
// Returns the compressed signature (96 bytes). Signing is deterministic:
// the same key and message always produce the same bytes.
func BLSSign(secretKey, msg []byte) ([]byte, error) {
	if len(secretKey) != BLSSecretLength {
		return nil, ErrBLSInvalidSecretKey
	}

	sk := new(blst.SecretKey).Deserialize(secretKey)
	if sk == nil {
		return nil, ErrBLSInvalidSecretKey
	}
	defer sk.Zeroize()

	sig := new(blst.P2Affine).Sign(sk, msg, blsDST)
	if sig == nil {
		return nil, ErrBLSSignFailed
	}

	return sig.Compress(), nil
}

// BLSVerify checks a single BLS signature.
// pubkey must be 48-byte compressed G1, sig must be 96-byte compressed G2.
func BLSVerify(pubkey, msg, sig []byte) bool {
	if len(pubkey) == 0 || len(sig) == 0 {
		return false
	}

	pk := new(blst.P1Affine).Uncompress(pubkey)
	if pk == nil {
		return false
	}

	s := new(blst.P2Affine).Uncompress(sig)
	if s == nil {
		return false
	}

	return s.Verify(true, pk, true, msg, blsDST)
}

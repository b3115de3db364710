// Package attest produces remote-attestation evidence binding the
// enclave's secp256k1 transport public key to a measured enclave. The
// report's 64-byte user-data field carries SHA256(pk_bytes) || 0^32, so a
// verifier who checks the quote out of band knows the key was generated by
// this enclave. The package also fronts the ECIES decryption path for
// ciphertexts addressed to an attested key.
package attest

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/teesigner/teesigner/crypto"
	"github.com/teesigner/teesigner/keystore"
	"github.com/teesigner/teesigner/log"
)

// ReportDataSize is the size of the enclave report user-data field.
const ReportDataSize = 64

var (
	// ErrAttestation is returned when quote generation fails, typically
	// because the platform quoting service is unavailable.
	ErrAttestation = errors.New("attest: quote generation failed")
)

// Evidence is the opaque attestation result returned to callers. The
// quote is verified out of band against Intel's attestation service.
type Evidence struct {
	QuoteType  string `json:"quote_type"`
	ReportData string `json:"report_data"`
	Quote      string `json:"quote"`
}

// Quoter turns report data into an attestation quote.
type Quoter interface {
	// Quote produces attestation evidence over the given 64-byte report
	// data. The returned bytes are opaque to this service.
	Quote(reportData [ReportDataSize]byte) ([]byte, error)

	// Type names the evidence format ("epid" or "dummy").
	Type() string
}

// Attestor binds stored public keys into attestation evidence.
type Attestor struct {
	keys   *keystore.Store
	quoter Quoter
	log    *log.Logger
}

// New returns an Attestor using the given quoter.
func New(keys *keystore.Store, quoter Quoter) *Attestor {
	return &Attestor{
		keys:   keys,
		quoter: quoter,
		log:    log.Default().Module("attest"),
	}
}

// Attest produces evidence for the transport key identified by pkHex. The
// key must exist in the store; the report data is SHA256(pk_bytes)
// followed by 32 zero bytes.
func (a *Attestor) Attest(pkHex string) (*Evidence, error) {
	pub, err := crypto.ParseEthPubkeyHex(pkHex)
	if err != nil {
		return nil, keystore.ErrUnknownKey
	}

	// Resolve through the store so evidence is only ever produced for
	// keys this enclave actually holds.
	sec, err := a.keys.LoadSecp256k1(pkHex)
	if err != nil {
		return nil, err
	}
	sec.Destroy()

	reportData := ReportDataFor(pub)
	quote, err := a.quoter.Quote(reportData)
	if err != nil {
		return nil, ErrAttestation
	}

	a.log.Info("attested transport key", "pubkey", "0x"+crypto.CompressEthPubkeyHex(pub), "quote_type", a.quoter.Type())
	return &Evidence{
		QuoteType:  a.quoter.Type(),
		ReportData: hex.EncodeToString(reportData[:]),
		Quote:      hex.EncodeToString(quote),
	}, nil
}

// DecryptFor decrypts an ECIES ciphertext addressed to the transport key
// identified by pkHex.
func (a *Attestor) DecryptFor(pkHex string, ciphertext []byte) ([]byte, error) {
	sec, err := a.keys.LoadSecp256k1(pkHex)
	if err != nil {
		return nil, err
	}
	defer sec.Destroy()

	raw, err := sec.Bytes()
	if err != nil {
		return nil, err
	}
	prv, err := crypto.EthSecretFromBytes(raw)
	if err != nil {
		return nil, err
	}
	return crypto.ECIESDecrypt(prv, ciphertext)
}

// ReportDataFor computes the user-data binding for a transport public key:
// SHA256 over the compressed key bytes, zero-padded to 64 bytes.
func ReportDataFor(pub *ecdsa.PublicKey) [ReportDataSize]byte {
	var reportData [ReportDataSize]byte
	digest := sha256.Sum256(gethcrypto.CompressPubkey(pub))
	copy(reportData[:32], digest[:])
	return reportData
}

//go:build sgx

package enclave

import (
	"os"

	"github.com/pkg/errors"
)

// sgxSealKeyPath is where Gramine-style runtimes expose the MRENCLAVE-bound
// sealing key (EGETKEY with KEYNAME_SEAL).
const sgxSealKeyPath = "/dev/attestation/keys/_sgx_mrenclave"

// SGXMeasurement derives the sealing secret from the platform sealing key.
// Only built inside an SGX runtime that exposes the key request interface.
type SGXMeasurement struct{}

// NewSGXMeasurement returns the hardware-backed provider.
func NewSGXMeasurement() *SGXMeasurement {
	return &SGXMeasurement{}
}

// SealingSecret reads the enclave sealing key from the runtime.
func (s *SGXMeasurement) SealingSecret() ([]byte, error) {
	key, err := os.ReadFile(sgxSealKeyPath)
	if err != nil {
		return nil, errors.Wrap(err, "enclave: read sgx sealing key")
	}
	if len(key) == 0 {
		return nil, errors.New("enclave: empty sgx sealing key")
	}
	return key, nil
}

package enclave

import (
	"crypto/rand"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// devKeyFile is the keyfile name used by the development provider.
const devKeyFile = "enclave.key"

// FileMeasurement is the development MeasurementProvider. It stores a
// random 32-byte secret in a keyfile under the data root, creating it on
// first use with 0600 permissions. Outside a real enclave this gives the
// same sealed-storage code paths without hardware binding.
type FileMeasurement struct {
	dir string
}

// NewFileMeasurement returns a provider rooted at dir.
func NewFileMeasurement(dir string) *FileMeasurement {
	return &FileMeasurement{dir: dir}
}

// SealingSecret loads the keyfile, creating it on first use.
func (f *FileMeasurement) SealingSecret() ([]byte, error) {
	path := filepath.Join(f.dir, devKeyFile)

	secret, err := os.ReadFile(path)
	if err == nil {
		if len(secret) != 32 {
			return nil, errors.Errorf("enclave: keyfile %s has %d bytes, want 32", path, len(secret))
		}
		return secret, nil
	}
	if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "enclave: read keyfile")
	}

	secret = make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, errors.Wrap(err, "enclave: generate keyfile secret")
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "enclave: create data root")
	}
	if err := WriteFileAtomic(path, secret, 0o600); err != nil {
		return nil, errors.Wrap(err, "enclave: write keyfile")
	}
	return secret, nil
}

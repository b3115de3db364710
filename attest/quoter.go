package attest

import (
	"crypto/sha256"
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
)

// epidDevicePath is where SGX runtimes expose the quote interface. The
// report data is written there and the quote read back.
const epidDevicePath = "/dev/attestation/quote"

// epidUserReportPath receives the user report data before reading a quote.
const epidUserReportPath = "/dev/attestation/user_report_data"

// EPIDQuoter obtains EPID quotes from the platform quoting enclave via the
// runtime's attestation interface.
type EPIDQuoter struct{}

// NewEPIDQuoter returns the production quoter.
func NewEPIDQuoter() *EPIDQuoter {
	return &EPIDQuoter{}
}

// Type returns "epid".
func (q *EPIDQuoter) Type() string { return "epid" }

// Quote writes the report data to the runtime interface and reads the
// quote back. Fails when no quoting service is present on the platform.
func (q *EPIDQuoter) Quote(reportData [ReportDataSize]byte) ([]byte, error) {
	if err := os.WriteFile(epidUserReportPath, reportData[:], 0o600); err != nil {
		return nil, errors.Wrap(err, "attest: write user report data")
	}
	quote, err := os.ReadFile(epidDevicePath)
	if err != nil {
		return nil, errors.Wrap(err, "attest: read quote")
	}
	if len(quote) == 0 {
		return nil, errors.New("attest: empty quote")
	}
	return quote, nil
}

// DummyQuoter produces deterministic evidence for development builds where
// no quoting service exists. It must never be the default: the evidence it
// emits proves nothing.
type DummyQuoter struct{}

// NewDummyQuoter returns the development quoter.
func NewDummyQuoter() *DummyQuoter {
	return &DummyQuoter{}
}

// Type returns "dummy".
func (q *DummyQuoter) Type() string { return "dummy" }

// Quote returns a fixed-layout pseudo quote over the report data so that
// client plumbing can be exercised end to end.
func (q *DummyQuoter) Quote(reportData [ReportDataSize]byte) ([]byte, error) {
	digest := sha256.Sum256(reportData[:])

	out := make([]byte, 0, 8+ReportDataSize+len(digest))
	var header [8]byte
	binary.LittleEndian.PutUint32(header[:4], 0xdeb06) // dummy marker
	binary.LittleEndian.PutUint32(header[4:], uint32(ReportDataSize))
	out = append(out, header[:]...)
	out = append(out, reportData[:]...)
	out = append(out, digest[:]...)
	return out, nil
}

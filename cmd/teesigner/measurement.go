//go:build !sgx

package main

import "github.com/teesigner/teesigner/enclave"

// measurementProvider selects the development provider outside SGX: the
// sealing secret lives in a keyfile under the data directory.
func measurementProvider(dataDir string) enclave.MeasurementProvider {
	return enclave.NewFileMeasurement(dataDir)
}

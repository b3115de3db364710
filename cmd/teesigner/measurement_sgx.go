//go:build sgx

package main

import "github.com/teesigner/teesigner/enclave"

// measurementProvider binds sealing to the hardware key inside SGX.
func measurementProvider(string) enclave.MeasurementProvider {
	return enclave.NewSGXMeasurement()
}

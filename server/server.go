// Package server is the HTTP facade of the enclave. It translates the
// external JSON envelopes into typed calls on the key store, the signing
// pipeline and the attestor, and maps the error taxonomy onto status
// codes. It owns no durable state.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teesigner/teesigner/attest"
	"github.com/teesigner/teesigner/beacon"
	"github.com/teesigner/teesigner/keystore"
	"github.com/teesigner/teesigner/log"
	"github.com/teesigner/teesigner/signer"
	"github.com/teesigner/teesigner/slashing"
)

// Server routes external requests to the enclave components.
type Server struct {
	router   *mux.Router
	keys     *keystore.Store
	signer   *signer.Signer
	attestor *attest.Attestor
	log      *log.Logger
}

// New wires the routes and returns the server.
func New(keys *keystore.Store, sgn *signer.Signer, attestor *attest.Attestor) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		keys:     keys,
		signer:   sgn,
		attestor: attestor,
		log:      log.Default().Module("server"),
	}

	r := s.router
	r.HandleFunc("/upcheck", s.handleUpcheck).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/eth/v1/keygen/bls", s.handleBLSKeygen).Methods(http.MethodPost)
	r.HandleFunc("/eth/v1/keygen/bls", s.handleListGeneratedBLS).Methods(http.MethodGet)
	r.HandleFunc("/eth/v1/keygen/secp256k1", s.handleEthKeygen).Methods(http.MethodPost)
	r.HandleFunc("/eth/v1/keygen/secp256k1", s.handleListEthKeys).Methods(http.MethodGet)

	r.HandleFunc("/eth/v1/keystores", s.handleKeyImport).Methods(http.MethodPost)
	r.HandleFunc("/eth/v1/keystores", s.handleListImportedBLS).Methods(http.MethodGet)

	r.HandleFunc("/api/v1/eth2/sign/{bls_pk_hex}", s.handleSign).Methods(http.MethodPost)
	r.HandleFunc("/eth/v1/remote-attestation", s.handleRemoteAttestation).Methods(http.MethodPost)

	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleUpcheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// statusFor maps the error taxonomy onto HTTP status codes. Every
// sentinel maps to exactly one code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, keystore.ErrUnknownKey):
		return http.StatusNotFound
	case errors.Is(err, slashing.ErrSlashableBlock),
		errors.Is(err, slashing.ErrSlashableAttestation):
		return http.StatusPreconditionFailed
	case errors.Is(err, beacon.ErrDecode),
		errors.Is(err, beacon.ErrUnknownFork),
		errors.Is(err, keystore.ErrInvalidPubkey),
		errors.Is(err, keystore.ErrInvalidScalar),
		errors.Is(err, keystore.ErrDecrypt),
		errors.Is(err, keystore.ErrKeyMismatch):
		return http.StatusBadRequest
	default:
		// Storage, sealing, signing, attestation and timeout failures
		// are internal.
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError emits the sentinel's message only; wrapped detail stays in
// the logs and never reaches the wire.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": rootMessage(err)})
}

func rootMessage(err error) string {
	for _, sentinel := range []error{
		keystore.ErrUnknownKey, keystore.ErrInvalidPubkey, keystore.ErrInvalidScalar,
		keystore.ErrDecrypt, keystore.ErrKeyMismatch, keystore.ErrStorage,
		slashing.ErrSlashableBlock, slashing.ErrSlashableAttestation, slashing.ErrCorruptRecord,
		beacon.ErrDecode, beacon.ErrUnknownFork,
		signer.ErrSign, signer.ErrTimeout,
		attest.ErrAttestation,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}

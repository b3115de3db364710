package server

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/teesigner/teesigner/beacon"
)

// KeyGenStatus is one entry of a keygen or import response.
type KeyGenStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// KeyGenResponse wraps keygen and import results.
type KeyGenResponse struct {
	Data []KeyGenStatus `json:"data"`
}

// KeyEntry is one listed public key.
type KeyEntry struct {
	Pubkey string `json:"pubkey"`
}

// ListKeysResponse wraps key listings.
type ListKeysResponse struct {
	Data []KeyEntry `json:"data"`
}

// KeyImportRequest is the encrypted-import envelope: the ECIES ciphertext
// of the BLS secret, the claimed BLS public key and the transport key the
// ciphertext is addressed to.
type KeyImportRequest struct {
	CtBlsSkHex      string `json:"ct_bls_sk_hex"`
	BlsPkHex        string `json:"bls_pk_hex"`
	EncryptingPkHex string `json:"encrypting_pk_hex"`
}

// SignResponse carries the signature hex.
type SignResponse struct {
	Signature string `json:"signature"`
}

// AttestRequest names the public key to attest.
type AttestRequest struct {
	PubKey string `json:"pub_key"`
}

func (s *Server) handleBLSKeygen(w http.ResponseWriter, _ *http.Request) {
	pkHex, err := s.keys.GenerateBLS()
	if err != nil {
		s.log.Error("bls keygen failed", "err", err.Error())
		writeError(w, err)
		return
	}
	keygenTotal.WithLabelValues("bls").Inc()
	writeJSON(w, http.StatusOK, &KeyGenResponse{
		Data: []KeyGenStatus{{Status: "generated", Message: "0x" + pkHex}},
	})
}

func (s *Server) handleEthKeygen(w http.ResponseWriter, _ *http.Request) {
	pkHex, err := s.keys.GenerateSecp256k1()
	if err != nil {
		s.log.Error("secp256k1 keygen failed", "err", err.Error())
		writeError(w, err)
		return
	}
	keygenTotal.WithLabelValues("secp256k1").Inc()
	writeJSON(w, http.StatusOK, &KeyGenResponse{
		Data: []KeyGenStatus{{Status: "generated", Message: "0x" + pkHex}},
	})
}

func (s *Server) handleListGeneratedBLS(w http.ResponseWriter, _ *http.Request) {
	s.writeKeyList(w, s.keys.ListBLSGenerated)
}

func (s *Server) handleListImportedBLS(w http.ResponseWriter, _ *http.Request) {
	s.writeKeyList(w, s.keys.ListBLSImported)
}

func (s *Server) handleListEthKeys(w http.ResponseWriter, _ *http.Request) {
	s.writeKeyList(w, s.keys.ListSecp256k1)
}

func (s *Server) writeKeyList(w http.ResponseWriter, list func() ([]string, error)) {
	keys, err := list()
	if err != nil {
		s.log.Error("key listing failed", "err", err.Error())
		writeError(w, err)
		return
	}
	resp := &ListKeysResponse{Data: make([]KeyEntry, 0, len(keys))}
	for _, pk := range keys {
		resp.Data = append(resp.Data, KeyEntry{Pubkey: "0x" + pk})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleKeyImport(w http.ResponseWriter, r *http.Request) {
	var req KeyImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, &KeyGenResponse{
			Data: []KeyGenStatus{{Status: "error", Message: ""}},
		})
		return
	}

	ct, err := hex.DecodeString(strings.TrimPrefix(req.CtBlsSkHex, "0x"))
	if err != nil || len(ct) == 0 {
		writeJSON(w, http.StatusBadRequest, &KeyGenResponse{
			Data: []KeyGenStatus{{Status: "error", Message: ""}},
		})
		return
	}

	pkHex, err := s.keys.ImportBLS(ct, req.BlsPkHex, req.EncryptingPkHex)
	if err != nil {
		s.log.Warn("key import refused", "err", rootMessage(err))
		writeJSON(w, statusFor(err), &KeyGenResponse{
			Data: []KeyGenStatus{{Status: "error", Message: ""}},
		})
		return
	}

	importTotal.Inc()
	writeJSON(w, http.StatusOK, &KeyGenResponse{
		Data: []KeyGenStatus{{Status: "imported", Message: "0x" + pkHex}},
	})
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	pkHex := mux.Vars(r)["bls_pk_hex"]

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, beacon.ErrDecode)
		return
	}

	sig, err := s.signer.Sign(r.Context(), pkHex, body)
	if err != nil {
		status := statusFor(err)
		signTotal.WithLabelValues(statusClass(status)).Inc()
		if status == http.StatusPreconditionFailed {
			refusalTotal.Inc()
		}
		writeError(w, err)
		return
	}

	signTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, &SignResponse{Signature: sig})
}

func (s *Server) handleRemoteAttestation(w http.ResponseWriter, r *http.Request) {
	var req AttestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, beacon.ErrDecode)
		return
	}

	evidence, err := s.attestor.Attest(req.PubKey)
	if err != nil {
		s.log.Error("attestation failed", "err", rootMessage(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"evidence": evidence})
}

func statusClass(status int) string {
	switch {
	case status == http.StatusPreconditionFailed:
		return "refused"
	case status == http.StatusNotFound:
		return "unknown_key"
	case status >= 500:
		return "error"
	default:
		return "bad_request"
	}
}

package server

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teesigner/teesigner/attest"
	"github.com/teesigner/teesigner/beacon"
	"github.com/teesigner/teesigner/crypto"
	"github.com/teesigner/teesigner/enclave"
	"github.com/teesigner/teesigner/keystore"
	"github.com/teesigner/teesigner/signer"
	"github.com/teesigner/teesigner/slashing"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	root := t.TempDir()

	sealer, err := enclave.NewAESGCMSealer(enclave.NewFileMeasurement(root))
	require.NoError(t, err)
	keys, err := keystore.Open(root, sealer)
	require.NoError(t, err)
	db, err := slashing.Open(root, sealer)
	require.NoError(t, err)

	sgn := signer.New(keys, db, beacon.MainnetForkSchedule(), 0)
	attestor := attest.New(keys, attest.NewDummyQuoter())

	ts := httptest.NewServer(New(keys, sgn, attestor).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, path, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func get(t *testing.T, ts *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

const forkInfoJSON = `"fork_info": {
	"fork": {
		"previous_version": "0x00000000",
		"current_version": "0x00000000",
		"epoch": "0x0"
	},
	"genesis_validators_root": "0x0000000000000000000000000000000000000000000000000000000000000000"
}`

func proposeBlockRequest(slot string) string {
	return fmt.Sprintf(`{
		"type": "BLOCK_V2",
		%s,
		"beacon_block": {
			"version": "PHASE0",
			"block_header": {
				"slot": "%s",
				"proposer_index": "0x1",
				"parent_root": "0x%s",
				"state_root": "0x%s",
				"body_root": "0x%s"
			}
		}
	}`, forkInfoJSON, slot, strings.Repeat("aa", 32), strings.Repeat("bb", 32), strings.Repeat("cc", 32))
}

func attestationRequest(src, tgt string) string {
	return fmt.Sprintf(`{
		"type": "ATTESTATION",
		%s,
		"attestation": {
			"slot": "0xff",
			"index": "0x0",
			"beacon_block_root": "0x%s",
			"source": {"epoch": "%s", "root": "0x%s"},
			"target": {"epoch": "%s", "root": "0x%s"}
		}
	}`, forkInfoJSON, strings.Repeat("11", 32), src, strings.Repeat("22", 32), tgt, strings.Repeat("33", 32))
}

func randaoRequest(epoch string) string {
	return fmt.Sprintf(`{"type": "RANDAO_REVEAL", %s, "randao_reveal": {"epoch": "%s"}}`, forkInfoJSON, epoch)
}

func generateBLSKey(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, body := post(t, ts, "/eth/v1/keygen/bls", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var kg KeyGenResponse
	require.NoError(t, json.Unmarshal(body, &kg))
	require.Len(t, kg.Data, 1)
	require.Equal(t, "generated", kg.Data[0].Status)
	return kg.Data[0].Message
}

// Scenario 1: keygen then list returns exactly the generated pubkey.
func TestKeygenThenList(t *testing.T) {
	ts := newTestServer(t)

	pk := generateBLSKey(t, ts)
	require.True(t, strings.HasPrefix(pk, "0x"))
	require.Len(t, pk, 2+96)
	require.Equal(t, strings.ToLower(pk), pk)

	resp, body := get(t, ts, "/eth/v1/keygen/bls")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list ListKeysResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Data, 1)
	require.Equal(t, pk, list.Data[0].Pubkey)
}

// Scenario 2: block slashing ladder 0xfe -> 200, 0xfe -> 412,
// 0xfd -> 412, 0xff -> 200.
func TestBlockSlashingLadder(t *testing.T) {
	ts := newTestServer(t)
	pk := generateBLSKey(t, ts)
	signPath := "/api/v1/eth2/sign/" + pk

	resp, _ := post(t, ts, signPath, proposeBlockRequest("0xfe"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = post(t, ts, signPath, proposeBlockRequest("0xfe"))
	require.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)

	resp, _ = post(t, ts, signPath, proposeBlockRequest("0xfd"))
	require.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)

	resp, _ = post(t, ts, signPath, proposeBlockRequest("0xff"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// Scenario 3: attestation ladder with the surround and double-vote
// refusals in the middle.
func TestAttestationSlashingLadder(t *testing.T) {
	ts := newTestServer(t)
	pk := generateBLSKey(t, ts)
	signPath := "/api/v1/eth2/sign/" + pk

	steps := []struct {
		src, tgt string
		status   int
	}{
		{"0x0a", "0x0b", http.StatusOK},
		{"0x00", "0x0c", http.StatusPreconditionFailed},
		{"0x0a", "0x0b", http.StatusPreconditionFailed},
		{"0x0a", "0x0c", http.StatusOK},
		{"0x0b", "0x0d", http.StatusOK},
	}
	for i, step := range steps {
		resp, _ := post(t, ts, signPath, attestationRequest(step.src, step.tgt))
		require.Equalf(t, step.status, resp.StatusCode, "step %d (%s,%s)", i, step.src, step.tgt)
	}
}

// Scenarios 4 and 5: non-slashable kinds accept identical repeats.
func TestNonSlashableRepeats(t *testing.T) {
	ts := newTestServer(t)
	pk := generateBLSKey(t, ts)
	signPath := "/api/v1/eth2/sign/" + pk

	var first SignResponse
	resp, body := post(t, ts, signPath, randaoRequest("0x0a"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &first))
	require.Len(t, first.Signature, 2+192)

	var second SignResponse
	resp, body = post(t, ts, signPath, randaoRequest("0x0a"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &second))
	require.Equal(t, first.Signature, second.Signature)

	aggregate := fmt.Sprintf(`{
		"type": "AGGREGATE_AND_PROOF",
		%s,
		"aggregate_and_proof": {
			"aggregator_index": "0x0",
			"aggregate": {
				"aggregation_bits": "0x01",
				"data": {
					"slot": "0x1",
					"index": "0x0",
					"beacon_block_root": "0x%s",
					"source": {"epoch": "0x0", "root": "0x%s"},
					"target": {"epoch": "0x1", "root": "0x%s"}
				},
				"signature": "0x%s"
			},
			"selection_proof": "0x%s"
		}
	}`, forkInfoJSON, strings.Repeat("11", 32), strings.Repeat("22", 32),
		strings.Repeat("33", 32), strings.Repeat("cc", 96), strings.Repeat("dd", 96))
	resp, _ = post(t, ts, signPath, aggregate)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = post(t, ts, signPath, aggregate)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// Scenario 6: encrypted import round trip, then a signature under the
// imported key verifies against the original public key.
func TestEncryptedImportRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	// Enclave-side transport key.
	resp, body := post(t, ts, "/eth/v1/keygen/secp256k1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var kg KeyGenResponse
	require.NoError(t, json.Unmarshal(body, &kg))
	ethPkHex := kg.Data[0].Message

	// Attest the transport key; dev quoter is wired in this server.
	resp, _ = post(t, ts, "/eth/v1/remote-attestation",
		fmt.Sprintf(`{"pub_key": "%s"}`, ethPkHex))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Operator-side BLS key, encrypted to the transport key.
	blsPub, blsSec, err := crypto.BLSKeyGen(bytes.Repeat([]byte{0x77}, 32))
	require.NoError(t, err)
	blsPkHex := "0x" + hex.EncodeToString(blsPub)

	ethPub, err := crypto.ParseEthPubkeyHex(ethPkHex)
	require.NoError(t, err)
	ct, err := crypto.ECIESEncrypt(ethPub, blsSec)
	require.NoError(t, err)

	importReq := fmt.Sprintf(`{
		"ct_bls_sk_hex": "0x%s",
		"bls_pk_hex": "%s",
		"encrypting_pk_hex": "%s"
	}`, hex.EncodeToString(ct), blsPkHex, ethPkHex)

	resp, body = post(t, ts, "/eth/v1/keystores", importReq)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &kg))
	require.Equal(t, "imported", kg.Data[0].Status)
	require.Equal(t, blsPkHex, kg.Data[0].Message)

	// Listed under the imported namespace.
	resp, body = get(t, ts, "/eth/v1/keystores")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list ListKeysResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Data, 1)
	require.Equal(t, blsPkHex, list.Data[0].Pubkey)

	// Sign under the imported key and verify against the original pk.
	resp, body = post(t, ts, "/api/v1/eth2/sign/"+blsPkHex, randaoRequest("0x02"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sr SignResponse
	require.NoError(t, json.Unmarshal(body, &sr))

	msg, err := beacon.ParseSignRequest([]byte(randaoRequest("0x02")))
	require.NoError(t, err)
	root, err := msg.SigningRoot(beacon.MainnetForkSchedule())
	require.NoError(t, err)

	sig, err := hex.DecodeString(strings.TrimPrefix(sr.Signature, "0x"))
	require.NoError(t, err)
	require.True(t, crypto.BLSVerify(blsPub, root[:], sig))
}

func TestSign_UnknownKey404(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := post(t, ts, "/api/v1/eth2/sign/0x"+strings.Repeat("ab", 48), randaoRequest("0x0a"))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSign_Malformed400(t *testing.T) {
	ts := newTestServer(t)
	pk := generateBLSKey(t, ts)

	resp, _ := post(t, ts, "/api/v1/eth2/sign/"+pk, `{"type": "RANDAO_REVEAL"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Error bodies carry no hex beyond the route's public key.
	resp, body := post(t, ts, "/api/v1/eth2/sign/"+pk, attestationRequest("0x0a", "0x0b"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = post(t, ts, "/api/v1/eth2/sign/"+pk, attestationRequest("0x0a", "0x0b"))
	require.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	require.NotContains(t, string(body), "0x0a")
	require.NotContains(t, string(body), pk)
}

func TestImport_BadCiphertext(t *testing.T) {
	ts := newTestServer(t)

	resp, body := post(t, ts, "/eth/v1/keygen/secp256k1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var kg KeyGenResponse
	require.NoError(t, json.Unmarshal(body, &kg))

	importReq := fmt.Sprintf(`{
		"ct_bls_sk_hex": "0xdeadbeef",
		"bls_pk_hex": "",
		"encrypting_pk_hex": "%s"
	}`, kg.Data[0].Message)

	resp, body = post(t, ts, "/eth/v1/keystores", importReq)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &kg))
	require.Equal(t, "error", kg.Data[0].Status)
}

func TestUpcheck(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := get(t, ts, "/upcheck")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, body := get(t, ts, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "teesigner")
}

package beacon

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func mustParse(t *testing.T, body string) *SignableMessage {
	t.Helper()
	msg, err := ParseSignRequest([]byte(body))
	if err != nil {
		t.Fatalf("ParseSignRequest: %v", err)
	}
	return msg
}

func TestSigningRoot_Block(t *testing.T) {
	schedule := MainnetForkSchedule()

	root1, err := mustParse(t, mockBlockRequest("0xfe")).SigningRoot(schedule)
	if err != nil {
		t.Fatalf("SigningRoot: %v", err)
	}

	// Deterministic for identical input.
	root2, err := mustParse(t, mockBlockRequest("0xfe")).SigningRoot(schedule)
	if err != nil {
		t.Fatalf("SigningRoot: %v", err)
	}
	if root1 != root2 {
		t.Fatalf("signing root not deterministic")
	}

	// A different slot signs a different root.
	root3, err := mustParse(t, mockBlockRequest("0xff")).SigningRoot(schedule)
	if err != nil {
		t.Fatalf("SigningRoot: %v", err)
	}
	if root3 == root1 {
		t.Fatalf("signing root unchanged across slots")
	}
}

// A phase0 block body under a non-phase0 fork version is a variant
// mismatch.
func TestSigningRoot_BlockForkMismatch(t *testing.T) {
	body := strings.Replace(mockBlockRequest("0xfe"),
		`"current_version": "0x00000000"`,
		`"current_version": "0x02000000"`, 1)

	_, err := mustParse(t, body).SigningRoot(MainnetForkSchedule())
	if !errors.Is(err, ErrUnknownFork) {
		t.Fatalf("err = %v, want ErrUnknownFork", err)
	}
}

func TestSigningRoot_UnknownVersion(t *testing.T) {
	body := strings.Replace(mockBlockRequest("0xfe"),
		`"current_version": "0x00000000"`,
		`"current_version": "0xdeadbeef"`, 1)

	_, err := mustParse(t, body).SigningRoot(MainnetForkSchedule())
	if !errors.Is(err, ErrUnknownFork) {
		t.Fatalf("err = %v, want ErrUnknownFork", err)
	}
}

// BLOCK_V2 requires the named variant to agree with the fork resolved
// from the version bytes.
func TestSigningRoot_BlockV2VersionAgreement(t *testing.T) {
	build := func(name, version string) string {
		return fmt.Sprintf(`{
			"type": "BLOCK_V2",
			"fork_info": {
				"fork": {
					"previous_version": "0x00000000",
					"current_version": "%s",
					"epoch": "0x0"
				},
				"genesis_validators_root": "0x%s"
			},
			"beacon_block": {
				"version": "%s",
				"block_header": {
					"slot": "0xfe",
					"proposer_index": "0x5",
					"parent_root": "0x%s",
					"state_root": "0x%s",
					"body_root": "0x%s"
				}
			}
		}`, version, strings.Repeat("00", 32), name,
			strings.Repeat("aa", 32), strings.Repeat("bb", 32), strings.Repeat("cc", 32))
	}

	schedule := MainnetForkSchedule()

	if _, err := mustParse(t, build("CAPELLA", "0x03000000")).SigningRoot(schedule); err != nil {
		t.Fatalf("matching version rejected: %v", err)
	}
	if _, err := mustParse(t, build("CAPELLA", "0x02000000")).SigningRoot(schedule); !errors.Is(err, ErrUnknownFork) {
		t.Fatalf("err = %v, want ErrUnknownFork for variant mismatch", err)
	}
	if _, err := mustParse(t, build("ELECTRA", "0x03000000")).SigningRoot(schedule); !errors.Is(err, ErrUnknownFork) {
		t.Fatalf("err = %v, want ErrUnknownFork for unknown name", err)
	}
}

func TestSigningRoot_AttestationDependsOnEpochs(t *testing.T) {
	schedule := MainnetForkSchedule()

	r1, err := mustParse(t, mockAttestationRequest("0x0a", "0x0b")).SigningRoot(schedule)
	if err != nil {
		t.Fatalf("SigningRoot: %v", err)
	}
	r2, err := mustParse(t, mockAttestationRequest("0x0a", "0x0c")).SigningRoot(schedule)
	if err != nil {
		t.Fatalf("SigningRoot: %v", err)
	}
	if r1 == r2 {
		t.Fatalf("signing root unchanged across target epochs")
	}
}

// Identical object roots under different domains must sign differently:
// a randao reveal over epoch e and a selection proof over slot e share the
// object root but not the signing root.
func TestSigningRoot_DomainSeparation(t *testing.T) {
	schedule := MainnetForkSchedule()

	randao, err := mustParse(t, mockRandaoRequest("0x0a")).SigningRoot(schedule)
	if err != nil {
		t.Fatalf("SigningRoot: %v", err)
	}

	slotReq := fmt.Sprintf(`{
		"type": "AGGREGATION_SLOT",
		%s,
		"aggregation_slot": {"slot": "0x0a"}
	}`, testForkInfo)
	selection, err := mustParse(t, slotReq).SigningRoot(schedule)
	if err != nil {
		t.Fatalf("SigningRoot: %v", err)
	}

	if randao == selection {
		t.Fatalf("randao and selection proof share a signing root")
	}
}

func TestSigningRoot_SyncCommitteeMessage(t *testing.T) {
	blockRoot := strings.Repeat("42", 32)
	body := fmt.Sprintf(`{
		"type": "SYNC_COMMITTEE_MESSAGE",
		%s,
		"sync_committee_message": {
			"beacon_block_root": "0x%s",
			"slot": "0x10"
		}
	}`, testForkInfo, blockRoot)

	root, err := mustParse(t, body).SigningRoot(MainnetForkSchedule())
	if err != nil {
		t.Fatalf("SigningRoot: %v", err)
	}

	// object root is the block root itself; the signing root mixes in
	// the sync committee domain.
	var object [32]byte
	raw, _ := hex.DecodeString(blockRoot)
	copy(object[:], raw)
	domain := ComputeDomain(DomainSyncCommittee, [4]byte{}, [32]byte{})
	if root != ComputeSigningRoot(object, domain) {
		t.Fatalf("sync committee signing root mismatch")
	}
}

func TestSigningRoot_VoluntaryExit(t *testing.T) {
	body := fmt.Sprintf(`{
		"type": "VOLUNTARY_EXIT",
		%s,
		"voluntary_exit": {"epoch": "0x10", "validator_index": "0x5"}
	}`, testForkInfo)

	if _, err := mustParse(t, body).SigningRoot(MainnetForkSchedule()); err != nil {
		t.Fatalf("SigningRoot: %v", err)
	}
}

func TestSigningRoot_Deposit(t *testing.T) {
	body := fmt.Sprintf(`{
		"type": "DEPOSIT",
		"deposit": {
			"pubkey": "0x%s",
			"withdrawal_credentials": "0x%s",
			"amount": "0x773594000",
			"genesis_fork_version": "0x00000000"
		}
	}`, strings.Repeat("ab", 48), strings.Repeat("00", 32))

	root1, err := mustParse(t, body).SigningRoot(MainnetForkSchedule())
	if err != nil {
		t.Fatalf("SigningRoot: %v", err)
	}

	// The deposit domain ignores fork_info entirely; omitting the
	// genesis_fork_version defaults to the zero version and yields the
	// same root.
	var req SignRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	req.Deposit.GenesisForkVersion = nil
	raw, err := json.Marshal(&req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	root2, err := mustParse(t, string(raw)).SigningRoot(MainnetForkSchedule())
	if err != nil {
		t.Fatalf("SigningRoot: %v", err)
	}
	if root1 != root2 {
		t.Fatalf("zero genesis version not the default")
	}
}

func TestSigningRoot_AdvisoryMismatch(t *testing.T) {
	schedule := MainnetForkSchedule()

	msg := mustParse(t, mockRandaoRequest("0x0a"))
	root, err := msg.SigningRoot(schedule)
	if err != nil {
		t.Fatalf("SigningRoot: %v", err)
	}

	// Advisory root that matches passes.
	body := fmt.Sprintf(`{
		"type": "RANDAO_REVEAL",
		%s,
		"signingRoot": "0x%s",
		"randao_reveal": {"epoch": "0x0a"}
	}`, testForkInfo, hex.EncodeToString(root[:]))
	if _, err := mustParse(t, body).SigningRoot(schedule); err != nil {
		t.Fatalf("matching advisory root rejected: %v", err)
	}

	// A mismatched advisory root is refused.
	bad := strings.Repeat("99", 32)
	body = fmt.Sprintf(`{
		"type": "RANDAO_REVEAL",
		%s,
		"signingRoot": "0x%s",
		"randao_reveal": {"epoch": "0x0a"}
	}`, testForkInfo, bad)
	if _, err := mustParse(t, body).SigningRoot(schedule); !errors.Is(err, ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode for advisory mismatch", err)
	}
}

func TestSigningRoot_AggregateAndProof(t *testing.T) {
	body := fmt.Sprintf(`{
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
	}`, testForkInfo, strings.Repeat("11", 32), strings.Repeat("22", 32),
		strings.Repeat("33", 32), strings.Repeat("cc", 96), strings.Repeat("dd", 96))

	if _, err := mustParse(t, body).SigningRoot(MainnetForkSchedule()); err != nil {
		t.Fatalf("SigningRoot: %v", err)
	}
}

func TestSigningRoot_ContributionAndProof(t *testing.T) {
	body := fmt.Sprintf(`{
		"type": "SYNC_COMMITTEE_CONTRIBUTION_AND_PROOF",
		%s,
		"contribution_and_proof": {
			"aggregator_index": "0x3",
			"contribution": {
				"slot": "0x10",
				"beacon_block_root": "0x%s",
				"subcommittee_index": "0x1",
				"aggregation_bits": "0x%s",
				"signature": "0x%s"
			},
			"selection_proof": "0x%s"
		}
	}`, testForkInfo, strings.Repeat("11", 32), strings.Repeat("01", 16),
		strings.Repeat("aa", 96), strings.Repeat("bb", 96))

	if _, err := mustParse(t, body).SigningRoot(MainnetForkSchedule()); err != nil {
		t.Fatalf("SigningRoot: %v", err)
	}
}

func TestSigningRoot_MalformedPayloadBytes(t *testing.T) {
	// Attestation with a truncated beacon block root.
	body := strings.Replace(mockAttestationRequest("0x0a", "0x0b"),
		strings.Repeat("11", 32), "1111", 1)

	_, err := mustParse(t, body).SigningRoot(MainnetForkSchedule())
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

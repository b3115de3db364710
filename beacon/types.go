package beacon

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Request-side containers. Quantities are 0x-prefixed hex strings and byte
// fields are 0x-prefixed hex, which is what the validator-client side of
// the wire speaks. These mirror the consensus containers field for field;
// conversion to the SSZ types happens in convert.go.

// Quantity is a uint64 wire quantity. Clients encode these as hex strings
// ("0xfe", leading zeros tolerated) but decimal strings and bare numbers
// are accepted too.
type Quantity uint64

// UnmarshalJSON decodes hex strings, decimal strings and bare numbers.
func (q *Quantity) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n uint64
		if err := json.Unmarshal(b, &n); err != nil {
			return ErrDecode
		}
		*q = Quantity(n)
		return nil
	}

	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return ErrDecode
	}
	*q = Quantity(v)
	return nil
}

// MarshalJSON encodes as a 0x-hex string.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", "0x"+strconv.FormatUint(uint64(q), 16))), nil
}

// ForkParams carries the fork versions active at the request's epoch.
type ForkParams struct {
	PreviousVersion hexutil.Bytes `json:"previous_version"`
	CurrentVersion  hexutil.Bytes `json:"current_version"`
	Epoch           Quantity      `json:"epoch"`
}

// ForkInfo is the per-request fork context: the fork versions plus the
// genesis validators root that parameterize domain separation.
type ForkInfo struct {
	Fork                  *ForkParams   `json:"fork"`
	GenesisValidatorsRoot hexutil.Bytes `json:"genesis_validators_root"`
}

// Checkpoint is an epoch boundary reference.
type Checkpoint struct {
	Epoch Quantity      `json:"epoch"`
	Root  hexutil.Bytes `json:"root"`
}

// AttestationData is the signed portion of an attestation.
type AttestationData struct {
	Slot            Quantity      `json:"slot"`
	Index           Quantity      `json:"index"`
	BeaconBlockRoot hexutil.Bytes `json:"beacon_block_root"`
	Source          *Checkpoint   `json:"source"`
	Target          *Checkpoint   `json:"target"`
}

// BeaconBlockHeader summarizes a block for signing purposes; its hash tree
// root equals the root of the full block it summarizes.
type BeaconBlockHeader struct {
	Slot          Quantity      `json:"slot"`
	ProposerIndex Quantity      `json:"proposer_index"`
	ParentRoot    hexutil.Bytes `json:"parent_root"`
	StateRoot     hexutil.Bytes `json:"state_root"`
	BodyRoot      hexutil.Bytes `json:"body_root"`
}

// SignedBeaconBlockHeader pairs a header with its proposer signature.
type SignedBeaconBlockHeader struct {
	Message   *BeaconBlockHeader `json:"message"`
	Signature hexutil.Bytes      `json:"signature"`
}

// Eth1Data is the execution-chain vote inside a block body.
type Eth1Data struct {
	DepositRoot  hexutil.Bytes `json:"deposit_root"`
	DepositCount Quantity      `json:"deposit_count"`
	BlockHash    hexutil.Bytes `json:"block_hash"`
}

// ProposerSlashing is evidence of a double proposal.
type ProposerSlashing struct {
	SignedHeader1 *SignedBeaconBlockHeader `json:"signed_header_1"`
	SignedHeader2 *SignedBeaconBlockHeader `json:"signed_header_2"`
}

// IndexedAttestation lists the validators behind an attestation.
type IndexedAttestation struct {
	AttestingIndices []Quantity       `json:"attesting_indices"`
	Data             *AttestationData `json:"data"`
	Signature        hexutil.Bytes    `json:"signature"`
}

// AttesterSlashing is evidence of a slashable attestation pair.
type AttesterSlashing struct {
	Attestation1 *IndexedAttestation `json:"attestation_1"`
	Attestation2 *IndexedAttestation `json:"attestation_2"`
}

// Attestation is an aggregated attestation as included in blocks.
type Attestation struct {
	AggregationBits hexutil.Bytes    `json:"aggregation_bits"`
	Data            *AttestationData `json:"data"`
	Signature       hexutil.Bytes    `json:"signature"`
}

// DepositData is the signed deposit payload.
type DepositData struct {
	Pubkey                hexutil.Bytes `json:"pubkey"`
	WithdrawalCredentials hexutil.Bytes `json:"withdrawal_credentials"`
	Amount                Quantity      `json:"amount"`
	Signature             hexutil.Bytes `json:"signature"`
}

// Deposit pairs deposit data with its Merkle proof.
type Deposit struct {
	Proof []hexutil.Bytes `json:"proof"`
	Data  *DepositData    `json:"data"`
}

// VoluntaryExit announces a validator's exit.
type VoluntaryExit struct {
	Epoch          Quantity `json:"epoch"`
	ValidatorIndex Quantity `json:"validator_index"`
}

// SignedVoluntaryExit pairs an exit with its signature.
type SignedVoluntaryExit struct {
	Message   *VoluntaryExit `json:"message"`
	Signature hexutil.Bytes  `json:"signature"`
}

// BeaconBlockBody is the phase0 block body.
type BeaconBlockBody struct {
	RandaoReveal      hexutil.Bytes          `json:"randao_reveal"`
	Eth1Data          *Eth1Data              `json:"eth1_data"`
	Graffiti          hexutil.Bytes          `json:"graffiti"`
	ProposerSlashings []*ProposerSlashing    `json:"proposer_slashings"`
	AttesterSlashings []*AttesterSlashing    `json:"attester_slashings"`
	Attestations      []*Attestation         `json:"attestations"`
	Deposits          []*Deposit             `json:"deposits"`
	VoluntaryExits    []*SignedVoluntaryExit `json:"voluntary_exits"`
}

// BeaconBlock is the full phase0 block carried by BLOCK requests.
type BeaconBlock struct {
	Slot          Quantity         `json:"slot"`
	ProposerIndex Quantity         `json:"proposer_index"`
	ParentRoot    hexutil.Bytes    `json:"parent_root"`
	StateRoot     hexutil.Bytes    `json:"state_root"`
	Body          *BeaconBlockBody `json:"body"`
}

// BeaconBlockV2 is the fork-versioned block payload of BLOCK_V2 requests.
// From Altair on, the signed object is the block header; its root equals
// the block root for full and blinded bodies alike.
type BeaconBlockV2 struct {
	Version     string             `json:"version"`
	BlockHeader *BeaconBlockHeader `json:"block_header"`
}

// AggregateAndProof wraps an aggregate attestation with the aggregator's
// selection proof.
type AggregateAndProof struct {
	AggregatorIndex Quantity      `json:"aggregator_index"`
	Aggregate       *Attestation  `json:"aggregate"`
	SelectionProof  hexutil.Bytes `json:"selection_proof"`
}

// RandaoReveal asks for a signature over an epoch number.
type RandaoReveal struct {
	Epoch Quantity `json:"epoch"`
}

// AggregationSlot asks for a selection proof over a slot number.
type AggregationSlot struct {
	Slot Quantity `json:"slot"`
}

// SyncCommitteeMessage asks for a signature over a beacon block root.
type SyncCommitteeMessage struct {
	BeaconBlockRoot hexutil.Bytes `json:"beacon_block_root"`
	Slot            Quantity      `json:"slot"`
}

// SyncAggregatorSelectionData is the sync-committee selection proof input.
type SyncAggregatorSelectionData struct {
	Slot              Quantity `json:"slot"`
	SubcommitteeIndex Quantity `json:"subcommittee_index"`
}

// SyncCommitteeContribution is an aggregated sync-committee contribution.
type SyncCommitteeContribution struct {
	Slot              Quantity      `json:"slot"`
	BeaconBlockRoot   hexutil.Bytes `json:"beacon_block_root"`
	SubcommitteeIndex Quantity      `json:"subcommittee_index"`
	AggregationBits   hexutil.Bytes `json:"aggregation_bits"`
	Signature         hexutil.Bytes `json:"signature"`
}

// ContributionAndProof wraps a contribution with the aggregator's
// selection proof.
type ContributionAndProof struct {
	AggregatorIndex Quantity                   `json:"aggregator_index"`
	Contribution    *SyncCommitteeContribution `json:"contribution"`
	SelectionProof  hexutil.Bytes              `json:"selection_proof"`
}

// DepositMessage is the unsigned deposit payload. The deposit domain pins
// the genesis fork version; requests may carry it explicitly for
// non-mainnet genesis versions.
type DepositMessage struct {
	Pubkey                hexutil.Bytes `json:"pubkey"`
	WithdrawalCredentials hexutil.Bytes `json:"withdrawal_credentials"`
	Amount                Quantity      `json:"amount"`
	GenesisForkVersion    hexutil.Bytes `json:"genesis_fork_version"`
}

package beacon

import (
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrDecode is returned for malformed or incomplete sign requests.
var ErrDecode = errors.New("beacon: malformed request")

// Kind discriminates the signable message kinds.
type Kind int

// Signable kinds, in the order of the domain table.
const (
	KindBlock Kind = iota
	KindBlockV2
	KindAttestation
	KindRandaoReveal
	KindAggregateAndProof
	KindAggregationSlot
	KindSyncCommitteeMessage
	KindSyncCommitteeSelectionProof
	KindContributionAndProof
	KindVoluntaryExit
	KindDeposit
)

var kindNames = map[string]Kind{
	"BLOCK":                                 KindBlock,
	"BLOCK_V2":                              KindBlockV2,
	"ATTESTATION":                           KindAttestation,
	"RANDAO_REVEAL":                         KindRandaoReveal,
	"AGGREGATE_AND_PROOF":                   KindAggregateAndProof,
	"AGGREGATION_SLOT":                      KindAggregationSlot,
	"SYNC_COMMITTEE_MESSAGE":                KindSyncCommitteeMessage,
	"SYNC_COMMITTEE_SELECTION_PROOF":        KindSyncCommitteeSelectionProof,
	"SYNC_COMMITTEE_CONTRIBUTION_AND_PROOF": KindContributionAndProof,
	"VOLUNTARY_EXIT":                        KindVoluntaryExit,
	"DEPOSIT":                               KindDeposit,
}

func (k Kind) String() string {
	for name, kind := range kindNames {
		if kind == k {
			return name
		}
	}
	return "UNKNOWN"
}

// SignRequest is the JSON envelope posted to the sign endpoint: a type
// discriminator, the fork context, an optional advisory signing root and
// exactly one kind-specific payload.
type SignRequest struct {
	Type        string        `json:"type"`
	ForkInfo    *ForkInfo     `json:"fork_info,omitempty"`
	SigningRoot hexutil.Bytes `json:"signingRoot,omitempty"`

	Block                       *BeaconBlock                 `json:"block,omitempty"`
	BeaconBlock                 *BeaconBlockV2               `json:"beacon_block,omitempty"`
	Attestation                 *AttestationData             `json:"attestation,omitempty"`
	RandaoReveal                *RandaoReveal                `json:"randao_reveal,omitempty"`
	AggregateAndProof           *AggregateAndProof           `json:"aggregate_and_proof,omitempty"`
	AggregationSlot             *AggregationSlot             `json:"aggregation_slot,omitempty"`
	SyncCommitteeMessage        *SyncCommitteeMessage        `json:"sync_committee_message,omitempty"`
	SyncAggregatorSelectionData *SyncAggregatorSelectionData `json:"sync_aggregator_selection_data,omitempty"`
	ContributionAndProof        *ContributionAndProof        `json:"contribution_and_proof,omitempty"`
	VoluntaryExit               *VoluntaryExit               `json:"voluntary_exit,omitempty"`
	Deposit                     *DepositMessage              `json:"deposit,omitempty"`
}

// SignableMessage is the typed result of parsing a sign request. Internal
// code dispatches on Kind and never sees the raw JSON again.
type SignableMessage struct {
	Kind Kind
	Req  *SignRequest
}

// ParseSignRequest decodes the envelope, resolves the kind and checks that
// the kind-specific payload and fork context are present and well formed.
func ParseSignRequest(body []byte) (*SignableMessage, error) {
	var req SignRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, ErrDecode
	}

	kind, ok := kindNames[req.Type]
	if !ok {
		return nil, ErrDecode
	}

	msg := &SignableMessage{Kind: kind, Req: &req}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// validate checks payload presence and the fork context. The deposit kind
// carries its own genesis fork version and needs no fork context.
func (m *SignableMessage) validate() error {
	r := m.Req

	if m.Kind != KindDeposit {
		if r.ForkInfo == nil || r.ForkInfo.Fork == nil {
			return ErrDecode
		}
		if len(r.ForkInfo.Fork.CurrentVersion) != 4 || len(r.ForkInfo.Fork.PreviousVersion) != 4 {
			return ErrDecode
		}
		if len(r.ForkInfo.GenesisValidatorsRoot) != 32 {
			return ErrDecode
		}
	}

	switch m.Kind {
	case KindBlock:
		if r.Block == nil || r.Block.Body == nil {
			return ErrDecode
		}
	case KindBlockV2:
		if r.BeaconBlock == nil || r.BeaconBlock.BlockHeader == nil {
			return ErrDecode
		}
	case KindAttestation:
		if r.Attestation == nil || r.Attestation.Source == nil || r.Attestation.Target == nil {
			return ErrDecode
		}
	case KindRandaoReveal:
		if r.RandaoReveal == nil {
			return ErrDecode
		}
	case KindAggregateAndProof:
		if r.AggregateAndProof == nil || r.AggregateAndProof.Aggregate == nil {
			return ErrDecode
		}
	case KindAggregationSlot:
		if r.AggregationSlot == nil {
			return ErrDecode
		}
	case KindSyncCommitteeMessage:
		if r.SyncCommitteeMessage == nil {
			return ErrDecode
		}
	case KindSyncCommitteeSelectionProof:
		if r.SyncAggregatorSelectionData == nil {
			return ErrDecode
		}
	case KindContributionAndProof:
		if r.ContributionAndProof == nil || r.ContributionAndProof.Contribution == nil {
			return ErrDecode
		}
	case KindVoluntaryExit:
		if r.VoluntaryExit == nil {
			return ErrDecode
		}
	case KindDeposit:
		if r.Deposit == nil {
			return ErrDecode
		}
	}
	return nil
}

// BlockSlot returns the proposal slot when the message is a block kind.
func (m *SignableMessage) BlockSlot() (uint64, bool) {
	switch m.Kind {
	case KindBlock:
		return uint64(m.Req.Block.Slot), true
	case KindBlockV2:
		return uint64(m.Req.BeaconBlock.BlockHeader.Slot), true
	default:
		return 0, false
	}
}

// AttestationEpochs returns the source and target epochs when the message
// is an attestation.
func (m *SignableMessage) AttestationEpochs() (src, tgt uint64, ok bool) {
	if m.Kind != KindAttestation {
		return 0, 0, false
	}
	return uint64(m.Req.Attestation.Source.Epoch), uint64(m.Req.Attestation.Target.Epoch), true
}

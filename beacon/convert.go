package beacon

import (
	"github.com/attestantio/go-eth2-client/spec/altair"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prysmaticlabs/go-bitfield"
)

// Converters from the request containers to the attestantio SSZ types.
// Byte-field lengths are validated here; anything off becomes ErrDecode.

func toRoot(b hexutil.Bytes) (phase0.Root, error) {
	var root phase0.Root
	if len(b) != len(root) {
		return root, ErrDecode
	}
	copy(root[:], b)
	return root, nil
}

func toPubkey(b hexutil.Bytes) (phase0.BLSPubKey, error) {
	var pk phase0.BLSPubKey
	if len(b) != len(pk) {
		return pk, ErrDecode
	}
	copy(pk[:], b)
	return pk, nil
}

func toSignature(b hexutil.Bytes) (phase0.BLSSignature, error) {
	var sig phase0.BLSSignature
	if len(b) != len(sig) {
		return sig, ErrDecode
	}
	copy(sig[:], b)
	return sig, nil
}

func toBytes32(b hexutil.Bytes) ([32]byte, error) {
	var out [32]byte
	if len(b) != len(out) {
		return out, ErrDecode
	}
	copy(out[:], b)
	return out, nil
}

func (c *Checkpoint) toSpec() (*phase0.Checkpoint, error) {
	if c == nil {
		return nil, ErrDecode
	}
	root, err := toRoot(c.Root)
	if err != nil {
		return nil, err
	}
	return &phase0.Checkpoint{
		Epoch: phase0.Epoch(c.Epoch),
		Root:  root,
	}, nil
}

func (a *AttestationData) toSpec() (*phase0.AttestationData, error) {
	if a == nil {
		return nil, ErrDecode
	}
	blockRoot, err := toRoot(a.BeaconBlockRoot)
	if err != nil {
		return nil, err
	}
	source, err := a.Source.toSpec()
	if err != nil {
		return nil, err
	}
	target, err := a.Target.toSpec()
	if err != nil {
		return nil, err
	}
	return &phase0.AttestationData{
		Slot:            phase0.Slot(a.Slot),
		Index:           phase0.CommitteeIndex(a.Index),
		BeaconBlockRoot: blockRoot,
		Source:          source,
		Target:          target,
	}, nil
}

func (h *BeaconBlockHeader) toSpec() (*phase0.BeaconBlockHeader, error) {
	if h == nil {
		return nil, ErrDecode
	}
	parent, err := toRoot(h.ParentRoot)
	if err != nil {
		return nil, err
	}
	state, err := toRoot(h.StateRoot)
	if err != nil {
		return nil, err
	}
	body, err := toRoot(h.BodyRoot)
	if err != nil {
		return nil, err
	}
	return &phase0.BeaconBlockHeader{
		Slot:          phase0.Slot(h.Slot),
		ProposerIndex: phase0.ValidatorIndex(h.ProposerIndex),
		ParentRoot:    parent,
		StateRoot:     state,
		BodyRoot:      body,
	}, nil
}

func (h *SignedBeaconBlockHeader) toSpec() (*phase0.SignedBeaconBlockHeader, error) {
	if h == nil {
		return nil, ErrDecode
	}
	msg, err := h.Message.toSpec()
	if err != nil {
		return nil, err
	}
	sig, err := toSignature(h.Signature)
	if err != nil {
		return nil, err
	}
	return &phase0.SignedBeaconBlockHeader{Message: msg, Signature: sig}, nil
}

func (e *Eth1Data) toSpec() (*phase0.ETH1Data, error) {
	if e == nil {
		return nil, ErrDecode
	}
	depositRoot, err := toRoot(e.DepositRoot)
	if err != nil {
		return nil, err
	}
	if len(e.BlockHash) != 32 {
		return nil, ErrDecode
	}
	return &phase0.ETH1Data{
		DepositRoot:  depositRoot,
		DepositCount: uint64(e.DepositCount),
		BlockHash:    append([]byte(nil), e.BlockHash...),
	}, nil
}

func (p *ProposerSlashing) toSpec() (*phase0.ProposerSlashing, error) {
	if p == nil {
		return nil, ErrDecode
	}
	h1, err := p.SignedHeader1.toSpec()
	if err != nil {
		return nil, err
	}
	h2, err := p.SignedHeader2.toSpec()
	if err != nil {
		return nil, err
	}
	return &phase0.ProposerSlashing{SignedHeader1: h1, SignedHeader2: h2}, nil
}

func (i *IndexedAttestation) toSpec() (*phase0.IndexedAttestation, error) {
	if i == nil {
		return nil, ErrDecode
	}
	data, err := i.Data.toSpec()
	if err != nil {
		return nil, err
	}
	sig, err := toSignature(i.Signature)
	if err != nil {
		return nil, err
	}
	indices := make([]uint64, len(i.AttestingIndices))
	for n, idx := range i.AttestingIndices {
		indices[n] = uint64(idx)
	}
	return &phase0.IndexedAttestation{
		AttestingIndices: indices,
		Data:             data,
		Signature:        sig,
	}, nil
}

func (a *AttesterSlashing) toSpec() (*phase0.AttesterSlashing, error) {
	if a == nil {
		return nil, ErrDecode
	}
	a1, err := a.Attestation1.toSpec()
	if err != nil {
		return nil, err
	}
	a2, err := a.Attestation2.toSpec()
	if err != nil {
		return nil, err
	}
	return &phase0.AttesterSlashing{Attestation1: a1, Attestation2: a2}, nil
}

func (a *Attestation) toSpec() (*phase0.Attestation, error) {
	if a == nil {
		return nil, ErrDecode
	}
	if len(a.AggregationBits) == 0 {
		return nil, ErrDecode
	}
	data, err := a.Data.toSpec()
	if err != nil {
		return nil, err
	}
	sig, err := toSignature(a.Signature)
	if err != nil {
		return nil, err
	}
	return &phase0.Attestation{
		AggregationBits: bitfield.Bitlist(a.AggregationBits),
		Data:            data,
		Signature:       sig,
	}, nil
}

func (d *DepositData) toSpec() (*phase0.DepositData, error) {
	if d == nil {
		return nil, ErrDecode
	}
	pk, err := toPubkey(d.Pubkey)
	if err != nil {
		return nil, err
	}
	if len(d.WithdrawalCredentials) != 32 {
		return nil, ErrDecode
	}
	sig, err := toSignature(d.Signature)
	if err != nil {
		return nil, err
	}
	return &phase0.DepositData{
		PublicKey:             pk,
		WithdrawalCredentials: append([]byte(nil), d.WithdrawalCredentials...),
		Amount:                phase0.Gwei(d.Amount),
		Signature:             sig,
	}, nil
}

func (d *Deposit) toSpec() (*phase0.Deposit, error) {
	if d == nil {
		return nil, ErrDecode
	}
	data, err := d.Data.toSpec()
	if err != nil {
		return nil, err
	}
	proof := make([][]byte, len(d.Proof))
	for n, p := range d.Proof {
		if len(p) != 32 {
			return nil, ErrDecode
		}
		proof[n] = append([]byte(nil), p...)
	}
	return &phase0.Deposit{Proof: proof, Data: data}, nil
}

func (v *VoluntaryExit) toSpec() *phase0.VoluntaryExit {
	return &phase0.VoluntaryExit{
		Epoch:          phase0.Epoch(v.Epoch),
		ValidatorIndex: phase0.ValidatorIndex(v.ValidatorIndex),
	}
}

func (e *SignedVoluntaryExit) toSpec() (*phase0.SignedVoluntaryExit, error) {
	if e == nil || e.Message == nil {
		return nil, ErrDecode
	}
	sig, err := toSignature(e.Signature)
	if err != nil {
		return nil, err
	}
	return &phase0.SignedVoluntaryExit{Message: e.Message.toSpec(), Signature: sig}, nil
}

func (b *BeaconBlockBody) toSpec() (*phase0.BeaconBlockBody, error) {
	if b == nil {
		return nil, ErrDecode
	}
	reveal, err := toSignature(b.RandaoReveal)
	if err != nil {
		return nil, err
	}
	eth1, err := b.Eth1Data.toSpec()
	if err != nil {
		return nil, err
	}
	graffiti, err := toBytes32(b.Graffiti)
	if err != nil {
		return nil, err
	}

	proposerSlashings := make([]*phase0.ProposerSlashing, len(b.ProposerSlashings))
	for n, p := range b.ProposerSlashings {
		if proposerSlashings[n], err = p.toSpec(); err != nil {
			return nil, err
		}
	}
	attesterSlashings := make([]*phase0.AttesterSlashing, len(b.AttesterSlashings))
	for n, a := range b.AttesterSlashings {
		if attesterSlashings[n], err = a.toSpec(); err != nil {
			return nil, err
		}
	}
	attestations := make([]*phase0.Attestation, len(b.Attestations))
	for n, a := range b.Attestations {
		if attestations[n], err = a.toSpec(); err != nil {
			return nil, err
		}
	}
	deposits := make([]*phase0.Deposit, len(b.Deposits))
	for n, d := range b.Deposits {
		if deposits[n], err = d.toSpec(); err != nil {
			return nil, err
		}
	}
	exits := make([]*phase0.SignedVoluntaryExit, len(b.VoluntaryExits))
	for n, e := range b.VoluntaryExits {
		if exits[n], err = e.toSpec(); err != nil {
			return nil, err
		}
	}

	return &phase0.BeaconBlockBody{
		RANDAOReveal:      reveal,
		ETH1Data:          eth1,
		Graffiti:          graffiti,
		ProposerSlashings: proposerSlashings,
		AttesterSlashings: attesterSlashings,
		Attestations:      attestations,
		Deposits:          deposits,
		VoluntaryExits:    exits,
	}, nil
}

func (b *BeaconBlock) toSpec() (*phase0.BeaconBlock, error) {
	if b == nil {
		return nil, ErrDecode
	}
	parent, err := toRoot(b.ParentRoot)
	if err != nil {
		return nil, err
	}
	state, err := toRoot(b.StateRoot)
	if err != nil {
		return nil, err
	}
	body, err := b.Body.toSpec()
	if err != nil {
		return nil, err
	}
	return &phase0.BeaconBlock{
		Slot:          phase0.Slot(b.Slot),
		ProposerIndex: phase0.ValidatorIndex(b.ProposerIndex),
		ParentRoot:    parent,
		StateRoot:     state,
		Body:          body,
	}, nil
}

func (a *AggregateAndProof) toSpec() (*phase0.AggregateAndProof, error) {
	if a == nil {
		return nil, ErrDecode
	}
	agg, err := a.Aggregate.toSpec()
	if err != nil {
		return nil, err
	}
	proof, err := toSignature(a.SelectionProof)
	if err != nil {
		return nil, err
	}
	return &phase0.AggregateAndProof{
		AggregatorIndex: phase0.ValidatorIndex(a.AggregatorIndex),
		Aggregate:       agg,
		SelectionProof:  proof,
	}, nil
}

func (s *SyncAggregatorSelectionData) toSpec() *altair.SyncAggregatorSelectionData {
	return &altair.SyncAggregatorSelectionData{
		Slot:              phase0.Slot(s.Slot),
		SubcommitteeIndex: uint64(s.SubcommitteeIndex),
	}
}

func (c *SyncCommitteeContribution) toSpec() (*altair.SyncCommitteeContribution, error) {
	if c == nil {
		return nil, ErrDecode
	}
	blockRoot, err := toRoot(c.BeaconBlockRoot)
	if err != nil {
		return nil, err
	}
	sig, err := toSignature(c.Signature)
	if err != nil {
		return nil, err
	}
	if len(c.AggregationBits) != 16 {
		return nil, ErrDecode
	}
	return &altair.SyncCommitteeContribution{
		Slot:              phase0.Slot(c.Slot),
		BeaconBlockRoot:   blockRoot,
		SubcommitteeIndex: uint64(c.SubcommitteeIndex),
		AggregationBits:   bitfield.Bitvector128(append([]byte(nil), c.AggregationBits...)),
		Signature:         sig,
	}, nil
}

func (c *ContributionAndProof) toSpec() (*altair.ContributionAndProof, error) {
	if c == nil {
		return nil, ErrDecode
	}
	contribution, err := c.Contribution.toSpec()
	if err != nil {
		return nil, err
	}
	proof, err := toSignature(c.SelectionProof)
	if err != nil {
		return nil, err
	}
	return &altair.ContributionAndProof{
		AggregatorIndex: phase0.ValidatorIndex(c.AggregatorIndex),
		Contribution:    contribution,
		SelectionProof:  proof,
	}, nil
}

func (d *DepositMessage) toSpec() (*phase0.DepositMessage, error) {
	if d == nil {
		return nil, ErrDecode
	}
	pk, err := toPubkey(d.Pubkey)
	if err != nil {
		return nil, err
	}
	if len(d.WithdrawalCredentials) != 32 {
		return nil, ErrDecode
	}
	return &phase0.DepositMessage{
		PublicKey:             pk,
		WithdrawalCredentials: append([]byte(nil), d.WithdrawalCredentials...),
		Amount:                phase0.Gwei(d.Amount),
	}, nil
}

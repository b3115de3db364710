package beacon

// Signing-root computation: kind dispatch over the tagged message, object
// root via the SSZ containers, then domain mixing.

// SigningRoot computes the 32-byte root the validator key signs for this
// message. The schedule resolves fork versions for the block kinds;
// every kind except deposits takes its domain from the request's fork
// context, and deposits use the genesis fork version with a zero genesis
// validators root.
func (m *SignableMessage) SigningRoot(schedule *ForkSchedule) ([32]byte, error) {
	var zero [32]byte

	objectRoot, domain, err := m.objectRootAndDomain(schedule)
	if err != nil {
		return zero, err
	}

	root := ComputeSigningRoot(objectRoot, domain)

	// An advisory signingRoot in the envelope must agree with what the
	// payload hashes to; a mismatch means the caller and the enclave
	// disagree about what is being signed.
	if len(m.Req.SigningRoot) != 0 {
		advisory, err := toBytes32(m.Req.SigningRoot)
		if err != nil {
			return zero, err
		}
		if advisory != root {
			return zero, ErrDecode
		}
	}
	return root, nil
}

func (m *SignableMessage) objectRootAndDomain(schedule *ForkSchedule) (objectRoot, domain [32]byte, err error) {
	r := m.Req

	var forkVersion [4]byte
	var genesisRoot [32]byte
	if m.Kind != KindDeposit {
		copy(forkVersion[:], r.ForkInfo.Fork.CurrentVersion)
		copy(genesisRoot[:], r.ForkInfo.GenesisValidatorsRoot)
	}

	switch m.Kind {
	case KindBlock:
		// A full block body is the phase0 schema; later forks must use
		// the versioned request.
		fork, ok := schedule.ByVersion(forkVersion)
		if !ok || fork != Phase0 {
			return objectRoot, domain, ErrUnknownFork
		}
		block, err := r.Block.toSpec()
		if err != nil {
			return objectRoot, domain, err
		}
		if objectRoot, err = block.HashTreeRoot(); err != nil {
			return objectRoot, domain, ErrDecode
		}
		domain = ComputeDomain(DomainBeaconProposer, forkVersion, genesisRoot)

	case KindBlockV2:
		fork, ok := schedule.ByVersion(forkVersion)
		if !ok {
			return objectRoot, domain, ErrUnknownFork
		}
		named, ok := ForkByName(r.BeaconBlock.Version)
		if !ok || named != fork {
			return objectRoot, domain, ErrUnknownFork
		}
		header, err := r.BeaconBlock.BlockHeader.toSpec()
		if err != nil {
			return objectRoot, domain, err
		}
		if objectRoot, err = header.HashTreeRoot(); err != nil {
			return objectRoot, domain, ErrDecode
		}
		domain = ComputeDomain(DomainBeaconProposer, forkVersion, genesisRoot)

	case KindAttestation:
		data, err := r.Attestation.toSpec()
		if err != nil {
			return objectRoot, domain, err
		}
		if objectRoot, err = data.HashTreeRoot(); err != nil {
			return objectRoot, domain, ErrDecode
		}
		domain = ComputeDomain(DomainBeaconAttester, forkVersion, genesisRoot)

	case KindRandaoReveal:
		objectRoot = uint64Root(uint64(r.RandaoReveal.Epoch))
		domain = ComputeDomain(DomainRandao, forkVersion, genesisRoot)

	case KindAggregateAndProof:
		aap, err := r.AggregateAndProof.toSpec()
		if err != nil {
			return objectRoot, domain, err
		}
		if objectRoot, err = aap.HashTreeRoot(); err != nil {
			return objectRoot, domain, ErrDecode
		}
		domain = ComputeDomain(DomainAggregateAndProof, forkVersion, genesisRoot)

	case KindAggregationSlot:
		objectRoot = uint64Root(uint64(r.AggregationSlot.Slot))
		domain = ComputeDomain(DomainSelectionProof, forkVersion, genesisRoot)

	case KindSyncCommitteeMessage:
		// The object is the block root itself, already a hash tree root.
		objectRoot, err = toBytes32(r.SyncCommitteeMessage.BeaconBlockRoot)
		if err != nil {
			return objectRoot, domain, err
		}
		domain = ComputeDomain(DomainSyncCommittee, forkVersion, genesisRoot)

	case KindSyncCommitteeSelectionProof:
		data := r.SyncAggregatorSelectionData.toSpec()
		if objectRoot, err = data.HashTreeRoot(); err != nil {
			return objectRoot, domain, ErrDecode
		}
		domain = ComputeDomain(DomainSyncCommitteeSelectionProof, forkVersion, genesisRoot)

	case KindContributionAndProof:
		contribution, err := r.ContributionAndProof.toSpec()
		if err != nil {
			return objectRoot, domain, err
		}
		if objectRoot, err = contribution.HashTreeRoot(); err != nil {
			return objectRoot, domain, ErrDecode
		}
		domain = ComputeDomain(DomainContributionAndProof, forkVersion, genesisRoot)

	case KindVoluntaryExit:
		exit := r.VoluntaryExit.toSpec()
		if objectRoot, err = exit.HashTreeRoot(); err != nil {
			return objectRoot, domain, ErrDecode
		}
		domain = ComputeDomain(DomainVoluntaryExit, forkVersion, genesisRoot)

	case KindDeposit:
		msg, err := r.Deposit.toSpec()
		if err != nil {
			return objectRoot, domain, err
		}
		if objectRoot, err = msg.HashTreeRoot(); err != nil {
			return objectRoot, domain, ErrDecode
		}
		// Deposits are domain-separated by the genesis fork version and
		// a zero genesis validators root, independent of the current fork.
		var genesisVersion [4]byte
		if len(r.Deposit.GenesisForkVersion) == 4 {
			copy(genesisVersion[:], r.Deposit.GenesisForkVersion)
		} else if len(r.Deposit.GenesisForkVersion) != 0 {
			return objectRoot, domain, ErrDecode
		}
		domain = ComputeDomain(DomainDeposit, genesisVersion, [32]byte{})

	default:
		return objectRoot, domain, ErrDecode
	}

	return objectRoot, domain, nil
}

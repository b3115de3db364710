// Package beacon computes signing roots for the Ethereum consensus-layer
// messages a validator asks the enclave to sign. Each signable kind pairs
// a 4-byte domain tag with a concrete SSZ container; the signing root is
// hash_tree_root(SigningData{object_root, domain}) per the beacon chain
// spec. Container merkleization is delegated to the attestantio spec
// types; domain mixing is two SHA-256 compressions done in place.
package beacon

import (
	"crypto/sha256"
	"encoding/binary"
)

// DomainType is the 4-byte domain tag of a signable kind.
type DomainType [4]byte

// Domain type constants per the beacon chain specification.
var (
	DomainBeaconProposer              = DomainType{0x00, 0x00, 0x00, 0x00}
	DomainBeaconAttester              = DomainType{0x01, 0x00, 0x00, 0x00}
	DomainRandao                      = DomainType{0x02, 0x00, 0x00, 0x00}
	DomainDeposit                     = DomainType{0x03, 0x00, 0x00, 0x00}
	DomainVoluntaryExit               = DomainType{0x04, 0x00, 0x00, 0x00}
	DomainSelectionProof              = DomainType{0x05, 0x00, 0x00, 0x00}
	DomainAggregateAndProof           = DomainType{0x06, 0x00, 0x00, 0x00}
	DomainSyncCommittee               = DomainType{0x07, 0x00, 0x00, 0x00}
	DomainSyncCommitteeSelectionProof = DomainType{0x08, 0x00, 0x00, 0x00}
	DomainContributionAndProof        = DomainType{0x09, 0x00, 0x00, 0x00}
)

// ComputeDomain computes the 32-byte signing domain:
//
//	domain = domain_type(4) || fork_data_root[:28]
//
// where fork_data_root = hash_tree_root(ForkData{fork_version,
// genesis_validators_root}).
func ComputeDomain(domainType DomainType, forkVersion [4]byte, genesisRoot [32]byte) [32]byte {
	forkDataRoot := computeForkDataRoot(forkVersion, genesisRoot)

	var domain [32]byte
	copy(domain[:4], domainType[:])
	copy(domain[4:], forkDataRoot[:28])
	return domain
}

// computeForkDataRoot computes the hash tree root of the ForkData object.
// SSZ: sha256(fork_version_padded_to_32 || genesis_validators_root).
func computeForkDataRoot(forkVersion [4]byte, genesisRoot [32]byte) [32]byte {
	var versionPadded [32]byte
	copy(versionPadded[:4], forkVersion[:])
	return hashConcat(versionPadded, genesisRoot)
}

// ComputeSigningRoot computes the root validators actually sign:
//
//	signing_root = sha256(object_root || domain)
//
// which is the hash tree root of SigningData{object_root, domain}.
func ComputeSigningRoot(objectRoot, domain [32]byte) [32]byte {
	return hashConcat(objectRoot, domain)
}

// uint64Root is the SSZ hash tree root of a uint64: the value in
// little-endian, zero-padded to a 32-byte leaf.
func uint64Root(v uint64) [32]byte {
	var root [32]byte
	binary.LittleEndian.PutUint64(root[:8], v)
	return root
}

// hashConcat combines two 32-byte values with SHA-256.
func hashConcat(a, b [32]byte) [32]byte {
	var combined [64]byte
	copy(combined[:32], a[:])
	copy(combined[32:], b[:])
	return sha256.Sum256(combined[:])
}

// Package slashing enforces the slashing-protection policy for BLS
// validator keys. For each key it keeps a monotonic record of the highest
// signed block slot and the highest attestation source/target epochs, and
// refuses any request that could pair with an earlier signature into a
// slashable offense. A refusal is a successful outcome, not a failure:
// the record stays untouched and the caller simply does not get a
// signature.
//
// Rules, applied per key as one atomic transition:
//
//   - block: accept iff no slot was recorded or slot > last; set last.
//   - attestation: reject if target <= last target (double vote) or
//     source < last source (surround); otherwise source = max(source,
//     last source) and target = target. Equal source with a higher target
//     stays signable; target must strictly increase.
//
// Accepted transitions are fsynced to sealed storage before the caller
// proceeds to sign, so a crash can only lose signatures, never protection.
package slashing

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"

	pkgerrors "github.com/pkg/errors"

	"github.com/teesigner/teesigner/enclave"
	"github.com/teesigner/teesigner/keystore"
	"github.com/teesigner/teesigner/log"
)

// recordDir is the directory under the storage root holding one record
// file per public key.
const recordDir = "slash_protection"

// recordSize is the encoded record length: a presence bitmask byte plus
// three little-endian u64 fields.
const recordSize = 1 + 3*8

// Presence bits in the record bitmask.
const (
	hasBlockSlot = 1 << iota
	hasSourceEpoch
	hasTargetEpoch
)

var (
	// ErrSlashableBlock is returned when a proposal would not strictly
	// increase the recorded slot.
	ErrSlashableBlock = errors.New("slashing: block proposal refused")

	// ErrSlashableAttestation is returned when an attestation could be a
	// double vote or surround vote against the record.
	ErrSlashableAttestation = errors.New("slashing: attestation refused")

	// ErrCorruptRecord is returned when a stored record cannot be
	// decoded; the key is unusable until the operator intervenes.
	ErrCorruptRecord = errors.New("slashing: corrupt record")
)

// Record is the per-key protection state. Nil fields mean "never signed".
type Record struct {
	BlockSlot   *uint64
	SourceEpoch *uint64
	TargetEpoch *uint64
}

// DB is the process-wide slashing-protection database. It exclusively
// owns the records on disk; all access goes through check-and-commit.
type DB struct {
	root   string
	sealer enclave.Sealer
	log    *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open initializes the record directory under root.
func Open(root string, sealer enclave.Sealer) (*DB, error) {
	if err := os.MkdirAll(filepath.Join(root, recordDir), 0o700); err != nil {
		return nil, pkgerrors.Wrap(keystore.ErrStorage, err.Error())
	}
	return &DB{
		root:   root,
		sealer: sealer,
		log:    log.Default().Module("slashing"),
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// keyLock returns the exclusive lock serializing all transitions for one
// public key. Requests on distinct keys proceed in parallel.
func (db *DB) keyLock(pkHex string) *sync.Mutex {
	db.mu.Lock()
	defer db.mu.Unlock()
	l, ok := db.locks[pkHex]
	if !ok {
		l = &sync.Mutex{}
		db.locks[pkHex] = l
	}
	return l
}

// CheckAndCommitBlock admits a block proposal at slot for pkHex and
// records it, or refuses with ErrSlashableBlock. The record is durable
// before return.
func (db *DB) CheckAndCommitBlock(pkHex string, slot uint64) error {
	pk, err := keystore.NormalizeBLSPubkeyHex(pkHex)
	if err != nil {
		return err
	}

	l := db.keyLock(pk)
	l.Lock()
	defer l.Unlock()

	rec, err := db.load(pk)
	if err != nil {
		return err
	}

	if rec.BlockSlot != nil && slot <= *rec.BlockSlot {
		db.log.Warn("refused block proposal", "pubkey", "0x"+pk, "slot", slot, "last_slot", *rec.BlockSlot)
		return ErrSlashableBlock
	}

	rec.BlockSlot = &slot
	return db.store(pk, rec)
}

// CheckAndCommitAttestation admits an attestation vote (src, tgt) for
// pkHex and records it, or refuses with ErrSlashableAttestation. Both
// epoch bounds move in the same durable write.
func (db *DB) CheckAndCommitAttestation(pkHex string, src, tgt uint64) error {
	pk, err := keystore.NormalizeBLSPubkeyHex(pkHex)
	if err != nil {
		return err
	}

	l := db.keyLock(pk)
	l.Lock()
	defer l.Unlock()

	rec, err := db.load(pk)
	if err != nil {
		return err
	}

	// Non-increasing target: a second vote for an already-used target
	// epoch, or an attempt to vote into the past.
	if rec.TargetEpoch != nil && tgt <= *rec.TargetEpoch {
		db.log.Warn("refused attestation", "pubkey", "0x"+pk, "target", tgt, "last_target", *rec.TargetEpoch)
		return ErrSlashableAttestation
	}
	// Decreasing source: the new vote would surround a recorded one.
	if rec.SourceEpoch != nil && src < *rec.SourceEpoch {
		db.log.Warn("refused attestation", "pubkey", "0x"+pk, "source", src, "last_source", *rec.SourceEpoch)
		return ErrSlashableAttestation
	}

	newSrc := src
	if rec.SourceEpoch != nil && *rec.SourceEpoch > newSrc {
		newSrc = *rec.SourceEpoch
	}
	rec.SourceEpoch = &newSrc
	rec.TargetEpoch = &tgt
	return db.store(pk, rec)
}

// GetRecord returns a copy of the protection record for pkHex. A key that
// has never signed returns an empty record.
func (db *DB) GetRecord(pkHex string) (Record, error) {
	pk, err := keystore.NormalizeBLSPubkeyHex(pkHex)
	if err != nil {
		return Record{}, err
	}

	l := db.keyLock(pk)
	l.Lock()
	defer l.Unlock()
	return db.load(pk)
}

// load reads and unseals the record for pk. Missing file means Fresh.
// Callers hold the key lock.
func (db *DB) load(pk string) (Record, error) {
	sealed, err := os.ReadFile(db.path(pk))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, nil
		}
		return Record{}, pkgerrors.Wrap(keystore.ErrStorage, err.Error())
	}

	raw, err := db.sealer.Unseal(sealed)
	if err != nil {
		return Record{}, ErrCorruptRecord
	}
	return decodeRecord(raw)
}

// store seals and durably writes the record for pk. Callers hold the key
// lock.
func (db *DB) store(pk string, rec Record) error {
	sealed, err := db.sealer.Seal(encodeRecord(rec))
	if err != nil {
		return pkgerrors.Wrap(keystore.ErrStorage, err.Error())
	}
	if err := enclave.WriteFileAtomic(db.path(pk), sealed, 0o600); err != nil {
		return pkgerrors.Wrap(keystore.ErrStorage, err.Error())
	}
	return nil
}

func (db *DB) path(pk string) string {
	return filepath.Join(db.root, recordDir, pk)
}

// encodeRecord packs the record as bitmask || slot || source || target,
// absent fields zero.
func encodeRecord(rec Record) []byte {
	out := make([]byte, recordSize)
	if rec.BlockSlot != nil {
		out[0] |= hasBlockSlot
		binary.LittleEndian.PutUint64(out[1:9], *rec.BlockSlot)
	}
	if rec.SourceEpoch != nil {
		out[0] |= hasSourceEpoch
		binary.LittleEndian.PutUint64(out[9:17], *rec.SourceEpoch)
	}
	if rec.TargetEpoch != nil {
		out[0] |= hasTargetEpoch
		binary.LittleEndian.PutUint64(out[17:25], *rec.TargetEpoch)
	}
	return out
}

func decodeRecord(raw []byte) (Record, error) {
	if len(raw) != recordSize {
		return Record{}, ErrCorruptRecord
	}
	var rec Record
	if raw[0]&hasBlockSlot != 0 {
		v := binary.LittleEndian.Uint64(raw[1:9])
		rec.BlockSlot = &v
	}
	if raw[0]&hasSourceEpoch != 0 {
		v := binary.LittleEndian.Uint64(raw[9:17])
		rec.SourceEpoch = &v
	}
	if raw[0]&hasTargetEpoch != 0 {
		v := binary.LittleEndian.Uint64(raw[17:25])
		rec.TargetEpoch = &v
	}
	return rec, nil
}

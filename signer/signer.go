// Package signer is the signing pipeline: it turns a validated sign
// request into a BLS signature, with the slashing-protection gate between
// root computation and key use. For each key, check and commit run under
// the slashing database's per-key lock; signing happens after that lock
// is released, so concurrent requests on one key are not serialized
// through the signing step. A commit that was persisted stays in force
// even when the caller goes away before the signature is delivered.
package signer

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/teesigner/teesigner/beacon"
	"github.com/teesigner/teesigner/crypto"
	"github.com/teesigner/teesigner/keystore"
	"github.com/teesigner/teesigner/log"
	"github.com/teesigner/teesigner/slashing"
)

// DefaultTimeout is the soft upper bound on one signing operation.
const DefaultTimeout = time.Second

var (
	// ErrSign is returned when signature generation fails for a request
	// that passed every precondition.
	ErrSign = errors.New("signer: signing failed")

	// ErrTimeout is returned when a signing operation exceeds its soft
	// deadline. A slashing commit that already happened remains in force.
	ErrTimeout = errors.New("signer: timed out")
)

// Signer dispatches sign requests across the key store, the SSZ/domain
// encoder and the slashing database.
type Signer struct {
	keys     *keystore.Store
	db       *slashing.DB
	schedule *beacon.ForkSchedule
	timeout  time.Duration
	log      *log.Logger
}

// New returns a Signer. A zero timeout selects DefaultTimeout.
func New(keys *keystore.Store, db *slashing.DB, schedule *beacon.ForkSchedule, timeout time.Duration) *Signer {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Signer{
		keys:     keys,
		db:       db,
		schedule: schedule,
		timeout:  timeout,
		log:      log.Default().Module("signer"),
	}
}

// Sign parses body, enforces slashing protection for the slashable kinds
// and returns the signature as a 0x-prefixed 192-hex-digit string.
//
// Error priority: unknown key, then decode failures, then slashing
// refusals, then signing failures.
func (s *Signer) Sign(ctx context.Context, pkHex string, body []byte) (string, error) {
	pk, err := keystore.NormalizeBLSPubkeyHex(pkHex)
	if err != nil {
		return "", err
	}
	if !s.keys.HasBLS(pk) {
		return "", keystore.ErrUnknownKey
	}

	msg, err := beacon.ParseSignRequest(body)
	if err != nil {
		return "", err
	}

	root, err := msg.SigningRoot(s.schedule)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Slashing gate. Only proposals and attestations are slashable; the
	// other kinds sign unconditionally.
	if slot, ok := msg.BlockSlot(); ok {
		if err := s.db.CheckAndCommitBlock(pk, slot); err != nil {
			return "", err
		}
	} else if src, tgt, ok := msg.AttestationEpochs(); ok {
		if err := s.db.CheckAndCommitAttestation(pk, src, tgt); err != nil {
			return "", err
		}
	}

	// The commit above is durable. From here on a deadline aborts the
	// response, never the record.
	if ctx.Err() != nil {
		return "", ErrTimeout
	}

	sec, err := s.keys.LoadBLS(pk)
	if err != nil {
		return "", err
	}
	defer sec.Destroy()

	raw, err := sec.Bytes()
	if err != nil {
		return "", ErrSign
	}
	sig, err := crypto.BLSSign(raw, root[:])
	if err != nil {
		return "", ErrSign
	}

	// Refuse to emit anything that does not verify under the claimed
	// key; a mismatch here means corrupted key material.
	pkBytes, err := hex.DecodeString(pk)
	if err != nil || !crypto.BLSVerify(pkBytes, root[:], sig) {
		return "", ErrSign
	}

	if ctx.Err() != nil {
		return "", ErrTimeout
	}

	s.log.Info("signed", "pubkey", "0x"+pk, "kind", msg.Kind.String())
	return "0x" + hex.EncodeToString(sig), nil
}

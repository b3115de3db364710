package attest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/teesigner/teesigner/crypto"
	"github.com/teesigner/teesigner/enclave"
	"github.com/teesigner/teesigner/keystore"
)

func newTestStore(t *testing.T) *keystore.Store {
	t.Helper()
	root := t.TempDir()
	sealer, err := enclave.NewAESGCMSealer(enclave.NewFileMeasurement(root))
	if err != nil {
		t.Fatalf("NewAESGCMSealer: %v", err)
	}
	s, err := keystore.Open(root, sealer)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestAttest_Dummy(t *testing.T) {
	keys := newTestStore(t)
	a := New(keys, NewDummyQuoter())

	pkHex, err := keys.GenerateSecp256k1()
	if err != nil {
		t.Fatalf("GenerateSecp256k1: %v", err)
	}

	ev, err := a.Attest(pkHex)
	if err != nil {
		t.Fatalf("Attest: %v", err)
	}
	if ev.QuoteType != "dummy" {
		t.Fatalf("quote type = %s, want dummy", ev.QuoteType)
	}

	// Report data = SHA256(compressed pk) || 0^32.
	pkBytes, err := hex.DecodeString(pkHex)
	if err != nil {
		t.Fatalf("decode pk hex: %v", err)
	}
	digest := sha256.Sum256(pkBytes)

	reportData, err := hex.DecodeString(ev.ReportData)
	if err != nil {
		t.Fatalf("decode report data: %v", err)
	}
	if len(reportData) != ReportDataSize {
		t.Fatalf("report data length = %d, want %d", len(reportData), ReportDataSize)
	}
	if !bytes.Equal(reportData[:32], digest[:]) {
		t.Fatalf("report data prefix is not SHA256(pk)")
	}
	if !bytes.Equal(reportData[32:], make([]byte, 32)) {
		t.Fatalf("report data suffix is not zero padding")
	}
}

func TestAttest_UnknownKey(t *testing.T) {
	keys := newTestStore(t)
	a := New(keys, NewDummyQuoter())

	prv, err := crypto.GenerateEthKey()
	if err != nil {
		t.Fatalf("GenerateEthKey: %v", err)
	}
	_, err = a.Attest(crypto.CompressEthPubkeyHex(&prv.PublicKey))
	if !errors.Is(err, keystore.ErrUnknownKey) {
		t.Fatalf("err = %v, want ErrUnknownKey", err)
	}
}

func TestDecryptFor(t *testing.T) {
	keys := newTestStore(t)
	a := New(keys, NewDummyQuoter())

	pkHex, err := keys.GenerateSecp256k1()
	if err != nil {
		t.Fatalf("GenerateSecp256k1: %v", err)
	}
	pub, err := crypto.ParseEthPubkeyHex(pkHex)
	if err != nil {
		t.Fatalf("ParseEthPubkeyHex: %v", err)
	}

	plain := []byte("imported scalar payload")
	ct, err := crypto.ECIESEncrypt(pub, plain)
	if err != nil {
		t.Fatalf("ECIESEncrypt: %v", err)
	}

	got, err := a.DecryptFor(pkHex, ct)
	if err != nil {
		t.Fatalf("DecryptFor: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip mismatch")
	}
}

func TestDummyQuoter_Deterministic(t *testing.T) {
	q := NewDummyQuoter()
	var rd [ReportDataSize]byte
	rd[0] = 0x42

	q1, err := q.Quote(rd)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	q2, err := q.Quote(rd)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !bytes.Equal(q1, q2) {
		t.Fatalf("dummy quotes differ for equal report data")
	}
}

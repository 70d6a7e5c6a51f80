package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
)

func testKeypair(t *testing.T, fill byte) *Keypair {
	t.Helper()
	seed := bytes.Repeat([]byte{fill}, ed25519.SeedSize)
	kp, err := KeypairFromBytes(ed25519.NewKeyFromSeed(seed))
	if err != nil {
		t.Fatalf("KeypairFromBytes: %v", err)
	}
	return kp
}

func testBlockhash() string {
	return base58.Encode(bytes.Repeat([]byte{7}, 32))
}

func TestSOLToLamports(t *testing.T) {
	cases := []struct {
		sol  float64
		want uint64
	}{
		{0, 0},
		{1, LamportsPerSOL},
		{0.015, 15_000_000},
		{0.005, 5_000_000},
		{0.1 + 0.2, 300_000_000},
		{0.0000000019, 1},
		{0.0000000001, 0},
	}
	for _, tc := range cases {
		got, err := SOLToLamports(tc.sol)
		if err != nil {
			t.Errorf("SOLToLamports(%v): %v", tc.sol, err)
			continue
		}
		if got != tc.want {
			t.Errorf("SOLToLamports(%v) = %d, want %d", tc.sol, got, tc.want)
		}
	}

	if _, err := SOLToLamports(-1); err == nil {
		t.Error("expected error for negative amount")
	}
	if _, err := SOLToLamports(1e30); err == nil {
		t.Error("expected overflow error")
	}
}

func TestBuildTransferTransaction_Layout(t *testing.T) {
	payer := testKeypair(t, 1)
	a := testKeypair(t, 2).PublicKey()
	b := testKeypair(t, 3).PublicKey()

	tx, err := BuildTransferTransaction(payer, testBlockhash(), []Transfer{
		{To: a, Lamports: 15_000_000},
		{To: b, Lamports: 16_000_000},
	})
	if err != nil {
		t.Fatalf("BuildTransferTransaction: %v", err)
	}

	raw := tx.Raw
	if raw[0] != 1 {
		t.Fatalf("expected 1 signature, got %d", raw[0])
	}
	sig := raw[1:65]
	msg := raw[65:]

	if base58.Encode(sig) != tx.Signature {
		t.Error("signature field does not match serialized signature")
	}
	pub := payer.PublicKey()
	if !ed25519.Verify(pub[:], msg, sig) {
		t.Fatal("signature does not verify over message")
	}

	if !bytes.Equal(msg[:3], []byte{1, 0, 1}) {
		t.Errorf("unexpected header %v", msg[:3])
	}
	if msg[3] != 4 {
		t.Fatalf("expected 4 account keys, got %d", msg[3])
	}

	keys := msg[4 : 4+4*32]
	if !bytes.Equal(keys[0:32], pub[:]) {
		t.Error("payer must be the first account")
	}
	if !bytes.Equal(keys[32:64], a[:]) || !bytes.Equal(keys[64:96], b[:]) {
		t.Error("destinations must follow the payer in order")
	}
	if !bytes.Equal(keys[96:128], SystemProgramID[:]) {
		t.Error("system program must be last")
	}

	off := 4 + 4*32
	if !bytes.Equal(msg[off:off+32], bytes.Repeat([]byte{7}, 32)) {
		t.Error("recent blockhash not embedded")
	}
	off += 32

	if msg[off] != 2 {
		t.Fatalf("expected 2 instructions, got %d", msg[off])
	}
	off++

	for i, want := range []struct {
		dest     byte
		lamports uint64
	}{{1, 15_000_000}, {2, 16_000_000}} {
		ix := msg[off : off+1+1+2+1+12]
		if ix[0] != 3 {
			t.Errorf("instruction %d: program index %d, want 3", i, ix[0])
		}
		if ix[1] != 2 || ix[2] != 0 || ix[3] != want.dest {
			t.Errorf("instruction %d: accounts %v", i, ix[1:4])
		}
		if ix[4] != 12 {
			t.Errorf("instruction %d: data length %d", i, ix[4])
		}
		if binary.LittleEndian.Uint32(ix[5:9]) != 2 {
			t.Errorf("instruction %d: not a transfer", i)
		}
		if got := binary.LittleEndian.Uint64(ix[9:17]); got != want.lamports {
			t.Errorf("instruction %d: lamports %d, want %d", i, got, want.lamports)
		}
		off += len(ix)
	}

	if off != len(msg) {
		t.Errorf("trailing bytes in message: %d", len(msg)-off)
	}
}

func TestBuildTransferTransaction_SameDestinationDeduped(t *testing.T) {
	payer := testKeypair(t, 1)
	dest := testKeypair(t, 2).PublicKey()

	tx, err := BuildTransferTransaction(payer, testBlockhash(), []Transfer{
		{To: dest, Lamports: 1},
		{To: dest, Lamports: 2},
	})
	if err != nil {
		t.Fatalf("BuildTransferTransaction: %v", err)
	}
	if msg := tx.Raw[65:]; msg[3] != 3 {
		t.Errorf("expected 3 account keys after dedupe, got %d", msg[3])
	}
}

func TestBuildTransferTransaction_Invalid(t *testing.T) {
	payer := testKeypair(t, 1)
	dest := testKeypair(t, 2).PublicKey()

	if _, err := BuildTransferTransaction(payer, testBlockhash(), nil); err == nil {
		t.Error("expected error for empty transfers")
	}
	if _, err := BuildTransferTransaction(payer, "bad!", []Transfer{{To: dest}}); err == nil {
		t.Error("expected error for malformed blockhash")
	}
	if _, err := BuildTransferTransaction(payer, testBlockhash(), []Transfer{{To: SystemProgramID}}); err == nil {
		t.Error("expected error for system program destination")
	}
	if _, err := BuildTransferTransaction(nil, testBlockhash(), []Transfer{{To: dest}}); err == nil {
		t.Error("expected error for missing payer")
	}
}

func TestAppendCompactU16(t *testing.T) {
	cases := map[int][]byte{
		0:      {0x00},
		0x7f:   {0x7f},
		0x80:   {0x80, 0x01},
		0x3fff: {0xff, 0x7f},
		0x4000: {0x80, 0x80, 0x01},
	}
	for n, want := range cases {
		if got := appendCompactU16(nil, n); !bytes.Equal(got, want) {
			t.Errorf("appendCompactU16(%#x) = %x, want %x", n, got, want)
		}
	}
}

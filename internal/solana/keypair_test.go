package solana

import (
	"crypto/ed25519"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestKeypair_RoundTripFile(t *testing.T) {
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	path := filepath.Join(t.TempDir(), "platform.json")
	if err := kp.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected 0600, got %v", info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(data), "[") {
		t.Errorf("expected JSON array, got %q", data[:10])
	}

	loaded, err := LoadKeypairFile(path)
	if err != nil {
		t.Fatalf("LoadKeypairFile: %v", err)
	}
	if loaded.PublicKey() != kp.PublicKey() {
		t.Error("loaded keypair has a different public key")
	}
	if !loaded.PublicKey().IsOnCurve() {
		t.Error("generated public key should be on curve")
	}
}

func TestKeypairFromBytes_MatchesStdlibDerivation(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	priv := ed25519.NewKeyFromSeed(seed)

	kp, err := KeypairFromBytes(priv)
	if err != nil {
		t.Fatalf("KeypairFromBytes: %v", err)
	}

	msg := []byte("payout")
	if !ed25519.Verify(priv.Public().(ed25519.PublicKey), msg, kp.Sign(msg)) {
		t.Error("signature does not verify")
	}
}

func TestKeypairFromBytes_Mismatch(t *testing.T) {
	priv := ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
	tampered := make([]byte, len(priv))
	copy(tampered, priv)
	tampered[63] ^= 0xff

	if _, err := KeypairFromBytes(tampered); !errors.Is(err, ErrInvalidKeypair) {
		t.Fatalf("expected ErrInvalidKeypair, got %v", err)
	}
	if _, err := KeypairFromBytes(priv[:32]); !errors.Is(err, ErrInvalidKeypair) {
		t.Fatalf("expected ErrInvalidKeypair for short key, got %v", err)
	}
}

func TestParseKeypairJSON_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":     "hello",
		"object":       `{"a":1}`,
		"out of range": "[256" + strings.Repeat(",0", 63) + "]",
		"wrong length": "[1,2,3]",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseKeypairJSON([]byte(input)); !errors.Is(err, ErrInvalidKeypair) {
				t.Errorf("expected ErrInvalidKeypair, got %v", err)
			}
		})
	}
}

func TestParsePublicKey(t *testing.T) {
	pk, err := ParsePublicKey("11111111111111111111111111111111")
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	if pk != SystemProgramID {
		t.Error("expected system program id")
	}
	if pk.String() != "11111111111111111111111111111111" {
		t.Errorf("unexpected string form %s", pk.String())
	}

	if _, err := ParsePublicKey("0OIl"); err == nil {
		t.Error("expected error for non-base58 input")
	}
	if _, err := ParsePublicKey("3yZe7d"); err == nil {
		t.Error("expected error for short address")
	}
}

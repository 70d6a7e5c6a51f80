package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PublicKeySize is the length of a Solana account address in bytes.
const PublicKeySize = 32

// ErrInvalidKeypair is returned when key material is malformed or inconsistent.
var ErrInvalidKeypair = errors.New("invalid keypair")

// PublicKey is a 32-byte Solana account address.
type PublicKey [PublicKeySize]byte

// SystemProgramID is the address of the native System Program.
var SystemProgramID = PublicKey{}

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return pk, fmt.Errorf("decode base58 address: %w", err)
	}
	if len(raw) != PublicKeySize {
		return pk, fmt.Errorf("address must be %d bytes, got %d", PublicKeySize, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// String returns the base58 form of the address.
func (p PublicKey) String() string {
	return base58.Encode(p[:])
}

// IsOnCurve reports whether the address is a valid ed25519 point.
// Program derived addresses are deliberately off the curve.
func (p PublicKey) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(p[:])
	return err == nil
}

// Keypair is an ed25519 signing key in the Solana 64-byte layout (seed || public key).
type Keypair struct {
	priv ed25519.PrivateKey
}

// GenerateKeypair creates a new random keypair.
func GenerateKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

// KeypairFromBytes validates a 64-byte secret key.
// The trailing public key must be the one derived from the seed.
func KeypairFromBytes(secret []byte) (*Keypair, error) {
	if len(secret) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: secret key must be %d bytes, got %d", ErrInvalidKeypair, ed25519.PrivateKeySize, len(secret))
	}

	derived, err := derivePublicKey(secret[:ed25519.SeedSize])
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(derived, secret[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("%w: public key does not match seed", ErrInvalidKeypair)
	}

	priv := make(ed25519.PrivateKey, ed25519.PrivateKeySize)
	copy(priv, secret)
	return &Keypair{priv: priv}, nil
}

// ParseKeypairJSON decodes the JSON array-of-numbers format written by solana-keygen.
func ParseKeypairJSON(data []byte) (*Keypair, error) {
	var nums []int
	if err := json.Unmarshal(bytes.TrimSpace(data), &nums); err != nil {
		return nil, fmt.Errorf("%w: expected JSON array of numbers: %v", ErrInvalidKeypair, err)
	}

	secret := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range: %d", ErrInvalidKeypair, i, n)
		}
		secret[i] = byte(n)
	}
	return KeypairFromBytes(secret)
}

// LoadKeypairFile reads a keypair file in solana-keygen JSON format.
func LoadKeypairFile(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair file: %w", err)
	}
	return ParseKeypairJSON(data)
}

// PublicKey returns the keypair's address.
func (k *Keypair) PublicKey() PublicKey {
	var pk PublicKey
	copy(pk[:], k.priv[ed25519.SeedSize:])
	return pk
}

// Sign signs message with the private key.
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.priv, message)
}

// MarshalJSON encodes the secret key as a JSON array of numbers.
func (k *Keypair) MarshalJSON() ([]byte, error) {
	nums := make([]int, len(k.priv))
	for i, b := range k.priv {
		nums[i] = int(b)
	}
	return json.Marshal(nums)
}

// WriteFile stores the keypair at path with owner-only permissions.
func (k *Keypair) WriteFile(path string) error {
	data, err := k.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode keypair: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write keypair file: %w", err)
	}
	return nil
}

// derivePublicKey computes A = s·B for the clamped scalar of SHA-512(seed).
func derivePublicKey(seed []byte) ([]byte, error) {
	h := sha512.Sum512(seed)
	s, err := edwards25519.NewScalar().SetBytesWithClamping(h[:32])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	return new(edwards25519.Point).ScalarBaseMult(s).Bytes(), nil
}

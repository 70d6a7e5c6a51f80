package solana

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// systemTransferIndex is the System Program instruction index of Transfer.
const systemTransferIndex = 2

var lamportsPerSOL = decimal.New(1, 9)

// SOLToLamports converts a SOL amount to lamports, rounding down.
func SOLToLamports(sol float64) (uint64, error) {
	if math.IsNaN(sol) || math.IsInf(sol, 0) || sol < 0 {
		return 0, fmt.Errorf("invalid SOL amount %v", sol)
	}
	lamports := decimal.NewFromFloat(sol).Mul(lamportsPerSOL).Floor()
	if lamports.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, fmt.Errorf("SOL amount %v overflows lamports", sol)
	}
	return uint64(lamports.IntPart()), nil
}

// Transfer is one System Program transfer from the fee payer.
type Transfer struct {
	To       PublicKey
	Lamports uint64
}

// SignedTransaction is a serialized legacy transaction ready for sendTransaction.
type SignedTransaction struct {
	Raw       []byte
	Signature string // base58, the transaction id
}

// BuildTransferTransaction builds and signs one legacy transaction holding every
// transfer. The payer funds all transfers and the fee; either all land or none.
func BuildTransferTransaction(payer *Keypair, recentBlockhash string, transfers []Transfer) (*SignedTransaction, error) {
	if payer == nil {
		return nil, errors.New("payer keypair is required")
	}
	if len(transfers) == 0 {
		return nil, errors.New("at least one transfer is required")
	}

	blockhash, err := base58.Decode(recentBlockhash)
	if err != nil {
		return nil, fmt.Errorf("decode blockhash: %w", err)
	}
	if len(blockhash) != 32 {
		return nil, fmt.Errorf("blockhash must be 32 bytes, got %d", len(blockhash))
	}

	message, err := compileTransferMessage(payer.PublicKey(), blockhash, transfers)
	if err != nil {
		return nil, err
	}

	sig := payer.Sign(message)

	raw := make([]byte, 0, 1+len(sig)+len(message))
	raw = appendCompactU16(raw, 1)
	raw = append(raw, sig...)
	raw = append(raw, message...)

	return &SignedTransaction{Raw: raw, Signature: base58.Encode(sig)}, nil
}

// compileTransferMessage lays out account keys as
// [payer (signer, writable), destinations (writable), system program (readonly)].
func compileTransferMessage(payer PublicKey, blockhash []byte, transfers []Transfer) ([]byte, error) {
	keys := []PublicKey{payer}
	index := map[PublicKey]int{payer: 0}

	for _, t := range transfers {
		if t.To == SystemProgramID {
			return nil, errors.New("cannot transfer to the system program")
		}
		if _, ok := index[t.To]; !ok {
			index[t.To] = len(keys)
			keys = append(keys, t.To)
		}
	}
	programIndex := len(keys)
	keys = append(keys, SystemProgramID)

	if len(keys) > math.MaxUint8 {
		return nil, errors.New("too many accounts")
	}

	msg := []byte{
		1, // required signatures
		0, // readonly signed accounts
		1, // readonly unsigned accounts: the system program
	}

	msg = appendCompactU16(msg, len(keys))
	for _, k := range keys {
		msg = append(msg, k[:]...)
	}
	msg = append(msg, blockhash...)

	msg = appendCompactU16(msg, len(transfers))
	for _, t := range transfers {
		data := make([]byte, 12)
		binary.LittleEndian.PutUint32(data[0:4], systemTransferIndex)
		binary.LittleEndian.PutUint64(data[4:12], t.Lamports)

		msg = append(msg, byte(programIndex))
		msg = appendCompactU16(msg, 2)
		msg = append(msg, 0, byte(index[t.To]))
		msg = appendCompactU16(msg, len(data))
		msg = append(msg, data...)
	}

	return msg, nil
}

// appendCompactU16 appends n in Solana's shortvec encoding.
func appendCompactU16(b []byte, n int) []byte {
	for {
		elem := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			return append(b, elem)
		}
		b = append(b, elem|0x80)
	}
}

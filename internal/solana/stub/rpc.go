package stub

import (
	"context"
	"sync"

	"github.com/mr-tron/base58"

	"tip-ledger/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
// Sent transactions land with ConfirmAs status unless a hook overrides it.
type RPCClient struct {
	mu sync.Mutex

	Blockhash            string
	LastValidBlockHeight uint64
	BlockHeight          uint64
	Balance              uint64

	// ConfirmAs is the status every sent signature reports. Empty leaves it unknown.
	ConfirmAs solana.Commitment
	// OnChainErr, when non-nil, is reported as the landed transaction's error.
	OnChainErr interface{}

	BlockhashErr error
	SendErr      error
	StatusErr    error

	Sent     [][]byte
	statuses map[string]*solana.SignatureStatus
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a stub that confirms every transaction it receives.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Blockhash:            base58.Encode(make([]byte, 32)),
		LastValidBlockHeight: 1000,
		BlockHeight:          900,
		ConfirmAs:            solana.CommitmentConfirmed,
		statuses:             make(map[string]*solana.SignatureStatus),
	}
}

// GetLatestBlockhash returns the configured blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context, _ solana.Commitment) (*solana.LatestBlockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.BlockhashErr != nil {
		return nil, c.BlockhashErr
	}
	return &solana.LatestBlockhash{Blockhash: c.Blockhash, LastValidBlockHeight: c.LastValidBlockHeight}, nil
}

// SendTransaction records tx and returns the signature embedded in it.
func (c *RPCClient) SendTransaction(_ context.Context, tx []byte, _ solana.SendOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return "", c.SendErr
	}

	raw := make([]byte, len(tx))
	copy(raw, tx)
	c.Sent = append(c.Sent, raw)

	// Single-signer layout: compact length byte, then the 64-byte signature.
	sig := base58.Encode(tx[1:65])
	if c.ConfirmAs != "" {
		c.statuses[sig] = &solana.SignatureStatus{
			Slot:               42,
			Err:                c.OnChainErr,
			ConfirmationStatus: c.ConfirmAs,
		}
	}
	return sig, nil
}

// GetSignatureStatuses reports the statuses recorded by SendTransaction.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.StatusErr != nil {
		return nil, c.StatusErr
	}
	out := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		out[i] = c.statuses[sig]
	}
	return out, nil
}

// GetBlockHeight returns the configured block height.
func (c *RPCClient) GetBlockHeight(_ context.Context, _ solana.Commitment) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.BlockHeight, nil
}

// GetBalance returns the configured balance.
func (c *RPCClient) GetBalance(_ context.Context, _ string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Balance, nil
}

// SetBlockHeight moves the chain forward.
func (c *RPCClient) SetBlockHeight(h uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BlockHeight = h
}

// SentCount returns the number of transactions submitted so far.
func (c *RPCClient) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}

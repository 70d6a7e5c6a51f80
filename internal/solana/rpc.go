package solana

import "context"

// RPCClient defines the Solana RPC HTTP calls used to submit and confirm payouts.
type RPCClient interface {
	// GetLatestBlockhash returns a recent blockhash and the last block height at which it is valid.
	GetLatestBlockhash(ctx context.Context, commitment Commitment) (*LatestBlockhash, error)

	// SendTransaction submits a signed, serialized transaction and returns its signature.
	SendTransaction(ctx context.Context, tx []byte, opts SendOptions) (string, error)

	// GetSignatureStatuses returns one status per signature; unknown signatures yield nil entries.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)

	// GetBlockHeight returns the current block height at the given commitment.
	GetBlockHeight(ctx context.Context, commitment Commitment) (uint64, error)

	// GetBalance returns the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)
}

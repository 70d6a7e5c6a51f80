package payout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"tip-ledger/internal/solana"
)

// DefaultConfirmTimeout bounds the wait for confirmation after sending.
const DefaultConfirmTimeout = 60 * time.Second

// Options configures SolanaSubmitter.
type Options struct {
	RPC   solana.RPCClient
	Payer *solana.Keypair

	// Confirmer defaults to a PollingConfirmer over RPC.
	Confirmer Confirmer
	// ConfirmTimeout defaults to DefaultConfirmTimeout.
	ConfirmTimeout time.Duration
	// Commitment defaults to confirmed.
	Commitment solana.Commitment
	Logger     *log.Logger
}

// SolanaSubmitter pays both cashback legs from the platform wallet in a
// single legacy transaction with two System Program transfers.
type SolanaSubmitter struct {
	rpc            solana.RPCClient
	payer          *solana.Keypair
	confirmer      Confirmer
	confirmTimeout time.Duration
	commitment     solana.Commitment
	logger         *log.Logger
}

// Compile-time interface check.
var _ Submitter = (*SolanaSubmitter)(nil)

// NewSolanaSubmitter validates opts and fills defaults.
func NewSolanaSubmitter(opts Options) (*SolanaSubmitter, error) {
	if opts.RPC == nil {
		return nil, errors.New("payout: RPC client is required")
	}
	if opts.Payer == nil {
		return nil, errors.New("payout: payer keypair is required")
	}

	s := &SolanaSubmitter{
		rpc:            opts.RPC,
		payer:          opts.Payer,
		confirmer:      opts.Confirmer,
		confirmTimeout: opts.ConfirmTimeout,
		commitment:     opts.Commitment,
		logger:         opts.Logger,
	}
	if s.commitment == "" {
		s.commitment = solana.CommitmentConfirmed
	}
	if s.confirmTimeout <= 0 {
		s.confirmTimeout = DefaultConfirmTimeout
	}
	if s.confirmer == nil {
		s.confirmer = NewPollingConfirmer(opts.RPC, DefaultPollInterval, s.commitment)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}
	return s, nil
}

// PlatformWallet returns the base58 address paying the rewards.
func (s *SolanaSubmitter) PlatformWallet() string {
	return s.payer.PublicKey().String()
}

// SubmitDualPayout builds, signs, sends and confirms the payout transaction.
func (s *SolanaSubmitter) SubmitDualPayout(ctx context.Context, destA string, amountA float64, destB string, amountB float64) (string, error) {
	transfers, err := s.transfers(destA, amountA, destB, amountB)
	if err != nil {
		return "", &Error{Stage: StageBuild, Err: err}
	}

	bh, err := s.rpc.GetLatestBlockhash(ctx, s.commitment)
	if err != nil {
		return "", &Error{Stage: StageBlockhash, Err: err}
	}

	tx, err := solana.BuildTransferTransaction(s.payer, bh.Blockhash, transfers)
	if err != nil {
		return "", &Error{Stage: StageBuild, Err: err}
	}

	signature, err := s.rpc.SendTransaction(ctx, tx.Raw, solana.SendOptions{
		PreflightCommitment: s.commitment,
	})
	if err != nil {
		return "", &Error{Stage: StageSend, Signature: tx.Signature, Err: err}
	}
	if signature != tx.Signature {
		s.logger.Printf("node returned signature %s, expected %s", signature, tx.Signature)
	}

	s.logger.Printf("sent payout %s (%d + %d lamports), waiting for %s",
		signature, transfers[0].Lamports, transfers[1].Lamports, s.commitment)

	confirmCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	if err := s.confirmer.Confirm(confirmCtx, signature, bh.LastValidBlockHeight); err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			return "", pe
		}
		return "", &Error{Stage: StageConfirm, Signature: signature, Err: err}
	}

	return signature, nil
}

func (s *SolanaSubmitter) transfers(destA string, amountA float64, destB string, amountB float64) ([]solana.Transfer, error) {
	legs := []struct {
		dest   string
		amount float64
	}{{destA, amountA}, {destB, amountB}}

	transfers := make([]solana.Transfer, 0, len(legs))
	for _, leg := range legs {
		to, err := solana.ParsePublicKey(leg.dest)
		if err != nil {
			return nil, fmt.Errorf("destination %q: %w", leg.dest, err)
		}
		if !to.IsOnCurve() {
			// Program derived address; no key can ever sign for these funds.
			s.logger.Printf("WARN: payout destination %s is off the ed25519 curve", leg.dest)
		}
		lamports, err := solana.SOLToLamports(leg.amount)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, solana.Transfer{To: to, Lamports: lamports})
	}
	return transfers, nil
}

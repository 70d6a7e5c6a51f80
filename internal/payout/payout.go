// Package payout submits platform-funded cashback transfers.
package payout

import (
	"context"
	"fmt"
)

// Submitter pays amountA SOL to destA and amountB SOL to destB as one atomic
// transaction and returns its signature once it reached confirmed commitment.
// Failures are returned as *Error.
type Submitter interface {
	SubmitDualPayout(ctx context.Context, destA string, amountA float64, destB string, amountB float64) (string, error)
}

// Stage names the step of a payout that failed.
type Stage string

const (
	StageBuild     Stage = "build"     // bad destination, amount or transaction layout
	StageBlockhash Stage = "blockhash" // could not fetch a recent blockhash
	StageSend      Stage = "send"      // rejected by the RPC node or preflight
	StageConfirm   Stage = "confirm"   // confirmation could not be observed
	StageTimeout   Stage = "timeout"   // not confirmed within the confirmation timeout
	StageExpired   Stage = "expired"   // blockhash expired before the transaction landed
	StageOnChain   Stage = "onchain"   // landed but failed on-chain
)

// Error is a failed payout.
// Signature is set when the transaction was sent; for StageTimeout it may still land.
type Error struct {
	Stage     Stage
	Signature string
	Err       error
}

func (e *Error) Error() string {
	if e.Signature != "" {
		return fmt.Sprintf("payout %s failed (signature %s): %v", e.Stage, e.Signature, e.Err)
	}
	return fmt.Sprintf("payout %s failed: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

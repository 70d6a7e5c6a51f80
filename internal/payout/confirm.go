package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tip-ledger/internal/solana"
)

// DefaultPollInterval is how often the polling confirmer checks signature status.
const DefaultPollInterval = 500 * time.Millisecond

// Confirmer waits until a sent transaction reaches the target commitment.
// It returns nil on success and *Error otherwise. The caller bounds ctx.
type Confirmer interface {
	Confirm(ctx context.Context, signature string, lastValidBlockHeight uint64) error
}

// PollingConfirmer confirms by polling getSignatureStatuses, checking the
// block height against lastValidBlockHeight to detect expiry.
type PollingConfirmer struct {
	rpc        solana.RPCClient
	interval   time.Duration
	commitment solana.Commitment
}

// NewPollingConfirmer creates a confirmer that waits for commitment.
func NewPollingConfirmer(rpc solana.RPCClient, interval time.Duration, commitment solana.Commitment) *PollingConfirmer {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if commitment == "" {
		commitment = solana.CommitmentConfirmed
	}
	return &PollingConfirmer{rpc: rpc, interval: interval, commitment: commitment}
}

// Confirm polls until the signature is confirmed, fails, expires, or ctx ends.
func (c *PollingConfirmer) Confirm(ctx context.Context, signature string, lastValidBlockHeight uint64) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	var lastErr error
	for {
		done, err := c.check(ctx, signature, lastValidBlockHeight)
		if done {
			return err
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return timeoutError(signature, ctx.Err(), lastErr)
		case <-ticker.C:
		}
	}
}

// check reports done=true with a nil error once confirmed, or with *Error on a
// terminal failure. Transient RPC errors come back with done=false.
func (c *PollingConfirmer) check(ctx context.Context, signature string, lastValidBlockHeight uint64) (bool, error) {
	done, err := c.checkStatus(ctx, signature)
	if done || err != nil {
		return done, err
	}

	height, err := c.rpc.GetBlockHeight(ctx, c.commitment)
	if err != nil {
		return false, fmt.Errorf("get block height: %w", err)
	}
	if height <= lastValidBlockHeight {
		return false, nil
	}

	// It may have landed between the two calls.
	if done, err := c.checkStatus(ctx, signature); done || err != nil {
		return done, err
	}
	return true, &Error{
		Stage:     StageExpired,
		Signature: signature,
		Err:       fmt.Errorf("block height %d passed last valid height %d", height, lastValidBlockHeight),
	}
}

func (c *PollingConfirmer) checkStatus(ctx context.Context, signature string) (bool, error) {
	statuses, err := c.rpc.GetSignatureStatuses(ctx, []string{signature})
	if err != nil {
		return false, fmt.Errorf("get signature status: %w", err)
	}
	if len(statuses) == 0 || statuses[0] == nil {
		return false, nil
	}

	status := statuses[0]
	if status.Failed() {
		return true, &Error{
			Stage:     StageOnChain,
			Signature: signature,
			Err:       fmt.Errorf("transaction error: %v", status.Err),
		}
	}
	return status.Reached(c.commitment), nil
}

// WSConfirmer waits for a signatureSubscribe notification while the polling
// confirmer keeps checking expiry at a slower pace. If the subscription cannot
// be opened or is lost, polling alone finishes the job.
type WSConfirmer struct {
	ws         solana.WSClient
	poll       *PollingConfirmer
	commitment solana.Commitment
}

// NewWSConfirmer creates a websocket confirmer backed by poll.
func NewWSConfirmer(ws solana.WSClient, poll *PollingConfirmer) *WSConfirmer {
	return &WSConfirmer{ws: ws, poll: poll, commitment: poll.commitment}
}

// Confirm waits for the notification, a terminal poll result, or ctx end.
func (c *WSConfirmer) Confirm(ctx context.Context, signature string, lastValidBlockHeight uint64) error {
	notifications, err := c.ws.SubscribeSignature(ctx, signature, c.commitment)
	if err != nil {
		if ctx.Err() != nil {
			return timeoutError(signature, ctx.Err(), err)
		}
		return c.poll.Confirm(ctx, signature, lastValidBlockHeight)
	}

	ticker := time.NewTicker(c.poll.interval * 4)
	defer ticker.Stop()

	var lastErr error
	for {
		select {
		case n, ok := <-notifications:
			if !ok {
				return c.poll.Confirm(ctx, signature, lastValidBlockHeight)
			}
			if n.Err != nil {
				return &Error{
					Stage:     StageOnChain,
					Signature: signature,
					Err:       fmt.Errorf("transaction error: %v", n.Err),
				}
			}
			return nil
		case <-ticker.C:
			done, err := c.poll.check(ctx, signature, lastValidBlockHeight)
			if done {
				return err
			}
			if err != nil {
				lastErr = err
			}
		case <-ctx.Done():
			return timeoutError(signature, ctx.Err(), lastErr)
		}
	}
}

func timeoutError(signature string, ctxErr, lastErr error) *Error {
	stage := StageTimeout
	if !errors.Is(ctxErr, context.DeadlineExceeded) {
		stage = StageConfirm
	}
	err := ctxErr
	if lastErr != nil {
		err = fmt.Errorf("%w (last error: %v)", ctxErr, lastErr)
	}
	return &Error{Stage: stage, Signature: signature, Err: err}
}

package payout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tip-ledger/internal/solana"
	solstub "tip-ledger/internal/solana/stub"
)

// fakeWS hands out a channel the test controls.
type fakeWS struct {
	ch  chan solana.SignatureNotification
	err error
}

func (f *fakeWS) SubscribeSignature(context.Context, string, solana.Commitment) (<-chan solana.SignatureNotification, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ch, nil
}

func (f *fakeWS) Close() error { return nil }

func sentSignature(t *testing.T, rpc *solstub.RPCClient) string {
	t.Helper()
	payer, err := solana.GenerateKeypair()
	require.NoError(t, err)
	dest, err := solana.GenerateKeypair()
	require.NoError(t, err)

	tx, err := solana.BuildTransferTransaction(payer, rpc.Blockhash, []solana.Transfer{{To: dest.PublicKey(), Lamports: 1}})
	require.NoError(t, err)
	sig, err := rpc.SendTransaction(context.Background(), tx.Raw, solana.SendOptions{})
	require.NoError(t, err)
	return sig
}

func TestPollingConfirmer_FinalizedCountsAsConfirmed(t *testing.T) {
	rpc := solstub.NewRPCClient()
	rpc.ConfirmAs = solana.CommitmentFinalized
	sig := sentSignature(t, rpc)

	c := NewPollingConfirmer(rpc, time.Millisecond, "")
	assert.NoError(t, c.Confirm(context.Background(), sig, 1000))
}

func TestPollingConfirmer_CancelledContext(t *testing.T) {
	rpc := solstub.NewRPCClient()
	rpc.ConfirmAs = ""

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewPollingConfirmer(rpc, time.Millisecond, "").Confirm(ctx, "unknown", 1000)
	requireStage(t, err, StageConfirm)
}

func TestPollingConfirmer_TransientErrorsReported(t *testing.T) {
	rpc := solstub.NewRPCClient()
	rpc.StatusErr = errors.New("connection reset")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := NewPollingConfirmer(rpc, 5*time.Millisecond, "").Confirm(ctx, "sig", 1000)
	pe := requireStage(t, err, StageTimeout)
	assert.Contains(t, pe.Error(), "connection reset")
}

func TestWSConfirmer_Notification(t *testing.T) {
	rpc := solstub.NewRPCClient()
	rpc.ConfirmAs = ""
	ws := &fakeWS{ch: make(chan solana.SignatureNotification, 1)}
	ws.ch <- solana.SignatureNotification{Signature: "sig", Slot: 7}
	close(ws.ch)

	c := NewWSConfirmer(ws, NewPollingConfirmer(rpc, time.Second, ""))
	assert.NoError(t, c.Confirm(context.Background(), "sig", 1000))
}

func TestWSConfirmer_OnChainError(t *testing.T) {
	rpc := solstub.NewRPCClient()
	ws := &fakeWS{ch: make(chan solana.SignatureNotification, 1)}
	ws.ch <- solana.SignatureNotification{Signature: "sig", Err: "InsufficientFundsForRent"}

	c := NewWSConfirmer(ws, NewPollingConfirmer(rpc, time.Second, ""))
	requireStage(t, c.Confirm(context.Background(), "sig", 1000), StageOnChain)
}

func TestWSConfirmer_FallsBackToPolling(t *testing.T) {
	rpc := solstub.NewRPCClient()
	sig := sentSignature(t, rpc)

	poll := NewPollingConfirmer(rpc, time.Millisecond, "")

	t.Run("subscribe error", func(t *testing.T) {
		c := NewWSConfirmer(&fakeWS{err: errors.New("dial failed")}, poll)
		assert.NoError(t, c.Confirm(context.Background(), sig, 1000))
	})

	t.Run("subscription lost", func(t *testing.T) {
		ch := make(chan solana.SignatureNotification)
		close(ch)
		c := NewWSConfirmer(&fakeWS{ch: ch}, poll)
		assert.NoError(t, c.Confirm(context.Background(), sig, 1000))
	})
}

func TestWSConfirmer_ExpiryDetectedByPolling(t *testing.T) {
	rpc := solstub.NewRPCClient()
	rpc.ConfirmAs = ""
	rpc.SetBlockHeight(2000)

	ws := &fakeWS{ch: make(chan solana.SignatureNotification)}
	c := NewWSConfirmer(ws, NewPollingConfirmer(rpc, time.Millisecond, ""))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	requireStage(t, c.Confirm(ctx, "sig", 1000), StageExpired)
}

// Package stub provides an in-process payout.Submitter for tests.
package stub

import (
	"context"
	"fmt"
	"sync"

	"tip-ledger/internal/payout"
)

// Call records one SubmitDualPayout invocation.
type Call struct {
	DestA   string
	AmountA float64
	DestB   string
	AmountB float64
}

// Submitter implements payout.Submitter. By default every payout succeeds
// with signature "payout-<n>". Fail makes every payout fail at that stage.
type Submitter struct {
	mu    sync.Mutex
	calls []Call

	Fail payout.Stage
	// Hook, when set, replaces the default behavior.
	Hook func(ctx context.Context, c Call) (string, error)
}

// Compile-time interface check.
var _ payout.Submitter = (*Submitter)(nil)

// NewSubmitter creates a succeeding submitter.
func NewSubmitter() *Submitter {
	return &Submitter{}
}

// SubmitDualPayout records the call and returns the configured result.
func (s *Submitter) SubmitDualPayout(ctx context.Context, destA string, amountA float64, destB string, amountB float64) (string, error) {
	c := Call{DestA: destA, AmountA: amountA, DestB: destB, AmountB: amountB}

	s.mu.Lock()
	s.calls = append(s.calls, c)
	n := len(s.calls)
	fail := s.Fail
	hook := s.Hook
	s.mu.Unlock()

	if hook != nil {
		return hook(ctx, c)
	}
	if fail != "" {
		return "", &payout.Error{Stage: fail, Err: fmt.Errorf("stub failure")}
	}
	return fmt.Sprintf("payout-%d", n), nil
}

// Calls returns a copy of the recorded calls.
func (s *Submitter) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

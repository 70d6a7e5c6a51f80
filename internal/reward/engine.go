package reward

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strings"
	"time"

	"tip-ledger/internal/domain"
	"tip-ledger/internal/observability"
	"tip-ledger/internal/payout"
	"tip-ledger/internal/storage"
)

// DefaultSinkTimeout bounds one analytics mirror write.
const DefaultSinkTimeout = 5 * time.Second

// MaxTipSOL caps a single claimed tip. Summed over any realistic ledger it keeps
// totals finite and every amount convertible to lamports.
const MaxTipSOL = 1_000_000

// TipRequest is a claimed tip submitted by a client.
type TipRequest struct {
	SupporterWallet string
	CreatorWallet   string
	AmountSOL       float64
	TxSignature     string
}

// Validate checks the request before anything touches the ledger.
func (r TipRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.SupporterWallet) == "":
		return &ValidationError{Field: "supporterWallet", Reason: "required"}
	case strings.TrimSpace(r.CreatorWallet) == "":
		return &ValidationError{Field: "creatorWallet", Reason: "required"}
	case strings.TrimSpace(r.TxSignature) == "":
		return &ValidationError{Field: "txSignature", Reason: "required"}
	case math.IsNaN(r.AmountSOL) || math.IsInf(r.AmountSOL, 0):
		return &ValidationError{Field: "amountSol", Reason: "must be finite"}
	case r.AmountSOL <= 0:
		return &ValidationError{Field: "amountSol", Reason: "must be positive"}
	case r.AmountSOL > MaxTipSOL:
		return &ValidationError{Field: "amountSol", Reason: fmt.Sprintf("must not exceed %d SOL", MaxTipSOL)}
	}
	return nil
}

// TipResult is what RecordTip reports for a recorded tip.
type TipResult struct {
	Tip      *domain.Tip
	TipCount int64 // pair count including this tip
	Outcome  Outcome
}

// Options configures Engine.
type Options struct {
	Store     storage.LedgerStore
	Submitter payout.Submitter

	// Sink mirrors committed rows. Optional.
	Sink        storage.LedgerEventSink
	SinkTimeout time.Duration

	// Policy defaults to DefaultPolicy.
	Policy *Policy
	Logger *log.Logger
	Now    func() time.Time
}

// Engine records tips and pays the loyalty reward when one is due.
type Engine struct {
	store       storage.LedgerStore
	submitter   payout.Submitter
	sink        storage.LedgerEventSink
	sinkTimeout time.Duration
	policy      Policy
	logger      *log.Logger
	now         func() time.Time
}

// NewEngine creates an engine. Store and Submitter are required.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("reward: ledger store is required")
	}
	if opts.Submitter == nil {
		return nil, errors.New("reward: payout submitter is required")
	}

	e := &Engine{
		store:       opts.Store,
		submitter:   opts.Submitter,
		sink:        opts.Sink,
		sinkTimeout: opts.SinkTimeout,
		policy:      DefaultPolicy(),
		logger:      opts.Logger,
		now:         opts.Now,
	}
	if opts.Policy != nil {
		e.policy = *opts.Policy
	}
	if e.sinkTimeout <= 0 {
		e.sinkTimeout = DefaultSinkTimeout
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard, "", 0)
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// Policy returns the active reward policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// RecordTip inserts the tip and evaluates the reward exactly once for it.
//
// Insert, count and window read happen under the pair lock, so every count
// value is observed by exactly one call. The payout runs after the lock is
// released and is not cancelled when ctx is: once a payout starts, its outcome
// is always recorded.
func (e *Engine) RecordTip(ctx context.Context, req TipRequest) (*TipResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	pair := domain.Pair{Supporter: req.SupporterWallet, Creator: req.CreatorWallet}

	var (
		tip    *domain.Tip
		count  int64
		window []*domain.Tip
	)
	err := e.store.WithPairLock(ctx, pair, func(l storage.PairLedger) error {
		var err error
		tip, err = l.InsertTip(ctx, pair.Supporter, pair.Creator, req.AmountSOL, req.TxSignature)
		if err != nil {
			return &StoreError{Op: "insert tip", Err: err}
		}
		count, err = l.CountTips(ctx, pair.Supporter, pair.Creator)
		if err != nil {
			return &StoreError{Op: "count tips", Err: err}
		}
		if e.policy.RewardDue(count) {
			window, err = l.LastNTips(ctx, pair.Supporter, pair.Creator, TriggerInterval)
			if err != nil {
				return &StoreError{Op: "read reward window", Err: err}
			}
		}
		return nil
	})
	if err != nil {
		var se *StoreError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, &StoreError{Op: "pair lock", Err: err}
	}

	observability.RecordTip(tip.AmountSOL)
	detached := context.WithoutCancel(ctx)
	e.mirror(detached, "tip", func(ctx context.Context) error { return e.sink.RecordTip(ctx, tip) })

	result := &TipResult{Tip: tip, TipCount: count}
	if window == nil {
		result.Outcome = NoRewardDue()
	} else {
		result.Outcome = e.payReward(detached, pair, window)
	}
	observability.RecordRewardOutcome(result.Outcome.Kind.String())
	return result, nil
}

func (e *Engine) payReward(ctx context.Context, pair domain.Pair, window []*domain.Tip) Outcome {
	amounts := e.policy.Compute(window)

	start := e.now()
	signature, err := e.submitter.SubmitDualPayout(ctx, pair.Supporter, amounts.Supporter, pair.Creator, amounts.Creator)
	elapsed := e.now().Sub(start).Seconds()
	if err != nil {
		stage := "unknown"
		var pe *payout.Error
		if errors.As(err, &pe) {
			stage = string(pe.Stage)
		}
		observability.RecordPayout(stage, elapsed, 0, 0)
		e.logger.Printf("payout for %s -> %s failed at %s: %v", pair.Supporter, pair.Creator, stage, err)
		return RewardFailed(err.Error())
	}
	observability.RecordPayout("", elapsed, amounts.Supporter+amounts.Creator, e.now().Unix())

	reward, err := e.store.InsertReward(ctx, &domain.Reward{
		SupporterWallet:    pair.Supporter,
		CreatorWallet:      pair.Creator,
		SupporterAmountSOL: amounts.Supporter,
		CreatorAmountSOL:   amounts.Creator,
		TotalTipsAmountSOL: amounts.Base,
		TxSignature:        signature,
	})
	if err != nil {
		// The transfer is on-chain; the signature is all that is left to reconcile with.
		e.logger.Printf("ERROR: payout %s confirmed but reward row not recorded (supporter=%s creator=%s amount=%v each): %v",
			signature, pair.Supporter, pair.Creator, amounts.Supporter, err)
		return RewardFailed("reward confirmed on-chain but not recorded: " + err.Error())
	}
	e.mirror(ctx, "reward", func(ctx context.Context) error { return e.sink.RecordReward(ctx, reward) })

	total := reward.SupporterAmountSOL
	totals, err := e.store.RewardTotals(ctx, pair.Supporter)
	if err != nil {
		e.logger.Printf("reward totals for %s unavailable: %v", pair.Supporter, err)
	} else {
		total = totals.TotalAmountSOL
	}

	e.logger.Printf("paid %v SOL to %s and %s (window %v SOL, tx %s)",
		amounts.Supporter, pair.Supporter, pair.Creator, amounts.Base, signature)
	return RewardPaid(&RewardDetail{Reward: reward, TotalCashbackEarned: total})
}

// mirror writes to the analytics sink, if any. Failures are logged and counted only.
func (e *Engine) mirror(ctx context.Context, event string, write func(context.Context) error) {
	if e.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, e.sinkTimeout)
	defer cancel()
	if err := write(ctx); err != nil {
		observability.RecordSinkError(event)
		e.logger.Printf("mirror %s: %v", event, err)
	}
}

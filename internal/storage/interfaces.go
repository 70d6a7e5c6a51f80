package storage

import (
	"context"

	"tip-ledger/internal/domain"
)

// PairLedger is the slice of the ledger available inside a pair-serialized section.
// Everything done through it for one WithPairLock call commits together.
type PairLedger interface {
	// InsertTip appends a tip, assigning its ID and Timestamp.
	InsertTip(ctx context.Context, supporter, creator string, amountSOL float64, txSignature string) (*domain.Tip, error)

	// CountTips returns the number of tips recorded for the exact pair.
	CountTips(ctx context.Context, supporter, creator string) (int64, error)

	// LastNTips returns the n most recently inserted tips for the pair, ordered by ID DESC.
	// Insertion order is authoritative even when timestamps disagree with it.
	LastNTips(ctx context.Context, supporter, creator string, n int) ([]*domain.Tip, error)
}

// LedgerReader provides the read and aggregate queries over tips and rewards.
type LedgerReader interface {
	// CountTips returns the number of tips recorded for the exact pair.
	CountTips(ctx context.Context, supporter, creator string) (int64, error)

	// LastNTips returns the n most recently inserted tips for the pair, ordered by ID DESC.
	LastNTips(ctx context.Context, supporter, creator string, n int) ([]*domain.Tip, error)

	// TipTotals returns count and summed amount of every tip sent by supporter.
	TipTotals(ctx context.Context, supporter string) (*domain.TipTotals, error)

	// RewardTotals returns the summed supporter-side cashback for supporter.
	RewardTotals(ctx context.Context, supporter string) (*domain.RewardTotals, error)

	// RewardsByCreatorForSupporter returns supporter-side cashback sums keyed by creator wallet.
	RewardsByCreatorForSupporter(ctx context.Context, supporter string) (map[string]float64, error)

	// TipsByCreatorForSupporter groups the supporter's tips by creator,
	// ordered by tip count DESC, total amount DESC, creator wallet ASC.
	TipsByCreatorForSupporter(ctx context.Context, supporter string) ([]*domain.CreatorTipSummary, error)

	// RecentTips returns up to limit tips sent by supporter, ordered by timestamp DESC, ID DESC.
	RecentTips(ctx context.Context, supporter string, limit int) ([]*domain.Tip, error)

	// RecentTipsToCreator returns up to limit tips received by creator, ordered by timestamp DESC, ID DESC.
	RecentTipsToCreator(ctx context.Context, creator string, limit int) ([]*domain.Tip, error)

	// RewardHistory returns every reward of supporter, ordered by timestamp DESC, ID DESC.
	RewardHistory(ctx context.Context, supporter string) ([]*domain.Reward, error)
}

// LedgerStore is the append-only store of tips and rewards.
// There are no update or delete operations. Tips are only written through
// WithPairLock, so insert, count and decide for a pair never interleave.
type LedgerStore interface {
	LedgerReader

	// InsertReward appends a reward, assigning its ID and Timestamp. Input is not modified.
	InsertReward(ctx context.Context, r *domain.Reward) (*domain.Reward, error)

	// WithPairLock runs fn with exclusive access to the pair's tip stream.
	// Concurrent calls for the same pair are serialized; different pairs may proceed in parallel.
	// Writes made through the PairLedger are committed only if fn returns nil.
	WithPairLock(ctx context.Context, pair domain.Pair, fn func(PairLedger) error) error

	// ReadSnapshot runs fn against a consistent snapshot of the ledger.
	// No row written concurrently is observed half-way.
	ReadSnapshot(ctx context.Context, fn func(LedgerReader) error) error

	// Close releases backend resources.
	Close() error
}

// LedgerEventSink receives committed ledger rows for analytics.
// Sinks are best-effort: the ledger stays the source of truth.
type LedgerEventSink interface {
	RecordTip(ctx context.Context, t *domain.Tip) error
	RecordReward(ctx context.Context, r *domain.Reward) error
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tip-ledger/internal/domain"
	"tip-ledger/internal/storage"
)

// LedgerStore is an in-memory implementation of storage.LedgerStore.
type LedgerStore struct {
	mu           sync.RWMutex
	tips         []*domain.Tip
	rewards      []*domain.Reward
	nextTipID    int64
	nextRewardID int64
	closed       bool

	locks *pairLocks
	now   func() time.Time
}

// Option configures LedgerStore.
type Option func(*LedgerStore)

// WithClock overrides the clock used to stamp rows.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerStore) {
		s.now = now
	}
}

// NewLedgerStore creates a new in-memory ledger store.
func NewLedgerStore(opts ...Option) *LedgerStore {
	s := &LedgerStore{
		locks: newPairLocks(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

// newTipLocked assigns ID and timestamp. Caller holds s.mu.
func (s *LedgerStore) newTipLocked(supporter, creator string, amountSOL float64, txSignature string) *domain.Tip {
	s.nextTipID++
	return &domain.Tip{
		ID:              s.nextTipID,
		SupporterWallet: supporter,
		CreatorWallet:   creator,
		AmountSOL:       amountSOL,
		Timestamp:       s.now().UnixMilli(),
		TxSignature:     txSignature,
	}
}

// InsertReward appends a reward, assigning its ID and Timestamp.
func (s *LedgerStore) InsertReward(_ context.Context, r *domain.Reward) (*domain.Reward, error) {
	if err := storage.ValidateRewardInput(r); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, storage.ErrClosed
	}

	s.nextRewardID++
	stored := *r
	stored.ID = s.nextRewardID
	stored.Timestamp = s.now().UnixMilli()
	s.rewards = append(s.rewards, &stored)

	copy := stored
	return &copy, nil
}

// WithPairLock runs fn with exclusive access to the pair's tip stream.
// Tips inserted inside fn become visible to other callers only after fn returns nil.
func (s *LedgerStore) WithPairLock(ctx context.Context, pair domain.Pair, fn func(storage.PairLedger) error) error {
	if pair.Supporter == "" || pair.Creator == "" {
		return storage.ErrInvalidInput
	}

	unlock, err := s.locks.lock(ctx, pair.Key())
	if err != nil {
		return err
	}
	defer unlock()

	pl := &pairLedger{store: s}
	if err := fn(pl); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	s.tips = append(s.tips, pl.staged...)
	return nil
}

// ReadSnapshot runs fn while holding the read lock, so fn sees no concurrent writes.
func (s *LedgerStore) ReadSnapshot(_ context.Context, fn func(storage.LedgerReader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return storage.ErrClosed
	}
	return fn(snapshot{store: s})
}

// Close marks the store closed.
func (s *LedgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// CountTips returns the number of tips recorded for the exact pair.
func (s *LedgerStore) CountTips(ctx context.Context, supporter, creator string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{store: s}.CountTips(ctx, supporter, creator)
}

// LastNTips returns the n most recently inserted tips for the pair, ordered by ID DESC.
func (s *LedgerStore) LastNTips(ctx context.Context, supporter, creator string, n int) ([]*domain.Tip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{store: s}.LastNTips(ctx, supporter, creator, n)
}

// TipTotals returns count and summed amount of every tip sent by supporter.
func (s *LedgerStore) TipTotals(ctx context.Context, supporter string) (*domain.TipTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{store: s}.TipTotals(ctx, supporter)
}

// RewardTotals returns the summed supporter-side cashback for supporter.
func (s *LedgerStore) RewardTotals(ctx context.Context, supporter string) (*domain.RewardTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{store: s}.RewardTotals(ctx, supporter)
}

// RewardsByCreatorForSupporter returns supporter-side cashback sums keyed by creator.
func (s *LedgerStore) RewardsByCreatorForSupporter(ctx context.Context, supporter string) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{store: s}.RewardsByCreatorForSupporter(ctx, supporter)
}

// TipsByCreatorForSupporter groups the supporter's tips by creator.
func (s *LedgerStore) TipsByCreatorForSupporter(ctx context.Context, supporter string) ([]*domain.CreatorTipSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{store: s}.TipsByCreatorForSupporter(ctx, supporter)
}

// RecentTips returns up to limit tips sent by supporter, newest first.
func (s *LedgerStore) RecentTips(ctx context.Context, supporter string, limit int) ([]*domain.Tip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{store: s}.RecentTips(ctx, supporter, limit)
}

// RecentTipsToCreator returns up to limit tips received by creator, newest first.
func (s *LedgerStore) RecentTipsToCreator(ctx context.Context, creator string, limit int) ([]*domain.Tip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{store: s}.RecentTipsToCreator(ctx, creator, limit)
}

// RewardHistory returns every reward of supporter, newest first.
func (s *LedgerStore) RewardHistory(ctx context.Context, supporter string) ([]*domain.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{store: s}.RewardHistory(ctx, supporter)
}

// snapshot reads store state without locking. The caller holds s.mu.
type snapshot struct {
	store *LedgerStore
}

var _ storage.LedgerReader = snapshot{}

func (v snapshot) CountTips(_ context.Context, supporter, creator string) (int64, error) {
	var n int64
	for _, t := range v.store.tips {
		if t.SupporterWallet == supporter && t.CreatorWallet == creator {
			n++
		}
	}
	return n, nil
}

func (v snapshot) LastNTips(_ context.Context, supporter, creator string, n int) ([]*domain.Tip, error) {
	if err := storage.ValidateLimit(n); err != nil {
		return nil, err
	}
	var result []*domain.Tip
	for _, t := range v.store.tips {
		if t.SupporterWallet == supporter && t.CreatorWallet == creator {
			copy := *t
			result = append(result, &copy)
		}
	}
	return lastByID(result, n), nil
}

func (v snapshot) TipTotals(_ context.Context, supporter string) (*domain.TipTotals, error) {
	totals := &domain.TipTotals{}
	for _, t := range v.store.tips {
		if t.SupporterWallet == supporter {
			totals.Count++
			totals.TotalAmountSOL += t.AmountSOL
		}
	}
	return totals, nil
}

func (v snapshot) RewardTotals(_ context.Context, supporter string) (*domain.RewardTotals, error) {
	totals := &domain.RewardTotals{}
	for _, r := range v.store.rewards {
		if r.SupporterWallet == supporter {
			totals.TotalAmountSOL += r.SupporterAmountSOL
		}
	}
	return totals, nil
}

func (v snapshot) RewardsByCreatorForSupporter(_ context.Context, supporter string) (map[string]float64, error) {
	result := make(map[string]float64)
	for _, r := range v.store.rewards {
		if r.SupporterWallet == supporter {
			result[r.CreatorWallet] += r.SupporterAmountSOL
		}
	}
	return result, nil
}

func (v snapshot) TipsByCreatorForSupporter(_ context.Context, supporter string) ([]*domain.CreatorTipSummary, error) {
	byCreator := make(map[string]*domain.CreatorTipSummary)
	for _, t := range v.store.tips {
		if t.SupporterWallet != supporter {
			continue
		}
		sum, ok := byCreator[t.CreatorWallet]
		if !ok {
			sum = &domain.CreatorTipSummary{CreatorWallet: t.CreatorWallet}
			byCreator[t.CreatorWallet] = sum
		}
		sum.TipCount++
		sum.TotalAmountSOL += t.AmountSOL
		if t.Timestamp > sum.LastTipTimestamp {
			sum.LastTipTimestamp = t.Timestamp
		}
	}

	result := make([]*domain.CreatorTipSummary, 0, len(byCreator))
	for _, sum := range byCreator {
		result = append(result, sum)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TipCount != result[j].TipCount {
			return result[i].TipCount > result[j].TipCount
		}
		if result[i].TotalAmountSOL != result[j].TotalAmountSOL {
			return result[i].TotalAmountSOL > result[j].TotalAmountSOL
		}
		return result[i].CreatorWallet < result[j].CreatorWallet
	})

	return result, nil
}

func (v snapshot) RecentTips(_ context.Context, supporter string, limit int) ([]*domain.Tip, error) {
	if err := storage.ValidateLimit(limit); err != nil {
		return nil, err
	}
	var result []*domain.Tip
	for _, t := range v.store.tips {
		if t.SupporterWallet == supporter {
			copy := *t
			result = append(result, &copy)
		}
	}
	return newestTips(result, limit), nil
}

func (v snapshot) RecentTipsToCreator(_ context.Context, creator string, limit int) ([]*domain.Tip, error) {
	if err := storage.ValidateLimit(limit); err != nil {
		return nil, err
	}
	var result []*domain.Tip
	for _, t := range v.store.tips {
		if t.CreatorWallet == creator {
			copy := *t
			result = append(result, &copy)
		}
	}
	return newestTips(result, limit), nil
}

func (v snapshot) RewardHistory(_ context.Context, supporter string) ([]*domain.Reward, error) {
	var result []*domain.Reward
	for _, r := range v.store.rewards {
		if r.SupporterWallet == supporter {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp > result[j].Timestamp
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

// lastByID sorts tips by ID DESC and keeps the first n.
func lastByID(tips []*domain.Tip, n int) []*domain.Tip {
	sort.Slice(tips, func(i, j int) bool {
		return tips[i].ID > tips[j].ID
	})
	if len(tips) > n {
		tips = tips[:n]
	}
	return tips
}

// newestTips sorts tips by timestamp DESC, ID DESC and keeps the first limit.
func newestTips(tips []*domain.Tip, limit int) []*domain.Tip {
	sort.Slice(tips, func(i, j int) bool {
		if tips[i].Timestamp != tips[j].Timestamp {
			return tips[i].Timestamp > tips[j].Timestamp
		}
		return tips[i].ID > tips[j].ID
	})
	if len(tips) > limit {
		tips = tips[:limit]
	}
	return tips
}

// pairLedger stages tip inserts for one WithPairLock call.
type pairLedger struct {
	store  *LedgerStore
	staged []*domain.Tip
}

var _ storage.PairLedger = (*pairLedger)(nil)

func (p *pairLedger) InsertTip(_ context.Context, supporter, creator string, amountSOL float64, txSignature string) (*domain.Tip, error) {
	if err := storage.ValidateTipInput(supporter, creator, amountSOL, txSignature); err != nil {
		return nil, err
	}

	p.store.mu.Lock()
	defer p.store.mu.Unlock()

	if p.store.closed {
		return nil, storage.ErrClosed
	}

	t := p.store.newTipLocked(supporter, creator, amountSOL, txSignature)
	p.staged = append(p.staged, t)

	copy := *t
	return &copy, nil
}

func (p *pairLedger) CountTips(ctx context.Context, supporter, creator string) (int64, error) {
	p.store.mu.RLock()
	defer p.store.mu.RUnlock()

	n, err := snapshot{store: p.store}.CountTips(ctx, supporter, creator)
	if err != nil {
		return 0, err
	}
	for _, t := range p.staged {
		if t.SupporterWallet == supporter && t.CreatorWallet == creator {
			n++
		}
	}
	return n, nil
}

func (p *pairLedger) LastNTips(ctx context.Context, supporter, creator string, n int) ([]*domain.Tip, error) {
	p.store.mu.RLock()
	defer p.store.mu.RUnlock()

	committed, err := snapshot{store: p.store}.LastNTips(ctx, supporter, creator, n)
	if err != nil {
		return nil, err
	}
	for _, t := range p.staged {
		if t.SupporterWallet == supporter && t.CreatorWallet == creator {
			copy := *t
			committed = append(committed, &copy)
		}
	}
	return lastByID(committed, n), nil
}

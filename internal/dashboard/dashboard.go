// Package dashboard builds read-only supporter and creator views of the ledger.
package dashboard

import (
	"context"
	"fmt"

	"tip-ledger/internal/domain"
	"tip-ledger/internal/reward"
	"tip-ledger/internal/storage"
)

// RecentTipsLimit is the number of tips shown in a supporter's recent list.
const RecentTipsLimit = 10

// DefaultSupportersLimit caps a creator's supporter list when no limit is given.
const DefaultSupportersLimit = 50

// MaxSupportersLimit is the largest accepted supporter list limit.
const MaxSupportersLimit = 500

// Overview summarizes everything a supporter has sent and earned.
type Overview struct {
	TotalTipsSent       int64   `json:"totalTipsSent"`
	TotalSOLTipped      float64 `json:"totalSolTipped"`
	TotalCashbackEarned float64 `json:"totalCashbackEarned"`
	CreatorsSupported   int     `json:"creatorsSupported"`
}

// CreatorProgress is the supporter's standing with one creator.
type CreatorProgress struct {
	CreatorWallet      string  `json:"creatorWallet"`
	TipCount           int64   `json:"tipCount"`
	TotalAmount        float64 `json:"totalAmount"`
	LastTipTimestamp   int64   `json:"lastTipTimestamp"`
	NextRewardProgress int64   `json:"nextRewardProgress"`
	TipsUntilReward    int64   `json:"tipsUntilReward"`
	RewardsEarned      float64 `json:"rewardsEarned"`
}

// Tip is the wire form of a ledger tip.
type Tip struct {
	ID              int64   `json:"id"`
	SupporterWallet string  `json:"supporterWallet"`
	CreatorWallet   string  `json:"creatorWallet"`
	AmountSOL       float64 `json:"amountSol"`
	Timestamp       int64   `json:"timestamp"`
	TxSignature     string  `json:"txSignature"`
}

// Reward is the wire form of a ledger reward.
type Reward struct {
	ID                 int64   `json:"id"`
	SupporterWallet    string  `json:"supporterWallet"`
	CreatorWallet      string  `json:"creatorWallet"`
	SupporterAmountSOL float64 `json:"supporterAmountSol"`
	CreatorAmountSOL   float64 `json:"creatorAmountSol"`
	TotalTipsAmountSOL float64 `json:"totalTipsAmountSol"`
	TxSignature        string  `json:"txSignature"`
	Timestamp          int64   `json:"timestamp"`
}

// Dashboard is a supporter's complete view.
type Dashboard struct {
	Overview      Overview          `json:"overview"`
	Creators      []CreatorProgress `json:"creators"`
	RecentTips    []Tip             `json:"recentTips"`
	RewardHistory []Reward          `json:"rewardHistory"`
}

// CreatorSupporters lists the latest tips a creator received.
type CreatorSupporters struct {
	CreatorWallet string `json:"creatorWallet"`
	Tips          []Tip  `json:"tips"`
}

// Aggregator composes ledger reads. It never writes.
type Aggregator struct {
	store storage.LedgerStore
}

// NewAggregator creates an aggregator over store.
func NewAggregator(store storage.LedgerStore) *Aggregator {
	return &Aggregator{store: store}
}

// Supporter builds the dashboard for wallet from a single snapshot.
// A wallet with no tips yields zero totals and empty lists.
func (a *Aggregator) Supporter(ctx context.Context, wallet string) (*Dashboard, error) {
	d := &Dashboard{
		Creators:      []CreatorProgress{},
		RecentTips:    []Tip{},
		RewardHistory: []Reward{},
	}

	err := a.store.ReadSnapshot(ctx, func(r storage.LedgerReader) error {
		tips, err := r.TipTotals(ctx, wallet)
		if err != nil {
			return fmt.Errorf("tip totals: %w", err)
		}
		rewards, err := r.RewardTotals(ctx, wallet)
		if err != nil {
			return fmt.Errorf("reward totals: %w", err)
		}
		byCreator, err := r.TipsByCreatorForSupporter(ctx, wallet)
		if err != nil {
			return fmt.Errorf("tips by creator: %w", err)
		}
		earned, err := r.RewardsByCreatorForSupporter(ctx, wallet)
		if err != nil {
			return fmt.Errorf("rewards by creator: %w", err)
		}
		recent, err := r.RecentTips(ctx, wallet, RecentTipsLimit)
		if err != nil {
			return fmt.Errorf("recent tips: %w", err)
		}
		history, err := r.RewardHistory(ctx, wallet)
		if err != nil {
			return fmt.Errorf("reward history: %w", err)
		}

		d.Overview = Overview{
			TotalTipsSent:       tips.Count,
			TotalSOLTipped:      tips.TotalAmountSOL,
			TotalCashbackEarned: rewards.TotalAmountSOL,
			CreatorsSupported:   len(byCreator),
		}
		for _, c := range byCreator {
			progress, remaining := reward.Progress(c.TipCount)
			d.Creators = append(d.Creators, CreatorProgress{
				CreatorWallet:      c.CreatorWallet,
				TipCount:           c.TipCount,
				TotalAmount:        c.TotalAmountSOL,
				LastTipTimestamp:   c.LastTipTimestamp,
				NextRewardProgress: progress,
				TipsUntilReward:    remaining,
				RewardsEarned:      earned[c.CreatorWallet],
			})
		}
		d.RecentTips = appendTips(d.RecentTips, recent)
		for _, rw := range history {
			d.RewardHistory = append(d.RewardHistory, RewardView(rw))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// CreatorSupporters returns up to limit of the latest tips received by creator.
// limit <= 0 means DefaultSupportersLimit; larger than MaxSupportersLimit is clamped.
func (a *Aggregator) CreatorSupporters(ctx context.Context, creator string, limit int) (*CreatorSupporters, error) {
	if limit <= 0 {
		limit = DefaultSupportersLimit
	}
	if limit > MaxSupportersLimit {
		limit = MaxSupportersLimit
	}

	tips, err := a.store.RecentTipsToCreator(ctx, creator, limit)
	if err != nil {
		return nil, fmt.Errorf("recent tips to creator: %w", err)
	}
	return &CreatorSupporters{CreatorWallet: creator, Tips: appendTips([]Tip{}, tips)}, nil
}

// TipView converts a ledger tip to its wire form.
func TipView(t *domain.Tip) Tip {
	return Tip{
		ID:              t.ID,
		SupporterWallet: t.SupporterWallet,
		CreatorWallet:   t.CreatorWallet,
		AmountSOL:       t.AmountSOL,
		Timestamp:       t.Timestamp,
		TxSignature:     t.TxSignature,
	}
}

// RewardView converts a ledger reward to its wire form.
func RewardView(r *domain.Reward) Reward {
	return Reward{
		ID:                 r.ID,
		SupporterWallet:    r.SupporterWallet,
		CreatorWallet:      r.CreatorWallet,
		SupporterAmountSOL: r.SupporterAmountSOL,
		CreatorAmountSOL:   r.CreatorAmountSOL,
		TotalTipsAmountSOL: r.TotalTipsAmountSOL,
		TxSignature:        r.TxSignature,
		Timestamp:          r.Timestamp,
	}
}

func appendTips(dst []Tip, tips []*domain.Tip) []Tip {
	for _, t := range tips {
		dst = append(dst, TipView(t))
	}
	return dst
}

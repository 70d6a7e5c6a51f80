package reward

import "tip-ledger/internal/domain"

// OutcomeKind tags the result of the reward evaluation for one tip.
type OutcomeKind int

const (
	KindNoRewardDue OutcomeKind = iota
	KindRewardPaid
	KindRewardFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case KindNoRewardDue:
		return "no_reward_due"
	case KindRewardPaid:
		return "reward_paid"
	case KindRewardFailed:
		return "reward_failed"
	default:
		return "unknown"
	}
}

// RewardDetail describes a confirmed and recorded reward.
type RewardDetail struct {
	Reward *domain.Reward
	// TotalCashbackEarned is the supporter's lifetime supporter-side cashback
	// including this reward.
	TotalCashbackEarned float64
}

// Outcome is exactly one of NoRewardDue, RewardPaid or RewardFailed.
// Detail is set only for RewardPaid, Reason only for RewardFailed.
type Outcome struct {
	Kind   OutcomeKind
	Detail *RewardDetail
	Reason string
}

func NoRewardDue() Outcome {
	return Outcome{Kind: KindNoRewardDue}
}

func RewardPaid(detail *RewardDetail) Outcome {
	return Outcome{Kind: KindRewardPaid, Detail: detail}
}

func RewardFailed(reason string) Outcome {
	return Outcome{Kind: KindRewardFailed, Reason: reason}
}

// Package reward decides when a pair earns loyalty cashback and pays it.
package reward

import (
	"fmt"
	"math"

	"tip-ledger/internal/domain"
)

// TriggerInterval is the number of tips in a pair that earns one reward.
const TriggerInterval = 3

// DefaultLoyaltyPercentage is the cashback fraction paid to each side.
const DefaultLoyaltyPercentage = 0.005

// Policy is the pure reward rule.
type Policy struct {
	LoyaltyPercentage float64
}

// Amounts is the computed cashback for one triggering window.
type Amounts struct {
	Base      float64 // sum of the window's tip amounts
	Supporter float64
	Creator   float64
}

// NewPolicy returns a policy paying pct to each side.
func NewPolicy(pct float64) (Policy, error) {
	if math.IsNaN(pct) || pct < 0 || pct >= 1 {
		return Policy{}, fmt.Errorf("loyalty percentage must be in [0, 1), got %v", pct)
	}
	return Policy{LoyaltyPercentage: pct}, nil
}

// DefaultPolicy pays DefaultLoyaltyPercentage.
func DefaultPolicy() Policy {
	return Policy{LoyaltyPercentage: DefaultLoyaltyPercentage}
}

// RewardDue reports whether the pair's post-insert tip count triggers a reward.
func (p Policy) RewardDue(count int64) bool {
	return count > 0 && count%TriggerInterval == 0
}

// Compute sums window into the base and applies the percentage to both sides.
func (p Policy) Compute(window []*domain.Tip) Amounts {
	var base float64
	for _, t := range window {
		base += t.AmountSOL
	}
	cashback := base * p.LoyaltyPercentage
	return Amounts{Base: base, Supporter: cashback, Creator: cashback}
}

// Progress returns how far count is into the current reward cycle and how
// many tips remain until the next reward.
func Progress(count int64) (progress, remaining int64) {
	progress = count % TriggerInterval
	return progress, TriggerInterval - progress
}

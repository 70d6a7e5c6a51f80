package domain

// Reward is a loyalty cashback paid by the platform to both sides of a pair.
// Corresponds to the rewards table. Rows are never mutated or deleted.
type Reward struct {
	ID                 int64
	SupporterWallet    string
	CreatorWallet      string
	SupporterAmountSOL float64
	CreatorAmountSOL   float64
	TotalTipsAmountSOL float64 // sum of the triggering window of tips
	TxSignature        string  // payout transaction signature
	Timestamp          int64   // ms, set by the store
}

// RewardTotals is the aggregate cashback earned by one supporter.
type RewardTotals struct {
	TotalAmountSOL float64
}

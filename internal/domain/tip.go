package domain

// Tip is a recorded claim that a supporter sent AmountSOL to a creator.
// Corresponds to the tips table. Rows are never mutated or deleted.
type Tip struct {
	ID              int64   // assigned by the store, strictly increasing
	SupporterWallet string  // base58 address, case-sensitive
	CreatorWallet   string  // base58 address, case-sensitive
	AmountSOL       float64 // full tip amount before platform fee split
	Timestamp       int64   // insertion time (ms), set by the store
	TxSignature     string  // client-supplied signature, audit only
}

// Pair returns the (supporter, creator) pair the tip belongs to.
func (t *Tip) Pair() Pair {
	return Pair{Supporter: t.SupporterWallet, Creator: t.CreatorWallet}
}

// Pair identifies a (supporter, creator) combination.
// All tip counting and reward triggering is scoped to a pair.
type Pair struct {
	Supporter string
	Creator   string
}

// Key returns a stable string form of the pair.
func (p Pair) Key() string {
	return p.Supporter + "|" + p.Creator
}

// TipTotals is the aggregate of every tip sent by one supporter.
type TipTotals struct {
	Count          int64
	TotalAmountSOL float64
}

// CreatorTipSummary aggregates a supporter's tips to one creator.
type CreatorTipSummary struct {
	CreatorWallet    string
	TipCount         int64
	TotalAmountSOL   float64
	LastTipTimestamp int64 // ms
}

// CreatorRanking is one row of the creator leaderboard built from the analytics mirror.
type CreatorRanking struct {
	CreatorWallet  string
	TipCount       int64
	SupporterCount int64
	TotalAmountSOL float64
}

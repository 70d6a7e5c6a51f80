package storage

import (
	"errors"
	"math"

	"tip-ledger/internal/domain"
)

// Storage errors for append-only stores.
var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("store closed")
)

// ValidateTipInput checks the fields every backend requires before inserting a tip.
func ValidateTipInput(supporter, creator string, amountSOL float64, txSignature string) error {
	if supporter == "" || creator == "" || txSignature == "" {
		return ErrInvalidInput
	}
	if !(amountSOL > 0) || math.IsInf(amountSOL, 0) {
		return ErrInvalidInput
	}
	return nil
}

// ValidateRewardInput checks the fields every backend requires before inserting a reward.
func ValidateRewardInput(r *domain.Reward) error {
	if r == nil || r.SupporterWallet == "" || r.CreatorWallet == "" || r.TxSignature == "" {
		return ErrInvalidInput
	}
	for _, v := range []float64{r.SupporterAmountSOL, r.CreatorAmountSOL, r.TotalTipsAmountSOL} {
		if !(v >= 0) || math.IsInf(v, 0) {
			return ErrInvalidInput
		}
	}
	return nil
}

// ValidateLimit rejects non-positive limits for bounded queries.
func ValidateLimit(limit int) error {
	if limit <= 0 {
		return ErrInvalidInput
	}
	return nil
}

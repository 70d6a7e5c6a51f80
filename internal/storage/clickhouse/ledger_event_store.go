package clickhouse

import (
	"context"
	"fmt"
	"time"

	"tip-ledger/internal/domain"
	"tip-ledger/internal/observability"
	"tip-ledger/internal/storage"
)

// LedgerEventStore mirrors committed tips and rewards into ClickHouse for analytics.
// Rows are keyed by their ledger ID; ReplacingMergeTree collapses repeated deliveries.
type LedgerEventStore struct {
	conn *Conn
}

// NewLedgerEventStore creates a new LedgerEventStore.
func NewLedgerEventStore(conn *Conn) *LedgerEventStore {
	return &LedgerEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.LedgerEventSink = (*LedgerEventStore)(nil)

// RecordTip mirrors a committed tip.
func (s *LedgerEventStore) RecordTip(ctx context.Context, t *domain.Tip) (err error) {
	if t == nil || t.ID == 0 {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "record_tip", time.Since(start).Seconds(), err)
	}()

	err = s.conn.Exec(ctx, `
		INSERT INTO tip_events (
			tip_id, supporter_wallet, creator_wallet, amount_sol, timestamp_ms, tx_signature
		) VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.SupporterWallet, t.CreatorWallet, t.AmountSOL, t.Timestamp, t.TxSignature)
	if err != nil {
		return fmt.Errorf("insert tip event: %w", err)
	}
	return nil
}

// RecordReward mirrors a committed reward.
func (s *LedgerEventStore) RecordReward(ctx context.Context, r *domain.Reward) (err error) {
	if r == nil || r.ID == 0 {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "record_reward", time.Since(start).Seconds(), err)
	}()

	err = s.conn.Exec(ctx, `
		INSERT INTO reward_events (
			reward_id, supporter_wallet, creator_wallet,
			supporter_amount_sol, creator_amount_sol, total_tips_amount_sol,
			timestamp_ms, tx_signature
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.SupporterWallet, r.CreatorWallet,
		r.SupporterAmountSOL, r.CreatorAmountSOL, r.TotalTipsAmountSOL,
		r.Timestamp, r.TxSignature,
	)
	if err != nil {
		return fmt.Errorf("insert reward event: %w", err)
	}
	return nil
}

// CreatorLeaderboard ranks creators by tipped volume since sinceMs.
// Ordered by total amount DESC, tip count DESC, creator wallet ASC.
func (s *LedgerEventStore) CreatorLeaderboard(ctx context.Context, sinceMs int64, limit int) ([]*domain.CreatorRanking, error) {
	if err := storage.ValidateLimit(limit); err != nil {
		return nil, err
	}

	query := `
		SELECT
			creator_wallet,
			toInt64(count()) AS tip_count,
			toInt64(uniqExact(supporter_wallet)) AS supporter_count,
			sum(amount_sol) AS total_amount
		FROM tip_events FINAL
		WHERE timestamp_ms >= ?
		GROUP BY creator_wallet
		ORDER BY total_amount DESC, tip_count DESC, creator_wallet ASC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, sinceMs, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query creator leaderboard: %w", err)
	}
	defer rows.Close()

	var result []*domain.CreatorRanking
	for rows.Next() {
		var r domain.CreatorRanking
		if err := rows.Scan(&r.CreatorWallet, &r.TipCount, &r.SupporterCount, &r.TotalAmountSOL); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard rows: %w", err)
	}
	return result, nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tip-ledger/internal/domain"
	"tip-ledger/internal/observability"
	"tip-ledger/internal/storage"
)

// LedgerStore implements storage.LedgerStore using PostgreSQL.
type LedgerStore struct {
	queries
	pool *Pool
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool *Pool) *LedgerStore {
	return &LedgerStore{
		queries: queries{q: pool, now: time.Now},
		pool:    pool,
	}
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

// InsertReward appends a reward, assigning its ID and Timestamp.
func (s *LedgerStore) InsertReward(ctx context.Context, r *domain.Reward) (*domain.Reward, error) {
	if err := storage.ValidateRewardInput(r); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO rewards (
			supporter_wallet, creator_wallet,
			supporter_amount_sol, creator_amount_sol, total_tips_amount_sol,
			tx_signature, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	stored := *r
	stored.Timestamp = s.now().UnixMilli()

	err := s.pool.QueryRow(ctx, query,
		stored.SupporterWallet, stored.CreatorWallet,
		stored.SupporterAmountSOL, stored.CreatorAmountSOL, stored.TotalTipsAmountSOL,
		stored.TxSignature, stored.Timestamp,
	).Scan(&stored.ID)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	return &stored, nil
}

// WithPairLock runs fn inside a transaction holding an advisory lock on the pair.
// The lock is released when the transaction ends.
func (s *LedgerStore) WithPairLock(ctx context.Context, pair domain.Pair, fn func(storage.PairLedger) error) (err error) {
	if pair.Supporter == "" || pair.Creator == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "pair_section", time.Since(start).Seconds(), err)
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, pairLockKey(pair)); err != nil {
		return fmt.Errorf("acquire pair lock: %w", err)
	}

	if err := fn(pairQueries{queries{q: tx, now: s.now}}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ReadSnapshot runs fn inside a read-only REPEATABLE READ transaction.
func (s *LedgerStore) ReadSnapshot(ctx context.Context, fn func(storage.LedgerReader) error) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "read_snapshot", time.Since(start).Seconds(), err)
	}()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(queries{q: tx, now: s.now}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot tx: %w", err)
	}
	return nil
}

// Close closes the underlying pool.
func (s *LedgerStore) Close() error {
	s.pool.Close()
	return nil
}

// queries holds the SQL shared by the pool and by transactions.
type queries struct {
	q   querier
	now func() time.Time
}

// pairQueries adds tip inserts to queries. It only exists inside WithPairLock,
// so no tip is written outside a pair section.
type pairQueries struct {
	queries
}

var (
	_ storage.PairLedger   = pairQueries{}
	_ storage.LedgerReader = queries{}
)

// InsertTip appends a tip and returns it with ID and Timestamp set.
func (s pairQueries) InsertTip(ctx context.Context, supporter, creator string, amountSOL float64, txSignature string) (*domain.Tip, error) {
	if err := storage.ValidateTipInput(supporter, creator, amountSOL, txSignature); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO tips (supporter_wallet, creator_wallet, amount_sol, timestamp, tx_signature)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	t := &domain.Tip{
		SupporterWallet: supporter,
		CreatorWallet:   creator,
		AmountSOL:       amountSOL,
		Timestamp:       s.now().UnixMilli(),
		TxSignature:     txSignature,
	}

	err := s.q.QueryRow(ctx, query,
		t.SupporterWallet, t.CreatorWallet, t.AmountSOL, t.Timestamp, t.TxSignature,
	).Scan(&t.ID)
	if err != nil {
		return nil, fmt.Errorf("insert tip: %w", err)
	}
	return t, nil
}

// CountTips returns the number of tips recorded for the exact pair.
func (s queries) CountTips(ctx context.Context, supporter, creator string) (int64, error) {
	query := `SELECT COUNT(*) FROM tips WHERE supporter_wallet = $1 AND creator_wallet = $2`

	var n int64
	if err := s.q.QueryRow(ctx, query, supporter, creator).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tips: %w", err)
	}
	return n, nil
}

// LastNTips returns the n most recently inserted tips for the pair, ordered by id DESC.
func (s queries) LastNTips(ctx context.Context, supporter, creator string, n int) ([]*domain.Tip, error) {
	if err := storage.ValidateLimit(n); err != nil {
		return nil, err
	}

	query := `
		SELECT id, supporter_wallet, creator_wallet, amount_sol, timestamp, tx_signature
		FROM tips
		WHERE supporter_wallet = $1 AND creator_wallet = $2
		ORDER BY id DESC
		LIMIT $3
	`

	rows, err := s.q.Query(ctx, query, supporter, creator, n)
	if err != nil {
		return nil, fmt.Errorf("get last tips: %w", err)
	}
	defer rows.Close()

	return scanTips(rows)
}

// TipTotals returns count and summed amount of every tip sent by supporter.
func (s queries) TipTotals(ctx context.Context, supporter string) (*domain.TipTotals, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(amount_sol), 0) FROM tips WHERE supporter_wallet = $1`

	var totals domain.TipTotals
	if err := s.q.QueryRow(ctx, query, supporter).Scan(&totals.Count, &totals.TotalAmountSOL); err != nil {
		return nil, fmt.Errorf("get tip totals: %w", err)
	}
	return &totals, nil
}

// RewardTotals returns the summed supporter-side cashback for supporter.
func (s queries) RewardTotals(ctx context.Context, supporter string) (*domain.RewardTotals, error) {
	query := `SELECT COALESCE(SUM(supporter_amount_sol), 0) FROM rewards WHERE supporter_wallet = $1`

	var totals domain.RewardTotals
	if err := s.q.QueryRow(ctx, query, supporter).Scan(&totals.TotalAmountSOL); err != nil {
		return nil, fmt.Errorf("get reward totals: %w", err)
	}
	return &totals, nil
}

// RewardsByCreatorForSupporter returns supporter-side cashback sums keyed by creator.
func (s queries) RewardsByCreatorForSupporter(ctx context.Context, supporter string) (map[string]float64, error) {
	query := `
		SELECT creator_wallet, SUM(supporter_amount_sol)
		FROM rewards
		WHERE supporter_wallet = $1
		GROUP BY creator_wallet
	`

	rows, err := s.q.Query(ctx, query, supporter)
	if err != nil {
		return nil, fmt.Errorf("get rewards by creator: %w", err)
	}
	defer rows.Close()

	result := make(map[string]float64)
	for rows.Next() {
		var creator string
		var total float64
		if err := rows.Scan(&creator, &total); err != nil {
			return nil, fmt.Errorf("scan rewards by creator row: %w", err)
		}
		result[creator] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rewards by creator rows: %w", err)
	}
	return result, nil
}

// TipsByCreatorForSupporter groups the supporter's tips by creator.
func (s queries) TipsByCreatorForSupporter(ctx context.Context, supporter string) ([]*domain.CreatorTipSummary, error) {
	query := `
		SELECT creator_wallet, COUNT(*) AS tip_count, SUM(amount_sol) AS total_amount, MAX(timestamp)
		FROM tips
		WHERE supporter_wallet = $1
		GROUP BY creator_wallet
		ORDER BY tip_count DESC, total_amount DESC, creator_wallet ASC
	`

	rows, err := s.q.Query(ctx, query, supporter)
	if err != nil {
		return nil, fmt.Errorf("get tips by creator: %w", err)
	}
	defer rows.Close()

	var result []*domain.CreatorTipSummary
	for rows.Next() {
		var c domain.CreatorTipSummary
		if err := rows.Scan(&c.CreatorWallet, &c.TipCount, &c.TotalAmountSOL, &c.LastTipTimestamp); err != nil {
			return nil, fmt.Errorf("scan tips by creator row: %w", err)
		}
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tips by creator rows: %w", err)
	}
	return result, nil
}

// RecentTips returns up to limit tips sent by supporter, newest first.
func (s queries) RecentTips(ctx context.Context, supporter string, limit int) ([]*domain.Tip, error) {
	if err := storage.ValidateLimit(limit); err != nil {
		return nil, err
	}

	query := `
		SELECT id, supporter_wallet, creator_wallet, amount_sol, timestamp, tx_signature
		FROM tips
		WHERE supporter_wallet = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`

	rows, err := s.q.Query(ctx, query, supporter, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent tips: %w", err)
	}
	defer rows.Close()

	return scanTips(rows)
}

// RecentTipsToCreator returns up to limit tips received by creator, newest first.
func (s queries) RecentTipsToCreator(ctx context.Context, creator string, limit int) ([]*domain.Tip, error) {
	if err := storage.ValidateLimit(limit); err != nil {
		return nil, err
	}

	query := `
		SELECT id, supporter_wallet, creator_wallet, amount_sol, timestamp, tx_signature
		FROM tips
		WHERE creator_wallet = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`

	rows, err := s.q.Query(ctx, query, creator, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent tips to creator: %w", err)
	}
	defer rows.Close()

	return scanTips(rows)
}

// RewardHistory returns every reward of supporter, newest first.
func (s queries) RewardHistory(ctx context.Context, supporter string) ([]*domain.Reward, error) {
	query := `
		SELECT
			id, supporter_wallet, creator_wallet,
			supporter_amount_sol, creator_amount_sol, total_tips_amount_sol,
			tx_signature, timestamp
		FROM rewards
		WHERE supporter_wallet = $1
		ORDER BY timestamp DESC, id DESC
	`

	rows, err := s.q.Query(ctx, query, supporter)
	if err != nil {
		return nil, fmt.Errorf("get reward history: %w", err)
	}
	defer rows.Close()

	var result []*domain.Reward
	for rows.Next() {
		var r domain.Reward
		err := rows.Scan(
			&r.ID, &r.SupporterWallet, &r.CreatorWallet,
			&r.SupporterAmountSOL, &r.CreatorAmountSOL, &r.TotalTipsAmountSOL,
			&r.TxSignature, &r.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan reward row: %w", err)
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reward rows: %w", err)
	}
	return result, nil
}

// scanTips scans multiple rows into a slice of Tip.
func scanTips(rows pgx.Rows) ([]*domain.Tip, error) {
	var tips []*domain.Tip

	for rows.Next() {
		var t domain.Tip
		if err := rows.Scan(&t.ID, &t.SupporterWallet, &t.CreatorWallet, &t.AmountSOL, &t.Timestamp, &t.TxSignature); err != nil {
			return nil, fmt.Errorf("scan tip row: %w", err)
		}
		tips = append(tips, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tip rows: %w", err)
	}

	return tips, nil
}

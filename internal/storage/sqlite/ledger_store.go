package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tip-ledger/internal/domain"
	"tip-ledger/internal/observability"
	"tip-ledger/internal/storage"
)

// LedgerStore implements storage.LedgerStore on SQLite.
type LedgerStore struct {
	queries
	db *sql.DB
}

// Option configures LedgerStore.
type Option func(*LedgerStore)

// WithClock overrides the clock used to stamp rows.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerStore) {
		s.now = now
	}
}

// NewLedgerStore wraps a handle returned by Open.
func NewLedgerStore(db *sql.DB, opts ...Option) *LedgerStore {
	s := &LedgerStore{
		queries: queries{q: db, now: time.Now},
		db:      db,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

// InsertReward appends a reward, assigning its ID and Timestamp.
func (s *LedgerStore) InsertReward(ctx context.Context, r *domain.Reward) (*domain.Reward, error) {
	if err := storage.ValidateRewardInput(r); err != nil {
		return nil, err
	}

	stored := *r
	stored.Timestamp = s.now().UnixMilli()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO rewards (
			supporter_wallet, creator_wallet,
			supporter_amount_sol, creator_amount_sol, total_tips_amount_sol,
			tx_signature, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		stored.SupporterWallet, stored.CreatorWallet,
		stored.SupporterAmountSOL, stored.CreatorAmountSOL, stored.TotalTipsAmountSOL,
		stored.TxSignature, stored.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	if stored.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("reward id: %w", err)
	}
	return &stored, nil
}

// WithPairLock runs fn inside a write transaction.
// The handle has a single connection, so transactions never overlap.
func (s *LedgerStore) WithPairLock(ctx context.Context, pair domain.Pair, fn func(storage.PairLedger) error) (err error) {
	if pair.Supporter == "" || pair.Creator == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("sqlite", "pair_section", time.Since(start).Seconds(), err)
	}()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(pairQueries{queries{q: tx, now: s.now}})
	})
}

// ReadSnapshot runs fn inside a transaction so every read sees the same state.
func (s *LedgerStore) ReadSnapshot(ctx context.Context, fn func(storage.LedgerReader) error) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("sqlite", "read_snapshot", time.Since(start).Seconds(), err)
	}()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(queries{q: tx, now: s.now})
	})
}

func (s *LedgerStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *LedgerStore) Close() error {
	return s.db.Close()
}

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

	t := &domain.Tip{
		SupporterWallet: supporter,
		CreatorWallet:   creator,
		AmountSOL:       amountSOL,
		Timestamp:       s.now().UnixMilli(),
		TxSignature:     txSignature,
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO tips (supporter_wallet, creator_wallet, amount_sol, timestamp, tx_signature)
		VALUES (?, ?, ?, ?, ?)
	`, t.SupporterWallet, t.CreatorWallet, t.AmountSOL, t.Timestamp, t.TxSignature)
	if err != nil {
		return nil, fmt.Errorf("insert tip: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("tip id: %w", err)
	}
	return t, nil
}

func (s queries) CountTips(ctx context.Context, supporter, creator string) (int64, error) {
	var n int64
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tips WHERE supporter_wallet = ? AND creator_wallet = ?`,
		supporter, creator,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tips: %w", err)
	}
	return n, nil
}

func (s queries) LastNTips(ctx context.Context, supporter, creator string, n int) ([]*domain.Tip, error) {
	if err := storage.ValidateLimit(n); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, supporter_wallet, creator_wallet, amount_sol, timestamp, tx_signature
		FROM tips
		WHERE supporter_wallet = ? AND creator_wallet = ?
		ORDER BY id DESC
		LIMIT ?
	`, supporter, creator, n)
	if err != nil {
		return nil, fmt.Errorf("get last tips: %w", err)
	}
	defer rows.Close()

	return scanTips(rows)
}

func (s queries) TipTotals(ctx context.Context, supporter string) (*domain.TipTotals, error) {
	var totals domain.TipTotals
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(amount_sol), 0.0) FROM tips WHERE supporter_wallet = ?`,
		supporter,
	).Scan(&totals.Count, &totals.TotalAmountSOL)
	if err != nil {
		return nil, fmt.Errorf("get tip totals: %w", err)
	}
	return &totals, nil
}

func (s queries) RewardTotals(ctx context.Context, supporter string) (*domain.RewardTotals, error) {
	var totals domain.RewardTotals
	err := s.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(supporter_amount_sol), 0.0) FROM rewards WHERE supporter_wallet = ?`,
		supporter,
	).Scan(&totals.TotalAmountSOL)
	if err != nil {
		return nil, fmt.Errorf("get reward totals: %w", err)
	}
	return &totals, nil
}

func (s queries) RewardsByCreatorForSupporter(ctx context.Context, supporter string) (map[string]float64, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT creator_wallet, SUM(supporter_amount_sol)
		FROM rewards
		WHERE supporter_wallet = ?
		GROUP BY creator_wallet
	`, supporter)
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

func (s queries) TipsByCreatorForSupporter(ctx context.Context, supporter string) ([]*domain.CreatorTipSummary, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT creator_wallet, COUNT(*) AS tip_count, SUM(amount_sol) AS total_amount, MAX(timestamp)
		FROM tips
		WHERE supporter_wallet = ?
		GROUP BY creator_wallet
		ORDER BY tip_count DESC, total_amount DESC, creator_wallet ASC
	`, supporter)
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

func (s queries) RecentTips(ctx context.Context, supporter string, limit int) ([]*domain.Tip, error) {
	if err := storage.ValidateLimit(limit); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, supporter_wallet, creator_wallet, amount_sol, timestamp, tx_signature
		FROM tips
		WHERE supporter_wallet = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, supporter, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent tips: %w", err)
	}
	defer rows.Close()

	return scanTips(rows)
}

func (s queries) RecentTipsToCreator(ctx context.Context, creator string, limit int) ([]*domain.Tip, error) {
	if err := storage.ValidateLimit(limit); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, supporter_wallet, creator_wallet, amount_sol, timestamp, tx_signature
		FROM tips
		WHERE creator_wallet = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, creator, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent tips to creator: %w", err)
	}
	defer rows.Close()

	return scanTips(rows)
}

func (s queries) RewardHistory(ctx context.Context, supporter string) ([]*domain.Reward, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT
			id, supporter_wallet, creator_wallet,
			supporter_amount_sol, creator_amount_sol, total_tips_amount_sol,
			tx_signature, timestamp
		FROM rewards
		WHERE supporter_wallet = ?
		ORDER BY timestamp DESC, id DESC
	`, supporter)
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

func scanTips(rows *sql.Rows) ([]*domain.Tip, error) {
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

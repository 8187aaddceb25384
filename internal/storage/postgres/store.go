package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/model"
)

// Store provides Postgres persistence for the hook journal.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the journal tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS pool_configs (
			pool_id TEXT PRIMARY KEY,
			premium_rate_bps INT NOT NULL,
			il_tolerance_bps INT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			pool_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			entry_sqrt_price NUMERIC NOT NULL,
			entry_amount0 NUMERIC NOT NULL,
			entry_amount1 NUMERIC NOT NULL,
			opened_at BIGINT NOT NULL,
			closed BOOLEAN NOT NULL DEFAULT FALSE,
			closed_at BIGINT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (pool_id, provider)
		)`,
		`CREATE TABLE IF NOT EXISTS reserves (
			pool_id TEXT PRIMARY KEY,
			balance NUMERIC NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS payouts (
			id BIGSERIAL PRIMARY KEY,
			pool_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			amount NUMERIC NOT NULL,
			il_bps BIGINT NOT NULL,
			tx_hash TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS premiums (
			id BIGSERIAL PRIMARY KEY,
			pool_id TEXT NOT NULL,
			amount NUMERIC NOT NULL,
			tx_hash TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, statement := range statements {
		if _, err := s.pool.Exec(ctx, statement); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// UpsertPoolConfig inserts or updates a pool policy row.
func (s *Store) UpsertPoolConfig(ctx context.Context, poolID string, premiumRateBps, ilToleranceBps uint32, active bool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pool_configs (pool_id, premium_rate_bps, il_tolerance_bps, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (pool_id)
		DO UPDATE SET active = EXCLUDED.active, updated_at = now()
	`, poolID, int64(premiumRateBps), int64(ilToleranceBps), active)
	return err
}

// UpsertPosition inserts or replaces a position's entry state.
func (s *Store) UpsertPosition(ctx context.Context, record model.PositionRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO positions (pool_id, provider, entry_sqrt_price, entry_amount0, entry_amount1, opened_at, closed, closed_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, FALSE, NULL, now())
		ON CONFLICT (pool_id, provider)
		DO UPDATE SET
			entry_sqrt_price = EXCLUDED.entry_sqrt_price,
			entry_amount0 = EXCLUDED.entry_amount0,
			entry_amount1 = EXCLUDED.entry_amount1,
			opened_at = EXCLUDED.opened_at,
			closed = FALSE,
			closed_at = NULL,
			updated_at = now()
	`,
		record.PoolID,
		record.Provider,
		record.EntrySqrtPrice,
		record.EntryAmount0,
		record.EntryAmount1,
		int64(record.OpenedAt),
	)
	return err
}

// MarkPositionClosed flags a position row closed.
func (s *Store) MarkPositionClosed(ctx context.Context, poolID, provider string, closedAt uint64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE positions
		SET closed = TRUE, closed_at = $3, updated_at = now()
		WHERE pool_id = $1 AND provider = $2
	`, poolID, provider, int64(closedAt))
	return err
}

// UpsertReserve records the current reserve balance of a pool.
func (s *Store) UpsertReserve(ctx context.Context, poolID, balance string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reserves (pool_id, balance, updated_at)
		VALUES ($1, $2::numeric, now())
		ON CONFLICT (pool_id)
		DO UPDATE SET balance = EXCLUDED.balance, updated_at = now()
	`, poolID, balance)
	return err
}

// InsertPayouts appends payout instructions.
func (s *Store) InsertPayouts(ctx context.Context, payouts []model.PayoutInstruction) error {
	if len(payouts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, payout := range payouts {
		batch.Queue(`
			INSERT INTO payouts (pool_id, provider, amount, il_bps, tx_hash, created_at)
			VALUES ($1, $2, $3::numeric, $4, $5, now())
		`, payout.PoolID, payout.Provider, payout.Amount, int64(payout.ILBps), payout.TxHash)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range payouts {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// InsertPremiums appends premium credit notifications.
func (s *Store) InsertPremiums(ctx context.Context, premiums []model.PremiumCredited) error {
	if len(premiums) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, premium := range premiums {
		batch.Queue(`
			INSERT INTO premiums (pool_id, amount, tx_hash, created_at)
			VALUES ($1, $2::numeric, $3, now())
		`, premium.PoolID, premium.Amount, premium.TxHash)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range premiums {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PoolConfigRow is the persisted pool policy.
type PoolConfigRow struct {
	PoolID         string
	PremiumRateBps uint32
	ILToleranceBps uint32
	Active         bool
}

// GetPoolConfig reads the policy row for a pool.
func (s *Store) GetPoolConfig(ctx context.Context, poolID string) (PoolConfigRow, bool, error) {
	var row PoolConfigRow
	err := s.pool.QueryRow(ctx, `
		SELECT pool_id, premium_rate_bps, il_tolerance_bps, active
		FROM pool_configs WHERE pool_id = $1
	`, poolID).Scan(&row.PoolID, &row.PremiumRateBps, &row.ILToleranceBps, &row.Active)
	if err == pgx.ErrNoRows {
		return PoolConfigRow{}, false, nil
	}
	if err != nil {
		return PoolConfigRow{}, false, err
	}
	return row, true, nil
}

// GetReserveBalance reads the persisted reserve balance, "0" when absent.
func (s *Store) GetReserveBalance(ctx context.Context, poolID string) (string, error) {
	var balance string
	err := s.pool.QueryRow(ctx, `
		SELECT balance::text FROM reserves WHERE pool_id = $1
	`, poolID).Scan(&balance)
	if err == pgx.ErrNoRows {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	return balance, nil
}

// RecentPayouts lists the newest payouts for a pool.
func (s *Store) RecentPayouts(ctx context.Context, poolID string, limit int) ([]model.PayoutInstruction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT pool_id, provider, amount::text, il_bps, COALESCE(tx_hash, '')
		FROM payouts WHERE pool_id = $1
		ORDER BY id DESC LIMIT $2
	`, poolID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payouts := make([]model.PayoutInstruction, 0, limit)
	for rows.Next() {
		var payout model.PayoutInstruction
		var ilBps int64
		if err := rows.Scan(&payout.PoolID, &payout.Provider, &payout.Amount, &ilBps, &payout.TxHash); err != nil {
			return nil, err
		}
		payout.ILBps = uint64(ilBps)
		payouts = append(payouts, payout)
	}
	return payouts, rows.Err()
}

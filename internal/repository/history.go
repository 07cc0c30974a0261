package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"stakesim/internal/model"
)

// BetRepository persists bet history in PostgreSQL.
type BetRepository struct {
	pool *pgxpool.Pool
}

// NewBetRepository creates a new BetRepository instance.
func NewBetRepository(pool *pgxpool.Pool) *BetRepository {
	return &BetRepository{pool: pool}
}

// Append inserts rec and prunes the username's history down to limit rows.
func (r *BetRepository) Append(ctx context.Context, username string, rec model.BetRecord, limit int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insert = `
		INSERT INTO bet_records (id, username, game, bet_amount, result, payout, created_at)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6::text::numeric, $7)
	`
	_, err = tx.Exec(ctx, insert,
		rec.ID,
		username,
		string(rec.Game),
		rec.BetAmount.String(),
		string(rec.Result),
		rec.Payout.String(),
		rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bet record: %w", err)
	}

	if limit > 0 {
		const prune = `
			DELETE FROM bet_records
			WHERE username = $1 AND id NOT IN (
				SELECT id FROM bet_records
				WHERE username = $1
				ORDER BY created_at DESC, seq DESC
				LIMIT $2
			)
		`
		if _, err := tx.Exec(ctx, prune, username, limit); err != nil {
			return fmt.Errorf("failed to prune bet history: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit bet record: %w", err)
	}
	return nil
}

// Recent returns up to limit bets for username, newest first.
func (r *BetRepository) Recent(ctx context.Context, username string, limit int) ([]model.BetRecord, error) {
	const query = `
		SELECT id::text, game, bet_amount::text, result, payout::text, created_at
		FROM bet_records
		WHERE username = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet history: %w", err)
	}
	defer rows.Close()

	records := make([]model.BetRecord, 0, limit)
	for rows.Next() {
		var (
			rec                  model.BetRecord
			game, result         string
			betAmount, payoutStr string
		)
		if err := rows.Scan(&rec.ID, &game, &betAmount, &result, &payoutStr, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan bet record: %w", err)
		}
		rec.Game = model.GameType(game)
		rec.Result = model.BetResult(result)
		if rec.BetAmount, err = decimal.NewFromString(betAmount); err != nil {
			return nil, fmt.Errorf("failed to parse bet amount: %w", err)
		}
		if rec.Payout, err = decimal.NewFromString(payoutStr); err != nil {
			return nil, fmt.Errorf("failed to parse payout: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bet history: %w", err)
	}
	return records, nil
}

// PostgresStore combines the account and bet repositories.
type PostgresStore struct {
	*AccountRepository
	*BetRepository
}

// NewPostgresStore creates a Store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		AccountRepository: NewAccountRepository(pool),
		BetRepository:     NewBetRepository(pool),
	}
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			username VARCHAR(255) PRIMARY KEY,
			balance NUMERIC(20, 2) NOT NULL DEFAULT 1000,
			total_wagered NUMERIC(20, 2) NOT NULL DEFAULT 0,
			total_winnings NUMERIC(20, 2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_accounts_balance ON accounts(balance DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to create accounts table: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS bet_records (
			seq BIGSERIAL,
			id UUID PRIMARY KEY,
			username VARCHAR(255) NOT NULL REFERENCES accounts(username) ON DELETE CASCADE,
			game VARCHAR(32) NOT NULL,
			bet_amount NUMERIC(20, 2) NOT NULL,
			result VARCHAR(8) NOT NULL,
			payout NUMERIC(20, 2) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_bet_records_user_time ON bet_records(username, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to create bet_records table: %w", err)
	}
	return nil
}

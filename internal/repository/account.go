package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"stakesim/internal/model"
)

// AccountRepository persists accounts in PostgreSQL.
// Amounts travel as text so NUMERIC columns keep exact cents.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository instance.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `username, balance::text, total_wagered::text, total_winnings::text, created_at, updated_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		a                          model.Account
		balance, wagered, winnings string
	)
	if err := row.Scan(&a.Username, &balance, &wagered, &winnings, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	if a.TotalWagered, err = decimal.NewFromString(wagered); err != nil {
		return nil, fmt.Errorf("failed to parse total wagered: %w", err)
	}
	if a.TotalWinnings, err = decimal.NewFromString(winnings); err != nil {
		return nil, fmt.Errorf("failed to parse total winnings: %w", err)
	}
	return &a, nil
}

// Load retrieves an account by username.
// Returns ErrAccountNotFound if the account does not exist.
func (r *AccountRepository) Load(ctx context.Context, username string) (*model.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`

	a, err := scanAccount(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return a, nil
}

// Save upserts an account.
func (r *AccountRepository) Save(ctx context.Context, account *model.Account) error {
	if account.Username == "" {
		return ErrEmptyUsername
	}

	const query = `
		INSERT INTO accounts (username, balance, total_wagered, total_winnings, created_at, updated_at)
		VALUES ($1, $2::text::numeric, $3::text::numeric, $4::text::numeric, $5, NOW())
		ON CONFLICT (username) DO UPDATE SET
			balance = EXCLUDED.balance,
			total_wagered = EXCLUDED.total_wagered,
			total_winnings = EXCLUDED.total_winnings,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		account.Username,
		account.Balance.String(),
		account.TotalWagered.String(),
		account.TotalWinnings.String(),
		account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// List returns every account ordered by username.
func (r *AccountRepository) List(ctx context.Context) ([]*model.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts ORDER BY username`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// Delete removes an account and its history.
func (r *AccountRepository) Delete(ctx context.Context, username string) error {
	const query = `DELETE FROM accounts WHERE username = $1`

	tag, err := r.pool.Exec(ctx, query, username)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

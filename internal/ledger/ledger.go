// Package ledger applies balance mutations to one account and keeps its
// capped bet history. Every mutation is saved to the store before it is
// committed in memory, so a failed save leaves the account unchanged.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"stakesim/internal/game"
	"stakesim/internal/model"
	"stakesim/internal/repository"
)

// ErrInvalidAmount is returned for negative credits and non-positive debits.
var ErrInvalidAmount = errors.New("invalid amount")

// Config holds the account defaults.
type Config struct {
	InitialBalance decimal.Decimal
	HistoryLimit   int
}

// DefaultConfig returns the standard account defaults.
func DefaultConfig() Config {
	return Config{
		InitialBalance: model.DefaultInitialBalance,
		HistoryLimit:   model.DefaultHistoryLimit,
	}
}

func (c Config) withDefaults() Config {
	if c.InitialBalance.IsZero() {
		c.InitialBalance = model.DefaultInitialBalance
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = model.DefaultHistoryLimit
	}
	return c
}

// Ledger owns one account. It is safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	store   repository.Store
	cfg     Config
	now     func() time.Time
	account *model.Account
	history []model.BetRecord
}

// Open loads username from store, creating the account with the initial
// balance when it does not exist yet. created reports whether it was new.
func Open(ctx context.Context, store repository.Store, username string, cfg Config) (l *Ledger, created bool, err error) {
	if username == "" {
		return nil, false, repository.ErrEmptyUsername
	}
	cfg = cfg.withDefaults()
	l = &Ledger{store: store, cfg: cfg, now: time.Now}

	account, err := store.Load(ctx, username)
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		now := l.now()
		account = &model.Account{
			Username:      username,
			Balance:       cfg.InitialBalance,
			TotalWagered:  decimal.Zero,
			TotalWinnings: decimal.Zero,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := store.Save(ctx, account); err != nil {
			return nil, false, fmt.Errorf("failed to create account: %w", err)
		}
		created = true
	case err != nil:
		return nil, false, fmt.Errorf("failed to open account: %w", err)
	}

	history, err := store.Recent(ctx, username, cfg.HistoryLimit)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load history: %w", err)
	}

	l.account = account
	l.history = history
	return l, created, nil
}

// Username returns the account owner.
func (l *Ledger) Username() string {
	return l.account.Username
}

// Balance implements game.Ledger.
func (l *Ledger) Balance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.account.Balance
}

// Account returns a copy of the account.
func (l *Ledger) Account() *model.Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.account.Clone()
}

// History returns the most recent bets, newest first.
func (l *Ledger) History() []model.BetRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.BetRecord, len(l.history))
	copy(out, l.history)
	return out
}

// apply saves the result of fn on a copy of the account and commits it.
// Callers hold l.mu.
func (l *Ledger) apply(ctx context.Context, fn func(a *model.Account)) error {
	next := l.account.Clone()
	fn(next)
	next.UpdatedAt = l.now()
	if err := l.store.Save(ctx, next); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	l.account = next
	return nil
}

// Debit takes amount from the balance and adds it to the wagered total.
// The balance is not checked here; game.Session does that before placing.
func (l *Ledger) Debit(ctx context.Context, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: debit %s", ErrInvalidAmount, amount.String())
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.apply(ctx, func(a *model.Account) {
		a.Balance = a.Balance.Sub(amount)
		a.TotalWagered = a.TotalWagered.Add(amount)
	})
}

// Credit adds amount to the balance. A zero credit is legal and only
// touches the update time; winnings grow only for positive amounts.
func (l *Ledger) Credit(ctx context.Context, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: credit %s", ErrInvalidAmount, amount.String())
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.apply(ctx, func(a *model.Account) {
		a.Balance = a.Balance.Add(amount)
		if amount.IsPositive() {
			a.TotalWinnings = a.TotalWinnings.Add(amount)
		}
	})
}

// Refund reverses a debit: the amount returns to the balance and leaves
// the wagered total.
func (l *Ledger) Refund(ctx context.Context, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: refund %s", ErrInvalidAmount, amount.String())
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.apply(ctx, func(a *model.Account) {
		a.Balance = a.Balance.Add(amount)
		a.TotalWagered = a.TotalWagered.Sub(amount)
	})
}

// RecordBet prepends rec to the history, keeping the configured limit.
func (l *Ledger) RecordBet(ctx context.Context, rec model.BetRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Append(ctx, l.account.Username, rec, l.cfg.HistoryLimit); err != nil {
		return fmt.Errorf("failed to append bet: %w", err)
	}
	history := make([]model.BetRecord, 0, len(l.history)+1)
	history = append(history, rec)
	history = append(history, l.history...)
	if len(history) > l.cfg.HistoryLimit {
		history = history[:l.cfg.HistoryLimit]
	}
	l.history = history
	return nil
}

// ResetBalance restores the initial balance. Wagered and winnings totals
// are kept.
func (l *Ledger) ResetBalance(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.apply(ctx, func(a *model.Account) {
		a.Balance = l.cfg.InitialBalance
	})
}

// SetBalance overwrites the balance.
func (l *Ledger) SetBalance(ctx context.Context, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return fmt.Errorf("%w: balance %s", ErrInvalidAmount, balance.String())
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.apply(ctx, func(a *model.Account) {
		a.Balance = balance
	})
}

var _ game.Ledger = (*Ledger)(nil)

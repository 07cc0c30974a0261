// Package repository provides the account and bet-history stores.
package repository

import (
	"context"
	"errors"

	"stakesim/internal/model"
)

// Common errors for repository operations.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmptyUsername   = errors.New("username cannot be empty")
)

// AccountStore loads and saves accounts keyed by username.
type AccountStore interface {
	Load(ctx context.Context, username string) (*model.Account, error)
	Save(ctx context.Context, account *model.Account) error
	List(ctx context.Context) ([]*model.Account, error)
}

// HistoryStore keeps each account's most recent bets, newest first.
type HistoryStore interface {
	Append(ctx context.Context, username string, rec model.BetRecord, limit int) error
	Recent(ctx context.Context, username string, limit int) ([]model.BetRecord, error)
}

// Store is a backend providing both stores.
type Store interface {
	AccountStore
	HistoryStore
	Close() error
}

// prepend puts rec in front of history and truncates to limit.
func prepend(history []model.BetRecord, rec model.BetRecord, limit int) []model.BetRecord {
	out := make([]model.BetRecord, 0, len(history)+1)
	out = append(out, rec)
	out = append(out, history...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"stakesim/internal/ledger"
	"stakesim/internal/model"
	"stakesim/internal/repository"
)

// ErrInvalidUsername is returned for names that normalize to nothing.
var ErrInvalidUsername = errors.New("invalid username")

// NormalizeUsername trims whitespace and a leading @ and lowercases the rest.
func NormalizeUsername(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "@")
	return strings.ToLower(name)
}

// AccountService hands out one ledger per logged-in account.
type AccountService struct {
	store   repository.Store
	cfg     ledger.Config
	mu      sync.Mutex
	ledgers map[string]*ledger.Ledger
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(store repository.Store, cfg ledger.Config) *AccountService {
	return &AccountService{
		store:   store,
		cfg:     cfg,
		ledgers: make(map[string]*ledger.Ledger),
	}
}

// Login returns the ledger for username, creating the account with the
// initial balance if it does not exist. created reports a new account.
func (s *AccountService) Login(ctx context.Context, username string) (*ledger.Ledger, bool, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return nil, false, ErrInvalidUsername
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.ledgers[username]; ok {
		return l, false, nil
	}

	l, created, err := ledger.Open(ctx, s.store, username, s.cfg)
	if err != nil {
		return nil, false, fmt.Errorf("failed to log in %s: %w", username, err)
	}
	s.ledgers[username] = l

	if created {
		log.Info().Str("username", username).Str("balance", l.Balance().StringFixed(2)).Msg("Account created")
	}
	return l, created, nil
}

// Ledger is Login without the created flag.
func (s *AccountService) Ledger(ctx context.Context, username string) (*ledger.Ledger, error) {
	l, _, err := s.Login(ctx, username)
	return l, err
}

// GetAccount returns a snapshot of the account.
func (s *AccountService) GetAccount(ctx context.Context, username string) (*model.Account, error) {
	l, err := s.Ledger(ctx, username)
	if err != nil {
		return nil, err
	}
	return l.Account(), nil
}

// History returns the account's recent bets, newest first.
func (s *AccountService) History(ctx context.Context, username string) ([]model.BetRecord, error) {
	l, err := s.Ledger(ctx, username)
	if err != nil {
		return nil, err
	}
	return l.History(), nil
}

// ResetBalance restores the initial balance.
func (s *AccountService) ResetBalance(ctx context.Context, username string) (*model.Account, error) {
	l, err := s.Ledger(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := l.ResetBalance(ctx); err != nil {
		return nil, fmt.Errorf("failed to reset balance: %w", err)
	}
	return l.Account(), nil
}

// SetBalance overwrites the balance of an existing account.
// Returns repository.ErrAccountNotFound for unknown usernames.
func (s *AccountService) SetBalance(ctx context.Context, username string, balance decimal.Decimal) (*model.Account, error) {
	username = NormalizeUsername(username)
	if _, err := s.store.Load(ctx, username); err != nil {
		return nil, err
	}
	l, err := s.Ledger(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := l.SetBalance(ctx, balance); err != nil {
		return nil, fmt.Errorf("failed to set balance: %w", err)
	}
	return l.Account(), nil
}

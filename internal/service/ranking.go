package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"stakesim/internal/model"
	"stakesim/internal/repository"
)

// Board selects the leaderboard ordering.
type Board string

const (
	BoardBalance Board = "balance"
	BoardProfit  Board = "profit"
	BoardWagered Board = "wagered"
)

// DefaultTopLimit is the leaderboard size.
const DefaultTopLimit = 10

// ParseBoard maps user input to a Board; empty input means balance.
func ParseBoard(s string) (Board, error) {
	switch Board(strings.ToLower(strings.TrimSpace(s))) {
	case "", BoardBalance:
		return BoardBalance, nil
	case BoardProfit:
		return BoardProfit, nil
	case BoardWagered:
		return BoardWagered, nil
	}
	return "", fmt.Errorf("unknown leaderboard %q", s)
}

// RankEntry is one leaderboard row.
type RankEntry struct {
	Rank     int
	Username string
	Value    decimal.Decimal
}

// RankingService builds leaderboards from the account store.
type RankingService struct {
	accounts repository.AccountStore
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(accounts repository.AccountStore) *RankingService {
	return &RankingService{accounts: accounts}
}

func boardValue(board Board, a *model.Account) decimal.Decimal {
	switch board {
	case BoardProfit:
		return a.NetProfit()
	case BoardWagered:
		return a.TotalWagered
	default:
		return a.Balance
	}
}

// Top returns up to limit accounts ordered by the board's value, highest
// first. Ties go to the alphabetically first username.
func (s *RankingService) Top(ctx context.Context, board Board, limit int) ([]RankEntry, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	entries := make([]RankEntry, 0, len(accounts))
	for _, a := range accounts {
		entries = append(entries, RankEntry{Username: a.Username, Value: boardValue(board, a)})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if c := entries[i].Value.Cmp(entries[j].Value); c != 0 {
			return c > 0
		}
		return entries[i].Username < entries[j].Username
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

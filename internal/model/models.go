// Package model defines the data models for the wagering engine.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// GameType identifies one of the supported games.
type GameType string

// Supported games.
const (
	GameDice      GameType = "dice"
	GameMines     GameType = "mines"
	GameCrash     GameType = "crash"
	GameBlackjack GameType = "blackjack"
	GamePlinko    GameType = "plinko"
	GameLaneHop   GameType = "lanehop"
)

// GameTypes returns every supported game in display order.
func GameTypes() []GameType {
	return []GameType{GameDice, GameMines, GameCrash, GameBlackjack, GamePlinko, GameLaneHop}
}

// BetResult is the binary classification stored in the bet history.
type BetResult string

const (
	ResultWin  BetResult = "win"
	ResultLoss BetResult = "loss"
)

// Account is a player's virtual-currency account.
// Balance, TotalWagered and TotalWinnings are only mutated by the ledger.
type Account struct {
	Username      string          `json:"username" db:"username"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	TotalWagered  decimal.Decimal `json:"totalWagered" db:"total_wagered"`
	TotalWinnings decimal.Decimal `json:"totalWinnings" db:"total_winnings"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

// NetProfit is total winnings minus total wagered.
func (a *Account) NetProfit() decimal.Decimal {
	return a.TotalWinnings.Sub(a.TotalWagered)
}

// Clone returns a copy of the account.
func (a *Account) Clone() *Account {
	c := *a
	return &c
}

// BetRecord is an immutable entry in a player's bet history.
type BetRecord struct {
	ID        string          `json:"id" db:"id"`
	Game      GameType        `json:"game" db:"game"`
	BetAmount decimal.Decimal `json:"betAmount" db:"bet_amount"`
	Result    BetResult       `json:"result" db:"result"`
	Payout    decimal.Decimal `json:"payout" db:"payout"`
	Timestamp time.Time       `json:"timestamp" db:"created_at"`
}

// DefaultHistoryLimit is the number of bet records kept per account.
const DefaultHistoryLimit = 20

// DefaultInitialBalance is the balance of a freshly created account.
var DefaultInitialBalance = decimal.NewFromInt(1000)

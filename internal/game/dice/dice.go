// Package dice implements roll-under/roll-over dice on a 1–100 roll.
package dice

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"stakesim/internal/game"
	"stakesim/internal/model"
	"stakesim/internal/rng"
)

const (
	// DefaultHouseEdge is the fraction withheld from every fair payout.
	DefaultHouseEdge = 0.02

	// MinTarget and MaxTarget are exclusive bounds on the target number.
	MinTarget = 2
	MaxTarget = 99

	// DefaultTarget is used when no target is given.
	DefaultTarget = 50
)

// Mode selects which side of the target wins.
type Mode string

const (
	ModeUnder Mode = "under"
	ModeOver  Mode = "over"
)

// ParseMode parses a mode string; empty means under.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeUnder:
		return ModeUnder, nil
	case ModeOver:
		return ModeOver, nil
	}
	return "", fmt.Errorf("%w: dice mode must be under or over, got %q", game.ErrInvalidConfiguration, s)
}

// Config holds configuration for the dice game.
type Config struct {
	HouseEdge float64
}

// DiceGame implements game.Game.
type DiceGame struct {
	houseEdge float64
}

// New creates a new DiceGame with the given configuration.
func New(cfg *Config) *DiceGame {
	edge := DefaultHouseEdge
	if cfg != nil && cfg.HouseEdge > 0 && cfg.HouseEdge < 1 {
		edge = cfg.HouseEdge
	}
	return &DiceGame{houseEdge: edge}
}

func (g *DiceGame) Type() model.GameType { return model.GameDice }
func (g *DiceGame) Name() string         { return "Dice" }

func (g *DiceGame) Description() string {
	return "Pick a target between 3 and 98 and roll under (or over) it on a 1-100 roll."
}

// HouseEdge returns the configured house edge.
func (g *DiceGame) HouseEdge() float64 {
	return g.houseEdge
}

// NewRound validates target and mode. Params: "target" (int), "mode" (under|over).
func (g *DiceGame) NewRound(bet decimal.Decimal, params map[string]any) (game.Round, error) {
	if err := game.ValidateBet(bet); err != nil {
		return nil, err
	}

	target, err := game.IntParam(params, "target", DefaultTarget)
	if err != nil {
		return nil, err
	}
	if err := ValidateTarget(target); err != nil {
		return nil, err
	}

	modeStr, _ := game.ExtractString(params, "mode")
	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	return &round{
		bet:        bet,
		target:     target,
		mode:       mode,
		multiplier: Multiplier(target, mode, g.houseEdge),
	}, nil
}

type round struct {
	bet        decimal.Decimal
	target     int
	mode       Mode
	multiplier float64
}

func (r *round) Start(src rng.Source) *game.Step {
	roll := Roll(src)
	details := map[string]any{
		"roll":       roll,
		"target":     r.target,
		"mode":       string(r.mode),
		"winChance":  WinChance(r.target, r.mode),
		"multiplier": r.multiplier,
	}

	res := &game.Resolution{Result: model.ResultLoss, Outcome: "loss", Payout: decimal.Zero, Details: details}
	if IsWin(roll, r.target, r.mode) {
		res.Result = model.ResultWin
		res.Outcome = "win"
		res.Multiplier = r.multiplier
		res.Payout = game.Payout(r.bet, r.multiplier)
	}
	return &game.Step{Multiplier: r.multiplier, Details: details, Resolution: res}
}

func (r *round) Progress(rng.Source, game.Action) (*game.Step, error) {
	return nil, fmt.Errorf("%w: dice resolves on the roll", game.ErrIllegalAction)
}

func (r *round) CashOut() (*game.Resolution, error) {
	return nil, fmt.Errorf("%w: dice has no cash out", game.ErrIllegalAction)
}

// Roll draws a uniform integer in [1, 100].
func Roll(src rng.Source) int {
	return rng.IntN(src, 100) + 1
}

// ValidateTarget enforces 2 < target < 99.
func ValidateTarget(target int) error {
	if target <= MinTarget || target >= MaxTarget {
		return fmt.Errorf("%w: target must be between %d and %d exclusive, got %d",
			game.ErrInvalidConfiguration, MinTarget, MaxTarget, target)
	}
	return nil
}

// WinChance is the winning percentage: target−1 for under, 100−target for over.
func WinChance(target int, mode Mode) float64 {
	if mode == ModeOver {
		return float64(100 - target)
	}
	return float64(target - 1)
}

// Multiplier is (100 / winChance) × (1 − houseEdge). It is not rounded;
// payouts are rounded to cents, so float error never reaches the ledger.
func Multiplier(target int, mode Mode, houseEdge float64) float64 {
	return 100 / WinChance(target, mode) * (1 - houseEdge)
}

// IsWin reports whether roll beats target in the given mode.
func IsWin(roll, target int, mode Mode) bool {
	if mode == ModeOver {
		return roll > target
	}
	return roll < target
}

// CalculatePayout returns the payout for a finished roll.
func CalculatePayout(roll, target int, mode Mode, houseEdge float64, bet decimal.Decimal) decimal.Decimal {
	if !IsWin(roll, target, mode) {
		return decimal.Zero
	}
	return game.Payout(bet, Multiplier(target, mode, houseEdge))
}

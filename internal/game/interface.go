// Package game defines the round interfaces, the bet lifecycle session and
// the registry shared by every game.
package game

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"stakesim/internal/model"
	"stakesim/internal/rng"
)

// Engine errors. Game packages wrap these so callers can use errors.Is.
var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrIllegalAction        = errors.New("illegal action")
)

// ActionKind names a player or timer action applied to a running round.
type ActionKind string

const (
	ActionReveal ActionKind = "reveal"
	ActionHop    ActionKind = "hop"
	ActionHit    ActionKind = "hit"
	ActionStand  ActionKind = "stand"
	ActionDouble ActionKind = "double"
	ActionSplit  ActionKind = "split"
	ActionTick   ActionKind = "tick"
)

// Action is one step applied to a round in progress.
type Action struct {
	Kind    ActionKind
	Tile    int           // reveal: zero-based cell index
	Elapsed time.Duration // tick: virtual time advanced since the previous tick
}

// Resolution is the terminal outcome of a bet.
type Resolution struct {
	Result     model.BetResult
	Outcome    string
	Multiplier float64
	Payout     decimal.Decimal
	Details    map[string]any
}

// Step is what a round reports after starting or after a successful action.
// A non-nil Resolution means the round is over.
type Step struct {
	Multiplier float64
	Details    map[string]any
	Resolution *Resolution
}

// Round holds the per-bet progress of a single game.
type Round interface {
	// Start performs the initial draw. Single-shot games resolve here.
	Start(src rng.Source) *Step

	// Progress applies an action. Illegal actions return an error wrapping
	// ErrIllegalAction and leave the round unchanged.
	Progress(src rng.Source, action Action) (*Step, error)

	// CashOut settles the round at its current multiplier.
	CashOut() (*Resolution, error)
}

// StakeRaiser is implemented by rounds where an action adds to the wager.
// RaiseFor returns zero when the action does not raise the stake or is not
// currently legal.
type StakeRaiser interface {
	RaiseFor(action Action) decimal.Decimal
}

// Game builds rounds for one game type.
type Game interface {
	Type() model.GameType
	Name() string
	Description() string

	// NewRound validates the parameters and prepares a round for bet.
	// Invalid parameters return an error wrapping ErrInvalidConfiguration.
	NewRound(bet decimal.Decimal, params map[string]any) (Round, error)
}

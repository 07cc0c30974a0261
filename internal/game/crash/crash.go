// Package crash implements the crash game: a multiplier grows with virtual
// time until a hidden crash point; the player must cash out before it.
package crash

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"stakesim/internal/game"
	"stakesim/internal/model"
	"stakesim/internal/rng"
)

const (
	// DefaultGrowthRate is k in 1 + (elapsed·k)^1.5, per second.
	DefaultGrowthRate = 0.1

	// HistorySize is the number of recent crash points kept.
	HistorySize = 10
)

// Band is one piece of the crash-point distribution.
type Band struct {
	Probability float64
	Min, Max    float64
}

// Distribution is the piecewise-uniform crash-point distribution.
var Distribution = []Band{
	{Probability: 0.50, Min: 1, Max: 2.5},
	{Probability: 0.30, Min: 2.5, Max: 5},
	{Probability: 0.15, Min: 5, Max: 15},
	{Probability: 0.05, Min: 15, Max: 50},
}

// Config holds configuration for the crash game.
type Config struct {
	GrowthRate float64
}

// CrashGame implements game.Game.
type CrashGame struct {
	k float64

	mu      sync.Mutex
	history []float64
}

// New creates a CrashGame.
func New(cfg *Config) *CrashGame {
	k := DefaultGrowthRate
	if cfg != nil && cfg.GrowthRate > 0 {
		k = cfg.GrowthRate
	}
	return &CrashGame{k: k}
}

func (g *CrashGame) Type() model.GameType { return model.GameCrash }
func (g *CrashGame) Name() string         { return "Crash" }
func (g *CrashGame) GrowthRate() float64  { return g.k }

func (g *CrashGame) Description() string {
	return "The multiplier climbs until it crashes. Cash out before the crash to win bet × multiplier."
}

// NewRound takes no parameters beyond the bet.
func (g *CrashGame) NewRound(bet decimal.Decimal, _ map[string]any) (game.Round, error) {
	if err := game.ValidateBet(bet); err != nil {
		return nil, err
	}
	return &round{game: g, bet: bet}, nil
}

// History returns the most recent crash points, newest first.
func (g *CrashGame) History() []float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]float64, len(g.history))
	copy(out, g.history)
	return out
}

func (g *CrashGame) remember(point float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.history = append([]float64{point}, g.history...)
	if len(g.history) > HistorySize {
		g.history = g.history[:HistorySize]
	}
}

type round struct {
	game       *CrashGame
	bet        decimal.Decimal
	crashPoint float64
	elapsed    time.Duration
	ticks      int
}

func (r *round) Start(src rng.Source) *game.Step {
	r.crashPoint = DrawCrashPoint(src)
	return &game.Step{Multiplier: 1, Details: map[string]any{"elapsed": time.Duration(0)}}
}

func (r *round) Progress(_ rng.Source, action game.Action) (*game.Step, error) {
	if action.Kind != game.ActionTick {
		return nil, fmt.Errorf("%w: crash only advances by tick, got %s", game.ErrIllegalAction, action.Kind)
	}
	if action.Elapsed <= 0 {
		return nil, fmt.Errorf("%w: tick must advance time", game.ErrIllegalAction)
	}

	r.elapsed += action.Elapsed
	m := MultiplierAt(r.elapsed, r.game.k)
	details := map[string]any{"elapsed": r.elapsed}

	if m >= r.crashPoint {
		details["crashPoint"] = r.crashPoint
		r.game.remember(r.crashPoint)
		return &game.Step{
			Multiplier: r.crashPoint,
			Details:    details,
			Resolution: &game.Resolution{
				Result:     model.ResultLoss,
				Outcome:    "crashed",
				Multiplier: r.crashPoint,
				Payout:     decimal.Zero,
				Details:    details,
			},
		}, nil
	}

	r.ticks++
	return &game.Step{Multiplier: m, Details: details}, nil
}

func (r *round) CashOut() (*game.Resolution, error) {
	if r.ticks == 0 {
		return nil, fmt.Errorf("%w: the round has not started climbing", game.ErrIllegalAction)
	}
	m := MultiplierAt(r.elapsed, r.game.k)
	r.game.remember(r.crashPoint)
	return &game.Resolution{
		Result:     model.ResultWin,
		Outcome:    "cashout",
		Multiplier: m,
		Payout:     game.Payout(r.bet, m),
		Details:    map[string]any{"elapsed": r.elapsed, "crashPoint": r.crashPoint},
	}, nil
}

// DrawCrashPoint picks a band by probability, then a uniform point inside it.
func DrawCrashPoint(src rng.Source) float64 {
	u := src.Float64()
	acc := 0.0
	for _, b := range Distribution {
		acc += b.Probability
		if u < acc {
			return rng.Uniform(src, b.Min, b.Max)
		}
	}
	last := Distribution[len(Distribution)-1]
	return rng.Uniform(src, last.Min, last.Max)
}

// MultiplierAt is 1 + (elapsed·k)^1.5 with elapsed in seconds.
func MultiplierAt(elapsed time.Duration, k float64) float64 {
	if elapsed <= 0 {
		return 1
	}
	return 1 + math.Pow(elapsed.Seconds()*k, 1.5)
}

// ElapsedFor is the inverse of MultiplierAt: the virtual time at which the
// multiplier reaches m.
func ElapsedFor(m, k float64) time.Duration {
	if m <= 1 {
		return 0
	}
	secs := math.Pow(m-1, 2.0/3.0) / k
	return time.Duration(secs * float64(time.Second))
}

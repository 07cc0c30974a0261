// Package sim plays many rounds of one game against an in-memory account
// and reports the observed return to player.
package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"stakesim/internal/game"
	"stakesim/internal/ledger"
	"stakesim/internal/model"
	"stakesim/internal/repository"
	"stakesim/internal/rng"
)

// Strategy defaults.
const (
	DefaultRounds    = 10000
	DefaultReveals   = 3
	DefaultHops      = 3
	DefaultCashOutAt = 2.0
	DefaultCrashTick = 100 * time.Millisecond
	DefaultStandOn   = 17
)

// Options describes one simulation run.
type Options struct {
	Game   model.GameType
	Rounds int
	Bet    decimal.Decimal
	Seed   uint64
	Params map[string]any

	// Progressive strategies: mines reveals, lane-hop hops, crash target
	// multiplier, and the blackjack total to stand on.
	Reveals   int
	Hops      int
	CashOutAt float64
	CrashTick time.Duration
	StandOn   int
}

func (o Options) withDefaults() Options {
	if o.Rounds <= 0 {
		o.Rounds = DefaultRounds
	}
	if !o.Bet.IsPositive() {
		o.Bet = decimal.NewFromInt(1)
	}
	if o.Reveals <= 0 {
		o.Reveals = DefaultReveals
	}
	if o.Hops <= 0 {
		o.Hops = DefaultHops
	}
	if o.CashOutAt <= 1 {
		o.CashOutAt = DefaultCashOutAt
	}
	if o.CrashTick <= 0 {
		o.CrashTick = DefaultCrashTick
	}
	if o.StandOn <= 0 {
		o.StandOn = DefaultStandOn
	}
	return o
}

// Report summarises a run.
type Report struct {
	Game          model.GameType
	Rounds        int
	Wins          int
	Wagered       decimal.Decimal
	Returned      decimal.Decimal
	MaxMultiplier float64
	Elapsed       time.Duration
}

// RTP is returned / wagered.
func (r *Report) RTP() float64 {
	if r.Wagered.IsZero() {
		return 0
	}
	return r.Returned.Div(r.Wagered).InexactFloat64()
}

// WinRate is the fraction of rounds recorded as wins.
func (r *Report) WinRate() float64 {
	if r.Rounds == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Rounds)
}

// Run plays opts.Rounds rounds of opts.Game from registry.
func Run(ctx context.Context, registry *game.Registry, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	g, ok := registry.Get(opts.Game)
	if !ok {
		return nil, fmt.Errorf("unknown game %q", opts.Game)
	}
	play, err := strategyFor(opts)
	if err != nil {
		return nil, err
	}

	// blackjack can at most quadruple the stake with a split and two doubles
	bankroll := opts.Bet.Mul(decimal.NewFromInt(int64(opts.Rounds) * 4))
	l, _, err := ledger.Open(ctx, repository.NewMemoryStore(), "simulator", ledger.Config{InitialBalance: bankroll})
	if err != nil {
		return nil, err
	}

	seed := opts.Seed
	if seed == 0 {
		seed = rng.NewSeed()
	}
	src := rng.NewSeeded(seed)

	report := &Report{Game: opts.Game, Wagered: decimal.Zero, Returned: decimal.Zero}
	hook := game.WithResolveHook(func(_ context.Context, rec model.BetRecord, res *game.Resolution) {
		report.Rounds++
		if rec.Result == model.ResultWin {
			report.Wins++
		}
		report.Wagered = report.Wagered.Add(rec.BetAmount)
		report.Returned = report.Returned.Add(rec.Payout)
		if res.Multiplier > report.MaxMultiplier {
			report.MaxMultiplier = res.Multiplier
		}
	})

	start := time.Now()
	for i := 0; i < opts.Rounds; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		s := game.NewSession(g, l, src, hook)
		if err := s.Configure(opts.Bet, opts.Params); err != nil {
			return nil, err
		}
		u, err := s.PlaceBet(ctx)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", i+1, err)
		}
		if u.Resolution == nil {
			if err := play(ctx, s, u); err != nil {
				return nil, fmt.Errorf("round %d: %w", i+1, err)
			}
		}
	}
	report.Elapsed = time.Since(start)
	return report, nil
}

// strategy drives a placed round to resolution.
type strategy func(ctx context.Context, s *game.Session, u *game.Update) error

func strategyFor(opts Options) (strategy, error) {
	switch opts.Game {
	case model.GameDice, model.GamePlinko:
		return func(context.Context, *game.Session, *game.Update) error {
			return errors.New("single-shot round did not resolve")
		}, nil
	case model.GameMines:
		return stepThenCashOut(opts.Reveals, func(i int) game.Action {
			return game.Action{Kind: game.ActionReveal, Tile: i}
		}), nil
	case model.GameLaneHop:
		return stepThenCashOut(opts.Hops, func(int) game.Action {
			return game.Action{Kind: game.ActionHop}
		}), nil
	case model.GameCrash:
		return crashStrategy(opts.CashOutAt, opts.CrashTick), nil
	case model.GameBlackjack:
		return blackjackStrategy(opts.StandOn), nil
	}
	return nil, fmt.Errorf("no strategy for %q", opts.Game)
}

// stepThenCashOut takes n successful steps, then cashes out.
func stepThenCashOut(n int, action func(i int) game.Action) strategy {
	return func(ctx context.Context, s *game.Session, u *game.Update) error {
		var err error
		for i := 0; i < n; i++ {
			u, err = s.Progress(ctx, action(i))
			if err != nil {
				return err
			}
			if u.Resolution != nil {
				return nil
			}
		}
		_, err = s.CashOut(ctx)
		return err
	}
}

// crashStrategy ticks until the multiplier reaches target, then cashes out.
func crashStrategy(target float64, tick time.Duration) strategy {
	return func(ctx context.Context, s *game.Session, u *game.Update) error {
		var err error
		for u.Multiplier < target {
			u, err = s.Progress(ctx, game.Action{Kind: game.ActionTick, Elapsed: tick})
			if err != nil {
				return err
			}
			if u.Resolution != nil {
				return nil
			}
		}
		_, err = s.CashOut(ctx)
		return err
	}
}

// blackjackStrategy hits below standOn and stands otherwise.
func blackjackStrategy(standOn int) strategy {
	return func(ctx context.Context, s *game.Session, u *game.Update) error {
		for u.Resolution == nil {
			kind := game.ActionStand
			if handValue(u.Details) < standOn {
				kind = game.ActionHit
			}
			var err error
			u, err = s.Progress(ctx, game.Action{Kind: kind})
			if err != nil {
				return err
			}
		}
		return nil
	}
}

func handValue(details map[string]any) int {
	hands, _ := details["hands"].([]map[string]any)
	cur, _ := details["current"].(int)
	if cur < 0 || cur >= len(hands) {
		return 0
	}
	v, _ := hands[cur]["value"].(int)
	return v
}

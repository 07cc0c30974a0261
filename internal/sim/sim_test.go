package sim

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakesim/internal/game"
	"stakesim/internal/game/blackjack"
	"stakesim/internal/game/crash"
	"stakesim/internal/game/dice"
	"stakesim/internal/game/lanehop"
	"stakesim/internal/game/mines"
	"stakesim/internal/game/plinko"
	"stakesim/internal/model"
)

func registry(t *testing.T) *game.Registry {
	t.Helper()
	r := game.NewRegistry()
	for _, g := range []game.Game{
		dice.New(nil),
		mines.New(nil),
		crash.New(nil),
		blackjack.New(),
		plinko.New(nil),
		lanehop.New(nil),
	} {
		require.NoError(t, r.Register(g))
	}
	return r
}

func TestObservedRTP(t *testing.T) {
	cases := []struct {
		name   string
		opts   Options
		expect float64
	}{
		{"dice under 50", Options{Game: model.GameDice, Params: map[string]any{"target": 50}}, 0.98},
		{"dice over 60", Options{Game: model.GameDice, Params: map[string]any{"target": 60, "mode": "over"}}, 0.98},
		{"plinko medium 8", Options{Game: model.GamePlinko}, 0.99},
		{"mines 3 reveals", Options{Game: model.GameMines, Params: map[string]any{"mines": 3}}, 1.0},
		{"lanehop 3 hops", Options{Game: model.GameLaneHop, Params: map[string]any{"risk": "medium"}}, 0.97 * 0.97 * 0.97},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := tc.opts
			opts.Rounds = 20000
			opts.Seed = 42
			opts.Bet = decimal.NewFromInt(10)

			report, err := Run(context.Background(), registry(t), opts)
			require.NoError(t, err)
			assert.Equal(t, 20000, report.Rounds)
			assert.True(t, report.Wagered.Equal(decimal.NewFromInt(200000)))
			assert.InDelta(t, tc.expect, report.RTP(), 0.05)
		})
	}
}

func TestDeterministicForSeed(t *testing.T) {
	opts := Options{Game: model.GameCrash, Rounds: 500, Seed: 7, Bet: decimal.NewFromInt(1), CashOutAt: 1.5}

	a, err := Run(context.Background(), registry(t), opts)
	require.NoError(t, err)
	b, err := Run(context.Background(), registry(t), opts)
	require.NoError(t, err)

	assert.True(t, a.Returned.Equal(b.Returned))
	assert.Equal(t, a.Wins, b.Wins)
	assert.Greater(t, a.MaxMultiplier, 1.0)
}

func TestBlackjackRaisesCountAsWagered(t *testing.T) {
	report, err := Run(context.Background(), registry(t), Options{Game: model.GameBlackjack, Rounds: 2000, Seed: 3, Bet: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.Equal(t, 2000, report.Rounds)
	assert.True(t, report.Wagered.GreaterThanOrEqual(decimal.NewFromInt(2000)))
	assert.InDelta(t, 0.95, report.RTP(), 0.15)
}

func TestRunRejectsUnknownGame(t *testing.T) {
	_, err := Run(context.Background(), registry(t), Options{Game: "roulette"})
	assert.Error(t, err)
}

func TestRunRejectsBadParams(t *testing.T) {
	_, err := Run(context.Background(), registry(t), Options{Game: model.GameMines, Rounds: 1, Params: map[string]any{"mines": 30}})
	assert.ErrorIs(t, err, game.ErrInvalidConfiguration)
}

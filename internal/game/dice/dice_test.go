package dice

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"stakesim/internal/game"
	"stakesim/internal/model"
	"stakesim/internal/rng"
)

type wallet struct {
	balance decimal.Decimal
	records []model.BetRecord
}

func (w *wallet) Balance() decimal.Decimal { return w.balance }
func (w *wallet) Debit(_ context.Context, a decimal.Decimal) error {
	w.balance = w.balance.Sub(a)
	return nil
}
func (w *wallet) Credit(_ context.Context, a decimal.Decimal) error {
	w.balance = w.balance.Add(a)
	return nil
}
func (w *wallet) Refund(_ context.Context, a decimal.Decimal) error {
	w.balance = w.balance.Add(a)
	return nil
}
func (w *wallet) RecordBet(_ context.Context, r model.BetRecord) error {
	w.records = append(w.records, r)
	return nil
}

func TestRoll(t *testing.T) {
	tests := []struct {
		u    float64
		want int
	}{
		{0, 1},
		{0.295, 30},
		{0.5, 51},
		{0.999999, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Roll(rng.NewFixed(tt.u)), "u=%v", tt.u)
	}
}

func TestValidateTarget(t *testing.T) {
	for _, target := range []int{-5, 0, 1, 2, 99, 100} {
		assert.ErrorIs(t, ValidateTarget(target), game.ErrInvalidConfiguration, "target %d", target)
	}
	for _, target := range []int{3, 50, 98} {
		assert.NoError(t, ValidateTarget(target), "target %d", target)
	}
}

func TestIsWin(t *testing.T) {
	assert.True(t, IsWin(49, 50, ModeUnder))
	assert.False(t, IsWin(50, 50, ModeUnder))
	assert.True(t, IsWin(51, 50, ModeOver))
	assert.False(t, IsWin(50, 50, ModeOver))
}

// Expected return is 98% of the bet for every valid target in both modes.
func TestExpectedReturnProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		target := rapid.IntRange(MinTarget+1, MaxTarget-1).Draw(t, "target")
		mode := rapid.SampledFrom([]Mode{ModeUnder, ModeOver}).Draw(t, "mode")

		wins := 0
		for roll := 1; roll <= 100; roll++ {
			if IsWin(roll, target, mode) {
				wins++
			}
		}
		rtp := float64(wins) / 100 * Multiplier(target, mode, DefaultHouseEdge)
		if rtp < 0.98-1e-9 || rtp > 0.98+1e-9 {
			t.Fatalf("target %d mode %s: rtp %v", target, mode, rtp)
		}
	})
}

func TestMultiplierAtTarget50(t *testing.T) {
	assert.InDelta(t, 2.0, Multiplier(50, ModeUnder, DefaultHouseEdge), 1e-9)
}

func TestNewRoundValidation(t *testing.T) {
	g := New(nil)
	bet := decimal.NewFromInt(10)

	_, err := g.NewRound(bet, map[string]any{"target": 2})
	assert.ErrorIs(t, err, game.ErrInvalidConfiguration)
	_, err = g.NewRound(bet, map[string]any{"target": 99})
	assert.ErrorIs(t, err, game.ErrInvalidConfiguration)
	_, err = g.NewRound(bet, map[string]any{"target": []int{1}})
	assert.ErrorIs(t, err, game.ErrInvalidConfiguration)
	_, err = g.NewRound(bet, map[string]any{"target": 50, "mode": "sideways"})
	assert.ErrorIs(t, err, game.ErrInvalidConfiguration)
	_, err = g.NewRound(decimal.Zero, map[string]any{"target": 50})
	assert.ErrorIs(t, err, game.ErrInvalidConfiguration)

	_, err = g.NewRound(bet, map[string]any{"target": 50, "mode": "over"})
	assert.NoError(t, err)
}

// Bet 10 on target 50 under; a roll of 30 pays about 20 and the balance
// moves by −10 then +payout.
func TestScenarioRollUnderWin(t *testing.T) {
	ctx := context.Background()
	w := &wallet{balance: decimal.NewFromInt(1000)}
	s := game.NewSession(New(nil), w, rng.NewFixed(0.295))

	require.NoError(t, s.Configure(decimal.NewFromInt(10), map[string]any{"target": 50}))
	u, err := s.PlaceBet(ctx)
	require.NoError(t, err)

	require.NotNil(t, u.Resolution)
	assert.Equal(t, game.StateResolved, u.State)
	assert.Equal(t, 30, u.Resolution.Details["roll"])
	assert.Equal(t, model.ResultWin, u.Resolution.Result)
	assert.InDelta(t, 20.0, u.Resolution.Payout.InexactFloat64(), 0.01)
	assert.InDelta(t, 1010.0, w.balance.InexactFloat64(), 0.01)
	require.Len(t, w.records, 1)
	assert.Equal(t, model.GameDice, w.records[0].Game)
}

func TestScenarioRollUnderLoss(t *testing.T) {
	ctx := context.Background()
	w := &wallet{balance: decimal.NewFromInt(100)}
	s := game.NewSession(New(nil), w, rng.NewFixed(0.7))

	require.NoError(t, s.Configure(decimal.NewFromInt(10), map[string]any{"target": 50}))
	u, err := s.PlaceBet(ctx)
	require.NoError(t, err)

	assert.Equal(t, model.ResultLoss, u.Resolution.Result)
	assert.True(t, u.Resolution.Payout.IsZero())
	assert.True(t, w.balance.Equal(decimal.NewFromInt(90)))
	require.Len(t, w.records, 1)
	assert.Equal(t, model.ResultLoss, w.records[0].Result)
}

func TestCalculatePayout(t *testing.T) {
	bet := decimal.NewFromInt(10)
	assert.True(t, CalculatePayout(60, 50, ModeUnder, DefaultHouseEdge, bet).IsZero())
	assert.InDelta(t, 20.0, CalculatePayout(10, 50, ModeUnder, DefaultHouseEdge, bet).InexactFloat64(), 0.01)
	assert.InDelta(t, 490.0, CalculatePayout(99, 98, ModeOver, DefaultHouseEdge, bet).InexactFloat64(), 0.01)
}

package handler

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"stakesim/internal/game"
	"stakesim/internal/model"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"10", "10", true},
		{" 2.50 ", "2.5", true},
		{"0.01", "0.01", true},
		{"0", "", false},
		{"-5", "", false},
		{"1.005", "", false},
		{"abc", "", false},
	}

	for _, tt := range tests {
		got, err := parseAmount(tt.in)
		if !tt.ok {
			assert.ErrorIs(t, err, errBadAmount, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "input %q: got %s", tt.in, got)
	}
}

func TestAccountName(t *testing.T) {
	assert.Equal(t, "alice", accountName(&tele.User{ID: 1, Username: "Alice"}))
	assert.Equal(t, "id42", accountName(&tele.User{ID: 42}))
}

func TestFormatUpdate_Resolved(t *testing.T) {
	u := &game.Update{
		State:      game.StateResolved,
		Multiplier: 1.98,
		Details:    map[string]any{"roll": 37, "target": 50, "mode": "under"},
		Resolution: &game.Resolution{
			Result:     model.ResultWin,
			Outcome:    "win",
			Multiplier: 1.98,
			Payout:     decimal.RequireFromString("19.80"),
		},
	}

	out := formatUpdate(model.GameDice, u)
	assert.Contains(t, out, "Rolled 37")
	assert.Contains(t, out, "🎉")
	assert.Contains(t, out, "payout 19.80")
}

func TestFormatUpdate_InProgress(t *testing.T) {
	u := &game.Update{
		State:      game.StatePlaying,
		Multiplier: 1.1316,
		Potential:  decimal.RequireFromString("11.32"),
		Details: map[string]any{
			"tiles":    25,
			"revealed": []int{0, 6},
		},
	}

	out := formatUpdate(model.GameMines, u)
	assert.Contains(t, out, "💎⬜⬜⬜⬜\n⬜💎⬜⬜⬜\n")
	assert.Contains(t, out, "cash out now for 11.32")
}

func TestFormatUpdate_Blackjack(t *testing.T) {
	u := &game.Update{
		State: game.StatePlaying,
		Details: map[string]any{
			"dealer":      []string{"K♠", "??"},
			"dealerValue": 10,
			"current":     0,
			"hands": []map[string]any{
				{"cards": []string{"9♥", "7♦"}, "value": 16},
			},
		},
	}

	out := formatUpdate(model.GameBlackjack, u)
	assert.Contains(t, out, "Dealer: K♠ ??")
	assert.Contains(t, out, "Hand 1: 9♥ 7♦ (16)")
}

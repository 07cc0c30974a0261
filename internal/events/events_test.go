package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakesim/internal/model"
)

func TestEncodeBetResolved(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := model.BetRecord{
		ID:        "8f14e45f-ceea-467f-a0c6-4b8f2d2b7a10",
		Game:      model.GameCrash,
		BetAmount: decimal.NewFromInt(10),
		Result:    model.ResultWin,
		Payout:    decimal.RequireFromString("25"),
		Timestamp: at,
	}

	data, err := Encode(NewBetResolved("alice", rec, "cashout", 2.5))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, TypeBetResolved, got["type"])
	assert.Equal(t, "alice", got["username"])
	assert.EqualValues(t, at.UnixMilli(), got["timestamp"])

	payload := got["data"].(map[string]any)
	assert.Equal(t, "crash", payload["game"])
	assert.Equal(t, "win", payload["result"])
	assert.Equal(t, "cashout", payload["outcome"])
	assert.Equal(t, "25", payload["payout"])
	assert.Equal(t, "10", payload["betAmount"])
	assert.InDelta(t, 2.5, payload["multiplier"], 1e-9)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(Event{Type: TypeBetResolved}))
	p.Close()
}

package service

import (
	"sync"

	"github.com/shopspring/decimal"

	"stakesim/internal/model"
)

// RTPStat is the observed return for one game.
type RTPStat struct {
	Game     model.GameType
	Bets     int
	Wins     int
	Wagered  decimal.Decimal
	Returned decimal.Decimal
}

// RTP is returned / wagered, or zero before the first bet.
func (s RTPStat) RTP() float64 {
	if s.Wagered.IsZero() {
		return 0
	}
	return s.Returned.Div(s.Wagered).InexactFloat64()
}

// RTPTracker accumulates wagered and returned totals per game.
type RTPTracker struct {
	mu    sync.Mutex
	stats map[model.GameType]*RTPStat
}

// NewRTPTracker creates an empty tracker.
func NewRTPTracker() *RTPTracker {
	return &RTPTracker{stats: make(map[model.GameType]*RTPStat)}
}

// Record adds one settled bet.
func (t *RTPTracker) Record(rec model.BetRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stats[rec.Game]
	if !ok {
		s = &RTPStat{Game: rec.Game, Wagered: decimal.Zero, Returned: decimal.Zero}
		t.stats[rec.Game] = s
	}
	s.Bets++
	if rec.Result == model.ResultWin {
		s.Wins++
	}
	s.Wagered = s.Wagered.Add(rec.BetAmount)
	s.Returned = s.Returned.Add(rec.Payout)
}

// Stat returns the totals for one game.
func (t *RTPTracker) Stat(g model.GameType) RTPStat {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.stats[g]; ok {
		return *s
	}
	return RTPStat{Game: g, Wagered: decimal.Zero, Returned: decimal.Zero}
}

// Snapshot returns the totals of every game that has seen a bet, in the
// standard game order.
func (t *RTPTracker) Snapshot() []RTPStat {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]RTPStat, 0, len(t.stats))
	for _, g := range model.GameTypes() {
		if s, ok := t.stats[g]; ok {
			out = append(out, *s)
		}
	}
	return out
}

package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakesim/internal/model"
	"stakesim/internal/rng"
)

// memLedger records every ledger call.
type memLedger struct {
	mu      sync.Mutex
	balance decimal.Decimal
	debits  []decimal.Decimal
	credits []decimal.Decimal
	refunds []decimal.Decimal
	records []model.BetRecord

	// failDebits and failCredits make the next n calls fail.
	failDebits  int
	failCredits int
}

var errStoreDown = errors.New("store unavailable")

func newMemLedger(balance int64) *memLedger {
	return &memLedger{balance: decimal.NewFromInt(balance)}
}

func (l *memLedger) Balance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

func (l *memLedger) Debit(_ context.Context, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failDebits > 0 {
		l.failDebits--
		return errStoreDown
	}
	l.balance = l.balance.Sub(amount)
	l.debits = append(l.debits, amount)
	return nil
}

func (l *memLedger) Credit(_ context.Context, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failCredits > 0 {
		l.failCredits--
		return errStoreDown
	}
	l.balance = l.balance.Add(amount)
	l.credits = append(l.credits, amount)
	return nil
}

func (l *memLedger) Refund(_ context.Context, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance = l.balance.Add(amount)
	l.refunds = append(l.refunds, amount)
	return nil
}

func (l *memLedger) RecordBet(_ context.Context, rec model.BetRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

// coinGame doubles the multiplier on every surviving flip (u < 0.5).
type coinGame struct{}

func (coinGame) Type() model.GameType { return "coin" }
func (coinGame) Name() string         { return "Coin" }
func (coinGame) Description() string  { return "flip until you stop" }

func (coinGame) NewRound(bet decimal.Decimal, params map[string]any) (Round, error) {
	instant, _ := params["instant"].(bool)
	rejectDouble, _ := params["rejectDouble"].(bool)
	if _, bad := params["bad"]; bad {
		return nil, fmt.Errorf("%w: bad param", ErrInvalidConfiguration)
	}
	return &coinRound{bet: bet, instant: instant, rejectDouble: rejectDouble, multiplier: 1}, nil
}

type coinRound struct {
	bet          decimal.Decimal
	instant      bool
	rejectDouble bool
	multiplier   float64
	flips        int
}

func (r *coinRound) Start(rng.Source) *Step {
	if r.instant {
		return &Step{Multiplier: 2, Resolution: &Resolution{
			Result: model.ResultWin, Outcome: "win", Multiplier: 2, Payout: Payout(r.bet, 2),
		}}
	}
	return &Step{Multiplier: 1}
}

func (r *coinRound) Progress(src rng.Source, a Action) (*Step, error) {
	switch a.Kind {
	case ActionHop:
	case ActionDouble:
		if r.rejectDouble {
			return nil, fmt.Errorf("%w: double not allowed", ErrIllegalAction)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrIllegalAction, a.Kind)
	}
	if src.Float64() >= 0.5 {
		return &Step{Resolution: &Resolution{Result: model.ResultLoss, Outcome: "tails", Payout: decimal.Zero}}, nil
	}
	r.flips++
	r.multiplier *= 2
	return &Step{Multiplier: r.multiplier}, nil
}

func (r *coinRound) CashOut() (*Resolution, error) {
	if r.flips == 0 {
		return nil, fmt.Errorf("%w: no flips", ErrIllegalAction)
	}
	return &Resolution{Result: model.ResultWin, Outcome: "cashout", Multiplier: r.multiplier, Payout: Payout(r.bet, r.multiplier)}, nil
}

func (r *coinRound) RaiseFor(a Action) decimal.Decimal {
	if a.Kind == ActionDouble {
		return r.bet
	}
	return decimal.Zero
}

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestSessionSingleShot(t *testing.T) {
	ctx := context.Background()
	l := newMemLedger(100)
	s := NewSession(coinGame{}, l, rng.NewFixed(0.1))

	require.NoError(t, s.Configure(d(10), map[string]any{"instant": true}))
	u, err := s.PlaceBet(ctx)
	require.NoError(t, err)

	assert.Equal(t, StateResolved, u.State)
	require.NotNil(t, u.Resolution)
	assert.True(t, u.Resolution.Payout.Equal(d(20)))
	assert.True(t, l.Balance().Equal(d(110)))
	assert.Len(t, l.debits, 1)
	assert.Len(t, l.credits, 1)
	require.Len(t, l.records, 1)
	assert.Equal(t, model.ResultWin, l.records[0].Result)
	assert.True(t, l.records[0].BetAmount.Equal(d(10)))
	assert.NotEmpty(t, l.records[0].ID)
}

func TestSessionCashOut(t *testing.T) {
	ctx := context.Background()
	l := newMemLedger(100)
	s := NewSession(coinGame{}, l, rng.NewFixed(0.1))

	require.NoError(t, s.Configure(d(10), nil))
	u, err := s.PlaceBet(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatePlaying, u.State)
	assert.True(t, l.Balance().Equal(d(90)))

	_, err = s.CashOut(ctx)
	assert.ErrorIs(t, err, ErrIllegalAction, "cash out before any step")

	u, err = s.Progress(ctx, Action{Kind: ActionHop})
	require.NoError(t, err)
	assert.Equal(t, 2.0, u.Multiplier)
	assert.True(t, u.Potential.Equal(d(20)))

	u, err = s.CashOut(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateResolved, u.State)
	assert.True(t, l.Balance().Equal(d(110)))

	_, err = s.CashOut(ctx)
	assert.ErrorIs(t, err, ErrIllegalAction, "second cash out")
	assert.Len(t, l.credits, 1)
	assert.Len(t, l.records, 1)
}

func TestSessionFailureCreditsZero(t *testing.T) {
	ctx := context.Background()
	l := newMemLedger(100)
	s := NewSession(coinGame{}, l, rng.NewFixed(0.9))

	require.NoError(t, s.Configure(d(10), nil))
	_, err := s.PlaceBet(ctx)
	require.NoError(t, err)

	u, err := s.Progress(ctx, Action{Kind: ActionHop})
	require.NoError(t, err)
	assert.Equal(t, StateResolved, u.State)
	require.Len(t, l.credits, 1)
	assert.True(t, l.credits[0].IsZero())
	assert.Equal(t, model.ResultLoss, l.records[0].Result)

	_, err = s.Progress(ctx, Action{Kind: ActionHop})
	assert.ErrorIs(t, err, ErrIllegalAction)
	_, err = s.CashOut(ctx)
	assert.ErrorIs(t, err, ErrIllegalAction)
}

func TestSessionPlaceBetValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("insufficient funds", func(t *testing.T) {
		l := newMemLedger(5)
		s := NewSession(coinGame{}, l, rng.NewFixed(0.1))
		require.NoError(t, s.Configure(d(10), nil))
		_, err := s.PlaceBet(ctx)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, StateSetup, s.State())
		assert.Empty(t, l.debits)
	})

	t.Run("bet equal to balance", func(t *testing.T) {
		l := newMemLedger(10)
		s := NewSession(coinGame{}, l, rng.NewFixed(0.1))
		require.NoError(t, s.Configure(d(10), nil))
		_, err := s.PlaceBet(ctx)
		require.NoError(t, err)
		assert.True(t, l.Balance().IsZero())
	})

	t.Run("non-positive bet", func(t *testing.T) {
		s := NewSession(coinGame{}, newMemLedger(10), rng.NewFixed(0.1))
		assert.ErrorIs(t, s.Configure(d(0), nil), ErrInvalidConfiguration)
		assert.ErrorIs(t, s.Configure(d(-1), nil), ErrInvalidConfiguration)
	})

	t.Run("invalid params", func(t *testing.T) {
		s := NewSession(coinGame{}, newMemLedger(10), rng.NewFixed(0.1))
		assert.ErrorIs(t, s.Configure(d(1), map[string]any{"bad": 1}), ErrInvalidConfiguration)
	})

	t.Run("not configured", func(t *testing.T) {
		s := NewSession(coinGame{}, newMemLedger(10), rng.NewFixed(0.1))
		_, err := s.PlaceBet(ctx)
		assert.ErrorIs(t, err, ErrIllegalAction)
	})
}

func TestSessionRaiseStake(t *testing.T) {
	ctx := context.Background()
	l := newMemLedger(15)
	s := NewSession(coinGame{}, l, rng.NewFixed(0.1))

	require.NoError(t, s.Configure(d(10), nil))
	_, err := s.PlaceBet(ctx)
	require.NoError(t, err)

	_, err = s.Progress(ctx, Action{Kind: ActionDouble})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Len(t, l.debits, 1)

	l.balance = d(100)
	_, err = s.Progress(ctx, Action{Kind: ActionDouble})
	require.NoError(t, err)
	assert.True(t, s.Stake().Equal(d(20)))
	assert.Len(t, l.debits, 2)
}

func TestSessionRaiseDebitFailureLeavesRoundUntouched(t *testing.T) {
	ctx := context.Background()
	l := newMemLedger(100)
	s := NewSession(coinGame{}, l, rng.NewFixed(0.1))

	require.NoError(t, s.Configure(d(10), nil))
	_, err := s.PlaceBet(ctx)
	require.NoError(t, err)

	l.failDebits = 1
	_, err = s.Progress(ctx, Action{Kind: ActionDouble})
	require.ErrorIs(t, err, errStoreDown)
	assert.True(t, s.Stake().Equal(d(10)))
	assert.Equal(t, 1.0, s.Snapshot().Multiplier, "round must not advance")

	u, err := s.Progress(ctx, Action{Kind: ActionDouble})
	require.NoError(t, err)
	assert.Equal(t, 2.0, u.Multiplier)
	assert.True(t, s.Stake().Equal(d(20)))
}

func TestSessionRaiseRefundedWhenActionRejected(t *testing.T) {
	ctx := context.Background()
	l := newMemLedger(100)
	s := NewSession(coinGame{}, l, rng.NewFixed(0.1))

	require.NoError(t, s.Configure(d(10), map[string]any{"rejectDouble": true}))
	_, err := s.PlaceBet(ctx)
	require.NoError(t, err)

	_, err = s.Progress(ctx, Action{Kind: ActionDouble})
	require.ErrorIs(t, err, ErrIllegalAction)
	assert.Len(t, l.debits, 2)
	require.Len(t, l.refunds, 1)
	assert.True(t, l.refunds[0].Equal(d(10)))
	assert.True(t, l.Balance().Equal(d(90)))
	assert.True(t, s.Stake().Equal(d(10)))
	assert.Equal(t, StatePlaying, s.State())
}

func TestSessionCreditFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	l := newMemLedger(100)
	s := NewSession(coinGame{}, l, rng.NewFixed(0.1))

	require.NoError(t, s.Configure(d(10), nil))
	_, err := s.PlaceBet(ctx)
	require.NoError(t, err)
	_, err = s.Progress(ctx, Action{Kind: ActionHop})
	require.NoError(t, err)

	l.failCredits = 1
	_, err = s.CashOut(ctx)
	require.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, StatePlaying, s.State())
	assert.True(t, s.Pending())
	assert.True(t, l.Balance().Equal(d(90)))
	assert.Empty(t, l.records)

	u, err := s.CashOut(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateResolved, u.State)
	require.NotNil(t, u.Resolution)
	assert.Equal(t, "cashout", u.Resolution.Outcome)
	assert.False(t, s.Pending())
	assert.True(t, l.Balance().Equal(d(110)))
	assert.Len(t, l.credits, 1)
	assert.Len(t, l.records, 1)

	_, err = s.CashOut(ctx)
	assert.ErrorIs(t, err, ErrIllegalAction)
	assert.Len(t, l.credits, 1)
}

func TestSessionSingleShotCreditFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	l := newMemLedger(100)
	l.failCredits = 1
	s := NewSession(coinGame{}, l, rng.NewFixed(0.1))

	require.NoError(t, s.Configure(d(10), map[string]any{"instant": true}))
	_, err := s.PlaceBet(ctx)
	require.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, StatePlaced, s.State())
	assert.True(t, s.Pending())

	u, err := s.Progress(ctx, Action{Kind: ActionHop})
	require.NoError(t, err)
	assert.Equal(t, StateResolved, u.State)
	assert.True(t, l.Balance().Equal(d(110)))
	assert.Len(t, l.records, 1)
}

func TestSessionResetSettlesPendingResolution(t *testing.T) {
	ctx := context.Background()
	l := newMemLedger(100)
	s := NewSession(coinGame{}, l, rng.NewFixed(0.1))

	require.NoError(t, s.Configure(d(10), nil))
	_, err := s.PlaceBet(ctx)
	require.NoError(t, err)
	_, err = s.Progress(ctx, Action{Kind: ActionHop})
	require.NoError(t, err)

	l.failCredits = 2
	_, err = s.CashOut(ctx)
	require.Error(t, err)

	// Still failing: nothing changes.
	require.ErrorIs(t, s.Reset(ctx), errStoreDown)
	assert.True(t, s.Pending())
	assert.Equal(t, StatePlaying, s.State())

	require.NoError(t, s.Reset(ctx))
	assert.Equal(t, StateSetup, s.State())
	assert.True(t, l.Balance().Equal(d(110)))
	require.Len(t, l.records, 1)
	assert.Equal(t, model.ResultWin, l.records[0].Result)
}

func TestSessionResetForfeits(t *testing.T) {
	ctx := context.Background()
	l := newMemLedger(100)
	s := NewSession(coinGame{}, l, rng.NewFixed(0.1))

	require.NoError(t, s.Configure(d(10), nil))
	_, err := s.PlaceBet(ctx)
	require.NoError(t, err)
	_, err = s.Progress(ctx, Action{Kind: ActionHop})
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))
	assert.Equal(t, StateSetup, s.State())
	assert.True(t, l.Balance().Equal(d(90)))
	require.Len(t, l.records, 1)
	assert.Equal(t, model.ResultLoss, l.records[0].Result)
	require.Len(t, l.credits, 1)
	assert.True(t, l.credits[0].IsZero())

	// Reset from Resolved or Setup moves no funds.
	require.NoError(t, s.Reset(ctx))
	assert.Len(t, l.records, 1)
}

func TestSessionResolveHook(t *testing.T) {
	ctx := context.Background()
	var got []model.BetRecord
	s := NewSession(coinGame{}, newMemLedger(100), rng.NewFixed(0.1),
		WithResolveHook(func(_ context.Context, rec model.BetRecord, _ *Resolution) {
			got = append(got, rec)
		}))

	require.NoError(t, s.Configure(d(10), map[string]any{"instant": true}))
	_, err := s.PlaceBet(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.GameType("coin"), got[0].Game)
}

func TestSessionConcurrentCashOutSettlesOnce(t *testing.T) {
	ctx := context.Background()
	l := newMemLedger(100)
	s := NewSession(coinGame{}, l, rng.NewFixed(0.1))

	require.NoError(t, s.Configure(d(10), nil))
	_, err := s.PlaceBet(ctx)
	require.NoError(t, err)
	_, err = s.Progress(ctx, Action{Kind: ActionHop})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.CashOut(ctx)
		}()
	}
	wg.Wait()

	assert.Len(t, l.credits, 1)
	assert.Len(t, l.records, 1)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(coinGame{}))
	assert.Error(t, r.Register(nil))

	g, ok := r.Get("coin")
	require.True(t, ok)
	assert.Equal(t, "Coin", g.Name())
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, []string{"coin"}, r.Types())
	assert.True(t, r.Unregister("coin"))
	assert.False(t, r.Unregister("coin"))
}

func TestParseRisk(t *testing.T) {
	r, err := ParseRisk("HIGH")
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, r)

	_, err = ParseRisk("extreme")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestExtractInt(t *testing.T) {
	params := map[string]any{"a": 3, "b": int64(4), "c": 5.0, "d": "6", "e": "x", "f": 5.5, "g": "9x"}
	for key, want := range map[string]int{"a": 3, "b": 4, "c": 5, "d": 6} {
		v, ok := ExtractInt(params, key)
		assert.True(t, ok, key)
		assert.Equal(t, want, v, key)
	}
	for _, key := range []string{"e", "f", "g"} {
		_, ok := ExtractInt(params, key)
		assert.False(t, ok, key)
	}
	_, ok := ExtractInt(params, "missing")
	assert.False(t, ok)
}

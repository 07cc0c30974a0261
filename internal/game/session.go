package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stakesim/internal/model"
	"stakesim/internal/rng"
)

// State is a position in the bet lifecycle.
type State int

const (
	StateSetup State = iota
	StatePlaced
	StatePlaying
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StatePlaced:
		return "placed"
	case StatePlaying:
		return "playing"
	case StateResolved:
		return "resolved"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// OutcomeAbandoned marks a round forfeited by a reset before resolution.
const OutcomeAbandoned = "abandoned"

// Ledger is the account a session debits and credits.
type Ledger interface {
	Balance() decimal.Decimal
	Debit(ctx context.Context, amount decimal.Decimal) error
	Credit(ctx context.Context, amount decimal.Decimal) error
	// Refund returns a debit whose action did not take effect.
	Refund(ctx context.Context, amount decimal.Decimal) error
	RecordBet(ctx context.Context, rec model.BetRecord) error
}

// ResolveFunc observes every settled bet.
type ResolveFunc func(ctx context.Context, rec model.BetRecord, res *Resolution)

// Update is the view of a session returned after each operation.
type Update struct {
	State      State
	Multiplier float64
	Potential  decimal.Decimal
	Details    map[string]any
	Resolution *Resolution
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock overrides the timestamp source for bet records.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithResolveHook registers fn to run after each settlement.
func WithResolveHook(fn ResolveFunc) SessionOption {
	return func(s *Session) { s.onResolve = fn }
}

// Session drives one game through Setup → Placed → Playing → Resolved.
// The mutex doubles as the resolution guard: a cash-out and a timer-driven
// loss can never both settle the same bet.
type Session struct {
	mu        sync.Mutex
	game      Game
	ledger    Ledger
	src       rng.Source
	now       func() time.Time
	onResolve ResolveFunc

	state      State
	bet        decimal.Decimal
	round      Round
	stake      decimal.Decimal
	steps      int
	last       *Step
	resolution *Resolution

	// pending holds a resolution whose credit failed. The next Progress,
	// CashOut or Reset retries it before doing anything else.
	pending *Resolution
}

// NewSession creates a session in the Setup state.
func NewSession(g Game, l Ledger, src rng.Source, opts ...SessionOption) *Session {
	s := &Session{
		game:   g,
		ledger: l,
		src:    src,
		now:    time.Now,
		state:  StateSetup,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Game returns the game this session plays.
func (s *Session) Game() Game {
	return s.game
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stake returns the total amount debited for the current bet.
func (s *Session) Stake() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stake
}

// Snapshot returns the current view without changing anything.
func (s *Session) Snapshot() *Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update()
}

// Configure sets the bet and game parameters. Only legal in Setup.
func (s *Session) Configure(bet decimal.Decimal, params map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSetup {
		return fmt.Errorf("%w: cannot configure while %s", ErrIllegalAction, s.state)
	}
	if err := ValidateBet(bet); err != nil {
		return err
	}
	round, err := s.game.NewRound(bet, params)
	if err != nil {
		return err
	}

	s.bet = bet
	s.round = round
	return nil
}

// PlaceBet debits the configured bet and performs the initial draw.
func (s *Session) PlaceBet(ctx context.Context) (*Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSetup {
		return nil, fmt.Errorf("%w: cannot place a bet while %s", ErrIllegalAction, s.state)
	}
	if s.round == nil {
		return nil, fmt.Errorf("%w: bet is not configured", ErrIllegalAction)
	}
	if balance := s.ledger.Balance(); s.bet.GreaterThan(balance) {
		return nil, fmt.Errorf("%w: bet %s exceeds balance %s", ErrInsufficientFunds, s.bet.StringFixed(2), balance.StringFixed(2))
	}
	if err := s.ledger.Debit(ctx, s.bet); err != nil {
		return nil, fmt.Errorf("failed to debit bet: %w", err)
	}

	s.stake = s.bet
	s.steps = 0
	s.state = StatePlaced

	step := s.round.Start(s.src)
	s.last = step
	if step.Resolution != nil {
		if err := s.settle(ctx, step.Resolution); err != nil {
			return s.update(), err
		}
		return s.update(), nil
	}

	s.state = StatePlaying
	return s.update(), nil
}

// Pending reports whether a resolution is waiting for its credit to be
// retried.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Progress applies an action to the running round.
func (s *Session) Progress(ctx context.Context, action Action) (*Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		return s.retryPending(ctx)
	}
	if s.state != StatePlaying {
		return nil, fmt.Errorf("%w: no round in progress", ErrIllegalAction)
	}

	raise := decimal.Zero
	if r, ok := s.round.(StakeRaiser); ok {
		raise = r.RaiseFor(action)
	}
	// The raise is debited before the round changes so a failed debit
	// leaves the hand untouched.
	if raise.IsPositive() {
		if balance := s.ledger.Balance(); raise.GreaterThan(balance) {
			return nil, fmt.Errorf("%w: %s needs %s, balance is %s", ErrInsufficientFunds, action.Kind, raise.StringFixed(2), balance.StringFixed(2))
		}
		if err := s.ledger.Debit(ctx, raise); err != nil {
			return nil, fmt.Errorf("failed to debit %s: %w", action.Kind, err)
		}
	}

	step, err := s.round.Progress(s.src, action)
	if err != nil {
		if raise.IsPositive() {
			if rerr := s.ledger.Refund(ctx, raise); rerr != nil {
				return nil, fmt.Errorf("failed to refund %s after %v: %w", action.Kind, err, rerr)
			}
		}
		return nil, err
	}
	s.stake = s.stake.Add(raise)

	s.last = step
	if step.Resolution != nil {
		if err := s.settle(ctx, step.Resolution); err != nil {
			return s.update(), err
		}
		return s.update(), nil
	}

	s.steps++
	return s.update(), nil
}

// CashOut settles the running round at its current multiplier.
func (s *Session) CashOut(ctx context.Context) (*Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		return s.retryPending(ctx)
	}
	if s.state != StatePlaying {
		return nil, fmt.Errorf("%w: nothing to cash out", ErrIllegalAction)
	}
	if s.steps == 0 {
		return nil, fmt.Errorf("%w: cash out needs at least one successful step", ErrIllegalAction)
	}

	res, err := s.round.CashOut()
	if err != nil {
		return nil, err
	}
	if err := s.settle(ctx, res); err != nil {
		return s.update(), err
	}
	return s.update(), nil
}

// Reset returns the session to Setup. A round that has not resolved yet is
// forfeited as a loss; a pending resolution is settled as it stands.
// When that settlement fails the session is left as it was.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch {
	case s.pending != nil:
		err = s.settle(ctx, s.pending)
	case s.state == StatePlaced || s.state == StatePlaying:
		err = s.settle(ctx, &Resolution{
			Result:  model.ResultLoss,
			Outcome: OutcomeAbandoned,
			Payout:  decimal.Zero,
		})
	}
	if s.state != StateResolved && s.state != StateSetup {
		return err
	}

	s.state = StateSetup
	s.bet = decimal.Zero
	s.round = nil
	s.stake = decimal.Zero
	s.steps = 0
	s.last = nil
	s.resolution = nil
	s.pending = nil
	return err
}

func (s *Session) retryPending(ctx context.Context) (*Update, error) {
	if err := s.settle(ctx, s.pending); err != nil {
		return s.update(), err
	}
	return s.update(), nil
}

// settle credits the payout and records the bet. The session only becomes
// Resolved once the credit is stored; until then res stays pending.
// Callers hold s.mu.
func (s *Session) settle(ctx context.Context, res *Resolution) error {
	if s.resolution != nil {
		return fmt.Errorf("%w: bet already resolved", ErrIllegalAction)
	}

	if err := s.ledger.Credit(ctx, res.Payout); err != nil {
		s.pending = res
		return fmt.Errorf("failed to credit payout: %w", err)
	}
	s.pending = nil
	s.resolution = res
	s.state = StateResolved

	rec := model.BetRecord{
		ID:        uuid.NewString(),
		Game:      s.game.Type(),
		BetAmount: s.stake,
		Result:    res.Result,
		Payout:    res.Payout,
		Timestamp: s.now(),
	}

	if err := s.ledger.RecordBet(ctx, rec); err != nil {
		return fmt.Errorf("failed to record bet: %w", err)
	}
	if s.onResolve != nil {
		s.onResolve(ctx, rec, res)
	}
	return nil
}

func (s *Session) update() *Update {
	u := &Update{State: s.state, Resolution: s.resolution}
	if s.last != nil {
		u.Multiplier = s.last.Multiplier
		u.Details = s.last.Details
	}
	if s.state == StatePlaying && u.Multiplier > 0 {
		u.Potential = Payout(s.stake, u.Multiplier)
	}
	return u
}

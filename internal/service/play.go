package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"stakesim/internal/events"
	"stakesim/internal/game"
	"stakesim/internal/model"
	"stakesim/internal/pkg/lock"
	"stakesim/internal/rng"
)

// Play errors.
var (
	ErrUnknownGame   = errors.New("unknown game")
	ErrNoActiveRound = errors.New("no active round")
	ErrRoundActive   = errors.New("a round is already in progress")
)

// DefaultCrashTick is how much virtual time each crash tick advances.
const DefaultCrashTick = 500 * time.Millisecond

// DefaultLockTimeout bounds how long an action waits for the account lock.
const DefaultLockTimeout = 5 * time.Second

// Notifier is told about rounds that resolve outside a player action, such
// as a crash reaching its crash point.
type Notifier func(username string, g model.GameType, u *game.Update)

// PlayConfig tunes the play service.
type PlayConfig struct {
	CrashTick   time.Duration
	LockTimeout time.Duration
}

// active is a player's running round.
type active struct {
	session *game.Session
	stop    context.CancelFunc
}

// PlayService runs one game session per account.
type PlayService struct {
	accounts  *AccountService
	registry  *game.Registry
	src       rng.Source
	locks     *lock.KeyLock
	publisher events.Publisher
	tracker   *RTPTracker
	cfg       PlayConfig

	mu       sync.Mutex
	sessions map[string]*active
	notify   Notifier
	wg       sync.WaitGroup
}

// NewPlayService creates a new PlayService instance. A nil publisher or
// tracker disables that sink.
func NewPlayService(
	accounts *AccountService,
	registry *game.Registry,
	src rng.Source,
	locks *lock.KeyLock,
	publisher events.Publisher,
	tracker *RTPTracker,
	cfg PlayConfig,
) *PlayService {
	if cfg.CrashTick <= 0 {
		cfg.CrashTick = DefaultCrashTick
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if locks == nil {
		locks = lock.New()
	}
	return &PlayService{
		accounts:  accounts,
		registry:  registry,
		src:       src,
		locks:     locks,
		publisher: publisher,
		tracker:   tracker,
		cfg:       cfg,
		sessions:  make(map[string]*active),
	}
}

// SetNotifier registers the callback for timer-driven resolutions.
func (s *PlayService) SetNotifier(fn Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = fn
}

// Registry returns the game registry.
func (s *PlayService) Registry() *game.Registry {
	return s.registry
}

func (s *PlayService) withLock(ctx context.Context, username string, fn func() error) error {
	return s.locks.WithLockContext(ctx, username, s.cfg.LockTimeout, fn)
}

// Start configures and places a bet on gameType. Single-shot games come
// back resolved; progressive games stay active until resolved.
func (s *PlayService) Start(ctx context.Context, username string, gameType model.GameType, bet decimal.Decimal, params map[string]any) (*game.Update, error) {
	username = NormalizeUsername(username)
	g, ok := s.registry.Get(gameType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGame, gameType)
	}

	var update *game.Update
	err := s.withLock(ctx, username, func() error {
		if a := s.get(username); a != nil && a.session.State() != game.StateResolved {
			return fmt.Errorf("%w: %s", ErrRoundActive, a.session.Game().Type())
		}

		l, err := s.accounts.Ledger(ctx, username)
		if err != nil {
			return err
		}

		sess := game.NewSession(g, l, s.src, game.WithResolveHook(s.onResolve(username)))
		if err := sess.Configure(bet, params); err != nil {
			return err
		}
		update, err = sess.PlaceBet(ctx)
		if err != nil {
			// A debited bet whose payout could not be stored stays
			// active so CashOut or Reset can settle it.
			if sess.Pending() {
				s.track(username, sess)
			}
			return err
		}

		log.Debug().
			Str("username", username).
			Str("game", string(gameType)).
			Str("bet", bet.StringFixed(2)).
			Str("state", update.State.String()).
			Msg("Bet placed")

		if update.State == game.StatePlaying {
			s.track(username, sess)
		}
		return nil
	})
	return update, err
}

// Progress applies action to the player's running round.
func (s *PlayService) Progress(ctx context.Context, username string, action game.Action) (*game.Update, error) {
	username = NormalizeUsername(username)
	var update *game.Update
	err := s.withLock(ctx, username, func() error {
		a := s.get(username)
		if a == nil {
			return ErrNoActiveRound
		}
		var err error
		update, err = a.session.Progress(ctx, action)
		if err != nil {
			return err
		}
		if update.Resolution != nil {
			s.untrack(username, a.session)
		}
		return nil
	})
	return update, err
}

// CashOut settles the player's running round at its current multiplier.
func (s *PlayService) CashOut(ctx context.Context, username string) (*game.Update, error) {
	username = NormalizeUsername(username)
	var update *game.Update
	err := s.withLock(ctx, username, func() error {
		a := s.get(username)
		if a == nil {
			return ErrNoActiveRound
		}
		var err error
		update, err = a.session.CashOut(ctx)
		if err != nil {
			return err
		}
		s.untrack(username, a.session)
		return nil
	})
	return update, err
}

// Reset abandons the player's running round, forfeiting the stake.
// It reports whether there was a round to abandon.
func (s *PlayService) Reset(ctx context.Context, username string) (bool, error) {
	username = NormalizeUsername(username)
	var abandoned bool
	err := s.withLock(ctx, username, func() error {
		a := s.get(username)
		if a == nil {
			return nil
		}
		abandoned = a.session.State() != game.StateResolved
		s.untrack(username, a.session)
		return a.session.Reset(ctx)
	})
	return abandoned, err
}

// Active returns the player's running round, if any.
func (s *PlayService) Active(username string) (*game.Session, bool) {
	a := s.get(NormalizeUsername(username))
	if a == nil {
		return nil, false
	}
	return a.session, true
}

// Shutdown stops every crash ticker, waits for them to exit and then
// forfeits the rounds still running so each debited bet is recorded.
func (s *PlayService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	running := make(map[string]*game.Session, len(s.sessions))
	for username, a := range s.sessions {
		if a.stop != nil {
			a.stop()
		}
		running[username] = a.session
	}
	s.sessions = make(map[string]*active)
	s.mu.Unlock()
	s.wg.Wait()

	for username, sess := range running {
		if sess.State() == game.StateResolved {
			continue
		}
		err := s.locks.WithLockContext(ctx, username, s.cfg.LockTimeout, func() error {
			return sess.Reset(ctx)
		})
		if err != nil {
			log.Error().Err(err).Str("username", username).Msg("Failed to settle round on shutdown")
			continue
		}
		log.Info().Str("username", username).Str("game", string(sess.Game().Type())).Msg("Round abandoned on shutdown")
	}
}

func (s *PlayService) get(username string) *active {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[username]
}

func (s *PlayService) track(username string, sess *game.Session) {
	a := &active{session: sess}
	if sess.Game().Type() == model.GameCrash {
		ctx, cancel := context.WithCancel(context.Background())
		a.stop = cancel
		s.wg.Add(1)
		go s.runCrash(ctx, username, sess)
	}

	s.mu.Lock()
	s.sessions[username] = a
	s.mu.Unlock()
}

func (s *PlayService) untrack(username string, sess *game.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.sessions[username]
	if !ok || a.session != sess {
		return
	}
	if a.stop != nil {
		a.stop()
	}
	delete(s.sessions, username)
}

// runCrash advances a crash round by one tick per interval until it
// resolves. Cash-outs go through the same session mutex, so a tick that
// arrives after a cash-out is rejected instead of settling twice.
func (s *PlayService) runCrash(ctx context.Context, username string, sess *game.Session) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.CrashTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		update, err := sess.Progress(context.Background(), game.Action{Kind: game.ActionTick, Elapsed: s.cfg.CrashTick})
		if err != nil {
			if errors.Is(err, game.ErrIllegalAction) {
				return
			}
			// The resolution stays pending; the next tick retries it.
			log.Error().Err(err).Str("username", username).Msg("Crash tick failed")
			continue
		}
		if update.Resolution == nil {
			continue
		}

		s.untrack(username, sess)
		s.mu.Lock()
		notify := s.notify
		s.mu.Unlock()
		if notify != nil {
			notify(username, model.GameCrash, update)
		}
		return
	}
}

// onResolve feeds every settlement to the tracker and the event stream.
func (s *PlayService) onResolve(username string) game.ResolveFunc {
	return func(_ context.Context, rec model.BetRecord, res *game.Resolution) {
		if s.tracker != nil {
			s.tracker.Record(rec)
		}

		log.Info().
			Str("username", username).
			Str("game", string(rec.Game)).
			Str("bet", rec.BetAmount.StringFixed(2)).
			Str("result", string(rec.Result)).
			Str("outcome", res.Outcome).
			Float64("multiplier", res.Multiplier).
			Str("payout", rec.Payout.StringFixed(2)).
			Msg("Bet resolved")

		if err := s.publisher.Publish(events.NewBetResolved(username, rec, res.Outcome, res.Multiplier)); err != nil {
			log.Warn().Err(err).Str("bet_id", rec.ID).Msg("Failed to publish bet event")
		}
	}
}

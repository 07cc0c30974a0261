// Package blackjack implements single-deck blackjack against a dealer who
// draws to 17, with double and a single split.
package blackjack

import (
	"fmt"

	"github.com/shopspring/decimal"

	"stakesim/internal/game"
	"stakesim/internal/model"
	"stakesim/internal/rng"
)

// Payout multipliers on a hand's stake.
const (
	NaturalMultiplier = 2.5
	WinMultiplier     = 2.0
	PushMultiplier    = 1.0

	// DealerStandsOn is the total at which the dealer stops drawing.
	DealerStandsOn = 17
)

// Hand outcomes.
const (
	OutcomeBlackjack = "blackjack"
	OutcomeWin       = "win"
	OutcomePush      = "push"
	OutcomeLoss      = "loss"
	OutcomeBust      = "bust"
)

// BlackjackGame implements game.Game.
type BlackjackGame struct {
	deck func(rng.Source) []Card
}

// New creates a BlackjackGame.
func New() *BlackjackGame {
	return &BlackjackGame{deck: shuffledDeck}
}

func shuffledDeck(src rng.Source) []Card {
	deck := NewDeck()
	Shuffle(src, deck)
	return deck
}

func (g *BlackjackGame) Type() model.GameType { return model.GameBlackjack }
func (g *BlackjackGame) Name() string         { return "Blackjack" }

func (g *BlackjackGame) Description() string {
	return "Beat the dealer without going over 21. Blackjack pays 3:2, dealer stands on 17."
}

// NewRound takes no parameters beyond the bet.
func (g *BlackjackGame) NewRound(bet decimal.Decimal, _ map[string]any) (game.Round, error) {
	if err := game.ValidateBet(bet); err != nil {
		return nil, err
	}
	return &round{game: g, bet: bet}, nil
}

// Hand is one player hand with its own stake.
type Hand struct {
	Cards   []Card
	Stake   decimal.Decimal
	Doubled bool
	Done    bool
	Outcome string
}

// Busted reports a total above 21.
func (h *Hand) Busted() bool {
	return HandValue(h.Cards) > 21
}

type round struct {
	game    *BlackjackGame
	bet     decimal.Decimal
	deck    []Card
	next    int
	hands   []*Hand
	current int
	dealer  []Card
	split   bool
}

func (r *round) draw() Card {
	c := r.deck[r.next]
	r.next++
	return c
}

func (r *round) Start(src rng.Source) *game.Step {
	r.deck = r.game.deck(src)
	r.next = 0

	player := &Hand{Stake: r.bet}
	player.Cards = append(player.Cards, r.draw())
	r.dealer = append(r.dealer, r.draw())
	player.Cards = append(player.Cards, r.draw())
	r.dealer = append(r.dealer, r.draw())
	r.hands = []*Hand{player}

	if !IsNatural(player.Cards) {
		return &game.Step{Details: r.details(false)}
	}

	player.Done = true
	m := NaturalMultiplier
	player.Outcome = OutcomeBlackjack
	result := model.ResultWin
	if IsNatural(r.dealer) {
		m = PushMultiplier
		player.Outcome = OutcomePush
		result = model.ResultLoss
	}
	details := r.details(true)
	return &game.Step{
		Multiplier: m,
		Details:    details,
		Resolution: &game.Resolution{
			Result:     result,
			Outcome:    player.Outcome,
			Multiplier: m,
			Payout:     game.Payout(r.bet, m),
			Details:    details,
		},
	}
}

func (r *round) hand() *Hand {
	return r.hands[r.current]
}

func (r *round) canDouble() bool {
	h := r.hand()
	return len(h.Cards) == 2 && !h.Doubled
}

func (r *round) canSplit() bool {
	h := r.hand()
	return !r.split && len(r.hands) == 1 && len(h.Cards) == 2 && h.Cards[0].Rank == h.Cards[1].Rank
}

// RaiseFor implements game.StakeRaiser.
func (r *round) RaiseFor(action game.Action) decimal.Decimal {
	if r.current >= len(r.hands) {
		return decimal.Zero
	}
	switch action.Kind {
	case game.ActionDouble:
		if r.canDouble() {
			return r.hand().Stake
		}
	case game.ActionSplit:
		if r.canSplit() {
			return r.bet
		}
	}
	return decimal.Zero
}

func (r *round) Progress(_ rng.Source, action game.Action) (*game.Step, error) {
	if r.current >= len(r.hands) {
		return nil, fmt.Errorf("%w: all hands are finished", game.ErrIllegalAction)
	}
	h := r.hand()

	switch action.Kind {
	case game.ActionHit:
		h.Cards = append(h.Cards, r.draw())
		if h.Busted() {
			h.Done = true
			h.Outcome = OutcomeBust
		}
	case game.ActionStand:
		h.Done = true
	case game.ActionDouble:
		if !r.canDouble() {
			return nil, fmt.Errorf("%w: double is only allowed on the first two cards", game.ErrIllegalAction)
		}
		h.Doubled = true
		h.Stake = h.Stake.Mul(decimal.NewFromInt(2))
		h.Cards = append(h.Cards, r.draw())
		h.Done = true
		if h.Busted() {
			h.Outcome = OutcomeBust
		}
	case game.ActionSplit:
		if !r.canSplit() {
			return nil, fmt.Errorf("%w: split needs a pair on the first two cards", game.ErrIllegalAction)
		}
		first := &Hand{Cards: []Card{h.Cards[0]}, Stake: r.bet}
		second := &Hand{Cards: []Card{h.Cards[1]}, Stake: r.bet}
		first.Cards = append(first.Cards, r.draw())
		second.Cards = append(second.Cards, r.draw())
		r.hands = []*Hand{first, second}
		r.split = true
	default:
		return nil, fmt.Errorf("%w: blackjack does not accept %s", game.ErrIllegalAction, action.Kind)
	}

	for r.current < len(r.hands) && r.hands[r.current].Done {
		r.current++
	}
	if r.current < len(r.hands) {
		return &game.Step{Details: r.details(false)}, nil
	}

	res := r.finish()
	return &game.Step{Multiplier: res.Multiplier, Details: res.Details, Resolution: res}, nil
}

func (r *round) CashOut() (*game.Resolution, error) {
	return nil, fmt.Errorf("%w: blackjack has no cash out, stand instead", game.ErrIllegalAction)
}

// finish plays the dealer hand and settles every player hand.
func (r *round) finish() *game.Resolution {
	allBust := true
	for _, h := range r.hands {
		if !h.Busted() {
			allBust = false
		}
	}
	if !allBust {
		for HandValue(r.dealer) < DealerStandsOn {
			r.dealer = append(r.dealer, r.draw())
		}
	}

	dealer := HandValue(r.dealer)
	payout := decimal.Zero
	stake := decimal.Zero
	won, pushed := false, false
	for _, h := range r.hands {
		stake = stake.Add(h.Stake)
		player := HandValue(h.Cards)
		switch {
		case player > 21:
			h.Outcome = OutcomeBust
		case dealer > 21 || player > dealer:
			h.Outcome = OutcomeWin
			payout = payout.Add(game.Payout(h.Stake, WinMultiplier))
			won = true
		case player == dealer:
			h.Outcome = OutcomePush
			payout = payout.Add(game.Payout(h.Stake, PushMultiplier))
			pushed = true
		default:
			h.Outcome = OutcomeLoss
		}
	}

	res := &game.Resolution{
		Result:     model.ResultLoss,
		Outcome:    OutcomeLoss,
		Multiplier: payout.Div(stake).InexactFloat64(),
		Payout:     payout,
		Details:    r.details(true),
	}
	switch {
	case won:
		res.Result = model.ResultWin
		res.Outcome = OutcomeWin
	case pushed:
		res.Outcome = OutcomePush
	case allBust:
		res.Outcome = OutcomeBust
	}
	return res
}

func (r *round) details(revealDealer bool) map[string]any {
	hands := make([]map[string]any, len(r.hands))
	for i, h := range r.hands {
		hands[i] = map[string]any{
			"cards":   cardStrings(h.Cards),
			"value":   HandValue(h.Cards),
			"stake":   h.Stake,
			"doubled": h.Doubled,
			"outcome": h.Outcome,
		}
	}

	details := map[string]any{
		"hands":   hands,
		"current": r.current,
	}
	if revealDealer {
		details["dealer"] = cardStrings(r.dealer)
		details["dealerValue"] = HandValue(r.dealer)
	} else {
		details["dealer"] = []string{r.dealer[0].String(), "??"}
		details["dealerValue"] = r.dealer[0].Value()
	}
	return details
}

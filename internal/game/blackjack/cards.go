package blackjack

import "stakesim/internal/rng"

// Suits and ranks of a standard 52-card deck.
var (
	Suits = []string{"♠", "♥", "♦", "♣"}
	Ranks = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}
)

// Card is a single playing card.
type Card struct {
	Rank string
	Suit string
}

func (c Card) String() string {
	return c.Rank + c.Suit
}

// Value is the card's points with aces counted as 11.
func (c Card) Value() int {
	switch c.Rank {
	case "A":
		return 11
	case "J", "Q", "K":
		return 10
	}
	n := 0
	for _, ch := range c.Rank {
		n = n*10 + int(ch-'0')
	}
	return n
}

// NewDeck returns an ordered 52-card deck.
func NewDeck() []Card {
	deck := make([]Card, 0, len(Suits)*len(Ranks))
	for _, s := range Suits {
		for _, r := range Ranks {
			deck = append(deck, Card{Rank: r, Suit: s})
		}
	}
	return deck
}

// Shuffle permutes deck in place with Fisher–Yates.
func Shuffle(src rng.Source, deck []Card) {
	for i := len(deck) - 1; i > 0; i-- {
		j := rng.IntN(src, i+1)
		deck[i], deck[j] = deck[j], deck[i]
	}
}

// HandValue totals a hand, counting each ace as 1 instead of 11 while the
// total exceeds 21.
func HandValue(cards []Card) int {
	total, aces := 0, 0
	for _, c := range cards {
		total += c.Value()
		if c.Rank == "A" {
			aces++
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

// IsNatural reports a two-card 21.
func IsNatural(cards []Card) bool {
	return len(cards) == 2 && HandValue(cards) == 21
}

func cardStrings(cards []Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}

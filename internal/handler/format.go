// Package handler provides Telegram bot command handlers.
package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"stakesim/internal/game"
	"stakesim/internal/model"
	"stakesim/internal/pkg/lock"
	"stakesim/internal/repository"
	"stakesim/internal/service"
)

var errBadAmount = errors.New("amount must be a positive number with at most two decimals")

// accountName maps a Telegram sender to an account username.
func accountName(u *tele.User) string {
	if u.Username != "" {
		return service.NormalizeUsername(u.Username)
	}
	return "id" + strconv.FormatInt(u.ID, 10)
}

// parseAmount parses a currency amount in whole cents.
func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsPositive() || !d.Round(2).Equal(d) {
		return decimal.Zero, errBadAmount
	}
	return d, nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// replyError maps engine and service errors to user-facing replies.
func replyError(c tele.Context, err error) error {
	switch {
	case errors.Is(err, game.ErrInsufficientFunds):
		return c.Reply("❌ Insufficient balance.")
	case errors.Is(err, game.ErrInvalidConfiguration),
		errors.Is(err, game.ErrIllegalAction),
		errors.Is(err, errBadAmount),
		errors.Is(err, service.ErrUnknownGame),
		errors.Is(err, service.ErrInvalidUsername):
		return c.Reply("❌ " + err.Error())
	case errors.Is(err, service.ErrNoActiveRound):
		return c.Reply("❌ You have no round in progress.")
	case errors.Is(err, service.ErrRoundActive):
		return c.Reply("❌ Finish your current round first (/cashout or /reset).")
	case errors.Is(err, repository.ErrAccountNotFound):
		return c.Reply("❌ Account not found.")
	case errors.Is(err, lock.ErrLockTimeout):
		return c.Reply("⏳ Still processing your previous action, try again.")
	}

	log.Error().Err(err).Str("text", c.Text()).Msg("Command failed")
	return c.Reply("❌ Something went wrong, please try again later.")
}

// formatUpdate renders a session update for chat.
func formatUpdate(g model.GameType, u *game.Update) string {
	var b strings.Builder

	switch g {
	case model.GameDice:
		fmt.Fprintf(&b, "🎲 Rolled %v (target %v %v)\n", u.Details["roll"], u.Details["mode"], u.Details["target"])
	case model.GamePlinko:
		fmt.Fprintf(&b, "🔻 Ball landed in slot %v of %v rows (%v risk)\n", u.Details["slot"], u.Details["rows"], u.Details["risk"])
	case model.GameMines:
		writeMinesBoard(&b, u.Details)
	case model.GameLaneHop:
		fmt.Fprintf(&b, "🐸 Hops: %v (survival %.1f%%)\n", u.Details["hops"], asFloat(u.Details["survival"])*100)
	case model.GameCrash:
		if d, ok := u.Details["elapsed"].(time.Duration); ok {
			fmt.Fprintf(&b, "🚀 %s elapsed\n", d.Round(100*time.Millisecond))
		}
	case model.GameBlackjack:
		writeBlackjack(&b, u.Details)
	}

	if res := u.Resolution; res != nil {
		icon := "💥"
		if res.Result == model.ResultWin {
			icon = "🎉"
		}
		fmt.Fprintf(&b, "%s %s at %.2fx, payout %s", icon, res.Outcome, res.Multiplier, money(res.Payout))
		return b.String()
	}

	fmt.Fprintf(&b, "📈 Multiplier %.4fx", u.Multiplier)
	if u.Potential.IsPositive() {
		fmt.Fprintf(&b, ", cash out now for %s", money(u.Potential))
	}
	return b.String()
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

func writeMinesBoard(b *strings.Builder, details map[string]any) {
	tiles, _ := details["tiles"].(int)
	revealed := map[int]bool{}
	if rs, ok := details["revealed"].([]int); ok {
		for _, t := range rs {
			revealed[t] = true
		}
	}
	mines := map[int]bool{}
	if ms, ok := details["mineTiles"].([]int); ok {
		for _, t := range ms {
			mines[t] = true
		}
	}

	for i := 0; i < tiles; i++ {
		switch {
		case mines[i]:
			b.WriteString("💣")
		case revealed[i]:
			b.WriteString("💎")
		default:
			b.WriteString("⬜")
		}
		if (i+1)%5 == 0 {
			b.WriteString("\n")
		}
	}
	if tiles%5 != 0 {
		b.WriteString("\n")
	}
}

func writeBlackjack(b *strings.Builder, details map[string]any) {
	dealer, _ := details["dealer"].([]string)
	fmt.Fprintf(b, "🂠 Dealer: %s (%v)\n", strings.Join(dealer, " "), details["dealerValue"])

	hands, _ := details["hands"].([]map[string]any)
	current, _ := details["current"].(int)
	for i, h := range hands {
		cards, _ := h["cards"].([]string)
		marker := "  "
		if i == current && len(hands) > 1 {
			marker = "▶ "
		}
		fmt.Fprintf(b, "%s🃏 Hand %d: %s (%v)", marker, i+1, strings.Join(cards, " "), h["value"])
		if outcome, _ := h["outcome"].(string); outcome != "" {
			fmt.Fprintf(b, " → %s", outcome)
		}
		b.WriteString("\n")
	}
}

package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"stakesim/internal/model"
	"stakesim/internal/service"
)

// AccountHandler handles account-related commands.
type AccountHandler struct {
	accountService *service.AccountService
	playService    *service.PlayService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService *service.AccountService, playService *service.PlayService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		playService:    playService,
	}
}

// HandleStart logs the sender in, creating the account on first use.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	username := accountName(sender)

	l, created, err := h.accountService.Login(context.Background(), username)
	if err != nil {
		return replyError(c, err)
	}

	if created {
		return c.Reply(fmt.Sprintf(
			"🎉 Welcome, %s!\n\n"+
				"Your account starts with %s credits.\n\n"+
				"Games:\n"+
				"/dice <bet> <target> [under|over]\n"+
				"/plinko <bet> [low|medium|high] [8|12|16]\n"+
				"/mines <bet> <mines>, then /reveal <1-25>\n"+
				"/lanehop <bet> [risk], then /hop\n"+
				"/crash <bet>\n"+
				"/bj <bet>, then /hit /stand /double /split\n\n"+
				"/cashout, /reset, /balance, /history, /top, /rtp",
			username, money(l.Balance()),
		))
	}

	return c.Reply(fmt.Sprintf("👋 Welcome back, %s!\n\nBalance: %s", username, money(l.Balance())))
}

// HandleBalance shows balance and lifetime totals.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	account, err := h.accountService.GetAccount(context.Background(), accountName(sender))
	if err != nil {
		return replyError(c, err)
	}

	msg := fmt.Sprintf(
		"💰 Balance: %s\n"+
			"🎰 Wagered: %s\n"+
			"🏆 Won: %s\n"+
			"📊 Net: %s",
		money(account.Balance),
		money(account.TotalWagered),
		money(account.TotalWinnings),
		money(account.NetProfit()),
	)
	if s, ok := h.playService.Active(account.Username); ok {
		msg += fmt.Sprintf("\n\n▶ %s round in progress", s.Game().Name())
	}
	return c.Reply(msg)
}

// HandleHistory lists the most recent bets.
func (h *AccountHandler) HandleHistory(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	history, err := h.accountService.History(context.Background(), accountName(sender))
	if err != nil {
		return replyError(c, err)
	}
	if len(history) == 0 {
		return c.Reply("📜 No bets yet.")
	}

	var b strings.Builder
	b.WriteString("📜 Recent bets\n")
	for _, rec := range history {
		icon := "❌"
		if rec.Result == model.ResultWin {
			icon = "✅"
		}
		fmt.Fprintf(&b, "%s %s %-9s bet %s → %s\n",
			icon, rec.Timestamp.Format("01-02 15:04"), rec.Game, money(rec.BetAmount), money(rec.Payout))
	}
	return c.Reply(b.String())
}

// HandleResetBalance restores the starting balance. A running round is
// forfeited first.
func (h *AccountHandler) HandleResetBalance(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := context.Background()
	username := accountName(sender)

	if _, err := h.playService.Reset(ctx, username); err != nil {
		return replyError(c, err)
	}
	account, err := h.accountService.ResetBalance(ctx, username)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("🔄 Balance reset to %s", money(account.Balance)))
}

package handler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"stakesim/internal/service"
)

// AdminHandler handles admin-related commands.
type AdminHandler struct {
	accountService *service.AccountService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(accountService *service.AccountService) *AdminHandler {
	return &AdminHandler{accountService: accountService}
}

// HandleAdminSet overwrites a player's balance.
// Format: /admin_set <username> <amount>
func (h *AdminHandler) HandleAdminSet(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) != 2 {
		return c.Reply("❌ Usage: /admin_set <username> <amount>")
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return replyError(c, err)
	}

	account, err := h.accountService.SetBalance(context.Background(), args[0], amount)
	if err != nil {
		return replyError(c, err)
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Str("target", account.Username).
		Str("balance", money(account.Balance)).
		Str("operation", "admin_set").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf("✅ %s balance set to %s", account.Username, money(account.Balance)))
}

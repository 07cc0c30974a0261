package handler

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"stakesim/internal/game"
	"stakesim/internal/model"
	"stakesim/internal/service"
)

// GameHandler handles the game commands.
type GameHandler struct {
	playService *service.PlayService

	// chats maps a username to the chat its last round was started from,
	// so timer-driven results can be delivered.
	chats sync.Map
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(playService *service.PlayService) *GameHandler {
	return &GameHandler{playService: playService}
}

// Notifier returns a callback that posts rounds resolved outside of a
// command, such as a crash that busts between ticks.
func (h *GameHandler) Notifier(b *tele.Bot) service.Notifier {
	return func(username string, g model.GameType, u *game.Update) {
		v, ok := h.chats.Load(username)
		if !ok {
			return
		}
		chat := &tele.Chat{ID: v.(int64)}
		if _, err := b.Send(chat, "@"+username+"\n"+formatUpdate(g, u)); err != nil {
			log.Warn().Err(err).Str("username", username).Msg("Failed to deliver round result")
		}
	}
}

// start parses the bet from the first argument and opens a round.
func (h *GameHandler) start(c tele.Context, g model.GameType, usage string, params map[string]any) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: " + usage)
	}
	bet, err := parseAmount(args[0])
	if err != nil {
		return replyError(c, err)
	}

	username := accountName(sender)
	if chat := c.Chat(); chat != nil {
		h.chats.Store(username, chat.ID)
	}

	u, err := h.playService.Start(context.Background(), username, g, bet, params)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(formatUpdate(g, u))
}

func (h *GameHandler) progress(c tele.Context, action game.Action) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	username := accountName(sender)
	s, ok := h.playService.Active(username)
	if !ok {
		return replyError(c, service.ErrNoActiveRound)
	}
	u, err := h.playService.Progress(context.Background(), username, action)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(formatUpdate(s.Game().Type(), u))
}

// HandleDice handles /dice <bet> <target> [under|over].
func (h *GameHandler) HandleDice(c tele.Context) error {
	const usage = "/dice <bet> <target 3-98> [under|over]"
	args := c.Args()
	if len(args) < 2 {
		return c.Reply("❌ Usage: " + usage)
	}
	params := map[string]any{"target": args[1]}
	if len(args) > 2 {
		params["mode"] = args[2]
	}
	return h.start(c, model.GameDice, usage, params)
}

// HandlePlinko handles /plinko <bet> [low|medium|high] [8|12|16].
func (h *GameHandler) HandlePlinko(c tele.Context) error {
	args := c.Args()
	params := map[string]any{}
	if len(args) > 1 {
		params["risk"] = args[1]
	}
	if len(args) > 2 {
		params["rows"] = args[2]
	}
	return h.start(c, model.GamePlinko, "/plinko <bet> [low|medium|high] [8|12|16]", params)
}

// HandleMines handles /mines <bet> <mines>.
func (h *GameHandler) HandleMines(c tele.Context) error {
	const usage = "/mines <bet> <mines 1-24>"
	args := c.Args()
	if len(args) < 2 {
		return c.Reply("❌ Usage: " + usage)
	}
	return h.start(c, model.GameMines, usage, map[string]any{"mines": args[1]})
}

// HandleReveal handles /reveal <tile>, tiles numbered from 1.
func (h *GameHandler) HandleReveal(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Usage: /reveal <tile>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return c.Reply("❌ Tiles are numbered from 1.")
	}
	return h.progress(c, game.Action{Kind: game.ActionReveal, Tile: n - 1})
}

// HandleLaneHop handles /lanehop <bet> [low|medium|high].
func (h *GameHandler) HandleLaneHop(c tele.Context) error {
	args := c.Args()
	params := map[string]any{}
	if len(args) > 1 {
		params["risk"] = args[1]
	}
	return h.start(c, model.GameLaneHop, "/lanehop <bet> [low|medium|high]", params)
}

// HandleHop handles /hop.
func (h *GameHandler) HandleHop(c tele.Context) error {
	return h.progress(c, game.Action{Kind: game.ActionHop})
}

// HandleCrash handles /crash <bet>. The multiplier then climbs on its own
// until /cashout or the crash.
func (h *GameHandler) HandleCrash(c tele.Context) error {
	return h.start(c, model.GameCrash, "/crash <bet>", nil)
}

// HandleBlackjack handles /bj <bet>.
func (h *GameHandler) HandleBlackjack(c tele.Context) error {
	return h.start(c, model.GameBlackjack, "/bj <bet>", nil)
}

func (h *GameHandler) HandleHit(c tele.Context) error {
	return h.progress(c, game.Action{Kind: game.ActionHit})
}

func (h *GameHandler) HandleStand(c tele.Context) error {
	return h.progress(c, game.Action{Kind: game.ActionStand})
}

func (h *GameHandler) HandleDouble(c tele.Context) error {
	return h.progress(c, game.Action{Kind: game.ActionDouble})
}

func (h *GameHandler) HandleSplit(c tele.Context) error {
	return h.progress(c, game.Action{Kind: game.ActionSplit})
}

// HandleCashOut settles the running round at its current multiplier.
func (h *GameHandler) HandleCashOut(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	username := accountName(sender)
	s, ok := h.playService.Active(username)
	if !ok {
		return replyError(c, service.ErrNoActiveRound)
	}
	u, err := h.playService.CashOut(context.Background(), username)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(formatUpdate(s.Game().Type(), u))
}

// HandleReset abandons the running round. The stake is forfeited.
func (h *GameHandler) HandleReset(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	abandoned, err := h.playService.Reset(context.Background(), accountName(sender))
	if err != nil {
		return replyError(c, err)
	}
	if !abandoned {
		return c.Reply("Nothing to reset.")
	}
	return c.Reply("🗑 Round abandoned, stake forfeited.")
}

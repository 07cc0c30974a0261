// Package bot wires the Telegram front end to the wagering services.
package bot

import (
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"stakesim/internal/config"
	"stakesim/internal/game/crash"
	"stakesim/internal/handler"
	"stakesim/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	accountHandler *handler.AccountHandler
	adminHandler   *handler.AdminHandler
	rankingHandler *handler.RankingHandler
	gameHandler    *handler.GameHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config         *config.Config
	AccountService *service.AccountService
	PlayService    *service.PlayService
	RankingService *service.RankingService
	Tracker        *service.RTPTracker
	CrashGame      *crash.CrashGame
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: deps.Config.Bot.PollTimeout},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:            teleBot,
		cfg:            deps.Config,
		accountHandler: handler.NewAccountHandler(deps.AccountService, deps.PlayService),
		adminHandler:   handler.NewAdminHandler(deps.AccountService),
		rankingHandler: handler.NewRankingHandler(deps.RankingService, deps.Tracker, deps.CrashGame),
		gameHandler:    handler.NewGameHandler(deps.PlayService),
	}

	deps.PlayService.SetNotifier(b.gameHandler.Notifier(teleBot))

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
}

func (b *Bot) registerHandlers() {
	// Account
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)
	b.bot.Handle("/history", b.accountHandler.HandleHistory)
	b.bot.Handle("/reset_balance", b.accountHandler.HandleResetBalance)

	// Stats
	b.bot.Handle("/top", b.rankingHandler.HandleTop)
	b.bot.Handle("/rtp", b.rankingHandler.HandleRTP)

	// Single-shot games
	b.bot.Handle("/dice", b.gameHandler.HandleDice)
	b.bot.Handle("/plinko", b.gameHandler.HandlePlinko)

	// Multi-step games
	b.bot.Handle("/mines", b.gameHandler.HandleMines)
	b.bot.Handle("/reveal", b.gameHandler.HandleReveal)
	b.bot.Handle("/lanehop", b.gameHandler.HandleLaneHop)
	b.bot.Handle("/hop", b.gameHandler.HandleHop)
	b.bot.Handle("/crash", b.gameHandler.HandleCrash)
	b.bot.Handle("/bj", b.gameHandler.HandleBlackjack)
	b.bot.Handle("/hit", b.gameHandler.HandleHit)
	b.bot.Handle("/stand", b.gameHandler.HandleStand)
	b.bot.Handle("/double", b.gameHandler.HandleDouble)
	b.bot.Handle("/split", b.gameHandler.HandleSplit)
	b.bot.Handle("/cashout", b.gameHandler.HandleCashOut)
	b.bot.Handle("/reset", b.gameHandler.HandleReset)

	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/admin_set", b.adminHandler.HandleAdminSet)
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("bot", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}

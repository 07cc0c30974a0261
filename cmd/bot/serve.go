package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"stakesim/internal/bot"
	"stakesim/internal/config"
	"stakesim/internal/events"
	"stakesim/internal/game/crash"
	"stakesim/internal/ledger"
	"stakesim/internal/model"
	"stakesim/internal/pkg/db"
	"stakesim/internal/pkg/lock"
	"stakesim/internal/repository"
	"stakesim/internal/rng"
	"stakesim/internal/service"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, err := openPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	balance, err := cfg.Account.Balance()
	if err != nil {
		return err
	}

	registry, err := service.NewGameRegistry(service.GameOptions{
		DiceHouseEdge:   cfg.Games.Dice.HouseEdge,
		MinesTiles:      cfg.Games.Mines.Tiles,
		CrashGrowthRate: cfg.Games.Crash.GrowthRate,
		LaneHopRTP:      cfg.Games.LaneHop.RTP,
		PlinkoMode:      cfg.Games.Plinko.Mode,
		PlinkoRows:      cfg.Games.Plinko.Rows,
	})
	if err != nil {
		return err
	}
	log.Info().
		Int("game_count", registry.Count()).
		Msg("Games registered")

	var crashGame *crash.CrashGame
	if g, ok := registry.Get(model.GameCrash); ok {
		crashGame, _ = g.(*crash.CrashGame)
	}

	var src *rng.Locked
	if cfg.RNG.Seed != 0 {
		log.Warn().Uint64("seed", cfg.RNG.Seed).Msg("Using a fixed RNG seed")
		src = rng.NewSeeded(cfg.RNG.Seed)
	} else {
		src = rng.New()
	}

	accountService := service.NewAccountService(store, ledger.Config{
		InitialBalance: balance,
		HistoryLimit:   cfg.Account.HistoryLimit,
	})
	tracker := service.NewRTPTracker()
	playService := service.NewPlayService(
		accountService,
		registry,
		src,
		lock.New(),
		publisher,
		tracker,
		service.PlayConfig{CrashTick: cfg.Games.Crash.TickInterval},
	)
	defer playService.Shutdown(context.Background())

	telegramBot, err := bot.New(&bot.Dependencies{
		Config:         cfg,
		AccountService: accountService,
		PlayService:    playService,
		RankingService: service.NewRankingService(store),
		Tracker:        tracker,
		CrashGame:      crashGame,
	})
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go telegramBot.Start()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
	}

	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
	return nil
}

// openStore opens the configured account store. The returned func
// releases it.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	var store repository.Store
	release := func() {}

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		pool, err := db.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		store, release = repository.NewPostgresStore(pool), pool.Close
	case config.StorageBadger:
		log.Info().Str("path", cfg.Storage.BadgerPath).Msg("Opening badger store")
		bs, err := repository.NewBadgerStore(cfg.Storage.BadgerPath)
		if err != nil {
			return nil, nil, err
		}
		store = bs
	case config.StorageMemory:
		log.Warn().Msg("Using in-memory store, accounts are lost on exit")
		store = repository.NewMemoryStore()
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	return store, func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
		release()
	}, nil
}

func openPublisher(cfg *config.Config) (events.Publisher, error) {
	if !cfg.Events.Enabled {
		return events.NopPublisher{}, nil
	}
	p, err := events.NewNATSPublisher(cfg.Events.URL, cfg.Events.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return p, nil
}

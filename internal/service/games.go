package service

import (
	"fmt"

	"stakesim/internal/game"
	"stakesim/internal/game/blackjack"
	"stakesim/internal/game/crash"
	"stakesim/internal/game/dice"
	"stakesim/internal/game/lanehop"
	"stakesim/internal/game/mines"
	"stakesim/internal/game/plinko"
)

// GameOptions tunes the built-in games. Zero values select each game's
// defaults.
type GameOptions struct {
	DiceHouseEdge   float64
	MinesTiles      int
	CrashGrowthRate float64
	LaneHopRTP      float64
	PlinkoMode      string
	PlinkoRows      int
}

// NewGameRegistry registers all six games.
func NewGameRegistry(opts GameOptions) (*game.Registry, error) {
	registry := game.NewRegistry()
	games := []game.Game{
		dice.New(&dice.Config{HouseEdge: opts.DiceHouseEdge}),
		mines.New(&mines.Config{Tiles: opts.MinesTiles}),
		crash.New(&crash.Config{GrowthRate: opts.CrashGrowthRate}),
		blackjack.New(),
		plinko.New(&plinko.Config{Mode: plinko.Mode(opts.PlinkoMode), DefaultRows: opts.PlinkoRows}),
		lanehop.New(&lanehop.Config{RTP: opts.LaneHopRTP}),
	}
	for _, g := range games {
		if err := registry.Register(g); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", g.Type(), err)
		}
	}
	return registry, nil
}

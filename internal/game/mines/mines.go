// Package mines implements the mines grid: reveal safe cells and cash out
// before hitting a mine.
package mines

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"stakesim/internal/game"
	"stakesim/internal/model"
	"stakesim/internal/rng"
)

const (
	// DefaultTiles is the 5×5 grid size.
	DefaultTiles = 25
	// DefaultMines is used when no mine count is given.
	DefaultMines = 3
)

// Config holds configuration for the mines game.
type Config struct {
	Tiles int
}

// MinesGame implements game.Game.
type MinesGame struct {
	tiles int
}

// New creates a MinesGame.
func New(cfg *Config) *MinesGame {
	tiles := DefaultTiles
	if cfg != nil && cfg.Tiles > 1 {
		tiles = cfg.Tiles
	}
	return &MinesGame{tiles: tiles}
}

func (g *MinesGame) Type() model.GameType { return model.GameMines }
func (g *MinesGame) Name() string         { return "Mines" }
func (g *MinesGame) Tiles() int           { return g.tiles }

func (g *MinesGame) Description() string {
	return fmt.Sprintf("Reveal safe cells on a %d-cell grid; every safe cell raises the multiplier, a mine loses the bet.", g.tiles)
}

// NewRound validates the mine count. Params: "mines" (int).
func (g *MinesGame) NewRound(bet decimal.Decimal, params map[string]any) (game.Round, error) {
	if err := game.ValidateBet(bet); err != nil {
		return nil, err
	}

	count, err := game.IntParam(params, "mines", DefaultMines)
	if err != nil {
		return nil, err
	}
	if count < 1 || count >= g.tiles {
		return nil, fmt.Errorf("%w: mines must be between 1 and %d, got %d", game.ErrInvalidConfiguration, g.tiles-1, count)
	}

	return &round{
		bet:      bet,
		tiles:    g.tiles,
		count:    count,
		revealed: make(map[int]bool),
	}, nil
}

type round struct {
	bet      decimal.Decimal
	tiles    int
	count    int
	mines    map[int]bool
	revealed map[int]bool
}

func (r *round) Start(src rng.Source) *game.Step {
	r.mines = PlaceMines(src, r.tiles, r.count)
	return &game.Step{
		Multiplier: 1,
		Details:    map[string]any{"tiles": r.tiles, "mines": r.count, "revealed": []int{}},
	}
}

func (r *round) Progress(_ rng.Source, action game.Action) (*game.Step, error) {
	if action.Kind != game.ActionReveal {
		return nil, fmt.Errorf("%w: mines only accepts reveal, got %s", game.ErrIllegalAction, action.Kind)
	}
	tile := action.Tile
	if tile < 0 || tile >= r.tiles {
		return nil, fmt.Errorf("%w: tile %d is off the grid", game.ErrIllegalAction, tile)
	}
	if r.revealed[tile] {
		return nil, fmt.Errorf("%w: tile %d is already revealed", game.ErrIllegalAction, tile)
	}

	if r.mines[tile] {
		details := r.details()
		details["tile"] = tile
		details["mineTiles"] = r.mineTiles()
		return &game.Step{
			Details: details,
			Resolution: &game.Resolution{
				Result:  model.ResultLoss,
				Outcome: "mine",
				Payout:  decimal.Zero,
				Details: details,
			},
		}, nil
	}

	r.revealed[tile] = true
	m := Multiplier(r.tiles, r.count, len(r.revealed))
	details := r.details()
	details["tile"] = tile
	step := &game.Step{Multiplier: m, Details: details}

	if len(r.revealed) == r.tiles-r.count {
		details["mineTiles"] = r.mineTiles()
		step.Resolution = &game.Resolution{
			Result:     model.ResultWin,
			Outcome:    "cleared",
			Multiplier: m,
			Payout:     game.Payout(r.bet, m),
			Details:    details,
		}
	}
	return step, nil
}

func (r *round) CashOut() (*game.Resolution, error) {
	if len(r.revealed) == 0 {
		return nil, fmt.Errorf("%w: reveal at least one tile first", game.ErrIllegalAction)
	}
	m := Multiplier(r.tiles, r.count, len(r.revealed))
	details := r.details()
	details["mineTiles"] = r.mineTiles()
	return &game.Resolution{
		Result:     model.ResultWin,
		Outcome:    "cashout",
		Multiplier: m,
		Payout:     game.Payout(r.bet, m),
		Details:    details,
	}, nil
}

func (r *round) details() map[string]any {
	revealed := make([]int, 0, len(r.revealed))
	for t := range r.revealed {
		revealed = append(revealed, t)
	}
	sort.Ints(revealed)
	return map[string]any{"tiles": r.tiles, "mines": r.count, "revealed": revealed}
}

func (r *round) mineTiles() []int {
	out := make([]int, 0, len(r.mines))
	for t := range r.mines {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

// PlaceMines picks count distinct cells out of tiles with a partial
// Fisher–Yates shuffle.
func PlaceMines(src rng.Source, tiles, count int) map[int]bool {
	cells := make([]int, tiles)
	for i := range cells {
		cells[i] = i
	}
	for i := 0; i < count; i++ {
		j := i + rng.IntN(src, tiles-i)
		cells[i], cells[j] = cells[j], cells[i]
	}

	mines := make(map[int]bool, count)
	for _, c := range cells[:count] {
		mines[c] = true
	}
	return mines
}

// Multiplier is the fair hypergeometric multiplier after revealed safe cells:
// Π_{i<revealed} (tiles−i)/(safe−i) where safe = tiles − mines.
func Multiplier(tiles, mines, revealed int) float64 {
	safe := tiles - mines
	m := 1.0
	for i := 0; i < revealed; i++ {
		m *= float64(tiles-i) / float64(safe-i)
	}
	return m
}

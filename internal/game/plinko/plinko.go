// Package plinko implements plinko: a ball falls through rows of pegs into
// one of rows+1 slots, each with a multiplier that depends on risk.
package plinko

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"stakesim/internal/game"
	"stakesim/internal/model"
	"stakesim/internal/rng"
)

// Mode selects how the landing slot is drawn.
type Mode string

const (
	// ModePegs simulates one fair left/right deflection per row.
	ModePegs Mode = "pegs"
	// ModeTable draws the slot directly from the binomial distribution.
	ModeTable Mode = "table"
)

const (
	DefaultRows = 8
	DefaultRisk = game.RiskMedium
)

// Tables maps rows → risk → slot multipliers. Every table returns about 99%.
var Tables = map[int]map[game.Risk][]float64{
	8: {
		game.RiskLow:    {5.6, 2.1, 1.1, 1, 0.5, 1, 1.1, 2.1, 5.6},
		game.RiskMedium: {13, 3, 1.3, 0.7, 0.4, 0.7, 1.3, 3, 13},
		game.RiskHigh:   {29, 4, 1.5, 0.3, 0.2, 0.3, 1.5, 4, 29},
	},
	12: {
		game.RiskLow:    {10, 3, 1.6, 1.4, 1.1, 1, 0.5, 1, 1.1, 1.4, 1.6, 3, 10},
		game.RiskMedium: {33, 11, 4, 2, 1.1, 0.6, 0.3, 0.6, 1.1, 2, 4, 11, 33},
		game.RiskHigh:   {170, 24, 8.1, 2, 0.7, 0.2, 0.2, 0.2, 0.7, 2, 8.1, 24, 170},
	},
	16: {
		game.RiskLow:    {16, 9, 2, 1.4, 1.4, 1.2, 1.1, 1, 0.5, 1, 1.1, 1.2, 1.4, 1.4, 2, 9, 16},
		game.RiskMedium: {110, 41, 10, 5, 3, 1.5, 1, 0.5, 0.3, 0.5, 1, 1.5, 3, 5, 10, 41, 110},
		game.RiskHigh:   {1000, 130, 26, 9, 4, 2, 0.2, 0.2, 0.2, 0.2, 0.2, 2, 4, 9, 26, 130, 1000},
	},
}

// Config holds configuration for the plinko game.
type Config struct {
	Mode        Mode
	DefaultRows int
}

// PlinkoGame implements game.Game.
type PlinkoGame struct {
	mode Mode
	rows int
}

// New creates a PlinkoGame.
func New(cfg *Config) *PlinkoGame {
	g := &PlinkoGame{mode: ModePegs, rows: DefaultRows}
	if cfg != nil {
		if Mode(strings.ToLower(string(cfg.Mode))) == ModeTable {
			g.mode = ModeTable
		}
		if _, ok := Tables[cfg.DefaultRows]; ok {
			g.rows = cfg.DefaultRows
		}
	}
	return g
}

func (g *PlinkoGame) Type() model.GameType { return model.GamePlinko }
func (g *PlinkoGame) Name() string         { return "Plinko" }
func (g *PlinkoGame) Mode() Mode           { return g.mode }

func (g *PlinkoGame) Description() string {
	return "Drop a ball through 8, 12 or 16 rows of pegs; edge slots pay the most."
}

// NewRound validates risk and rows. Params: "risk" (low|medium|high), "rows" (8|12|16).
func (g *PlinkoGame) NewRound(bet decimal.Decimal, params map[string]any) (game.Round, error) {
	if err := game.ValidateBet(bet); err != nil {
		return nil, err
	}
	risk, err := game.ExtractRisk(params, "risk", DefaultRisk)
	if err != nil {
		return nil, err
	}
	rows, err := game.IntParam(params, "rows", g.rows)
	if err != nil {
		return nil, err
	}
	table, err := Table(risk, rows)
	if err != nil {
		return nil, err
	}
	return &round{bet: bet, risk: risk, rows: rows, table: table, mode: g.mode}, nil
}

type round struct {
	bet   decimal.Decimal
	risk  game.Risk
	rows  int
	table []float64
	mode  Mode
}

func (r *round) Start(src rng.Source) *game.Step {
	var (
		slot int
		path []bool
	)
	if r.mode == ModeTable {
		slot = DrawSlot(src, r.rows)
	} else {
		slot, path = Drop(src, r.rows)
	}

	m := r.table[slot]
	details := map[string]any{
		"risk":       string(r.risk),
		"rows":       r.rows,
		"slot":       slot,
		"multiplier": m,
	}
	if path != nil {
		details["path"] = path
	}

	res := &game.Resolution{
		Result:     model.ResultLoss,
		Outcome:    "slot",
		Multiplier: m,
		Payout:     game.Payout(r.bet, m),
		Details:    details,
	}
	if m >= 1 {
		res.Result = model.ResultWin
	}
	return &game.Step{Multiplier: m, Details: details, Resolution: res}
}

func (r *round) Progress(rng.Source, game.Action) (*game.Step, error) {
	return nil, fmt.Errorf("%w: plinko resolves on the drop", game.ErrIllegalAction)
}

func (r *round) CashOut() (*game.Resolution, error) {
	return nil, fmt.Errorf("%w: plinko has no cash out", game.ErrIllegalAction)
}

// Table returns the multipliers for risk and rows.
func Table(risk game.Risk, rows int) ([]float64, error) {
	byRisk, ok := Tables[rows]
	if !ok {
		return nil, fmt.Errorf("%w: rows must be 8, 12 or 16, got %d", game.ErrInvalidConfiguration, rows)
	}
	table, ok := byRisk[risk]
	if !ok {
		return nil, fmt.Errorf("%w: unknown risk level %q", game.ErrInvalidConfiguration, risk)
	}
	return table, nil
}

// Drop simulates rows fair deflections; the slot is the number of rights.
func Drop(src rng.Source, rows int) (int, []bool) {
	path := make([]bool, rows)
	slot := 0
	for i := range path {
		if src.Float64() < 0.5 {
			path[i] = true
			slot++
		}
	}
	return slot, path
}

// SlotProbabilities is the binomial(rows, ½) distribution over slots.
func SlotProbabilities(rows int) []float64 {
	probs := make([]float64, rows+1)
	total := math.Pow(2, float64(rows))
	c := 1.0
	for k := 0; k <= rows; k++ {
		probs[k] = c / total
		c = c * float64(rows-k) / float64(k+1)
	}
	return probs
}

// DrawSlot picks a slot with one uniform draw against the binomial CDF.
func DrawSlot(src rng.Source, rows int) int {
	u := src.Float64()
	acc := 0.0
	probs := SlotProbabilities(rows)
	for k, p := range probs {
		acc += p
		if u < acc {
			return k
		}
	}
	return rows
}

// ExpectedReturn is Σ P(slot) × multiplier for a table.
func ExpectedReturn(risk game.Risk, rows int) (float64, error) {
	table, err := Table(risk, rows)
	if err != nil {
		return 0, err
	}
	rtp := 0.0
	for k, p := range SlotProbabilities(rows) {
		rtp += p * table[k]
	}
	return rtp, nil
}

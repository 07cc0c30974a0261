// Package lanehop implements lane-hop: each hop survives with probability p
// and multiplies the payout by r, with r·p fixed at the target RTP.
package lanehop

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"stakesim/internal/game"
	"stakesim/internal/model"
	"stakesim/internal/rng"
)

const (
	// DefaultRTP is the per-hop expected return r·p.
	DefaultRTP  = 0.97
	DefaultRisk = game.RiskMedium
)

// Ratios is the per-hop multiplier r for each risk level.
var Ratios = map[game.Risk]float64{
	game.RiskLow:    1.15,
	game.RiskMedium: 1.25,
	game.RiskHigh:   1.40,
}

// Settings are the derived per-hop parameters.
type Settings struct {
	Ratio    float64 // r
	Survival float64 // p = RTP / r
}

// SettingsFor derives the settings for a risk level.
func SettingsFor(risk game.Risk, rtp float64) (Settings, error) {
	r, ok := Ratios[risk]
	if !ok {
		return Settings{}, fmt.Errorf("%w: unknown risk level %q", game.ErrInvalidConfiguration, risk)
	}
	return Settings{Ratio: r, Survival: rtp / r}, nil
}

// Multiplier is r^hops.
func Multiplier(ratio float64, hops int) float64 {
	return math.Pow(ratio, float64(hops))
}

// Config holds configuration for the lane-hop game.
type Config struct {
	RTP float64
}

// LaneHopGame implements game.Game.
type LaneHopGame struct {
	rtp float64
}

// New creates a LaneHopGame.
func New(cfg *Config) *LaneHopGame {
	rtp := DefaultRTP
	if cfg != nil && cfg.RTP > 0 && cfg.RTP < 1 {
		rtp = cfg.RTP
	}
	return &LaneHopGame{rtp: rtp}
}

func (g *LaneHopGame) Type() model.GameType { return model.GameLaneHop }
func (g *LaneHopGame) Name() string         { return "Lane Hop" }
func (g *LaneHopGame) RTP() float64         { return g.rtp }

func (g *LaneHopGame) Description() string {
	return "Hop across lanes of traffic. Every hop raises the multiplier; get hit and the bet is lost."
}

// NewRound validates the risk level. Params: "risk" (low|medium|high).
func (g *LaneHopGame) NewRound(bet decimal.Decimal, params map[string]any) (game.Round, error) {
	if err := game.ValidateBet(bet); err != nil {
		return nil, err
	}
	risk, err := game.ExtractRisk(params, "risk", DefaultRisk)
	if err != nil {
		return nil, err
	}
	settings, err := SettingsFor(risk, g.rtp)
	if err != nil {
		return nil, err
	}
	return &round{bet: bet, risk: risk, settings: settings}, nil
}

type round struct {
	bet      decimal.Decimal
	risk     game.Risk
	settings Settings
	hops     int
}

func (r *round) details() map[string]any {
	return map[string]any{
		"risk":     string(r.risk),
		"hops":     r.hops,
		"survival": r.settings.Survival,
	}
}

func (r *round) Start(rng.Source) *game.Step {
	return &game.Step{Multiplier: 1, Details: r.details()}
}

func (r *round) Progress(src rng.Source, action game.Action) (*game.Step, error) {
	if action.Kind != game.ActionHop {
		return nil, fmt.Errorf("%w: lane-hop only accepts hop, got %s", game.ErrIllegalAction, action.Kind)
	}

	if src.Float64() >= r.settings.Survival {
		details := r.details()
		details["lane"] = r.hops + 1
		return &game.Step{
			Details: details,
			Resolution: &game.Resolution{
				Result:  model.ResultLoss,
				Outcome: "hit",
				Payout:  decimal.Zero,
				Details: details,
			},
		}, nil
	}

	r.hops++
	return &game.Step{Multiplier: Multiplier(r.settings.Ratio, r.hops), Details: r.details()}, nil
}

func (r *round) CashOut() (*game.Resolution, error) {
	if r.hops == 0 {
		return nil, fmt.Errorf("%w: hop at least once first", game.ErrIllegalAction)
	}
	m := Multiplier(r.settings.Ratio, r.hops)
	return &game.Resolution{
		Result:     model.ResultWin,
		Outcome:    "cashout",
		Multiplier: m,
		Payout:     game.Payout(r.bet, m),
		Details:    r.details(),
	}, nil
}

package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"stakesim/internal/model"
	"stakesim/internal/rng"
	"stakesim/internal/service"
	"stakesim/internal/sim"
)

func newSimulateCmd() *cobra.Command {
	var (
		gameName string
		bet      string
		params   map[string]string
		opts     sim.Options
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play many rounds offline and report the observed RTP",
		Example: "  stakesim simulate --game dice --rounds 100000 --param target=50 --param mode=under\n" +
			"  stakesim simulate --game crash --cash-out-at 1.5",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			stake, err := decimal.NewFromString(bet)
			if err != nil {
				return fmt.Errorf("invalid bet %q: %w", bet, err)
			}
			opts.Game = model.GameType(gameName)
			opts.Bet = stake
			if opts.Seed == 0 {
				opts.Seed = rng.NewSeed()
			}
			opts.Params = make(map[string]any, len(params))
			for k, v := range params {
				opts.Params[k] = v
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

			report, err := sim.Run(cmd.Context(), registry, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "game:           %s\n", report.Game)
			fmt.Fprintf(out, "seed:           %d\n", opts.Seed)
			fmt.Fprintf(out, "rounds:         %d\n", report.Rounds)
			fmt.Fprintf(out, "win rate:       %.2f%%\n", report.WinRate()*100)
			fmt.Fprintf(out, "wagered:        %s\n", report.Wagered.StringFixed(2))
			fmt.Fprintf(out, "returned:       %s\n", report.Returned.StringFixed(2))
			fmt.Fprintf(out, "RTP:            %.4f\n", report.RTP())
			fmt.Fprintf(out, "max multiplier: %.2fx\n", report.MaxMultiplier)
			fmt.Fprintf(out, "elapsed:        %s\n", report.Elapsed)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&gameName, "game", string(model.GameDice), "game to simulate")
	f.StringVar(&bet, "bet", "1", "stake per round")
	f.StringToStringVar(&params, "param", nil, "game parameter as key=value, repeatable")
	f.IntVar(&opts.Rounds, "rounds", sim.DefaultRounds, "number of rounds")
	f.Uint64Var(&opts.Seed, "seed", 0, "RNG seed, 0 picks a random one")
	f.IntVar(&opts.Reveals, "reveals", sim.DefaultReveals, "mines: tiles to reveal before cashing out")
	f.IntVar(&opts.Hops, "hops", sim.DefaultHops, "lane-hop: hops before cashing out")
	f.Float64Var(&opts.CashOutAt, "cash-out-at", sim.DefaultCashOutAt, "crash: target multiplier")
	f.IntVar(&opts.StandOn, "stand-on", sim.DefaultStandOn, "blackjack: total to stand on")
	return cmd
}

package main

import (
	"fmt"

	"bracketlab/adapters/excel"
	"bracketlab/internal/errors"
	"bracketlab/internal/testkit"

	"github.com/spf13/cobra"
)

func newGenerateCmd(c *cli) *cobra.Command {
	cfg := testkit.DefaultSeasonConfig()
	var (
		out   string
		games int
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic season of games to CSV or XLSX",
		Long: `Generates plausible games between teams with random ratings. Stronger teams win
more often, the home side has an edge, and rank and strength-of-schedule columns
track team strength. The same seed always produces the same file.

Example:
  bracketlab generate --out sample.xlsx --games 2000 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.InvalidInput("--out is required")
			}
			if cfg.MissingRate < 0 || cfg.MissingRate >= 1 {
				return errors.InvalidInput("--missing must be in [0, 1)")
			}
			gen := cfg
			if games > 0 {
				gen = cfg.WithTotalGames(games)
			}
			ds := testkit.NewSeasonGenerator(gen).Generate()
			if games > 0 && len(ds.Games) > games {
				ds.Games = ds.Games[:games]
				ds.RowsRead = games
			}
			if err := excel.WriteGames(out, ds); err != nil {
				return err
			}
			c.logger.Info("Generated %d games for seasons %v", len(ds.Games), ds.Summarize().Seasons)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d games to %s\n", len(ds.Games), out)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&out, "out", "", "output file (.csv or .xlsx)")
	f.IntVar(&games, "games", 0, "total games to write (default teams × games-per-team ÷ 2 per season)")
	f.IntVar(&cfg.Teams, "teams", cfg.Teams, "teams in the league")
	f.IntVar(&cfg.Seasons, "seasons", cfg.Seasons, "seasons to play")
	f.IntVar(&cfg.FirstSeason, "first-season", cfg.FirstSeason, "season of the first year")
	f.IntVar(&cfg.GamesPerTeam, "games-per-team", cfg.GamesPerTeam, "games each team plays per season")
	f.Float64Var(&cfg.HomeAdvantage, "home-advantage", cfg.HomeAdvantage, "points added to the home margin")
	f.Float64Var(&cfg.Noise, "noise", cfg.Noise, "standard deviation of the margin noise")
	f.Float64Var(&cfg.MissingRate, "missing", 0, "share of feature cells left blank")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	return cmd
}

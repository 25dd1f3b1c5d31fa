package main

import (
	"io"
	"os"
	"strings"

	"bracketlab/adapters/feed"
	"bracketlab/app"
	"bracketlab/domain/run"
	"bracketlab/internal/config"
	"bracketlab/internal/errors"
	"bracketlab/internal/evaluation"
	"bracketlab/internal/report"
	"bracketlab/internal/selection"
	"bracketlab/internal/split"
	"bracketlab/internal/validation"
	"bracketlab/ports"

	"github.com/spf13/cobra"
)

type runOptions struct {
	data          string
	sheet         string
	jsonPath      string
	cursorPath    string
	features      string
	trainFraction float64
	cutoff        string
	criterion     string
	level         float64
	thresholdStep float64
	bootstrap     int
	stability     int
	seed          int64
	format        string
	out           string
	xlsx          string
}

func newRunCmd(c *cli) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fit and evaluate both models on both feature sets",
		Long: `Loads games from a CSV, Excel or JSON file (or a JSON feed URL), splits them chronologically, fits the
logistic (home win) and linear (score differential) models with and without
ranking metrics, and prints the report.

Example:
  bracketlab run --data games.xlsx --features features.yaml --criterion bic --format markdown`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPipeline(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.data, "data", "", "games file (.csv, .xlsx or .json) or http(s) JSON feed (env DATA_FILE)")
	f.StringVar(&opts.sheet, "sheet", "", "worksheet name for .xlsx input (env DATA_SHEET)")
	f.StringVar(&opts.jsonPath, "json-path", "", "gjson path to the game records in JSON input (env DATA_JSON_PATH)")
	f.StringVar(&opts.cursorPath, "cursor-path", "", "gjson path to the next page cursor of a feed (env DATA_CURSOR_PATH)")
	f.StringVar(&opts.features, "features", "", "YAML feature manifest (env FEATURES_FILE)")
	f.Float64Var(&opts.trainFraction, "train-fraction", 0, "share of games used for training (env TRAIN_FRACTION)")
	f.StringVar(&opts.cutoff, "cutoff", "", "first test date, overrides --train-fraction (env CUTOFF_DATE)")
	f.StringVar(&opts.criterion, "criterion", "", "aic or bic (env SELECTION_CRITERION)")
	f.Float64Var(&opts.level, "level", 0, "prediction interval level (env INTERVAL_LEVEL)")
	f.Float64Var(&opts.thresholdStep, "threshold-step", 0, "threshold grid step (env THRESHOLD_STEP)")
	f.IntVar(&opts.bootstrap, "bootstrap", 0, "paired bootstrap resamples for comparison intervals, 0 to skip (env BOOTSTRAP_RESAMPLES)")
	f.IntVar(&opts.stability, "stability", 0, "training subsamples for selection stability, 0 to skip (env STABILITY_SUBSAMPLES)")
	f.Int64Var(&opts.seed, "seed", 0, "seed for bootstrap and stability resampling (env SEED)")
	f.StringVar(&opts.format, "format", "text", "text, markdown, html or json")
	f.StringVar(&opts.out, "out", "", "write the report to a file instead of stdout")
	f.StringVar(&opts.xlsx, "xlsx", "", "also write an Excel workbook")
	return cmd
}

// request merges flags over the environment configuration
func (c *cli) request(cmd *cobra.Command, opts *runOptions) (app.RunRequest, error) {
	cfg := *c.cfg
	flags := cmd.Flags()

	if flags.Changed("data") {
		cfg.Data.File = opts.data
	}
	if flags.Changed("sheet") {
		cfg.Data.Sheet = opts.sheet
	}
	if flags.Changed("json-path") {
		cfg.Data.JSONPath = opts.jsonPath
	}
	if flags.Changed("cursor-path") {
		cfg.Data.CursorPath = opts.cursorPath
	}
	if flags.Changed("features") {
		cfg.Data.FeaturesFile = opts.features
	}
	if flags.Changed("train-fraction") {
		cfg.Split.TrainFraction = opts.trainFraction
	}
	if flags.Changed("cutoff") {
		cutoff, err := config.ParseDate(opts.cutoff)
		if err != nil {
			return app.RunRequest{}, errors.InvalidInput("--cutoff " + opts.cutoff + " is not a date")
		}
		cfg.Split.CutoffDate = cutoff
	}
	if flags.Changed("criterion") {
		cfg.Model.Criterion = strings.ToLower(opts.criterion)
	}
	if flags.Changed("level") {
		cfg.Model.IntervalLevel = opts.level
	}
	if flags.Changed("threshold-step") {
		cfg.Model.ThresholdStep = opts.thresholdStep
	}
	if flags.Changed("bootstrap") {
		cfg.Model.Bootstrap = opts.bootstrap
	}
	if flags.Changed("stability") {
		cfg.Model.Stability = opts.stability
	}
	if flags.Changed("seed") {
		cfg.Model.Seed = opts.seed
	}
	if err := cfg.Validate(); err != nil {
		return app.RunRequest{}, err
	}
	if cfg.Data.File == "" {
		return app.RunRequest{}, errors.InvalidInput("no games file: pass --data or set DATA_FILE")
	}

	criterion, err := selection.ParseCriterion(cfg.Model.Criterion)
	if err != nil {
		return app.RunRequest{}, err
	}
	manifest, err := config.LoadManifest(cfg.Data.FeaturesFile)
	if err != nil {
		return app.RunRequest{}, err
	}

	return app.RunRequest{
		DataFile: cfg.Data.File,
		Sheet:    cfg.Data.Sheet,
		Feed: feed.Config{
			DataPath:    cfg.Data.JSONPath,
			CursorPath:  cfg.Data.CursorPath,
			BearerToken: cfg.Data.Token,
		},
		Rules:    manifest.Rules(),
		Split: split.Config{
			TrainFraction: cfg.Split.TrainFraction,
			CutoffDate:    cfg.Split.CutoffDate,
			MinGames:      cfg.Split.MinGames,
		},
		Criterion:     criterion,
		IntervalLevel: cfg.Model.IntervalLevel,
		ThresholdStep: cfg.Model.ThresholdStep,
		Bootstrap:     evaluation.BootstrapConfig{Resamples: cfg.Model.Bootstrap},
		Stability:     validation.StabilitySelectionConfig{SubsampleCount: cfg.Model.Stability},
		Seed:          cfg.Model.Seed,
	}, nil
}

func (c *cli) runPipeline(cmd *cobra.Command, opts *runOptions) error {
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	req, err := c.request(cmd, opts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var repo ports.RunRepository
	if c.dsn != "" {
		s, err := c.openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()
		repo = s
	}

	r, runErr := app.NewPipelineService(repo, c.logger).Run(ctx, req)
	if r == nil {
		return runErr
	}

	if err := c.writeReport(cmd.OutOrStdout(), r, format, opts.out); err != nil {
		return err
	}
	if opts.xlsx != "" {
		if err := report.SaveWorkbook(opts.xlsx, r); err != nil {
			return err
		}
		c.logger.Info("Wrote workbook %s", opts.xlsx)
	}
	if runErr == nil && repo != nil {
		c.logger.Info("Stored run %s", r.ID)
	}
	return runErr
}

func (c *cli) writeReport(stdout io.Writer, r *run.Report, format report.Format, path string) error {
	if path == "" {
		return report.Render(stdout, r, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if err := report.Render(f, r, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	c.logger.Info("Wrote %s report %s", format, path)
	return nil
}

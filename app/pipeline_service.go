package app

import (
	"context"
	"fmt"
	"time"

	"bracketlab/adapters/excel"
	"bracketlab/adapters/feed"
	"bracketlab/domain/core"
	"bracketlab/domain/game"
	"bracketlab/domain/run"
	"bracketlab/internal"
	"bracketlab/internal/errors"
	"bracketlab/internal/evaluation"
	"bracketlab/internal/profiling"
	"bracketlab/internal/regression"
	"bracketlab/internal/selection"
	"bracketlab/internal/split"
	"bracketlab/internal/validation"
	"bracketlab/ports"

	"golang.org/x/sync/errgroup"
)

// CodeVersion is stamped into every run manifest
const CodeVersion = "0.3.0"

// PipelineService loads games, fits both model kinds on both feature sets and
// assembles a report
type PipelineService struct {
	repo    ports.RunRepository
	logger  *internal.Logger
	version string
}

// RunRequest defines the inputs of one pipeline run
type RunRequest struct {
	DataFile string
	Sheet    string
	// Feed configures JSON input; used when DataFile is an http(s) URL or a .json
	// file. Its Location defaults to DataFile.
	Feed feed.Config
	// Source, when set, is read instead of DataFile
	Source        ports.GameSource
	Rules         game.FeatureRules
	Split         split.Config
	Criterion     selection.Criterion
	IntervalLevel float64
	ThresholdStep float64
	// Bootstrap adds paired bootstrap intervals to the comparison; zero resamples
	// skips it
	Bootstrap evaluation.BootstrapConfig
	// Stability repeats selection on training subsamples; zero subsamples skips it
	Stability validation.StabilitySelectionConfig
	// Seed drives bootstrap resampling and stability subsampling
	Seed int64
}

// NewPipelineService creates a pipeline service. repo may be nil to skip persistence.
func NewPipelineService(repo ports.RunRepository, logger *internal.Logger) *PipelineService {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &PipelineService{repo: repo, logger: logger, version: CodeVersion}
}

type fitJob struct {
	set  game.FeatureSet
	kind string
}

type fitResult struct {
	report run.ModelReport
	// per test game, aligned with the partition's test slice
	probs   []float64
	picks   []bool
	margins []float64
	lower   []float64
	upper   []float64
}

// Run executes the pipeline. When a repository is configured the report is saved;
// a failed save is logged and returned alongside the report.
func (s *PipelineService) Run(ctx context.Context, req RunRequest) (*run.Report, error) {
	startTime := time.Now()
	req = req.withDefaults()
	if err := req.validate(); err != nil {
		return nil, err
	}

	ds, err := s.load(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("loaded %d games (%d rows read, %d dropped) with %d features",
		len(ds.Games), ds.RowsRead, ds.RowsDropped, len(ds.FeatureNames))

	sets, err := game.BuildFeatureSets(ds.FeatureNames, req.Rules)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	with, without := sets[0], sets[1]
	s.logger.Debug("feature sets: %s=%v %s=%v", with.Name, with.Features, without.Name, without.Features)

	// listwise deletion over the features in use; without is a subset of with
	complete := ds.Complete(with.Features)
	if dropped := complete.RowsDropped - ds.RowsDropped; dropped > 0 {
		s.logger.Warn("dropped %d of %d games missing a value in a used feature", dropped, len(ds.Games))
	}
	ds = complete

	part, err := split.Chronological(ds.Games, req.Split)
	if err != nil {
		return nil, errors.Wrap(err, "chronological split failed")
	}
	s.logger.Info("split %s: %d train games, %d test games, test starts %s",
		part.Stats.PartitionMethod, len(part.Train), len(part.Test), part.Cutoff.Format("2006-01-02"))

	grid, err := evaluation.Grid(req.ThresholdStep)
	if err != nil {
		return nil, err
	}

	var jobs []fitJob
	for _, set := range sets {
		jobs = append(jobs, fitJob{set: set, kind: run.KindLogistic}, fitJob{set: set, kind: run.KindLinear})
	}
	results := make([]fitResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			logger := s.logger.With("model", job.kind, "feature_set", job.set.Name)
			var (
				res *fitResult
				err error
			)
			switch job.kind {
			case run.KindLogistic:
				res, err = s.fitLogistic(gctx, part, job.set, req, grid, logger)
			default:
				res, err = s.fitLinear(gctx, part, job.set, req, logger)
			}
			if err != nil {
				return errors.Wrapf(err, "%s model on %s failed", job.kind, job.set.Name)
			}
			results[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	profiles := profiling.NewProfiler(s.logger).Profile(part.Train, with.Features)

	manifest := run.Manifest{
		DataFile:      ds.Source,
		DataDigest:    run.DatasetDigest(ds),
		FeatureSets:   []string{with.Name, without.Name},
		TrainFraction: req.Split.TrainFraction,
		CutoffDate:    req.Split.CutoffDate,
		Criterion:     string(req.Criterion),
		IntervalLevel: req.IntervalLevel,
		ThresholdStep: req.ThresholdStep,
		Stability:     req.Stability.SubsampleCount,
		Seed:          req.Seed,
		CodeVersion:   s.version,
	}
	if req.Bootstrap.Resamples > 0 {
		manifest.Bootstrap = req.Bootstrap.Resamples
		manifest.BootstrapLevel = req.Bootstrap.Level
	}
	manifest.Seal()

	report := &run.Report{
		ID:        core.NewRunID(),
		CreatedAt: time.Now().UTC(),
		Manifest:  manifest,
		Dataset:   summarizeDataset(ds, part, with, without, profiles),
	}
	for _, res := range results {
		report.Models = append(report.Models, res.report)
	}
	report.Predictions = predictions(part.Test, jobs, results)
	report.Comparison = compare(report)
	if req.Bootstrap.Resamples > 0 {
		s.deltaIntervals(report.Comparison, part.Test, jobs, results, req.Bootstrap)
	}
	report.RuntimeMs = time.Since(startTime).Milliseconds()

	s.logger.Info("run %s finished in %dms", report.ID, report.RuntimeMs)

	if s.repo != nil {
		if err := s.repo.Save(ctx, report); err != nil {
			s.logger.Error("failed to persist run %s: %v", report.ID, err)
			return report, errors.Wrap(err, "failed to persist run")
		}
		s.logger.Debug("persisted run %s", report.ID)
	}
	return report, nil
}

func (r RunRequest) withDefaults() RunRequest {
	if r.Criterion == "" {
		r.Criterion = selection.AIC
	}
	if r.IntervalLevel == 0 {
		r.IntervalLevel = 0.95
	}
	if r.ThresholdStep == 0 {
		r.ThresholdStep = 0.01
	}
	if r.Split.TrainFraction == 0 && r.Split.CutoffDate.IsZero() {
		r.Split.TrainFraction = 0.8
	}
	if r.Bootstrap.Resamples > 0 && r.Bootstrap.Level == 0 {
		r.Bootstrap.Level = 0.95
	}
	r.Bootstrap.Seed = r.Seed
	r.Stability.RandomSeed = r.Seed
	return r
}

func (r RunRequest) validate() error {
	if r.Source == nil && r.DataFile == "" {
		return errors.InvalidInput("a data file is required")
	}
	if _, err := selection.ParseCriterion(string(r.Criterion)); err != nil {
		return err
	}
	if r.IntervalLevel <= 0 || r.IntervalLevel >= 1 {
		return errors.InvalidInput(fmt.Sprintf("interval level %v outside (0, 1)", r.IntervalLevel))
	}
	if r.Bootstrap.Resamples < 0 {
		return errors.InvalidInput("bootstrap resamples cannot be negative")
	}
	if r.Bootstrap.Resamples > 0 && (r.Bootstrap.Level <= 0 || r.Bootstrap.Level >= 1) {
		return errors.InvalidInput(fmt.Sprintf("bootstrap level %v outside (0, 1)", r.Bootstrap.Level))
	}
	if r.Stability.SubsampleCount < 0 {
		return errors.InvalidInput("stability subsamples cannot be negative")
	}
	if f := r.Stability.SubsampleFraction; f < 0 || f > 1 {
		return errors.InvalidInput(fmt.Sprintf("stability subsample fraction %v outside (0, 1]", f))
	}
	return nil
}

func (s *PipelineService) load(ctx context.Context, req RunRequest) (*game.Dataset, error) {
	source := req.Source
	switch {
	case source != nil:
	case feed.IsFeed(req.DataFile):
		cfg := req.Feed
		if cfg.Location == "" {
			cfg.Location = req.DataFile
		}
		source = feed.NewReader(cfg, s.logger)
	default:
		source = excel.NewDataReader(req.DataFile).WithSheet(req.Sheet).WithLogger(s.logger)
	}
	ds, err := source.ReadGames(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load games")
	}
	return ds, nil
}

func (s *PipelineService) fitLogistic(ctx context.Context, part *split.Partition, set game.FeatureSet, req RunRequest, grid []float64, logger *internal.Logger) (*fitResult, error) {
	xTrain := design(part.Train, set.Features)
	yTrain := game.Outcomes(part.Train)

	sel, err := selection.Backward(regression.FitLogisticModel, xTrain, yTrain, set.Features,
		selection.Options{Criterion: req.Criterion, Logger: logger})
	if err != nil {
		return nil, err
	}
	model, ok := sel.Model.(*regression.LogisticModel)
	if !ok {
		return nil, errors.InternalError(fmt.Sprintf("unexpected model type %T", sel.Model))
	}
	logger.Info("selected %d of %d features, %s %.2f -> %.2f",
		len(sel.Selected), len(set.Features), sel.Criterion, sel.Start, sel.Final)

	trainWins := outcomes(part.Train)
	trainProbs := probabilities(model, part.Train, sel.Selected)
	tuned, err := evaluation.TuneThreshold(trainProbs, trainWins, grid)
	if err != nil {
		return nil, err
	}
	train, err := evaluation.Classify(trainProbs, trainWins, tuned.Threshold)
	if err != nil {
		return nil, err
	}

	testWins := outcomes(part.Test)
	testProbs := probabilities(model, part.Test, sel.Selected)
	test, err := evaluation.Classify(testProbs, testWins, tuned.Threshold)
	if err != nil {
		return nil, err
	}
	logger.Info("threshold %.2f, test accuracy %.3f, AUC %.3f", tuned.Threshold, test.Accuracy, test.AUC)

	report := modelReport(run.KindLogistic, set, sel)
	report.Coefficients = coefficients(model.Coefficients)
	report.Fit = run.FitStatistics{
		N:            model.N,
		Params:       model.P,
		RSquared:     run.NA,
		AdjRSquared:  run.NA,
		Sigma:        run.NA,
		Deviance:     run.Float(model.Deviance),
		NullDeviance: run.Float(model.NullDeviance),
		Iterations:   model.Iterations,
		Converged:    model.Converged,
	}
	report.Threshold = &run.Threshold{
		Value:         run.Float(tuned.Threshold),
		TrainAccuracy: run.Float(tuned.Accuracy),
		Candidates:    tuned.Candidates,
	}
	report.Train = classifier(train)
	report.Test = classifier(test)
	if err := s.stability(ctx, regression.FitLogisticModel, xTrain, yTrain, req, &report, logger); err != nil {
		return nil, err
	}
	if !model.Converged {
		msg := fmt.Sprintf("logistic fit did not converge after %d iterations", model.Iterations)
		logger.Warn("%s", msg)
		report.Warnings = append(report.Warnings, msg)
	}

	picks := make([]bool, len(testProbs))
	for i, p := range testProbs {
		picks[i] = p >= tuned.Threshold
	}
	return &fitResult{report: report, probs: testProbs, picks: picks}, nil
}

func (s *PipelineService) fitLinear(ctx context.Context, part *split.Partition, set game.FeatureSet, req RunRequest, logger *internal.Logger) (*fitResult, error) {
	xTrain := design(part.Train, set.Features)
	yTrain := game.ScoreDiffs(part.Train)

	sel, err := selection.Backward(regression.FitLinearModel, xTrain, yTrain, set.Features,
		selection.Options{Criterion: req.Criterion, Logger: logger})
	if err != nil {
		return nil, err
	}
	model, ok := sel.Model.(*regression.LinearModel)
	if !ok {
		return nil, errors.InternalError(fmt.Sprintf("unexpected model type %T", sel.Model))
	}
	logger.Info("selected %d of %d features, %s %.2f -> %.2f",
		len(sel.Selected), len(set.Features), sel.Criterion, sel.Start, sel.Final)

	n := len(part.Test)
	res := &fitResult{
		margins: make([]float64, n),
		lower:   make([]float64, n),
		upper:   make([]float64, n),
	}
	for i, x := range design(part.Test, sel.Selected) {
		iv, err := model.PredictInterval(x, req.IntervalLevel)
		if err != nil {
			return nil, err
		}
		res.margins[i], res.lower[i], res.upper[i] = iv.Fit, iv.Lower, iv.Upper
	}

	actual := game.ScoreDiffs(part.Test)
	metrics, err := evaluation.Regress(res.margins, actual)
	if err != nil {
		return nil, err
	}
	winner, err := evaluation.WinnerAccuracy(res.margins, outcomes(part.Test))
	if err != nil {
		return nil, err
	}
	coverage, err := evaluation.Coverage(res.lower, res.upper, actual, req.IntervalLevel)
	if err != nil {
		return nil, err
	}
	logger.Info("test R2 %.3f, RMSE %.2f, %.0f%% interval coverage %.3f",
		metrics.RSquared, metrics.RMSE, req.IntervalLevel*100, coverage.Coverage)

	report := modelReport(run.KindLinear, set, sel)
	report.Coefficients = coefficients(model.Coefficients)
	report.Fit = run.FitStatistics{
		N:            model.N,
		Params:       model.P,
		RSquared:     run.Float(model.RSquared),
		AdjRSquared:  run.Float(model.AdjRSquared),
		Sigma:        run.Float(model.Sigma),
		Deviance:     run.Float(model.RSS),
		NullDeviance: run.NA,
		Converged:    true,
	}
	report.Regression = &run.Regression{
		N:                metrics.N,
		RSquared:         run.Float(metrics.RSquared),
		RMSE:             run.Float(metrics.RMSE),
		MAE:              run.Float(metrics.MAE),
		Bias:             run.Float(metrics.Bias),
		MedianAE:         run.Float(metrics.MedianAE),
		WinnerAccuracy:   run.Float(winner),
		IntervalLevel:    run.Float(coverage.Level),
		IntervalCoverage: run.Float(coverage.Coverage),
		IntervalWidth:    run.Float(coverage.MeanWidth),
	}
	if err := s.stability(ctx, regression.FitLinearModel, xTrain, yTrain, req, &report, logger); err != nil {
		return nil, err
	}
	res.report = report
	return res, nil
}

func design(games []game.Game, features []string) [][]float64 {
	x := make([][]float64, len(games))
	for i, g := range games {
		x[i] = g.Vector(features)
	}
	return x
}

func outcomes(games []game.Game) []bool {
	out := make([]bool, len(games))
	for i, g := range games {
		out[i] = g.HomeWin()
	}
	return out
}

func probabilities(model *regression.LogisticModel, games []game.Game, features []string) []float64 {
	x := design(games, features)
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = model.PredictProba(row)
	}
	return out
}

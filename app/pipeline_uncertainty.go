package app

import (
	"context"
	"fmt"
	"math"
	"strings"

	"bracketlab/domain/game"
	"bracketlab/domain/run"
	"bracketlab/internal"
	"bracketlab/internal/evaluation"
	"bracketlab/internal/regression"
	"bracketlab/internal/validation"
)

// testOutcomes are the observed results of the test games
type testOutcomes struct {
	wins  []bool
	diffs []float64
}

// resampleStat evaluates one model on the test games at idx
type resampleStat func(res *fitResult, t testOutcomes, idx []int) float64

var resampleStats = map[string]resampleStat{
	"accuracy": func(res *fitResult, t testOutcomes, idx []int) float64 {
		return pickRate(res.picks, t.wins, idx, func(bool) bool { return true })
	},
	"sensitivity": func(res *fitResult, t testOutcomes, idx []int) float64 {
		return pickRate(res.picks, t.wins, idx, func(win bool) bool { return win })
	},
	"specificity": func(res *fitResult, t testOutcomes, idx []int) float64 {
		return pickRate(res.picks, t.wins, idx, func(win bool) bool { return !win })
	},
	"auc": func(res *fitResult, t testOutcomes, idx []int) float64 {
		auc, err := evaluation.AUC(evaluation.Subset(res.probs, idx), evaluation.Subset(t.wins, idx))
		if err != nil {
			return math.NaN()
		}
		return auc
	},
	"brier": func(res *fitResult, t testOutcomes, idx []int) float64 {
		return evaluation.Brier(evaluation.Subset(res.probs, idx), evaluation.Subset(t.wins, idx))
	},
	"r_squared": func(res *fitResult, t testOutcomes, idx []int) float64 {
		m, err := evaluation.Regress(evaluation.Subset(res.margins, idx), evaluation.Subset(t.diffs, idx))
		if err != nil {
			return math.NaN()
		}
		return m.RSquared
	},
	"rmse": func(res *fitResult, t testOutcomes, idx []int) float64 {
		var sum float64
		for _, i := range idx {
			d := res.margins[i] - t.diffs[i]
			sum += d * d
		}
		return math.Sqrt(sum / float64(len(idx)))
	},
	"mae": func(res *fitResult, t testOutcomes, idx []int) float64 {
		var sum float64
		for _, i := range idx {
			sum += math.Abs(res.margins[i] - t.diffs[i])
		}
		return sum / float64(len(idx))
	},
	"winner_accuracy": func(res *fitResult, t testOutcomes, idx []int) float64 {
		acc, err := evaluation.WinnerAccuracy(evaluation.Subset(res.margins, idx), evaluation.Subset(t.wins, idx))
		if err != nil {
			return math.NaN()
		}
		return acc
	},
	"interval_coverage": func(res *fitResult, t testOutcomes, idx []int) float64 {
		var inside int
		for _, i := range idx {
			if t.diffs[i] >= res.lower[i] && t.diffs[i] <= res.upper[i] {
				inside++
			}
		}
		return float64(inside) / float64(len(idx))
	},
}

// pickRate is the share of correct picks among resampled games whose outcome
// passes keep; NaN when none do
func pickRate(picks, wins []bool, idx []int, keep func(win bool) bool) float64 {
	var n, correct int
	for _, i := range idx {
		if !keep(wins[i]) {
			continue
		}
		n++
		if picks[i] == wins[i] {
			correct++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return float64(correct) / float64(n)
}

// deltaIntervals fills in paired bootstrap intervals for the with minus without
// deltas. Both feature sets are scored on the same resampled test games. Metrics
// without a resample statistic, such as the term count, keep NA bounds.
func (s *PipelineService) deltaIntervals(comparison []run.Comparison, test []game.Game, jobs []fitJob, results []fitResult, cfg evaluation.BootstrapConfig) {
	observed := testOutcomes{wins: outcomes(test), diffs: game.ScoreDiffs(test)}
	find := func(kind, set string) *fitResult {
		for i, job := range jobs {
			if job.kind == kind && job.set.Name == set {
				return &results[i]
			}
		}
		return nil
	}

	for i := range comparison {
		c := &comparison[i]
		statistic, ok := resampleStats[c.Metric]
		if !ok {
			continue
		}
		with, without := find(c.Kind, game.SetWithRankings), find(c.Kind, game.SetWithoutRankings)
		if with == nil || without == nil {
			continue
		}
		iv, err := evaluation.PairedBootstrap(len(test), cfg, func(idx []int) float64 {
			return statistic(with, observed, idx) - statistic(without, observed, idx)
		})
		if err != nil {
			s.logger.Warn("no bootstrap interval for %s %s: %v", c.Kind, c.Metric, err)
			continue
		}
		c.DeltaLower, c.DeltaUpper = run.Float(iv.Lower), run.Float(iv.Upper)
	}
	s.logger.Debug("bootstrapped %d comparison deltas with %d resamples", len(comparison), cfg.Resamples)
}

// stability repeats selection on training subsamples and attaches the result to
// the model report. Only cancellation is fatal; other failures become warnings.
func (s *PipelineService) stability(ctx context.Context, fit regression.Fitter, x [][]float64, y []float64, req RunRequest, report *run.ModelReport, logger *internal.Logger) error {
	if req.Stability.SubsampleCount == 0 {
		return nil
	}
	res, err := validation.NewStabilitySelector(req.Stability, logger).
		Run(ctx, fit, x, y, report.Candidates, req.Criterion)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := fmt.Sprintf("stability selection skipped: %v", err)
		logger.Warn("%s", msg)
		report.Warnings = append(report.Warnings, msg)
		return nil
	}

	st := &run.Stability{
		SubsampleCount: res.SubsampleCount,
		SubsampleSize:  res.SubsampleSize,
		Failed:         res.Failed,
		Threshold:      run.Float(res.StabilityThreshold),
	}
	stable := make(map[string]bool, len(res.Features))
	for _, f := range res.Features {
		st.Features = append(st.Features, run.FeatureStability{
			Feature:   f.Feature,
			Selected:  f.Selected,
			Frequency: run.Float(f.Frequency),
			Stable:    f.Stable,
		})
		stable[f.Feature] = f.Stable
	}
	report.Stability = st

	var shaky []string
	for _, name := range report.Selected {
		if !stable[name] {
			shaky = append(shaky, name)
		}
	}
	if len(shaky) > 0 {
		msg := fmt.Sprintf("selected below %.0f%% stability: %s", res.StabilityThreshold*100, strings.Join(shaky, ", "))
		logger.Warn("%s", msg)
		report.Warnings = append(report.Warnings, msg)
	}
	return nil
}

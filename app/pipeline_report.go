package app

import (
	"bracketlab/domain/game"
	"bracketlab/domain/run"
	"bracketlab/internal/evaluation"
	"bracketlab/internal/profiling"
	"bracketlab/internal/regression"
	"bracketlab/internal/selection"
	"bracketlab/internal/split"
)

// headline metrics compared across feature sets, per model kind
var comparisonMetrics = map[string][]string{
	run.KindLogistic: {"accuracy", "sensitivity", "specificity", "auc", "brier", "terms"},
	run.KindLinear:   {"r_squared", "rmse", "mae", "winner_accuracy", "interval_coverage", "terms"},
}

func modelReport(kind string, set game.FeatureSet, sel *selection.Result) run.ModelReport {
	report := run.ModelReport{
		FeatureSet:     set.Name,
		Kind:           kind,
		Candidates:     set.Features,
		Selected:       sel.Selected,
		Criterion:      string(sel.Criterion),
		StartCriterion: run.Float(sel.Start),
		FinalCriterion: run.Float(sel.Final),
	}
	for _, step := range sel.Trace {
		report.Trace = append(report.Trace, run.Step{
			Dropped:   step.Dropped,
			Criterion: run.Float(step.Criterion),
			Remaining: step.Remaining,
		})
	}
	return report
}

func coefficients(in []regression.Coefficient) []run.Coefficient {
	out := make([]run.Coefficient, len(in))
	for i, c := range in {
		out[i] = run.Coefficient{
			Term:      c.Term,
			Estimate:  run.Float(c.Estimate),
			StdError:  run.Float(c.StdError),
			Statistic: run.Float(c.Statistic),
			PValue:    run.Float(c.PValue),
		}
	}
	return out
}

func classifier(m *evaluation.ClassificationMetrics) *run.Classifier {
	return &run.Classifier{
		N:           m.N,
		Threshold:   run.Float(m.Threshold),
		TP:          m.Confusion.TP,
		FP:          m.Confusion.FP,
		TN:          m.Confusion.TN,
		FN:          m.Confusion.FN,
		Accuracy:    run.Float(m.Accuracy),
		Sensitivity: run.Float(m.Sensitivity),
		Specificity: run.Float(m.Specificity),
		Precision:   run.Float(m.Precision),
		F1:          run.Float(m.F1),
		AUC:         run.Float(m.AUC),
		Brier:       run.Float(m.Brier),
		LogLoss:     run.Float(m.LogLoss),
	}
}

func summarizeDataset(ds *game.Dataset, part *split.Partition, with, without game.FeatureSet, profiles []profiling.FeatureProfile) run.DatasetSummary {
	sum := ds.Summarize()
	summary := run.DatasetSummary{
		Source:           sum.Source,
		RowsRead:         sum.RowsRead,
		RowsDropped:      sum.RowsDropped,
		Games:            sum.Games,
		Features:         with.Features,
		RankingFeatures:  game.RankingFeatures(with, without),
		Seasons:          sum.Seasons,
		FirstDate:        sum.FirstDate,
		LastDate:         sum.LastDate,
		TrainGames:       part.Stats.TrainGames,
		TestGames:        part.Stats.TestGames,
		Cutoff:           part.Cutoff,
		SplitMethod:      part.Stats.PartitionMethod,
		HomeWinRate:      run.Float(sum.HomeWinRate),
		TrainHomeWinRate: run.Float(part.Stats.TrainHomeWin),
		TestHomeWinRate:  run.Float(part.Stats.TestHomeWin),
		MeanScoreDiff:    run.Float(sum.MeanScoreDiff),
		SDScoreDiff:      run.Float(sum.SDScoreDiff),
	}
	for _, p := range profiles {
		summary.Profiles = append(summary.Profiles, run.FeatureProfile{
			Feature:           p.Feature,
			N:                 p.N,
			Missing:           p.Missing,
			Mean:              run.Float(p.Mean),
			StdDev:            run.Float(p.StdDev),
			Min:               run.Float(p.Min),
			Median:            run.Float(p.Median),
			Max:               run.Float(p.Max),
			Skewness:          run.Float(p.Skewness),
			Outliers:          p.Outliers,
			WinCorrelation:    run.Float(p.WinCorrelation),
			MarginCorrelation: run.Float(p.MarginCorrelation),
		})
	}
	return summary
}

// predictions merges the logistic and linear outputs of each feature set into one
// row per test game
func predictions(test []game.Game, jobs []fitJob, results []fitResult) []run.Prediction {
	var out []run.Prediction
	for i, job := range jobs {
		if job.kind != run.KindLogistic {
			continue
		}
		var linear *fitResult
		for j, other := range jobs {
			if other.kind == run.KindLinear && other.set.Name == job.set.Name {
				linear = &results[j]
			}
		}
		for k, g := range test {
			p := run.Prediction{
				FeatureSet:   job.set.Name,
				Date:         g.Date,
				HomeTeam:     g.HomeTeam,
				AwayTeam:     g.AwayTeam,
				HomeWin:      g.HomeWin(),
				ScoreDiff:    g.ScoreDiff(),
				Probability:  run.Float(results[i].probs[k]),
				PredictedWin: results[i].picks[k],
				Margin:       run.NA,
				Lower:        run.NA,
				Upper:        run.NA,
			}
			if linear != nil {
				p.Margin = run.Float(linear.margins[k])
				p.Lower = run.Float(linear.lower[k])
				p.Upper = run.Float(linear.upper[k])
			}
			out = append(out, p)
		}
	}
	return out
}

// compare lines up test metrics of the with- and without-rankings fits
func compare(report *run.Report) []run.Comparison {
	var out []run.Comparison
	for _, kind := range []string{run.KindLogistic, run.KindLinear} {
		with, ok1 := report.Model(kind, game.SetWithRankings)
		without, ok2 := report.Model(kind, game.SetWithoutRankings)
		if !ok1 || !ok2 {
			continue
		}
		wm, wom := metricMap(with.Metrics()), metricMap(without.Metrics())
		for _, name := range comparisonMetrics[kind] {
			w, ok := wm[name]
			if !ok {
				w = run.NA
			}
			wo, ok := wom[name]
			if !ok {
				wo = run.NA
			}
			out = append(out, run.Comparison{
				Kind:       kind,
				Metric:     name,
				With:       w,
				Without:    wo,
				Delta:      w - wo,
				DeltaLower: run.NA,
				DeltaUpper: run.NA,
			})
		}
	}
	return out
}

func metricMap(metrics []run.Metric) map[string]run.Float {
	out := make(map[string]run.Float, len(metrics))
	for _, m := range metrics {
		out[m.Name] = m.Value
	}
	return out
}

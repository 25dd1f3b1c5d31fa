package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"bracketlab/domain/run"

	"github.com/dustin/go-humanize"
)

// RenderText writes an aligned plain-text report
func RenderText(w io.Writer, r *run.Report) error {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	ds := r.Dataset

	fmt.Fprintf(tw, "Run %s (%s)\n", r.ID, date(r))
	fmt.Fprintf(tw, "Data\t%s\n", ds.Source)
	fmt.Fprintf(tw, "Games\t%s loaded, %s dropped of %s rows\n",
		humanize.Comma(int64(ds.Games)), humanize.Comma(int64(ds.RowsDropped)), humanize.Comma(int64(ds.RowsRead)))
	fmt.Fprintf(tw, "Dates\t%s to %s\n", ds.FirstDate.Format("2006-01-02"), ds.LastDate.Format("2006-01-02"))
	fmt.Fprintf(tw, "Split\t%d train / %d test, test from %s (%s)\n",
		ds.TrainGames, ds.TestGames, ds.Cutoff.Format("2006-01-02"), ds.SplitMethod)
	fmt.Fprintf(tw, "Home win rate\t%s overall, %s train, %s test\n",
		percent(ds.HomeWinRate), percent(ds.TrainHomeWinRate), percent(ds.TestHomeWinRate))
	fmt.Fprintf(tw, "Ranking features\t%s\n", termList(ds.RankingFeatures))
	fmt.Fprintf(tw, "Criterion\t%s\n", strings.ToUpper(r.Manifest.Criterion))
	fmt.Fprintln(tw)

	if len(ds.Profiles) > 0 {
		fmt.Fprintln(tw, "feature\tmean\tsd\tmissing\tr win\tr margin")
		for _, p := range ds.Profiles {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
				p.Feature, p.Mean.Format(2), p.StdDev.Format(2), p.Missing, p.WinCorrelation.Format(3), p.MarginCorrelation.Format(3))
		}
		fmt.Fprintln(tw)
	}

	for _, m := range r.Models {
		fmt.Fprintf(tw, "== %s, %s ==\n", kindTitle(m.Kind), setTitle(m.FeatureSet))
		fmt.Fprintf(tw, "Selected\t%s\n", termList(m.Selected))
		fmt.Fprintf(tw, "%s\t%s -> %s in %d steps\n",
			strings.ToUpper(m.Criterion), m.StartCriterion.Format(2), m.FinalCriterion.Format(2), len(m.Trace))
		for _, s := range m.Trace {
			fmt.Fprintf(tw, "  - %s\t%s\n", s.Dropped, s.Criterion.Format(2))
		}
		fmt.Fprintln(tw)

		fmt.Fprintln(tw, "term\testimate\tstd.error\tstatistic\tp-value")
		for _, c := range m.Coefficients {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				c.Term, c.Estimate.Format(4), c.StdError.Format(4), c.Statistic.Format(3), c.PValue.Format(4))
		}
		fmt.Fprintln(tw)

		if m.Test != nil {
			fmt.Fprintf(tw, "Threshold\t%s (train accuracy %s)\n", m.Threshold.Value.Format(2), percent(m.Threshold.TrainAccuracy))
			fmt.Fprintf(tw, "Test accuracy\t%s\n", percent(m.Test.Accuracy))
			fmt.Fprintf(tw, "Sensitivity\t%s\n", percent(m.Test.Sensitivity))
			fmt.Fprintf(tw, "Specificity\t%s\n", percent(m.Test.Specificity))
			fmt.Fprintf(tw, "AUC\t%s\n", m.Test.AUC.Format(3))
			fmt.Fprintf(tw, "Brier\t%s\n", m.Test.Brier.Format(4))
			fmt.Fprintf(tw, "Confusion\tTP %d  FP %d  TN %d  FN %d\n", m.Test.TP, m.Test.FP, m.Test.TN, m.Test.FN)
		}
		if reg := m.Regression; reg != nil {
			fmt.Fprintf(tw, "Train R2\t%s (adj %s, sigma %s)\n", m.Fit.RSquared.Format(3), m.Fit.AdjRSquared.Format(3), m.Fit.Sigma.Format(2))
			fmt.Fprintf(tw, "Test R2\t%s\n", reg.RSquared.Format(3))
			fmt.Fprintf(tw, "RMSE\t%s\n", reg.RMSE.Format(2))
			fmt.Fprintf(tw, "MAE\t%s\n", reg.MAE.Format(2))
			fmt.Fprintf(tw, "Winner accuracy\t%s\n", percent(reg.WinnerAccuracy))
			fmt.Fprintf(tw, "%s interval\tcoverage %s, mean width %s\n",
				percent(reg.IntervalLevel), percent(reg.IntervalCoverage), reg.IntervalWidth.Format(1))
		}
		if st := m.Stability; st != nil {
			fmt.Fprintf(tw, "Stability\t%d subsamples of %d games, %d failed\n", st.SubsampleCount, st.SubsampleSize, st.Failed)
			for _, f := range st.Features {
				fmt.Fprintf(tw, "  %s\t%s%s\n", f.Feature, percent(f.Frequency), stableMark(f.Stable))
			}
		}
		for _, warning := range m.Warnings {
			fmt.Fprintf(tw, "Warning\t%s\n", warning)
		}
		fmt.Fprintln(tw)
	}

	if len(r.Comparison) > 0 {
		fmt.Fprintln(tw, "== With vs without ranking metrics ==")
		fmt.Fprintln(tw, "model\tmetric\twith\twithout\tdelta\tinterval")
		for _, c := range r.Comparison {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				c.Kind, c.Metric, comparisonValue(c.Metric, c.With), comparisonValue(c.Metric, c.Without), c.Delta.Format(3), deltaInterval(c))
		}
		if level := r.Manifest.BootstrapLevel; level > 0 {
			fmt.Fprintf(tw, "Intervals are %s paired bootstrap over %d resamples of the test games.\n",
				percent(run.Float(level)), r.Manifest.Bootstrap)
		}
	}
	return tw.Flush()
}

package report

import (
	"fmt"
	"strings"

	"bracketlab/domain/run"
)

// Markdown renders the report as a Markdown document
func Markdown(r *run.Report) string {
	var b strings.Builder
	ds := r.Dataset

	fmt.Fprintf(&b, "# Run %s\n\n", r.ID)
	fmt.Fprintf(&b, "Created %s from `%s`.\n\n", date(r), ds.Source)

	b.WriteString("## Data\n\n")
	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Games | %d (%d dropped of %d rows) |\n", ds.Games, ds.RowsDropped, ds.RowsRead)
	fmt.Fprintf(&b, "| Dates | %s to %s |\n", ds.FirstDate.Format("2006-01-02"), ds.LastDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "| Split | %d train / %d test, test from %s |\n", ds.TrainGames, ds.TestGames, ds.Cutoff.Format("2006-01-02"))
	fmt.Fprintf(&b, "| Home win rate | %s (train %s, test %s) |\n", percent(ds.HomeWinRate), percent(ds.TrainHomeWinRate), percent(ds.TestHomeWinRate))
	fmt.Fprintf(&b, "| Ranking features | %s |\n", mdEscape(termList(ds.RankingFeatures)))
	fmt.Fprintf(&b, "| Criterion | %s |\n", strings.ToUpper(r.Manifest.Criterion))
	fmt.Fprintf(&b, "| Fingerprint | `%s` |\n\n", shortHash(r.Manifest.Fingerprint))

	if len(ds.Profiles) > 0 {
		b.WriteString("### Features (training games)\n\n")
		b.WriteString("| Feature | Mean | Std. dev | Min | Median | Max | Outliers | r (win) | r (margin) |\n")
		b.WriteString("|---|---:|---:|---:|---:|---:|---:|---:|---:|\n")
		for _, p := range ds.Profiles {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %d | %s | %s |\n",
				mdEscape(p.Feature), p.Mean.Format(2), p.StdDev.Format(2), p.Min.Format(2), p.Median.Format(2), p.Max.Format(2),
				p.Outliers, p.WinCorrelation.Format(3), p.MarginCorrelation.Format(3))
		}
		b.WriteString("\n")
	}

	if len(r.Comparison) > 0 {
		b.WriteString("## With vs without ranking metrics\n\n")
		b.WriteString("| Model | Metric | With | Without | Delta | Interval |\n|---|---|---:|---:|---:|---:|\n")
		for _, c := range r.Comparison {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				c.Kind, mdEscape(c.Metric), comparisonValue(c.Metric, c.With), comparisonValue(c.Metric, c.Without), c.Delta.Format(3), deltaInterval(c))
		}
		b.WriteString("\n")
		if level := r.Manifest.BootstrapLevel; level > 0 {
			fmt.Fprintf(&b, "Intervals are %s paired bootstrap intervals over %d resamples of the test games.\n\n",
				percent(run.Float(level)), r.Manifest.Bootstrap)
		}
	}

	for _, m := range r.Models {
		fmt.Fprintf(&b, "## %s, %s\n\n", kindTitle(m.Kind), setTitle(m.FeatureSet))
		fmt.Fprintf(&b, "Selected: %s\n\n", mdEscape(termList(m.Selected)))
		fmt.Fprintf(&b, "%s %s → %s", strings.ToUpper(m.Criterion), m.StartCriterion.Format(2), m.FinalCriterion.Format(2))
		if len(m.Trace) > 0 {
			dropped := make([]string, len(m.Trace))
			for i, s := range m.Trace {
				dropped[i] = mdEscape(s.Dropped)
			}
			fmt.Fprintf(&b, " after dropping %s", strings.Join(dropped, ", "))
		}
		b.WriteString(".\n\n")

		b.WriteString("| Term | Estimate | Std. error | Statistic | p-value |\n|---|---:|---:|---:|---:|\n")
		for _, c := range m.Coefficients {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				mdEscape(c.Term), c.Estimate.Format(4), c.StdError.Format(4), c.Statistic.Format(3), c.PValue.Format(4))
		}
		b.WriteString("\n")

		if m.Test != nil {
			b.WriteString("| Metric | Train | Test |\n|---|---:|---:|\n")
			fmt.Fprintf(&b, "| Accuracy | %s | %s |\n", percent(m.Train.Accuracy), percent(m.Test.Accuracy))
			fmt.Fprintf(&b, "| Sensitivity | %s | %s |\n", percent(m.Train.Sensitivity), percent(m.Test.Sensitivity))
			fmt.Fprintf(&b, "| Specificity | %s | %s |\n", percent(m.Train.Specificity), percent(m.Test.Specificity))
			fmt.Fprintf(&b, "| AUC | %s | %s |\n", m.Train.AUC.Format(3), m.Test.AUC.Format(3))
			fmt.Fprintf(&b, "| Brier | %s | %s |\n\n", m.Train.Brier.Format(4), m.Test.Brier.Format(4))
			fmt.Fprintf(&b, "Threshold %s tuned on training games.\n\n", m.Threshold.Value.Format(2))
		}
		if reg := m.Regression; reg != nil {
			b.WriteString("| Metric | Value |\n|---|---:|\n")
			fmt.Fprintf(&b, "| Train R² | %s |\n", m.Fit.RSquared.Format(3))
			fmt.Fprintf(&b, "| Test R² | %s |\n", reg.RSquared.Format(3))
			fmt.Fprintf(&b, "| RMSE | %s |\n", reg.RMSE.Format(2))
			fmt.Fprintf(&b, "| MAE | %s |\n", reg.MAE.Format(2))
			fmt.Fprintf(&b, "| Winner accuracy | %s |\n", percent(reg.WinnerAccuracy))
			fmt.Fprintf(&b, "| %s interval coverage | %s |\n", percent(reg.IntervalLevel), percent(reg.IntervalCoverage))
			fmt.Fprintf(&b, "| Mean interval width | %s |\n\n", reg.IntervalWidth.Format(1))
		}
		if st := m.Stability; st != nil {
			fmt.Fprintf(&b, "Selection frequency over %d subsamples of %d training games (%d failed):\n\n",
				st.SubsampleCount, st.SubsampleSize, st.Failed)
			b.WriteString("| Feature | Frequency | Stable |\n|---|---:|---|\n")
			for _, f := range st.Features {
				mark := ""
				if f.Stable {
					mark = "yes"
				}
				fmt.Fprintf(&b, "| %s | %s | %s |\n", mdEscape(f.Feature), percent(f.Frequency), mark)
			}
			b.WriteString("\n")
		}
		for _, warning := range m.Warnings {
			fmt.Fprintf(&b, "> **Warning:** %s\n\n", mdEscape(warning))
		}
	}
	return b.String()
}

var mdReplacer = strings.NewReplacer("|", `\|`, "*", `\*`, "_", `\_`, "<", "&lt;", ">", "&gt;")

func mdEscape(s string) string {
	return mdReplacer.Replace(s)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

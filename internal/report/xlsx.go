package report

import (
	"io"
	"strings"

	"bracketlab/domain/run"
	"bracketlab/internal/errors"

	"github.com/xuri/excelize/v2"
)

// Workbook sheet names
const (
	SummarySheet     = "Summary"
	FeaturesSheet    = "Features"
	ComparisonSheet  = "Comparison"
	PredictionsSheet = "Predictions"
)

// ModelSheet names the worksheet holding one model, e.g. "logistic_with_rankings"
func ModelSheet(m run.ModelReport) string {
	name := m.Kind + "_" + m.FeatureSet
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

// Workbook builds an Excel workbook with summary, feature profile, comparison,
// per-model and prediction sheets. The feature sheet is left out when the report
// carries no profiles.
func Workbook(r *run.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, errors.Wrap(err, "failed to name summary sheet")
	}

	ds := r.Dataset
	summary := [][]interface{}{
		{"Run", r.ID.String()},
		{"Created", r.CreatedAt.Format("2006-01-02 15:04:05")},
		{"Source", ds.Source},
		{"Rows read", ds.RowsRead},
		{"Rows dropped", ds.RowsDropped},
		{"Games", ds.Games},
		{"First date", ds.FirstDate.Format("2006-01-02")},
		{"Last date", ds.LastDate.Format("2006-01-02")},
		{"Train games", ds.TrainGames},
		{"Test games", ds.TestGames},
		{"Cutoff", ds.Cutoff.Format("2006-01-02")},
		{"Split method", ds.SplitMethod},
		{"Home win rate", cell(ds.HomeWinRate)},
		{"Ranking features", strings.Join(ds.RankingFeatures, ", ")},
		{"Criterion", strings.ToUpper(r.Manifest.Criterion)},
		{"Interval level", r.Manifest.IntervalLevel},
		{"Fingerprint", r.Manifest.Fingerprint},
	}
	if err := writeRows(f, SummarySheet, summary); err != nil {
		return nil, err
	}

	if len(ds.Profiles) > 0 {
		features := [][]interface{}{{"Feature", "N", "Missing", "Mean", "Std. dev", "Min", "Median", "Max",
			"Skewness", "Outliers", "Corr. home win", "Corr. margin"}}
		for _, p := range ds.Profiles {
			features = append(features, []interface{}{
				p.Feature, p.N, p.Missing, cell(p.Mean), cell(p.StdDev), cell(p.Min), cell(p.Median), cell(p.Max),
				cell(p.Skewness), p.Outliers, cell(p.WinCorrelation), cell(p.MarginCorrelation),
			})
		}
		if err := addSheet(f, FeaturesSheet, features); err != nil {
			return nil, err
		}
	}

	comparison := [][]interface{}{{"Model", "Metric", "With rankings", "Without rankings", "Delta", "Delta lower", "Delta upper"}}
	for _, c := range r.Comparison {
		comparison = append(comparison, []interface{}{
			c.Kind, c.Metric, cell(c.With), cell(c.Without), cell(c.Delta), cell(c.DeltaLower), cell(c.DeltaUpper),
		})
	}
	if err := addSheet(f, ComparisonSheet, comparison); err != nil {
		return nil, err
	}

	for _, m := range r.Models {
		if err := addSheet(f, ModelSheet(m), modelRows(m)); err != nil {
			return nil, err
		}
	}

	predictions := [][]interface{}{{"Feature set", "Date", "Home", "Away", "Home win", "Score diff",
		"Probability", "Predicted win", "Margin", "Lower", "Upper"}}
	for _, p := range r.Predictions {
		predictions = append(predictions, []interface{}{
			p.FeatureSet, p.Date.Format("2006-01-02"), p.HomeTeam, p.AwayTeam, p.HomeWin, p.ScoreDiff,
			cell(p.Probability), p.PredictedWin, cell(p.Margin), cell(p.Lower), cell(p.Upper),
		})
	}
	if err := addSheet(f, PredictionsSheet, predictions); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteWorkbook writes the workbook to w
func WriteWorkbook(w io.Writer, r *run.Report) error {
	f, err := Workbook(r)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "failed to write workbook")
	}
	return nil
}

// SaveWorkbook writes the workbook to an .xlsx file
func SaveWorkbook(path string, r *run.Report) error {
	f, err := Workbook(r)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "failed to save workbook %s", path)
	}
	return nil
}

func modelRows(m run.ModelReport) [][]interface{} {
	rows := [][]interface{}{
		{"Model", kindTitle(m.Kind)},
		{"Feature set", m.FeatureSet},
		{"Selected", termList(m.Selected)},
		{"Criterion", strings.ToUpper(m.Criterion)},
		{"Start", cell(m.StartCriterion)},
		{"Final", cell(m.FinalCriterion)},
		{},
		{"Term", "Estimate", "Std. error", "Statistic", "p-value"},
	}
	for _, c := range m.Coefficients {
		rows = append(rows, []interface{}{c.Term, cell(c.Estimate), cell(c.StdError), cell(c.Statistic), cell(c.PValue)})
	}
	rows = append(rows, []interface{}{}, []interface{}{"Dropped", "Criterion", "Remaining"})
	for _, s := range m.Trace {
		rows = append(rows, []interface{}{s.Dropped, cell(s.Criterion), s.Remaining})
	}
	rows = append(rows, []interface{}{}, []interface{}{"Metric", "Value"})
	for _, metric := range m.Metrics() {
		rows = append(rows, []interface{}{metric.Name, cell(metric.Value)})
	}
	if st := m.Stability; st != nil {
		rows = append(rows, []interface{}{}, []interface{}{"Feature", "Selected", "Frequency", "Stable"})
		for _, f := range st.Features {
			rows = append(rows, []interface{}{f.Feature, f.Selected, cell(f.Frequency), f.Stable})
		}
	}
	for _, warning := range m.Warnings {
		rows = append(rows, []interface{}{"warning", warning})
	}
	return rows
}

func addSheet(f *excelize.File, name string, rows [][]interface{}) error {
	if _, err := f.NewSheet(name); err != nil {
		return errors.Wrapf(err, "failed to add sheet %s", name)
	}
	return writeRows(f, name, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrap(err, "invalid cell")
		}
		values := row
		if err := f.SetSheetRow(sheet, axis, &values); err != nil {
			return errors.Wrapf(err, "failed to write %s row %d", sheet, i+1)
		}
	}
	return nil
}

// cell leaves undefined values blank
func cell(v run.Float) interface{} {
	if !v.Defined() {
		return nil
	}
	return float64(v)
}

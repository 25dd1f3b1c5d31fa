package excel

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"bracketlab/domain/game"
	"bracketlab/internal/errors"

	"github.com/xuri/excelize/v2"
)

// GamesSheet is the worksheet name used when writing workbooks
const GamesSheet = "Games"

// WriteGames writes a dataset as CSV or XLSX, chosen by the file extension, in the
// column layout ReadGames expects. NaN feature values become blank cells.
func WriteGames(path string, ds *game.Dataset) error {
	header := append([]string{"date", "season", "home_team", "away_team", "home_score", "away_score"}, ds.FeatureNames...)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return writeCSV(path, header, ds)
	case ".xlsx":
		return writeXLSX(path, header, ds)
	default:
		return errors.InvalidInput(fmt.Sprintf("unsupported output format: %s", path))
	}
}

func writeCSV(path string, header []string, ds *game.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for _, g := range ds.Games {
		record := []string{
			g.Date.Format("2006-01-02"),
			strconv.Itoa(g.Season),
			g.HomeTeam,
			g.AwayTeam,
			formatCell(g.HomeScore),
			formatCell(g.AwayScore),
		}
		for _, name := range ds.FeatureNames {
			record = append(record, formatCell(g.Features[name]))
		}
		if err := w.Write(record); err != nil {
			return errors.Wrap(err, "failed to write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "failed to flush CSV")
	}
	return f.Close()
}

func writeXLSX(path string, header []string, ds *game.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", GamesSheet); err != nil {
		return errors.Wrap(err, "failed to name sheet")
	}
	sw, err := f.NewStreamWriter(GamesSheet)
	if err != nil {
		return errors.Wrap(err, "failed to open stream writer")
	}

	row := make([]interface{}, len(header))
	for i, h := range header {
		row[i] = h
	}
	if err := sw.SetRow("A1", row); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for r, g := range ds.Games {
		values := []interface{}{g.Date.Format("2006-01-02"), g.Season, g.HomeTeam, g.AwayTeam, g.HomeScore, g.AwayScore}
		for _, name := range ds.FeatureNames {
			v := g.Features[name]
			if math.IsNaN(v) {
				values = append(values, nil)
			} else {
				values = append(values, v)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return errors.Wrap(err, "failed to address row")
		}
		if err := sw.SetRow(cell, values); err != nil {
			return errors.Wrapf(err, "failed to write row %d", r+2)
		}
	}
	if err := sw.Flush(); err != nil {
		return errors.Wrap(err, "failed to flush workbook")
	}
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "failed to save %s", path)
	}
	return nil
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

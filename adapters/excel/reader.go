package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bracketlab/domain/game"
	"bracketlab/internal"
	"bracketlab/internal/config"
	"bracketlab/internal/errors"

	"github.com/xuri/excelize/v2"
)

// maxExcelSerial is the serial of 10000-01-01, past the last date Excel stores
const maxExcelSerial = 2958466

// DataReader handles reading game exports from Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
	logger   *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType, logger: internal.DefaultLogger}
}

// WithSheet selects the worksheet to read. The first sheet is used otherwise.
func (r *DataReader) WithSheet(sheet string) *DataReader {
	r.sheet = sheet
	return r
}

// WithLogger replaces the reader's logger
func (r *DataReader) WithLogger(logger *internal.Logger) *DataReader {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// ReadData reads raw rows from Excel or CSV files
func (r *DataReader) ReadData() (*ExcelData, error) {
	r.logger.Debug("reading %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.InvalidInput(fmt.Sprintf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath))
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, errors.InvalidInput(fmt.Sprintf("unsupported file type: %s", r.fileType))
	}
}

// readExcelData reads the configured sheet into structured format
func (r *DataReader) readExcelData() (*ExcelData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "failed to open Excel file")
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.InvalidInput("Excel file has no sheets")
		}
		sheet = sheets[0]
	}

	// Raw values keep date cells as serials and numbers at full precision
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.Wrapf(errors.InvalidInput(err.Error()), "failed to read sheet %s", sheet)
	}
	r.logger.Debug("sheet %s read in %.2fms (%d rows)", sheet, float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, errors.InvalidInput("Excel file must have at least a header row and one data row")
	}
	return r.processRows(rows)
}

// readCSVData reads CSV data into structured format
func (r *DataReader) readCSVData() (*ExcelData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	readStart := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "failed to read CSV file")
	}
	r.logger.Debug("CSV file read in %.2fms (%d rows)", float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, errors.InvalidInput("CSV file must have at least a header row and one data row")
	}
	return r.processRows(rows)
}

// processRows converts raw string rows into ExcelData format
func (r *DataReader) processRows(rows [][]string) (*ExcelData, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	}

	dataRows := make([]RawRowData, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlankRow(row) {
			continue
		}
		rowData := make(RawRowData, len(headers))
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	return &ExcelData{Headers: headers, Rows: dataRows}, nil
}

// ReadGames reads the file and converts it into a chronologically sorted dataset
func (r *DataReader) ReadGames(ctx context.Context) (*game.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	return BuildDataset(data, r.filePath, r.logger)
}

// BuildDataset converts raw rows into a chronologically sorted dataset. Columns
// that are not game identity columns and hold only numeric (or boolean) values
// become features. Rows with an unusable date, team or score are dropped; a missing
// feature value is kept as NaN so only the features a run uses decide deletion.
func BuildDataset(data *ExcelData, source string, logger *internal.Logger) (*game.Dataset, error) {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	cols, err := resolveColumns(data.Headers)
	if err != nil {
		return nil, err
	}

	features, ignored := numericColumns(data, cols)
	if len(ignored) > 0 {
		logger.Info("ignoring non-numeric columns: %s", strings.Join(ignored, ", "))
	}

	ds := &game.Dataset{
		Source:       source,
		FeatureNames: features,
		RowsRead:     len(data.Rows),
	}
	for i, row := range data.Rows {
		g, ok := buildGame(row, cols, features)
		if !ok {
			logger.Trace("dropping row %d: missing or invalid date, team or score", i+2)
			ds.RowsDropped++
			continue
		}
		ds.Games = append(ds.Games, g)
	}

	if len(ds.Games) == 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("no complete game rows in %s (%d dropped)", source, ds.RowsDropped))
	}
	if ds.RowsDropped > 0 {
		logger.Warn("dropped %d of %d rows without a usable date, team or score", ds.RowsDropped, ds.RowsRead)
	}

	game.SortChronologically(ds.Games)
	logger.Info("loaded %d games with %d features from %s", len(ds.Games), len(features), source)
	return ds, nil
}

func buildGame(row RawRowData, cols columnMap, features []string) (game.Game, bool) {
	var g game.Game

	date, err := parseGameDate(row[cols.date])
	if err != nil {
		return g, false
	}
	g.Date = date
	g.HomeTeam = row[cols.homeTeam]
	g.AwayTeam = row[cols.awayTeam]
	if g.HomeTeam == "" || g.AwayTeam == "" {
		return g, false
	}

	var ok bool
	if g.HomeScore, ok = parseNumber(row[cols.homeScore]); !ok {
		return g, false
	}
	if g.AwayScore, ok = parseNumber(row[cols.awayScore]); !ok {
		return g, false
	}

	g.Season = game.SeasonFor(date)
	if cols.season != "" {
		season, ok := parseNumber(row[cols.season])
		if !ok {
			return g, false
		}
		g.Season = int(season)
	}

	g.Features = make(map[string]float64, len(features))
	for _, name := range features {
		v, ok := parseNumber(row[name])
		if !ok {
			v = math.NaN()
		}
		g.Features[name] = v
	}
	return g, true
}

// parseGameDate accepts the text layouts of config.ParseDate and Excel date serials
func parseGameDate(cell string) (time.Time, error) {
	t, err := config.ParseDate(cell)
	if err == nil {
		return t, nil
	}
	serial, perr := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if perr != nil || serial < 1 || serial >= maxExcelSerial {
		return time.Time{}, err
	}
	return excelize.ExcelDateToTime(serial, false)
}

// numericColumns returns the feature columns and the non-numeric columns skipped
func numericColumns(data *ExcelData, cols columnMap) (features, ignored []string) {
	for _, header := range data.Headers {
		if header == "" || cols.isIdentity(header) {
			continue
		}
		numeric, present := true, 0
		for _, row := range data.Rows {
			cell := row[header]
			if isMissing(cell) {
				continue
			}
			present++
			if _, ok := parseNumber(cell); !ok {
				numeric = false
				break
			}
		}
		if numeric && present > 0 {
			features = append(features, header)
		} else {
			ignored = append(ignored, header)
		}
	}
	return features, ignored
}

func parseNumber(cell string) (float64, bool) {
	if isMissing(cell) {
		return 0, false
	}
	switch strings.ToLower(cell) {
	case "true", "yes":
		return 1, true
	case "false", "no":
		return 0, true
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func isMissing(cell string) bool {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "", "na", "n/a", "nan", "null", "none", "-",
		"inf", "+inf", "-inf", "infinity", "+infinity", "-infinity", "#div/0!", "#n/a", "#value!", "#num!":
		return true
	}
	return false
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

package excel

import (
	"fmt"
	"strings"

	"bracketlab/internal/errors"
)

// RawRowData represents a row of raw spreadsheet data as string key-value pairs
type RawRowData map[string]string

// ExcelData represents the complete spreadsheet dataset
type ExcelData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// columnAliases lists accepted header spellings for each game identity column
var columnAliases = map[string][]string{
	"date":       {"date", "game_date", "gamedate"},
	"season":     {"season", "year"},
	"home_team":  {"home_team", "home", "hometeam"},
	"away_team":  {"away_team", "away", "awayteam", "visitor"},
	"home_score": {"home_score", "home_pts", "homescore", "home_points"},
	"away_score": {"away_score", "away_pts", "awayscore", "away_points"},
}

// columnMap holds the actual header names of the identity columns
type columnMap struct {
	date, season, homeTeam, awayTeam, homeScore, awayScore string
}

func (c columnMap) isIdentity(header string) bool {
	switch header {
	case c.date, c.season, c.homeTeam, c.awayTeam, c.homeScore, c.awayScore:
		return true
	}
	return false
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

// resolveColumns finds the identity columns by alias; season is optional
func resolveColumns(headers []string) (columnMap, error) {
	byNorm := make(map[string]string, len(headers))
	for _, h := range headers {
		byNorm[normalizeHeader(h)] = h
	}
	find := func(key string) string {
		for _, alias := range columnAliases[key] {
			if h, ok := byNorm[alias]; ok {
				return h
			}
		}
		return ""
	}

	cols := columnMap{
		date:      find("date"),
		season:    find("season"),
		homeTeam:  find("home_team"),
		awayTeam:  find("away_team"),
		homeScore: find("home_score"),
		awayScore: find("away_score"),
	}
	required := []struct{ name, header string }{
		{"date", cols.date},
		{"home_team", cols.homeTeam},
		{"away_team", cols.awayTeam},
		{"home_score", cols.homeScore},
		{"away_score", cols.awayScore},
	}
	for _, req := range required {
		if req.header == "" {
			return cols, errors.InvalidInput(fmt.Sprintf("missing required column %q", req.name))
		}
	}
	return cols, nil
}

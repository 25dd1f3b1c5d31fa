package game

import (
	"time"

	"github.com/montanaflynn/stats"
)

// Dataset is a chronologically ordered set of games
type Dataset struct {
	Source       string   `json:"source"`
	Games        []Game   `json:"games"`
	FeatureNames []string `json:"feature_names"`
	RowsRead     int      `json:"rows_read"`
	RowsDropped  int      `json:"rows_dropped"`
}

// Summary describes a dataset for reports
type Summary struct {
	Source        string    `json:"source"`
	Games         int       `json:"games"`
	RowsRead      int       `json:"rows_read"`
	RowsDropped   int       `json:"rows_dropped"`
	Features      int       `json:"features"`
	FirstDate     time.Time `json:"first_date"`
	LastDate      time.Time `json:"last_date"`
	Seasons       []int     `json:"seasons"`
	HomeWinRate   float64   `json:"home_win_rate"`
	MeanScoreDiff float64   `json:"mean_score_diff"`
	SDScoreDiff   float64   `json:"sd_score_diff"`
}

// Summarize computes descriptive statistics over the dataset
func (d *Dataset) Summarize() Summary {
	s := Summary{
		Source:      d.Source,
		Games:       len(d.Games),
		RowsRead:    d.RowsRead,
		RowsDropped: d.RowsDropped,
		Features:    len(d.FeatureNames),
	}
	if len(d.Games) == 0 {
		return s
	}
	s.FirstDate = d.Games[0].Date
	s.LastDate = d.Games[len(d.Games)-1].Date
	s.Seasons = Seasons(d.Games)
	s.HomeWinRate = HomeWinRate(d.Games)

	diffs := ScoreDiffs(d.Games)
	s.MeanScoreDiff, _ = stats.Mean(diffs)
	s.SDScoreDiff, _ = stats.StandardDeviationSample(diffs)
	return s
}

// Complete returns a copy of the dataset without the games missing a value (absent
// or NaN) in any of features. Those games are added to RowsDropped.
func (d *Dataset) Complete(features []string) *Dataset {
	out := *d
	out.Games = make([]Game, 0, len(d.Games))
	for _, g := range d.Games {
		if g.HasValues(features) {
			out.Games = append(out.Games, g)
		}
	}
	out.RowsDropped += len(d.Games) - len(out.Games)
	return &out
}

// Seasons lists the distinct seasons in order of first appearance
func Seasons(games []Game) []int {
	seen := make(map[int]bool)
	var out []int
	for _, g := range games {
		if !seen[g.Season] {
			seen[g.Season] = true
			out = append(out, g.Season)
		}
	}
	return out
}

// HomeWinRate is the fraction of games won by the home team
func HomeWinRate(games []Game) float64 {
	if len(games) == 0 {
		return 0
	}
	wins := 0
	for _, g := range games {
		if g.HomeWin() {
			wins++
		}
	}
	return float64(wins) / float64(len(games))
}

// ScoreDiffs extracts the score differential of each game
func ScoreDiffs(games []Game) []float64 {
	out := make([]float64, len(games))
	for i, g := range games {
		out[i] = g.ScoreDiff()
	}
	return out
}

// Outcomes extracts the home-win indicator of each game as 0/1
func Outcomes(games []Game) []float64 {
	out := make([]float64, len(games))
	for i, g := range games {
		if g.HomeWin() {
			out[i] = 1
		}
	}
	return out
}

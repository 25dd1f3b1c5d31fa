package game

import (
	"math"
	"sort"
	"time"
)

// Game is one completed matchup with its pre-game metrics
type Game struct {
	Date      time.Time          `json:"date"`
	Season    int                `json:"season"`
	HomeTeam  string             `json:"home_team"`
	AwayTeam  string             `json:"away_team"`
	HomeScore float64            `json:"home_score"`
	AwayScore float64            `json:"away_score"`
	Features  map[string]float64 `json:"features"`
}

// HomeWin reports whether the home team won. Ties count as a loss.
func (g Game) HomeWin() bool {
	return g.HomeScore > g.AwayScore
}

// ScoreDiff is home score minus away score
func (g Game) ScoreDiff() float64 {
	return g.HomeScore - g.AwayScore
}

// Vector returns the named feature values in order
func (g Game) Vector(features []string) []float64 {
	out := make([]float64, len(features))
	for i, name := range features {
		out[i] = g.Features[name]
	}
	return out
}

// HasValues reports whether every named feature is present and not NaN
func (g Game) HasValues(features []string) bool {
	for _, name := range features {
		v, ok := g.Features[name]
		if !ok || math.IsNaN(v) {
			return false
		}
	}
	return true
}

// SeasonFor maps a game date to its season year. Games from August on belong to
// the season that ends the following spring.
func SeasonFor(date time.Time) int {
	if date.Month() >= time.August {
		return date.Year() + 1
	}
	return date.Year()
}

// SortChronologically orders games by date, keeping file order for same-day games
func SortChronologically(games []Game) {
	sort.SliceStable(games, func(i, j int) bool {
		return games[i].Date.Before(games[j].Date)
	})
}

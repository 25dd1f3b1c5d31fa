package split

import (
	"fmt"
	"math"
	"time"

	"bracketlab/domain/core"
	"bracketlab/domain/game"
	"bracketlab/internal/errors"
)

// Config controls how a time-ordered dataset is divided
type Config struct {
	// TrainFraction is the share of games placed in the train segment (default 0.8).
	TrainFraction float64
	// CutoffDate, when set, puts games strictly before it in train and takes
	// precedence over TrainFraction.
	CutoffDate time.Time
	// MinGames is the smallest dataset accepted (default 20).
	MinGames int
}

// Partition is the outcome of a chronological split
type Partition struct {
	Train  []game.Game
	Test   []game.Game
	Cutoff time.Time // date of the first test game
	Stats  PartitionStatistics
}

// PartitionStatistics provides metadata about the partitioning
type PartitionStatistics struct {
	TotalGames      int       `json:"total_games"`
	TrainGames      int       `json:"train_games"`
	TestGames       int       `json:"test_games"`
	TrainRatio      float64   `json:"train_ratio"`
	TestRatio       float64   `json:"test_ratio"`
	TrainStart      time.Time `json:"train_start"`
	TrainEnd        time.Time `json:"train_end"`
	TestStart       time.Time `json:"test_start"`
	TestEnd         time.Time `json:"test_end"`
	TrainHomeWin    float64   `json:"train_home_win_rate"`
	TestHomeWin     float64   `json:"test_home_win_rate"`
	PartitionMethod string    `json:"partition_method"`
}

// Chronological splits games (already sorted by date) into an earlier train segment
// and a later test segment. Games sharing a date never straddle the boundary.
func Chronological(games []game.Game, cfg Config) (*Partition, error) {
	minGames := cfg.MinGames
	if minGames <= 0 {
		minGames = 20
	}
	if len(games) < minGames {
		return nil, errors.InsufficientData(fmt.Sprintf("insufficient data for splitting: need at least %d games, got %d", minGames, len(games)))
	}
	for i := 1; i < len(games); i++ {
		if games[i].Date.Before(games[i-1].Date) {
			return nil, errors.InvalidInput(fmt.Sprintf("games are not in chronological order at row %d", i))
		}
	}

	var boundary int
	method := "fraction"
	if !cfg.CutoffDate.IsZero() {
		method = "cutoff_date"
		boundary = firstOnOrAfter(games, cfg.CutoffDate)
	} else {
		fraction := cfg.TrainFraction
		if fraction <= 0 || fraction >= 1 {
			fraction = 0.8
		}
		boundary = int(math.Round(float64(len(games)) * fraction))
		boundary = advancePastDate(games, boundary)
	}

	if boundary <= 0 || boundary >= len(games) {
		return nil, errors.InsufficientData(fmt.Sprintf("split leaves an empty segment: train=%d, test=%d", boundary, len(games)-boundary))
	}

	p := &Partition{
		Train:  games[:boundary],
		Test:   games[boundary:],
		Cutoff: games[boundary].Date,
	}
	if err := p.verify(); err != nil {
		return nil, err
	}
	p.Stats = p.statistics(method)
	return p, nil
}

// BySeason holds out every game of testSeason; earlier seasons train the model.
// Later seasons are discarded so the test segment never precedes training data.
func BySeason(games []game.Game, testSeason int) (*Partition, error) {
	p := &Partition{}
	for _, g := range games {
		switch {
		case g.Season < testSeason:
			p.Train = append(p.Train, g)
		case g.Season == testSeason:
			p.Test = append(p.Test, g)
		}
	}
	if len(p.Train) == 0 || len(p.Test) == 0 {
		return nil, errors.InsufficientData(fmt.Sprintf("season %d holdout leaves an empty segment: train=%d, test=%d", testSeason, len(p.Train), len(p.Test)))
	}
	p.Cutoff = p.Test[0].Date
	if err := p.verify(); err != nil {
		return nil, err
	}
	p.Stats = p.statistics("season")
	return p, nil
}

// calendarDay drops the time of day; tip-off times never separate games of one date
func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// firstOnOrAfter returns the index of the first game played on or after the cutoff day
func firstOnOrAfter(games []game.Game, cutoff time.Time) int {
	day := calendarDay(cutoff)
	for i, g := range games {
		if !calendarDay(g.Date).Before(day) {
			return i
		}
	}
	return len(games)
}

// advancePastDate moves the boundary forward so that the game at boundary-1 and the
// game at boundary fall on different dates
func advancePastDate(games []game.Game, boundary int) int {
	if boundary <= 0 || boundary >= len(games) {
		return boundary
	}
	last := calendarDay(games[boundary-1].Date)
	for boundary < len(games) && calendarDay(games[boundary].Date).Equal(last) {
		boundary++
	}
	return boundary
}

// verify checks no train game is dated after the first test game
func (p *Partition) verify() error {
	trainEnd := p.Train[len(p.Train)-1].Date
	testStart := p.Test[0].Date
	for _, g := range p.Train {
		if g.Date.After(trainEnd) {
			trainEnd = g.Date
		}
	}
	for _, g := range p.Test {
		if g.Date.Before(testStart) {
			testStart = g.Date
		}
	}
	if trainEnd.After(testStart) {
		return core.NewLeakageError(trainEnd.Format("2006-01-02"), testStart.Format("2006-01-02"))
	}
	return nil
}

func (p *Partition) statistics(method string) PartitionStatistics {
	total := len(p.Train) + len(p.Test)
	return PartitionStatistics{
		TotalGames:      total,
		TrainGames:      len(p.Train),
		TestGames:       len(p.Test),
		TrainRatio:      float64(len(p.Train)) / float64(total),
		TestRatio:       float64(len(p.Test)) / float64(total),
		TrainStart:      p.Train[0].Date,
		TrainEnd:        p.Train[len(p.Train)-1].Date,
		TestStart:       p.Test[0].Date,
		TestEnd:         p.Test[len(p.Test)-1].Date,
		TrainHomeWin:    game.HomeWinRate(p.Train),
		TestHomeWin:     game.HomeWinRate(p.Test),
		PartitionMethod: method,
	}
}

package split

import (
	"errors"
	"testing"
	"time"

	"bracketlab/domain/core"
	"bracketlab/domain/game"
	apperrors "bracketlab/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2023, 11, 6, 0, 0, 0, 0, time.UTC)

// gamesOnDays builds one game per entry, dated start + days[i]
func gamesOnDays(days ...int) []game.Game {
	out := make([]game.Game, len(days))
	for i, d := range days {
		date := start.AddDate(0, 0, d)
		out[i] = game.Game{Date: date, Season: game.SeasonFor(date), HomeScore: float64(70 + i%3), AwayScore: 71}
	}
	return out
}

func sequentialDays(n int) []int {
	days := make([]int, n)
	for i := range days {
		days[i] = i
	}
	return days
}

func TestChronologicalFraction(t *testing.T) {
	games := gamesOnDays(sequentialDays(50)...)

	p, err := Chronological(games, Config{TrainFraction: 0.8})
	require.NoError(t, err)

	assert.Len(t, p.Train, 40)
	assert.Len(t, p.Test, 10)
	assert.Equal(t, games[40].Date, p.Cutoff)
	assert.Equal(t, "fraction", p.Stats.PartitionMethod)
	assert.InDelta(t, 0.8, p.Stats.TrainRatio, 1e-12)
	assert.True(t, p.Stats.TrainEnd.Before(p.Stats.TestStart))
}

func TestChronologicalKeepsSameDayGamesTogether(t *testing.T) {
	// 20 games; indices 15..18 share day 15.
	days := sequentialDays(20)
	days[16], days[17], days[18] = 15, 15, 15
	days[19] = 16
	games := gamesOnDays(days...)

	p, err := Chronological(games, Config{TrainFraction: 0.8})
	require.NoError(t, err)

	// round(20*0.8) = 16 would cut day 15 in half; the boundary moves to 19.
	assert.Len(t, p.Train, 19)
	assert.Len(t, p.Test, 1)
	for _, g := range p.Train {
		assert.False(t, g.Date.After(p.Cutoff))
		assert.NotEqual(t, p.Cutoff, g.Date)
	}
}

// evening doubleheaders: two games a day at 18:00 and 21:00
func doubleheaders(days int) []game.Game {
	var out []game.Game
	for d := 0; d < days; d++ {
		for _, hour := range []int{18, 21} {
			date := start.AddDate(0, 0, d).Add(time.Duration(hour) * time.Hour)
			out = append(out, game.Game{Date: date, Season: game.SeasonFor(date), HomeScore: 70, AwayScore: 68})
		}
	}
	return out
}

func TestChronologicalKeepsTimedGamesOfOneDayTogether(t *testing.T) {
	games := doubleheaders(10)

	p, err := Chronological(games, Config{TrainFraction: 0.75})
	require.NoError(t, err)
	assert.Len(t, p.Train, 16)
	assert.Len(t, p.Test, 4)
	last := p.Train[len(p.Train)-1].Date
	first := p.Test[0].Date
	assert.NotEqual(t, last.Format("2006-01-02"), first.Format("2006-01-02"))
	assert.Equal(t, 21, last.Hour())
	assert.Equal(t, 18, first.Hour())
}

func TestChronologicalCutoffIgnoresTimeOfDay(t *testing.T) {
	games := doubleheaders(10)
	cutoff := start.AddDate(0, 0, 4).Add(20 * time.Hour)

	p, err := Chronological(games, Config{CutoffDate: cutoff})
	require.NoError(t, err)
	assert.Len(t, p.Train, 8)
	assert.Equal(t, start.AddDate(0, 0, 4).Add(18*time.Hour), p.Cutoff)
}

func TestChronologicalCutoffDate(t *testing.T) {
	games := gamesOnDays(sequentialDays(30)...)

	p, err := Chronological(games, Config{CutoffDate: start.AddDate(0, 0, 25), TrainFraction: 0.5})
	require.NoError(t, err)
	assert.Len(t, p.Train, 25)
	assert.Len(t, p.Test, 5)
	assert.Equal(t, "cutoff_date", p.Stats.PartitionMethod)
}

func TestChronologicalErrors(t *testing.T) {
	_, err := Chronological(gamesOnDays(1, 2, 3), Config{})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInsufficientData, apperrors.GetCode(err))

	games := gamesOnDays(sequentialDays(25)...)
	_, err = Chronological(games, Config{CutoffDate: start.AddDate(1, 0, 0)})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInsufficientData, apperrors.GetCode(err))

	// Every game on the same day: the boundary runs off the end.
	_, err = Chronological(gamesOnDays(make([]int, 25)...), Config{})
	require.Error(t, err)

	unsorted := gamesOnDays(sequentialDays(25)...)
	unsorted[3], unsorted[10] = unsorted[10], unsorted[3]
	_, err = Chronological(unsorted, Config{})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
}

func TestBySeason(t *testing.T) {
	// Days 0..59 start in Nov 2023 (season 2024); days 300+ fall in season 2025.
	days := append(sequentialDays(30), 300, 301, 302, 303, 304)
	games := gamesOnDays(days...)

	p, err := BySeason(games, 2025)
	require.NoError(t, err)
	assert.Len(t, p.Train, 30)
	assert.Len(t, p.Test, 5)
	assert.Equal(t, "season", p.Stats.PartitionMethod)

	_, err = BySeason(games, 2030)
	assert.Equal(t, apperrors.CodeInsufficientData, apperrors.GetCode(err))
}

func TestVerifyDetectsLeakage(t *testing.T) {
	games := gamesOnDays(0, 1, 2, 3)
	p := &Partition{Train: []game.Game{games[0], games[3]}, Test: []game.Game{games[1], games[2]}}
	err := p.verify()
	assert.True(t, errors.Is(err, core.ErrLeakage))
}

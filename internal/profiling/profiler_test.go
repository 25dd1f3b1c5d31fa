package profiling

import (
	"math"
	"testing"
	"time"

	"bracketlab/domain/game"
	"bracketlab/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func games(rows ...[3]float64) []game.Game {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]game.Game, len(rows))
	for i, r := range rows {
		out[i] = game.Game{
			Date:      day.AddDate(0, 0, i),
			HomeTeam:  "Home",
			AwayTeam:  "Away",
			HomeScore: 70 + r[1],
			AwayScore: 70,
			Features:  map[string]float64{"edge": r[0], "flat": 1, "gappy": r[2]},
		}
	}
	return out
}

func TestProfileSummaries(t *testing.T) {
	gs := games(
		[3]float64{1, -6, 1},
		[3]float64{2, -4, math.NaN()},
		[3]float64{3, -3, 3},
		[3]float64{4, -1, 4},
		[3]float64{5, 1, 5},
		[3]float64{6, 2, 6},
		[3]float64{7, 4, 7},
		[3]float64{8, 6, 8},
		[3]float64{100, 9, 9},
	)
	profiles := NewProfiler(nil).Profile(gs, []string{"edge", "flat", "gappy", "absent"})
	require.Len(t, profiles, 4)

	edge := profiles[0]
	assert.Equal(t, "edge", edge.Feature)
	assert.Equal(t, 9, edge.N)
	assert.Zero(t, edge.Missing)
	assert.InDelta(t, 136.0/9, edge.Mean, 1e-12)
	assert.Equal(t, 1.0, edge.Min)
	assert.Equal(t, 100.0, edge.Max)
	assert.Equal(t, 5.0, edge.Median)
	assert.Equal(t, 2.5, edge.Q25)
	assert.Equal(t, 7.5, edge.Q75)
	assert.Equal(t, 1, edge.Outliers)
	assert.Greater(t, edge.Skewness, 1.0)
	assert.Greater(t, edge.WinCorrelation, 0.0)
	assert.Greater(t, edge.MarginCorrelation, 0.5)

	flat := profiles[1]
	assert.Zero(t, flat.StdDev)
	assert.True(t, math.IsNaN(flat.Skewness))
	assert.True(t, math.IsNaN(flat.WinCorrelation))

	gappy := profiles[2]
	assert.Equal(t, 8, gappy.N)
	assert.Equal(t, 1, gappy.Missing)

	absent := profiles[3]
	assert.Zero(t, absent.N)
	assert.Equal(t, 9, absent.Missing)
	assert.True(t, math.IsNaN(absent.Mean))
}

func TestProfileSyntheticRankings(t *testing.T) {
	ds := testkit.NewSeasonGenerator(testkit.DefaultSeasonConfig()).Generate()
	profiles := NewProfiler(nil).Profile(ds.Games, []string{"home_rank", "home_adj_off"})

	// lower rank numbers are stronger teams, so the home rank works against home wins
	assert.Less(t, profiles[0].WinCorrelation, 0.0)
	assert.Greater(t, profiles[1].MarginCorrelation, 0.0)
	assert.Equal(t, len(ds.Games), profiles[0].N)
}

package excel

import (
	"context"
	"path/filepath"
	"testing"

	"bracketlab/internal"
	"bracketlab/internal/errors"
	"bracketlab/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallSeason(missing float64) testkit.SeasonGeneratorConfig {
	cfg := testkit.DefaultSeasonConfig()
	cfg.Teams = 10
	cfg.Seasons = 1
	cfg.GamesPerTeam = 6
	cfg.MissingRate = missing
	return cfg
}

func TestWriteGames_ReadBack(t *testing.T) {
	for _, ext := range []string{".csv", ".xlsx"} {
		t.Run(ext, func(t *testing.T) {
			ds := testkit.NewSeasonGenerator(smallSeason(0)).Generate()
			path := filepath.Join(t.TempDir(), "games"+ext)
			require.NoError(t, WriteGames(path, ds))

			back, err := NewDataReader(path).WithLogger(internal.NewNopLogger()).ReadGames(context.Background())
			require.NoError(t, err)
			assert.Equal(t, ds.FeatureNames, back.FeatureNames)
			require.Len(t, back.Games, len(ds.Games))
			assert.Equal(t, 0, back.RowsDropped)

			first, got := ds.Games[0], back.Games[0]
			assert.Equal(t, first.Date, got.Date)
			assert.Equal(t, first.HomeTeam, got.HomeTeam)
			assert.Equal(t, first.ScoreDiff(), got.ScoreDiff())
			assert.InDelta(t, first.Features["home_adj_off"], got.Features["home_adj_off"], 1e-9)
		})
	}
}

func TestWriteGames_BlankCellsReadAsMissing(t *testing.T) {
	ds := testkit.NewSeasonGenerator(smallSeason(0.05)).Generate()
	path := filepath.Join(t.TempDir(), "games.csv")
	require.NoError(t, WriteGames(path, ds))

	back, err := NewDataReader(path).WithLogger(internal.NewNopLogger()).ReadGames(context.Background())
	require.NoError(t, err)
	assert.Zero(t, back.RowsDropped)
	assert.Equal(t, len(ds.Games), back.RowsRead)
	require.Len(t, back.Games, len(ds.Games))

	complete := back.Complete(back.FeatureNames)
	assert.Greater(t, complete.RowsDropped, 0)
	assert.Equal(t, len(ds.Games)-complete.RowsDropped, len(complete.Games))
}

func TestWriteGames_UnsupportedExtension(t *testing.T) {
	ds := testkit.NewSeasonGenerator(smallSeason(0)).Generate()
	err := WriteGames(filepath.Join(t.TempDir(), "games.json"), ds)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}

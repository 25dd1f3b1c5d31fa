package feed

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"bracketlab/internal"
	"bracketlab/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageOne = `{
  "data": {"games": [
    {"date": "2024-01-05", "home_team": "Duke", "away_team": "UNC", "home_score": 80, "away_score": 75, "adj_oe_diff": 4.5, "neutral": false},
    {"date": "2023-11-10", "home_team": "Kansas", "away_team": "Baylor", "home_score": 70, "away_score": 72, "adj_oe_diff": 1.25, "neutral": false}
  ]},
  "next": "p2"
}`

const pageTwo = `{
  "data": {"games": [
    {"date": "2023-12-01", "home_team": "Purdue", "away_team": "Indiana", "home_score": 81, "away_score": 60, "adj_oe_diff": 9, "neutral": true, "venue": {"city": "West Lafayette"}},
    {"date": "2024-01-06", "home_team": "Gonzaga", "away_team": "Saint Mary's", "home_score": 66, "away_score": 61, "adj_oe_diff": null, "neutral": true}
  ]},
  "next": ""
}`

func newReader(cfg Config) *Reader {
	return NewReader(cfg, internal.NewNopLogger())
}

func TestIsFeed(t *testing.T) {
	assert.True(t, IsFeed("https://example.com/games"))
	assert.True(t, IsFeed("HTTP://example.com/games"))
	assert.True(t, IsFeed("data/games.JSON"))
	assert.False(t, IsFeed("data/games.csv"))
	assert.False(t, IsFeed("data/games.xlsx"))
}

func TestReadGamesPaged(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "2024", r.Header.Get("X-Season"))
		switch r.URL.Query().Get("page") {
		case "":
			fmt.Fprint(w, pageOne)
		case "p2":
			fmt.Fprint(w, pageTwo)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	ds, err := newReader(Config{
		Location:    srv.URL,
		DataPath:    "data.games",
		CursorPath:  "next",
		CursorParam: "page",
		Headers:     map[string]string{"X-Season": "2024"},
		BearerToken: "secret",
	}).ReadGames(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, srv.URL, ds.Source)
	assert.Equal(t, 4, ds.RowsRead)
	assert.Zero(t, ds.RowsDropped)
	assert.Equal(t, []string{"adj_oe_diff", "neutral"}, ds.FeatureNames)
	require.Len(t, ds.Games, 4)

	assert.Equal(t, "Kansas", ds.Games[0].HomeTeam)
	assert.Equal(t, "Purdue", ds.Games[1].HomeTeam)
	assert.Equal(t, "Duke", ds.Games[2].HomeTeam)
	assert.Equal(t, 1.0, ds.Games[1].Features["neutral"])
	assert.Equal(t, 9.0, ds.Games[1].Features["adj_oe_diff"])
	assert.Equal(t, 5.0, ds.Games[2].ScoreDiff())
	assert.True(t, math.IsNaN(ds.Games[3].Features["adj_oe_diff"]), "null is missing")
}

func TestReadGamesStopsAtMaxPages(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, pageOne)
	}))
	defer srv.Close()

	ds, err := newReader(Config{
		Location:   srv.URL,
		DataPath:   "data.games",
		CursorPath: "next",
		MaxPages:   3,
	}).ReadGames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 6, ds.RowsRead)
}

func TestReadGamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.json")
	body := `[
  {"Date": "2024-02-01", "Home Team": "Houston", "Away Team": "Iowa State", "Home Score": 73, "Away Score": 65, "net_rank_diff": -3},
  {"Date": "2024-02-03", "Home Team": "Auburn", "Away Team": "Alabama", "Home Score": 79, "Away Score": 81, "net_rank_diff": 2}
]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	ds, err := newReader(Config{Location: path}).ReadGames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"net_rank_diff"}, ds.FeatureNames)
	require.Len(t, ds.Games, 2)
	assert.Equal(t, "Houston", ds.Games[0].HomeTeam)
	assert.False(t, ds.Games[1].HomeWin())
}

func TestReadGamesSingleObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.json")
	body := `{"game": {"date": "2024-03-01", "home_team": "A", "away_team": "B", "home_score": 70, "away_score": 60, "x": 1}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	ds, err := newReader(Config{Location: path, DataPath: "game"}).ReadGames(context.Background())
	require.NoError(t, err)
	require.Len(t, ds.Games, 1)
	assert.Equal(t, 10.0, ds.Games[0].ScoreDiff())
}

func TestReadGamesErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		return path
	}
	broken := write("broken.json", `{"games": [`)
	scalar := write("scalar.json", `{"games": 3}`)
	empty := write("empty.json", `{"games": []}`)

	tests := []struct {
		name string
		cfg  Config
		msg  string
	}{
		{"missing file", Config{Location: filepath.Join(dir, "absent.json")}, "not found"},
		{"invalid json", Config{Location: broken}, "not valid JSON"},
		{"missing path", Config{Location: empty, DataPath: "rows"}, `"rows" not found`},
		{"scalar path", Config{Location: scalar, DataPath: "games"}, "not an array"},
		{"no records", Config{Location: empty, DataPath: "games"}, "no game records"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newReader(tt.cfg).ReadGames(context.Background())
			require.Error(t, err)
			assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestReadGamesBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newReader(Config{Location: srv.URL}).ReadGames(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeExternalService, errors.GetCode(err))
	assert.Contains(t, err.Error(), "status 401")
}

func TestReadGamesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newReader(Config{Location: "https://example.invalid/games"}).ReadGames(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

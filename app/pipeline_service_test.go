package app

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"bracketlab/adapters/excel"
	"bracketlab/adapters/feed"
	"bracketlab/domain/core"
	"bracketlab/domain/game"
	"bracketlab/domain/run"
	"bracketlab/internal"
	"bracketlab/internal/errors"
	"bracketlab/internal/evaluation"
	"bracketlab/internal/selection"
	"bracketlab/internal/testkit"
	"bracketlab/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Save(ctx context.Context, report *run.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockRunRepository) Get(ctx context.Context, id core.RunID) (*run.Report, error) {
	args := m.Called(ctx, id)
	if r, ok := args.Get(0).(*run.Report); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRunRepository) List(ctx context.Context, limit int) ([]run.Summary, error) {
	args := m.Called(ctx, limit)
	if s, ok := args.Get(0).([]run.Summary); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type staticSource struct {
	ds *game.Dataset
}

func (s staticSource) ReadGames(ctx context.Context) (*game.Dataset, error) {
	return s.ds, nil
}

func syntheticRequest() RunRequest {
	ds := testkit.NewSeasonGenerator(testkit.DefaultSeasonConfig()).Generate()
	return RunRequest{Source: staticSource{ds: ds}}
}

func TestPipelineService_Run(t *testing.T) {
	repo := &MockRunRepository{}
	repo.On("Save", mock.Anything, mock.AnythingOfType("*run.Report")).Return(nil).Once()

	svc := NewPipelineService(repo, internal.NewNopLogger())
	report, err := svc.Run(context.Background(), syntheticRequest())
	require.NoError(t, err)
	repo.AssertExpectations(t)

	assert.NotEmpty(t, report.ID)
	assert.True(t, report.Manifest.Verify())
	assert.Equal(t, "aic", report.Manifest.Criterion)

	ds := report.Dataset
	assert.Equal(t, 800, ds.Games)
	assert.Equal(t, ds.Games, ds.TrainGames+ds.TestGames)
	assert.InDelta(t, 0.8, float64(ds.TrainGames)/float64(ds.Games), 0.05)
	assert.ElementsMatch(t, []string{"home_rank", "away_rank", "home_sos", "away_sos"}, ds.RankingFeatures)
	require.Len(t, ds.Profiles, len(ds.Features))
	for _, p := range ds.Profiles {
		assert.Equal(t, ds.TrainGames, p.N+p.Missing, p.Feature)
	}

	require.Len(t, report.Models, 4)
	var order []string
	for _, m := range report.Models {
		order = append(order, m.Name())
	}
	assert.Equal(t, []string{
		"logistic/with_rankings", "linear/with_rankings",
		"logistic/without_rankings", "linear/without_rankings",
	}, order)

	for _, m := range report.Models {
		assert.NotEmpty(t, m.Selected, m.Name())
		assert.LessOrEqual(t, float64(m.FinalCriterion), float64(m.StartCriterion), m.Name())
		assert.Len(t, m.Coefficients, len(m.Selected)+1, m.Name())
	}

	logit, ok := report.Model(run.KindLogistic, game.SetWithoutRankings)
	require.True(t, ok)
	require.NotNil(t, logit.Test)
	require.NotNil(t, logit.Threshold)
	assert.Greater(t, float64(logit.Test.Accuracy), 0.6)
	assert.Greater(t, float64(logit.Test.AUC), 0.65)
	assert.Equal(t, ds.TestGames, logit.Test.N)
	assert.Equal(t, ds.TrainGames, logit.Train.N)
	assert.Equal(t, logit.Threshold.Value, logit.Test.Threshold)
	assert.Nil(t, logit.Regression)

	linear, ok := report.Model(run.KindLinear, game.SetWithoutRankings)
	require.True(t, ok)
	require.NotNil(t, linear.Regression)
	assert.Greater(t, float64(linear.Regression.RSquared), 0.2)
	assert.InDelta(t, 0.95, float64(linear.Regression.IntervalCoverage), 0.07)
	assert.Greater(t, float64(linear.Regression.WinnerAccuracy), 0.6)
	assert.Nil(t, linear.Test)

	assert.Len(t, report.Predictions, 2*ds.TestGames)
	assert.Len(t, report.Comparison, 12)
	for _, p := range report.Predictions {
		assert.True(t, p.Lower <= p.Margin && p.Margin <= p.Upper)
	}
	for _, c := range report.Comparison {
		assert.False(t, c.HasInterval(), "no bootstrap requested")
	}
	for _, m := range report.Models {
		assert.Nil(t, m.Stability, m.Name())
	}
}

// sparseDataset adds a scout_notes column missing on every other game
func sparseDataset() *game.Dataset {
	ds := testkit.NewSeasonGenerator(testkit.DefaultSeasonConfig()).Generate()
	for i := range ds.Games {
		v := float64(i % 7)
		if i%2 == 0 {
			v = math.NaN()
		}
		ds.Games[i].Features["scout_notes"] = v
	}
	ds.FeatureNames = append(ds.FeatureNames, "scout_notes")
	return ds
}

func TestPipelineService_DropsOnlyForUsedFeatures(t *testing.T) {
	svc := NewPipelineService(nil, internal.NewNopLogger())

	excluded, err := svc.Run(context.Background(), RunRequest{
		Source: staticSource{ds: sparseDataset()},
		Rules:  game.FeatureRules{Exclude: []string{"scout_notes"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 800, excluded.Dataset.Games)
	assert.Zero(t, excluded.Dataset.RowsDropped)
	assert.NotContains(t, excluded.Dataset.Features, "scout_notes")

	used, err := svc.Run(context.Background(), RunRequest{Source: staticSource{ds: sparseDataset()}})
	require.NoError(t, err)
	assert.Equal(t, 400, used.Dataset.Games)
	assert.Equal(t, 400, used.Dataset.RowsDropped)
	assert.Contains(t, used.Dataset.Features, "scout_notes")
}

func TestPipelineService_BootstrapAndStability(t *testing.T) {
	req := syntheticRequest()
	req.Bootstrap = evaluation.BootstrapConfig{Resamples: 200}
	req.Stability = validation.StabilitySelectionConfig{SubsampleCount: 6, Workers: 2}
	req.Seed = 11

	svc := NewPipelineService(nil, internal.NewNopLogger())
	report, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 200, report.Manifest.Bootstrap)
	assert.Equal(t, 0.95, report.Manifest.BootstrapLevel)
	assert.Equal(t, 6, report.Manifest.Stability)
	assert.Equal(t, int64(11), report.Manifest.Seed)

	intervals := 0
	for _, c := range report.Comparison {
		if c.Metric == "terms" {
			assert.False(t, c.HasInterval())
			continue
		}
		require.True(t, c.HasInterval(), c.Kind+" "+c.Metric)
		assert.LessOrEqual(t, float64(c.DeltaLower), float64(c.DeltaUpper))
		intervals++
	}
	assert.Equal(t, 10, intervals)

	for _, m := range report.Models {
		require.NotNil(t, m.Stability, m.Name())
		assert.Equal(t, 6, m.Stability.SubsampleCount)
		assert.Len(t, m.Stability.Features, len(m.Candidates))
		for _, f := range m.Stability.Features {
			assert.GreaterOrEqual(t, float64(f.Frequency), 0.0)
			assert.LessOrEqual(t, float64(f.Frequency), 1.0)
		}
	}

	again, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, report.Comparison, again.Comparison)
	assert.Equal(t, report.Manifest.Fingerprint, again.Manifest.Fingerprint)
}

func TestPipelineService_RunFromFile(t *testing.T) {
	cfg := testkit.DefaultSeasonConfig()
	cfg.Seasons = 1
	ds := testkit.NewSeasonGenerator(cfg).Generate()
	path := filepath.Join(t.TempDir(), "games.csv")
	require.NoError(t, excel.WriteGames(path, ds))

	svc := NewPipelineService(nil, internal.NewNopLogger())
	report, err := svc.Run(context.Background(), RunRequest{DataFile: path, Criterion: selection.BIC})
	require.NoError(t, err)
	assert.Equal(t, path, report.Dataset.Source)
	assert.Equal(t, "bic", report.Manifest.Criterion)
	assert.Len(t, report.Models, 4)
}

func TestPipelineService_RunFromFeed(t *testing.T) {
	cfg := testkit.DefaultSeasonConfig()
	cfg.Seasons = 1
	ds := testkit.NewSeasonGenerator(cfg).Generate()

	records := make([]map[string]any, 0, len(ds.Games))
	for _, g := range ds.Games {
		rec := map[string]any{
			"date":       g.Date.Format("2006-01-02"),
			"home_team":  g.HomeTeam,
			"away_team":  g.AwayTeam,
			"home_score": g.HomeScore,
			"away_score": g.AwayScore,
		}
		for name, v := range g.Features {
			rec[name] = v
		}
		records = append(records, rec)
	}
	body, err := json.Marshal(map[string]any{"results": records})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	svc := NewPipelineService(nil, internal.NewNopLogger())
	report, err := svc.Run(context.Background(), RunRequest{
		DataFile: srv.URL + "/games",
		Feed:     feed.Config{DataPath: "results"},
	})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/games", report.Dataset.Source)
	assert.Equal(t, len(ds.Games), report.Dataset.Games)
	assert.ElementsMatch(t, ds.FeatureNames, report.Dataset.Features)
	assert.Len(t, report.Models, 4)
}

func TestPipelineService_Deterministic(t *testing.T) {
	svc := NewPipelineService(nil, internal.NewNopLogger())
	a, err := svc.Run(context.Background(), syntheticRequest())
	require.NoError(t, err)
	b, err := svc.Run(context.Background(), syntheticRequest())
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Manifest.Fingerprint, b.Manifest.Fingerprint)
	for i := range a.Models {
		assert.Equal(t, a.Models[i].Selected, b.Models[i].Selected)
		assert.Equal(t, a.Models[i].Metrics(), b.Models[i].Metrics())
	}
}

func TestPipelineService_SaveFailure(t *testing.T) {
	repo := &MockRunRepository{}
	repo.On("Save", mock.Anything, mock.Anything).Return(errors.DatabaseError("disk full"))

	svc := NewPipelineService(repo, internal.NewNopLogger())
	report, err := svc.Run(context.Background(), syntheticRequest())
	require.Error(t, err)
	assert.NotNil(t, report, "report is returned even when persistence fails")
	assert.True(t, errors.HasCode(err, errors.CodeDatabaseError))
}

func TestPipelineService_Errors(t *testing.T) {
	svc := NewPipelineService(nil, internal.NewNopLogger())

	tests := []struct {
		name string
		req  RunRequest
		code string
	}{
		{"no data", RunRequest{}, errors.CodeInvalidInput},
		{"bad criterion", RunRequest{DataFile: "x.csv", Criterion: "cp"}, errors.CodeInvalidInput},
		{"bad level", RunRequest{DataFile: "x.csv", IntervalLevel: 1.5}, errors.CodeInvalidInput},
		{"bad bootstrap level", RunRequest{DataFile: "x.csv", Bootstrap: evaluation.BootstrapConfig{Resamples: 10, Level: 2}}, errors.CodeInvalidInput},
		{"negative resamples", RunRequest{DataFile: "x.csv", Bootstrap: evaluation.BootstrapConfig{Resamples: -1}}, errors.CodeInvalidInput},
		{"bad stability fraction", RunRequest{DataFile: "x.csv", Stability: validation.StabilitySelectionConfig{SubsampleCount: 5, SubsampleFraction: 1.2}}, errors.CodeInvalidInput},
		{"missing file", RunRequest{DataFile: filepath.Join(t.TempDir(), "nope.csv")}, errors.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Run(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), fmt.Sprintf("got %v", err))
		})
	}

	t.Run("unknown feature", func(t *testing.T) {
		req := syntheticRequest()
		req.Rules = game.FeatureRules{Include: []string{"not_a_column"}}
		_, err := svc.Run(context.Background(), req)
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrUnknownFeature)
		assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
	})

	t.Run("too few games", func(t *testing.T) {
		cfg := testkit.DefaultSeasonConfig()
		cfg.Teams, cfg.GamesPerTeam, cfg.Seasons = 4, 2, 1
		req := RunRequest{Source: staticSource{ds: testkit.NewSeasonGenerator(cfg).Generate()}}
		_, err := svc.Run(context.Background(), req)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeInsufficientData))
	})
}

func TestPipelineService_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewPipelineService(nil, internal.NewNopLogger())
	_, err := svc.Run(ctx, syntheticRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

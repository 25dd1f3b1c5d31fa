package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bracketlab/domain/core"
	"bracketlab/domain/game"
	"bracketlab/domain/run"
	"bracketlab/internal"
	"bracketlab/internal/errors"
	"bracketlab/ports"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Save(ctx context.Context, r *run.Report) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRunRepository) Get(ctx context.Context, id core.RunID) (*run.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*run.Report), args.Error(1)
}

func (m *MockRunRepository) List(ctx context.Context, limit int) ([]run.Summary, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]run.Summary), args.Error(1)
}

type MockMetricHistory struct {
	mock.Mock
}

func (m *MockMetricHistory) MetricHistory(ctx context.Context, kind, featureSet, metric string, limit int) ([]run.MetricPoint, error) {
	args := m.Called(ctx, kind, featureSet, metric, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]run.MetricPoint), args.Error(1)
}

func serve(t *testing.T, repo *MockRunRepository, metrics *MockMetricHistory, target string) *httptest.ResponseRecorder {
	t.Helper()
	var history ports.MetricHistoryReader
	if metrics != nil {
		history = metrics
	}
	router := NewRouter(NewRunsHandler(repo, history, internal.NewNopLogger()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestListRuns(t *testing.T) {
	repo := new(MockRunRepository)
	summaries := []run.Summary{{ID: core.NewRunID(), Source: "games.csv", TrainGames: 80, TestGames: 20}}
	repo.On("List", mock.Anything, 10).Return(summaries, nil)

	rec := serve(t, repo, nil, "/api/runs?limit=10")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs  []run.Summary `json:"runs"`
		Count int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, summaries[0].ID, body.Runs[0].ID)
	repo.AssertExpectations(t)
}

func TestListRunsLimits(t *testing.T) {
	tests := []struct {
		query string
		limit int
		code  int
	}{
		{"", defaultListLimit, http.StatusOK},
		{"?limit=100000", maxListLimit, http.StatusOK},
		{"?limit=0", 0, http.StatusBadRequest},
		{"?limit=abc", 0, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			repo := new(MockRunRepository)
			if tt.code == http.StatusOK {
				repo.On("List", mock.Anything, tt.limit).Return([]run.Summary{}, nil)
			}
			rec := serve(t, repo, nil, "/api/runs"+tt.query)
			assert.Equal(t, tt.code, rec.Code)
			repo.AssertExpectations(t)
		})
	}
}

func TestListRunsStoreFailure(t *testing.T) {
	repo := new(MockRunRepository)
	repo.On("List", mock.Anything, defaultListLimit).Return(nil, errors.DatabaseError("connection refused"))

	rec := serve(t, repo, nil, "/api/runs")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errors.CodeDatabaseError, decodeError(t, rec))
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestGetRun(t *testing.T) {
	id := core.NewRunID()
	r := &run.Report{
		ID:        id,
		CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Dataset:   run.DatasetSummary{Source: "games.csv", HomeWinRate: run.NA},
	}
	repo := new(MockRunRepository)
	repo.On("Get", mock.Anything, id).Return(r, nil)

	rec := serve(t, repo, nil, "/api/runs/"+id.String())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, rec.Body.String(), `"home_win_rate":null`)

	rec = serve(t, repo, nil, "/api/runs/"+id.String()+"?format=markdown")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "# Run "+id.String()))

	rec = serve(t, repo, nil, "/api/runs/"+id.String()+"?format=text")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	rec = serve(t, repo, nil, "/api/runs/"+id.String()+"?format=html")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<!DOCTYPE html>")

	rec = serve(t, repo, nil, "/api/runs/"+id.String()+"?format=pdf")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRunErrors(t *testing.T) {
	missing := core.NewRunID()
	repo := new(MockRunRepository)
	repo.On("Get", mock.Anything, missing).
		Return(nil, errors.WithCode(errors.CodeNotFound, core.NewNotFoundError("run", missing.String())))

	rec := serve(t, repo, nil, "/api/runs/"+missing.String())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errors.CodeNotFound, decodeError(t, rec))

	rec = serve(t, repo, nil, "/api/runs/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.CodeInvalidInput, decodeError(t, rec))

	rec = serve(t, repo, nil, "/api/nothing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricHistory(t *testing.T) {
	repo := new(MockRunRepository)
	metrics := new(MockMetricHistory)
	points := []run.MetricPoint{
		{RunID: core.NewRunID(), Value: 0.71},
		{RunID: core.NewRunID(), Value: run.NA},
	}
	metrics.On("MetricHistory", mock.Anything, run.KindLogistic, game.SetWithRankings, "accuracy", 5).Return(points, nil)

	rec := serve(t, repo, metrics, fmt.Sprintf("/api/metrics/%s/%s/accuracy?limit=5", run.KindLogistic, game.SetWithRankings))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Metric string            `json:"metric"`
		Points []run.MetricPoint `json:"points"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "accuracy", body.Metric)
	require.Len(t, body.Points, 2)
	assert.InDelta(t, 0.71, float64(body.Points[0].Value), 1e-12)
	assert.False(t, body.Points[1].Value.Defined())
	metrics.AssertExpectations(t)
}

func TestMetricHistoryValidation(t *testing.T) {
	metrics := new(MockMetricHistory)

	rec := serve(t, new(MockRunRepository), metrics, "/api/metrics/forest/with_rankings/accuracy")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, new(MockRunRepository), metrics, "/api/metrics/linear/everything/rmse")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, new(MockRunRepository), nil, "/api/metrics/linear/with_rankings/rmse")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, metrics.Calls)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(errors.NotFound("run")))
	assert.Equal(t, http.StatusBadRequest, StatusFor(errors.ValidationError("bad")))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(fmt.Errorf("plain")))
}

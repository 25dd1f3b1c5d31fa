package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bracketlab/adapters/store"
	"bracketlab/domain/core"
	"bracketlab/domain/game"
	"bracketlab/domain/run"
	"bracketlab/internal"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestApp(t *testing.T) (*App, *store.Store) {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:", internal.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	app, err := NewApp(Config{Runs: s, Metrics: s, Logger: internal.NewNopLogger()})
	require.NoError(t, err)
	return app, s
}

func storedReport(t *testing.T, s *store.Store) *run.Report {
	t.Helper()
	r := &run.Report{
		ID:        core.NewRunID(),
		CreatedAt: time.Now().Add(-2 * time.Hour),
		Manifest:  run.Manifest{Criterion: "aic", Fingerprint: "0123456789abcdef"},
		Dataset:   run.DatasetSummary{Source: "season-2024.xlsx", Games: 5400, TrainGames: 4320, TestGames: 1080},
		Models: []run.ModelReport{{
			FeatureSet: game.SetWithoutRankings,
			Kind:       run.KindLogistic,
			Selected:   []string{"home_adj_off"},
			Coefficients: []run.Coefficient{
				{Term: "(Intercept)", Estimate: 0.2, StdError: 0.05, Statistic: 4, PValue: 0.0001},
				{Term: "home_adj_off", Estimate: 0.07, StdError: 0.01, Statistic: 7, PValue: 0},
			},
			Threshold: &run.Threshold{Value: 0.5, TrainAccuracy: 0.7},
			Train:     &run.Classifier{Accuracy: 0.7, AUC: 0.75},
			Test:      &run.Classifier{Accuracy: 0.68, AUC: 0.74},
		}},
	}
	require.NoError(t, s.Save(context.Background(), r))
	return r
}

func get(app *App, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestNewAppNeedsStore(t *testing.T) {
	_, err := NewApp(Config{})
	assert.Error(t, err)
}

func TestIndex(t *testing.T) {
	app, s := newTestApp(t)

	rec := get(app, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No runs stored yet")

	r := storedReport(t, s)
	rec = get(app, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "/runs/"+r.ID.String())
	assert.Contains(t, body, "season-2024.xlsx")
	assert.Contains(t, body, "4,320")
	assert.Contains(t, body, "2 hours ago")
	assert.Contains(t, body, "AIC")
}

func TestRunPage(t *testing.T) {
	app, s := newTestApp(t)
	r := storedReport(t, s)

	rec := get(app, "/runs/"+r.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "Logistic regression (home win), without rankings")
	assert.Contains(t, body, "<table>")
	assert.Contains(t, body, "/runs/"+r.ID.String()+"/workbook")

	rec = get(app, "/runs/"+core.NewRunID().String())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(app, "/runs/bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWorkbookDownload(t *testing.T) {
	app, s := newTestApp(t)
	r := storedReport(t, s)

	rec := get(app, "/runs/"+r.ID.String()+"/workbook")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), r.ID.String()+".xlsx")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "logistic_without_rankings")
}

func TestMountedAPI(t *testing.T) {
	app, s := newTestApp(t)
	r := storedReport(t, s)

	rec := get(app, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), r.ID.String())

	rec = get(app, "/api/runs/"+r.ID.String()+"?format=markdown")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# Run "+r.ID.String())

	rec = get(app, "/api/metrics/logistic/without_rankings/accuracy")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"value":0.68`)
}

func TestHealthz(t *testing.T) {
	app, s := newTestApp(t)

	rec := get(app, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	s.Close()
	rec = get(app, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	app, _ := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- app.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

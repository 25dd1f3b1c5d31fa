// Package api serves stored runs as JSON over gin.
package api

import (
	"bytes"
	"net/http"
	"strconv"

	"bracketlab/domain/core"
	"bracketlab/domain/game"
	"bracketlab/domain/run"
	"bracketlab/internal"
	"bracketlab/internal/errors"
	"bracketlab/internal/report"
	"bracketlab/ports"

	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// RunsHandler handles run and metric history requests
type RunsHandler struct {
	runs    ports.RunRepository
	metrics ports.MetricHistoryReader
	logger  *internal.Logger
}

// NewRunsHandler creates a handler; metrics may be nil when the store has no history
func NewRunsHandler(runs ports.RunRepository, metrics ports.MetricHistoryReader, logger *internal.Logger) *RunsHandler {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &RunsHandler{runs: runs, metrics: metrics, logger: logger}
}

// Register mounts the API routes on r
func (h *RunsHandler) Register(r gin.IRouter) {
	api := r.Group("/api")
	api.GET("/runs", h.ListRuns)
	api.GET("/runs/:id", h.GetRun)
	api.GET("/metrics/:kind/:set/:metric", h.MetricHistory)
}

// NewRouter builds a gin engine serving the run API
func NewRouter(h *RunsHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(h.logger))
	h.Register(router)
	router.NoRoute(func(c *gin.Context) {
		writeError(c, errors.NotFound("route "+c.Request.URL.Path))
	})
	return router
}

// ListRuns returns run summaries, most recent first
func (h *RunsHandler) ListRuns(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		writeError(c, err)
		return
	}

	runs, err := h.runs.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list runs: %v", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// GetRun returns one report as JSON, or rendered as Markdown, text or HTML with ?format=
func (h *RunsHandler) GetRun(c *gin.Context) {
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		writeError(c, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}

	r, err := h.runs.Get(c.Request.Context(), id)
	if err != nil {
		if !errors.HasCode(err, errors.CodeNotFound) {
			h.logger.Error("Failed to load run %s: %v", id, err)
		}
		writeError(c, err)
		return
	}

	format := report.FormatJSON
	if raw := c.Query("format"); raw != "" {
		if format, err = report.ParseFormat(raw); err != nil {
			writeError(c, err)
			return
		}
	}

	switch format {
	case report.FormatJSON:
		c.JSON(http.StatusOK, r)
	case report.FormatMarkdown:
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(report.Markdown(r)))
	case report.FormatHTML:
		c.Data(http.StatusOK, "text/html; charset=utf-8", report.HTML(r))
	default:
		var buf bytes.Buffer
		if err := report.RenderText(&buf, r); err != nil {
			writeError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
	}
}

// MetricHistory returns one model metric across stored runs
func (h *RunsHandler) MetricHistory(c *gin.Context) {
	if h.metrics == nil {
		writeError(c, errors.NotFound("metric history"))
		return
	}

	kind, set, metric := c.Param("kind"), c.Param("set"), c.Param("metric")
	if kind != run.KindLogistic && kind != run.KindLinear {
		writeError(c, errors.InvalidInput("kind must be logistic or linear"))
		return
	}
	if set != game.SetWithRankings && set != game.SetWithoutRankings {
		writeError(c, errors.InvalidInput("feature set must be "+game.SetWithRankings+" or "+game.SetWithoutRankings))
		return
	}
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		writeError(c, err)
		return
	}

	points, err := h.metrics.MetricHistory(c.Request.Context(), kind, set, metric, limit)
	if err != nil {
		h.logger.Error("Failed to read %s history for %s/%s: %v", metric, kind, set, err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"kind":        kind,
		"feature_set": set,
		"metric":      metric,
		"points":      points,
	})
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errors.InvalidInput("limit must be a positive integer")
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}

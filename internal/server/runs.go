package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/researcher/internal/agent/core"
	"github.com/mohammad-safakhou/researcher/internal/runtime"
	"github.com/mohammad-safakhou/researcher/internal/store"
	"github.com/mohammad-safakhou/researcher/internal/worker"
	"go.uber.org/zap"
)

const maxIterations = 50

type RunsHandler struct {
	launcher Launcher
	journal  RunJournal
	logger   *zap.Logger
}

// CreateRunRequest launches a run. Empty fields use the configured defaults.
type CreateRunRequest struct {
	Role       string           `json:"role"`
	Iterations int              `json:"iterations"`
	Objectives []core.Objective `json:"objectives"`
}

// CreateRunResponse acknowledges a launched run.
type CreateRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// RunDetailResponse is a journaled run with its iterations.
type RunDetailResponse struct {
	store.RunRecord
	IterationLog []store.IterationRecord `json:"iteration_log"`
}

func (h *RunsHandler) Register(g *echo.Group, secret []byte) {
	g.GET("", h.list)
	g.GET("/:id", h.get)
	write := g.Group("")
	requireAuth(write, secret)
	write.POST("", h.create)
}

func (h *RunsHandler) create(c echo.Context) error {
	var req CreateRunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Iterations < 0 || req.Iterations > maxIterations {
		return echo.NewHTTPError(http.StatusBadRequest, "iterations must be within [0, "+strconv.Itoa(maxIterations)+"]")
	}
	for i := range req.Objectives {
		o := &req.Objectives[i]
		o.Topic = strings.TrimSpace(o.Topic)
		if o.Topic == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "objective topic required")
		}
		if o.Expertise < 0 || o.Expertise > 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "objective expertise must be within [0, 1]")
		}
	}
	run, err := h.launcher.Launch(worker.Request{
		Role:       req.Role,
		Iterations: req.Iterations,
		Objectives: req.Objectives,
		Trigger:    worker.TriggerAPI,
	})
	switch {
	case errors.Is(err, worker.ErrRunActive):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sub, _ := runtime.SubjectFromContext(c.Request().Context())
	h.logger.Info("run launched", zap.String("run_id", run.ID), zap.String("subject", sub))
	return c.JSON(http.StatusAccepted, CreateRunResponse{RunID: run.ID, Status: string(run.State.Phase())})
}

func (h *RunsHandler) list(c echo.Context) error {
	if h.journal == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "run journal not configured")
	}
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be within [1, 500]")
		}
		limit = n
	}
	runs, err := h.journal.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (h *RunsHandler) get(c echo.Context) error {
	if h.journal == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "run journal not configured")
	}
	ctx := c.Request().Context()
	run, err := h.journal.GetRun(ctx, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	iterations, err := h.journal.ListIterations(ctx, run.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, RunDetailResponse{RunRecord: run, IterationLog: iterations})
}

// internal/api/handler/api/optimize.go
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/momentum/internal/api/job"
	"github.com/newthinker/momentum/internal/api/response"
	"github.com/newthinker/momentum/internal/app"
	"github.com/newthinker/momentum/internal/config"
	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/optimizer"
	"github.com/newthinker/momentum/internal/strategy"
	"go.uber.org/zap"
)

const optimizeTimeout = 30 * time.Minute

// OptimizeRequest is the request body for starting a grid search.
type OptimizeRequest struct {
	Data DataSpec `json:"data"`
	Overrides
	// Grid replaces the configured grid when set.
	Grid    []config.GridEntry `json:"grid,omitempty"`
	Metric  string             `json:"metric,omitempty"`
	Workers int                `json:"workers,omitempty"`
	Export  bool               `json:"export,omitempty"`
}

// OptimizeHandler handles optimization API requests.
type OptimizeHandler struct {
	jobStore *job.Store
	app      *app.App
	logger   *zap.Logger
	// base outlives requests and is cancelled on server shutdown.
	base context.Context
}

// NewOptimizeHandler creates a new optimize handler. Jobs run under base.
func NewOptimizeHandler(base context.Context, jobStore *job.Store, a *app.App) *OptimizeHandler {
	return &OptimizeHandler{
		jobStore: jobStore,
		app:      a,
		logger:   a.Logger(),
		base:     base,
	}
}

// optimizeRun is a validated optimization request.
type optimizeRun struct {
	data   app.DataRequest
	params strategy.Params
	grid   optimizer.Grid
	opts   optimizer.Options
	export bool
}

func (h *OptimizeHandler) prepare(req OptimizeRequest) (optimizeRun, error) {
	cfg := h.app.Config()

	data, err := req.Data.request()
	if err != nil {
		return optimizeRun{}, err
	}
	params, err := req.apply(cfg.Strategy)
	if err != nil {
		return optimizeRun{}, err
	}

	entries := cfg.Optimizer.Grid
	if len(req.Grid) > 0 {
		entries = req.Grid
	}
	grid, err := config.BuildGrid(entries)
	if err != nil {
		return optimizeRun{}, err
	}
	if err := grid.Validate(); err != nil {
		return optimizeRun{}, err
	}

	opts := cfg.OptimizerOptions()
	if req.Metric != "" {
		opts.Metric = req.Metric
	}
	if req.Workers > 0 {
		opts.Workers = req.Workers
	}
	if err := opts.Validate(); err != nil {
		return optimizeRun{}, err
	}

	return optimizeRun{data: data, params: params, grid: grid, opts: opts, export: req.Export}, nil
}

// Create validates the request and starts a grid search job.
func (h *OptimizeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := decode(r, &req); err != nil {
		response.Failure(w, err)
		return
	}
	run, err := h.prepare(req)
	if err != nil {
		response.Failure(w, err)
		return
	}

	j, err := h.jobStore.Create(job.TypeOptimize)
	if err != nil {
		h.logger.Warn("rejecting optimization", zap.Error(err))
		response.Failure(w, err)
		return
	}
	h.updateActive()

	// Copy values before starting goroutine to avoid race
	jobID := j.ID
	status := j.Status

	go h.runOptimization(jobID, run)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id":       jobID,
		"status":       status,
		"combinations": run.grid.Size(),
	})
}

// runOptimization executes the grid search and updates job status.
func (h *OptimizeHandler) runOptimization(jobID string, run optimizeRun) {
	defer h.updateActive()

	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(h.base, optimizeTimeout)
	defer cancel()

	fail := func(err error) {
		h.logger.Warn("optimization failed", zap.String("job_id", jobID), zap.Error(err))
		h.jobStore.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = asCoreError(err)
		})
		h.app.NotifyOptimization(ctx, jobID, run.data, nil, err)
	}

	candles, err := h.app.LoadCandles(ctx, run.data)
	if err != nil {
		fail(err)
		return
	}

	progress := func(done, total int) {
		h.jobStore.Update(jobID, func(j *job.Job) {
			// workers may report out of order
			j.Progress = max(j.Progress, done*100/total)
		})
	}
	result, err := h.app.Optimize(ctx, run.data.Timeframe, candles, run.params, run.grid, run.opts, progress)
	if err != nil {
		fail(err)
		return
	}

	var files []string
	if run.export {
		p, err := h.app.Exporter().ExportOptimization(ctx, jobID, result)
		if err != nil {
			h.logger.Error("exporting optimization", zap.String("job_id", jobID), zap.Error(err))
		} else {
			files = []string{p}
		}
	}

	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Progress = 100
		j.Result = result
		j.Files = files
	})
	h.app.NotifyOptimization(ctx, jobID, run.data, result, nil)
}

func (h *OptimizeHandler) updateActive() {
	h.app.Metrics().SetJobsActive(job.TypeOptimize, h.jobStore.Active(job.TypeOptimize))
}

// asCoreError keeps taxonomy errors as they are and wraps anything else so
// job failures always carry a code.
func asCoreError(err error) *core.Error {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return coreErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &core.Error{Code: "CANCELLED", Message: "job cancelled", Cause: err}
	}
	return &core.Error{Code: "INTERNAL_ERROR", Message: "job failed", Cause: err}
}

func contextWithTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

// internal/api/handler/api/backtest.go
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/momentum/internal/api/job"
	"github.com/newthinker/momentum/internal/api/response"
	"github.com/newthinker/momentum/internal/app"
	"github.com/newthinker/momentum/internal/backtest"
	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/storage/archive"
	"github.com/newthinker/momentum/internal/strategy"
	"go.uber.org/zap"
)

const backtestTimeout = 5 * time.Minute

// BacktestRequest is the request body for running a backtest.
type BacktestRequest struct {
	Data DataSpec `json:"data"`
	Overrides
	IncludeRows bool `json:"include_rows,omitempty"`
	Export      bool `json:"export,omitempty"`
}

// BacktestResponse summarizes a finished backtest.
type BacktestResponse struct {
	JobID         string               `json:"job_id"`
	Params        strategy.Params      `json:"params"`
	NextParams    strategy.Params      `json:"next_params"`
	Metrics       backtest.Metrics     `json:"metrics"`
	Trades        []backtest.Trade     `json:"trades"`
	OpenPositions []backtest.Position  `json:"open_positions"`
	Rows          []backtest.ResultRow `json:"rows,omitempty"`
	Candles       int                  `json:"candles"`
	Files         []string             `json:"files,omitempty"`
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	jobStore *job.Store
	app      *app.App
	logger   *zap.Logger
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(jobStore *job.Store, a *app.App) *BacktestHandler {
	return &BacktestHandler{
		jobStore: jobStore,
		app:      a,
		logger:   a.Logger(),
	}
}

// Run executes a backtest synchronously. The run is recorded as a finished
// job so its exported reports can be fetched later.
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := decode(r, &req); err != nil {
		response.Failure(w, err)
		return
	}
	dataReq, err := req.Data.request()
	if err != nil {
		response.Failure(w, err)
		return
	}
	params, err := req.apply(h.app.Config().Strategy)
	if err != nil {
		response.Failure(w, err)
		return
	}

	ctx, cancel := contextWithTimeout(r, backtestTimeout)
	defer cancel()

	candles, err := h.app.LoadCandles(ctx, dataReq)
	if err != nil {
		response.Failure(w, err)
		return
	}
	res, err := h.app.Backtest(ctx, dataReq.Timeframe, candles, params)
	if err != nil {
		if errors.Is(err, core.ErrSimulationInvariant) {
			h.logger.Error("backtest aborted", zap.Error(err))
		}
		response.Failure(w, err)
		return
	}

	j, err := h.jobStore.Create(job.TypeBacktest)
	if err != nil {
		response.Failure(w, err)
		return
	}
	resp := BacktestResponse{
		JobID:         j.ID,
		Params:        res.Params,
		NextParams:    res.NextParams,
		Metrics:       res.Metrics,
		Trades:        res.Trades,
		OpenPositions: res.OpenPositions,
		Candles:       len(candles),
	}
	if req.IncludeRows {
		resp.Rows = res.Rows
	}
	if req.Export {
		resp.Files, err = h.app.Exporter().ExportBacktest(ctx, j.ID, res)
		if err != nil {
			h.logger.Error("exporting backtest", zap.String("job_id", j.ID), zap.Error(err))
		}
	}

	h.jobStore.Update(j.ID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Progress = 100
		j.Result = res.Metrics
		j.Files = resp.Files
	})

	response.JSON(w, http.StatusOK, resp)
}

// JobsHandler serves job status and exported reports.
type JobsHandler struct {
	jobStore *job.Store
	app      *app.App
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(jobStore *job.Store, a *app.App) *JobsHandler {
	return &JobsHandler{jobStore: jobStore, app: a}
}

// List returns all known jobs without their results.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobStore.List()
	for i := range jobs {
		jobs[i].Result = nil
	}
	response.JSON(w, http.StatusOK, jobs)
}

// Get returns the status of a job, with its result once complete.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobStore.Get(r.PathValue("id"))
	if err != nil {
		response.Failure(w, err)
		return
	}
	response.JSON(w, http.StatusOK, j)
}

// File streams one exported report of a job.
func (h *JobsHandler) File(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobStore.Get(r.PathValue("id"))
	if err != nil {
		response.Failure(w, err)
		return
	}

	data, err := h.app.Exporter().Read(r.Context(), j.ID, r.PathValue("name"))
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			response.Error(w, http.StatusNotFound, core.WrapError(core.ErrNoData, err))
			return
		}
		response.Failure(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

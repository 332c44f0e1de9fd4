package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type timetableRunner interface {
	Run(ctx context.Context, req dto.RunSchedulerRequest) (*dto.SchedulerRunResponse, error)
	Get(ctx context.Context, runID string) (*dto.SchedulerRunResponse, error)
	Latest(ctx context.Context) (*dto.SchedulerRunResponse, error)
}

type runSubmitter interface {
	Submit(ctx context.Context, req dto.RunSchedulerRequest, trigger dto.RunTrigger) (*dto.SchedulerRunResponse, error)
}

// SchedulerHandler exposes timetable generation endpoints.
type SchedulerHandler struct {
	runs timetableRunner
	jobs runSubmitter
}

// NewSchedulerHandler constructs the handler.
func NewSchedulerHandler(runs timetableRunner, jobs runSubmitter) *SchedulerHandler {
	return &SchedulerHandler{runs: runs, jobs: jobs}
}

// Create godoc
// @Summary Start a scheduling run
// @Description Queues a run and answers 202 with its id. With sync=true the run executes inline and the finished report is returned.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.RunSchedulerRequest false "Run options"
// @Param sync query bool false "Run synchronously"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /scheduler/runs [post]
func (h *SchedulerHandler) Create(c *gin.Context) {
	var req dto.RunSchedulerRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid run payload"))
			return
		}
	}
	var query dto.SchedulerRunQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	if query.Sync || h.jobs == nil {
		run, err := h.runs.Run(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, run, nil)
		return
	}

	run, err := h.jobs.Submit(c.Request.Context(), req, dto.TriggerAPI)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, run)
}

// Get godoc
// @Summary Get a scheduling run
// @Tags Scheduler
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scheduler/runs/{id} [get]
func (h *SchedulerHandler) Get(c *gin.Context) {
	run, err := h.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// Latest godoc
// @Summary Get the latest completed run report
// @Tags Scheduler
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scheduler/report/latest [get]
func (h *SchedulerHandler) Latest(c *gin.Context) {
	run, err := h.runs.Latest(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type timetableRunnerMock struct {
	runReq *dto.RunSchedulerRequest
	runErr error
	runs   map[string]*dto.SchedulerRunResponse
	latest *dto.SchedulerRunResponse
}

func (m *timetableRunnerMock) Run(ctx context.Context, req dto.RunSchedulerRequest) (*dto.SchedulerRunResponse, error) {
	m.runReq = &req
	if m.runErr != nil {
		return nil, m.runErr
	}
	return &dto.SchedulerRunResponse{RunID: "sync-1", Status: dto.RunCompleted, Report: &scheduler.Report{RunID: "sync-1"}}, nil
}

func (m *timetableRunnerMock) Get(ctx context.Context, runID string) (*dto.SchedulerRunResponse, error) {
	if run, ok := m.runs[runID]; ok {
		return run, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "scheduling run not found")
}

func (m *timetableRunnerMock) Latest(ctx context.Context) (*dto.SchedulerRunResponse, error) {
	if m.latest == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no completed scheduling run")
	}
	return m.latest, nil
}

type runSubmitterMock struct {
	req     *dto.RunSchedulerRequest
	trigger dto.RunTrigger
	err     error
}

func (m *runSubmitterMock) Submit(ctx context.Context, req dto.RunSchedulerRequest, trigger dto.RunTrigger) (*dto.SchedulerRunResponse, error) {
	m.req = &req
	m.trigger = trigger
	if m.err != nil {
		return nil, m.err
	}
	return &dto.SchedulerRunResponse{RunID: "queued-1", Status: dto.RunQueued, Trigger: trigger}, nil
}

func newSchedulerRouter(h *SchedulerHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/scheduler/runs", h.Create)
	router.GET("/scheduler/runs/:id", h.Get)
	router.GET("/scheduler/report/latest", h.Latest)
	return router
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestSchedulerHandlerCreateQueuesRun(t *testing.T) {
	jobs := &runSubmitterMock{}
	router := newSchedulerRouter(NewSchedulerHandler(&timetableRunnerMock{}, jobs))

	req := httptest.NewRequest(http.MethodPost, "/scheduler/runs", bytes.NewBufferString(`{"seed":7,"rebuild":true}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.NotNil(t, jobs.req)
	assert.Equal(t, int64(7), *jobs.req.Seed)
	assert.True(t, jobs.req.Rebuild)
	assert.Equal(t, dto.TriggerAPI, jobs.trigger)

	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "queued-1", data["runId"])
	assert.Equal(t, "QUEUED", data["status"])
}

func TestSchedulerHandlerCreateWithoutBody(t *testing.T) {
	jobs := &runSubmitterMock{}
	router := newSchedulerRouter(NewSchedulerHandler(&timetableRunnerMock{}, jobs))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scheduler/runs", nil))

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Nil(t, jobs.req.Seed)
	assert.False(t, jobs.req.Rebuild)
}

func TestSchedulerHandlerCreateSync(t *testing.T) {
	runs := &timetableRunnerMock{}
	jobs := &runSubmitterMock{}
	router := newSchedulerRouter(NewSchedulerHandler(runs, jobs))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scheduler/runs?sync=true", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, runs.runReq)
	assert.Nil(t, jobs.req)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "COMPLETED", data["status"])
}

func TestSchedulerHandlerCreateErrors(t *testing.T) {
	runs := &timetableRunnerMock{runErr: appErrors.Clone(appErrors.ErrPreconditionFailed, "missing scheduling prerequisites: rooms")}
	jobs := &runSubmitterMock{err: appErrors.Clone(appErrors.ErrRunInProgress, "")}
	router := newSchedulerRouter(NewSchedulerHandler(runs, jobs))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scheduler/runs?sync=true", nil))
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scheduler/runs", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "RUN_IN_PROGRESS", errBody["code"])

	req := httptest.NewRequest(http.MethodPost, "/scheduler/runs", bytes.NewBufferString(`{"seed":`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSchedulerHandlerGetAndLatest(t *testing.T) {
	runs := &timetableRunnerMock{runs: map[string]*dto.SchedulerRunResponse{
		"run-1": {RunID: "run-1", Status: dto.RunRunning},
	}}
	router := newSchedulerRouter(NewSchedulerHandler(runs, &runSubmitterMock{}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scheduler/runs/run-1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scheduler/runs/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scheduler/report/latest", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	runs.latest = &dto.SchedulerRunResponse{RunID: "run-0", Status: dto.RunCompleted}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scheduler/report/latest", nil))
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "run-0", data["runId"])
}

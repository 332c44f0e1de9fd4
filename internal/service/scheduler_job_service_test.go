package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/jobs"
)

type runExecutorStub struct {
	mu      sync.Mutex
	runs    map[string]dto.SchedulerRunResponse
	history map[string][]dto.RunStatus
	err     error
	block   chan struct{}
}

func newRunExecutorStub() *runExecutorStub {
	return &runExecutorStub{runs: map[string]dto.SchedulerRunResponse{}, history: map[string][]dto.RunStatus{}}
}

func (s *runExecutorStub) Validate(req dto.RunSchedulerRequest) error {
	if req.Seed != nil && *req.Seed < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "seed must not be negative")
	}
	return nil
}

func (s *runExecutorStub) ResolveSeed(req dto.RunSchedulerRequest) int64 {
	if req.Seed != nil {
		return *req.Seed
	}
	return 42
}

func (s *runExecutorStub) Execute(ctx context.Context, runID string, req dto.RunSchedulerRequest) (*scheduler.Report, error) {
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	return &scheduler.Report{RunID: runID, Seed: s.ResolveSeed(req), Rebuild: req.Rebuild}, nil
}

func (s *runExecutorStub) Remember(ctx context.Context, run *dto.SchedulerRunResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.RunID] = *run
	s.history[run.RunID] = append(s.history[run.RunID], run.Status)
}

func (s *runExecutorStub) Get(ctx context.Context, runID string) (*dto.SchedulerRunResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	return &run, nil
}

func (s *runExecutorStub) status(runID string) dto.RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[runID].Status
}

func startSchedulerJobs(t *testing.T, runs *runExecutorStub, buffer int) (*SchedulerJobService, *jobs.Queue) {
	svc := NewSchedulerJobService(runs, nil, nil)
	queue := jobs.NewQueue("scheduler-test", svc.Handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: buffer,
		MaxRetries: -1,
		OnGiveUp:   svc.GiveUp,
	})
	ctx, cancel := context.WithCancel(context.Background())
	queue.Start(ctx)
	t.Cleanup(func() {
		cancel()
		queue.Stop()
	})
	svc.AttachQueue(queue)
	return svc, queue
}

func TestSchedulerJobServiceCompletesRun(t *testing.T) {
	runs := newRunExecutorStub()
	svc, _ := startSchedulerJobs(t, runs, 4)

	seed := int64(9)
	run, err := svc.Submit(context.Background(), dto.RunSchedulerRequest{Seed: &seed, Rebuild: true}, dto.TriggerAPI)
	require.NoError(t, err)
	assert.Equal(t, dto.RunQueued, run.Status)
	assert.Equal(t, int64(9), run.Seed)

	require.Eventually(t, func() bool { return runs.status(run.RunID) == dto.RunCompleted }, time.Second, 5*time.Millisecond)

	got, err := runs.Get(context.Background(), run.RunID)
	require.NoError(t, err)
	require.NotNil(t, got.Report)
	assert.Equal(t, int64(9), got.Report.Seed)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.FinishedAt)
	assert.Equal(t, []dto.RunStatus{dto.RunQueued, dto.RunRunning, dto.RunCompleted}, runs.history[run.RunID])
}

func TestSchedulerJobServiceMarksFailedRun(t *testing.T) {
	runs := newRunExecutorStub()
	runs.err = appErrors.Clone(appErrors.ErrPreconditionFailed, "missing scheduling prerequisites: rooms")
	svc, _ := startSchedulerJobs(t, runs, 4)

	run, err := svc.Submit(context.Background(), dto.RunSchedulerRequest{}, dto.TriggerCron)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return runs.status(run.RunID) == dto.RunFailed }, time.Second, 5*time.Millisecond)
	got, _ := runs.Get(context.Background(), run.RunID)
	assert.Contains(t, got.Error, "missing scheduling prerequisites")
	assert.Equal(t, dto.TriggerCron, got.Trigger)
}

func TestSchedulerJobServiceRejectsInvalidRequest(t *testing.T) {
	runs := newRunExecutorStub()
	svc, _ := startSchedulerJobs(t, runs, 4)

	seed := int64(-3)
	_, err := svc.Submit(context.Background(), dto.RunSchedulerRequest{Seed: &seed}, dto.TriggerAPI)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, runs.runs)
}

func TestSchedulerJobServiceQueueFull(t *testing.T) {
	runs := newRunExecutorStub()
	runs.block = make(chan struct{})
	defer close(runs.block)
	svc, queue := startSchedulerJobs(t, runs, 1)

	first, err := svc.Submit(context.Background(), dto.RunSchedulerRequest{}, dto.TriggerAPI)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return runs.status(first.RunID) == dto.RunRunning }, time.Second, 5*time.Millisecond)

	_, err = svc.Submit(context.Background(), dto.RunSchedulerRequest{}, dto.TriggerAPI)
	require.NoError(t, err)
	assert.Equal(t, 1, queue.Pending())

	_, err = svc.Submit(context.Background(), dto.RunSchedulerRequest{}, dto.TriggerAPI)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrRunInProgress))
}

func TestSchedulerJobServiceWithoutQueue(t *testing.T) {
	svc := NewSchedulerJobService(newRunExecutorStub(), nil, nil)
	_, err := svc.Submit(context.Background(), dto.RunSchedulerRequest{}, dto.TriggerAPI)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestSchedulerJobServiceSchedule(t *testing.T) {
	svc := NewSchedulerJobService(newRunExecutorStub(), nil, nil)
	assert.NoError(t, svc.Schedule(""))
	assert.Error(t, svc.Schedule("not a cron"))
	require.NoError(t, svc.Schedule("@every 1h"))
	svc.Stop()
	svc.Stop()
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/jobs"
)

// JobTypeSchedulerRun tags queued scheduling runs.
const JobTypeSchedulerRun = "scheduler.run"

type runExecutor interface {
	Validate(req dto.RunSchedulerRequest) error
	ResolveSeed(req dto.RunSchedulerRequest) int64
	Execute(ctx context.Context, runID string, req dto.RunSchedulerRequest) (*scheduler.Report, error)
	Remember(ctx context.Context, run *dto.SchedulerRunResponse)
	Get(ctx context.Context, runID string) (*dto.SchedulerRunResponse, error)
}

type runQueue interface {
	TryEnqueue(job jobs.Job) (string, error)
	Pending() int
}

type runPayload struct {
	Request dto.RunSchedulerRequest
	Trigger dto.RunTrigger
}

// SchedulerJobService hands scheduling runs to the background queue and
// tracks their status. Runs never retry; a failed run is reported as FAILED.
type SchedulerJobService struct {
	runs    runExecutor
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	queue runQueue
	cron  *cron.Cron
}

// NewSchedulerJobService constructs the job service. The queue is attached
// afterwards because it needs Handle as its handler.
func NewSchedulerJobService(runs runExecutor, metrics *MetricsService, logger *zap.Logger) *SchedulerJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulerJobService{runs: runs, metrics: metrics, logger: logger, now: time.Now}
}

// AttachQueue sets the queue used by Submit.
func (s *SchedulerJobService) AttachQueue(queue runQueue) {
	s.mu.Lock()
	s.queue = queue
	s.mu.Unlock()
}

// Submit records a QUEUED run and enqueues it.
func (s *SchedulerJobService) Submit(ctx context.Context, req dto.RunSchedulerRequest, trigger dto.RunTrigger) (*dto.SchedulerRunResponse, error) {
	if err := s.runs.Validate(req); err != nil {
		return nil, err
	}
	s.mu.Lock()
	queue := s.queue
	s.mu.Unlock()
	if queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "scheduling queue is not running")
	}

	seed := s.runs.ResolveSeed(req)
	req.Seed = &seed
	run := &dto.SchedulerRunResponse{
		RunID:       uuid.NewString(),
		Status:      dto.RunQueued,
		Trigger:     trigger,
		Seed:        seed,
		Rebuild:     req.Rebuild,
		SubmittedAt: s.now().UTC(),
	}
	s.runs.Remember(ctx, run)

	_, err := queue.TryEnqueue(jobs.Job{
		ID:      run.RunID,
		Type:    JobTypeSchedulerRun,
		Payload: runPayload{Request: req, Trigger: trigger},
	})
	s.metrics.SetQueueDepth(queue.Pending())
	if err != nil {
		s.finish(ctx, run, err)
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Wrap(err, appErrors.ErrRunInProgress.Code, appErrors.ErrRunInProgress.Status, "scheduling queue is full")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue scheduling run")
	}

	s.logger.Info("scheduling run queued",
		zap.String("run_id", run.RunID),
		zap.String("trigger", string(trigger)),
		zap.Bool("rebuild", run.Rebuild),
		zap.Int64("seed", seed),
	)
	return run, nil
}

// Handle is the queue handler for scheduling runs.
func (s *SchedulerJobService) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(runPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	s.mu.Lock()
	queue := s.queue
	s.mu.Unlock()
	if queue != nil {
		s.metrics.SetQueueDepth(queue.Pending())
	}

	run := s.current(ctx, job, payload)
	started := s.now().UTC()
	run.Status = dto.RunRunning
	run.StartedAt = &started
	s.runs.Remember(ctx, run)

	report, err := s.runs.Execute(ctx, job.ID, payload.Request)
	if err != nil {
		return err
	}
	finished := s.now().UTC()
	run.Status = dto.RunCompleted
	run.FinishedAt = &finished
	run.Report = report
	s.runs.Remember(ctx, run)
	return nil
}

// GiveUp marks a run FAILED once the queue stops retrying it.
func (s *SchedulerJobService) GiveUp(job jobs.Job, err error) {
	payload, _ := job.Payload.(runPayload)
	ctx := context.Background()
	run := s.current(ctx, job, payload)
	s.finish(ctx, run, err)
}

func (s *SchedulerJobService) finish(ctx context.Context, run *dto.SchedulerRunResponse, err error) {
	finished := s.now().UTC()
	run.Status = dto.RunFailed
	run.FinishedAt = &finished
	run.Error = err.Error()
	s.runs.Remember(ctx, run)
	s.logger.Warn("scheduling run failed", zap.String("run_id", run.RunID), zap.Error(err))
}

// current returns the stored state of a job's run, rebuilding it from the
// job when the record has expired.
func (s *SchedulerJobService) current(ctx context.Context, job jobs.Job, payload runPayload) *dto.SchedulerRunResponse {
	if run, err := s.runs.Get(ctx, job.ID); err == nil {
		return run
	}
	return &dto.SchedulerRunResponse{
		RunID:       job.ID,
		Status:      dto.RunQueued,
		Trigger:     payload.Trigger,
		Seed:        s.runs.ResolveSeed(payload.Request),
		Rebuild:     payload.Request.Rebuild,
		SubmittedAt: job.Enqueued,
	}
}

// Schedule registers a cron spec that submits incremental runs. An empty
// spec disables periodic runs.
func (s *SchedulerJobService) Schedule(spec string) error {
	if spec == "" {
		return nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(spec, s.submitPeriodic); err != nil {
		return fmt.Errorf("invalid scheduler cron %q: %w", spec, err)
	}
	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()
	c.Start()
	s.logger.Info("periodic scheduling enabled", zap.String("cron", spec))
	return nil
}

func (s *SchedulerJobService) submitPeriodic() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.Submit(ctx, dto.RunSchedulerRequest{}, dto.TriggerCron); err != nil {
		s.logger.Warn("periodic scheduling run not queued", zap.Error(err))
	}
}

// Stop halts the cron scheduler and waits for a running submission.
func (s *SchedulerJobService) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

const (
	runLockKey        = "scheduler:run-lock"
	latestReportKey   = "scheduler:report:latest"
	runReportKeyFmt   = "scheduler:run:%s"
	exportCachePrefix = "exports:"

	maxRememberedRuns = 50
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type roomReader interface {
	List(ctx context.Context) ([]models.Room, error)
}

type teacherStore interface {
	List(ctx context.Context) ([]models.Teacher, error)
	EnsurePlaceholder(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error
}

type courseReader interface {
	List(ctx context.Context) ([]models.Course, error)
}

type sectionStore interface {
	ListAll(ctx context.Context) ([]models.Section, error)
	ResetTeachers(ctx context.Context, exec sqlx.ExtContext) error
	UpdateTeachers(ctx context.Context, exec sqlx.ExtContext, bindings map[string]string) error
}

type preferenceReader interface {
	ListActive(ctx context.Context) ([]models.TeacherPreference, error)
	ListTimings(ctx context.Context) ([]models.TeacherTimingPreference, error)
}

type assignmentStore interface {
	ListAll(ctx context.Context) ([]models.Assignment, error)
	DeleteAll(ctx context.Context, exec sqlx.ExtContext) error
	BulkInsert(ctx context.Context, exec sqlx.ExtContext, items []models.Assignment) error
}

type scheduleEngine interface {
	Run(ctx context.Context, in scheduler.Input, opts scheduler.Options) (*scheduler.Result, error)
	Policy() scheduler.Policy
}

type runLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// TimetableRepositories groups the stores a run reads and writes.
type TimetableRepositories struct {
	Rooms       roomReader
	Teachers    teacherStore
	Courses     courseReader
	Sections    sectionStore
	Preferences preferenceReader
	Assignments assignmentStore
}

// TimetableConfig tunes run behaviour.
type TimetableConfig struct {
	DefaultSeed int64
	RunTimeout  time.Duration
	LockTTL     time.Duration
	ReportTTL   time.Duration
}

// TimetableService loads the scheduling snapshot, runs the engine and commits
// the result atomically. Only one run executes at a time.
type TimetableService struct {
	repos     TimetableRepositories
	tx        txProvider
	engine    scheduleEngine
	locker    runLocker
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableConfig
	now       func() time.Time

	running sync.Mutex

	mu     sync.RWMutex
	latest *dto.SchedulerRunResponse
	runs   map[string]*dto.SchedulerRunResponse
}

// NewTimetableService wires the run pipeline.
func NewTimetableService(
	repos TimetableRepositories,
	tx txProvider,
	engine scheduleEngine,
	locker runLocker,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.RunTimeout * 2
	}
	if cfg.ReportTTL <= 0 {
		cfg.ReportTTL = 7 * 24 * time.Hour
	}
	return &TimetableService{
		repos:     repos,
		tx:        tx,
		engine:    engine,
		locker:    locker,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		runs:      make(map[string]*dto.SchedulerRunResponse),
	}
}

// ResolveSeed returns the request seed or the configured default.
func (s *TimetableService) ResolveSeed(req dto.RunSchedulerRequest) int64 {
	if req.Seed != nil {
		return *req.Seed
	}
	return s.cfg.DefaultSeed
}

// Validate checks a run request.
func (s *TimetableService) Validate(req dto.RunSchedulerRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scheduling run payload")
	}
	return nil
}

// Run executes a run synchronously and returns its final state.
func (s *TimetableService) Run(ctx context.Context, req dto.RunSchedulerRequest) (*dto.SchedulerRunResponse, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	submitted := s.now().UTC()
	resp := &dto.SchedulerRunResponse{
		RunID:       uuid.NewString(),
		Status:      dto.RunRunning,
		Trigger:     dto.TriggerAPI,
		Seed:        s.ResolveSeed(req),
		Rebuild:     req.Rebuild,
		SubmittedAt: submitted,
		StartedAt:   &submitted,
	}
	report, err := s.Execute(ctx, resp.RunID, req)
	if err != nil {
		return nil, err
	}
	finished := s.now().UTC()
	resp.Status = dto.RunCompleted
	resp.FinishedAt = &finished
	resp.Report = report
	s.Remember(ctx, resp)
	return resp, nil
}

// Execute performs one run under the given id. The caller owns the run's
// status bookkeeping.
func (s *TimetableService) Execute(ctx context.Context, runID string, req dto.RunSchedulerRequest) (report *scheduler.Report, err error) {
	if s.engine == nil || s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "scheduler is not configured")
	}
	if !s.running.TryLock() {
		return nil, appErrors.Clone(appErrors.ErrRunInProgress, "")
	}
	defer s.running.Unlock()

	release, ok, lockErr := s.acquire(ctx)
	if lockErr != nil {
		return nil, appErrors.Wrap(lockErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire scheduling lock")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrRunInProgress, "")
	}
	defer func() {
		if relErr := release(context.Background()); relErr != nil {
			s.logger.Warn("failed to release scheduling lock", zap.String("run_id", runID), zap.Error(relErr))
		}
	}()

	started := s.now()
	defer func() {
		s.metrics.RecordSchedulerRun(req.Rebuild, s.now().Sub(started), report)
	}()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	in, err := s.snapshot(ctx, req.Rebuild)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Run(ctx, in, scheduler.Options{Seed: s.ResolveSeed(req), Rebuild: req.Rebuild, RunID: runID})
	if err != nil {
		return nil, err
	}

	if err = s.persist(ctx, result); err != nil {
		return nil, err
	}
	_ = s.cache.Invalidate(ctx, exportCachePrefix+"*")

	s.logger.Info("scheduling run committed",
		zap.String("run_id", runID),
		zap.Bool("rebuild", req.Rebuild),
		zap.Int("assignments", len(result.Assignments)),
		zap.Int("unscheduled_sections", result.Report.Unscheduled()),
	)
	return &result.Report, nil
}

func (s *TimetableService) acquire(ctx context.Context) (func(context.Context) error, bool, error) {
	if s.locker == nil {
		return func(context.Context) error { return nil }, true, nil
	}
	return s.locker.Acquire(ctx, runLockKey, s.cfg.LockTTL)
}

// snapshot loads every table the engine needs and checks that the basic
// reference data exists.
func (s *TimetableService) snapshot(ctx context.Context, rebuild bool) (scheduler.Input, error) {
	var in scheduler.Input
	start := s.now()
	defer func() { s.metrics.ObserveDBQuery("load_snapshot", s.now().Sub(start)) }()

	wrap := func(err error, what string) error {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+what)
	}

	var err error
	if in.Rooms, err = s.repos.Rooms.List(ctx); err != nil {
		return in, wrap(err, "rooms")
	}
	if in.Teachers, err = s.repos.Teachers.List(ctx); err != nil {
		return in, wrap(err, "teachers")
	}
	if in.Courses, err = s.repos.Courses.List(ctx); err != nil {
		return in, wrap(err, "courses")
	}

	placeholder := s.engine.Policy().PlaceholderInitial
	var missing []string
	if len(in.Rooms) == 0 {
		missing = append(missing, "rooms")
	}
	realTeachers := 0
	for _, t := range in.Teachers {
		if !strings.EqualFold(strings.TrimSpace(t.Initial), placeholder) {
			realTeachers++
		}
	}
	if realTeachers == 0 {
		missing = append(missing, "teachers")
	}
	if len(in.Courses) == 0 {
		missing = append(missing, "courses")
	}
	if len(missing) > 0 {
		return in, appErrors.Clone(appErrors.ErrPreconditionFailed, "missing scheduling prerequisites: "+strings.Join(missing, ", "))
	}

	if in.Sections, err = s.repos.Sections.ListAll(ctx); err != nil {
		return in, wrap(err, "sections")
	}
	if in.Preferences, err = s.repos.Preferences.ListActive(ctx); err != nil {
		return in, wrap(err, "teacher preferences")
	}
	if in.Timings, err = s.repos.Preferences.ListTimings(ctx); err != nil {
		return in, wrap(err, "timing preferences")
	}
	if !rebuild {
		if in.Existing, err = s.repos.Assignments.ListAll(ctx); err != nil {
			return in, wrap(err, "assignments")
		}
	}
	return in, nil
}

// persist commits a run in a single transaction; any failure rolls it back.
func (s *TimetableService) persist(ctx context.Context, result *scheduler.Result) (err error) {
	start := s.now()
	defer func() { s.metrics.ObserveDBQuery("commit_run", s.now().Sub(start)) }()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if result.Rebuild {
		if err = s.repos.Assignments.DeleteAll(ctx, tx); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear assignments")
			return err
		}
		if err = s.repos.Sections.ResetTeachers(ctx, tx); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset section teachers")
			return err
		}
	}

	if result.PlaceholderSynthesized {
		placeholder := result.Placeholder
		if err = s.repos.Teachers.EnsurePlaceholder(ctx, tx, &placeholder); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store placeholder teacher")
			return err
		}
	}

	if err = s.repos.Assignments.BulkInsert(ctx, tx, result.Assignments); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store assignments")
		return err
	}

	bindings := make(map[string]string, len(result.SectionTeachers))
	for _, st := range result.SectionTeachers {
		bindings[st.SectionID] = st.TeacherID
	}
	if err = s.repos.Sections.UpdateTeachers(ctx, tx, bindings); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bind section teachers")
		return err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit scheduling run")
		return err
	}
	return nil
}

// Remember records a run state in memory and in the cache. Completed runs
// also become the latest report.
func (s *TimetableService) Remember(ctx context.Context, run *dto.SchedulerRunResponse) {
	if run == nil {
		return
	}
	snapshot := *run
	s.mu.Lock()
	s.runs[run.RunID] = &snapshot
	if run.Status == dto.RunCompleted {
		s.latest = &snapshot
	}
	s.pruneLocked()
	s.mu.Unlock()

	_ = s.cache.Set(ctx, fmt.Sprintf(runReportKeyFmt, run.RunID), &snapshot, s.cfg.ReportTTL)
	if run.Status == dto.RunCompleted {
		_ = s.cache.Set(ctx, latestReportKey, &snapshot, s.cfg.ReportTTL)
	}
}

// pruneLocked drops the oldest finished runs beyond the in-memory limit.
func (s *TimetableService) pruneLocked() {
	for len(s.runs) > maxRememberedRuns {
		var oldest string
		for id, r := range s.runs {
			if !r.Status.Finished() {
				continue
			}
			if oldest == "" || r.SubmittedAt.Before(s.runs[oldest].SubmittedAt) {
				oldest = id
			}
		}
		if oldest == "" {
			return
		}
		delete(s.runs, oldest)
	}
}

// Get returns a run by id.
func (s *TimetableService) Get(ctx context.Context, runID string) (*dto.SchedulerRunResponse, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()
	if ok {
		out := *run
		return &out, nil
	}

	var cached dto.SchedulerRunResponse
	if hit, _ := s.cache.Get(ctx, fmt.Sprintf(runReportKeyFmt, runID), &cached); hit {
		return &cached, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "scheduling run not found")
}

// Latest returns the most recent completed run.
func (s *TimetableService) Latest(ctx context.Context) (*dto.SchedulerRunResponse, error) {
	var cached dto.SchedulerRunResponse
	if hit, _ := s.cache.Get(ctx, latestReportKey, &cached); hit {
		return &cached, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no completed scheduling run")
	}
	out := *s.latest
	return &out, nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type roomReaderStub struct{ rooms []models.Room }

func (s roomReaderStub) List(ctx context.Context) ([]models.Room, error) { return s.rooms, nil }

type teacherStoreStub struct {
	teachers    []models.Teacher
	placeholder *models.Teacher
}

func (s *teacherStoreStub) List(ctx context.Context) ([]models.Teacher, error) {
	return s.teachers, nil
}

func (s *teacherStoreStub) EnsurePlaceholder(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error {
	s.placeholder = teacher
	return nil
}

type courseReaderStub struct{ courses []models.Course }

func (s courseReaderStub) List(ctx context.Context) ([]models.Course, error) { return s.courses, nil }

type sectionStoreStub struct {
	sections []models.Section
	reset    bool
	bindings map[string]string
}

func (s *sectionStoreStub) ListAll(ctx context.Context) ([]models.Section, error) {
	return s.sections, nil
}

func (s *sectionStoreStub) ResetTeachers(ctx context.Context, exec sqlx.ExtContext) error {
	s.reset = true
	return nil
}

func (s *sectionStoreStub) UpdateTeachers(ctx context.Context, exec sqlx.ExtContext, bindings map[string]string) error {
	s.bindings = bindings
	return nil
}

type preferenceReaderStub struct{}

func (preferenceReaderStub) ListActive(ctx context.Context) ([]models.TeacherPreference, error) {
	return nil, nil
}

func (preferenceReaderStub) ListTimings(ctx context.Context) ([]models.TeacherTimingPreference, error) {
	return nil, nil
}

type assignmentStoreStub struct {
	existing  []models.Assignment
	listed    bool
	deleted   bool
	inserted  []models.Assignment
	insertErr error
}

func (s *assignmentStoreStub) ListAll(ctx context.Context) ([]models.Assignment, error) {
	s.listed = true
	return s.existing, nil
}

func (s *assignmentStoreStub) DeleteAll(ctx context.Context, exec sqlx.ExtContext) error {
	s.deleted = true
	return nil
}

func (s *assignmentStoreStub) BulkInsert(ctx context.Context, exec sqlx.ExtContext, items []models.Assignment) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = items
	return nil
}

type engineStub struct {
	mu     sync.Mutex
	result *scheduler.Result
	err    error
	opts   []scheduler.Options
	inputs []scheduler.Input
	block  chan struct{}
}

func (e *engineStub) Run(ctx context.Context, in scheduler.Input, opts scheduler.Options) (*scheduler.Result, error) {
	e.mu.Lock()
	e.opts = append(e.opts, opts)
	e.inputs = append(e.inputs, in)
	e.mu.Unlock()
	if e.block != nil {
		<-e.block
	}
	if e.err != nil {
		return nil, e.err
	}
	res := *e.result
	res.RunID = opts.RunID
	res.Seed = opts.Seed
	res.Rebuild = opts.Rebuild
	res.Report.RunID = opts.RunID
	return &res, nil
}

func (e *engineStub) Policy() scheduler.Policy { return scheduler.DefaultPolicy() }

type lockerStub struct {
	granted  bool
	released int
}

func (l *lockerStub) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if !l.granted {
		return nil, false, nil
	}
	return func(context.Context) error { l.released++; return nil }, true, nil
}

type timetableFixture struct {
	service     *TimetableService
	mock        sqlmock.Sqlmock
	engine      *engineStub
	teachers    *teacherStoreStub
	sections    *sectionStoreStub
	assignments *assignmentStoreStub
}

func newTimetableFixture(t *testing.T) *timetableFixture {
	tx, mock := newTxProviderMock(t)
	teacherID := "t-1"
	f := &timetableFixture{
		mock: mock,
		engine: &engineStub{result: &scheduler.Result{
			Placeholder:            models.Teacher{ID: "tba", Initial: "TBA"},
			PlaceholderSynthesized: true,
			Assignments: []models.Assignment{
				{ID: "a-1", SectionID: "s-1", RoomID: "r-1", TeacherID: teacherID, Day: "ST", TimeSlot: 1, Score: 100},
			},
			SectionTeachers: []scheduler.SectionTeacher{{SectionID: "s-1", TeacherID: teacherID}},
			Report:          scheduler.Report{TotalSections: 1, ScheduledSections: 1, AssignmentRecords: 1},
		}},
		teachers: &teacherStoreStub{teachers: []models.Teacher{{ID: teacherID, Initial: "ABC"}}},
		sections: &sectionStoreStub{sections: []models.Section{{ID: "s-1", CourseID: "c-1", SectionNumber: 1}}},
		assignments: &assignmentStoreStub{
			existing: []models.Assignment{{ID: "old", SectionID: "s-1", RoomID: "r-1", TeacherID: teacherID, Day: "MW", TimeSlot: 2}},
		},
	}
	repos := TimetableRepositories{
		Rooms:       roomReaderStub{rooms: []models.Room{{ID: "r-1", RoomNumber: "301", Capacity: 40, Kind: models.RoomKindLecture}}},
		Teachers:    f.teachers,
		Courses:     courseReaderStub{courses: []models.Course{{ID: "c-1", Code: "CSE101", Kind: models.CourseKindTheory, Duration: models.DurationStandard}}},
		Sections:    f.sections,
		Preferences: preferenceReaderStub{},
		Assignments: f.assignments,
	}
	f.service = NewTimetableService(repos, tx, f.engine, nil, nil, nil, nil, nil, TimetableConfig{DefaultSeed: 42})
	return f
}

func TestTimetableServiceRunRebuildCommits(t *testing.T) {
	f := newTimetableFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	seed := int64(7)
	resp, err := f.service.Run(context.Background(), dto.RunSchedulerRequest{Seed: &seed, Rebuild: true})
	require.NoError(t, err)
	require.NotNil(t, resp.Report)

	assert.Equal(t, dto.RunCompleted, resp.Status)
	assert.Equal(t, int64(7), resp.Seed)
	assert.Equal(t, resp.RunID, resp.Report.RunID)
	assert.NotNil(t, resp.FinishedAt)

	assert.True(t, f.assignments.deleted)
	assert.False(t, f.assignments.listed, "rebuild runs ignore existing assignments")
	assert.True(t, f.sections.reset)
	assert.Len(t, f.assignments.inserted, 1)
	assert.Equal(t, map[string]string{"s-1": "t-1"}, f.sections.bindings)
	require.NotNil(t, f.teachers.placeholder)
	assert.Equal(t, "TBA", f.teachers.placeholder.Initial)
	assert.True(t, f.engine.opts[0].Rebuild)
	assert.Equal(t, int64(7), f.engine.opts[0].Seed)
	assert.NoError(t, f.mock.ExpectationsWereMet())

	latest, err := f.service.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, resp.RunID, latest.RunID)

	got, err := f.service.Get(context.Background(), resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, dto.RunCompleted, got.Status)
}

func TestTimetableServiceIncrementalKeepsExisting(t *testing.T) {
	f := newTimetableFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.service.Run(context.Background(), dto.RunSchedulerRequest{})
	require.NoError(t, err)

	assert.Equal(t, int64(42), resp.Seed)
	assert.True(t, f.assignments.listed)
	assert.False(t, f.assignments.deleted)
	assert.False(t, f.sections.reset)
	require.Len(t, f.engine.inputs, 1)
	assert.Len(t, f.engine.inputs[0].Existing, 1)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestTimetableServiceRunRejectsNegativeSeed(t *testing.T) {
	f := newTimetableFixture(t)
	seed := int64(-1)
	_, err := f.service.Run(context.Background(), dto.RunSchedulerRequest{Seed: &seed})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, f.engine.opts)
}

func TestTimetableServicePreconditionFailed(t *testing.T) {
	f := newTimetableFixture(t)
	f.teachers.teachers = []models.Teacher{{ID: "tba", Initial: "TBA"}}
	f.service.repos.Rooms = roomReaderStub{}

	_, err := f.service.Run(context.Background(), dto.RunSchedulerRequest{Rebuild: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
	assert.Contains(t, err.Error(), "rooms, teachers")
	assert.Empty(t, f.engine.opts)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestTimetableServiceRollsBackOnInsertFailure(t *testing.T) {
	f := newTimetableFixture(t)
	f.assignments.insertErr = errors.New("boom")
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.service.Run(context.Background(), dto.RunSchedulerRequest{Rebuild: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	assert.Nil(t, f.sections.bindings)
	assert.NoError(t, f.mock.ExpectationsWereMet())

	_, err = f.service.Latest(context.Background())
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestTimetableServiceEngineErrorSkipsPersistence(t *testing.T) {
	f := newTimetableFixture(t)
	f.engine.err = appErrors.Clone(appErrors.ErrValidation, "duplicate room id")

	_, err := f.service.Run(context.Background(), dto.RunSchedulerRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Nil(t, f.assignments.inserted)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestTimetableServiceRejectsConcurrentRun(t *testing.T) {
	f := newTimetableFixture(t)
	f.engine.block = make(chan struct{})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	done := make(chan error, 1)
	go func() {
		_, err := f.service.Run(context.Background(), dto.RunSchedulerRequest{})
		done <- err
	}()

	require.Eventually(t, func() bool {
		f.engine.mu.Lock()
		defer f.engine.mu.Unlock()
		return len(f.engine.opts) == 1
	}, time.Second, 5*time.Millisecond)

	_, err := f.service.Run(context.Background(), dto.RunSchedulerRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrRunInProgress))

	close(f.engine.block)
	require.NoError(t, <-done)
}

func TestTimetableServiceHonoursDistributedLock(t *testing.T) {
	f := newTimetableFixture(t)
	locker := &lockerStub{granted: false}
	f.service.locker = locker

	_, err := f.service.Run(context.Background(), dto.RunSchedulerRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrRunInProgress))

	locker.granted = true
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err = f.service.Run(context.Background(), dto.RunSchedulerRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, locker.released)
}

func TestTimetableServiceGetUnknownRun(t *testing.T) {
	f := newTimetableFixture(t)
	_, err := f.service.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestTimetableServicePrunesFinishedRuns(t *testing.T) {
	f := newTimetableFixture(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.service.Remember(context.Background(), &dto.SchedulerRunResponse{RunID: "queued", Status: dto.RunQueued, SubmittedAt: base})
	for i := 0; i < maxRememberedRuns+5; i++ {
		f.service.Remember(context.Background(), &dto.SchedulerRunResponse{
			RunID:       fmt.Sprintf("run-%d", i),
			Status:      dto.RunCompleted,
			SubmittedAt: base.Add(time.Duration(i+1) * time.Minute),
		})
	}
	f.service.mu.RLock()
	defer f.service.mu.RUnlock()
	assert.Len(t, f.service.runs, maxRememberedRuns)
	_, ok := f.service.runs["queued"]
	assert.True(t, ok, "unfinished runs are never pruned")
}

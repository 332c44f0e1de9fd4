package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/csvio"
	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type importRoomStore interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, room *models.Room) error
}

type importTeacherStore interface {
	List(ctx context.Context) ([]models.Teacher, error)
	Upsert(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error
}

type importCourseStore interface {
	List(ctx context.Context) ([]models.Course, error)
	Upsert(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error
}

type importSectionStore interface {
	EnsureNumbers(ctx context.Context, exec sqlx.ExtContext, courseID string, count int) error
}

type importPreferenceStore interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, pref *models.TeacherPreference) error
	ReplaceTimings(ctx context.Context, exec sqlx.ExtContext, teacherID string, timings []models.TeacherTimingPreference) error
}

// ImportRepositories groups the stores written by CSV uploads.
type ImportRepositories struct {
	Rooms       importRoomStore
	Teachers    importTeacherStore
	Courses     importCourseStore
	Sections    importSectionStore
	Preferences importPreferenceStore
}

// ImportService loads reference data from CSV sheets. Each upload is
// written in one transaction.
type ImportService struct {
	repos        ImportRepositories
	tx           txProvider
	cache        *CacheService
	metrics      *MetricsService
	logger       *zap.Logger
	standardLabs []string
}

// NewImportService constructs the import service.
func NewImportService(repos ImportRepositories, tx txProvider, cache *CacheService, metrics *MetricsService, logger *zap.Logger, standardLabs []string) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{repos: repos, tx: tx, cache: cache, metrics: metrics, logger: logger, standardLabs: standardLabs}
}

// Import parses a sheet of the given kind and upserts its rows.
func (s *ImportService) Import(ctx context.Context, kind dto.ImportKind, r io.Reader) (*dto.ImportResult, error) {
	if !lo.Contains(dto.ImportKinds(), kind) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown import kind %q", kind))
	}

	var (
		result *dto.ImportResult
		err    error
	)
	switch kind {
	case dto.ImportRooms:
		result, err = s.importRooms(ctx, r)
	case dto.ImportTeachers:
		result, err = s.importTeachers(ctx, r)
	case dto.ImportCourses:
		result, err = s.importCourses(ctx, r)
	case dto.ImportPreferences:
		result, err = s.importPreferences(ctx, r)
	case dto.ImportTimings:
		result, err = s.importTimings(ctx, r)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RecordImport(string(kind), result.Rows)
	_ = s.cache.Invalidate(ctx, exportCachePrefix+"*")
	s.logger.Info("csv import applied",
		zap.String("kind", string(kind)),
		zap.Int("rows", result.Rows),
		zap.Int("upserted", result.Upserted),
	)
	return result, nil
}

// within runs fn inside a transaction and commits on success.
func (s *ImportService) within(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		var appErr *appErrors.Error
		if !errors.As(err, &appErr) {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store imported rows")
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit import")
	}
	return nil
}

func (s *ImportService) importRooms(ctx context.Context, r io.Reader) (*dto.ImportResult, error) {
	rooms, err := csvio.ParseRooms(r)
	if err != nil {
		return nil, err
	}
	err = s.within(ctx, func(tx *sqlx.Tx) error {
		for i := range rooms {
			if err := s.repos.Rooms.Upsert(ctx, tx, &rooms[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.ImportResult{Kind: dto.ImportRooms, Rows: len(rooms), Upserted: len(rooms)}, nil
}

func (s *ImportService) importTeachers(ctx context.Context, r io.Reader) (*dto.ImportResult, error) {
	teachers, err := csvio.ParseTeachers(r)
	if err != nil {
		return nil, err
	}
	err = s.within(ctx, func(tx *sqlx.Tx) error {
		for i := range teachers {
			if err := s.repos.Teachers.Upsert(ctx, tx, &teachers[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.ImportResult{Kind: dto.ImportTeachers, Rows: len(teachers), Upserted: len(teachers)}, nil
}

func (s *ImportService) importCourses(ctx context.Context, r io.Reader) (*dto.ImportResult, error) {
	courses, err := csvio.ParseCourses(r, s.standardLabs)
	if err != nil {
		return nil, err
	}
	sections := 0
	err = s.within(ctx, func(tx *sqlx.Tx) error {
		for i := range courses {
			course := &courses[i].Course
			if err := s.repos.Courses.Upsert(ctx, tx, course); err != nil {
				return err
			}
			if courses[i].Sections == 0 {
				continue
			}
			if err := s.repos.Sections.EnsureNumbers(ctx, tx, course.ID, courses[i].Sections); err != nil {
				return err
			}
			sections += courses[i].Sections
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.ImportResult{Kind: dto.ImportCourses, Rows: len(courses), Upserted: len(courses), Sections: sections}, nil
}

func (s *ImportService) resolver(ctx context.Context) (*csvio.Resolver, error) {
	teachers, err := s.repos.Teachers.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	courses, err := s.repos.Courses.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	return csvio.NewResolver(teachers, courses), nil
}

func (s *ImportService) importPreferences(ctx context.Context, r io.Reader) (*dto.ImportResult, error) {
	rows, err := csvio.ParsePreferences(r)
	if err != nil {
		return nil, err
	}
	resolver, err := s.resolver(ctx)
	if err != nil {
		return nil, err
	}
	prefs, err := resolver.Preferences(rows)
	if err != nil {
		return nil, err
	}
	err = s.within(ctx, func(tx *sqlx.Tx) error {
		for i := range prefs {
			if err := s.repos.Preferences.Upsert(ctx, tx, &prefs[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.ImportResult{Kind: dto.ImportPreferences, Rows: len(rows), Upserted: len(prefs)}, nil
}

// importTimings replaces the declared windows of every teacher named in the
// sheet. Teachers absent from the sheet keep theirs.
func (s *ImportService) importTimings(ctx context.Context, r io.Reader) (*dto.ImportResult, error) {
	rows, err := csvio.ParseTimings(r)
	if err != nil {
		return nil, err
	}
	resolver, err := s.resolver(ctx)
	if err != nil {
		return nil, err
	}
	timings, err := resolver.Timings(rows)
	if err != nil {
		return nil, err
	}
	byTeacher := lo.GroupBy(timings, func(t models.TeacherTimingPreference) string { return t.TeacherID })
	teacherIDs := lo.Keys(byTeacher)
	sort.Strings(teacherIDs)

	err = s.within(ctx, func(tx *sqlx.Tx) error {
		for _, id := range teacherIDs {
			if err := s.repos.Preferences.ReplaceTimings(ctx, tx, id, byTeacher[id]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.ImportResult{Kind: dto.ImportTimings, Rows: len(rows), Upserted: len(timings)}, nil
}

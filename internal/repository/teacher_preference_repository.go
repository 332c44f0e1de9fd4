package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

var preferenceColumns = []string{"id", "teacher_id", "course_id", "section_count", "status", "created_at", "updated_at"}

// TeacherPreferenceRepository persists course and timing preferences.
type TeacherPreferenceRepository struct {
	db *sqlx.DB
	sb squirrel.StatementBuilderType
}

// NewTeacherPreferenceRepository constructs the repository.
func NewTeacherPreferenceRepository(db *sqlx.DB) *TeacherPreferenceRepository {
	return &TeacherPreferenceRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *TeacherPreferenceRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListActive returns course preferences that are accepted or still pending.
func (r *TeacherPreferenceRepository) ListActive(ctx context.Context) ([]models.TeacherPreference, error) {
	const query = `SELECT id, teacher_id, course_id, section_count, status, created_at, updated_at FROM teacher_preferences WHERE status IN ($1, $2) ORDER BY teacher_id ASC, course_id ASC`
	var prefs []models.TeacherPreference
	if err := r.db.SelectContext(ctx, &prefs, query, models.PreferenceAccepted, models.PreferencePending); err != nil {
		return nil, fmt.Errorf("list teacher preferences: %w", err)
	}
	return prefs, nil
}

// List returns course preferences matching the filter, oldest request first.
func (r *TeacherPreferenceRepository) List(ctx context.Context, filter models.PreferenceFilter) ([]models.TeacherPreference, error) {
	builder := r.sb.Select(preferenceColumns...).From("teacher_preferences")
	if filter.Status != "" {
		builder = builder.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.TeacherID != "" {
		builder = builder.Where(squirrel.Eq{"teacher_id": filter.TeacherID})
	}
	query, args, err := builder.OrderBy("created_at ASC", "id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build preference list query: %w", err)
	}
	var prefs []models.TeacherPreference
	if err := r.db.SelectContext(ctx, &prefs, query, args...); err != nil {
		return nil, fmt.Errorf("list preference requests: %w", err)
	}
	return prefs, nil
}

// UpdateStatus records a review decision on one preference. A missing id
// yields sql.ErrNoRows.
func (r *TeacherPreferenceRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.PreferenceStatus) (*models.TeacherPreference, error) {
	const query = `UPDATE teacher_preferences SET status = $1, updated_at = $2 WHERE id = $3
RETURNING id, teacher_id, course_id, section_count, status, created_at, updated_at`
	var pref models.TeacherPreference
	if err := sqlx.GetContext(ctx, r.exec(exec), &pref, query, status, time.Now().UTC(), id); err != nil {
		return nil, fmt.Errorf("update preference status: %w", err)
	}
	return &pref, nil
}

// UpdateAllStatus moves every preference in one status to another and
// returns how many rows changed.
func (r *TeacherPreferenceRepository) UpdateAllStatus(ctx context.Context, exec sqlx.ExtContext, from, to models.PreferenceStatus) (int64, error) {
	const query = `UPDATE teacher_preferences SET status = $1, updated_at = $2 WHERE status = $3`
	res, err := r.exec(exec).ExecContext(ctx, query, to, time.Now().UTC(), from)
	if err != nil {
		return 0, fmt.Errorf("bulk update preference status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk update preference status: %w", err)
	}
	return n, nil
}

// ListTimings returns every declared teaching window.
func (r *TeacherPreferenceRepository) ListTimings(ctx context.Context) ([]models.TeacherTimingPreference, error) {
	const query = `SELECT id, teacher_id, day, start_time, end_time, created_at FROM teacher_timing_preferences ORDER BY teacher_id ASC, day ASC, start_time ASC`
	var timings []models.TeacherTimingPreference
	if err := r.db.SelectContext(ctx, &timings, query); err != nil {
		return nil, fmt.Errorf("list timing preferences: %w", err)
	}
	return timings, nil
}

// Upsert stores a course preference, replacing the teacher's previous one for
// the same course.
func (r *TeacherPreferenceRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, pref *models.TeacherPreference) error {
	if pref.ID == "" {
		pref.ID = uuid.NewString()
	}
	if pref.Status == "" {
		pref.Status = models.PreferencePending
	}
	now := time.Now().UTC()
	if pref.CreatedAt.IsZero() {
		pref.CreatedAt = now
	}
	pref.UpdatedAt = now

	const query = `
INSERT INTO teacher_preferences (id, teacher_id, course_id, section_count, status, created_at, updated_at)
VALUES (:id, :teacher_id, :course_id, :section_count, :status, :created_at, :updated_at)
ON CONFLICT (teacher_id, course_id) DO UPDATE
SET section_count = EXCLUDED.section_count,
    status = EXCLUDED.status,
    updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, pref); err != nil {
		return fmt.Errorf("upsert teacher preference: %w", err)
	}
	return nil
}

// ReplaceTimings swaps a teacher's declared windows for the given set.
func (r *TeacherPreferenceRepository) ReplaceTimings(ctx context.Context, exec sqlx.ExtContext, teacherID string, timings []models.TeacherTimingPreference) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM teacher_timing_preferences WHERE teacher_id = $1`, teacherID); err != nil {
		return fmt.Errorf("clear timing preferences: %w", err)
	}

	const query = `
INSERT INTO teacher_timing_preferences (id, teacher_id, day, start_time, end_time, created_at)
VALUES (:id, :teacher_id, :day, :start_time, :end_time, :created_at)`
	now := time.Now().UTC()
	for i := range timings {
		tp := &timings[i]
		if tp.ID == "" {
			tp.ID = uuid.NewString()
		}
		tp.TeacherID = teacherID
		if tp.CreatedAt.IsZero() {
			tp.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, tp); err != nil {
			return fmt.Errorf("insert timing preference: %w", err)
		}
	}
	return nil
}

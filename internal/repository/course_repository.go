package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

const courseColumns = "id, code, title, credits, kind, duration, created_at, updated_at"

// CourseRepository manages persistence for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns every course ordered by code.
func (r *CourseRepository) List(ctx context.Context) ([]models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses ORDER BY code ASC", courseColumns)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// Count returns the number of courses.
func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses"); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return total, nil
}

// Upsert inserts a course or refreshes the one sharing its code. The stored
// id is written back so callers can attach sections to it.
func (r *CourseRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	const query = `
INSERT INTO courses (id, code, title, credits, kind, duration, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (code) DO UPDATE
SET title = EXCLUDED.title,
    credits = EXCLUDED.credits,
    kind = EXCLUDED.kind,
    duration = EXCLUDED.duration,
    updated_at = EXCLUDED.updated_at
RETURNING id`
	row := r.exec(exec).QueryRowxContext(ctx, query,
		course.ID, course.Code, course.Title, course.Credits, course.Kind, course.Duration, course.CreatedAt, course.UpdatedAt)
	if err := row.Scan(&course.ID); err != nil {
		return fmt.Errorf("upsert course %s: %w", course.Code, err)
	}
	return nil
}

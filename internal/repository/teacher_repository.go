package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

const teacherColumns = "id, initial, name, email, faculty_type, department, created_at, updated_at"

// TeacherRepository manages persistence for teachers.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

func (r *TeacherRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns every teacher ordered by initial.
func (r *TeacherRepository) List(ctx context.Context) ([]models.Teacher, error) {
	query := fmt.Sprintf("SELECT %s FROM teachers ORDER BY initial ASC", teacherColumns)
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// Count returns the number of teachers.
func (r *TeacherRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM teachers"); err != nil {
		return 0, fmt.Errorf("count teachers: %w", err)
	}
	return total, nil
}

// Upsert inserts a teacher or refreshes the one sharing its initial.
func (r *TeacherRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error {
	stampTeacher(teacher)
	const query = `
INSERT INTO teachers (id, initial, name, email, faculty_type, department, created_at, updated_at)
VALUES (:id, :initial, :name, :email, :faculty_type, :department, :created_at, :updated_at)
ON CONFLICT (initial) DO UPDATE
SET name = EXCLUDED.name,
    email = EXCLUDED.email,
    faculty_type = EXCLUDED.faculty_type,
    department = EXCLUDED.department,
    updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, teacher); err != nil {
		return fmt.Errorf("upsert teacher %s: %w", teacher.Initial, err)
	}
	return nil
}

// EnsurePlaceholder stores the placeholder teacher unless it already exists.
func (r *TeacherRepository) EnsurePlaceholder(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error {
	stampTeacher(teacher)
	const query = `
INSERT INTO teachers (id, initial, name, email, faculty_type, department, created_at, updated_at)
VALUES (:id, :initial, :name, :email, :faculty_type, :department, :created_at, :updated_at)
ON CONFLICT DO NOTHING`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, teacher); err != nil {
		return fmt.Errorf("ensure placeholder teacher: %w", err)
	}
	return nil
}

func stampTeacher(teacher *models.Teacher) {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = now
	}
	teacher.UpdatedAt = now
}

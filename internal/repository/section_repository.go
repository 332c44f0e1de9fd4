package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

// SectionRepository manages persistence for course sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs a SectionRepository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

func (r *SectionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListAll returns every section ordered by course and number.
func (r *SectionRepository) ListAll(ctx context.Context) ([]models.Section, error) {
	const query = `SELECT id, course_id, section_number, teacher_id, created_at, updated_at FROM sections ORDER BY course_id ASC, section_number ASC`
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// EnsureNumbers creates sections 1..count for a course, keeping existing ones.
func (r *SectionRepository) EnsureNumbers(ctx context.Context, exec sqlx.ExtContext, courseID string, count int) error {
	const query = `
INSERT INTO sections (id, course_id, section_number, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (course_id, section_number) DO NOTHING`
	target := r.exec(exec)
	now := time.Now().UTC()
	for n := 1; n <= count; n++ {
		if _, err := target.ExecContext(ctx, query, uuid.NewString(), courseID, n, now); err != nil {
			return fmt.Errorf("ensure section %d of course %s: %w", n, courseID, err)
		}
	}
	return nil
}

// ResetTeachers clears every section's teacher.
func (r *SectionRepository) ResetTeachers(ctx context.Context, exec sqlx.ExtContext) error {
	const query = `UPDATE sections SET teacher_id = NULL, updated_at = $1 WHERE teacher_id IS NOT NULL`
	if _, err := r.exec(exec).ExecContext(ctx, query, time.Now().UTC()); err != nil {
		return fmt.Errorf("reset section teachers: %w", err)
	}
	return nil
}

// UpdateTeachers binds sections to teachers, keyed by section id.
func (r *SectionRepository) UpdateTeachers(ctx context.Context, exec sqlx.ExtContext, bindings map[string]string) error {
	if len(bindings) == 0 {
		return nil
	}
	ids := make([]string, 0, len(bindings))
	for id := range bindings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	const query = `UPDATE sections SET teacher_id = $1, updated_at = $2 WHERE id = $3`
	target := r.exec(exec)
	now := time.Now().UTC()
	for _, id := range ids {
		if _, err := target.ExecContext(ctx, query, bindings[id], now, id); err != nil {
			return fmt.Errorf("update teacher of section %s: %w", id, err)
		}
	}
	return nil
}

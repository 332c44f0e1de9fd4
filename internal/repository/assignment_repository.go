package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
)

// insertChunkSize bounds the rows per INSERT so the parameter count stays
// well under the PostgreSQL limit.
const insertChunkSize = 500

var assignmentColumns = []string{"id", "run_id", "section_id", "room_id", "teacher_id", "day", "time_slot", "score", "created_at"}

// AssignmentRepository persists committed timetable cells.
type AssignmentRepository struct {
	db *sqlx.DB
	sb squirrel.StatementBuilderType
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *AssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListAll returns every stored assignment.
func (r *AssignmentRepository) ListAll(ctx context.Context) ([]models.Assignment, error) {
	query, args, err := r.sb.Select(assignmentColumns...).
		From("assignments").
		OrderBy("section_id ASC", "day ASC", "time_slot ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list assignments query: %w", err)
	}
	var items []models.Assignment
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return items, nil
}

// DeleteAll removes every assignment.
func (r *AssignmentRepository) DeleteAll(ctx context.Context, exec sqlx.ExtContext) error {
	query, args, err := r.sb.Delete("assignments").ToSql()
	if err != nil {
		return fmt.Errorf("build delete assignments query: %w", err)
	}
	if _, err := r.exec(exec).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete assignments: %w", err)
	}
	return nil
}

// BulkInsert writes assignments in multi-row statements.
func (r *AssignmentRepository) BulkInsert(ctx context.Context, exec sqlx.ExtContext, items []models.Assignment) error {
	if len(items) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	for start := 0; start < len(items); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(items) {
			end = len(items)
		}
		builder := r.sb.Insert("assignments").Columns(assignmentColumns...)
		for i := start; i < end; i++ {
			a := &items[i]
			if a.ID == "" {
				a.ID = uuid.NewString()
			}
			if a.CreatedAt.IsZero() {
				a.CreatedAt = now
			}
			builder = builder.Values(a.ID, a.RunID, a.SectionID, a.RoomID, a.TeacherID, a.Day, a.TimeSlot, a.Score, a.CreatedAt)
		}
		query, args, err := builder.ToSql()
		if err != nil {
			return fmt.Errorf("build insert assignments query: %w", err)
		}
		if _, err := target.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert assignments: %w", err)
		}
	}
	return nil
}

var assignmentSorts = map[string]string{
	"course":  "c.code",
	"section": "s.section_number",
	"teacher": "t.initial",
	"room":    "r.room_number",
	"day":     "a.day",
	"slot":    "a.time_slot",
}

// dayCondition matches a weekday name against both single-day rows and the
// pattern codes that meet on that day. Other labels match as given.
func dayCondition(day string) squirrel.Sqlizer {
	weekday, ok := scheduler.ParseDay(day)
	if !ok {
		return squirrel.ILike{"a.day": day}
	}
	patterns := scheduler.PatternsOn(weekday)
	if len(patterns) == 0 {
		return squirrel.ILike{"a.day": day}
	}
	return squirrel.Or{
		squirrel.ILike{"a.day": day},
		squirrel.Eq{"a.day": patterns},
	}
}

// ListDetailed returns assignments joined with course, section, teacher and
// room display fields.
func (r *AssignmentRepository) ListDetailed(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, error) {
	builder := r.sb.Select(
		"a.id", "a.run_id", "a.section_id", "a.room_id", "a.teacher_id", "a.day", "a.time_slot", "a.score", "a.created_at",
		"c.code AS course_code", "c.title AS course_title", "s.section_number",
		"t.initial AS teacher_initial", "r.room_number",
	).
		From("assignments a").
		Join("sections s ON s.id = a.section_id").
		Join("courses c ON c.id = s.course_id").
		Join("teachers t ON t.id = a.teacher_id").
		Join("rooms r ON r.id = a.room_id")

	where := squirrel.And{}
	if filter.TeacherID != "" {
		where = append(where, squirrel.Eq{"a.teacher_id": filter.TeacherID})
	}
	if filter.RoomID != "" {
		where = append(where, squirrel.Eq{"a.room_id": filter.RoomID})
	}
	if day := strings.TrimSpace(filter.Day); day != "" {
		where = append(where, dayCondition(day))
	}
	if code := strings.TrimSpace(filter.CourseCode); code != "" {
		where = append(where, squirrel.ILike{"c.code": code + "%"})
	}
	if len(where) > 0 {
		builder = builder.Where(where)
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	if column, ok := assignmentSorts[filter.SortBy]; ok {
		builder = builder.OrderBy(column + " " + order)
	}
	builder = builder.OrderBy("c.code ASC", "s.section_number ASC", "a.day ASC", "a.time_slot ASC")

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build detailed assignments query: %w", err)
	}
	var items []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list detailed assignments: %w", err)
	}
	return items, nil
}

package csvio

import (
	"fmt"
	"io"
	"strings"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
)

// Resolver turns initial and course-code references into ids.
type Resolver struct {
	teachers map[string]models.Teacher
	courses  map[string]models.Course
}

// NewResolver indexes teachers by initial and courses by code.
func NewResolver(teachers []models.Teacher, courses []models.Course) *Resolver {
	r := &Resolver{
		teachers: make(map[string]models.Teacher, len(teachers)),
		courses:  make(map[string]models.Course, len(courses)),
	}
	for _, t := range teachers {
		r.teachers[strings.ToUpper(strings.TrimSpace(t.Initial))] = t
	}
	for _, c := range courses {
		r.courses[strings.ToUpper(strings.TrimSpace(c.Code))] = c
	}
	return r
}

func (r *Resolver) teacher(line int, initial string) (models.Teacher, error) {
	t, ok := r.teachers[strings.ToUpper(strings.TrimSpace(initial))]
	if !ok {
		return models.Teacher{}, invalid("row %d: unknown teacher initial %q", line, initial)
	}
	return t, nil
}

// Preferences resolves preference rows. A blank status means pending.
func (r *Resolver) Preferences(rows []PreferenceRow) ([]models.TeacherPreference, error) {
	out := make([]models.TeacherPreference, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		t, err := r.teacher(line, row.Initial)
		if err != nil {
			return nil, err
		}
		c, ok := r.courses[strings.ToUpper(strings.TrimSpace(row.Course))]
		if !ok {
			return nil, invalid("row %d: unknown course %q", line, row.Course)
		}
		if row.Sections < 0 {
			return nil, invalid("row %d: sections must not be negative", line)
		}
		status := models.PreferenceStatus(strings.ToUpper(strings.TrimSpace(row.Status)))
		switch status {
		case "":
			status = models.PreferencePending
		case models.PreferencePending, models.PreferenceAccepted, models.PreferenceRejected:
		default:
			return nil, invalid("row %d: unknown preference status %q", line, row.Status)
		}
		out = append(out, models.TeacherPreference{
			ID:           StableID("preference", t.Initial+"/"+c.Code),
			TeacherID:    t.ID,
			CourseID:     c.ID,
			SectionCount: row.Sections,
			Status:       status,
		})
	}
	return out, nil
}

// Timings resolves timing rows and checks their day and clock values.
func (r *Resolver) Timings(rows []TimingRow) ([]models.TeacherTimingPreference, error) {
	out := make([]models.TeacherTimingPreference, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		t, err := r.teacher(line, row.Initial)
		if err != nil {
			return nil, err
		}
		day := strings.TrimSpace(row.Day)
		if _, ok := scheduler.ExpandDay(day); !ok {
			return nil, invalid("row %d: unknown day %q", line, row.Day)
		}
		if _, err := scheduler.SlotsWithin(row.StartTime, row.EndTime); err != nil {
			return nil, invalid("row %d: %v", line, err)
		}
		out = append(out, models.TeacherTimingPreference{
			ID:        StableID("timing", fmt.Sprintf("%s/%d", t.Initial, line)),
			TeacherID: t.ID,
			Day:       day,
			StartTime: strings.TrimSpace(row.StartTime),
			EndTime:   strings.TrimSpace(row.EndTime),
		})
	}
	return out, nil
}

// Sources are the sheets of an offline run. Preferences and Timings may be nil.
type Sources struct {
	Rooms       io.Reader
	Teachers    io.Reader
	Courses     io.Reader
	Preferences io.Reader
	Timings     io.Reader
}

// BuildInput loads every sheet into a scheduler snapshot.
func BuildInput(src Sources, standardLabs []string) (scheduler.Input, error) {
	var in scheduler.Input
	if src.Rooms == nil || src.Teachers == nil || src.Courses == nil {
		return in, invalid("rooms, teachers and courses sheets are required")
	}

	rooms, err := ParseRooms(src.Rooms)
	if err != nil {
		return in, fmt.Errorf("rooms: %w", err)
	}
	teachers, err := ParseTeachers(src.Teachers)
	if err != nil {
		return in, fmt.Errorf("teachers: %w", err)
	}
	parsed, err := ParseCourses(src.Courses, standardLabs)
	if err != nil {
		return in, fmt.Errorf("courses: %w", err)
	}
	courses := make([]models.Course, len(parsed))
	for i, c := range parsed {
		courses[i] = c.Course
	}

	in.Rooms = rooms
	in.Teachers = teachers
	in.Courses = courses
	in.Sections = Sections(parsed)

	resolver := NewResolver(teachers, courses)
	if src.Preferences != nil {
		rows, err := ParsePreferences(src.Preferences)
		if err != nil {
			return in, fmt.Errorf("preferences: %w", err)
		}
		if in.Preferences, err = resolver.Preferences(rows); err != nil {
			return in, fmt.Errorf("preferences: %w", err)
		}
	}
	if src.Timings != nil {
		rows, err := ParseTimings(src.Timings)
		if err != nil {
			return in, fmt.Errorf("timings: %w", err)
		}
		if in.Timings, err = resolver.Timings(rows); err != nil {
			return in, fmt.Errorf("timings: %w", err)
		}
	}
	return in, nil
}

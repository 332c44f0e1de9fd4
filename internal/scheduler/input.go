package scheduler

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// Input is the in-memory snapshot a run works on.
type Input struct {
	Rooms       []models.Room
	Teachers    []models.Teacher
	Courses     []models.Course
	Sections    []models.Section
	Preferences []models.TeacherPreference
	Timings     []models.TeacherTimingPreference
	// Existing is ignored by rebuild runs.
	Existing []models.Assignment
}

// Options control a single run.
type Options struct {
	Seed    int64
	Rebuild bool
	RunID   string
}

func invalid(format string, args ...interface{}) error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf(format, args...))
}

func structErr(v *validator.Validate, kind, id string, value interface{}) error {
	if err := v.Struct(value); err != nil {
		return invalid("%s %q: %v", kind, id, err)
	}
	return nil
}

// validate checks record shapes and references. It returns the first problem
// found so a run never starts on a broken snapshot.
func (in Input) validate(v *validator.Validate, opts Options) error {
	roomIDs := make(map[string]struct{}, len(in.Rooms))
	for _, r := range in.Rooms {
		if err := structErr(v, "room", r.ID, r); err != nil {
			return err
		}
		if _, dup := roomIDs[r.ID]; dup {
			return invalid("duplicate room id %q", r.ID)
		}
		roomIDs[r.ID] = struct{}{}
	}

	teacherIDs := make(map[string]struct{}, len(in.Teachers))
	initials := make(map[string]string, len(in.Teachers))
	for _, t := range in.Teachers {
		if err := structErr(v, "teacher", t.ID, t); err != nil {
			return err
		}
		if _, dup := teacherIDs[t.ID]; dup {
			return invalid("duplicate teacher id %q", t.ID)
		}
		key := strings.ToUpper(strings.TrimSpace(t.Initial))
		if other, dup := initials[key]; dup {
			return invalid("teacher initial %q shared by %q and %q", t.Initial, other, t.ID)
		}
		teacherIDs[t.ID] = struct{}{}
		initials[key] = t.ID
	}

	courses := make(map[string]models.Course, len(in.Courses))
	codes := make(map[string]struct{}, len(in.Courses))
	for _, c := range in.Courses {
		if err := structErr(v, "course", c.ID, c); err != nil {
			return err
		}
		if _, dup := courses[c.ID]; dup {
			return invalid("duplicate course id %q", c.ID)
		}
		code := strings.ToUpper(strings.TrimSpace(c.Code))
		if _, dup := codes[code]; dup {
			return invalid("duplicate course code %q", c.Code)
		}
		courses[c.ID] = c
		codes[code] = struct{}{}
	}

	sections := make(map[string]models.Section, len(in.Sections))
	numbers := make(map[string]struct{}, len(in.Sections))
	for _, s := range in.Sections {
		if err := structErr(v, "section", s.ID, s); err != nil {
			return err
		}
		if _, dup := sections[s.ID]; dup {
			return invalid("duplicate section id %q", s.ID)
		}
		if _, ok := courses[s.CourseID]; !ok {
			return invalid("section %q references unknown course %q", s.ID, s.CourseID)
		}
		key := fmt.Sprintf("%s/%d", s.CourseID, s.SectionNumber)
		if _, dup := numbers[key]; dup {
			return invalid("section number %d repeated for course %q", s.SectionNumber, s.CourseID)
		}
		if s.TeacherID != nil && *s.TeacherID != "" {
			if _, ok := teacherIDs[*s.TeacherID]; !ok {
				return invalid("section %q references unknown teacher %q", s.ID, *s.TeacherID)
			}
		}
		sections[s.ID] = s
		numbers[key] = struct{}{}
	}

	for _, p := range in.Preferences {
		if p.SectionCount < 0 {
			return invalid("preference %q has negative section count %d", p.ID, p.SectionCount)
		}
		if err := structErr(v, "preference", p.ID, p); err != nil {
			return err
		}
		if _, ok := teacherIDs[p.TeacherID]; !ok {
			return invalid("preference %q references unknown teacher %q", p.ID, p.TeacherID)
		}
		if _, ok := courses[p.CourseID]; !ok {
			return invalid("preference %q references unknown course %q", p.ID, p.CourseID)
		}
	}

	for _, tp := range in.Timings {
		if err := structErr(v, "timing preference", tp.ID, tp); err != nil {
			return err
		}
		if _, ok := teacherIDs[tp.TeacherID]; !ok {
			return invalid("timing preference %q references unknown teacher %q", tp.ID, tp.TeacherID)
		}
		if _, ok := ExpandDay(tp.Day); !ok {
			return invalid("timing preference %q has unknown day %q", tp.ID, tp.Day)
		}
		if _, err := SlotsWithin(tp.StartTime, tp.EndTime); err != nil {
			return invalid("timing preference %q: %v", tp.ID, err)
		}
	}

	if opts.Rebuild {
		return nil
	}
	for _, a := range in.Existing {
		if err := structErr(v, "assignment", a.ID, a); err != nil {
			return err
		}
		if _, ok := sections[a.SectionID]; !ok {
			return invalid("assignment %q references unknown section %q", a.ID, a.SectionID)
		}
		if _, ok := roomIDs[a.RoomID]; !ok {
			return invalid("assignment %q references unknown room %q", a.ID, a.RoomID)
		}
		if _, ok := teacherIDs[a.TeacherID]; !ok {
			return invalid("assignment %q references unknown teacher %q", a.ID, a.TeacherID)
		}
		if _, ok := ExpandDay(a.Day); !ok {
			return invalid("assignment %q has unknown day %q", a.ID, a.Day)
		}
		if _, ok := Slot(a.TimeSlot); !ok {
			return invalid("assignment %q has slot %d outside the catalogue", a.ID, a.TimeSlot)
		}
	}
	return nil
}

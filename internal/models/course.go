package models

import (
	"strings"
	"time"
	"unicode"
)

// CourseKind distinguishes lectures from laboratory courses.
type CourseKind string

const (
	CourseKindTheory CourseKind = "THEORY"
	CourseKindLab    CourseKind = "LAB"
)

// DurationMode sets how many consecutive slots a meeting occupies.
type DurationMode string

const (
	DurationStandard DurationMode = "STANDARD"
	DurationExtended DurationMode = "EXTENDED"
)

// LabCodeSuffix marks a lab course code derived from its lecture pair.
const LabCodeSuffix = "L"

// Course is an offered course for the term.
type Course struct {
	ID        string       `db:"id" json:"id" validate:"required"`
	Code      string       `db:"code" json:"code" validate:"required"`
	Title     string       `db:"title" json:"title"`
	Credits   float64      `db:"credits" json:"credits" validate:"gte=0"`
	Kind      CourseKind   `db:"kind" json:"kind" validate:"oneof=THEORY LAB"`
	Duration  DurationMode `db:"duration" json:"duration" validate:"oneof=STANDARD EXTENDED"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// BaseCode returns the shared code of a lecture/lab pair.
func (c Course) BaseCode() string {
	code := strings.ToUpper(strings.TrimSpace(c.Code))
	if c.Kind == CourseKindLab && len(code) > 1 && strings.HasSuffix(code, LabCodeSuffix) {
		return strings.TrimSuffix(code, LabCodeSuffix)
	}
	return code
}

// Department is the alphabetic prefix of the base code.
func (c Course) Department() string {
	base := c.BaseCode()
	end := strings.IndexFunc(base, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		return base
	}
	return base[:end]
}

// SlotSpan is the number of consecutive slots one meeting occupies.
func (c Course) SlotSpan() int {
	if c.Duration == DurationExtended {
		return 2
	}
	return 1
}

// RequiredRoomKind maps the course kind to the room kind it must use.
func (c Course) RequiredRoomKind() RoomKind {
	if c.Kind == CourseKindLab {
		return RoomKindLab
	}
	return RoomKindLecture
}

// Section is a concrete offering of a course.
type Section struct {
	ID            string    `db:"id" json:"id" validate:"required"`
	CourseID      string    `db:"course_id" json:"course_id" validate:"required"`
	SectionNumber int       `db:"section_number" json:"section_number" validate:"gt=0"`
	TeacherID     *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

package models

import "time"

// PreferenceStatus tracks review state of a course preference.
type PreferenceStatus string

const (
	PreferencePending  PreferenceStatus = "PENDING"
	PreferenceAccepted PreferenceStatus = "ACCEPTED"
	PreferenceRejected PreferenceStatus = "REJECTED"
)

// Counts reports whether the status makes the teacher eligible.
func (s PreferenceStatus) Counts() bool {
	return s == PreferencePending || s == PreferenceAccepted
}

// TeacherPreference is a teacher's request to teach a course.
type TeacherPreference struct {
	ID           string           `db:"id" json:"id"`
	TeacherID    string           `db:"teacher_id" json:"teacher_id" validate:"required"`
	CourseID     string           `db:"course_id" json:"course_id" validate:"required"`
	SectionCount int              `db:"section_count" json:"section_count" validate:"gte=0"`
	Status       PreferenceStatus `db:"status" json:"status" validate:"oneof=PENDING ACCEPTED REJECTED"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// PreferenceFilter narrows the preference review list.
type PreferenceFilter struct {
	Status    PreferenceStatus
	TeacherID string
}

// TeacherTimingPreference is a declared teaching window. Day holds a weekday
// name or a day-pattern code; times use the "08:00 AM" clock format.
type TeacherTimingPreference struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id" validate:"required"`
	Day       string    `db:"day" json:"day" validate:"required"`
	StartTime string    `db:"start_time" json:"start_time" validate:"required"`
	EndTime   string    `db:"end_time" json:"end_time" validate:"required"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

package models

import "time"

// Assignment occupies one (room, day-or-pattern, slot) cell for a section.
// Extended meetings produce one record per slot.
type Assignment struct {
	ID        string    `db:"id" json:"id"`
	RunID     string    `db:"run_id" json:"run_id"`
	SectionID string    `db:"section_id" json:"section_id" validate:"required"`
	RoomID    string    `db:"room_id" json:"room_id" validate:"required"`
	TeacherID string    `db:"teacher_id" json:"teacher_id" validate:"required"`
	Day       string    `db:"day" json:"day" validate:"required"`
	TimeSlot  int       `db:"time_slot" json:"time_slot" validate:"gt=0"`
	Score     float64   `db:"score" json:"score"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AssignmentDetail joins an assignment with display fields for exports.
type AssignmentDetail struct {
	Assignment
	CourseCode     string `db:"course_code" json:"course_code"`
	CourseTitle    string `db:"course_title" json:"course_title"`
	SectionNumber  int    `db:"section_number" json:"section_number"`
	TeacherInitial string `db:"teacher_initial" json:"teacher_initial"`
	RoomNumber     string `db:"room_number" json:"room_number"`
}

// AssignmentFilter narrows exported assignments.
type AssignmentFilter struct {
	TeacherID  string
	RoomID     string
	Day        string
	CourseCode string
	SortBy     string
	SortOrder  string
}

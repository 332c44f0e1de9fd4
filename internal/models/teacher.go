package models

import (
	"strings"
	"time"
)

// FacultyType classifies the employment of a teacher.
type FacultyType string

const (
	FacultyPermanent FacultyType = "PERMANENT"
	FacultyAdjunct   FacultyType = "ADJUNCT"
)

// Teacher represents an instructor record.
type Teacher struct {
	ID          string      `db:"id" json:"id" validate:"required"`
	Initial     string      `db:"initial" json:"initial" validate:"required"`
	Name        string      `db:"name" json:"name"`
	Email       string      `db:"email" json:"email" validate:"omitempty,email"`
	FacultyType FacultyType `db:"faculty_type" json:"faculty_type"`
	Department  string      `db:"department" json:"department"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// IsAdjunct reports whether the teacher is restricted to declared days.
func (t Teacher) IsAdjunct() bool {
	return strings.EqualFold(strings.TrimSpace(string(t.FacultyType)), string(FacultyAdjunct))
}

package dto

import "github.com/noah-isme/timetable-api/internal/models"

// PreferenceListQuery filters the preference review list.
type PreferenceListQuery struct {
	Status    string `form:"status" validate:"omitempty,oneof=PENDING ACCEPTED REJECTED"`
	TeacherID string `form:"teacherId"`
}

// PreferenceDecisionRequest carries a review decision.
type PreferenceDecisionRequest struct {
	Status string `json:"status" validate:"required,oneof=ACCEPTED REJECTED"`
}

// PreferenceBulkResult reports a decision applied to every pending request.
type PreferenceBulkResult struct {
	Status  models.PreferenceStatus `json:"status"`
	Updated int64                   `json:"updated"`
}

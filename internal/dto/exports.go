package dto

// ExportFormat selects the timetable rendering.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// TimetableExportQuery filters and formats a timetable download.
type TimetableExportQuery struct {
	Format     string `form:"format" validate:"omitempty,oneof=csv pdf"`
	TeacherID  string `form:"teacherId"`
	RoomID     string `form:"roomId"`
	Day        string `form:"day"`
	CourseCode string `form:"courseCode"`
	SortBy     string `form:"sortBy" validate:"omitempty,oneof=course section teacher room day slot"`
	SortOrder  string `form:"sortOrder" validate:"omitempty,oneof=asc desc ASC DESC"`
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Payload     []byte `json:"payload"`
}

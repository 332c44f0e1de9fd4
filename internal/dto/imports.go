package dto

// ImportKind names a sheet accepted by the import endpoint.
type ImportKind string

const (
	ImportCourses     ImportKind = "courses"
	ImportTeachers    ImportKind = "teachers"
	ImportRooms       ImportKind = "rooms"
	ImportPreferences ImportKind = "preferences"
	ImportTimings     ImportKind = "timings"
)

// ImportKinds lists every accepted kind.
func ImportKinds() []ImportKind {
	return []ImportKind{ImportCourses, ImportTeachers, ImportRooms, ImportPreferences, ImportTimings}
}

// ImportResult summarises a processed upload.
type ImportResult struct {
	Kind     ImportKind `json:"kind"`
	Rows     int        `json:"rows"`
	Upserted int        `json:"upserted"`
	Sections int        `json:"sectionsEnsured,omitempty"`
}

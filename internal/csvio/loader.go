package csvio

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// Course pairs a parsed course with the number of sections to open for it.
type Course struct {
	models.Course
	Sections int
}

func invalid(format string, args ...interface{}) error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf(format, args...))
}

// StableID derives a repeatable id for a record loaded from a sheet.
func StableID(kind, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("timetable-"+kind+":"+strings.ToUpper(strings.TrimSpace(key)))).String()
}

// decode checks the header row for the required columns and unmarshals the
// body into out.
func decode(r io.Reader, required []string, out interface{}) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return invalid("csv file is empty")
	}

	header, err := csv.NewReader(bytes.NewReader(data)).Read()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable csv header")
	}
	if missing := lo.Without(required, header...); len(missing) > 0 {
		return invalid("csv must contain columns: %s", strings.Join(missing, ", "))
	}

	if err := gocsv.UnmarshalBytes(data, out); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed csv")
	}
	return nil
}

// IsLabCode reports whether a course code names a lab.
func IsLabCode(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	return len(code) > 1 && strings.HasSuffix(code, models.LabCodeSuffix)
}

// ParseCourses reads a course sheet. Codes ending in L are labs; a lab takes
// two consecutive slots unless its code is listed in standardLabs.
func ParseCourses(r io.Reader, standardLabs []string) ([]Course, error) {
	var rows []CourseRow
	if err := decode(r, courseHeaders, &rows); err != nil {
		return nil, err
	}
	standard := lo.Associate(standardLabs, func(code string) (string, struct{}) {
		return strings.ToUpper(strings.TrimSpace(code)), struct{}{}
	})

	seen := make(map[string]int, len(rows))
	out := make([]Course, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		code := strings.ToUpper(strings.TrimSpace(row.Code))
		if code == "" {
			return nil, invalid("row %d: course code is required", line)
		}
		if prev, dup := seen[code]; dup {
			return nil, invalid("row %d: course %s already defined on row %d", line, code, prev)
		}
		if row.Credits < 0 {
			return nil, invalid("row %d: credits must not be negative", line)
		}
		if row.Sections < 0 {
			return nil, invalid("row %d: sections must not be negative", line)
		}
		seen[code] = line

		course := models.Course{
			ID:       StableID("course", code),
			Code:     code,
			Title:    strings.TrimSpace(row.Title),
			Credits:  row.Credits,
			Kind:     models.CourseKindTheory,
			Duration: models.DurationStandard,
		}
		if IsLabCode(code) {
			course.Kind = models.CourseKindLab
			if _, ok := standard[code]; !ok {
				course.Duration = models.DurationExtended
			}
		}
		out = append(out, Course{Course: course, Sections: row.Sections})
	}
	return out, nil
}

// ParseTeachers reads a teacher sheet. A blank faculty type means permanent.
func ParseTeachers(r io.Reader) ([]models.Teacher, error) {
	var rows []TeacherRow
	if err := decode(r, teacherHeaders, &rows); err != nil {
		return nil, err
	}

	seen := make(map[string]int, len(rows))
	out := make([]models.Teacher, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		initial := strings.ToUpper(strings.TrimSpace(row.Initial))
		if initial == "" {
			return nil, invalid("row %d: teacher initial is required", line)
		}
		if prev, dup := seen[initial]; dup {
			return nil, invalid("row %d: initial %s already defined on row %d", line, initial, prev)
		}
		seen[initial] = line

		faculty := models.FacultyType(strings.ToUpper(strings.TrimSpace(row.FacultyType)))
		switch faculty {
		case "":
			faculty = models.FacultyPermanent
		case models.FacultyPermanent, models.FacultyAdjunct:
		default:
			return nil, invalid("row %d: unknown faculty type %q", line, row.FacultyType)
		}

		out = append(out, models.Teacher{
			ID:          StableID("teacher", initial),
			Initial:     initial,
			Name:        strings.TrimSpace(row.Name),
			Email:       strings.TrimSpace(row.Email),
			FacultyType: faculty,
			Department:  strings.ToUpper(strings.TrimSpace(row.Department)),
		})
	}
	return out, nil
}

// ParseRooms reads a room sheet. Any type other than LAB is a lecture room.
func ParseRooms(r io.Reader) ([]models.Room, error) {
	var rows []RoomRow
	if err := decode(r, roomHeaders, &rows); err != nil {
		return nil, err
	}

	seen := make(map[string]int, len(rows))
	out := make([]models.Room, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		number := strings.TrimSpace(row.RoomNumber)
		if number == "" {
			return nil, invalid("row %d: room number is required", line)
		}
		if prev, dup := seen[number]; dup {
			return nil, invalid("row %d: room %s already defined on row %d", line, number, prev)
		}
		if row.Capacity <= 0 {
			return nil, invalid("row %d: capacity must be positive", line)
		}
		seen[number] = line

		kind := models.RoomKindLecture
		if strings.EqualFold(strings.TrimSpace(row.Type), string(models.RoomKindLab)) {
			kind = models.RoomKindLab
		}
		out = append(out, models.Room{
			ID:         StableID("room", number),
			RoomNumber: number,
			Capacity:   row.Capacity,
			Kind:       kind,
		})
	}
	return out, nil
}

// ParsePreferences reads a course preference sheet without resolving references.
func ParsePreferences(r io.Reader) ([]PreferenceRow, error) {
	var rows []PreferenceRow
	if err := decode(r, preferenceHeaders, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ParseTimings reads a timing preference sheet without resolving references.
func ParseTimings(r io.Reader) ([]TimingRow, error) {
	var rows []TimingRow
	if err := decode(r, timingHeaders, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Sections opens sections 1..n for every parsed course.
func Sections(courses []Course) []models.Section {
	var out []models.Section
	for _, c := range courses {
		for n := 1; n <= c.Sections; n++ {
			out = append(out, models.Section{
				ID:            StableID("section", fmt.Sprintf("%s/%d", c.Code, n)),
				CourseID:      c.ID,
				SectionNumber: n,
			})
		}
	}
	return out
}

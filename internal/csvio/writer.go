package csvio

import (
	"sort"
	"strconv"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	"github.com/noah-isme/timetable-api/pkg/export"
)

// dayRank orders pattern codes and weekday names by their first weekday.
func dayRank(label string) int {
	days, ok := scheduler.ExpandDay(label)
	if !ok || len(days) == 0 {
		return int(scheduler.Saturday) + 1
	}
	return int(days[0])
}

// TimetableRows flattens joined assignments into printable rows ordered by
// course, section, day and slot.
func TimetableRows(details []models.AssignmentDetail) []TimetableRow {
	sorted := append([]models.AssignmentDetail(nil), details...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.CourseCode != b.CourseCode {
			return a.CourseCode < b.CourseCode
		}
		if a.SectionNumber != b.SectionNumber {
			return a.SectionNumber < b.SectionNumber
		}
		if ra, rb := dayRank(a.Day), dayRank(b.Day); ra != rb {
			return ra < rb
		}
		return a.TimeSlot < b.TimeSlot
	})

	rows := make([]TimetableRow, 0, len(sorted))
	for _, d := range sorted {
		rows = append(rows, TimetableRow{
			Course:  d.CourseCode,
			Title:   d.CourseTitle,
			Section: d.SectionNumber,
			Teacher: d.TeacherInitial,
			Room:    d.RoomNumber,
			Day:     d.Day,
			Slot:    d.TimeSlot,
			Time:    scheduler.SlotLabel(d.TimeSlot),
			Score:   d.Score,
		})
	}
	return rows
}

// Dataset converts rows into the generic table used by the PDF renderer.
func Dataset(rows []TimetableRow) export.Dataset {
	data := export.Dataset{Headers: TimetableHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, r := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"Course":  r.Course,
			"Title":   r.Title,
			"Section": strconv.Itoa(r.Section),
			"Teacher": r.Teacher,
			"Room":    r.Room,
			"Day":     r.Day,
			"Slot":    strconv.Itoa(r.Slot),
			"Time":    r.Time,
			"Score":   strconv.FormatFloat(r.Score, 'f', 1, 64),
		})
	}
	return data
}

// Details joins engine output with the snapshot it ran on, matching what the
// database join yields for committed assignments.
func Details(in scheduler.Input, placeholder models.Teacher, assignments []models.Assignment) []models.AssignmentDetail {
	rooms := make(map[string]models.Room, len(in.Rooms))
	for _, r := range in.Rooms {
		rooms[r.ID] = r
	}
	teachers := make(map[string]models.Teacher, len(in.Teachers)+1)
	for _, t := range in.Teachers {
		teachers[t.ID] = t
	}
	teachers[placeholder.ID] = placeholder
	courses := make(map[string]models.Course, len(in.Courses))
	for _, c := range in.Courses {
		courses[c.ID] = c
	}
	sections := make(map[string]models.Section, len(in.Sections))
	for _, s := range in.Sections {
		sections[s.ID] = s
	}

	out := make([]models.AssignmentDetail, 0, len(assignments))
	for _, a := range assignments {
		s := sections[a.SectionID]
		c := courses[s.CourseID]
		out = append(out, models.AssignmentDetail{
			Assignment:     a,
			CourseCode:     c.Code,
			CourseTitle:    c.Title,
			SectionNumber:  s.SectionNumber,
			TeacherInitial: teachers[a.TeacherID].Initial,
			RoomNumber:     rooms[a.RoomID].RoomNumber,
		})
	}
	return out
}

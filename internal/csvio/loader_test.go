package csvio

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

func TestParseCoursesDetectsLabs(t *testing.T) {
	sheet := "Code,Title,Credits,Sections\n" +
		"CSE101,Intro to Computing,3,2\n" +
		"cse101l,Intro Lab,1,2\n" +
		"CSE115L,Programming Lab,1,\n"

	courses, err := ParseCourses(strings.NewReader(sheet), []string{"CSE115L"})
	require.NoError(t, err)
	require.Len(t, courses, 3)

	assert.Equal(t, models.CourseKindTheory, courses[0].Kind)
	assert.Equal(t, models.DurationStandard, courses[0].Duration)
	assert.Equal(t, 2, courses[0].Sections)

	assert.Equal(t, "CSE101L", courses[1].Code)
	assert.Equal(t, models.CourseKindLab, courses[1].Kind)
	assert.Equal(t, models.DurationExtended, courses[1].Duration)
	assert.Equal(t, "CSE101", courses[1].BaseCode())

	assert.Equal(t, models.CourseKindLab, courses[2].Kind)
	assert.Equal(t, models.DurationStandard, courses[2].Duration)
	assert.Equal(t, 0, courses[2].Sections)

	sections := Sections(courses)
	assert.Len(t, sections, 4)
	assert.Equal(t, courses[0].ID, sections[0].CourseID)
	assert.Equal(t, 2, sections[1].SectionNumber)
}

func TestParseCoursesRejectsBadSheets(t *testing.T) {
	cases := map[string]string{
		"missing column": "Code,Title\nCSE101,Intro\n",
		"duplicate code": "Code,Title,Credits\nCSE101,A,3\ncse101,B,3\n",
		"blank code":     "Code,Title,Credits\n,A,3\n",
		"empty file":     "",
	}
	for name, sheet := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCourses(strings.NewReader(sheet), nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrValidation))
		})
	}
}

func TestParseTeachersAndRooms(t *testing.T) {
	teachers, err := ParseTeachers(strings.NewReader("\xef\xbb\xbfInitial,Name,Email,Faculty Type,Department\n" +
		"abc,Alice Brown,abc@example.edu,adjunct,cse\n" +
		"XYZ,Xavier,xyz@example.edu,,\n"))
	require.NoError(t, err)
	require.Len(t, teachers, 2)
	assert.Equal(t, "ABC", teachers[0].Initial)
	assert.True(t, teachers[0].IsAdjunct())
	assert.Equal(t, "CSE", teachers[0].Department)
	assert.Equal(t, models.FacultyPermanent, teachers[1].FacultyType)

	_, err = ParseTeachers(strings.NewReader("Initial,Name,Email,Faculty Type\nABC,A,a@example.edu,visiting\n"))
	assert.Error(t, err)

	rooms, err := ParseRooms(strings.NewReader("Room Number,Capacity,Type\n301,40,Theory\n405,30,lab\n"))
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, models.RoomKindLecture, rooms[0].Kind)
	assert.Equal(t, models.RoomKindLab, rooms[1].Kind)

	_, err = ParseRooms(strings.NewReader("Room Number,Capacity,Type\n301,0,Theory\n"))
	assert.Error(t, err)
}

func TestStableIDIsRepeatable(t *testing.T) {
	assert.Equal(t, StableID("course", "cse101"), StableID("course", " CSE101 "))
	assert.NotEqual(t, StableID("course", "CSE101"), StableID("room", "CSE101"))
}

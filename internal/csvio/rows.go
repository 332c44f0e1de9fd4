package csvio

// CourseRow is one line of a course sheet. Sections is optional.
type CourseRow struct {
	Code     string  `csv:"Code"`
	Title    string  `csv:"Title"`
	Credits  float64 `csv:"Credits"`
	Sections int     `csv:"Sections,omitempty"`
}

// TeacherRow is one line of a teacher sheet. Faculty type and department are optional.
type TeacherRow struct {
	Initial     string `csv:"Initial"`
	Name        string `csv:"Name"`
	Email       string `csv:"Email"`
	FacultyType string `csv:"Faculty Type,omitempty"`
	Department  string `csv:"Department,omitempty"`
}

// RoomRow is one line of a room sheet.
type RoomRow struct {
	RoomNumber string `csv:"Room Number"`
	Capacity   int    `csv:"Capacity"`
	Type       string `csv:"Type"`
}

// PreferenceRow asks for a number of sections of a course on behalf of a teacher.
type PreferenceRow struct {
	Initial  string `csv:"Initial"`
	Course   string `csv:"Course"`
	Sections int    `csv:"Sections"`
	Status   string `csv:"Status,omitempty"`
}

// TimingRow declares a teaching window. Day is a weekday or a pattern code.
type TimingRow struct {
	Initial   string `csv:"Initial"`
	Day       string `csv:"Day"`
	StartTime string `csv:"Start Time"`
	EndTime   string `csv:"End Time"`
}

// TimetableRow is one printable line of a committed timetable.
type TimetableRow struct {
	Course  string  `csv:"Course"`
	Title   string  `csv:"Title"`
	Section int     `csv:"Section"`
	Teacher string  `csv:"Teacher"`
	Room    string  `csv:"Room"`
	Day     string  `csv:"Day"`
	Slot    int     `csv:"Slot"`
	Time    string  `csv:"Time"`
	Score   float64 `csv:"Score"`
}

var (
	courseHeaders     = []string{"Code", "Title", "Credits"}
	teacherHeaders    = []string{"Initial", "Name", "Email"}
	roomHeaders       = []string{"Room Number", "Capacity", "Type"}
	preferenceHeaders = []string{"Initial", "Course", "Sections"}
	timingHeaders     = []string{"Initial", "Day", "Start Time", "End Time"}
)

// TimetableHeaders lists the columns of a TimetableRow in output order.
var TimetableHeaders = []string{"Course", "Title", "Section", "Teacher", "Room", "Day", "Slot", "Time", "Score"}

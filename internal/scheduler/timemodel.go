package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// Day is a weekday. Values follow time.Weekday.
type Day int

const (
	Sunday Day = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var dayNames = [...]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

func (d Day) String() string {
	if d < Sunday || d > Saturday {
		return fmt.Sprintf("Day(%d)", int(d))
	}
	return dayNames[d]
}

// ParseDay resolves a weekday name, case-insensitively.
func ParseDay(name string) (Day, bool) {
	trimmed := strings.TrimSpace(name)
	for i, n := range dayNames {
		if strings.EqualFold(n, trimmed) {
			return Day(i), true
		}
	}
	return 0, false
}

// Day-pattern codes for lectures that meet twice a week.
const (
	PatternST = "ST"
	PatternMW = "MW"
	PatternRA = "RA"
)

// patternDays is the only place a pattern code is tied to its weekdays.
var patternDays = map[string][]Day{
	PatternST: {Sunday, Tuesday},
	PatternMW: {Monday, Wednesday},
	PatternRA: {Thursday, Saturday},
}

var patternOrder = []string{PatternST, PatternMW, PatternRA}

// Friday is left out; it is kept for ad-hoc bookings.
var labDays = []Day{Sunday, Monday, Tuesday, Wednesday, Thursday, Saturday}

// Patterns lists the pattern codes in enumeration order.
func Patterns() []string {
	return append([]string(nil), patternOrder...)
}

// LabDays lists the single days available to extended labs.
func LabDays() []Day {
	return append([]Day(nil), labDays...)
}

// ExpandDay turns a pattern code or weekday name into concrete days.
func ExpandDay(label string) ([]Day, bool) {
	code := strings.ToUpper(strings.TrimSpace(label))
	if days, ok := patternDays[code]; ok {
		return append([]Day(nil), days...), true
	}
	if day, ok := ParseDay(label); ok {
		return []Day{day}, true
	}
	return nil, false
}

// PatternsOn lists the pattern codes that meet on day.
func PatternsOn(day Day) []string {
	var codes []string
	for _, code := range patternOrder {
		for _, d := range patternDays[code] {
			if d == day {
				codes = append(codes, code)
			}
		}
	}
	return codes
}

// SlotInfo describes one entry of the daily slot catalogue.
type SlotInfo struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	start int
	end   int
}

var slotCatalogue = mustSlots([]string{
	"08:00 AM - 09:30 AM",
	"09:40 AM - 11:10 AM",
	"11:20 AM - 12:50 PM",
	"01:00 PM - 02:30 PM",
	"02:40 PM - 04:10 PM",
	"04:20 PM - 05:50 PM",
	"06:00 PM - 07:30 PM",
})

func mustSlots(labels []string) []SlotInfo {
	slots := make([]SlotInfo, 0, len(labels))
	for i, label := range labels {
		parts := strings.SplitN(label, " - ", 2)
		if len(parts) != 2 {
			panic("scheduler: malformed slot label " + label)
		}
		start, err := ParseClock(parts[0])
		if err != nil {
			panic(err)
		}
		end, err := ParseClock(parts[1])
		if err != nil {
			panic(err)
		}
		slots = append(slots, SlotInfo{Index: i + 1, Label: label, start: start, end: end})
	}
	return slots
}

// SlotCount is the number of slots per day.
func SlotCount() int { return len(slotCatalogue) }

// Slot returns the catalogue entry for a 1-based index.
func Slot(index int) (SlotInfo, bool) {
	if index < 1 || index > len(slotCatalogue) {
		return SlotInfo{}, false
	}
	return slotCatalogue[index-1], true
}

// SlotLabel returns the printable time range of a slot.
func SlotLabel(index int) string {
	if info, ok := Slot(index); ok {
		return info.Label
	}
	return fmt.Sprintf("slot %d", index)
}

// ExtendedStartAllowed reports whether a two-slot meeting may begin at index.
// The successor must exist and must not be the last slot of the day.
func ExtendedStartAllowed(index int) bool {
	return index >= 1 && index+1 < len(slotCatalogue)
}

// Span returns the slots covered by a meeting of n slots starting at index,
// or nil when the start is not allowed.
func Span(index, n int) []int {
	switch {
	case n <= 1:
		if _, ok := Slot(index); !ok {
			return nil
		}
		return []int{index}
	case n == 2:
		if !ExtendedStartAllowed(index) {
			return nil
		}
		return []int{index, index + 1}
	default:
		return nil
	}
}

// SlotsWithin lists slots whose start falls inside [start, end). When the
// window is empty it matches the slot beginning exactly at start.
func SlotsWithin(start, end string) ([]int, error) {
	from, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	to, err := ParseClock(end)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, slot := range slotCatalogue {
		if to > from {
			if slot.start >= from && slot.start < to {
				out = append(out, slot.Index)
			}
			continue
		}
		if slot.start == from {
			out = append(out, slot.Index)
		}
	}
	return out, nil
}

var clockLayouts = []string{"3:04 PM", "3:04PM", "15:04"}

// ParseClock converts a clock string to minutes after midnight.
func ParseClock(value string) (int, error) {
	v := strings.ToUpper(strings.TrimSpace(value))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("invalid clock value %q", value)
}

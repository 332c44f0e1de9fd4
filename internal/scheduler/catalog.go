package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/noah-isme/timetable-api/internal/models"
)

// Departments whose teachers also cover general-education courses.
var generalDepartments = map[string]string{
	"GEN":     "GED",
	"GENERAL": "GED",
}

const (
	priorityLab             = 1000
	priorityExtended        = 500
	priorityAdjunctOnly     = 200
	priorityPerAdjunctApply = 10
)

type dayslot struct {
	day  Day
	slot int
}

type teacherProfile struct {
	teacher  models.Teacher
	adjunct  bool
	dept     string
	floor    int
	declared bool
	days     map[Day]struct{}
	cells    map[dayslot]struct{}
}

func (p *teacherProfile) coversDays(days []Day) bool {
	for _, d := range days {
		if _, ok := p.days[d]; !ok {
			return false
		}
	}
	return true
}

func (p *teacherProfile) coversCells(days []Day, slots []int) bool {
	for _, d := range days {
		for _, s := range slots {
			if _, ok := p.cells[dayslot{d, s}]; !ok {
				return false
			}
		}
	}
	return true
}

type groupKey struct {
	base   string
	number int
}

func (k groupKey) String() string { return fmt.Sprintf("%s/%d", k.base, k.number) }

func (k groupKey) link() Resource { return LinkResource(k.base, k.number) }

type quotaKey struct {
	teacherID string
	base      string
}

type member struct {
	section models.Section
	course  models.Course
}

type demandGroup struct {
	key      groupKey
	dept     string
	members  []member
	priority int
}

func (g *demandGroup) sectionIDs() []string {
	return lo.Map(g.members, func(m member, _ int) string { return m.section.ID })
}

type catalog struct {
	rooms        map[models.RoomKind][]models.Room
	teachers     map[string]*teacherProfile
	placeholder  models.Teacher
	synthesized  bool
	courses      map[string]models.Course
	sectionGroup map[string]groupKey
	byDept       map[string][]string
	applicants   map[string][]string
	quotas       map[quotaKey]int
}

// PlaceholderID derives a stable id for a synthesized placeholder teacher.
func PlaceholderID(initial string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("timetable-placeholder:"+strings.ToUpper(initial))).String()
}

func newCatalog(in Input, policy Policy) *catalog {
	c := &catalog{
		rooms:        make(map[models.RoomKind][]models.Room),
		teachers:     make(map[string]*teacherProfile),
		courses:      make(map[string]models.Course, len(in.Courses)),
		sectionGroup: make(map[string]groupKey, len(in.Sections)),
		byDept:       make(map[string][]string),
		applicants:   make(map[string][]string),
		quotas:       make(map[quotaKey]int),
	}

	rooms := append([]models.Room(nil), in.Rooms...)
	sort.SliceStable(rooms, func(i, j int) bool {
		if rooms[i].RoomNumber != rooms[j].RoomNumber {
			return rooms[i].RoomNumber < rooms[j].RoomNumber
		}
		return rooms[i].ID < rooms[j].ID
	})
	for _, r := range rooms {
		c.rooms[r.Kind] = append(c.rooms[r.Kind], r)
	}

	for _, t := range in.Teachers {
		if strings.EqualFold(strings.TrimSpace(t.Initial), policy.PlaceholderInitial) {
			c.placeholder = t
			continue
		}
		dept := strings.ToUpper(strings.TrimSpace(t.Department))
		c.teachers[t.ID] = &teacherProfile{
			teacher: t,
			adjunct: t.IsAdjunct(),
			dept:    dept,
			floor:   policy.FloorFor(dept),
			days:    make(map[Day]struct{}),
			cells:   make(map[dayslot]struct{}),
		}
	}
	if c.placeholder.ID == "" {
		c.placeholder = models.Teacher{
			ID:          PlaceholderID(policy.PlaceholderInitial),
			Initial:     policy.PlaceholderInitial,
			Name:        "To Be Announced",
			FacultyType: models.FacultyPermanent,
		}
		c.synthesized = true
	}

	for _, id := range sortedKeys(c.teachers) {
		p := c.teachers[id]
		if p.adjunct || p.dept == "" {
			continue
		}
		c.byDept[p.dept] = append(c.byDept[p.dept], id)
		if alias, ok := generalDepartments[p.dept]; ok {
			c.byDept[alias] = append(c.byDept[alias], id)
		}
	}

	for _, tp := range in.Timings {
		p, ok := c.teachers[tp.TeacherID]
		if !ok {
			continue
		}
		days, _ := ExpandDay(tp.Day)
		slots, _ := SlotsWithin(tp.StartTime, tp.EndTime)
		p.declared = true
		for _, d := range days {
			p.days[d] = struct{}{}
			for _, s := range slots {
				p.cells[dayslot{d, s}] = struct{}{}
			}
		}
	}

	for _, course := range in.Courses {
		c.courses[course.ID] = course
	}
	for _, s := range in.Sections {
		course := c.courses[s.CourseID]
		c.sectionGroup[s.ID] = groupKey{base: course.BaseCode(), number: s.SectionNumber}
	}

	requested := make(map[quotaKey]int)
	for _, p := range in.Preferences {
		if !p.Status.Counts() {
			continue
		}
		if _, ok := c.teachers[p.TeacherID]; !ok {
			continue
		}
		key := quotaKey{teacherID: p.TeacherID, base: c.courses[p.CourseID].BaseCode()}
		if n, seen := requested[key]; !seen || p.SectionCount > n {
			requested[key] = p.SectionCount
		}
	}
	for key, n := range requested {
		if n == 0 {
			n = policy.DefaultQuota
		}
		c.quotas[key] = n
		c.applicants[key.base] = append(c.applicants[key.base], key.teacherID)
	}
	for base := range c.applicants {
		sort.Strings(c.applicants[base])
	}
	return c
}

// requestedQuota sums every quota a teacher holds.
func (c *catalog) requestedQuota(teacherID string) int {
	total := 0
	for key, n := range c.quotas {
		if key.teacherID == teacherID {
			total += n
		}
	}
	return total
}

// groups bundles sections into link groups ordered most constrained first.
func (c *catalog) groups(sections []models.Section) []*demandGroup {
	byKey := lo.GroupBy(sections, func(s models.Section) groupKey { return c.sectionGroup[s.ID] })
	out := make([]*demandGroup, 0, len(byKey))
	for key, secs := range byKey {
		g := &demandGroup{key: key}
		for _, s := range secs {
			g.members = append(g.members, member{section: s, course: c.courses[s.CourseID]})
		}
		sort.SliceStable(g.members, func(i, j int) bool {
			a, b := g.members[i], g.members[j]
			if a.course.Kind != b.course.Kind {
				return a.course.Kind == models.CourseKindTheory
			}
			if a.course.Code != b.course.Code {
				return a.course.Code < b.course.Code
			}
			return a.section.ID < b.section.ID
		})
		g.dept = g.members[0].course.Department()
		g.priority = c.priority(g)
		out = append(out, g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority > out[j].priority
		}
		if out[i].key.base != out[j].key.base {
			return out[i].key.base < out[j].key.base
		}
		return out[i].key.number < out[j].key.number
	})
	return out
}

func (c *catalog) priority(g *demandGroup) int {
	score := 0
	for _, m := range g.members {
		if m.course.Kind == models.CourseKindLab {
			score += priorityLab
		}
		if m.course.Duration == models.DurationExtended {
			score += priorityExtended
		}
	}
	applicants := c.applicants[g.key.base]
	adjuncts := lo.CountBy(applicants, func(id string) bool { return c.teachers[id].adjunct })
	if adjuncts > 0 && adjuncts == len(applicants) {
		score += priorityAdjunctOnly
	}
	return score + adjuncts*priorityPerAdjunctApply
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

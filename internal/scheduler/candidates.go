package scheduler

import (
	"sort"

	"github.com/noah-isme/timetable-api/internal/models"
)

type candidate struct {
	teacherID string
	tier      Tier
	load      int
}

// option is one legal placement of a single section.
type option struct {
	room  models.Room
	label string
	days  []Day
	slots []int
	score float64
	usage int
	order int
}

func (o option) overlaps(other option) bool {
	for _, d := range o.days {
		for _, od := range other.days {
			if d != od {
				continue
			}
			for _, s := range o.slots {
				for _, s2 := range other.slots {
					if s == s2 {
						return true
					}
				}
			}
		}
	}
	return false
}

type placementLabel struct {
	name string
	days []Day
}

// candidates returns real teachers for a group in tier order. Each tier is
// shuffled with the run generator and then ordered by ascending load. The
// teacher already holding part of the group comes first.
func (r *run) candidates(g *demandGroup) []candidate {
	base := g.key.base
	var preferred, rescue, fallback []candidate
	applied := make(map[string]struct{})
	var owner []candidate
	if id, ok := r.owners[g.key]; ok {
		if _, known := r.cat.teachers[id]; known {
			owner = append(owner, candidate{teacherID: id, tier: TierPreferred, load: r.load[id]})
			applied[id] = struct{}{}
		}
	}
	for _, id := range r.cat.applicants[base] {
		if _, ok := applied[id]; ok {
			continue
		}
		applied[id] = struct{}{}
		key := quotaKey{teacherID: id, base: base}
		if r.quotaUsed[key] >= r.cat.quotas[key] {
			continue
		}
		preferred = append(preferred, candidate{teacherID: id, tier: TierPreferred, load: r.load[id]})
	}
	for _, id := range r.cat.byDept[g.dept] {
		if _, ok := applied[id]; ok {
			continue
		}
		load := r.load[id]
		switch {
		case load < r.policy.RescueLoadCeiling:
			rescue = append(rescue, candidate{teacherID: id, tier: TierRescue, load: load})
		case load < r.policy.FallbackLoadCeiling:
			fallback = append(fallback, candidate{teacherID: id, tier: TierFallback, load: load})
		}
	}
	out := make([]candidate, 0, len(owner)+len(preferred)+len(rescue)+len(fallback))
	out = append(out, owner...)
	out = append(out, r.order(preferred)...)
	out = append(out, r.order(rescue)...)
	out = append(out, r.order(fallback)...)
	return out
}

func (r *run) order(list []candidate) []candidate {
	r.rng.Shuffle(len(list), func(i, j int) { list[i], list[j] = list[j], list[i] })
	sort.SliceStable(list, func(i, j int) bool { return list[i].load < list[j].load })
	return list
}

func (r *run) labelsFor(course models.Course) []placementLabel {
	var labels []placementLabel
	if course.Kind == models.CourseKindLab && course.Duration == models.DurationExtended {
		for _, d := range labDays {
			labels = append(labels, placementLabel{name: d.String(), days: []Day{d}})
		}
	} else {
		for _, code := range patternOrder {
			labels = append(labels, placementLabel{name: code, days: patternDays[code]})
		}
	}
	sort.SliceStable(labels, func(i, j int) bool { return r.usage[labels[i].name] < r.usage[labels[j].name] })
	return labels
}

// options enumerates legal placements of one section for a candidate, best
// first. A nil profile means the placeholder teacher.
func (r *run) options(g *demandGroup, m member, c candidate, prof *teacherProfile) []option {
	rooms := r.cat.rooms[m.course.RequiredRoomKind()]
	if len(rooms) == 0 {
		return nil
	}
	fixed := []Resource{g.key.link()}
	if prof != nil {
		fixed = append(fixed, TeacherResource(c.teacherID))
	}
	span := m.course.SlotSpan()

	var out []option
	for _, l := range r.labelsFor(m.course) {
		if prof != nil && prof.adjunct && !prof.coversDays(l.days) {
			continue
		}
		for start := 1; start <= SlotCount(); start++ {
			slots := Span(start, span)
			if slots == nil || !r.tracker.Available(fixed, l.days, slots) {
				continue
			}
			room, ok := r.pickRoom(rooms, l.days, slots, prof)
			if !ok {
				continue
			}
			out = append(out, option{
				room:  room,
				label: l.name,
				days:  l.days,
				slots: slots,
				score: r.score(c, prof, room, l.days, slots),
				usage: r.usage[l.name],
				order: len(out),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if out[i].usage != out[j].usage {
			return out[i].usage < out[j].usage
		}
		return out[i].order < out[j].order
	})
	return out
}

// pickRoom takes the first free room, preferring one on the teacher's home floor.
func (r *run) pickRoom(rooms []models.Room, days []Day, slots []int, prof *teacherProfile) (models.Room, bool) {
	var first *models.Room
	for i := range rooms {
		if !r.tracker.Available([]Resource{RoomResource(rooms[i].ID)}, days, slots) {
			continue
		}
		if prof != nil && prof.floor != 0 && rooms[i].Floor() == prof.floor {
			return rooms[i], true
		}
		if first == nil {
			first = &rooms[i]
		}
	}
	if first == nil {
		return models.Room{}, false
	}
	return *first, true
}

func (r *run) score(c candidate, prof *teacherProfile, room models.Room, days []Day, slots []int) float64 {
	if prof == nil {
		return r.policy.PlaceholderScore
	}
	s := r.policy.BaseScore
	if prof.declared {
		if !prof.coversDays(days) {
			s -= r.policy.DayMismatchPenalty
		} else if !prof.coversCells(days, slots) {
			s -= r.policy.SlotMismatchPenalty
		}
	}
	s -= r.policy.tierPenalty(c.tier)
	if prof.floor != 0 && room.Floor() == prof.floor {
		s += r.policy.BuildingBonus
	}
	return s
}

type plan struct {
	candidate candidate
	options   []option
	score     float64
}

// plan finds the best joint placement of a group for one candidate.
func (r *run) plan(g *demandGroup, c candidate) (plan, bool) {
	var prof *teacherProfile
	if c.tier != TierPlaceholder {
		prof = r.cat.teachers[c.teacherID]
	}
	lists := make([][]option, 0, len(g.members))
	for _, m := range g.members {
		opts := r.options(g, m, c, prof)
		if len(opts) == 0 {
			return plan{}, false
		}
		lists = append(lists, opts)
	}
	chosen, ok := combine(lists, r.policy.PairSearchDepth)
	if !ok {
		return plan{}, false
	}
	p := plan{candidate: c, options: chosen}
	for _, o := range chosen {
		p.score += o.score
	}
	return p, true
}

// combine walks the product of ranked option lists and returns the first
// combination whose members do not overlap. depth caps how many options of
// each list are tried; zero means all.
func combine(lists [][]option, depth int) ([]option, bool) {
	chosen := make([]option, 0, len(lists))
	var walk func(i int) bool
	walk = func(i int) bool {
		if i == len(lists) {
			return true
		}
		limit := len(lists[i])
		if depth > 0 && depth < limit {
			limit = depth
		}
		for _, o := range lists[i][:limit] {
			clash := false
			for _, prev := range chosen {
				if o.overlaps(prev) {
					clash = true
					break
				}
			}
			if clash {
				continue
			}
			chosen = append(chosen, o)
			if walk(i + 1) {
				return true
			}
			chosen = chosen[:len(chosen)-1]
		}
		return false
	}
	if !walk(0) {
		return nil, false
	}
	return chosen, true
}

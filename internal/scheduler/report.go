package scheduler

import (
	"math"
	"sort"

	"github.com/samber/lo"
)

// TeacherQuality scores how well a teacher's requests were met.
type TeacherQuality struct {
	TeacherID      string  `json:"teacher_id"`
	Initial        string  `json:"initial"`
	RequestedQuota int     `json:"requested_quota"`
	AssignedGroups int     `json:"assigned_groups"`
	Achieved       float64 `json:"achieved"`
	Score          float64 `json:"score"`
}

// Report summarises a run.
type Report struct {
	RunID   string `json:"run_id"`
	Seed    int64  `json:"seed"`
	Rebuild bool   `json:"rebuild"`

	TotalGroups       int `json:"total_groups"`
	ScheduledGroups   int `json:"scheduled_groups"`
	PlaceholderGroups int `json:"placeholder_groups"`
	PendingGroups     int `json:"pending_groups"`

	TotalSections       int `json:"total_sections"`
	ScheduledSections   int `json:"scheduled_sections"`
	PlaceholderSections int `json:"placeholder_sections"`
	PendingSections     int `json:"pending_sections"`
	AssignmentRecords   int `json:"assignment_records"`

	TierCounts map[string]int `json:"tier_counts"`

	OverallQuality  float64          `json:"overall_quality"`
	MinQuality      float64          `json:"min_quality"`
	QualityVariance float64          `json:"quality_variance"`
	Teachers        []TeacherQuality `json:"teachers"`
}

// Unscheduled is the number of sections left without a placement.
func (r Report) Unscheduled() int { return r.PendingSections }

// Teacher looks up the quality entry of one teacher.
func (r Report) Teacher(id string) (TeacherQuality, bool) {
	return lo.Find(r.Teachers, func(t TeacherQuality) bool { return t.TeacherID == id })
}

func clamp(v, floor, ceil float64) float64 {
	return math.Max(floor, math.Min(ceil, v))
}

func (r *run) report(result *Result) Report {
	rep := Report{
		RunID:             result.RunID,
		Seed:              result.Seed,
		Rebuild:           result.Rebuild,
		TierCounts:        make(map[string]int),
		AssignmentRecords: len(result.Assignments),
	}
	best := r.policy.MaxAssignmentScore()
	achieved := make(map[string]float64)
	assigned := make(map[string]int)

	for _, tg := range r.priorGroups() {
		scores := r.prior[tg]
		values := lo.Map(sortedKeys(scores), func(id string, _ int) float64 { return scores[id] })
		mean := lo.Sum(values) / float64(len(values))
		achieved[tg.teacherID] += clamp(mean, 0, best)
		assigned[tg.teacherID]++
	}

	for _, g := range result.Groups {
		n := len(g.SectionIDs)
		rep.TotalGroups++
		rep.TotalSections += n
		switch g.State {
		case GroupScheduled:
			rep.ScheduledGroups++
			rep.ScheduledSections += n
			rep.TierCounts[g.Tier.String()]++
			if _, seeded := r.prior[teacherGroup{teacherID: g.TeacherID, key: groupKey{base: g.BaseCode, number: g.SectionNumber}}]; seeded {
				continue
			}
			achieved[g.TeacherID] += clamp(g.Score/float64(n), 0, best)
			assigned[g.TeacherID]++
		case GroupUnassigned:
			rep.PlaceholderGroups++
			rep.PlaceholderSections += n
			rep.TierCounts[TierPlaceholder.String()]++
		default:
			rep.PendingGroups++
			rep.PendingSections += n
		}
	}

	for _, id := range sortedKeys(r.cat.teachers) {
		requested := r.cat.requestedQuota(id)
		groups := assigned[id]
		if requested == 0 && groups == 0 {
			continue
		}
		denom := float64(max(requested, groups)) * best
		score := 0.0
		if denom > 0 {
			score = clamp(achieved[id]/denom*100, 0, 100)
		}
		rep.Teachers = append(rep.Teachers, TeacherQuality{
			TeacherID:      id,
			Initial:        r.cat.teachers[id].teacher.Initial,
			RequestedQuota: requested,
			AssignedGroups: groups,
			Achieved:       achieved[id],
			Score:          score,
		})
	}

	if len(rep.Teachers) > 0 {
		scores := lo.Map(rep.Teachers, func(t TeacherQuality, _ int) float64 { return t.Score })
		mean := lo.Sum(scores) / float64(len(scores))
		rep.OverallQuality = mean
		rep.MinQuality = lo.Min(scores)
		rep.QualityVariance = lo.SumBy(scores, func(s float64) float64 { return (s - mean) * (s - mean) }) / float64(len(scores))
	}
	return rep
}

// priorGroups lists seeded teacher groups in a fixed order so float sums
// come out identical across runs.
func (r *run) priorGroups() []teacherGroup {
	keys := lo.Keys(r.prior)
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.teacherID != b.teacherID {
			return a.teacherID < b.teacherID
		}
		if a.key.base != b.key.base {
			return a.key.base < b.key.base
		}
		return a.key.number < b.key.number
	})
	return keys
}

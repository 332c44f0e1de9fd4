package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// GroupState is the lifecycle position of a link group within a run.
type GroupState string

const (
	GroupPending    GroupState = "PENDING"
	GroupScheduled  GroupState = "SCHEDULED"
	GroupUnassigned GroupState = "UNASSIGNED"
)

// GroupOutcome records how one link group ended up.
type GroupOutcome struct {
	BaseCode      string     `json:"base_code"`
	SectionNumber int        `json:"section_number"`
	SectionIDs    []string   `json:"section_ids"`
	State         GroupState `json:"state"`
	TeacherID     string     `json:"teacher_id,omitempty"`
	Tier          Tier       `json:"tier"`
	Score         float64    `json:"score"`
}

// SectionTeacher is a section to teacher binding produced by a run.
type SectionTeacher struct {
	SectionID string `json:"section_id"`
	TeacherID string `json:"teacher_id"`
}

// Result is everything a run produced. Nothing has been persisted yet.
type Result struct {
	RunID                  string              `json:"run_id"`
	Seed                   int64               `json:"seed"`
	Rebuild                bool                `json:"rebuild"`
	Placeholder            models.Teacher      `json:"placeholder"`
	PlaceholderSynthesized bool                `json:"placeholder_synthesized"`
	Assignments            []models.Assignment `json:"assignments"`
	SectionTeachers        []SectionTeacher    `json:"section_teachers"`
	Groups                 []GroupOutcome      `json:"groups"`
	Report                 Report              `json:"report"`
}

// Engine places course sections into rooms and time slots.
type Engine struct {
	policy   Policy
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine builds an engine for the given policy.
func NewEngine(policy Policy, validate *validator.Validate, logger *zap.Logger) *Engine {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		policy:   policy.withDefaults(),
		validate: validate,
		logger:   logger,
		now:      time.Now,
	}
}

// Policy returns the effective policy after defaults.
func (e *Engine) Policy() Policy { return e.policy }

// run is the mutable state of a single invocation.
type run struct {
	id        string
	cat       *catalog
	policy    Policy
	tracker   *Tracker
	rng       *rand.Rand
	load      map[string]int
	quotaUsed map[quotaKey]int
	usage     map[string]int
	prior     map[teacherGroup]map[string]float64
	owners    map[groupKey]string
	logger    *zap.Logger
}

type teacherGroup struct {
	teacherID string
	key       groupKey
}

// Run executes one scheduling pass. Invalid input fails before any work is
// done; unplaceable groups are reported rather than returned as errors. A
// cancelled context aborts the run and discards everything.
func (e *Engine) Run(ctx context.Context, in Input, opts Options) (*Result, error) {
	if err := in.validate(e.validate, opts); err != nil {
		return nil, err
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	started := e.now()
	cat := newCatalog(in, e.policy)
	r := &run{
		id:        opts.RunID,
		cat:       cat,
		policy:    e.policy,
		tracker:   NewTracker(),
		rng:       rand.New(rand.NewSource(opts.Seed)),
		load:      make(map[string]int),
		quotaUsed: make(map[quotaKey]int),
		usage:     make(map[string]int),
		prior:     make(map[teacherGroup]map[string]float64),
		owners:    make(map[groupKey]string),
		logger:    e.logger.With(zap.String("run_id", opts.RunID)),
	}

	pending := in.Sections
	if !opts.Rebuild {
		pending = r.seed(in.Existing, in.Sections)
	}
	groups := cat.groups(pending)

	result := &Result{
		RunID:                  opts.RunID,
		Seed:                   opts.Seed,
		Rebuild:                opts.Rebuild,
		Placeholder:            cat.placeholder,
		PlaceholderSynthesized: cat.synthesized,
	}
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "scheduling run aborted")
		}
		outcome, err := r.place(g, result, started)
		if err != nil {
			return nil, err
		}
		result.Groups = append(result.Groups, outcome)
	}
	sort.SliceStable(result.SectionTeachers, func(i, j int) bool {
		return result.SectionTeachers[i].SectionID < result.SectionTeachers[j].SectionID
	})
	result.Report = r.report(result)

	r.logger.Info("scheduling run finished",
		zap.Int("groups", result.Report.TotalGroups),
		zap.Int("scheduled", result.Report.ScheduledGroups),
		zap.Int("placeholder", result.Report.PlaceholderGroups),
		zap.Int("pending", result.Report.PendingGroups),
		zap.Float64("quality", result.Report.OverallQuality),
		zap.Duration("elapsed", e.now().Sub(started)),
	)
	return result, nil
}

// seed replays existing assignments into the tracker and counters and
// returns the sections that still need a placement.
func (r *run) seed(existing []models.Assignment, sections []models.Section) []models.Section {
	placed := make(map[string]struct{})
	labelled := make(map[string]struct{})
	for _, a := range existing {
		key := r.cat.sectionGroup[a.SectionID]
		days, _ := ExpandDay(a.Day)
		resources := []Resource{RoomResource(a.RoomID), key.link()}
		tracked := a.TeacherID != r.cat.placeholder.ID
		if tracked {
			resources = append(resources, TeacherResource(a.TeacherID))
		}
		for _, res := range resources {
			for _, d := range days {
				r.tracker.Occupy(res, d, a.TimeSlot)
			}
		}
		placed[a.SectionID] = struct{}{}
		if _, ok := labelled[a.SectionID+"|"+a.Day]; !ok {
			labelled[a.SectionID+"|"+a.Day] = struct{}{}
			r.usage[a.Day]++
		}
		if !tracked {
			continue
		}
		if _, owned := r.owners[key]; !owned {
			r.owners[key] = a.TeacherID
		}
		tg := teacherGroup{teacherID: a.TeacherID, key: key}
		scores, ok := r.prior[tg]
		if !ok {
			scores = make(map[string]float64)
			r.prior[tg] = scores
			r.load[a.TeacherID]++
			r.quotaUsed[quotaKey{teacherID: a.TeacherID, base: key.base}]++
		}
		if s, seen := scores[a.SectionID]; !seen || a.Score > s {
			scores[a.SectionID] = a.Score
		}
	}

	var pending []models.Section
	for _, s := range sections {
		if _, ok := placed[s.ID]; !ok {
			pending = append(pending, s)
		}
	}
	return pending
}

// place tries every real candidate in order and falls back to the placeholder.
func (r *run) place(g *demandGroup, result *Result, started time.Time) (GroupOutcome, error) {
	outcome := GroupOutcome{
		BaseCode:      g.key.base,
		SectionNumber: g.key.number,
		SectionIDs:    g.sectionIDs(),
		State:         GroupPending,
	}
	var chosen *plan
	for _, c := range r.candidates(g) {
		if p, ok := r.plan(g, c); ok {
			chosen = &p
			break
		}
	}
	if chosen == nil {
		if p, ok := r.plan(g, candidate{teacherID: r.cat.placeholder.ID, tier: TierPlaceholder}); ok {
			chosen = &p
		}
	}
	if chosen == nil {
		r.logger.Warn("group left unscheduled", zap.String("group", g.key.String()))
		return outcome, nil
	}
	if err := r.commit(g, *chosen, result, started); err != nil {
		return outcome, err
	}
	outcome.TeacherID = chosen.candidate.teacherID
	outcome.Tier = chosen.candidate.tier
	outcome.Score = chosen.score
	outcome.State = GroupScheduled
	if chosen.candidate.tier == TierPlaceholder {
		outcome.State = GroupUnassigned
	}
	r.logger.Debug("group placed",
		zap.String("group", g.key.String()),
		zap.String("tier", chosen.candidate.tier.String()),
		zap.String("teacher_id", chosen.candidate.teacherID),
		zap.Float64("score", chosen.score),
	)
	return outcome, nil
}

func (r *run) commit(g *demandGroup, p plan, result *Result, started time.Time) error {
	tracked := p.candidate.tier != TierPlaceholder
	reservations := make([]Reservation, 0, len(g.members))
	for i := range g.members {
		o := p.options[i]
		resources := []Resource{RoomResource(o.room.ID), g.key.link()}
		if tracked {
			resources = append(resources, TeacherResource(p.candidate.teacherID))
		}
		reservations = append(reservations, Reservation{Resources: resources, Days: o.days, Slots: o.slots})
	}
	if !r.tracker.Reserve(reservations...) {
		return appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("placement for %s collided during commit", g.key))
	}

	for i, m := range g.members {
		o := p.options[i]
		for _, slot := range o.slots {
			result.Assignments = append(result.Assignments, models.Assignment{
				ID:        uuid.NewString(),
				RunID:     r.id,
				SectionID: m.section.ID,
				RoomID:    o.room.ID,
				TeacherID: p.candidate.teacherID,
				Day:       o.label,
				TimeSlot:  slot,
				Score:     o.score,
				CreatedAt: started,
			})
		}
		result.SectionTeachers = append(result.SectionTeachers, SectionTeacher{SectionID: m.section.ID, TeacherID: p.candidate.teacherID})
		r.usage[o.label]++
	}
	if !tracked {
		return nil
	}
	// A group whose other half was seeded is already counted against load
	// and quota; its new sections join the seeded scores instead.
	if scores, ok := r.prior[teacherGroup{teacherID: p.candidate.teacherID, key: g.key}]; ok {
		for i, m := range g.members {
			scores[m.section.ID] = p.options[i].score
		}
		return nil
	}
	r.load[p.candidate.teacherID]++
	key := quotaKey{teacherID: p.candidate.teacherID, base: g.key.base}
	if _, ok := r.cat.quotas[key]; ok {
		r.quotaUsed[key]++
	}
	return nil
}

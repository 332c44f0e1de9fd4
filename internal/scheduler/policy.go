package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Policy holds the scoring and eligibility constants of a run.
type Policy struct {
	BaseScore           float64        `json:"base_score"`
	DayMismatchPenalty  float64        `json:"day_mismatch_penalty"`
	SlotMismatchPenalty float64        `json:"slot_mismatch_penalty"`
	RescuePenalty       float64        `json:"rescue_penalty"`
	FallbackPenalty     float64        `json:"fallback_penalty"`
	BuildingBonus       float64        `json:"building_bonus"`
	PlaceholderScore    float64        `json:"placeholder_score"`
	RescueLoadCeiling   int            `json:"rescue_load_ceiling"`
	FallbackLoadCeiling int            `json:"fallback_load_ceiling"`
	DefaultQuota        int            `json:"default_quota"`
	PairSearchDepth     int            `json:"pair_search_depth"`
	PlaceholderInitial  string         `json:"placeholder_initial"`
	DepartmentFloors    map[string]int `json:"department_floors"`
}

// DefaultPolicy returns the production scoring constants.
func DefaultPolicy() Policy {
	return Policy{
		BaseScore:           100,
		DayMismatchPenalty:  25,
		SlotMismatchPenalty: 10,
		RescuePenalty:       30,
		FallbackPenalty:     50,
		BuildingBonus:       5,
		PlaceholderScore:    -100000,
		RescueLoadCeiling:   2,
		FallbackLoadCeiling: 4,
		DefaultQuota:        4,
		PlaceholderInitial:  "TBA",
		DepartmentFloors: map[string]int{
			"CSE": 3,
			"EEE": 4,
			"BBA": 2,
			"ENG": 5,
		},
	}
}

// withDefaults fills unset fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.BaseScore == 0 {
		p.BaseScore = def.BaseScore
	}
	if p.PlaceholderScore == 0 {
		p.PlaceholderScore = def.PlaceholderScore
	}
	if p.RescueLoadCeiling <= 0 {
		p.RescueLoadCeiling = def.RescueLoadCeiling
	}
	if p.FallbackLoadCeiling <= 0 {
		p.FallbackLoadCeiling = def.FallbackLoadCeiling
	}
	if p.FallbackLoadCeiling < p.RescueLoadCeiling {
		p.FallbackLoadCeiling = p.RescueLoadCeiling
	}
	if p.DefaultQuota <= 0 {
		p.DefaultQuota = def.DefaultQuota
	}
	if p.PairSearchDepth < 0 {
		p.PairSearchDepth = 0
	}
	p.PlaceholderInitial = strings.TrimSpace(p.PlaceholderInitial)
	if p.PlaceholderInitial == "" {
		p.PlaceholderInitial = def.PlaceholderInitial
	}
	if p.DepartmentFloors == nil {
		p.DepartmentFloors = def.DepartmentFloors
	}
	return p
}

// MaxAssignmentScore is the best score a single real placement can reach.
func (p Policy) MaxAssignmentScore() float64 {
	return p.BaseScore + p.BuildingBonus
}

// FloorFor returns the home floor of a department, or zero if none.
func (p Policy) FloorFor(department string) int {
	return p.DepartmentFloors[strings.ToUpper(strings.TrimSpace(department))]
}

// ParseDepartmentFloors parses "CSE:3,EEE:4" into a floor map.
func ParseDepartmentFloors(raw string) (map[string]int, error) {
	floors := make(map[string]int)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dept, floor, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid department floor %q", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(floor))
		if err != nil {
			return nil, fmt.Errorf("invalid floor for %s: %w", dept, err)
		}
		floors[strings.ToUpper(strings.TrimSpace(dept))] = n
	}
	return floors, nil
}

// FormatDepartmentFloors is the inverse of ParseDepartmentFloors.
func FormatDepartmentFloors(floors map[string]int) string {
	keys := make([]string, 0, len(floors))
	for k := range floors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, floors[k]))
	}
	return strings.Join(parts, ",")
}

// Tier ranks how a teacher became eligible for a group. Higher is better.
type Tier int

const (
	TierPlaceholder Tier = iota
	TierFallback
	TierRescue
	TierPreferred
)

func (t Tier) String() string {
	switch t {
	case TierPreferred:
		return "PREFERRED"
	case TierRescue:
		return "RESCUE"
	case TierFallback:
		return "FALLBACK"
	default:
		return "PLACEHOLDER"
	}
}

// MarshalText renders the tier name in JSON output.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a tier name.
func (t *Tier) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "PREFERRED":
		*t = TierPreferred
	case "RESCUE":
		*t = TierRescue
	case "FALLBACK":
		*t = TierFallback
	case "PLACEHOLDER", "":
		*t = TierPlaceholder
	default:
		return fmt.Errorf("unknown tier %q", text)
	}
	return nil
}

func (p Policy) tierPenalty(t Tier) float64 {
	switch t {
	case TierRescue:
		return p.RescuePenalty
	case TierFallback:
		return p.FallbackPenalty
	default:
		return 0
	}
}

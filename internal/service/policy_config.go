package service

import (
	"fmt"

	"github.com/noah-isme/timetable-api/internal/scheduler"
	"github.com/noah-isme/timetable-api/pkg/config"
)

// PolicyFromConfig maps scheduler settings onto an engine policy. Zero values
// fall back to the engine defaults when the engine is built.
func PolicyFromConfig(cfg config.PolicyConfig) (scheduler.Policy, error) {
	policy := scheduler.Policy{
		BaseScore:           cfg.BaseScore,
		DayMismatchPenalty:  cfg.DayPenalty,
		SlotMismatchPenalty: cfg.SlotPenalty,
		RescuePenalty:       cfg.RescuePenalty,
		FallbackPenalty:     cfg.FallbackPenalty,
		BuildingBonus:       cfg.BuildingBonus,
		PlaceholderScore:    cfg.PlaceholderScore,
		RescueLoadCeiling:   cfg.RescueLoadCeiling,
		FallbackLoadCeiling: cfg.FallbackLoadCeiling,
		DefaultQuota:        cfg.DefaultQuota,
		PairSearchDepth:     cfg.PairSearchDepth,
		PlaceholderInitial:  cfg.PlaceholderInitial,
	}
	if cfg.DepartmentFloors != "" {
		floors, err := scheduler.ParseDepartmentFloors(cfg.DepartmentFloors)
		if err != nil {
			return scheduler.Policy{}, fmt.Errorf("SCHEDULER_DEPARTMENT_FLOORS: %w", err)
		}
		policy.DepartmentFloors = floors
	}
	return policy, nil
}

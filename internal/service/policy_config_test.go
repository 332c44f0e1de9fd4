package service

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/scheduler"
	"github.com/noah-isme/timetable-api/pkg/config"
)

func TestPolicyFromConfig(t *testing.T) {
	policy, err := PolicyFromConfig(config.PolicyConfig{
		BaseScore:          120,
		DayPenalty:         30,
		PlaceholderInitial: "NA",
		DepartmentFloors:   "cse:6",
	})
	require.NoError(t, err)
	assert.Equal(t, 120.0, policy.BaseScore)
	assert.Equal(t, 30.0, policy.DayMismatchPenalty)
	assert.Equal(t, map[string]int{"CSE": 6}, policy.DepartmentFloors)

	effective := scheduler.NewEngine(policy, validator.New(), nil).Policy()
	assert.Equal(t, "NA", effective.PlaceholderInitial)
	assert.Equal(t, scheduler.DefaultPolicy().DefaultQuota, effective.DefaultQuota)
	assert.Equal(t, 6, effective.FloorFor("CSE"))

	_, err = PolicyFromConfig(config.PolicyConfig{DepartmentFloors: "CSE"})
	assert.Error(t, err)
}

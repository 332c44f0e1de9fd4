package scheduler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyWithDefaultsFillsZeroValues(t *testing.T) {
	p := Policy{BuildingBonus: 7}.withDefaults()
	def := DefaultPolicy()

	assert.Equal(t, def.BaseScore, p.BaseScore)
	assert.Equal(t, def.PlaceholderScore, p.PlaceholderScore)
	assert.Equal(t, def.DefaultQuota, p.DefaultQuota)
	assert.Equal(t, "TBA", p.PlaceholderInitial)
	assert.Equal(t, 7.0, p.BuildingBonus)
	assert.Equal(t, 3, p.FloorFor("cse"))
}

func TestPolicyOrderingOfPenalties(t *testing.T) {
	p := DefaultPolicy()
	assert.Greater(t, p.DayMismatchPenalty, p.SlotMismatchPenalty)
	assert.Greater(t, p.FallbackPenalty, p.RescuePenalty)
	assert.Less(t, p.PlaceholderScore, p.BaseScore-p.DayMismatchPenalty-p.FallbackPenalty)
}

func TestDepartmentFloorsRoundTrip(t *testing.T) {
	floors, err := ParseDepartmentFloors("cse:3, EEE:4,,BBA:2")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"CSE": 3, "EEE": 4, "BBA": 2}, floors)
	assert.Equal(t, "BBA:2,CSE:3,EEE:4", FormatDepartmentFloors(floors))

	_, err = ParseDepartmentFloors("CSE")
	assert.Error(t, err)
	_, err = ParseDepartmentFloors("CSE:x")
	assert.Error(t, err)
}

func TestTierJSON(t *testing.T) {
	raw, err := json.Marshal(map[string]Tier{"tier": TierRescue})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tier":"RESCUE"}`, string(raw))

	var decoded struct {
		Tier Tier `json:"tier"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"tier":"FALLBACK"}`), &decoded))
	assert.Equal(t, TierFallback, decoded.Tier)
	assert.True(t, TierPreferred > TierRescue && TierRescue > TierFallback && TierFallback > TierPlaceholder)
}

package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandDayPatternsAndNames(t *testing.T) {
	days, ok := ExpandDay("st")
	require.True(t, ok)
	assert.Equal(t, []Day{Sunday, Tuesday}, days)

	days, ok = ExpandDay("RA")
	require.True(t, ok)
	assert.Equal(t, []Day{Thursday, Saturday}, days)

	days, ok = ExpandDay(" wednesday ")
	require.True(t, ok)
	assert.Equal(t, []Day{Wednesday}, days)

	_, ok = ExpandDay("XX")
	assert.False(t, ok)
}

func TestExpandDayReturnsCopy(t *testing.T) {
	days, _ := ExpandDay(PatternMW)
	days[0] = Friday
	again, _ := ExpandDay(PatternMW)
	assert.Equal(t, Monday, again[0])
}

func TestPatternsOn(t *testing.T) {
	assert.Equal(t, []string{PatternST}, PatternsOn(Sunday))
	assert.Equal(t, []string{PatternMW}, PatternsOn(Wednesday))
	assert.Equal(t, []string{PatternRA}, PatternsOn(Saturday))
	assert.Empty(t, PatternsOn(Friday))
}

func TestLabDaysSkipFriday(t *testing.T) {
	assert.NotContains(t, LabDays(), Friday)
	assert.Len(t, LabDays(), 6)
}

func TestSpanExtendedStarts(t *testing.T) {
	require.Equal(t, 7, SlotCount())
	assert.Equal(t, []int{1, 2}, Span(1, 2))
	assert.Equal(t, []int{5, 6}, Span(5, 2))
	assert.Nil(t, Span(6, 2), "successor is the last slot of the day")
	assert.Nil(t, Span(7, 2))
	assert.Equal(t, []int{7}, Span(7, 1))
	assert.Nil(t, Span(8, 1))
	assert.Nil(t, Span(0, 1))
}

func TestSlotsWithin(t *testing.T) {
	slots, err := SlotsWithin("08:00 AM", "11:10 AM")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, slots)

	slots, err = SlotsWithin("1:00 PM", "1:00 PM")
	require.NoError(t, err)
	assert.Equal(t, []int{4}, slots)

	slots, err = SlotsWithin("13:00", "18:00")
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5, 6}, slots)

	_, err = SlotsWithin("noon", "1:00 PM")
	assert.Error(t, err)
}

func TestSlotLabel(t *testing.T) {
	assert.Equal(t, "08:00 AM - 09:30 AM", SlotLabel(1))
	assert.Equal(t, "06:00 PM - 07:30 PM", SlotLabel(7))
	assert.Equal(t, "slot 9", SlotLabel(9))
}

package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, int64(42), cfg.Scheduler.DefaultSeed)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.RunTimeout)
	assert.Equal(t, 100.0, cfg.Scheduler.Policy.BaseScore)
	assert.Equal(t, -100000.0, cfg.Scheduler.Policy.PlaceholderScore)
	assert.Equal(t, "TBA", cfg.Scheduler.Policy.PlaceholderInitial)
	assert.Equal(t, "CSE:3,EEE:4,BBA:2,ENG:5", cfg.Scheduler.Policy.DepartmentFloors)
	assert.Equal(t, []string{"CSE115L", "CSE215L", "CSE225L"}, cfg.Imports.StandardLabCodes)
	assert.False(t, cfg.Redis.Enabled)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("SCHEDULER_DEFAULT_SEED", 7)
	v.Set("SCHEDULER_RUN_TIMEOUT", "not-a-duration")
	v.Set("SCHEDULER_CRON", " 0 2 * * * ")
	v.Set("IMPORTS_MAX_FILE_SIZE", 0)

	cfg := fromViper(v)

	assert.Equal(t, int64(7), cfg.Scheduler.DefaultSeed)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.RunTimeout)
	assert.Equal(t, "0 2 * * *", cfg.Scheduler.Cron)
	assert.Equal(t, int64(5*1024*1024), cfg.Imports.MaxFileSizeBytes)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a, ,b "))
}

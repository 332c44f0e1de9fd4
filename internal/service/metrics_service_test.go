package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/scheduler"
)

func TestMetricsServiceRecordsSchedulerRuns(t *testing.T) {
	m := NewMetricsService()
	m.RecordSchedulerRun(true, time.Second, &scheduler.Report{
		ScheduledGroups:   4,
		PlaceholderGroups: 1,
		TierCounts:        map[string]int{"PREFERRED": 3, "RESCUE": 1},
		OverallQuality:    0.75,
	})
	m.RecordSchedulerRun(false, time.Second, nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.runTotal.WithLabelValues("rebuild", "completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.runTotal.WithLabelValues("incremental", "failed")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.groupsLastRun.WithLabelValues(string(scheduler.GroupScheduled))))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.tierTotal.WithLabelValues("PREFERRED")))
	assert.Equal(t, 0.75, testutil.ToFloat64(m.qualityLastRun))
}

func TestMetricsServiceCacheHitRatio(t *testing.T) {
	m := NewMetricsService()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)

	assert.Equal(t, 0.75, testutil.ToFloat64(m.cacheHitRatio))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cacheMisses))
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.SetQueueDepth(2)
	m.RecordImport("rooms", 3)
	m.RecordExport("csv")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, name := range []string{"scheduler_queue_depth 2", `import_rows_total{kind="rooms"} 3`, `timetable_exports_total{format="csv"} 1`} {
		assert.True(t, strings.Contains(body, name), name)
	}
}

func TestMetricsServiceNilIsSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.RecordSchedulerRun(true, time.Second, nil)
		m.SetQueueDepth(1)
		m.RecordCacheOperation(true, 0)
		m.ObserveDBQuery("x", 0)
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type failingCacheRepo struct{ err error }

func (f failingCacheRepo) Get(ctx context.Context, key string, dest interface{}) error { return f.err }
func (f failingCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return f.err
}
func (f failingCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error { return f.err }

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := &memoryCacheRepo{}
	svc := NewCacheService(repo, nil, 0, zap.NewNop(), false)
	require.NoError(t, svc.Set(context.Background(), "k", "v", 0))
	hit, err := svc.Get(context.Background(), "k", new(string))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, repo.entries)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	m := NewMetricsService()
	svc := NewCacheService(failingCacheRepo{err: errors.New("redis down")}, m, time.Minute, zap.NewNop(), true)

	hit, err := svc.Get(context.Background(), "k", new(string))
	assert.False(t, hit)
	assert.Error(t, err)
	assert.Error(t, svc.Set(context.Background(), "k", "v", 0))
	assert.Error(t, svc.Invalidate(context.Background(), "k*"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cacheMisses))
}

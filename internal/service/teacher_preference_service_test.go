package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type prefRepoMock struct {
	stored     map[string]*models.TeacherPreference
	lastFilter models.PreferenceFilter
	err        error
}

func newPrefRepoMock(prefs ...models.TeacherPreference) *prefRepoMock {
	m := &prefRepoMock{stored: make(map[string]*models.TeacherPreference)}
	for i := range prefs {
		p := prefs[i]
		m.stored[p.ID] = &p
	}
	return m
}

func (m *prefRepoMock) List(ctx context.Context, filter models.PreferenceFilter) ([]models.TeacherPreference, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	var out []models.TeacherPreference
	for _, p := range m.stored {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *prefRepoMock) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.PreferenceStatus) (*models.TeacherPreference, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.stored[id]
	if !ok {
		return nil, fmt.Errorf("update preference status: %w", sql.ErrNoRows)
	}
	p.Status = status
	cp := *p
	return &cp, nil
}

func (m *prefRepoMock) UpdateAllStatus(ctx context.Context, exec sqlx.ExtContext, from, to models.PreferenceStatus) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, p := range m.stored {
		if p.Status == from {
			p.Status = to
			n++
		}
	}
	return n, nil
}

func samplePreferences() []models.TeacherPreference {
	return []models.TeacherPreference{
		{ID: "p-1", TeacherID: "t-1", CourseID: "c-1", SectionCount: 1, Status: models.PreferencePending},
		{ID: "p-2", TeacherID: "t-2", CourseID: "c-1", SectionCount: 2, Status: models.PreferencePending},
		{ID: "p-3", TeacherID: "t-2", CourseID: "c-2", SectionCount: 1, Status: models.PreferenceAccepted},
	}
}

func TestTeacherPreferenceServiceList(t *testing.T) {
	repo := newPrefRepoMock(samplePreferences()...)
	svc := NewTeacherPreferenceService(repo, validator.New(), zap.NewNop())

	prefs, err := svc.List(context.Background(), dto.PreferenceListQuery{Status: "pending", TeacherID: " t-2 "})
	require.NoError(t, err)
	assert.Len(t, prefs, 2)
	assert.Equal(t, models.PreferenceFilter{Status: models.PreferencePending, TeacherID: "t-2"}, repo.lastFilter)

	_, err = svc.List(context.Background(), dto.PreferenceListQuery{Status: "maybe"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
}

func TestTeacherPreferenceServiceListEmptyIsNotNil(t *testing.T) {
	svc := NewTeacherPreferenceService(newPrefRepoMock(), nil, nil)
	prefs, err := svc.List(context.Background(), dto.PreferenceListQuery{})
	require.NoError(t, err)
	assert.NotNil(t, prefs)
	assert.Empty(t, prefs)
}

func TestTeacherPreferenceServiceReview(t *testing.T) {
	repo := newPrefRepoMock(samplePreferences()...)
	svc := NewTeacherPreferenceService(repo, validator.New(), zap.NewNop())

	pref, err := svc.Review(context.Background(), "p-1", dto.PreferenceDecisionRequest{Status: "accepted"})
	require.NoError(t, err)
	assert.Equal(t, models.PreferenceAccepted, pref.Status)

	pref, err = svc.Review(context.Background(), "p-3", dto.PreferenceDecisionRequest{Status: "REJECTED"})
	require.NoError(t, err)
	assert.Equal(t, models.PreferenceRejected, pref.Status)
	assert.False(t, repo.stored["p-3"].Status.Counts())
}

func TestTeacherPreferenceServiceReviewErrors(t *testing.T) {
	repo := newPrefRepoMock(samplePreferences()...)
	svc := NewTeacherPreferenceService(repo, validator.New(), zap.NewNop())

	_, err := svc.Review(context.Background(), "missing", dto.PreferenceDecisionRequest{Status: "ACCEPTED"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)

	_, err = svc.Review(context.Background(), "p-1", dto.PreferenceDecisionRequest{Status: "PENDING"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
	assert.Equal(t, models.PreferencePending, repo.stored["p-1"].Status)

	repo.err = fmt.Errorf("connection reset")
	_, err = svc.Review(context.Background(), "p-1", dto.PreferenceDecisionRequest{Status: "ACCEPTED"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Status, appErrors.FromError(err).Status)
}

func TestTeacherPreferenceServiceReviewAllTouchesOnlyPending(t *testing.T) {
	repo := newPrefRepoMock(samplePreferences()...)
	svc := NewTeacherPreferenceService(repo, validator.New(), zap.NewNop())

	result, err := svc.ReviewAll(context.Background(), dto.PreferenceDecisionRequest{Status: "rejected"})
	require.NoError(t, err)
	assert.Equal(t, models.PreferenceRejected, result.Status)
	assert.Equal(t, int64(2), result.Updated)
	assert.Equal(t, models.PreferenceAccepted, repo.stored["p-3"].Status)

	result, err = svc.ReviewAll(context.Background(), dto.PreferenceDecisionRequest{Status: "ACCEPTED"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Updated)

	_, err = svc.ReviewAll(context.Background(), dto.PreferenceDecisionRequest{})
	assert.Error(t, err)
}

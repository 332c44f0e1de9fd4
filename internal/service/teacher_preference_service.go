package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type teacherPreferenceRepo interface {
	List(ctx context.Context, filter models.PreferenceFilter) ([]models.TeacherPreference, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.PreferenceStatus) (*models.TeacherPreference, error)
	UpdateAllStatus(ctx context.Context, exec sqlx.ExtContext, from, to models.PreferenceStatus) (int64, error)
}

// TeacherPreferenceService handles review of teachers' course requests.
// Accepted and pending requests feed the next scheduling run; rejected ones
// are ignored by it.
type TeacherPreferenceService struct {
	repo      teacherPreferenceRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherPreferenceService builds the service.
func NewTeacherPreferenceService(repo teacherPreferenceRepo, validate *validator.Validate, logger *zap.Logger) *TeacherPreferenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherPreferenceService{
		repo:      repo,
		validator: validate,
		logger:    logger,
	}
}

// List returns preference requests, optionally narrowed by status or teacher.
func (s *TeacherPreferenceService) List(ctx context.Context, query dto.PreferenceListQuery) ([]models.TeacherPreference, error) {
	query.Status = normalizeStatus(query.Status)
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preference filter")
	}
	prefs, err := s.repo.List(ctx, models.PreferenceFilter{
		Status:    models.PreferenceStatus(query.Status),
		TeacherID: strings.TrimSpace(query.TeacherID),
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher preferences")
	}
	if prefs == nil {
		prefs = []models.TeacherPreference{}
	}
	return prefs, nil
}

// Review accepts or rejects a single request. A decided request may be
// reviewed again.
func (s *TeacherPreferenceService) Review(ctx context.Context, id string, req dto.PreferenceDecisionRequest) (*models.TeacherPreference, error) {
	status, err := s.decision(req)
	if err != nil {
		return nil, err
	}
	pref, err := s.repo.UpdateStatus(ctx, nil, id, status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher preference not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher preference")
	}
	s.logger.Info("teacher preference reviewed",
		zap.String("preference_id", pref.ID),
		zap.String("teacher_id", pref.TeacherID),
		zap.String("status", string(pref.Status)),
	)
	return pref, nil
}

// ReviewAll applies one decision to every pending request.
func (s *TeacherPreferenceService) ReviewAll(ctx context.Context, req dto.PreferenceDecisionRequest) (*dto.PreferenceBulkResult, error) {
	status, err := s.decision(req)
	if err != nil {
		return nil, err
	}
	n, err := s.repo.UpdateAllStatus(ctx, nil, models.PreferencePending, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher preferences")
	}
	s.logger.Info("pending teacher preferences reviewed", zap.String("status", string(status)), zap.Int64("updated", n))
	return &dto.PreferenceBulkResult{Status: status, Updated: n}, nil
}

func (s *TeacherPreferenceService) decision(req dto.PreferenceDecisionRequest) (models.PreferenceStatus, error) {
	req.Status = normalizeStatus(req.Status)
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status must be ACCEPTED or REJECTED")
	}
	return models.PreferenceStatus(req.Status), nil
}

func normalizeStatus(status string) string {
	return strings.ToUpper(strings.TrimSpace(status))
}

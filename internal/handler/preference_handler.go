package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type preferenceReviewer interface {
	List(ctx context.Context, query dto.PreferenceListQuery) ([]models.TeacherPreference, error)
	Review(ctx context.Context, id string, req dto.PreferenceDecisionRequest) (*models.TeacherPreference, error)
	ReviewAll(ctx context.Context, req dto.PreferenceDecisionRequest) (*dto.PreferenceBulkResult, error)
}

// PreferenceHandler exposes review of teachers' course requests.
type PreferenceHandler struct {
	service preferenceReviewer
}

// NewPreferenceHandler constructs the handler.
func NewPreferenceHandler(svc preferenceReviewer) *PreferenceHandler {
	return &PreferenceHandler{service: svc}
}

// List godoc
// @Summary List teacher course preferences
// @Tags Preferences
// @Produce json
// @Param status query string false "PENDING, ACCEPTED or REJECTED"
// @Param teacherId query string false "Teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /preferences [get]
func (h *PreferenceHandler) List(c *gin.Context) {
	var query dto.PreferenceListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	prefs, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefs, nil, map[string]interface{}{"count": len(prefs)})
}

// Review godoc
// @Summary Accept or reject one preference
// @Tags Preferences
// @Accept json
// @Produce json
// @Param id path string true "Preference ID"
// @Param payload body dto.PreferenceDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /preferences/{id} [patch]
func (h *PreferenceHandler) Review(c *gin.Context) {
	var req dto.PreferenceDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}
	pref, err := h.service.Review(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pref, nil)
}

// ReviewAll godoc
// @Summary Accept or reject every pending preference
// @Tags Preferences
// @Accept json
// @Produce json
// @Param payload body dto.PreferenceDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /preferences/review [post]
func (h *PreferenceHandler) ReviewAll(c *gin.Context) {
	var req dto.PreferenceDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}
	result, err := h.service.ReviewAll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

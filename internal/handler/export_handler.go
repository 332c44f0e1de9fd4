package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type timetableExporter interface {
	Timetable(ctx context.Context, query dto.TimetableExportQuery) (*dto.ExportFile, error)
}

// ExportHandler serves timetable downloads.
type ExportHandler struct {
	service timetableExporter
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc timetableExporter) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Timetable godoc
// @Summary Download the committed timetable
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param teacherId query string false "Teacher ID"
// @Param roomId query string false "Room ID"
// @Param day query string false "Day or pattern code"
// @Param courseCode query string false "Course code prefix"
// @Param sortBy query string false "course, section, teacher, room, day or slot"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /exports/timetable [get]
func (h *ExportHandler) Timetable(c *gin.Context) {
	var query dto.TimetableExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	file, err := h.service.Timetable(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}

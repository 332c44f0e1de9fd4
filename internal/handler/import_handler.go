package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type sheetImporter interface {
	Import(ctx context.Context, kind dto.ImportKind, r io.Reader) (*dto.ImportResult, error)
}

// ImportHandler accepts CSV uploads of reference data.
type ImportHandler struct {
	service     sheetImporter
	maxFileSize int64
}

// NewImportHandler constructs the handler. maxFileSize bounds the upload body.
func NewImportHandler(svc sheetImporter, maxFileSize int64) *ImportHandler {
	if maxFileSize <= 0 {
		maxFileSize = 5 << 20
	}
	return &ImportHandler{service: svc, maxFileSize: maxFileSize}
}

// Upload godoc
// @Summary Import a CSV sheet
// @Description Kinds: courses, teachers, rooms, preferences, timings. Rows are upserted in one transaction.
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Param kind path string true "Sheet kind"
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /imports/{kind} [post]
func (h *ImportHandler) Upload(c *gin.Context) {
	kind := dto.ImportKind(strings.ToLower(c.Param("kind")))

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize+(1<<10))
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.New(appErrors.ErrValidation.Code, http.StatusRequestEntityTooLarge, "uploaded file is too large"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "multipart field \"file\" is required"))
		return
	}
	if header.Size > h.maxFileSize {
		response.Error(c, appErrors.New(appErrors.ErrValidation.Code, http.StatusRequestEntityTooLarge, "uploaded file is too large"))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	result, err := h.service.Import(c.Request.Context(), kind, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type sheetImporterMock struct {
	kind    dto.ImportKind
	content string
	err     error
}

func (m *sheetImporterMock) Import(ctx context.Context, kind dto.ImportKind, r io.Reader) (*dto.ImportResult, error) {
	m.kind = kind
	raw, _ := io.ReadAll(r)
	m.content = string(raw)
	if m.err != nil {
		return nil, m.err
	}
	return &dto.ImportResult{Kind: kind, Rows: 1, Upserted: 1}, nil
}

func multipartUpload(t *testing.T, field, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, "sheet.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func newImportRouter(h *ImportHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/imports/:kind", h.Upload)
	return router
}

func TestImportHandlerUpload(t *testing.T) {
	svc := &sheetImporterMock{}
	router := newImportRouter(NewImportHandler(svc, 1024))
	sheet := "Room Number,Capacity,Type\n301,40,Lecture\n"
	body, contentType := multipartUpload(t, "file", sheet)

	req := httptest.NewRequest(http.MethodPost, "/imports/Rooms", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ImportRooms, svc.kind)
	assert.Equal(t, sheet, svc.content)
}

func TestImportHandlerRequiresFile(t *testing.T) {
	router := newImportRouter(NewImportHandler(&sheetImporterMock{}, 1024))
	body, contentType := multipartUpload(t, "other", "x")

	req := httptest.NewRequest(http.MethodPost, "/imports/rooms", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportHandlerRejectsLargeFile(t *testing.T) {
	router := newImportRouter(NewImportHandler(&sheetImporterMock{}, 16))
	body, contentType := multipartUpload(t, "file", strings.Repeat("a", 64))

	req := httptest.NewRequest(http.MethodPost, "/imports/rooms", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestImportHandlerPropagatesValidationErrors(t *testing.T) {
	svc := &sheetImporterMock{err: appErrors.Clone(appErrors.ErrValidation, "row 2: unknown teacher initial \"QQQ\"")}
	router := newImportRouter(NewImportHandler(svc, 1024))
	body, contentType := multipartUpload(t, "file", "Initial,Course,Sections\nQQQ,CSE101,1\n")

	req := httptest.NewRequest(http.MethodPost, "/imports/preferences", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown teacher initial")
}

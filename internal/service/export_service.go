package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/csvio"
	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/export"
)

type assignmentDetailReader interface {
	ListDetailed(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, error)
}

type csvRenderer interface {
	Render(records interface{}) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	Title    string
	CacheTTL time.Duration
}

// ExportService renders the committed timetable as CSV or PDF. Rendered
// files are cached until the next committed run.
type ExportService struct {
	assignments assignmentDetailReader
	csv         csvRenderer
	pdf         pdfRenderer
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         ExportConfig
	now         func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(assignments assignmentDetailReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.Title == "" {
		cfg.Title = "Class Timetable"
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		assignments: assignments,
		csv:         csv,
		pdf:         pdf,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Timetable renders the filtered timetable in the requested format. CSV is
// the default.
func (s *ExportService) Timetable(ctx context.Context, query dto.TimetableExportQuery) (*dto.ExportFile, error) {
	format := dto.ExportFormat(strings.ToLower(strings.TrimSpace(query.Format)))
	if format == "" {
		format = dto.ExportCSV
	}
	if format != dto.ExportCSV && format != dto.ExportPDF {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported export format %q", query.Format))
	}
	query.Format = string(format)
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}

	key := exportCacheKey(query)
	var cached dto.ExportFile
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		s.metrics.RecordExport(string(format))
		return &cached, nil
	}

	start := s.now()
	details, err := s.assignments.ListDetailed(ctx, models.AssignmentFilter{
		TeacherID:  query.TeacherID,
		RoomID:     query.RoomID,
		Day:        query.Day,
		CourseCode: query.CourseCode,
		SortBy:     query.SortBy,
		SortOrder:  query.SortOrder,
	})
	s.metrics.ObserveDBQuery("list_assignment_details", s.now().Sub(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	rows := csvio.TimetableRows(details)
	if query.SortBy != "" {
		rows = rowsInQueryOrder(details)
	}

	var payload []byte
	contentType := "text/csv"
	switch format {
	case dto.ExportPDF:
		subtitle := fmt.Sprintf("Generated %s UTC, %d meetings", s.now().UTC().Format("2006-01-02 15:04"), len(rows))
		payload, err = s.pdf.Render(csvio.Dataset(rows), s.cfg.Title, subtitle)
		contentType = "application/pdf"
	default:
		payload, err = s.csv.Render(rows)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
	}

	file := &dto.ExportFile{
		Filename:    s.buildFilename(query, format),
		ContentType: contentType,
		Payload:     payload,
	}
	_ = s.cache.Set(ctx, key, file, s.cfg.CacheTTL)
	s.metrics.RecordExport(string(format))
	s.logger.Debug("timetable rendered", zap.String("format", string(format)), zap.Int("rows", len(rows)))
	return file, nil
}

// rowsInQueryOrder keeps the database ordering requested by the caller.
func rowsInQueryOrder(details []models.AssignmentDetail) []csvio.TimetableRow {
	rows := make([]csvio.TimetableRow, 0, len(details))
	for _, d := range details {
		rows = append(rows, csvio.TimetableRows([]models.AssignmentDetail{d})...)
	}
	return rows
}

func exportCacheKey(q dto.TimetableExportQuery) string {
	parts := []string{q.Format, q.TeacherID, q.RoomID, strings.ToUpper(q.Day), strings.ToUpper(q.CourseCode), q.SortBy, strings.ToLower(q.SortOrder)}
	return exportCachePrefix + "timetable:" + strings.Join(parts, "|")
}

func (s *ExportService) buildFilename(q dto.TimetableExportQuery, format dto.ExportFormat) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	name := "timetable"
	for _, part := range []string{q.CourseCode, q.Day} {
		if part != "" {
			name += "_" + sanitizeFilename(strings.ToUpper(part))
		}
	}
	return fmt.Sprintf("%s_%s.%s", name, timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

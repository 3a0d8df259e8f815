package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
	appErrors "github.com/carlosacostap-unca/epixum-roster-api/pkg/errors"
	"github.com/carlosacostap-unca/epixum-roster-api/pkg/export"
)

type exportEnrollmentReader interface {
	ListByCourse(ctx context.Context, courseID string, page, pageSize int) ([]models.EnrollmentDetail, int, error)
}

// ExportFormat selects the rendering of a roster export.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportService renders course rosters as downloadable files.
type ExportService struct {
	enrollments exportEnrollmentReader
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(enrollments exportEnrollmentReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		enrollments: enrollments,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// Roster renders the full course roster in the requested format and
// returns the payload with its content type.
func (s *ExportService) Roster(ctx context.Context, grant AccessGrant, courseID string, format ExportFormat) ([]byte, string, error) {
	if !grant.Allows(courseID) {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "not allowed to export this course roster")
	}

	const pageSize = 200
	var details []models.EnrollmentDetail
	for page := 1; ; page++ {
		chunk, total, err := s.enrollments.ListByCourse(ctx, courseID, page, pageSize)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
		}
		details = append(details, chunk...)
		if len(details) >= total || len(chunk) == 0 {
			break
		}
	}

	dataset := export.Dataset{
		Headers: []string{"email", "role", "last_name", "first_name", "dni", "enrolled_at"},
		Rows:    make([]map[string]string, 0, len(details)),
	}
	for _, d := range details {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"email":       d.Email,
			"role":        string(d.Role),
			"last_name":   d.LastName,
			"first_name":  d.FirstName,
			"dni":         d.DNI,
			"enrolled_at": d.CreatedAt.Format("2006-01-02"),
		})
	}

	switch format {
	case ExportCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case ExportPDF:
		payload, err := s.pdf.Render(dataset, fmt.Sprintf("Roster %s", courseID))
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unknown export format")
	}
}

package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
	appErrors "github.com/carlosacostap-unca/epixum-roster-api/pkg/errors"
)

// ExtractionClient is the text-to-roster collaborator: best effort, may
// return zero or malformed rows. Its output is untrusted input.
type ExtractionClient interface {
	ExtractCandidates(ctx context.Context, rawText string) ([]models.Candidate, error)
}

// ImportService turns pasted text and spreadsheet uploads into staged
// drafts, and enrolls matched drafts into a target course.
type ImportService struct {
	drafts     *DraftService
	roster     *RosterService
	extraction ExtractionClient
	maxRows    int
	sheetName  string
	logger     *zap.Logger
}

// NewImportService constructs ImportService.
func NewImportService(drafts *DraftService, roster *RosterService, extraction ExtractionClient, maxRows int, sheetName string, logger *zap.Logger) *ImportService {
	if maxRows <= 0 {
		maxRows = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{drafts: drafts, roster: roster, extraction: extraction, maxRows: maxRows, sheetName: sheetName, logger: logger}
}

// ImportText sends pasted free text to the extraction collaborator and
// stages the resulting candidates as drafts. An extraction failure is an
// upstream error: nothing is staged and the caller can retry.
func (s *ImportService) ImportText(ctx context.Context, grant AccessGrant, courseID, rawText string) (models.BatchResult, error) {
	if !grant.Allows(courseID) {
		return models.BatchResult{}, appErrors.Clone(appErrors.ErrForbidden, "not allowed to import into this course")
	}
	if strings.TrimSpace(rawText) == "" {
		return models.BatchResult{}, appErrors.Clone(appErrors.ErrValidation, "empty import text")
	}
	if s.extraction == nil {
		return models.BatchResult{}, appErrors.Clone(appErrors.ErrUpstream, "text extraction is not configured")
	}
	candidates, err := s.extraction.ExtractCandidates(ctx, rawText)
	if err != nil {
		s.logger.Warn("text extraction failed", zap.String("course_id", courseID), zap.Error(err))
		return models.BatchResult{}, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "text extraction failed")
	}
	if len(candidates) > s.maxRows {
		candidates = candidates[:s.maxRows]
	}
	return s.drafts.SaveDrafts(ctx, grant, courseID, candidates), nil
}

// ImportSpreadsheet parses an .xlsx upload into candidates and stages
// them as drafts. The first row is the header; column names are matched
// case-insensitively in Spanish or English.
func (s *ImportService) ImportSpreadsheet(ctx context.Context, grant AccessGrant, courseID string, file io.Reader) (models.BatchResult, error) {
	if !grant.Allows(courseID) {
		return models.BatchResult{}, appErrors.Clone(appErrors.ErrForbidden, "not allowed to import into this course")
	}
	candidates, err := s.parseSpreadsheet(file)
	if err != nil {
		return models.BatchResult{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not parse spreadsheet")
	}
	return s.drafts.SaveDrafts(ctx, grant, courseID, candidates), nil
}

func (s *ImportService) parseSpreadsheet(file io.Reader) ([]models.Candidate, error) {
	book, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	sheet := s.sheetName
	if sheet == "" {
		sheets := book.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := book.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet %q has no data rows", sheet)
	}

	columns := map[int]string{}
	for i, header := range rows[0] {
		if field := candidateField(header); field != "" {
			columns[i] = field
		}
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("no recognizable columns in header row")
	}

	candidates := make([]models.Candidate, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(candidates) >= s.maxRows {
			break
		}
		var c models.Candidate
		for i, value := range row {
			value = strings.TrimSpace(value)
			switch columns[i] {
			case "email":
				c.Email = value
			case "first_name":
				c.FirstName = value
			case "last_name":
				c.LastName = value
			case "dni":
				c.DNI = value
			case "phone":
				c.Phone = value
			case "birth_date":
				c.BirthDate = value
			case "address":
				c.Address = value
			case "career":
				c.Career = value
			}
		}
		if c.Email == "" && c.FirstName == "" && c.LastName == "" {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// candidateField maps a header cell to a Candidate field.
func candidateField(header string) string {
	switch strings.ToLower(strings.TrimSpace(header)) {
	case "email", "e-mail", "correo", "correo electronico", "correo electrónico", "mail":
		return "email"
	case "first_name", "nombre", "nombres", "name":
		return "first_name"
	case "last_name", "apellido", "apellidos", "surname":
		return "last_name"
	case "dni", "documento":
		return "dni"
	case "phone", "telefono", "teléfono", "celular":
		return "phone"
	case "birth_date", "fecha de nacimiento", "nacimiento":
		return "birth_date"
	case "address", "direccion", "dirección", "domicilio":
		return "address"
	case "career", "carrera":
		return "career"
	}
	return ""
}

// EnrollMatches matches candidate emails against staged drafts and
// reconciles each match into the target course, carrying the draft's
// demographics as the profile. Not-yet-staged emails and already-enrolled
// matches are reported without aborting the rest.
func (s *ImportService) EnrollMatches(ctx context.Context, grant AccessGrant, courseID string, emails []string, role models.Role) (models.BatchResult, error) {
	if role == "" {
		role = models.RoleStudent
	}
	match, err := s.drafts.Match(ctx, grant, courseID, emails)
	if err != nil {
		return models.BatchResult{}, err
	}

	rows := make([]ReconcileRequest, 0, len(match.Found))
	for _, m := range match.Found {
		rows = append(rows, ReconcileRequest{
			CourseID: courseID,
			Email:    m.Email,
			Role:     role,
			Profile: models.Profile{
				FirstName: m.FirstName,
				LastName:  m.LastName,
				DNI:       m.DNI,
				Phone:     m.Phone,
				BirthDate: m.BirthDate,
			},
		})
	}
	result := s.roster.ReconcileBatch(ctx, grant, rows)
	for _, missing := range match.NotFound {
		result.Failed = append(result.Failed, models.BatchFailure{Email: missing, Error: "no draft found"})
	}
	return result, nil
}

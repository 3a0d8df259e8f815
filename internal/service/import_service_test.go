package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
	appErrors "github.com/carlosacostap-unca/epixum-roster-api/pkg/errors"
)

type mockExtraction struct {
	candidates []models.Candidate
	err        error
	lastText   string
}

func (m *mockExtraction) ExtractCandidates(ctx context.Context, rawText string) ([]models.Candidate, error) {
	m.lastText = rawText
	if m.err != nil {
		return nil, m.err
	}
	return m.candidates, nil
}

type importFixture struct {
	svc        *ImportService
	extraction *mockExtraction
	draftRepo  *mockDraftRepo
	rosterRows *mockEnrollmentRepo
}

func newImportFixture(maxRows int) *importFixture {
	draftRepo := &mockDraftRepo{}
	draftEnrollments := &mockDraftEnrollments{enrolled: make(map[string]struct{})}
	draftSvc := NewDraftService(draftRepo, draftEnrollments, nil)

	identities := &mockIdentityRepo{identities: make(map[string]*models.Identity)}
	enrollments := &mockEnrollmentRepo{rows: make(map[enrollmentKey]models.Role)}
	courses := &mockCourseRepo{courses: map[string]*models.Course{"c1": {ID: "c1", InstitutionID: "i1"}}, adminGrants: map[string]int{}}
	rosterSvc := NewRosterService(identities, enrollments, courses, nil, nil, nil)

	extraction := &mockExtraction{}
	svc := NewImportService(draftSvc, rosterSvc, extraction, maxRows, "", nil)
	return &importFixture{svc: svc, extraction: extraction, draftRepo: draftRepo, rosterRows: enrollments}
}

func TestImportTextStagesExtractedRows(t *testing.T) {
	f := newImportFixture(100)
	f.extraction.candidates = []models.Candidate{
		{Email: "ana@uni.edu", FirstName: "Ana"},
		{Email: "luis@uni.edu", FirstName: "Luis"},
	}

	result, err := f.svc.ImportText(context.Background(), teacherGrant("c1"), "c1", "Ana ana@uni.edu, Luis luis@uni.edu")
	require.NoError(t, err)
	assert.Len(t, result.Enrolled, 2)
	assert.Len(t, f.draftRepo.upserted, 2)
	assert.Equal(t, "Ana ana@uni.edu, Luis luis@uni.edu", f.extraction.lastText)
}

func TestImportTextExtractionFailureStagesNothing(t *testing.T) {
	f := newImportFixture(100)
	f.extraction.err = assert.AnError

	_, err := f.svc.ImportText(context.Background(), teacherGrant("c1"), "c1", "some roster text")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUpstream))
	assert.Empty(t, f.draftRepo.upserted)
}

func TestImportTextRejectsEmptyText(t *testing.T) {
	f := newImportFixture(100)

	_, err := f.svc.ImportText(context.Background(), teacherGrant("c1"), "c1", "   ")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestImportTextCapsRows(t *testing.T) {
	f := newImportFixture(2)
	f.extraction.candidates = []models.Candidate{
		{Email: "a@uni.edu"}, {Email: "b@uni.edu"}, {Email: "c@uni.edu"},
	}

	result, err := f.svc.ImportText(context.Background(), teacherGrant("c1"), "c1", "three rows")
	require.NoError(t, err)
	assert.Len(t, result.Enrolled, 2)
}

func buildWorkbook(t *testing.T, headers []string, rows [][]string) *bytes.Buffer {
	t.Helper()
	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, err)
		require.NoError(t, book.SetCellValue(sheet, cell, header))
	}
	for r, row := range rows {
		for i, value := range row {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			require.NoError(t, err)
			require.NoError(t, book.SetCellValue(sheet, cell, value))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, book.Write(&buf))
	return &buf
}

func TestImportSpreadsheetParsesSpanishHeaders(t *testing.T) {
	f := newImportFixture(100)
	buf := buildWorkbook(t,
		[]string{"Correo", "Nombre", "Apellido", "DNI"},
		[][]string{
			{"ana@uni.edu", "Ana", "Perez", "30123456"},
			{"", "", "", ""},
			{"luis@uni.edu", "Luis", "Gomez", "28987654"},
		},
	)

	result, err := f.svc.ImportSpreadsheet(context.Background(), teacherGrant("c1"), "c1", buf)
	require.NoError(t, err)
	assert.Len(t, result.Enrolled, 2)
	require.Len(t, f.draftRepo.upserted, 2)
	assert.Equal(t, "Perez", f.draftRepo.upserted[0].LastName)
	assert.Equal(t, "30123456", f.draftRepo.upserted[0].DNI)
}

func TestImportSpreadsheetRejectsUnknownHeaders(t *testing.T) {
	f := newImportFixture(100)
	buf := buildWorkbook(t, []string{"foo", "bar"}, [][]string{{"x", "y"}})

	_, err := f.svc.ImportSpreadsheet(context.Background(), teacherGrant("c1"), "c1", buf)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestImportSpreadsheetRejectsGarbage(t *testing.T) {
	f := newImportFixture(100)

	_, err := f.svc.ImportSpreadsheet(context.Background(), teacherGrant("c1"), "c1", bytes.NewBufferString("not a workbook"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestEnrollMatchesCarriesDraftProfile(t *testing.T) {
	f := newImportFixture(100)
	f.draftRepo.drafts = []models.Draft{{
		CourseID:  "c1",
		Email:     "ana@uni.edu",
		EmailNorm: "ana@uni.edu",
		FirstName: "Ana",
		LastName:  "Perez",
		DNI:       "30123456",
		CreatedAt: time.Now(),
	}}

	result, err := f.svc.EnrollMatches(context.Background(), teacherGrant("c1"), "c1", []string{"ana@uni.edu", "ghost@uni.edu"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ana@uni.edu"}, result.Enrolled)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "ghost@uni.edu", result.Failed[0].Email)
	assert.Equal(t, "no draft found", result.Failed[0].Error)

	role, enrolled := f.rosterRows.rows[enrollmentKey{"c1", "ana@uni.edu"}]
	assert.True(t, enrolled)
	assert.Equal(t, models.RoleStudent, role)
}

func TestEnrollMatchesHonorsExplicitRole(t *testing.T) {
	f := newImportFixture(100)
	f.draftRepo.drafts = []models.Draft{{
		CourseID: "c1", Email: "doc@uni.edu", EmailNorm: "doc@uni.edu", CreatedAt: time.Now(),
	}}

	_, err := f.svc.EnrollMatches(context.Background(), teacherGrant("c1"), "c1", []string{"doc@uni.edu"}, models.RoleTeacher)
	require.NoError(t, err)
	role, enrolled := f.rosterRows.rows[enrollmentKey{"c1", "doc@uni.edu"}]
	assert.True(t, enrolled)
	assert.Equal(t, models.RoleTeacher, role)
}

package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
)

func TestCourseRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"id", "institution_id", "name", "year", "created_at"}).
		AddRow("course-b", "inst-1", "Álgebra I", 2026, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, institution_id, name, year, created_at FROM courses WHERE id = $1")).
		WithArgs("course-b").
		WillReturnRows(rows)

	course, err := repo.FindByID(context.Background(), "course-b")
	require.NoError(t, err)
	require.Equal(t, "inst-1", course.InstitutionID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery("SELECT id, institution_id, name, year, created_at FROM courses").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreateInstitutionAdmin(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("INSERT INTO institution_admins").
		WillReturnResult(sqlmock.NewResult(1, 1))

	grant := &models.InstitutionAdmin{InstitutionID: "inst-1", Email: "Admin@X.com", EmailNorm: "admin@x.com"}
	require.NoError(t, repo.CreateInstitutionAdmin(context.Background(), grant))
	require.False(t, grant.CreatedAt.IsZero())

	pqErr := &pq.Error{Code: "23505", Constraint: "institution_admins_pkey"}
	mock.ExpectExec("INSERT INTO institution_admins").
		WillReturnError(pqErr)

	err := repo.CreateInstitutionAdmin(context.Background(), grant)
	require.Error(t, err)
	require.ErrorAs(t, err, &pqErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryInstitutionAdminChecks(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM institution_admins WHERE institution_id = $1 AND email_norm = $2")).
		WithArgs("inst-1", "admin@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	ok, err := repo.InstitutionAdminExists(context.Background(), "inst-1", "admin@x.com")
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM institution_admins WHERE email_norm = $1")).
		WithArgs("admin@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	count, err := repo.CountInstitutionAdmin(context.Background(), "admin@x.com")
	require.NoError(t, err)
	require.Zero(t, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

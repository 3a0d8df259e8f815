package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
)

func TestDraftRepositoryUpsertAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDraftRepository(db)

	mock.ExpectExec("INSERT INTO drafts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	draft := &models.Draft{CourseID: "course-a", Email: " Ana@X.com", EmailNorm: "ana@x.com", FirstName: "Ana"}
	require.NoError(t, repo.Upsert(context.Background(), draft))
	require.NotEmpty(t, draft.ID)
	require.False(t, draft.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftRepositoryFindByEmailsCrossCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDraftRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "email", "email_norm", "first_name", "last_name", "dni", "phone", "birth_date", "address", "career", "created_at"}).
		AddRow("d1", "course-a", "ana@x.com", "ana@x.com", "Ana", "Pérez", "", "", "", "", "", time.Now()).
		AddRow("d2", "course-b", "Ana@X.com", "ana@x.com", "Ana", "Pérez", "30111222", "", "", "", "", time.Now())
	mock.ExpectQuery("SELECT id, course_id, email, email_norm, .+ FROM drafts WHERE email_norm = ANY").
		WillReturnRows(rows)

	drafts, err := repo.FindByEmails(context.Background(), []string{"ana@x.com"})
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftRepositoryFindByEmailsEmptyInputSkipsQuery(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDraftRepository(db)

	drafts, err := repo.FindByEmails(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, drafts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftRepositoryListByCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDraftRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "email", "email_norm", "first_name", "last_name", "dni", "phone", "birth_date", "address", "career", "created_at"}).
		AddRow("d1", "course-a", "ana@x.com", "ana@x.com", "Ana", "", "", "", "", "", "", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM drafts WHERE course_id = $1 ORDER BY created_at DESC")).
		WithArgs("course-a").
		WillReturnRows(rows)

	drafts, err := repo.ListByCourse(context.Background(), "course-a")
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
)

// CourseRepository resolves courses and institution-admin grants.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course with its owning institution.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, institution_id, name, year, created_at FROM courses WHERE id = $1 LIMIT 1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// InstitutionAdminExists reports whether the email holds an admin grant
// for the institution.
func (r *CourseRepository) InstitutionAdminExists(ctx context.Context, institutionID, emailNorm string) (bool, error) {
	const query = `SELECT 1 FROM institution_admins WHERE institution_id = $1 AND email_norm = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, institutionID, emailNorm); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check institution admin: %w", err)
	}
	return true, nil
}

// DeleteInstitutionAdmin removes the grant for one institution. Returns
// the number of rows removed.
func (r *CourseRepository) DeleteInstitutionAdmin(ctx context.Context, institutionID, emailNorm string) (int64, error) {
	const query = `DELETE FROM institution_admins WHERE institution_id = $1 AND email_norm = $2`
	result, err := r.db.ExecContext(ctx, query, institutionID, emailNorm)
	if err != nil {
		return 0, fmt.Errorf("delete institution admin: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete institution admin rows: %w", err)
	}
	return affected, nil
}

// CountInstitutionAdmin counts the email's remaining admin grants across
// every institution on the platform.
func (r *CourseRepository) CountInstitutionAdmin(ctx context.Context, emailNorm string) (int, error) {
	const query = `SELECT COUNT(*) FROM institution_admins WHERE email_norm = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, emailNorm); err != nil {
		return 0, fmt.Errorf("count institution admin grants: %w", err)
	}
	return count, nil
}

// CreateInstitutionAdmin stores a grant. The raw error is surfaced so
// callers can absorb duplicate grants as success.
func (r *CourseRepository) CreateInstitutionAdmin(ctx context.Context, grant *models.InstitutionAdmin) error {
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO institution_admins (institution_id, email, email_norm, created_at)
        VALUES (:institution_id, :email, :email_norm, :created_at)`
	_, err := r.db.NamedExecContext(ctx, query, grant)
	return err
}

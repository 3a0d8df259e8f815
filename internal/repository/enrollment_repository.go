package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
)

// EnrollmentRepository handles persistence of course memberships.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create inserts an enrollment row. The error is returned raw: the unique
// index on (course_id, email_norm) is the arbiter for concurrent enrolls
// and callers decide whether a violation counts as success.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, course_id, email, email_norm, role, created_at)
        VALUES (:id, :course_id, :email, :email_norm, :role, :created_at)`
	_, err := r.db.NamedExecContext(ctx, query, enrollment)
	return err
}

// Exists reports whether any enrollment exists for the course and email.
func (r *EnrollmentRepository) Exists(ctx context.Context, courseID, emailNorm string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE course_id = $1 AND email_norm = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, courseID, emailNorm); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// ExistsRole reports whether the email holds any of the given roles in the
// course.
func (r *EnrollmentRepository) ExistsRole(ctx context.Context, courseID, emailNorm string, roles ...models.Role) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}
	values := make([]string, len(roles))
	for i, role := range roles {
		values[i] = string(role)
	}
	const query = `SELECT 1 FROM enrollments WHERE course_id = $1 AND email_norm = $2 AND role = ANY($3) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, courseID, emailNorm, pq.Array(values)); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment role: %w", err)
	}
	return true, nil
}

// Delete removes the enrollment scoped by all three keys. The role scope
// keeps a docente removal from deleting a nodocente row for the same
// person. Returns the number of rows removed.
func (r *EnrollmentRepository) Delete(ctx context.Context, courseID, emailNorm string, role models.Role) (int64, error) {
	const query = `DELETE FROM enrollments WHERE course_id = $1 AND email_norm = $2 AND role = $3`
	result, err := r.db.ExecContext(ctx, query, courseID, emailNorm, string(role))
	if err != nil {
		return 0, fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete enrollment rows: %w", err)
	}
	return affected, nil
}

// ListByCourse returns the course roster joined with identity profiles.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID string, page, pageSize int) ([]models.EnrollmentDetail, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	const query = `SELECT e.id, e.course_id, e.email, e.email_norm, e.role, e.created_at,
        COALESCE(i.first_name, '') AS first_name, COALESCE(i.last_name, '') AS last_name, COALESCE(i.dni, '') AS dni
        FROM enrollments e
        LEFT JOIN identities i ON i.email = e.email_norm
        WHERE e.course_id = $1
        ORDER BY i.last_name, i.first_name, e.email_norm
        LIMIT $2 OFFSET $3`
	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, courseID, pageSize, offset); err != nil {
		return nil, 0, fmt.Errorf("list course roster: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, courseID); err != nil {
		return nil, 0, fmt.Errorf("count course roster: %w", err)
	}
	return details, total, nil
}

// CountByRole counts live enrollments holding the role anywhere on the
// platform. Used before pruning a role from an identity.
func (r *EnrollmentRepository) CountByRole(ctx context.Context, emailNorm string, role models.Role) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE email_norm = $1 AND role = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, emailNorm, string(role)); err != nil {
		return 0, fmt.Errorf("count enrollments by role: %w", err)
	}
	return count, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
)

// DraftRepository stages imported student records ahead of matching.
type DraftRepository struct {
	db *sqlx.DB
}

// NewDraftRepository constructs the repository.
func NewDraftRepository(db *sqlx.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// Upsert saves a draft keyed on (course_id, email_norm). A re-import with
// the same key supersedes the previous draft, refreshing created_at so
// recency tie-breaks prefer the newest data.
func (r *DraftRepository) Upsert(ctx context.Context, draft *models.Draft) error {
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO drafts (id, course_id, email, email_norm, first_name, last_name, dni, phone, birth_date, address, career, created_at)
        VALUES (:id, :course_id, :email, :email_norm, :first_name, :last_name, :dni, :phone, :birth_date, :address, :career, :created_at)
        ON CONFLICT (course_id, email_norm) DO UPDATE SET
        email = EXCLUDED.email,
        first_name = EXCLUDED.first_name,
        last_name = EXCLUDED.last_name,
        dni = EXCLUDED.dni,
        phone = EXCLUDED.phone,
        birth_date = EXCLUDED.birth_date,
        address = EXCLUDED.address,
        career = EXCLUDED.career,
        created_at = EXCLUDED.created_at`
	if _, err := r.db.NamedExecContext(ctx, query, draft); err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

// FindByEmails returns every draft whose normalized email is in the set,
// regardless of originating course. Matching is cross-course on purpose:
// a draft staged for course A is a valid candidate for course B.
func (r *DraftRepository) FindByEmails(ctx context.Context, emailNorms []string) ([]models.Draft, error) {
	if len(emailNorms) == 0 {
		return nil, nil
	}
	const query = `SELECT id, course_id, email, email_norm, first_name, last_name, dni, phone, birth_date, address, career, created_at
        FROM drafts WHERE email_norm = ANY($1)`
	var drafts []models.Draft
	if err := r.db.SelectContext(ctx, &drafts, query, pq.Array(emailNorms)); err != nil {
		return nil, fmt.Errorf("find drafts by emails: %w", err)
	}
	return drafts, nil
}

// ListByCourse returns drafts staged under a course hint.
func (r *DraftRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Draft, error) {
	const query = `SELECT id, course_id, email, email_norm, first_name, last_name, dni, phone, birth_date, address, career, created_at
        FROM drafts WHERE course_id = $1 ORDER BY created_at DESC`
	var drafts []models.Draft
	if err := r.db.SelectContext(ctx, &drafts, query, courseID); err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return drafts, nil
}

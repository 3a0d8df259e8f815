package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carlosacostap-unca/epixum-roster-api/internal/models"
)

// IdentityRepository persists allow-list and profile state for identities.
// All rows are keyed on the normalized email; callers normalize before
// calling in.
type IdentityRepository struct {
	db *sqlx.DB
}

// NewIdentityRepository constructs the repository.
func NewIdentityRepository(db *sqlx.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// FindByEmail returns the identity for a normalized email.
func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	const query = `SELECT email, roles, first_name, last_name, dni, phone, birth_date, created_at, updated_at FROM identities WHERE email = $1 LIMIT 1`
	var identity models.Identity
	if err := r.db.GetContext(ctx, &identity, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return &identity, nil
}

// Create inserts a new identity row. A unique violation is surfaced
// raw so callers can treat the lost race as success.
func (r *IdentityRepository) Create(ctx context.Context, identity *models.Identity) error {
	now := time.Now().UTC()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = now
	const query = `INSERT INTO identities (email, roles, first_name, last_name, dni, phone, birth_date, created_at, updated_at)
        VALUES (:email, :roles, :first_name, :last_name, :dni, :phone, :birth_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, identity); err != nil {
		return err
	}
	return nil
}

// AddRole appends a role to the identity's set if absent.
func (r *IdentityRepository) AddRole(ctx context.Context, email string, role models.Role) error {
	const query = `UPDATE identities SET roles = array_append(roles, $2), updated_at = $3 WHERE email = $1 AND NOT ($2 = ANY(roles))`
	if _, err := r.db.ExecContext(ctx, query, email, string(role), time.Now().UTC()); err != nil {
		return fmt.Errorf("add role: %w", err)
	}
	return nil
}

// RemoveRole strips a role from the identity's set. The row survives even
// with an empty set; identities are never hard-deleted here.
func (r *IdentityRepository) RemoveRole(ctx context.Context, email string, role models.Role) error {
	const query = `UPDATE identities SET roles = array_remove(roles, $2), updated_at = $3 WHERE email = $1`
	if _, err := r.db.ExecContext(ctx, query, email, string(role), time.Now().UTC()); err != nil {
		return fmt.Errorf("remove role: %w", err)
	}
	return nil
}

// UpdateProfile merges profile fields into the identity. Empty incoming
// values never blank out stored data: each column keeps its current value
// unless the new one is non-empty.
func (r *IdentityRepository) UpdateProfile(ctx context.Context, email string, profile models.Profile) error {
	const query = `UPDATE identities SET
        first_name = COALESCE(NULLIF($2, ''), first_name),
        last_name  = COALESCE(NULLIF($3, ''), last_name),
        dni        = COALESCE(NULLIF($4, ''), dni),
        phone      = COALESCE(NULLIF($5, ''), phone),
        birth_date = COALESCE(NULLIF($6, ''), birth_date),
        updated_at = $7
        WHERE email = $1`
	if _, err := r.db.ExecContext(ctx, query, email, profile.FirstName, profile.LastName, profile.DNI, profile.Phone, profile.BirthDate, time.Now().UTC()); err != nil {
		return fmt.Errorf("update identity profile: %w", err)
	}
	return nil
}

// CountRole counts identities holding the role across the whole platform.
func (r *IdentityRepository) CountRole(ctx context.Context, role models.Role) (int, error) {
	const query = `SELECT COUNT(*) FROM identities WHERE $1 = ANY(roles)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, string(role)); err != nil {
		return 0, fmt.Errorf("count role holders: %w", err)
	}
	return count, nil
}

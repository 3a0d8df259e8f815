package models

import "time"

// Course is the minimal course projection the roster core needs: its
// identity and the institution that owns it.
type Course struct {
	ID            string    `db:"id" json:"id"`
	InstitutionID string    `db:"institution_id" json:"institution_id"`
	Name          string    `db:"name" json:"name"`
	Year          int       `db:"year" json:"year"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// InstitutionAdmin is an admin grant scoped to one institution.
type InstitutionAdmin struct {
	InstitutionID string    `db:"institution_id" json:"institution_id"`
	Email         string    `db:"email" json:"email"`
	EmailNorm     string    `db:"email_norm" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Scope is the access level resolved for a principal against a course.
type Scope string

// Resolution outcomes of the permission gate, ordered from strongest to
// none. Callers must reject any mutating operation when the scope is
// ScopeNone.
const (
	ScopeNone             Scope = "none"
	ScopeTeacher          Scope = "teacher"
	ScopeStaff            Scope = "nodocente"
	ScopeInstitutionAdmin Scope = "institution-admin"
	ScopePlatformAdmin    Scope = "platform-admin"
)

// Mutating reports whether the scope allows roster mutations on the course.
func (s Scope) Mutating() bool {
	return s != ScopeNone
}

package models

import "time"

// Enrollment is a live membership of one email in one course under one
// role. Uniqueness is enforced on (course_id, email_norm); deletions are
// additionally scoped by role so removing a docente row never takes a
// nodocente row with it.
type Enrollment struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Email     string    `db:"email" json:"email"`
	EmailNorm string    `db:"email_norm" json:"-"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EnrollmentDetail enriches an enrollment with identity profile fields
// for roster listings and exports.
type EnrollmentDetail struct {
	Enrollment
	FirstName string `db:"first_name" json:"first_name,omitempty"`
	LastName  string `db:"last_name" json:"last_name,omitempty"`
	DNI       string `db:"dni" json:"dni,omitempty"`
}

// BatchFailure records why one row of a batch reconciliation failed.
type BatchFailure struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// BatchResult aggregates per-row outcomes of a batch reconciliation. The
// envelope itself reports success even when individual rows failed;
// callers must inspect Failed.
type BatchResult struct {
	Enrolled []string       `json:"enrolled"`
	Failed   []BatchFailure `json:"failed"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

package models

import "time"

// Draft is a staged student record imported from free text or a table
// paste, ahead of being matched into any course. The course_id is only a
// hint of the originating course; the draft may end up enrolled elsewhere.
// Several drafts can exist for the same normalized email across courses.
type Draft struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Email     string    `db:"email" json:"email"`
	EmailNorm string    `db:"email_norm" json:"-"`
	FirstName string    `db:"first_name" json:"first_name,omitempty"`
	LastName  string    `db:"last_name" json:"last_name,omitempty"`
	DNI       string    `db:"dni" json:"dni,omitempty"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	BirthDate string    `db:"birth_date" json:"birth_date,omitempty"`
	Address   string    `db:"address" json:"address,omitempty"`
	Career    string    `db:"career" json:"career,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DraftMatch pairs a matched draft with its enrollment status against the
// target course of the match request.
type DraftMatch struct {
	Draft
	IsEnrolled bool `json:"is_enrolled"`
}

// MatchResult is the outcome of matching candidate emails against staged
// drafts: matched records plus the normalized emails with no draft.
type MatchResult struct {
	Found    []DraftMatch `json:"found"`
	NotFound []string     `json:"not_found"`
}

// Candidate is one untrusted row produced by the text extraction
// collaborator or parsed out of a spreadsheet upload.
type Candidate struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	DNI       string `json:"dni"`
	Phone     string `json:"phone"`
	BirthDate string `json:"birth_date"`
	Address   string `json:"address"`
	Career    string `json:"career"`
}

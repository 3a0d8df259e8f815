package database

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint errors.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique-constraint violation.
//
// Roster writes are not wrapped in cross-record transactions, so two
// concurrent attempts on the same key can both pass an existence check and
// race to insert. The constraint is the arbiter; every write path treats
// losing that race as success, and this helper is the single place that
// decides what counts as a conflict.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

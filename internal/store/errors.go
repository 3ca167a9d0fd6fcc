package store

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel errors returned by store operations. Callers match them with errors.Is.
var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would violate a uniqueness or
	// stock constraint.
	ErrConflict = errors.New("conflict")

	// ErrInvalidState is returned when a borrow transition is attempted from
	// the wrong status.
	ErrInvalidState = errors.New("invalid state")
)

// isConstraintError reports whether err comes from a violated SQLite
// UNIQUE, PRIMARY KEY or CHECK constraint. NOT NULL and FOREIGN KEY
// violations are programming errors and are not matched.
func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE,
		sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
		sqlite3.SQLITE_CONSTRAINT_CHECK:
		return true
	}
	return false
}

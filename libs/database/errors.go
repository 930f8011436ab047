package database

import "errors"

var (
	// ErrInvalidPath is returned when the database file path is empty.
	ErrInvalidPath = errors.New("invalid or empty database path")

	// ErrMigrationFailed is returned when migrations fail to apply.
	ErrMigrationFailed = errors.New("migration failed")

	// ErrConnectionFailed is returned when connection attempts are exhausted.
	ErrConnectionFailed = errors.New("database connection failed")
)

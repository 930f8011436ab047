package database

import "time"

// Config holds SQLite connection configuration for the embedded store.
type Config struct {
	// Path is the filesystem path to the SQLite database file, e.g.
	// "res/db/athena_data.sqlite". Use ":memory:" for tests.
	Path string

	// MaxOpenConns caps concurrent connections. SQLite serializes
	// writers at the file level regardless of pool size, so this is
	// kept at 1 by default to avoid SQLITE_BUSY churn under
	// database/sql's connection pooling.
	MaxOpenConns int

	// ConnMaxLifetime is the maximum amount of time a connection may be reused.
	ConnMaxLifetime time.Duration

	// ConnMaxIdleTime is the maximum amount of time a connection may be idle.
	ConnMaxIdleTime time.Duration

	// RetryAttempts is the number of times to retry opening/pinging on failure.
	RetryAttempts int

	// RetryDelay is the initial delay between retry attempts (exponential backoff).
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults for the
// embedded single-file store.
func DefaultConfig() *Config {
	return &Config{
		MaxOpenConns:    1,
		ConnMaxLifetime: 0, // connections to a local file never expire
		ConnMaxIdleTime: 5 * time.Minute,
		RetryAttempts:   3,
		RetryDelay:      200 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid, filling in defaults
// for anything left unset.
func (c *Config) Validate() error {
	if c.Path == "" {
		return ErrInvalidPath
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 1
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.RetryAttempts < 0 {
		c.RetryAttempts = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 200 * time.Millisecond
	}
	return nil
}

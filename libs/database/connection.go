package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB with additional functionality.
type DB struct {
	*sql.DB
	config *Config
}

// Connect opens the embedded SQLite database with retry logic,
// enabling WAL journaling and foreign keys.
func Connect(ctx context.Context, config *Config) (*DB, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dsn := config.Path + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"

	var db *sql.DB
	var err error

	delay := config.RetryDelay
	for attempt := 0; attempt <= config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}

		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			if attempt == config.RetryAttempts {
				return nil, fmt.Errorf("failed to open database after %d attempts: %w", config.RetryAttempts+1, err)
			}
			continue
		}

		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

		if err = db.PingContext(ctx); err != nil {
			db.Close()
			if attempt == config.RetryAttempts {
				return nil, fmt.Errorf("failed to ping database after %d attempts: %w", config.RetryAttempts+1, err)
			}
			continue
		}

		return &DB{DB: db, config: config}, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
}

// ConnectWithMigrations connects to the database and applies the
// embedded schema migrations.
func ConnectWithMigrations(ctx context.Context, config *Config) (*DB, error) {
	db, err := Connect(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	return db, nil
}

// HealthCheck performs a health check on the database connection.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Stats returns database connection pool statistics.
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// Config returns the database configuration.
func (db *DB) Config() *Config {
	return db.config
}

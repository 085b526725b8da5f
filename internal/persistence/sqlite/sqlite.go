// Package sqlite implements the persistence repositories on top of
// modernc.org/sqlite. The booking table's primary key (date, mentor_id,
// time_slot) is what makes commit an atomic check-and-write: a losing
// concurrent insert surfaces as a UNIQUE violation, never a partial row.
package sqlite

import (
	"context"
	"fmt"
)

// Storage bundles the repositories sharing one connection pool.
type Storage struct {
	pool *ConnectionPool

	Users       *UserRepository
	Bookings    *BookingRepository
	Assignments *AssignmentRepository
}

// Open creates the storage behind the DSN.
func Open(dsn string) (*Storage, error) {
	pool, err := NewConnectionPool(dsn)
	if err != nil {
		return nil, err
	}
	return &Storage{
		pool:        pool,
		Users:       NewUserRepository(pool),
		Bookings:    NewBookingRepository(pool),
		Assignments: NewAssignmentRepository(pool),
	}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// Migrate applies the schema. Statements are idempotent so Migrate is safe to
// run on every start.
func (s *Storage) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			registered_at TEXT NOT NULL,
			total_bookings INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT NOT NULL,
			date TEXT NOT NULL,
			mentor_id TEXT NOT NULL,
			time_slot TEXT NOT NULL,
			student_id INTEGER NOT NULL,
			duration_minutes INTEGER NOT NULL,
			company TEXT NOT NULL DEFAULT '',
			reminder_sent INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			PRIMARY KEY (date, mentor_id, time_slot)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_student ON bookings (student_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_mentor ON bookings (mentor_id, date)`,
		`CREATE TABLE IF NOT EXISTS mentor_assignments (
			user_id INTEGER PRIMARY KEY,
			mentor_id TEXT NOT NULL,
			assigned_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration: %w", err)
		}
	}
	return nil
}

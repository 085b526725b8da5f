package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/interview-scheduler/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository using SQLite.
type BookingRepository struct {
	pool *ConnectionPool
}

// NewBookingRepository creates a new SQLite booking repository.
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// CreateBooking inserts the booking inside one transaction. The capacity count
// and the insert share the transaction, and the (date, mentor_id, time_slot)
// primary key turns a lost commit race into persistence.ErrDuplicateKey.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking, rule persistence.CapacityRule) error {
	if booking.ID == "" {
		return fmt.Errorf("booking id must not be empty")
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if rule.MaxActive > 0 {
			count, err := countUpcomingLocked(tx, booking.Key.MentorID, rule)
			if err != nil {
				return err
			}
			if count >= rule.MaxActive {
				return persistence.ErrCapacityExceeded
			}
		}

		query := `
			INSERT INTO bookings (id, date, mentor_id, time_slot, student_id, duration_minutes, company, reminder_sent, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.Exec(query,
			booking.ID,
			booking.Key.Date,
			booking.Key.MentorID,
			booking.Key.TimeSlot,
			booking.StudentID,
			booking.DurationMinutes,
			booking.Company,
			boolToInt(booking.ReminderSent),
			booking.CreatedAt.UTC().Format(time.RFC3339),
		)
		return mapError(err)
	})
}

// countUpcomingLocked counts the mentor's active upcoming bookings within the
// caller's transaction. A booking is upcoming when its date lies beyond the
// cutoff date, or matches it with a slot starting after the cutoff time.
func countUpcomingLocked(tx *sql.Tx, mentorID string, rule persistence.CapacityRule) (int, error) {
	column := "COUNT(*)"
	if rule.DistinctStudents {
		column = "COUNT(DISTINCT student_id)"
	}
	query := fmt.Sprintf(`
		SELECT %s FROM bookings
		WHERE mentor_id = ?
		  AND (date > ? OR (date = ? AND substr(time_slot, 1, 5) > ?))
	`, column)

	var count int
	err := tx.QueryRow(query, mentorID, rule.CutoffDate, rule.CutoffDate, rule.CutoffTime).Scan(&count)
	if err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

// GetBooking retrieves a booking by its slot key.
func (r *BookingRepository) GetBooking(ctx context.Context, key persistence.BookingKey) (persistence.Booking, error) {
	query := selectBookingColumns + ` WHERE date = ? AND mentor_id = ? AND time_slot = ?`
	row := r.pool.db.QueryRowContext(ctx, query, key.Date, key.MentorID, key.TimeSlot)
	booking, err := scanBooking(row)
	if err != nil {
		return persistence.Booking{}, mapError(err)
	}
	return booking, nil
}

// ListBookings returns bookings matching the filter, ordered by date and slot.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Date != nil {
		conditions = append(conditions, "date = ?")
		args = append(args, *filter.Date)
	}
	if filter.MentorID != nil {
		conditions = append(conditions, "mentor_id = ?")
		args = append(args, *filter.MentorID)
	}
	if filter.StudentID != nil {
		conditions = append(conditions, "student_id = ?")
		args = append(args, *filter.StudentID)
	}

	query := selectBookingColumns
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date, time_slot, mentor_id"

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var bookings []persistence.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, mapError(err)
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

// DeleteBooking removes the booking. Deleting an absent key reports
// persistence.ErrNotFound without side effects.
func (r *BookingRepository) DeleteBooking(ctx context.Context, key persistence.BookingKey) error {
	result, err := r.pool.db.ExecContext(ctx,
		`DELETE FROM bookings WHERE date = ? AND mentor_id = ? AND time_slot = ?`,
		key.Date, key.MentorID, key.TimeSlot,
	)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// MarkReminderSent durably records the reminder as fired.
func (r *BookingRepository) MarkReminderSent(ctx context.Context, key persistence.BookingKey) error {
	result, err := r.pool.db.ExecContext(ctx,
		`UPDATE bookings SET reminder_sent = 1 WHERE date = ? AND mentor_id = ? AND time_slot = ?`,
		key.Date, key.MentorID, key.TimeSlot,
	)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

const selectBookingColumns = `
	SELECT id, date, mentor_id, time_slot, student_id, duration_minutes, company, reminder_sent, created_at
	FROM bookings`

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var (
		booking      persistence.Booking
		reminderSent int
		createdAt    string
	)
	err := row.Scan(
		&booking.ID,
		&booking.Key.Date,
		&booking.Key.MentorID,
		&booking.Key.TimeSlot,
		&booking.StudentID,
		&booking.DurationMinutes,
		&booking.Company,
		&reminderSent,
		&createdAt,
	)
	if err != nil {
		return persistence.Booking{}, err
	}
	booking.ReminderSent = reminderSent != 0
	parsed, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return persistence.Booking{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	booking.CreatedAt = parsed
	return booking, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

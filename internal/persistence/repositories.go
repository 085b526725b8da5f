package persistence

import "context"

// UserRepository exposes storage operations for student accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id int64) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	// IncrementTotalBookings atomically bumps the monotonic booking counter
	// and returns the new value.
	IncrementTotalBookings(ctx context.Context, id int64) (int, error)
}

// BookingRepository stores committed reservations keyed by their slot triple.
type BookingRepository interface {
	// CreateBooking inserts the booking inside a single transaction that also
	// enforces the capacity rule. It returns ErrDuplicateKey when the slot is
	// already taken and ErrCapacityExceeded when the mentor is full.
	CreateBooking(ctx context.Context, booking Booking, rule CapacityRule) error
	GetBooking(ctx context.Context, key BookingKey) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	DeleteBooking(ctx context.Context, key BookingKey) error
	// MarkReminderSent records that the one-shot reminder for the booking has
	// fired, so restart recovery never fires it again.
	MarkReminderSent(ctx context.Context, key BookingKey) error
}

// AssignmentRepository stores the student to mentor mapping.
type AssignmentRepository interface {
	UpsertAssignment(ctx context.Context, assignment MentorAssignment) error
	GetAssignment(ctx context.Context, userID int64) (MentorAssignment, error)
}

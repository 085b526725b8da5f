package persistence

import "time"

// User represents a student account in the interview scheduler domain.
// Users are created on their first inbound event and never deleted.
type User struct {
	ID            int64
	Username      string
	FirstName     string
	RegisteredAt  time.Time
	TotalBookings int
}

// BookingKey identifies the slot a booking occupies. The triple is unique
// across all active bookings.
type BookingKey struct {
	Date     string // "2006-01-02"
	MentorID string
	TimeSlot string // "HH:MM-HH:MM"
}

// Booking represents a committed interview reservation stored in persistence.
type Booking struct {
	ID              string
	Key             BookingKey
	StudentID       int64
	DurationMinutes int
	Company         string
	ReminderSent    bool
	CreatedAt       time.Time
}

// MentorAssignment records the single active student to mentor mapping for a
// user. Reassignment overwrites the previous row.
type MentorAssignment struct {
	UserID     int64
	MentorID   string
	AssignedAt time.Time
}

// BookingFilter narrows booking queries. Nil fields match everything.
type BookingFilter struct {
	Date      *string
	MentorID  *string
	StudentID *int64
}

// CapacityRule restricts how many active upcoming bookings a mentor may hold
// at commit time. MaxActive <= 0 disables the check. The cutoff pair marks
// "now" in the interview timezone: a booking is upcoming when its date is
// after CutoffDate, or on CutoffDate with a slot starting after CutoffTime.
type CapacityRule struct {
	MaxActive        int
	DistinctStudents bool
	CutoffDate       string // "2006-01-02"
	CutoffTime       string // "HH:MM"
}

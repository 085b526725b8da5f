package application

import (
	"context"
	"errors"
	"time"

	"github.com/example/interview-scheduler/internal/persistence"
)

// Stats summarises a student's booking history.
type Stats struct {
	// Total is the monotonic count of bookings ever committed by the student.
	Total int
	// Upcoming counts active bookings with a future start.
	Upcoming int
	// Closed is Total - Upcoming: bookings that were cancelled or simply
	// elapsed. The name makes the conflation explicit instead of reporting
	// elapsed interviews as cancellations.
	Closed int
}

// StatisticsService derives per-student counts from the booking store.
type StatisticsService struct {
	bookings persistence.BookingRepository
	users    persistence.UserRepository
	location *time.Location
	now      func() time.Time
}

// NewStatisticsService wires dependencies for statistics queries.
func NewStatisticsService(bookings persistence.BookingRepository, users persistence.UserRepository, location *time.Location, now func() time.Time) *StatisticsService {
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.UTC
	}
	return &StatisticsService{
		bookings: bookings,
		users:    users,
		location: location,
		now:      now,
	}
}

// ForStudent computes the student's statistics.
func (s *StatisticsService) ForStudent(ctx context.Context, studentID int64) (Stats, error) {
	user, err := s.users.GetUser(ctx, studentID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Stats{}, ErrNotFound
		}
		return Stats{}, &PersistenceError{Op: "get user", Err: err}
	}

	bookings, err := s.bookings.ListBookings(ctx, persistence.BookingFilter{StudentID: &studentID})
	if err != nil {
		return Stats{}, &PersistenceError{Op: "list bookings", Err: err}
	}

	now := s.now().In(s.location)
	upcoming := 0
	for _, booking := range bookings {
		start, err := SlotStart(booking.Key.Date, booking.Key.TimeSlot, s.location)
		if err != nil {
			continue
		}
		if start.After(now) {
			upcoming++
		}
	}

	return Stats{
		Total:    user.TotalBookings,
		Upcoming: upcoming,
		Closed:   user.TotalBookings - upcoming,
	}, nil
}

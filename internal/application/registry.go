package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/interview-scheduler/internal/persistence"
)

// RegistryService is the source of truth for active bookings. Commit is a
// single atomic check-and-write scoped to the slot key; cancel is a hard
// delete.
type RegistryService struct {
	bookings    persistence.BookingRepository
	users       persistence.UserRepository
	mentors     map[string]Mentor
	slots       []string
	policy      CapacityPolicy
	location    *time.Location
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRegistryService wires dependencies for booking operations.
func NewRegistryService(
	bookings persistence.BookingRepository,
	users persistence.UserRepository,
	mentors []Mentor,
	slots []string,
	policy CapacityPolicy,
	location *time.Location,
	idGenerator func() string,
	now func() time.Time,
	logger *slog.Logger,
) *RegistryService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.UTC
	}
	if policy == "" {
		policy = CapacityPolicyActiveBookings
	}
	roster := make(map[string]Mentor, len(mentors))
	for _, mentor := range mentors {
		roster[mentor.ID] = mentor
	}
	return &RegistryService{
		bookings:    bookings,
		users:       users,
		mentors:     roster,
		slots:       slots,
		policy:      policy,
		location:    location,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// Mentor resolves a configured mentor by id.
func (s *RegistryService) Mentor(id string) (Mentor, bool) {
	mentor, ok := s.mentors[id]
	return mentor, ok
}

// Mentors returns the configured roster sorted by id.
func (s *RegistryService) Mentors() []Mentor {
	out := make([]Mentor, 0, len(s.mentors))
	for _, mentor := range s.mentors {
		out = append(out, mentor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Slots returns the configured time slots.
func (s *RegistryService) Slots() []string {
	out := make([]string, len(s.slots))
	copy(out, s.slots)
	return out
}

// AvailableSlots lists the slots still open for the mentor on the date:
// configured slots minus those bound to an active booking for the pair,
// empty when the mentor has reached capacity.
func (s *RegistryService) AvailableSlots(ctx context.Context, date, mentorID string) ([]string, error) {
	mentor, ok := s.mentors[mentorID]
	if !ok {
		return nil, ErrUnknownMentor
	}

	active, err := s.bookings.ListBookings(ctx, persistence.BookingFilter{MentorID: &mentorID})
	if err != nil {
		return nil, &PersistenceError{Op: "list bookings", Err: err}
	}

	if mentor.MaxStudents > 0 && s.countUpcoming(active) >= mentor.MaxStudents {
		return nil, nil
	}

	taken := make(map[string]bool)
	for _, booking := range active {
		if booking.Key.Date == date {
			taken[booking.Key.TimeSlot] = true
		}
	}

	available := make([]string, 0, len(s.slots))
	for _, slot := range s.slots {
		if !taken[slot] {
			available = append(available, slot)
		}
	}
	return available, nil
}

// countUpcoming applies the capacity policy over the mentor's bookings with a
// future start.
func (s *RegistryService) countUpcoming(bookings []persistence.Booking) int {
	now := s.now().In(s.location)
	if s.policy == CapacityPolicyDistinctStudents {
		students := make(map[int64]bool)
		for _, booking := range bookings {
			if s.isUpcoming(booking, now) {
				students[booking.StudentID] = true
			}
		}
		return len(students)
	}

	count := 0
	for _, booking := range bookings {
		if s.isUpcoming(booking, now) {
			count++
		}
	}
	return count
}

func (s *RegistryService) isUpcoming(booking persistence.Booking, now time.Time) bool {
	start, err := SlotStart(booking.Key.Date, booking.Key.TimeSlot, s.location)
	if err != nil {
		return false
	}
	return start.After(now)
}

// Commit validates the draft and performs the atomic check-and-write. On
// success the booking is durable before return and the student's monotonic
// booking counter has been incremented.
func (s *RegistryService) Commit(ctx context.Context, studentID int64, draft Draft) (persistence.Booking, error) {
	logger := serviceLogger(ctx, s.logger, "registry", "commit", "student_id", studentID)

	if err := s.validateDraft(draft); err != nil {
		return persistence.Booking{}, err
	}

	now := s.now()
	cutoff := now.In(s.location)
	mentor := s.mentors[draft.MentorID]

	booking := persistence.Booking{
		ID: s.idGenerator(),
		Key: persistence.BookingKey{
			Date:     draft.Date,
			MentorID: draft.MentorID,
			TimeSlot: draft.TimeSlot,
		},
		StudentID:       studentID,
		DurationMinutes: int(draft.Duration.Minutes()),
		Company:         draft.Company,
		CreatedAt:       now,
	}

	rule := persistence.CapacityRule{
		MaxActive:        mentor.MaxStudents,
		DistinctStudents: s.policy == CapacityPolicyDistinctStudents,
		CutoffDate:       cutoff.Format(DateLayout),
		CutoffTime:       cutoff.Format("15:04"),
	}

	if err := s.bookings.CreateBooking(ctx, booking, rule); err != nil {
		switch {
		case errors.Is(err, persistence.ErrDuplicateKey):
			logger.Info("commit lost slot race", "key", EncodeBookingKey(booking.Key))
			return persistence.Booking{}, ErrConflict
		case errors.Is(err, persistence.ErrCapacityExceeded):
			return persistence.Booking{}, ErrMentorAtCapacity
		default:
			logger.Error("commit failed", "error", err, "error_kind", "persistence")
			return persistence.Booking{}, &PersistenceError{Op: "create booking", Err: err}
		}
	}

	// The booking is durable; the counter bump sits outside the commit
	// boundary and must never roll it back.
	if _, err := s.users.IncrementTotalBookings(ctx, studentID); err != nil {
		logger.Warn("failed to increment booking counter", "error", err)
	}

	logger.Info("booking committed", "key", EncodeBookingKey(booking.Key), "booking_id", booking.ID)
	return booking, nil
}

func (s *RegistryService) validateDraft(draft Draft) error {
	vErr := &ValidationError{}

	if _, ok := s.mentors[draft.MentorID]; !ok {
		vErr.add("mentor", fmt.Sprintf("unknown mentor %q", draft.MentorID))
	}
	if _, err := time.Parse(DateLayout, draft.Date); err != nil {
		vErr.add("date", fmt.Sprintf("malformed date %q", draft.Date))
	}
	if !s.isConfiguredSlot(draft.TimeSlot) {
		vErr.add("time_slot", fmt.Sprintf("unknown time slot %q", draft.TimeSlot))
	}
	if draft.Duration <= 0 {
		vErr.add("duration", "duration must be positive")
	}

	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

func (s *RegistryService) isConfiguredSlot(slot string) bool {
	for _, candidate := range s.slots {
		if candidate == slot {
			return true
		}
	}
	return false
}

// Get returns the active booking for the key.
func (s *RegistryService) Get(ctx context.Context, key persistence.BookingKey) (persistence.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, key)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Booking{}, ErrNotFound
		}
		return persistence.Booking{}, &PersistenceError{Op: "get booking", Err: err}
	}
	return booking, nil
}

// Cancel deletes the booking and returns the removed record so callers can
// revoke its reminder and fan out notifications. A second cancel on the same
// key reports ErrNotFound with no further mutation.
func (s *RegistryService) Cancel(ctx context.Context, key persistence.BookingKey) (persistence.Booking, error) {
	logger := serviceLogger(ctx, s.logger, "registry", "cancel", "key", EncodeBookingKey(key))

	booking, err := s.bookings.GetBooking(ctx, key)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Booking{}, ErrNotFound
		}
		return persistence.Booking{}, &PersistenceError{Op: "get booking", Err: err}
	}

	if err := s.bookings.DeleteBooking(ctx, key); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Booking{}, ErrNotFound
		}
		return persistence.Booking{}, &PersistenceError{Op: "delete booking", Err: err}
	}

	logger.Info("booking cancelled", "booking_id", booking.ID)
	return booking, nil
}

// ListForStudent returns the student's active bookings ordered by start.
func (s *RegistryService) ListForStudent(ctx context.Context, studentID int64) ([]persistence.Booking, error) {
	bookings, err := s.bookings.ListBookings(ctx, persistence.BookingFilter{StudentID: &studentID})
	if err != nil {
		return nil, &PersistenceError{Op: "list bookings", Err: err}
	}
	return bookings, nil
}

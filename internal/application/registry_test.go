package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/interview-scheduler/internal/persistence"
	. "github.com/example/interview-scheduler/internal/application"
	"github.com/example/interview-scheduler/internal/testfixtures"
)

// bookingStoreStub is an in-memory persistence.BookingRepository mirroring the
// real store's key and capacity semantics.
type bookingStoreStub struct {
	mu       sync.Mutex
	bookings map[persistence.BookingKey]persistence.Booking

	createErr error
	listErr   error
	getErr    error
}

func newBookingStoreStub() *bookingStoreStub {
	return &bookingStoreStub{bookings: make(map[persistence.BookingKey]persistence.Booking)}
}

func (s *bookingStoreStub) CreateBooking(_ context.Context, booking persistence.Booking, rule persistence.CapacityRule) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.MaxActive > 0 {
		count := 0
		students := make(map[int64]bool)
		for _, existing := range s.bookings {
			if existing.Key.MentorID != booking.Key.MentorID {
				continue
			}
			upcoming := existing.Key.Date > rule.CutoffDate ||
				(existing.Key.Date == rule.CutoffDate && existing.Key.TimeSlot[:5] > rule.CutoffTime)
			if !upcoming {
				continue
			}
			count++
			students[existing.StudentID] = true
		}
		if rule.DistinctStudents {
			count = len(students)
		}
		if count >= rule.MaxActive {
			return persistence.ErrCapacityExceeded
		}
	}

	if _, ok := s.bookings[booking.Key]; ok {
		return persistence.ErrDuplicateKey
	}
	s.bookings[booking.Key] = booking
	return nil
}

func (s *bookingStoreStub) GetBooking(_ context.Context, key persistence.BookingKey) (persistence.Booking, error) {
	if s.getErr != nil {
		return persistence.Booking{}, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	booking, ok := s.bookings[key]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return booking, nil
}

func (s *bookingStoreStub) ListBookings(_ context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []persistence.Booking
	for _, booking := range s.bookings {
		if filter.Date != nil && booking.Key.Date != *filter.Date {
			continue
		}
		if filter.MentorID != nil && booking.Key.MentorID != *filter.MentorID {
			continue
		}
		if filter.StudentID != nil && booking.StudentID != *filter.StudentID {
			continue
		}
		out = append(out, booking)
	}
	return out, nil
}

func (s *bookingStoreStub) DeleteBooking(_ context.Context, key persistence.BookingKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[key]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.bookings, key)
	return nil
}

func (s *bookingStoreStub) MarkReminderSent(_ context.Context, key persistence.BookingKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	booking, ok := s.bookings[key]
	if !ok {
		return persistence.ErrNotFound
	}
	booking.ReminderSent = true
	s.bookings[key] = booking
	return nil
}

// userStoreStub is an in-memory persistence.UserRepository.
type userStoreStub struct {
	mu    sync.Mutex
	users map[int64]persistence.User

	listErr error
}

func newUserStoreStub() *userStoreStub {
	return &userStoreStub{users: make(map[int64]persistence.User)}
}

func (s *userStoreStub) CreateUser(_ context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return persistence.ErrDuplicateKey
	}
	s.users[user.ID] = user
	return nil
}

func (s *userStoreStub) GetUser(_ context.Context, id int64) (persistence.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]persistence.User, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []persistence.User
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) IncrementTotalBookings(_ context.Context, id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return 0, persistence.ErrNotFound
	}
	user.TotalBookings++
	s.users[id] = user
	return user.TotalBookings, nil
}

// assignmentStoreStub is an in-memory persistence.AssignmentRepository.
type assignmentStoreStub struct {
	mu          sync.Mutex
	assignments map[int64]persistence.MentorAssignment
}

func newAssignmentStoreStub() *assignmentStoreStub {
	return &assignmentStoreStub{assignments: make(map[int64]persistence.MentorAssignment)}
}

func (s *assignmentStoreStub) UpsertAssignment(_ context.Context, assignment persistence.MentorAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[assignment.UserID] = assignment
	return nil
}

func (s *assignmentStoreStub) GetAssignment(_ context.Context, userID int64) (persistence.MentorAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	assignment, ok := s.assignments[userID]
	if !ok {
		return persistence.MentorAssignment{}, persistence.ErrNotFound
	}
	return assignment, nil
}

func moscow(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}
	return loc
}

func newTestRegistry(t *testing.T, bookings *bookingStoreStub, users *userStoreStub, policy CapacityPolicy) (*RegistryService, *testfixtures.Clock) {
	t.Helper()
	clock := testfixtures.NewClock(time.Time{})
	ids := testfixtures.NewIDGenerator("")
	return NewRegistryService(
		bookings,
		users,
		testfixtures.Mentors(),
		Slots(9, 17),
		policy,
		moscow(t),
		ids.NextFunc(),
		clock.NowFunc(),
		nil,
	), clock
}

func validDraft() Draft {
	return Draft{
		MentorID: "mentor_1",
		Date:     "2025-09-02",
		TimeSlot: "10:00-11:00",
		Duration: time.Hour,
		Company:  "Acme",
	}
}

func TestRegistryService_AvailableSlots(t *testing.T) {
	t.Run("subtracts booked slots", func(t *testing.T) {
		bookings := newBookingStoreStub()
		bookings.bookings[persistence.BookingKey{Date: "2025-09-02", MentorID: "mentor_1", TimeSlot: "10:00-11:00"}] =
			testfixtures.Booking()

		registry, _ := newTestRegistry(t, bookings, newUserStoreStub(), CapacityPolicyActiveBookings)

		available, err := registry.AvailableSlots(context.Background(), "2025-09-02", "mentor_1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(available) != 7 {
			t.Fatalf("expected 7 slots, got %d", len(available))
		}
		for _, slot := range available {
			if slot == "10:00-11:00" {
				t.Fatalf("booked slot still listed as available")
			}
		}
	})

	t.Run("ignores bookings on other dates", func(t *testing.T) {
		bookings := newBookingStoreStub()
		bookings.bookings[persistence.BookingKey{Date: "2025-09-03", MentorID: "mentor_1", TimeSlot: "10:00-11:00"}] =
			testfixtures.Booking(func(b *persistence.Booking) { b.Key.Date = "2025-09-03" })

		registry, _ := newTestRegistry(t, bookings, newUserStoreStub(), CapacityPolicyActiveBookings)

		available, err := registry.AvailableSlots(context.Background(), "2025-09-02", "mentor_1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(available) != 8 {
			t.Fatalf("expected all 8 slots, got %d", len(available))
		}
	})

	t.Run("empty when mentor at capacity", func(t *testing.T) {
		bookings := newBookingStoreStub()
		// mentor_2 has MaxStudents = 2 in the fixture roster.
		for _, slot := range []string{"09:00-10:00", "10:00-11:00"} {
			key := persistence.BookingKey{Date: "2025-09-03", MentorID: "mentor_2", TimeSlot: slot}
			bookings.bookings[key] = testfixtures.Booking(func(b *persistence.Booking) { b.Key = key })
		}

		registry, _ := newTestRegistry(t, bookings, newUserStoreStub(), CapacityPolicyActiveBookings)

		available, err := registry.AvailableSlots(context.Background(), "2025-09-04", "mentor_2")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(available) != 0 {
			t.Fatalf("expected no slots for a mentor at capacity, got %d", len(available))
		}
	})

	t.Run("distinct students policy leaves room for repeat bookings", func(t *testing.T) {
		bookings := newBookingStoreStub()
		for _, slot := range []string{"09:00-10:00", "10:00-11:00"} {
			key := persistence.BookingKey{Date: "2025-09-03", MentorID: "mentor_2", TimeSlot: slot}
			bookings.bookings[key] = testfixtures.Booking(func(b *persistence.Booking) {
				b.Key = key
				b.StudentID = 1001 // same student both times
			})
		}

		registry, _ := newTestRegistry(t, bookings, newUserStoreStub(), CapacityPolicyDistinctStudents)

		available, err := registry.AvailableSlots(context.Background(), "2025-09-04", "mentor_2")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(available) == 0 {
			t.Fatalf("one distinct student must not exhaust a capacity of two")
		}
	})

	t.Run("unknown mentor", func(t *testing.T) {
		registry, _ := newTestRegistry(t, newBookingStoreStub(), newUserStoreStub(), CapacityPolicyActiveBookings)

		_, err := registry.AvailableSlots(context.Background(), "2025-09-02", "mentor_99")
		if !errors.Is(err, ErrUnknownMentor) {
			t.Fatalf("expected ErrUnknownMentor, got %v", err)
		}
	})
}

func TestRegistryService_Commit(t *testing.T) {
	t.Run("stores booking and bumps counter", func(t *testing.T) {
		bookings := newBookingStoreStub()
		users := newUserStoreStub()
		users.users[1001] = testfixtures.User()

		registry, _ := newTestRegistry(t, bookings, users, CapacityPolicyActiveBookings)

		booking, err := registry.Commit(context.Background(), 1001, validDraft())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if booking.ID == "" {
			t.Fatalf("committed booking has no id")
		}
		if booking.Company != "Acme" {
			t.Fatalf("expected company Acme, got %q", booking.Company)
		}

		stored, ok := bookings.bookings[booking.Key]
		if !ok {
			t.Fatalf("booking not present in store")
		}
		if stored.DurationMinutes != 60 {
			t.Fatalf("expected 60 minute duration, got %d", stored.DurationMinutes)
		}
		if users.users[1001].TotalBookings != 1 {
			t.Fatalf("expected counter 1, got %d", users.users[1001].TotalBookings)
		}
	})

	t.Run("conflict on occupied key", func(t *testing.T) {
		bookings := newBookingStoreStub()
		bookings.bookings[persistence.BookingKey{Date: "2025-09-02", MentorID: "mentor_1", TimeSlot: "10:00-11:00"}] =
			testfixtures.Booking()
		users := newUserStoreStub()
		users.users[1001] = testfixtures.User()

		registry, _ := newTestRegistry(t, bookings, users, CapacityPolicyActiveBookings)

		_, err := registry.Commit(context.Background(), 1001, validDraft())
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		if users.users[1001].TotalBookings != 0 {
			t.Fatalf("counter must not move on a failed commit")
		}
	})

	t.Run("mentor at capacity", func(t *testing.T) {
		bookings := newBookingStoreStub()
		for _, slot := range []string{"09:00-10:00", "11:00-12:00"} {
			key := persistence.BookingKey{Date: "2025-09-03", MentorID: "mentor_2", TimeSlot: slot}
			bookings.bookings[key] = testfixtures.Booking(func(b *persistence.Booking) { b.Key = key })
		}
		users := newUserStoreStub()
		users.users[1001] = testfixtures.User()

		registry, _ := newTestRegistry(t, bookings, users, CapacityPolicyActiveBookings)

		draft := validDraft()
		draft.MentorID = "mentor_2"
		_, err := registry.Commit(context.Background(), 1001, draft)
		if !errors.Is(err, ErrMentorAtCapacity) {
			t.Fatalf("expected ErrMentorAtCapacity, got %v", err)
		}
	})

	t.Run("validation failures mutate nothing", func(t *testing.T) {
		bookings := newBookingStoreStub()
		registry, _ := newTestRegistry(t, bookings, newUserStoreStub(), CapacityPolicyActiveBookings)

		cases := map[string]func(*Draft){
			"unknown mentor":   func(d *Draft) { d.MentorID = "mentor_99" },
			"malformed date":   func(d *Draft) { d.Date = "02.09.2025" },
			"unknown slot":     func(d *Draft) { d.TimeSlot = "23:00-23:30" },
			"missing duration": func(d *Draft) { d.Duration = 0 },
		}
		for name, corrupt := range cases {
			t.Run(name, func(t *testing.T) {
				draft := validDraft()
				corrupt(&draft)

				_, err := registry.Commit(context.Background(), 1001, draft)
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if len(bookings.bookings) != 0 {
					t.Fatalf("validation failure must not write")
				}
			})
		}
	})

	t.Run("persistence failure wraps and aborts", func(t *testing.T) {
		bookings := newBookingStoreStub()
		bookings.createErr = errors.New("disk full")
		users := newUserStoreStub()
		users.users[1001] = testfixtures.User()

		registry, _ := newTestRegistry(t, bookings, users, CapacityPolicyActiveBookings)

		_, err := registry.Commit(context.Background(), 1001, validDraft())
		var pErr *PersistenceError
		if !errors.As(err, &pErr) {
			t.Fatalf("expected PersistenceError, got %v", err)
		}
		if users.users[1001].TotalBookings != 0 {
			t.Fatalf("counter must not move when the write failed")
		}
	})
}

func TestRegistryService_Cancel(t *testing.T) {
	t.Run("removes booking and returns it", func(t *testing.T) {
		bookings := newBookingStoreStub()
		fixture := testfixtures.Booking()
		bookings.bookings[fixture.Key] = fixture

		registry, _ := newTestRegistry(t, bookings, newUserStoreStub(), CapacityPolicyActiveBookings)

		removed, err := registry.Cancel(context.Background(), fixture.Key)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if removed.ID != fixture.ID {
			t.Fatalf("expected removed booking %q, got %q", fixture.ID, removed.ID)
		}
		if len(bookings.bookings) != 0 {
			t.Fatalf("booking still present after cancel")
		}
	})

	t.Run("second cancel reports not found with no mutation", func(t *testing.T) {
		bookings := newBookingStoreStub()
		fixture := testfixtures.Booking()
		bookings.bookings[fixture.Key] = fixture

		registry, _ := newTestRegistry(t, bookings, newUserStoreStub(), CapacityPolicyActiveBookings)

		if _, err := registry.Cancel(context.Background(), fixture.Key); err != nil {
			t.Fatalf("first cancel failed: %v", err)
		}
		_, err := registry.Cancel(context.Background(), fixture.Key)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRegistryService_CounterMonotonic(t *testing.T) {
	bookings := newBookingStoreStub()
	users := newUserStoreStub()
	users.users[1001] = testfixtures.User()

	registry, _ := newTestRegistry(t, bookings, users, CapacityPolicyActiveBookings)
	ctx := context.Background()

	previous := 0
	slots := []string{"09:00-10:00", "10:00-11:00", "11:00-12:00"}
	for _, slot := range slots {
		draft := validDraft()
		draft.TimeSlot = slot
		booking, err := registry.Commit(ctx, 1001, draft)
		if err != nil {
			t.Fatalf("commit failed: %v", err)
		}
		if users.users[1001].TotalBookings <= previous {
			t.Fatalf("counter did not increase: %d", users.users[1001].TotalBookings)
		}
		previous = users.users[1001].TotalBookings

		if _, err := registry.Cancel(ctx, booking.Key); err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		if users.users[1001].TotalBookings != previous {
			t.Fatalf("cancel must not decrement the counter")
		}
	}
}

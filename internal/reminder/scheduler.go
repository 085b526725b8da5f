// Package reminder runs one-shot timed jobs that warn students and mentors
// ahead of an interview. The scheduler owns no persistent state of its own:
// jobs are rebuilt from the booking store on restart, and the booking row's
// reminder_sent flag is what makes catch-up firing exactly-once across any
// number of restarts.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/interview-scheduler/internal/persistence"
)

// Notifier receives the fired reminder for fan-out to student and mentor.
type Notifier interface {
	ReminderFired(ctx context.Context, booking persistence.Booking)
}

// Scheduler registers, revokes and rebuilds reminder timers. It is explicitly
// constructed and owned by the process; there is no package-level timer state.
type Scheduler struct {
	mu   sync.Mutex
	jobs map[persistence.BookingKey]*time.Timer

	bookings persistence.BookingRepository
	notifier Notifier
	location *time.Location
	lead     time.Duration
	now      func() time.Time
	logger   *slog.Logger

	firing sync.WaitGroup
}

// New constructs a scheduler firing lead ahead of each booking's start in the
// given interview timezone.
func New(bookings persistence.BookingRepository, notifier Notifier, location *time.Location, lead time.Duration, now func() time.Time, logger *slog.Logger) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	if lead <= 0 {
		lead = time.Hour
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		jobs:     make(map[persistence.BookingKey]*time.Timer),
		bookings: bookings,
		notifier: notifier,
		location: location,
		lead:     lead,
		now:      now,
		logger:   logger,
	}
}

// FireTime computes when the reminder for a booking fires: slot start minus
// the lead, in the interview timezone.
func FireTime(booking persistence.Booking, location *time.Location, lead time.Duration) (time.Time, error) {
	if len(booking.Key.TimeSlot) < 5 {
		return time.Time{}, fmt.Errorf("malformed time slot %q", booking.Key.TimeSlot)
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", booking.Key.Date+" "+booking.Key.TimeSlot[:5], location)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed booking start: %w", err)
	}
	return start.Add(-lead), nil
}

// Schedule registers exactly one job for the booking. A fire time that has
// already elapsed fires immediately instead of being dropped. Re-scheduling
// an already registered key replaces the pending timer. The call never
// blocks on delivery.
func (s *Scheduler) Schedule(booking persistence.Booking) {
	if booking.ReminderSent {
		return
	}

	fireAt, err := FireTime(booking, s.location, s.lead)
	if err != nil {
		s.logger.Error("cannot schedule reminder", "key", keyString(booking.Key), "error", err)
		return
	}

	delay := fireAt.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	key := booking.Key

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.jobs[key]; ok {
		existing.Stop()
	}
	s.jobs[key] = time.AfterFunc(delay, func() { s.fire(key) })

	s.logger.Info("reminder scheduled", "key", keyString(key), "fire_at", fireAt.Format(time.RFC3339))
}

// Cancel revokes a pending job before it fires if possible. A job that is
// concurrently firing re-checks the booking store, so the race is safe.
func (s *Scheduler) Cancel(key persistence.BookingKey) {
	s.mu.Lock()
	timer, ok := s.jobs[key]
	if ok {
		timer.Stop()
		delete(s.jobs, key)
	}
	s.mu.Unlock()

	if ok {
		s.logger.Info("reminder revoked", "key", keyString(key))
	}
}

// Rebuild re-scans active bookings and recreates their jobs after a restart.
// Bookings whose fire time elapsed during downtime fire once through the same
// re-check path; bookings already marked reminder_sent are skipped, so a
// later restart cannot duplicate a catch-up.
func (s *Scheduler) Rebuild(ctx context.Context) error {
	bookings, err := s.bookings.ListBookings(ctx, persistence.BookingFilter{})
	if err != nil {
		return fmt.Errorf("failed to list bookings for rebuild: %w", err)
	}

	rebuilt := 0
	for _, booking := range bookings {
		if booking.ReminderSent {
			continue
		}
		s.Schedule(booking)
		rebuilt++
	}

	s.logger.Info("reminder jobs rebuilt", "bookings", len(bookings), "jobs", rebuilt)
	return nil
}

// Pending reports the number of registered jobs that have not fired.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Stop revokes every pending job and waits for in-flight firings to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for key, timer := range s.jobs {
		timer.Stop()
		delete(s.jobs, key)
	}
	s.mu.Unlock()

	s.firing.Wait()
}

// fire runs on the timer goroutine. It re-validates that the booking is still
// active and unreminded before sending, then marks the reminder sent durably
// ahead of delivery. Single-shot: a delivery failure is logged by the
// notifier path, never retried.
func (s *Scheduler) fire(key persistence.BookingKey) {
	s.firing.Add(1)
	defer s.firing.Done()

	s.mu.Lock()
	delete(s.jobs, key)
	s.mu.Unlock()

	ctx := context.Background()

	booking, err := s.bookings.GetBooking(ctx, key)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			// Cancelled while the job was firing; stay silent.
			s.logger.Info("reminder skipped, booking gone", "key", keyString(key))
			return
		}
		s.logger.Error("reminder fire failed to load booking", "key", keyString(key), "error", err)
		return
	}
	if booking.ReminderSent {
		return
	}

	// Mark before sending: across a crash between mark and send the reminder
	// is lost rather than duplicated, matching the single-shot contract.
	if err := s.bookings.MarkReminderSent(ctx, key); err != nil {
		s.logger.Error("failed to mark reminder sent", "key", keyString(key), "error", err)
		return
	}

	s.logger.Info("reminder fired", "key", keyString(key), "student_id", booking.StudentID)
	s.notifier.ReminderFired(ctx, booking)
}

func keyString(key persistence.BookingKey) string {
	return key.Date + "|" + key.MentorID + "|" + key.TimeSlot
}

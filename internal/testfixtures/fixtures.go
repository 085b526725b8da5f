// Package testfixtures supplies deterministic clocks, id generators and
// domain builders shared by the test suites.
package testfixtures

import (
	"context"
	"sync"
	"time"

	"github.com/example/interview-scheduler/internal/application"
	"github.com/example/interview-scheduler/internal/persistence"
)

// Mentors returns a small roster matching the default configuration shape.
func Mentors() []application.Mentor {
	return []application.Mentor{
		{ID: "mentor_1", Name: "Backend Interviewer", MaxStudents: 3, Specialization: "backend"},
		{ID: "mentor_2", Name: "Frontend Interviewer", MaxStudents: 2, Specialization: "frontend"},
	}
}

// Booking builds an active booking with sensible defaults, overridable via
// the mutators.
func Booking(mutators ...func(*persistence.Booking)) persistence.Booking {
	booking := persistence.Booking{
		ID: "booking-1",
		Key: persistence.BookingKey{
			Date:     "2025-09-02",
			MentorID: "mentor_1",
			TimeSlot: "10:00-11:00",
		},
		StudentID:       1001,
		DurationMinutes: 60,
		Company:         "Acme",
		CreatedAt:       ReferenceTime(),
	}
	for _, mutate := range mutators {
		mutate(&booking)
	}
	return booking
}

// User builds a registered student, overridable via the mutators.
func User(mutators ...func(*persistence.User)) persistence.User {
	user := persistence.User{
		ID:           1001,
		Username:     "student01",
		FirstName:    "Sam",
		RegisteredAt: ReferenceTime(),
	}
	for _, mutate := range mutators {
		mutate(&user)
	}
	return user
}

// RecordingNotifier captures outbound notifications and can be told to fail
// for selected recipients.
type RecordingNotifier struct {
	mu       sync.Mutex
	sent     []application.Notification
	failFor  map[string]error
	delivery chan application.Notification
}

// NewRecordingNotifier constructs a notifier with a buffered delivery channel
// so tests can wait for asynchronous sends.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{
		failFor:  make(map[string]error),
		delivery: make(chan application.Notification, 64),
	}
}

// FailFor makes deliveries to the recipient id fail with err.
func (n *RecordingNotifier) FailFor(recipientID string, err error) {
	n.mu.Lock()
	n.failFor[recipientID] = err
	n.mu.Unlock()
}

// Send implements application.Notifier.
func (n *RecordingNotifier) Send(_ context.Context, notification application.Notification) error {
	n.mu.Lock()
	err := n.failFor[notification.RecipientID]
	if err == nil {
		n.sent = append(n.sent, notification)
	}
	n.mu.Unlock()

	if err != nil {
		return err
	}

	select {
	case n.delivery <- notification:
	default:
	}
	return nil
}

// Sent returns a copy of the successfully delivered notifications.
func (n *RecordingNotifier) Sent() []application.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]application.Notification, len(n.sent))
	copy(out, n.sent)
	return out
}

// SentTo filters delivered notifications by recipient class.
func (n *RecordingNotifier) SentTo(class application.RecipientClass) []application.Notification {
	var out []application.Notification
	for _, notification := range n.Sent() {
		if notification.Class == class {
			out = append(out, notification)
		}
	}
	return out
}

// WaitForDelivery blocks until a notification is delivered or the timeout
// elapses.
func (n *RecordingNotifier) WaitForDelivery(timeout time.Duration) (application.Notification, bool) {
	select {
	case notification := <-n.delivery:
		return notification, true
	case <-time.After(timeout):
		return application.Notification{}, false
	}
}

package application

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/example/interview-scheduler/internal/persistence"
)

// LifecycleEvent names a booking lifecycle moment routed by the dispatcher.
type LifecycleEvent string

const (
	LifecycleBookingCreated            LifecycleEvent = "booking_created"
	LifecycleBookingCancelledByStudent LifecycleEvent = "booking_cancelled_by_student"
	LifecycleBookingCancelledByMentor  LifecycleEvent = "booking_cancelled_by_mentor"
	LifecycleReminderFired             LifecycleEvent = "reminder_fired"
)

// routingTable fixes the audience for each lifecycle event.
var routingTable = map[LifecycleEvent][]RecipientClass{
	LifecycleBookingCreated:            {RecipientMentor, RecipientAdmin},
	LifecycleBookingCancelledByStudent: {RecipientMentor, RecipientAdmin},
	LifecycleBookingCancelledByMentor:  {RecipientStudent, RecipientAdmin},
	LifecycleReminderFired:             {RecipientStudent, RecipientMentor},
}

// Dispatcher fans booking lifecycle events out to their audiences. Every
// delivery is independent and best-effort: a failed send is logged and never
// rolls back the mutation that triggered it.
type Dispatcher struct {
	notifier     Notifier
	users        persistence.UserRepository
	adminChannel string
	logger       *slog.Logger
}

// NewDispatcher wires the delivery collaborator and the admin audience.
func NewDispatcher(notifier Notifier, users persistence.UserRepository, adminChannel string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		notifier:     notifier,
		users:        users,
		adminChannel: adminChannel,
		logger:       defaultLogger(logger),
	}
}

// BookingCreated notifies the mentor and the admin channel.
func (d *Dispatcher) BookingCreated(ctx context.Context, booking persistence.Booking) {
	message := fmt.Sprintf(
		"New interview booking: %s %s with %s (student %d, company %q)",
		booking.Key.Date, booking.Key.TimeSlot, booking.Key.MentorID, booking.StudentID, booking.Company,
	)
	d.fanOut(ctx, LifecycleBookingCreated, booking, message)
}

// BookingCancelled notifies the audience determined by who cancelled.
func (d *Dispatcher) BookingCancelled(ctx context.Context, booking persistence.Booking, cancelledBy Actor) {
	event := LifecycleBookingCancelledByStudent
	if cancelledBy == ActorMentor {
		event = LifecycleBookingCancelledByMentor
	}
	message := fmt.Sprintf(
		"Interview cancelled by %s: %s %s with %s (student %d)",
		cancelledBy, booking.Key.Date, booking.Key.TimeSlot, booking.Key.MentorID, booking.StudentID,
	)
	d.fanOut(ctx, event, booking, message)
}

// ReminderFired notifies the student and the mentor about the upcoming
// interview.
func (d *Dispatcher) ReminderFired(ctx context.Context, booking persistence.Booking) {
	message := fmt.Sprintf(
		"Reminder: interview %s %s with %s starts in one hour",
		booking.Key.Date, booking.Key.TimeSlot, booking.Key.MentorID,
	)
	d.fanOut(ctx, LifecycleReminderFired, booking, message)
}

func (d *Dispatcher) fanOut(ctx context.Context, event LifecycleEvent, booking persistence.Booking, message string) {
	logger := serviceLogger(ctx, d.logger, "dispatcher", string(event), "key", EncodeBookingKey(booking.Key))

	for _, class := range routingTable[event] {
		notification := Notification{
			Class:       class,
			RecipientID: d.recipientID(class, booking),
			Message:     message,
		}
		if err := d.notifier.Send(ctx, notification); err != nil {
			// Delivery failures never block other recipients.
			logger.Error("delivery failed", "recipient_class", class, "recipient_id", notification.RecipientID, "error", err)
			continue
		}
		logger.Info("notification delivered", "recipient_class", class, "recipient_id", notification.RecipientID)
	}
}

func (d *Dispatcher) recipientID(class RecipientClass, booking persistence.Booking) string {
	switch class {
	case RecipientStudent:
		return strconv.FormatInt(booking.StudentID, 10)
	case RecipientMentor:
		return booking.Key.MentorID
	default:
		return d.adminChannel
	}
}

// Broadcast enumerates all known users and issues one notification per user.
// Individual delivery failures are logged and skipped; the returned count is
// the number of successful sends.
func (d *Dispatcher) Broadcast(ctx context.Context, message string) (int, error) {
	logger := serviceLogger(ctx, d.logger, "dispatcher", "broadcast")

	users, err := d.users.ListUsers(ctx)
	if err != nil {
		return 0, &PersistenceError{Op: "list users", Err: err}
	}

	sent := 0
	for _, user := range users {
		notification := Notification{
			Class:       RecipientStudent,
			RecipientID: strconv.FormatInt(user.ID, 10),
			Message:     message,
		}
		if err := d.notifier.Send(ctx, notification); err != nil {
			logger.Error("broadcast delivery failed", "user_id", user.ID, "error", err)
			continue
		}
		sent++
	}

	logger.Info("broadcast complete", "users", len(users), "sent", sent)
	return sent, nil
}

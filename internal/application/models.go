package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/interview-scheduler/internal/persistence"
)

// Mentor is a supply-side interviewer with finite concurrent booking capacity.
// Mentors come from static configuration and are not user-mutable.
type Mentor struct {
	ID             string
	Name           string
	MaxStudents    int
	Specialization string
}

// CapacityPolicy selects how a mentor's booking limit is counted at commit
// time.
type CapacityPolicy string

const (
	// CapacityPolicyActiveBookings counts the mentor's active upcoming
	// bookings, regardless of how many distinct students hold them.
	CapacityPolicyActiveBookings CapacityPolicy = "active-bookings"
	// CapacityPolicyDistinctStudents counts distinct students among the
	// mentor's active upcoming bookings.
	CapacityPolicyDistinctStudents CapacityPolicy = "distinct-students"
)

// ParseCapacityPolicy validates a configured policy name.
func ParseCapacityPolicy(value string) (CapacityPolicy, error) {
	switch CapacityPolicy(value) {
	case CapacityPolicyActiveBookings, CapacityPolicyDistinctStudents:
		return CapacityPolicy(value), nil
	case "":
		return CapacityPolicyActiveBookings, nil
	}
	return "", fmt.Errorf("unknown capacity policy %q", value)
}

// State identifies the step a conversation session is waiting on.
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingMentor       State = "awaiting_mentor"
	StateAwaitingDate         State = "awaiting_date"
	StateAwaitingTime         State = "awaiting_time"
	StateAwaitingDuration     State = "awaiting_duration"
	StateAwaitingCompany      State = "awaiting_company"
	StateAwaitingConfirmation State = "awaiting_confirmation"
)

// EventType tags an inbound event. Dispatch is driven by an explicit
// {state, event} transition table rather than payload string matching.
type EventType string

const (
	// EventStartFlow begins a booking flow. Arriving mid-flow it discards the
	// stale draft first.
	EventStartFlow EventType = "start_flow"
	// EventAbort cancels the in-progress flow from any state.
	EventAbort EventType = "abort"
	// EventSelectMentor carries a mentor id payload.
	EventSelectMentor EventType = "select_mentor"
	// EventSelectDate carries a "2006-01-02" date payload.
	EventSelectDate EventType = "select_date"
	// EventSelectTime carries a "HH:MM-HH:MM" slot payload.
	EventSelectTime EventType = "select_time"
	// EventSelectDuration carries a Go duration payload such as "1h".
	EventSelectDuration EventType = "select_duration"
	// EventSetCompany carries the free-form company/notes payload.
	EventSetCompany EventType = "set_company"
	// EventConfirm commits the draft. The only transition that reaches the
	// booking store.
	EventConfirm EventType = "confirm"
	// EventCancelBooking cancels an existing booking. The payload is a
	// booking key in "date|mentor|slot" form. Handled outside the flow table.
	EventCancelBooking EventType = "cancel_booking"
)

// Event is the transport-agnostic inbound tuple.
type Event struct {
	UserID    int64
	Type      EventType
	Payload   string
	Username  string
	FirstName string
}

// Draft accumulates the in-progress booking selection.
type Draft struct {
	MentorID string
	Date     string
	TimeSlot string
	Duration time.Duration
	Company  string
}

// Reply tells the transport collaborator what to render next.
type Reply struct {
	State   State
	Prompt  string
	Options []string
	// Booking is set on the commit transition.
	Booking *persistence.Booking
}

// Actor identifies who initiated a cancellation; it drives the notification
// routing table.
type Actor string

const (
	ActorStudent Actor = "student"
	ActorMentor  Actor = "mentor"
)

// RecipientClass names a notification audience.
type RecipientClass string

const (
	RecipientStudent RecipientClass = "student"
	RecipientMentor  RecipientClass = "mentor"
	RecipientAdmin   RecipientClass = "admin"
)

// Notification is the outbound request handed to the delivery collaborator.
type Notification struct {
	Class       RecipientClass
	RecipientID string
	Message     string
}

// Notifier delivers a single notification. Implementations belong to the
// transport layer and may fail independently per recipient.
type Notifier interface {
	Send(ctx context.Context, notification Notification) error
}

// EncodeBookingKey renders a key as an event payload.
func EncodeBookingKey(key persistence.BookingKey) string {
	return strings.Join([]string{key.Date, key.MentorID, key.TimeSlot}, "|")
}

// ParseBookingKey parses a "date|mentor|slot" payload.
func ParseBookingKey(payload string) (persistence.BookingKey, error) {
	parts := strings.Split(payload, "|")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return persistence.BookingKey{}, fmt.Errorf("malformed booking key %q", payload)
	}
	return persistence.BookingKey{Date: parts[0], MentorID: parts[1], TimeSlot: parts[2]}, nil
}

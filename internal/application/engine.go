package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/interview-scheduler/internal/persistence"
)

// ReminderScheduler is the timer facility the engine registers jobs with.
// Both calls are fast and non-blocking from the event-handling path.
type ReminderScheduler interface {
	Schedule(booking persistence.Booking)
	Cancel(key persistence.BookingKey)
}

// transitionFunc applies one {state, event} table entry. The session mutex is
// held for the duration of the call.
type transitionFunc func(ctx context.Context, sess *session, ev Event) (Reply, error)

// Engine is the single inbound entry point: it turns structured
// {user, event, payload} tuples into session transitions, booking commits,
// reminder jobs and notification fan-out.
type Engine struct {
	sessions    *SessionManager
	registry    *RegistryService
	assignments *AssignmentService
	dispatcher  *Dispatcher
	scheduler   ReminderScheduler
	stats       *StatisticsService
	users       persistence.UserRepository
	location    *time.Location
	now         func() time.Time
	logger      *slog.Logger

	transitions map[State]map[EventType]transitionFunc
}

// NewEngine wires the collaborating services and builds the transition table.
func NewEngine(
	registry *RegistryService,
	assignments *AssignmentService,
	dispatcher *Dispatcher,
	scheduler ReminderScheduler,
	stats *StatisticsService,
	users persistence.UserRepository,
	location *time.Location,
	now func() time.Time,
	logger *slog.Logger,
) *Engine {
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.UTC
	}
	e := &Engine{
		sessions:    NewSessionManager(),
		registry:    registry,
		assignments: assignments,
		dispatcher:  dispatcher,
		scheduler:   scheduler,
		stats:       stats,
		users:       users,
		location:    location,
		now:         now,
		logger:      defaultLogger(logger),
	}
	e.transitions = map[State]map[EventType]transitionFunc{
		StateAwaitingMentor:       {EventSelectMentor: e.selectMentor},
		StateAwaitingDate:         {EventSelectDate: e.selectDate},
		StateAwaitingTime:         {EventSelectTime: e.selectTime},
		StateAwaitingDuration:     {EventSelectDuration: e.selectDuration},
		StateAwaitingCompany:      {EventSetCompany: e.setCompany},
		StateAwaitingConfirmation: {EventConfirm: e.confirm},
	}
	return e
}

// HandleEvent processes one inbound event for one user. Transitions for a
// single user are serialised; users never block each other.
func (e *Engine) HandleEvent(ctx context.Context, ev Event) (Reply, error) {
	logger := serviceLogger(ctx, e.logger, "engine", "handle_event", "user_id", ev.UserID, "event", string(ev.Type))

	if err := e.ensureUser(ctx, ev); err != nil {
		logger.Error("failed to ensure user", "error", err)
		return Reply{}, err
	}

	switch ev.Type {
	case EventStartFlow:
		// A fresh start always discards any stale draft.
		sess := e.sessions.acquire(ev.UserID)
		defer sess.mu.Unlock()
		sess.reset()
		return e.startFlow(ctx, sess, ev)
	case EventAbort:
		sess := e.sessions.acquire(ev.UserID)
		defer sess.mu.Unlock()
		sess.reset()
		return Reply{State: StateIdle, Prompt: "Booking flow cancelled."}, nil
	case EventCancelBooking:
		key, err := ParseBookingKey(ev.Payload)
		if err != nil {
			return Reply{}, validationFailure("payload", err.Error())
		}
		booking, err := e.CancelBooking(ctx, key, ActorStudent, ev.UserID)
		if err != nil {
			return Reply{}, err
		}
		return Reply{
			State:   e.sessions.State(ev.UserID),
			Prompt:  fmt.Sprintf("Booking %s cancelled.", EncodeBookingKey(booking.Key)),
			Booking: &booking,
		}, nil
	}

	sess := e.sessions.acquire(ev.UserID)
	defer sess.mu.Unlock()

	handlers, ok := e.transitions[sess.state]
	if !ok {
		return Reply{}, validationFailure("event", fmt.Sprintf("no booking flow in progress; event %q ignored", ev.Type))
	}
	apply, ok := handlers[ev.Type]
	if !ok {
		return Reply{}, validationFailure("event", fmt.Sprintf("event %q is out of sequence in state %q", ev.Type, sess.state))
	}

	reply, err := apply(ctx, sess, ev)
	if err != nil {
		logger.Info("transition rejected", "state", string(sess.state), "error_kind", ErrorKind(err))
		return Reply{}, err
	}
	return reply, nil
}

// ensureUser creates the user row on first interaction. Users are never
// deleted.
func (e *Engine) ensureUser(ctx context.Context, ev Event) error {
	_, err := e.users.GetUser(ctx, ev.UserID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return &PersistenceError{Op: "get user", Err: err}
	}

	user := persistence.User{
		ID:           ev.UserID,
		Username:     ev.Username,
		FirstName:    ev.FirstName,
		RegisteredAt: e.now(),
	}
	if err := e.users.CreateUser(ctx, user); err != nil {
		// A concurrent first event may have won the insert.
		if errors.Is(err, persistence.ErrDuplicateKey) {
			return nil
		}
		return &PersistenceError{Op: "create user", Err: err}
	}
	return nil
}

func (e *Engine) startFlow(ctx context.Context, sess *session, ev Event) (Reply, error) {
	sess.state = StateAwaitingMentor

	options := make([]string, 0, len(e.registry.Mentors()))
	for _, mentor := range e.registry.Mentors() {
		options = append(options, mentor.ID)
	}

	prompt := "Select a mentor for your interview."
	if mentor, err := e.assignments.Resolve(ctx, ev.UserID); err == nil {
		prompt = fmt.Sprintf("Select a mentor for your interview (currently assigned: %s).", mentor.ID)
	}

	return Reply{State: sess.state, Prompt: prompt, Options: options}, nil
}

func (e *Engine) selectMentor(ctx context.Context, sess *session, ev Event) (Reply, error) {
	mentorID := strings.TrimSpace(ev.Payload)
	if _, ok := e.registry.Mentor(mentorID); !ok {
		return Reply{}, validationFailure("mentor", fmt.Sprintf("unknown mentor %q", ev.Payload))
	}

	// Selecting a mentor inside the flow also updates the permanent
	// assignment.
	if err := e.assignments.Assign(ctx, ev.UserID, mentorID); err != nil {
		return Reply{}, err
	}

	sess.draft.MentorID = mentorID
	sess.state = StateAwaitingDate

	return Reply{
		State:   sess.state,
		Prompt:  "Pick an interview date.",
		Options: AvailableDates(e.now().In(e.location), 5),
	}, nil
}

func (e *Engine) selectDate(ctx context.Context, sess *session, ev Event) (Reply, error) {
	date := strings.TrimSpace(ev.Payload)
	parsed, err := time.ParseInLocation(DateLayout, date, e.location)
	if err != nil {
		return Reply{}, validationFailure("date", fmt.Sprintf("malformed date %q", ev.Payload))
	}

	today, _ := time.ParseInLocation(DateLayout, e.now().In(e.location).Format(DateLayout), e.location)
	if parsed.Before(today) {
		return Reply{}, validationFailure("date", fmt.Sprintf("date %q is in the past", date))
	}

	available, err := e.registry.AvailableSlots(ctx, date, sess.draft.MentorID)
	if err != nil {
		return Reply{}, err
	}
	if len(available) == 0 {
		// Stay on date selection; the mentor has no openings that day.
		return Reply{
			State:   sess.state,
			Prompt:  fmt.Sprintf("No free slots on %s, pick another date.", date),
			Options: AvailableDates(e.now().In(e.location), 5),
		}, nil
	}

	sess.draft.Date = date
	sess.state = StateAwaitingTime

	return Reply{State: sess.state, Prompt: "Pick a time slot.", Options: available}, nil
}

func (e *Engine) selectTime(ctx context.Context, sess *session, ev Event) (Reply, error) {
	slot := strings.TrimSpace(ev.Payload)

	available, err := e.registry.AvailableSlots(ctx, sess.draft.Date, sess.draft.MentorID)
	if err != nil {
		return Reply{}, err
	}
	found := false
	for _, candidate := range available {
		if candidate == slot {
			found = true
			break
		}
	}
	if !found {
		return Reply{}, validationFailure("time_slot", fmt.Sprintf("slot %q is not available", ev.Payload))
	}

	sess.draft.TimeSlot = slot
	sess.state = StateAwaitingDuration

	return Reply{
		State:   sess.state,
		Prompt:  "How long should the interview run?",
		Options: []string{"30m", "1h", "1h30m", "2h"},
	}, nil
}

func (e *Engine) selectDuration(_ context.Context, sess *session, ev Event) (Reply, error) {
	duration, err := time.ParseDuration(strings.TrimSpace(ev.Payload))
	if err != nil {
		return Reply{}, validationFailure("duration", fmt.Sprintf("malformed duration %q", ev.Payload))
	}
	if duration <= 0 || duration > 4*time.Hour {
		return Reply{}, validationFailure("duration", fmt.Sprintf("duration %q out of range", ev.Payload))
	}

	sess.draft.Duration = duration
	sess.state = StateAwaitingCompany

	return Reply{State: sess.state, Prompt: "Which company is the interview for? Add any notes."}, nil
}

func (e *Engine) setCompany(_ context.Context, sess *session, ev Event) (Reply, error) {
	company := strings.TrimSpace(ev.Payload)
	if len(company) > 200 {
		return Reply{}, validationFailure("company", "company/notes must not exceed 200 characters")
	}

	sess.draft.Company = company
	sess.state = StateAwaitingConfirmation

	summary := fmt.Sprintf(
		"Confirm your booking: %s %s with %s, duration %s, company %q.",
		sess.draft.Date, sess.draft.TimeSlot, sess.draft.MentorID, sess.draft.Duration, sess.draft.Company,
	)
	return Reply{State: sess.state, Prompt: summary, Options: []string{"confirm", "abort"}}, nil
}

// confirm is the only transition that touches the booking store.
func (e *Engine) confirm(ctx context.Context, sess *session, ev Event) (Reply, error) {
	booking, err := e.registry.Commit(ctx, ev.UserID, sess.draft)
	if err != nil {
		switch {
		case errors.Is(err, ErrConflict):
			// The slot was taken between query and commit; send the user
			// back to slot selection.
			sess.draft.TimeSlot = ""
			sess.state = StateAwaitingTime
			return Reply{}, err
		case errors.Is(err, ErrMentorAtCapacity):
			sess.reset()
			return Reply{}, err
		default:
			// Persistence failures leave the session intact so the user can
			// retry the confirmation.
			return Reply{}, err
		}
	}

	// Commit succeeded; the session is done. Scheduling and fan-out are
	// sequenced after the durable write and never roll it back.
	sess.reset()
	e.scheduler.Schedule(booking)
	e.dispatcher.BookingCreated(ctx, booking)

	return Reply{
		State:   StateIdle,
		Prompt:  fmt.Sprintf("Booking confirmed: %s %s with %s.", booking.Key.Date, booking.Key.TimeSlot, booking.Key.MentorID),
		Booking: &booking,
	}, nil
}

// CancelBooking removes a booking, revokes its reminder and fans out the
// cancellation. Students can only cancel their own bookings; the mentor path
// (requesterID 0) is used by the administrative surface.
func (e *Engine) CancelBooking(ctx context.Context, key persistence.BookingKey, actor Actor, requesterID int64) (persistence.Booking, error) {
	if actor == ActorStudent {
		booking, err := e.registry.Get(ctx, key)
		if err != nil {
			return persistence.Booking{}, err
		}
		if booking.StudentID != requesterID {
			// Do not leak other students' bookings.
			return persistence.Booking{}, ErrNotFound
		}
	}

	booking, err := e.registry.Cancel(ctx, key)
	if err != nil {
		return persistence.Booking{}, err
	}

	e.scheduler.Cancel(key)
	e.dispatcher.BookingCancelled(ctx, booking, actor)
	return booking, nil
}

// ListBookings returns the student's active bookings.
func (e *Engine) ListBookings(ctx context.Context, studentID int64) ([]persistence.Booking, error) {
	return e.registry.ListForStudent(ctx, studentID)
}

// StatsForStudent returns booking statistics for the student.
func (e *Engine) StatsForStudent(ctx context.Context, studentID int64) (Stats, error) {
	return e.stats.ForStudent(ctx, studentID)
}

// Broadcast sends one notification to every known user.
func (e *Engine) Broadcast(ctx context.Context, message string) (int, error) {
	return e.dispatcher.Broadcast(ctx, message)
}

// SessionState exposes the user's current conversation state, mainly for
// transports that render step-specific UI.
func (e *Engine) SessionState(userID int64) State {
	return e.sessions.State(userID)
}

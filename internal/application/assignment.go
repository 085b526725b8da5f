package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/interview-scheduler/internal/persistence"
)

// AssignmentService maintains the permanent student to mentor mapping. The
// mapping is freely reassignable and never consumes mentor capacity.
type AssignmentService struct {
	assignments persistence.AssignmentRepository
	mentors     map[string]Mentor
	now         func() time.Time
	logger      *slog.Logger
}

// NewAssignmentService wires dependencies for assignment operations.
func NewAssignmentService(assignments persistence.AssignmentRepository, mentors []Mentor, now func() time.Time, logger *slog.Logger) *AssignmentService {
	if now == nil {
		now = time.Now
	}
	roster := make(map[string]Mentor, len(mentors))
	for _, mentor := range mentors {
		roster[mentor.ID] = mentor
	}
	return &AssignmentService{
		assignments: assignments,
		mentors:     roster,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// Assign records the user's mentor, replacing any previous assignment.
func (s *AssignmentService) Assign(ctx context.Context, userID int64, mentorID string) error {
	logger := serviceLogger(ctx, s.logger, "assignment", "assign", "user_id", userID, "mentor_id", mentorID)

	if _, ok := s.mentors[mentorID]; !ok {
		return ErrUnknownMentor
	}

	assignment := persistence.MentorAssignment{
		UserID:     userID,
		MentorID:   mentorID,
		AssignedAt: s.now(),
	}
	if err := s.assignments.UpsertAssignment(ctx, assignment); err != nil {
		logger.Error("failed to store assignment", "error", err)
		return &PersistenceError{Op: "upsert assignment", Err: err}
	}

	logger.Info("mentor assigned")
	return nil
}

// Resolve returns the user's currently assigned mentor.
func (s *AssignmentService) Resolve(ctx context.Context, userID int64) (Mentor, error) {
	assignment, err := s.assignments.GetAssignment(ctx, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Mentor{}, ErrNotFound
		}
		return Mentor{}, &PersistenceError{Op: "get assignment", Err: err}
	}

	mentor, ok := s.mentors[assignment.MentorID]
	if !ok {
		// The roster changed under a stored assignment.
		return Mentor{}, ErrUnknownMentor
	}
	return mentor, nil
}

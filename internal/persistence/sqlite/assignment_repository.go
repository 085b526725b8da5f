package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/interview-scheduler/internal/persistence"
)

// AssignmentRepository implements persistence.AssignmentRepository using SQLite.
type AssignmentRepository struct {
	pool *ConnectionPool
}

// NewAssignmentRepository creates a new SQLite assignment repository.
func NewAssignmentRepository(pool *ConnectionPool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

// UpsertAssignment stores or replaces the user's mentor assignment.
func (r *AssignmentRepository) UpsertAssignment(ctx context.Context, assignment persistence.MentorAssignment) error {
	query := `
		INSERT INTO mentor_assignments (user_id, mentor_id, assigned_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET mentor_id = excluded.mentor_id, assigned_at = excluded.assigned_at
	`
	_, err := r.pool.db.ExecContext(ctx, query,
		assignment.UserID,
		assignment.MentorID,
		assignment.AssignedAt.UTC().Format(time.RFC3339),
	)
	return mapError(err)
}

// GetAssignment retrieves the user's active assignment.
func (r *AssignmentRepository) GetAssignment(ctx context.Context, userID int64) (persistence.MentorAssignment, error) {
	query := `SELECT user_id, mentor_id, assigned_at FROM mentor_assignments WHERE user_id = ?`

	var (
		assignment persistence.MentorAssignment
		assignedAt string
	)
	err := r.pool.db.QueryRowContext(ctx, query, userID).Scan(&assignment.UserID, &assignment.MentorID, &assignedAt)
	if err != nil {
		return persistence.MentorAssignment{}, mapError(err)
	}
	parsed, err := time.Parse(time.RFC3339, assignedAt)
	if err != nil {
		return persistence.MentorAssignment{}, fmt.Errorf("failed to parse assigned_at: %w", err)
	}
	assignment.AssignedAt = parsed
	return assignment, nil
}

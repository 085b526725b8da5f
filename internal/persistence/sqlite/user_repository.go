package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/interview-scheduler/internal/persistence"
)

// UserRepository implements persistence.UserRepository using SQLite.
type UserRepository struct {
	pool *ConnectionPool
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{pool: pool}
}

// CreateUser inserts a new user row.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	query := `
		INSERT INTO users (id, username, first_name, registered_at, total_bookings)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.pool.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.FirstName,
		user.RegisteredAt.UTC().Format(time.RFC3339),
		user.TotalBookings,
	)
	return mapError(err)
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id int64) (persistence.User, error) {
	query := `
		SELECT id, username, first_name, registered_at, total_bookings
		FROM users
		WHERE id = ?
	`
	row := r.pool.db.QueryRowContext(ctx, query, id)
	user, err := scanUser(row)
	if err != nil {
		return persistence.User{}, mapError(err)
	}
	return user, nil
}

// ListUsers returns every known user ordered by registration time.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	query := `
		SELECT id, username, first_name, registered_at, total_bookings
		FROM users
		ORDER BY registered_at, id
	`
	rows, err := r.pool.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, mapError(err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// IncrementTotalBookings bumps the monotonic counter inside a transaction and
// returns the new value.
func (r *UserRepository) IncrementTotalBookings(ctx context.Context, id int64) (int, error) {
	var total int
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.Exec(`UPDATE users SET total_bookings = total_bookings + 1 WHERE id = ?`, id)
		if err != nil {
			return mapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return tx.QueryRow(`SELECT total_bookings FROM users WHERE id = ?`, id).Scan(&total)
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (persistence.User, error) {
	var (
		user         persistence.User
		registeredAt string
	)
	if err := row.Scan(&user.ID, &user.Username, &user.FirstName, &registeredAt, &user.TotalBookings); err != nil {
		return persistence.User{}, err
	}
	parsed, err := time.Parse(time.RFC3339, registeredAt)
	if err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse registered_at: %w", err)
	}
	user.RegisteredAt = parsed
	return user, nil
}

package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/BradenHooton/loginguard/internal/database"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/jackc/pgx/v5"
)

// LoginAttemptRepository handles the append-only login_attempts table
type LoginAttemptRepository struct {
	db *database.DB
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// Create appends one audit row. Errors keep the pgx cause so callers can
// tell a missing table apart from an outage.
func (r *LoginAttemptRepository) Create(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (ip, username, operator_id, ok, reason, user_agent, request_id, locked_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		attempt.IP,
		attempt.Username,
		attempt.OperatorID,
		attempt.OK,
		string(attempt.Reason),
		attempt.UserAgent,
		attempt.RequestID,
		attempt.LockedUntil,
		attempt.CreatedAt,
	).Scan(&attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to insert login attempt: %w", err)
	}
	return nil
}

// List returns the newest rows first, optionally narrowed by ip and username.
func (r *LoginAttemptRepository) List(ctx context.Context, filter models.LoginAttemptFilter) ([]*models.LoginAttempt, error) {
	var (
		where []string
		args  []any
	)
	if filter.IP != "" {
		args = append(args, filter.IP)
		where = append(where, fmt.Sprintf("ip = $%d", len(args)))
	}
	if filter.Username != "" {
		args = append(args, filter.Username)
		where = append(where, fmt.Sprintf("username = $%d", len(args)))
	}

	query := `SELECT id, ip, username, operator_id, ok, reason, user_agent, request_id, locked_until, created_at FROM login_attempts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query login attempts: %w", err)
	}

	attempts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.LoginAttempt, error) {
		var a models.LoginAttempt
		var reason string
		err := row.Scan(
			&a.ID, &a.IP, &a.Username, &a.OperatorID, &a.OK, &reason,
			&a.UserAgent, &a.RequestID, &a.LockedUntil, &a.CreatedAt,
		)
		a.Reason = models.AttemptReason(reason)
		return &a, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan login attempts: %w", err)
	}
	return attempts, nil
}

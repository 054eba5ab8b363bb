package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/loginguard/internal/database"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OperatorRepository struct {
	pool *pgxpool.Pool
}

func NewOperatorRepository(db *database.DB) *OperatorRepository {
	return &OperatorRepository{pool: db.Pool}
}

// rowScanner covers pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

const operatorColumns = `id, username, password_hash, name, role, created_at, updated_at`

func scanOperatorRow(scanner rowScanner) (*models.Operator, error) {
	var op models.Operator
	err := scanner.Scan(
		&op.ID, &op.Username, &op.PasswordHash, &op.Name, &op.Role,
		&op.CreatedAt, &op.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &op, nil
}

func (r *OperatorRepository) GetByID(ctx context.Context, id string) (*models.Operator, error) {
	query := `SELECT ` + operatorColumns + ` FROM operators WHERE id = $1`
	return scanOperatorRow(r.pool.QueryRow(ctx, query, id))
}

// GetByUsername expects an already normalized username.
func (r *OperatorRepository) GetByUsername(ctx context.Context, username string) (*models.Operator, error) {
	query := `SELECT ` + operatorColumns + ` FROM operators WHERE username = $1`
	return scanOperatorRow(r.pool.QueryRow(ctx, query, username))
}

func (r *OperatorRepository) Create(ctx context.Context, op *models.Operator) (*models.Operator, error) {
	op.ID = uuid.New().String()

	now := time.Now().UTC()
	op.CreatedAt = now
	op.UpdatedAt = now

	query := `
		INSERT INTO operators (id, username, password_hash, name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + operatorColumns

	return scanOperatorRow(r.pool.QueryRow(ctx, query,
		op.ID, op.Username, op.PasswordHash, op.Name, op.Role, op.CreatedAt, op.UpdatedAt,
	))
}

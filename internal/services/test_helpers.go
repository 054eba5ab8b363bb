package services

import (
	"context"

	"github.com/BradenHooton/loginguard/internal/models"
)

// MockOperatorRepository implements OperatorRepository for testing
type MockOperatorRepository struct {
	GetByUsernameFunc func(ctx context.Context, username string) (*models.Operator, error)
	GetByIDFunc       func(ctx context.Context, id string) (*models.Operator, error)
	CreateFunc        func(ctx context.Context, op *models.Operator) (*models.Operator, error)
}

func (m *MockOperatorRepository) GetByUsername(ctx context.Context, username string) (*models.Operator, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockOperatorRepository) GetByID(ctx context.Context, id string) (*models.Operator, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockOperatorRepository) Create(ctx context.Context, op *models.Operator) (*models.Operator, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, op)
	}
	return nil, models.ErrInternalServer
}

// MockLoginAttemptRepository implements LoginAttemptRepository for testing
type MockLoginAttemptRepository struct {
	CreateFunc func(ctx context.Context, attempt *models.LoginAttempt) error
	ListFunc   func(ctx context.Context, filter models.LoginAttemptFilter) ([]*models.LoginAttempt, error)
}

func (m *MockLoginAttemptRepository) Create(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, attempt)
	}
	return nil
}

func (m *MockLoginAttemptRepository) List(ctx context.Context, filter models.LoginAttemptFilter) ([]*models.LoginAttempt, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []*models.LoginAttempt{}, nil
}

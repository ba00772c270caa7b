package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/segyhp/lead-intake/internal/domain"
)

type MockApplicationRepository struct {
	mock.Mock
}

func (m *MockApplicationRepository) Create(ctx context.Context, app *domain.Application) error {
	args := m.Called(ctx, app)
	return args.Error(0)
}

func (m *MockApplicationRepository) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Application), args.Error(1)
}

func (m *MockApplicationRepository) List(ctx context.Context) ([]*domain.Application, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Application), args.Error(1)
}

func (m *MockApplicationRepository) UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.StatusChange, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatusChange), args.Error(1)
}

type MockEmailLogRepository struct {
	mock.Mock
}

func (m *MockEmailLogRepository) Append(ctx context.Context, entry *domain.EmailLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockEmailLogRepository) ListByApplication(ctx context.Context, applicationID string) ([]*domain.EmailLog, error) {
	args := m.Called(ctx, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.EmailLog), args.Error(1)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit, maxAttempts int, lease time.Duration) ([]*domain.NotificationTask, error) {
	args := m.Called(ctx, now, limit, maxAttempts, lease)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.NotificationTask), args.Error(1)
}

func (m *MockOutboxRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id string, reason string, nextAttemptAt time.Time) error {
	args := m.Called(ctx, id, reason, nextAttemptAt)
	return args.Error(0)
}

func (m *MockOutboxRepository) CountPending(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockAdminRepository struct {
	mock.Mock
}

func (m *MockAdminRepository) FindByEmail(ctx context.Context, email string) (*domain.AdminCredential, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AdminCredential), args.Error(1)
}

func (m *MockAdminRepository) Create(ctx context.Context, admin *domain.AdminCredential) error {
	args := m.Called(ctx, admin)
	return args.Error(0)
}

package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/checkout/internal/audit/domain"
	apperrors "github.com/allisson/checkout/internal/errors"
)

// MockAuditEventRepository is a mock implementation of AuditEventRepository
type MockAuditEventRepository struct {
	mock.Mock
}

func (m *MockAuditEventRepository) Create(ctx context.Context, event *domain.AuditEvent) error {
	return m.Called(ctx, event).Error(0)
}

func TestAuditRecorder_Record(t *testing.T) {
	repo := &MockAuditEventRepository{}
	recorder := NewAuditRecorder(repo)
	userID := uuid.Must(uuid.NewV7())
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))

	repo.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.AuditEvent) bool {
		return e.ID != uuid.Nil &&
			e.UserID != nil && *e.UserID == userID &&
			e.EventType == domain.EventCheckoutStarted &&
			e.Metadata["order_id"] == "o-1" &&
			e.CreatedAt.Equal(at) && e.CreatedAt.Location() == time.UTC
	})).Return(nil).Once()

	err := recorder.Record(context.Background(), &userID, domain.EventCheckoutStarted, map[string]any{"order_id": "o-1"}, at)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestAuditRecorder_Record_RequiresType(t *testing.T) {
	repo := &MockAuditEventRepository{}
	recorder := NewAuditRecorder(repo)

	err := recorder.Record(context.Background(), nil, "", nil, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
